/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package expiry

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Runner is a loop that runs until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Elector reports leadership changes.
type Elector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	LeaderCh() <-chan bool
}

// LeaderAware runs a loop only while this instance is the leader.
type LeaderAware struct {
	runner   Runner
	election Elector
	logger   zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running chan struct{} // closed when the current run returns
}

// NewLeaderAware wraps runner.
func NewLeaderAware(runner Runner, election Elector, logger zerolog.Logger) *LeaderAware {
	return &LeaderAware{
		runner:   runner,
		election: election,
		logger:   logger.With().Str("component", "leader_aware_sweep").Logger(),
	}
}

// Start begins monitoring leadership status and manages the loop lifecycle.
func (la *LeaderAware) Start(ctx context.Context) error {
	la.mu.Lock()
	la.ctx = ctx
	la.mu.Unlock()

	la.logger.Info().Msg("starting leader-aware sweep")
	if err := la.election.Start(ctx); err != nil {
		return err
	}
	go la.monitorLeadership(ctx)
	return nil
}

// Stop stops the loop and releases leadership.
func (la *LeaderAware) Stop() error {
	la.logger.Info().Msg("stopping leader-aware sweep")
	la.stopRunner()
	return la.election.Stop()
}

// IsLeader returns whether this instance is the leader.
func (la *LeaderAware) IsLeader() bool {
	return la.election.IsLeader()
}

func (la *LeaderAware) monitorLeadership(ctx context.Context) {
	if la.election.IsLeader() {
		la.startRunner()
	}

	leaderCh := la.election.LeaderCh()
	for {
		select {
		case <-ctx.Done():
			la.stopRunner()
			return
		case isLeader := <-leaderCh:
			if isLeader {
				la.logger.Info().Msg("became leader, starting sweep")
				la.startRunner()
			} else {
				la.logger.Warn().Msg("lost leadership, stopping sweep")
				la.stopRunner()
			}
		}
	}
}

func (la *LeaderAware) startRunner() {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(la.ctx)
	done := make(chan struct{})
	la.cancel, la.running = cancel, done

	go func() {
		defer close(done)
		if err := la.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			la.logger.Error().Err(err).Msg("sweep error")
		}
	}()
}

// stopRunner cancels the loop and waits for it to return so two leaders
// never sweep at once from this process.
func (la *LeaderAware) stopRunner() {
	la.mu.Lock()
	cancel, done := la.cancel, la.running
	la.cancel, la.running = nil, nil
	la.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
