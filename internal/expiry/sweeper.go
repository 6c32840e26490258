/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package expiry releases capacity held by tentative reservations that were
// never confirmed.
package expiry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// Config tunes the sweep.
type Config struct {
	// Grace is how long after the requested date a tentative hold survives.
	Grace     time.Duration
	Interval  time.Duration
	BatchSize int
	Location  *time.Location
}

// Sweeper expires due reservations.
type Sweeper struct {
	ledger *reservation.Ledger
	clock  clock.Clock
	bus    events.Broker
	cfg    Config
	logger zerolog.Logger
}

// NewSweeper creates a sweeper. bus may be nil.
func NewSweeper(ledger *reservation.Ledger, c clock.Clock, bus events.Broker, cfg Config, logger zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Sweeper{
		ledger: ledger,
		clock:  c,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With().Str("component", "expiry_sweep").Logger(),
	}
}

// Cutoff is the plant-local date before which tentative reservations are due.
func (s *Sweeper) Cutoff() string {
	return clock.Date(s.clock.Now().Add(-s.cfg.Grace), s.cfg.Location)
}

// RunOnce drains every due reservation in batches and returns the totals.
func (s *Sweeper) RunOnce(ctx context.Context) (reservation.SweepResult, error) {
	started := time.Now()
	cutoff := s.Cutoff()

	var total reservation.SweepResult
	for {
		// Rows that failed stay TENTATIVE; leave them for the next run
		// instead of rescanning them on every page.
		res, err := s.ledger.ExpireDue(ctx, cutoff, s.cfg.BatchSize, total.FailedIDs...)
		total.Scanned += res.Scanned
		total.Expired += res.Expired
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		total.FailedIDs = append(total.FailedIDs, res.FailedIDs...)
		for i := range res.Reservations {
			r := &res.Reservations[i]
			events.Publish(s.bus, events.EventReservationExpired, events.ReservationPayload(r, ""))
			events.Publish(s.bus, events.EventCapacityChanged, events.CapacityChanged(r.WindowID))
		}
		if err != nil {
			telemetry.ExpirySweepRunsTotal.WithLabelValues("error").Inc()
			return total, err
		}
		// Every scanned row either left TENTATIVE or is now excluded, so a
		// short page means the pass is drained.
		if res.Scanned < s.cfg.BatchSize {
			break
		}
	}

	telemetry.ExpiredReservationsTotal.Add(float64(total.Expired))
	telemetry.ExpirySweepDuration.Observe(time.Since(started).Seconds())
	result := "ok"
	if total.Failed > 0 {
		result = "partial"
	}
	telemetry.ExpirySweepRunsTotal.WithLabelValues(result).Inc()

	if total.Scanned > 0 {
		s.logger.Info().
			Str("cutoff", cutoff).
			Int("scanned", total.Scanned).
			Int("expired", total.Expired).
			Int("skipped", total.Skipped).
			Int("failed", total.Failed).
			Msg("expiry sweep complete")
	}
	return total, nil
}

// Run sweeps on every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.Interval).Dur("grace", s.cfg.Grace).Msg("expiry sweep loop started")
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("expiry sweep failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweep loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
