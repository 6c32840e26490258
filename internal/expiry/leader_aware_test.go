package expiry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeElector struct {
	leader atomic.Bool
	ch     chan bool
}

func (f *fakeElector) Start(context.Context) error { return nil }
func (f *fakeElector) Stop() error                 { return nil }
func (f *fakeElector) IsLeader() bool              { return f.leader.Load() }
func (f *fakeElector) LeaderCh() <-chan bool       { return f.ch }

func (f *fakeElector) set(v bool) {
	f.leader.Store(v)
	f.ch <- v
}

type countingRunner struct {
	active atomic.Int32
	starts atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context) error {
	r.starts.Add(1)
	r.active.Add(1)
	defer r.active.Add(-1)
	<-ctx.Done()
	return ctx.Err()
}

func TestLeaderAwareFollowsLeadership(t *testing.T) {
	elector := &fakeElector{ch: make(chan bool)}
	runner := &countingRunner{}
	la := NewLeaderAware(runner, elector, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, la.Start(ctx))
	require.Zero(t, runner.starts.Load())

	elector.set(true)
	require.Eventually(t, func() bool { return runner.active.Load() == 1 }, time.Second, 10*time.Millisecond)

	// A repeated true must not start a second loop.
	elector.set(true)
	elector.set(false)
	require.Eventually(t, func() bool { return runner.active.Load() == 0 }, time.Second, 10*time.Millisecond)
	require.EqualValues(t, 1, runner.starts.Load())

	elector.set(true)
	require.Eventually(t, func() bool { return runner.active.Load() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, la.Stop())
	require.Zero(t, runner.active.Load())
}
