package leadership

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newElection(t *testing.T, mr *miniredis.Miniredis, id string) *Election {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	e, err := NewElection(client, ElectionConfig{
		InstanceID:    id,
		LeaseDuration: time.Second,
		RetryInterval: 50 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestSingleLeaderAndHandover(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a := newElection(t, mr, "a")
	b := newElection(t, mr, "b")
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	require.True(t, a.IsLeader())
	require.False(t, b.IsLeader())

	leader, err := a.GetLeader(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", leader)

	// Stopping the leader releases the key and the follower takes over.
	require.NoError(t, a.Stop())
	require.False(t, a.IsLeader())
	require.Eventually(t, b.IsLeader, 2*time.Second, 20*time.Millisecond)
	require.NoError(t, b.Stop())
}

func TestLeaderChReportsLatestStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newElection(t, mr, "solo")
	require.NoError(t, e.Start(context.Background()))

	select {
	case got := <-e.LeaderCh():
		require.True(t, got)
	case <-time.After(time.Second):
		t.Fatal("no leadership notification")
	}
	require.NoError(t, e.Stop())
}

func TestRejectsRetryLongerThanLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	_, err := NewElection(client, ElectionConfig{LeaseDuration: time.Second, RetryInterval: 2 * time.Second}, zerolog.Nop())
	require.Error(t, err)
}
