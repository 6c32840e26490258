package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, DefaultConfig(), zerolog.Nop()), mr
}

func TestCalendarRoundTripAndInvalidate(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, found := c.GetCalendar(ctx, "2026-03-01", "2026-03-07", false)
	require.False(t, found)

	cal := &capacity.Calendar{StartDate: "2026-03-01", EndDate: "2026-03-07"}
	require.NoError(t, c.SetCalendar(ctx, "2026-03-01", "2026-03-07", false, cal))
	require.NoError(t, c.SetCalendar(ctx, "2026-03-01", "2026-03-07", true, cal))

	got, found := c.GetCalendar(ctx, "2026-03-01", "2026-03-07", false)
	require.True(t, found)
	require.Equal(t, "2026-03-07", got.EndDate)

	ttl := mr.TTL(calendarKey("2026-03-01", "2026-03-07", false))
	require.Equal(t, DefaultCalendarTTL, ttl)

	require.NoError(t, c.InvalidateCalendars(ctx))
	_, found = c.GetCalendar(ctx, "2026-03-01", "2026-03-07", true)
	require.False(t, found)
}

func TestCacheDisablesOnError(t *testing.T) {
	c, mr := newCache(t)
	require.True(t, c.IsAvailable())

	mr.Close()
	_, found := c.GetCalendar(context.Background(), "a", "b", false)
	require.False(t, found)
	require.False(t, c.IsAvailable())
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	_, found := c.GetCalendar(context.Background(), "a", "b", false)
	require.False(t, found)
	require.NoError(t, c.InvalidateCalendars(context.Background()))
	require.NoError(t, c.SetCalendar(context.Background(), "a", "b", false, &capacity.Calendar{}))
}

func TestListenInvalidatesOnCapacityEvents(t *testing.T) {
	c, mr := newCache(t)
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.SetCalendar(ctx, "s", "e", false, &capacity.Calendar{}))

	done := make(chan struct{})
	go func() {
		c.Listen(ctx, bus)
		close(done)
	}()

	// Subscriptions are registered asynchronously; publish until the key is gone.
	require.Eventually(t, func() bool {
		bus.Publish(events.EventCapacityChanged, events.Payload{"window_id": "w1"})
		return !mr.Exists(calendarKey("s", "e", false))
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
