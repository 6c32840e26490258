/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for capacity calendar reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// DefaultCalendarTTL bounds staleness if an invalidation is lost.
const DefaultCalendarTTL = 30 * time.Second

// Key prefixes for Redis cache
const (
	keyRoot     = "kfsh:cache:"
	KeyCalendar = keyRoot + "calendar:" // + start:end:inactive
)

// Config contains cache configuration.
type Config struct {
	CalendarTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		CalendarTTL:    DefaultCalendarTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// is a valid, always-missing cache.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a cache on client. An unreachable Redis yields a disabled cache.
func New(client *redis.Client, cfg Config, logger zerolog.Logger) *Cache {
	if cfg.CalendarTTL <= 0 {
		cfg.CalendarTTL = DefaultCalendarTTL
	}
	c := &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		c.disabled = true
		return c
	}

	c.logger.Info().Msg("Redis cache initialized")
	return c
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, prefix, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		c.handleError(err, "get")
		telemetry.CacheMissesTotal.WithLabelValues(prefix).Inc()
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		telemetry.CacheMissesTotal.WithLabelValues(prefix).Inc()
		return false
	}

	telemetry.CacheHitsTotal.WithLabelValues(prefix).Inc()
	return true
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}

func calendarKey(start, end string, includeInactive bool) string {
	return fmt.Sprintf("%s%s:%s:%t", KeyCalendar, start, end, includeInactive)
}

// GetCalendar retrieves a cached calendar for the range.
func (c *Cache) GetCalendar(ctx context.Context, start, end string, includeInactive bool) (*capacity.Calendar, bool) {
	var cal capacity.Calendar
	if !c.get(ctx, "calendar", calendarKey(start, end, includeInactive), &cal) {
		return nil, false
	}
	return &cal, true
}

// SetCalendar caches a calendar for the range.
func (c *Cache) SetCalendar(ctx context.Context, start, end string, includeInactive bool, cal *capacity.Calendar) error {
	if !c.IsAvailable() {
		return nil
	}
	return c.set(ctx, calendarKey(start, end, includeInactive), cal, c.config.CalendarTTL)
}

// InvalidateCalendars drops every cached calendar. Ranges overlap freely, so
// any counter change invalidates all of them.
func (c *Cache) InvalidateCalendars(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Msg("invalidating calendar caches")
	return c.deletePattern(ctx, KeyCalendar+"*")
}

// invalidatingEvents are the events after which cached calendars are stale.
var invalidatingEvents = []events.EventType{
	events.EventCapacityChanged,
	events.EventWindowsGenerated,
	events.EventWindowCreated,
	events.EventWindowDeactivated,
	events.EventIntegrityRepaired,
}

// Listen invalidates calendars on capacity events until ctx is cancelled.
// Events from other nodes arrive through a distributed broker.
func (c *Cache) Listen(ctx context.Context, bus events.Broker) {
	if c == nil {
		return
	}
	subs := make([]events.Subscriber, len(invalidatingEvents))
	for i, et := range invalidatingEvents {
		subs[i] = bus.Subscribe(et)
	}
	defer func() {
		for i, et := range invalidatingEvents {
			bus.Unsubscribe(et, subs[i])
		}
	}()

	merged := make(chan struct{}, 1)
	for _, sub := range subs {
		go func(sub events.Subscriber) {
			for range sub {
				select {
				case merged <- struct{}{}:
				default:
				}
			}
		}(sub)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-merged:
			if err := c.InvalidateCalendars(ctx); err != nil {
				c.logger.Debug().Err(err).Msg("calendar invalidation failed")
			}
		}
	}
}
