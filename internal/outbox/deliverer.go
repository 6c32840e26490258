/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// Sink hands an order-creation request to the order collaborator.
// Implementations must be safe to call again for the same request.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, req models.OrderRequest) error
}

// DelivererConfig tunes the delivery loop.
type DelivererConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Deliverer polls the outbox and pushes pending requests to a sink.
type Deliverer struct {
	store  *Store
	sink   Sink
	clock  clock.Clock
	cfg    DelivererConfig
	logger zerolog.Logger
}

// NewDeliverer creates a deliverer. Zero config values get defaults.
func NewDeliverer(store *Store, sink Sink, c clock.Clock, cfg DelivererConfig, logger zerolog.Logger) *Deliverer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Deliverer{
		store:  store,
		sink:   sink,
		clock:  c,
		cfg:    cfg,
		logger: logger.With().Str("component", "outbox").Str("sink", sink.Name()).Logger(),
	}
}

// Run delivers on every tick until ctx is cancelled.
func (d *Deliverer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.cfg.Interval).Msg("outbox deliverer started")
	for {
		if _, err := d.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("outbox pass failed")
		}
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("outbox deliverer stopping")
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue runs one delivery pass and returns the number delivered.
// A failed request is recorded and the pass continues with the next one.
func (d *Deliverer) ProcessDue(ctx context.Context) (int, error) {
	rows, err := d.store.FetchPending(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		if err := d.sink.Deliver(ctx, row); err != nil {
			telemetry.OutboxDeliveriesTotal.WithLabelValues(d.sink.Name(), "failed").Inc()
			d.logger.Warn().Err(err).
				Str("request_id", row.ID).
				Str("reservation_id", row.ReservationID).
				Int("attempt", row.Attempts+1).
				Msg("order request delivery failed")
			if markErr := d.store.MarkFailed(ctx, row.ID, err); markErr != nil {
				d.logger.Error().Err(markErr).Str("request_id", row.ID).Msg("record delivery failure")
			}
			continue
		}
		if err := d.store.MarkDelivered(ctx, row.ID, d.clock.Now()); err != nil {
			d.logger.Error().Err(err).Str("request_id", row.ID).Msg("record delivery")
			continue
		}
		telemetry.OutboxDeliveriesTotal.WithLabelValues(d.sink.Name(), "delivered").Inc()
		delivered++
	}

	if pending, err := d.store.CountPending(ctx); err == nil {
		telemetry.OutboxPending.Set(float64(pending))
	}
	if delivered > 0 {
		d.logger.Debug().Int("delivered", delivered).Int("fetched", len(rows)).Msg("outbox pass complete")
	}
	return delivered, nil
}
