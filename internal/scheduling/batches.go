/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/batching"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/db"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// SuggestBatches proposes batches for orders delivering on date. Infeasible
// groups are returned with their reasons.
func (s *Service) SuggestBatches(ctx context.Context, date string) (_ []batching.Suggestion, err error) {
	ctx, span := telemetry.StartOperation(ctx, "SuggestBatches", map[string]any{"date": date})
	defer func() { telemetry.EndOperation(span, err) }()

	if _, err := clock.ParseDate(date, s.loc); err != nil {
		return nil, invalid([]Violation{{Field: "date", Message: fmt.Sprintf("Use a date in YYYY-MM-DD form, got %q.", date)}})
	}
	return s.planner.Suggest(ctx, date)
}

// AcceptSuggestion materializes sg as a batch. The suggestion is recomputed
// from the locked orders; any difference in the order set, the window
// containing the start, or the window's room makes it stale.
func (s *Service) AcceptSuggestion(ctx context.Context, sg batching.Suggestion, actor string) (_ *models.Batch, err error) {
	ctx, span := telemetry.StartOperation(ctx, "AcceptSuggestion", map[string]any{
		"product_id":  sg.ProductID,
		"window_id":   sg.WindowID,
		"order_count": len(sg.Orders),
	})
	defer func() { telemetry.EndOperation(span, err) }()

	if !sg.Feasible {
		return nil, infeasible(sg.Reasons)
	}
	ids := sg.OrderIDs()
	if sg.ProductID == "" || len(ids) == 0 || sg.Fingerprint == "" {
		return nil, invalid([]Violation{{Field: "suggestion", Message: "The suggestion needs a product, its orders and its fingerprint."}})
	}

	var batch *models.Batch
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ordersTx := s.orders.WithTx(tx)
		windowsTx := s.windows.WithTx(tx)

		loaded, err := ordersTx.Load(ctx, ids)
		if err != nil {
			return err
		}
		if len(loaded) != len(ids) {
			return fmt.Errorf("%w: %d of %d orders found", ErrStaleSuggestion, len(loaded), len(ids))
		}
		for _, o := range loaded {
			if o.Status != models.OrderValidated || o.BatchID != nil || o.ProductID != sg.ProductID {
				return fmt.Errorf("%w: order %s is %s", ErrStaleSuggestion, o.ID, o.Status)
			}
		}

		fresh, err := s.planner.Recompute(ctx, sg.ProductID, loaded)
		if err != nil {
			return err
		}
		if fresh.Fingerprint != sg.Fingerprint {
			return fmt.Errorf("%w: orders changed since the suggestion", ErrStaleSuggestion)
		}
		if !fresh.Feasible {
			return infeasible(fresh.Reasons)
		}

		w, err := windowsTx.WindowAt(ctx, fresh.SuggestedStartTime, s.loc)
		if errors.Is(err, capacity.ErrWindowNotFound) {
			return fmt.Errorf("%w: no active window contains %s", ErrStaleSuggestion, fresh.SuggestedStartTime.Format("2006-01-02 15:04"))
		}
		if err != nil {
			return err
		}
		if sg.WindowID != "" && w.ID != sg.WindowID {
			return fmt.Errorf("%w: start now falls in window %s", ErrStaleSuggestion, w.ID)
		}

		if err := windowsTx.Consume(ctx, w.ID, fresh.ProductionMinutes); err != nil {
			if errors.Is(err, capacity.ErrCapacityExceeded) || errors.Is(err, capacity.ErrWindowInactive) {
				return fmt.Errorf("%w: %v", ErrStaleSuggestion, err)
			}
			return err
		}

		seq, err := db.NextSequence(tx, "batch")
		if err != nil {
			return err
		}

		b := &models.Batch{
			ID:                uuid.NewString(),
			BatchNumber:       batchNumber(fresh, seq, s.loc),
			ProductID:         fresh.ProductID,
			WindowID:          w.ID,
			PlannedStart:      fresh.SuggestedStartTime.UTC(),
			PlannedEnd:        fresh.SuggestedEndTime.UTC(),
			ProductionMinutes: fresh.ProductionMinutes,
			TotalActivity:     fresh.TotalActivity,
			ActivityUnit:      fresh.ActivityUnit,
			OrderIDs:          fresh.OrderIDs(),
			Status:            models.BatchPlanned,
			CreatedBy:         actor,
			CreatedAt:         s.clock.Now(),
		}
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		n, err := ordersTx.MarkScheduled(ctx, b.OrderIDs, b.ID)
		if err != nil {
			return err
		}
		if int(n) != len(b.OrderIDs) {
			return fmt.Errorf("%w: %d of %d orders could be scheduled", ErrStaleSuggestion, n, len(b.OrderIDs))
		}
		batch = b
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleSuggestion) {
			s.logger.Info().Err(err).Str("product_id", sg.ProductID).Msg("suggestion rejected as stale")
		}
		return nil, err
	}

	telemetry.BatchesCreatedTotal.WithLabelValues(batch.ProductID).Inc()
	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("batch_number", batch.BatchNumber).
		Str("window_id", batch.WindowID).
		Int("orders", len(batch.OrderIDs)).
		Msg("batch created")

	s.publish(events.EventBatchCreated, events.BatchPayload(batch, actor))
	s.capacityChanged(ctx, batch.WindowID)
	return batch, nil
}

// batchNumber renders e.g. FDG-20260302-0007.
func batchNumber(sg batching.Suggestion, seq int64, loc *time.Location) string {
	day := sg.SuggestedStartTime.In(loc).Format("20060102")
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(sg.ProductID), day, seq)
}

func infeasible(reasons []batching.Reason) error {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return &Error{
		Code:    CodeInfeasibleSchedule,
		Message: fmt.Sprintf("%s: %s", ErrInfeasibleSuggestion, strings.Join(parts, ", ")),
	}
}
