/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"gorm.io/gorm"
)

// Get loads one reservation with its window.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	if err := l.db.WithContext(ctx).Preload("Window").Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &r, nil
}

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	Statuses   []models.ReservationStatus
	CustomerID string
	ProductID  string
	WindowID   string
	FromDate   string
	ToDate     string
	Limit      int
	Offset     int
}

// List returns reservations matching f, newest first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]models.Reservation, error) {
	q := l.db.WithContext(ctx).Model(&models.Reservation{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.CustomerID != "" {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.ProductID != "" {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.WindowID != "" {
		q = q.Where("window_id = ?", f.WindowID)
	}
	if f.FromDate != "" {
		q = q.Where("requested_date >= ?", f.FromDate)
	}
	if f.ToDate != "" {
		q = q.Where("requested_date <= ?", f.ToDate)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []models.Reservation
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// SweepResult summarizes one expiry pass.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	Reservations []models.Reservation `json:"-"`
	FailedIDs    []string             `json:"-"`
}

// ExpireDue expires up to limit TENTATIVE reservations whose requested date
// is before cutoffDate, leaving out the ids in exclude. A reservation that
// moved on concurrently is skipped; any other failure is logged, recorded in
// FailedIDs, and the pass continues.
func (l *Ledger) ExpireDue(ctx context.Context, cutoffDate string, limit int, exclude ...string) (SweepResult, error) {
	var res SweepResult

	var ids []string
	q := l.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ? AND requested_date < ?", models.ReservationTentative, cutoffDate)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	err := q.
		Order("requested_date ASC, created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return res, fmt.Errorf("find due reservations: %w", err)
	}
	res.Scanned = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r, err := l.Expire(ctx, id, "requested date passed without confirmation")
		switch {
		case err == nil:
			res.Expired++
			res.Reservations = append(res.Reservations, *r)
		case errors.Is(err, ErrInvalidTransition):
			res.Skipped++
		default:
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, id)
			l.logger.Warn().Err(err).Str("reservation_id", id).Msg("expire reservation failed")
		}
	}
	return res, nil
}

// HeldMinutes returns, per window, the minutes of reservations in the given
// statuses.
func (l *Ledger) HeldMinutes(ctx context.Context, statuses ...models.ReservationStatus) (map[string]int, error) {
	type row struct {
		WindowID string
		Minutes  int
	}
	var rows []row
	err := l.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Select("window_id, COALESCE(SUM(estimated_minutes), 0) AS minutes").
		Where("status IN ?", statuses).
		Group("window_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum held minutes: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.WindowID] = r.Minutes
	}
	return out, nil
}
