/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package capacity owns capacity windows and their minute counters.
//
// Counters change only through Reserve, Release, Commit and Consume. Each is a
// single conditional UPDATE, so the database serializes concurrent writers on
// the same row and used+reserved can never exceed capacity.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"gorm.io/gorm"
)

var (
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrInsufficientReserved = errors.New("insufficient reserved minutes")
	ErrWindowNotFound       = errors.New("capacity window not found")
	ErrWindowInactive       = errors.New("capacity window inactive")
	ErrDuplicateWindow      = errors.New("capacity window already exists")
	ErrOverlappingWindow    = errors.New("capacity window overlaps an active window")
	ErrInvalidWindow        = errors.New("invalid capacity window")
	ErrInvalidMinutes       = errors.New("minutes must be positive")
)

// Store is the capacity window store.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a store on db.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "capacity").Logger(),
	}
}

// WithTx returns a store bound to an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, logger: s.logger}
}

// Reserve adds minutes to the window's reserved counter if they fit.
func (s *Store) Reserve(ctx context.Context, windowID string, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidMinutes
	}
	res := s.db.WithContext(ctx).
		Model(&models.CapacityWindow{}).
		Where("id = ? AND is_active = ? AND used_minutes + reserved_minutes + ? <= capacity_minutes", windowID, true, minutes).
		Updates(map[string]any{
			"reserved_minutes": gorm.Expr("reserved_minutes + ?", minutes),
		})
	if res.Error != nil {
		return fmt.Errorf("reserve minutes: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.diagnose(ctx, windowID, true, ErrCapacityExceeded)
}

// Release gives back reserved minutes, floored at zero. Inactive windows
// still release so cancellations after deactivation stay consistent.
func (s *Store) Release(ctx context.Context, windowID string, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidMinutes
	}
	res := s.db.WithContext(ctx).
		Model(&models.CapacityWindow{}).
		Where("id = ?", windowID).
		Updates(map[string]any{
			"reserved_minutes": gorm.Expr("CASE WHEN reserved_minutes > ? THEN reserved_minutes - ? ELSE 0 END", minutes, minutes),
		})
	if res.Error != nil {
		return fmt.Errorf("release minutes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWindowNotFound
	}
	return nil
}

// Commit moves minutes from reserved to used.
func (s *Store) Commit(ctx context.Context, windowID string, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidMinutes
	}
	res := s.db.WithContext(ctx).
		Model(&models.CapacityWindow{}).
		Where("id = ? AND reserved_minutes >= ?", windowID, minutes).
		Updates(map[string]any{
			"reserved_minutes": gorm.Expr("reserved_minutes - ?", minutes),
			"used_minutes":     gorm.Expr("used_minutes + ?", minutes),
		})
	if res.Error != nil {
		return fmt.Errorf("commit minutes: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.diagnose(ctx, windowID, false, ErrInsufficientReserved)
}

// Consume adds minutes straight to used, as a reserve and commit in one
// statement. Batches materialized from suggestions use it.
func (s *Store) Consume(ctx context.Context, windowID string, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidMinutes
	}
	res := s.db.WithContext(ctx).
		Model(&models.CapacityWindow{}).
		Where("id = ? AND is_active = ? AND used_minutes + reserved_minutes + ? <= capacity_minutes", windowID, true, minutes).
		Updates(map[string]any{
			"used_minutes": gorm.Expr("used_minutes + ?", minutes),
		})
	if res.Error != nil {
		return fmt.Errorf("consume minutes: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.diagnose(ctx, windowID, true, ErrCapacityExceeded)
}

// Reconcile overwrites both counters with values recomputed from the ledger.
// Only the integrity repair calls it.
func (s *Store) Reconcile(ctx context.Context, windowID string, used, reserved int) error {
	if used < 0 || reserved < 0 {
		return ErrInvalidMinutes
	}
	res := s.db.WithContext(ctx).
		Model(&models.CapacityWindow{}).
		Where("id = ? AND ? + ? <= capacity_minutes", windowID, used, reserved).
		Updates(map[string]any{
			"used_minutes":     used,
			"reserved_minutes": reserved,
		})
	if res.Error != nil {
		return fmt.Errorf("reconcile window: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.diagnose(ctx, windowID, false, ErrCapacityExceeded)
}

// diagnose explains why a conditional update matched no row.
func (s *Store) diagnose(ctx context.Context, windowID string, needActive bool, fallback error) error {
	w, err := s.Get(ctx, windowID)
	if err != nil {
		return err
	}
	if needActive && !w.IsActive {
		return ErrWindowInactive
	}
	s.logger.Debug().
		Str("window_id", windowID).
		Int("used_minutes", w.UsedMinutes).
		Int("reserved_minutes", w.ReservedMinutes).
		Int("capacity_minutes", w.CapacityMinutes).
		Err(fallback).
		Msg("conditional update rejected")
	return fallback
}

// Get loads one window.
func (s *Store) Get(ctx context.Context, id string) (*models.CapacityWindow, error) {
	var w models.CapacityWindow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWindowNotFound
		}
		return nil, fmt.Errorf("get window: %w", err)
	}
	return &w, nil
}

// ListInRange returns windows with startDate <= date <= endDate ordered by start.
func (s *Store) ListInRange(ctx context.Context, startDate, endDate string, includeInactive bool) ([]models.CapacityWindow, error) {
	q := s.db.WithContext(ctx).Where("date >= ? AND date <= ?", startDate, endDate)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var windows []models.CapacityWindow
	if err := q.Order("start_time ASC").Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	return windows, nil
}

// Candidates returns active windows on date with at least minutes available,
// earliest first. The list is a snapshot; callers still go through Reserve.
func (s *Store) Candidates(ctx context.Context, date string, minutes int) ([]models.CapacityWindow, error) {
	var windows []models.CapacityWindow
	err := s.db.WithContext(ctx).
		Where("date = ? AND is_active = ? AND capacity_minutes - used_minutes - reserved_minutes >= ?", date, true, minutes).
		Order("start_time ASC").
		Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("find candidate windows: %w", err)
	}
	return windows, nil
}

// WindowAt returns the active window whose interval contains t.
func (s *Store) WindowAt(ctx context.Context, t time.Time, loc *time.Location) (*models.CapacityWindow, error) {
	windows, err := s.ListInRange(ctx, clock.Date(t, loc), clock.Date(t, loc), false)
	if err != nil {
		return nil, err
	}
	for i := range windows {
		if windows[i].Contains(t) {
			return &windows[i], nil
		}
	}
	return nil, ErrWindowNotFound
}

// Draft is a window to be inserted.
type Draft struct {
	Date            string    `json:"date"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	CapacityMinutes int       `json:"capacity_minutes"`
	Notes           string    `json:"notes,omitempty"`
}

// Validate checks the draft's own fields.
func (d Draft) Validate() error {
	if d.Date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidWindow)
	}
	if !d.EndTime.After(d.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidWindow)
	}
	if d.CapacityMinutes <= 0 {
		return fmt.Errorf("%w: capacity minutes must be positive", ErrInvalidWindow)
	}
	return nil
}

// Insert creates a window from d. An identical (date, start, end) window is
// ErrDuplicateWindow. Overlap with an active window on the same date is
// ErrOverlappingWindow unless allowOverlap is set.
func (s *Store) Insert(ctx context.Context, d Draft, allowOverlap bool) (*models.CapacityWindow, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	w := &models.CapacityWindow{
		ID:              uuid.NewString(),
		Date:            d.Date,
		StartTime:       d.StartTime.UTC(),
		EndTime:         d.EndTime.UTC(),
		CapacityMinutes: d.CapacityMinutes,
		IsActive:        true,
		Notes:           d.Notes,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sameDay []models.CapacityWindow
		if err := tx.Where("date = ?", d.Date).Find(&sameDay).Error; err != nil {
			return fmt.Errorf("load windows for %s: %w", d.Date, err)
		}
		for _, existing := range sameDay {
			if existing.SameSlot(w.StartTime, w.EndTime) {
				return ErrDuplicateWindow
			}
			if !allowOverlap && existing.IsActive && existing.Overlaps(w.StartTime, w.EndTime) {
				return ErrOverlappingWindow
			}
		}
		if err := tx.Create(w).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateWindow
			}
			return fmt.Errorf("insert window: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Deactivate soft-deactivates a window. Existing holds stay; new
// reservations and batches can no longer land on it.
func (s *Store) Deactivate(ctx context.Context, id string) (*models.CapacityWindow, error) {
	res := s.db.WithContext(ctx).
		Model(&models.CapacityWindow{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false})
	if res.Error != nil {
		return nil, fmt.Errorf("deactivate window: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrWindowNotFound
	}
	return s.Get(ctx, id)
}
