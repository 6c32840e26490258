/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package reservation owns the reservation state machine. It is the only
// caller of the capacity store's Reserve, Release and Commit, so the minutes
// held by TENTATIVE and CONFIRMED reservations always equal the window's
// reserved counter.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/db"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/outbox"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound           = errors.New("reservation not found")
	ErrInvalidTransition  = errors.New("invalid reservation transition")
	ErrInvalidRequest     = errors.New("invalid reservation request")
	ErrWindowDateMismatch = errors.New("window is not on the requested date")
)

// Ledger is the reservation ledger.
type Ledger struct {
	db      *gorm.DB
	windows *capacity.Store
	clock   clock.Clock
	loc     *time.Location
	scope   string
	prefix  string
	logger  zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithScope sets the reservation number scope (tenant or "global").
func WithScope(scope string) Option { return func(l *Ledger) { l.scope = scope } }

// WithNumberPrefix sets the reservation number prefix.
func WithNumberPrefix(prefix string) Option { return func(l *Ledger) { l.prefix = prefix } }

// WithClock sets the time source.
func WithClock(c clock.Clock) Option { return func(l *Ledger) { l.clock = c } }

// WithLocation sets the plant time zone used for the number's year.
func WithLocation(loc *time.Location) Option { return func(l *Ledger) { l.loc = loc } }

// NewLedger creates a ledger over db and the window store.
func NewLedger(database *gorm.DB, windows *capacity.Store, logger zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		db:      database,
		windows: windows,
		clock:   clock.NewSystem(),
		loc:     time.UTC,
		scope:   "global",
		prefix:  "RSV",
		logger:  logger.With().Str("component", "reservation_ledger").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateParams describes a new reservation. WindowID is always resolved by
// the caller before the ledger is invoked.
type CreateParams struct {
	CustomerID        string
	ProductID         string
	WindowID          string
	RequestedDate     string
	RequestedActivity decimal.Decimal
	ActivityUnit      string
	NumberOfDoses     int
	EstimatedMinutes  int
	Notes             string
	CreatedBy         string
}

func (p CreateParams) validate() error {
	switch {
	case p.WindowID == "":
		return fmt.Errorf("%w: window id is required", ErrInvalidRequest)
	case p.CustomerID == "" || p.ProductID == "":
		return fmt.Errorf("%w: customer and product are required", ErrInvalidRequest)
	case p.EstimatedMinutes <= 0:
		return fmt.Errorf("%w: estimated minutes must be positive", ErrInvalidRequest)
	case p.NumberOfDoses <= 0:
		return fmt.Errorf("%w: number of doses must be positive", ErrInvalidRequest)
	}
	return nil
}

// Create reserves EstimatedMinutes on the window and records a TENTATIVE
// reservation, all in one transaction.
func (l *Ledger) Create(ctx context.Context, p CreateParams) (*models.Reservation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	r := &models.Reservation{
		ID:                uuid.NewString(),
		CustomerID:        p.CustomerID,
		ProductID:         p.ProductID,
		WindowID:          p.WindowID,
		RequestedDate:     p.RequestedDate,
		RequestedActivity: p.RequestedActivity,
		ActivityUnit:      p.ActivityUnit,
		NumberOfDoses:     p.NumberOfDoses,
		EstimatedMinutes:  p.EstimatedMinutes,
		Notes:             p.Notes,
		Status:            models.ReservationTentative,
		CreatedBy:         p.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		windows := l.windows.WithTx(tx)

		w, err := windows.Get(ctx, p.WindowID)
		if err != nil {
			return err
		}
		if p.RequestedDate != "" && w.Date != p.RequestedDate {
			return fmt.Errorf("%w: window %s is on %s", ErrWindowDateMismatch, w.ID, w.Date)
		}
		r.RequestedDate = w.Date

		if err := windows.Reserve(ctx, p.WindowID, p.EstimatedMinutes); err != nil {
			return err
		}

		seq, err := db.NextSequence(tx, "reservation:"+l.scope)
		if err != nil {
			return err
		}
		r.ReservationNumber = FormatNumber(l.prefix, now.In(l.loc).Year(), seq)

		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.ReservationTransitionsTotal.WithLabelValues(string(models.ReservationTentative), outcome(err)).Inc()
		return nil, err
	}

	telemetry.ReservationTransitionsTotal.WithLabelValues(string(models.ReservationTentative), "ok").Inc()
	l.logger.Info().
		Str("reservation_id", r.ID).
		Str("reservation_number", r.ReservationNumber).
		Str("window_id", r.WindowID).
		Int("minutes", r.EstimatedMinutes).
		Msg("reservation created")
	return r, nil
}

// FormatNumber renders a reservation number such as RSV-2026-000042.
func FormatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// Confirm moves a TENTATIVE reservation to CONFIRMED.
func (l *Ledger) Confirm(ctx context.Context, id string) (*models.Reservation, error) {
	return l.apply(ctx, id, EventConfirm, "", nil)
}

// Cancel releases the held minutes and moves the reservation to CANCELLED.
func (l *Ledger) Cancel(ctx context.Context, id, reason string) (*models.Reservation, error) {
	return l.apply(ctx, id, EventCancel, reason, nil)
}

// Expire releases the held minutes of a TENTATIVE reservation. A reservation
// confirmed or cancelled concurrently fails with ErrInvalidTransition.
func (l *Ledger) Expire(ctx context.Context, id, reason string) (*models.Reservation, error) {
	return l.apply(ctx, id, EventExpire, reason, nil)
}

// Convert commits the held minutes, assigns an order id and writes the
// order-creation request to the outbox in the same transaction.
func (l *Ledger) Convert(ctx context.Context, id string) (*models.Reservation, string, error) {
	orderID := uuid.NewString()
	r, err := l.apply(ctx, id, EventConvert, "", func(tx *gorm.DB, r *models.Reservation, updates map[string]any) error {
		updates["order_id"] = orderID
		_, err := outbox.Enqueue(tx, outbox.NewPayload(r, orderID, l.clock.Now()))
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return r, orderID, nil
}

type hook func(tx *gorm.DB, r *models.Reservation, updates map[string]any) error

// apply runs one transition: lock and read the row, check the table, mutate
// capacity, then write the new state guarded on the old one. Any failure
// rolls the whole transaction back.
func (l *Ledger) apply(ctx context.Context, id string, ev Event, reason string, extra hook) (*models.Reservation, error) {
	var (
		out    models.Reservation
		target models.ReservationStatus
	)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load reservation: %w", err)
		}

		to, effect, ok := Next(r.Status, ev)
		target = to
		if !ok {
			return fmt.Errorf("%w: cannot %s a %s reservation", ErrInvalidTransition, ev, r.Status)
		}

		windows := l.windows.WithTx(tx)
		switch effect {
		case EffectRelease:
			if err := windows.Release(ctx, r.WindowID, r.EstimatedMinutes); err != nil {
				return err
			}
		case EffectCommit:
			if err := windows.Commit(ctx, r.WindowID, r.EstimatedMinutes); err != nil {
				if errors.Is(err, capacity.ErrInsufficientReserved) {
					l.integrityAlert(r, err)
				}
				return err
			}
		}

		now := l.clock.Now()
		updates := map[string]any{"status": to, "updated_at": now}
		if reason != "" {
			updates["status_reason"] = reason
		}
		switch to {
		case models.ReservationConfirmed:
			updates["confirmed_at"] = now
		case models.ReservationCancelled:
			updates["cancelled_at"] = now
		case models.ReservationExpired:
			updates["expired_at"] = now
		case models.ReservationConverted:
			updates["converted_at"] = now
		}
		if extra != nil {
			if err := extra(tx, &r, updates); err != nil {
				return err
			}
		}

		res := tx.Model(&models.Reservation{}).
			Where("id = ? AND status = ?", r.ID, r.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update reservation: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: reservation %s changed concurrently", ErrInvalidTransition, r.ID)
		}

		return tx.Where("id = ?", r.ID).First(&out).Error
	})

	if err != nil {
		to := string(target)
		if to == "" {
			to = string(ev)
		}
		telemetry.ReservationTransitionsTotal.WithLabelValues(to, outcome(err)).Inc()
		return nil, err
	}

	telemetry.ReservationTransitionsTotal.WithLabelValues(string(out.Status), "ok").Inc()
	l.logger.Info().
		Str("reservation_id", out.ID).
		Str("event", string(ev)).
		Str("status", string(out.Status)).
		Msg("reservation transition")
	return &out, nil
}

func (l *Ledger) integrityAlert(r models.Reservation, err error) {
	telemetry.IntegrityAlertsTotal.WithLabelValues("insufficient_reserved").Inc()
	l.logger.Error().
		Err(err).
		Str("alert", "data_integrity").
		Str("window_id", r.WindowID).
		Str("reservation_id", r.ID).
		Int("minutes", r.EstimatedMinutes).
		Msg("reserved minutes lower than held by reservation")
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, capacity.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, capacity.ErrInsufficientReserved):
		return "insufficient_reserved"
	case errors.Is(err, ErrNotFound), errors.Is(err, capacity.ErrWindowNotFound):
		return "not_found"
	default:
		return "error"
	}
}
