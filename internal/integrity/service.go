/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package integrity detects and repairs drift between window counters and
// the reservation and batch records that justify them.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

type FindingType string

const (
	// reserved_minutes differs from the TENTATIVE and CONFIRMED holds.
	FindingReservedDrift FindingType = "reserved_minutes_drift"
	// used_minutes differs from converted reservations plus batches.
	FindingUsedDrift FindingType = "used_minutes_drift"
	// used + reserved exceeds capacity.
	FindingOverCapacity FindingType = "window_over_capacity"
	// a reservation points at a window that does not exist.
	FindingOrphanReservation FindingType = "orphan_reservation"
)

var ErrUnsupportedFinding = errors.New("unsupported finding type")

type Finding struct {
	ID         string         `json:"id"`
	Type       FindingType    `json:"type"`
	Severity   string         `json:"severity"`
	Summary    string         `json:"summary"`
	WindowID   string         `json:"window_id,omitempty"`
	ResourceID string         `json:"resource_id"`
	Repairable bool           `json:"repairable"`
	Details    map[string]any `json:"details,omitempty"`
}

type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Total       int                 `json:"total"`
	ByType      map[FindingType]int `json:"by_type"`
	Findings    []Finding           `json:"findings"`
}

type RepairInput struct {
	Type       FindingType `json:"type"`
	ResourceID string      `json:"resource_id"`
}

type RepairResult struct {
	Changed bool           `json:"changed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Service struct {
	db      *gorm.DB
	windows *capacity.Store
	logger  zerolog.Logger
}

func NewService(db *gorm.DB, windows *capacity.Store, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		windows: windows,
		logger:  logger.With().Str("component", "integrity").Logger(),
	}
}

// expected holds the counter values the records justify.
type expected struct {
	Used     int
	Reserved int
}

func (s *Service) Scan(ctx context.Context) (*Report, error) {
	var windows []models.CapacityWindow
	if err := s.db.WithContext(ctx).Order("date ASC, start_time ASC").Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}

	want, err := expectedFor(s.db.WithContext(ctx), "")
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, 8)
	known := make(map[string]bool, len(windows))
	for _, w := range windows {
		known[w.ID] = true
		findings = append(findings, windowFindings(w, want[w.ID])...)
	}

	orphans, err := s.scanOrphanReservations(ctx, known)
	if err != nil {
		return nil, err
	}
	findings = append(findings, orphans...)

	byType := make(map[FindingType]int)
	for _, f := range findings {
		byType[f.Type]++
		telemetry.IntegrityAlertsTotal.WithLabelValues(string(f.Type)).Inc()
	}

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Total:       len(findings),
		ByType:      byType,
		Findings:    findings,
	}

	if report.Total > 0 {
		s.logger.Warn().Int("total_findings", report.Total).Interface("by_type", byType).Str("alert", "data_integrity").Msg("integrity scan completed with findings")
	} else {
		s.logger.Info().Int("windows", len(windows)).Msg("integrity scan clean")
	}
	return report, nil
}

func windowFindings(w models.CapacityWindow, want expected) []Finding {
	var out []Finding
	if w.ReservedMinutes != want.Reserved {
		out = append(out, Finding{
			ID:         uuid.NewString(),
			Type:       FindingReservedDrift,
			Severity:   "critical",
			Summary:    fmt.Sprintf("window %s reserves %d minutes but holds justify %d", w.ID, w.ReservedMinutes, want.Reserved),
			WindowID:   w.ID,
			ResourceID: w.ID,
			Repairable: true,
			Details:    map[string]any{"actual": w.ReservedMinutes, "expected": want.Reserved, "date": w.Date},
		})
	}
	if w.UsedMinutes != want.Used {
		out = append(out, Finding{
			ID:         uuid.NewString(),
			Type:       FindingUsedDrift,
			Severity:   "critical",
			Summary:    fmt.Sprintf("window %s uses %d minutes but conversions and batches justify %d", w.ID, w.UsedMinutes, want.Used),
			WindowID:   w.ID,
			ResourceID: w.ID,
			Repairable: true,
			Details:    map[string]any{"actual": w.UsedMinutes, "expected": want.Used, "date": w.Date},
		})
	}
	if w.UsedMinutes+w.ReservedMinutes > w.CapacityMinutes {
		out = append(out, Finding{
			ID:         uuid.NewString(),
			Type:       FindingOverCapacity,
			Severity:   "critical",
			Summary:    fmt.Sprintf("window %s books %d of %d minutes", w.ID, w.UsedMinutes+w.ReservedMinutes, w.CapacityMinutes),
			WindowID:   w.ID,
			ResourceID: w.ID,
			Repairable: false,
			Details:    map[string]any{"used": w.UsedMinutes, "reserved": w.ReservedMinutes, "capacity": w.CapacityMinutes},
		})
	}
	return out
}

func (s *Service) scanOrphanReservations(ctx context.Context, known map[string]bool) ([]Finding, error) {
	type row struct {
		ID       string
		WindowID string
		Status   models.ReservationStatus
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Reservation{}).Select("id, window_id, status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	var out []Finding
	for _, r := range rows {
		if known[r.WindowID] {
			continue
		}
		out = append(out, Finding{
			ID:         uuid.NewString(),
			Type:       FindingOrphanReservation,
			Severity:   "warning",
			Summary:    fmt.Sprintf("reservation %s references missing window %s", r.ID, r.WindowID),
			WindowID:   r.WindowID,
			ResourceID: r.ID,
			Details:    map[string]any{"status": r.Status},
		})
	}
	return out, nil
}

// expectedFor aggregates justified counters per window, or for one window
// when windowID is set.
func expectedFor(q *gorm.DB, windowID string) (map[string]expected, error) {
	type sum struct {
		WindowID string
		Minutes  int
	}
	scope := func(db *gorm.DB) *gorm.DB {
		if windowID != "" {
			return db.Where("window_id = ?", windowID)
		}
		return db
	}

	var held, converted, batches []sum
	err := q.Model(&models.Reservation{}).Scopes(scope).
		Select("window_id, COALESCE(SUM(estimated_minutes), 0) AS minutes").
		Where("status IN ?", []models.ReservationStatus{models.ReservationTentative, models.ReservationConfirmed}).
		Group("window_id").Scan(&held).Error
	if err != nil {
		return nil, fmt.Errorf("sum held minutes: %w", err)
	}
	err = q.Model(&models.Reservation{}).Scopes(scope).
		Select("window_id, COALESCE(SUM(estimated_minutes), 0) AS minutes").
		Where("status = ?", models.ReservationConverted).
		Group("window_id").Scan(&converted).Error
	if err != nil {
		return nil, fmt.Errorf("sum converted minutes: %w", err)
	}
	err = q.Model(&models.Batch{}).Scopes(scope).
		Select("window_id, COALESCE(SUM(production_minutes), 0) AS minutes").
		Group("window_id").Scan(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("sum batch minutes: %w", err)
	}

	out := map[string]expected{}
	for _, h := range held {
		e := out[h.WindowID]
		e.Reserved += h.Minutes
		out[h.WindowID] = e
	}
	for _, c := range append(converted, batches...) {
		e := out[c.WindowID]
		e.Used += c.Minutes
		out[c.WindowID] = e
	}
	return out, nil
}

// Repair resets a drifted window's counters to the justified values. The
// window row is locked while the sums are taken so concurrent transitions
// cannot slip between the read and the write.
func (s *Service) Repair(ctx context.Context, input RepairInput) (RepairResult, error) {
	switch input.Type {
	case FindingReservedDrift, FindingUsedDrift:
	default:
		return RepairResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFinding, input.Type)
	}

	var result RepairResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var w models.CapacityWindow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", input.ResourceID).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = RepairResult{Message: "window not found"}
				return nil
			}
			return err
		}

		want, err := expectedFor(tx, w.ID)
		if err != nil {
			return err
		}
		e := want[w.ID]
		if w.UsedMinutes == e.Used && w.ReservedMinutes == e.Reserved {
			result = RepairResult{Message: "window counters already consistent"}
			return nil
		}

		if err := s.windows.WithTx(tx).Reconcile(ctx, w.ID, e.Used, e.Reserved); err != nil {
			return fmt.Errorf("reconcile window %s: %w", w.ID, err)
		}
		result = RepairResult{
			Changed: true,
			Message: "window counters reset from records",
			Details: map[string]any{
				"used_before":     w.UsedMinutes,
				"used_after":      e.Used,
				"reserved_before": w.ReservedMinutes,
				"reserved_after":  e.Reserved,
			},
		}
		return nil
	})
	if err != nil {
		return RepairResult{}, err
	}

	if result.Changed {
		s.logger.Warn().Str("window_id", input.ResourceID).Interface("details", result.Details).Msg("window counters repaired")
	}
	return result, nil
}
