/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/windowgen"
)

// MaxCalendarDays bounds one calendar query.
const MaxCalendarDays = 366

// GetCapacityCalendar returns windows in [startDate, endDate] with derived
// fields and per-day totals. Inactive windows are included only on request.
func (s *Service) GetCapacityCalendar(ctx context.Context, startDate, endDate string, includeInactive bool) (*capacity.Calendar, error) {
	if err := s.validateRange(startDate, endDate); err != nil {
		return nil, err
	}

	if cal, ok := s.cache.GetCalendar(ctx, startDate, endDate, includeInactive); ok {
		return cal, nil
	}

	windows, err := s.windows.ListInRange(ctx, startDate, endDate, includeInactive)
	if err != nil {
		return nil, err
	}
	cal := capacity.BuildCalendar(startDate, endDate, windows)

	if err := s.cache.SetCalendar(ctx, startDate, endDate, includeInactive, &cal); err != nil {
		s.logger.Debug().Err(err).Msg("calendar cache write failed")
	}
	return &cal, nil
}

func (s *Service) validateRange(startDate, endDate string) error {
	var out []Violation
	start, errStart := clock.ParseDate(startDate, s.loc)
	if errStart != nil {
		out = append(out, Violation{Field: "start_date", Message: fmt.Sprintf("Use a date in YYYY-MM-DD form, got %q.", startDate)})
	}
	end, errEnd := clock.ParseDate(endDate, s.loc)
	if errEnd != nil {
		out = append(out, Violation{Field: "end_date", Message: fmt.Sprintf("Use a date in YYYY-MM-DD form, got %q.", endDate)})
	}
	if errStart == nil && errEnd == nil {
		if end.Before(start) {
			out = append(out, Violation{Field: "end_date", Message: "The end date is before the start date."})
		} else if end.Sub(start).Hours() > MaxCalendarDays*24 {
			out = append(out, Violation{Field: "end_date", Message: fmt.Sprintf("A calendar covers at most %d days.", MaxCalendarDays)})
		}
	}
	return invalid(out)
}

// GenerateResult reports what GenerateWindows did with each eligible day.
type GenerateResult struct {
	Created    []models.CapacityWindow `json:"created"`
	Duplicates int                     `json:"duplicates"`
	Overlaps   []string                `json:"overlaps,omitempty"` // dates skipped for overlapping an active window
}

// GenerateWindows creates one window per eligible day. Days that already
// have the identical window are skipped, so re-running a range is harmless.
func (s *Service) GenerateWindows(ctx context.Context, req GenerateRequest, actor string) (_ *GenerateResult, err error) {
	ctx, span := telemetry.StartOperation(ctx, "GenerateWindows", map[string]any{
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
	})
	defer func() { telemetry.EndOperation(span, err) }()

	if err := invalid(s.validator.ValidateGenerate(req)); err != nil {
		return nil, err
	}
	start, _ := windowgen.ParseTimeOfDay(req.DailyStartTime)
	end, _ := windowgen.ParseTimeOfDay(req.DailyEndTime)

	drafts, err := s.generator.Generate(windowgen.Template{
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DailyStart:      start,
		DailyEnd:        end,
		CapacityMinutes: req.CapacityMinutes,
		ExcludeWeekends: req.ExcludeWeekends,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}

	res := &GenerateResult{Created: []models.CapacityWindow{}}
	for _, d := range drafts {
		w, err := s.windows.Insert(ctx, d, false)
		switch {
		case err == nil:
			res.Created = append(res.Created, *w)
			telemetry.WindowsGeneratedTotal.WithLabelValues("created").Inc()
		case errors.Is(err, capacity.ErrDuplicateWindow):
			res.Duplicates++
			telemetry.WindowsGeneratedTotal.WithLabelValues("duplicate").Inc()
		case errors.Is(err, capacity.ErrOverlappingWindow):
			res.Overlaps = append(res.Overlaps, d.Date)
			telemetry.WindowsGeneratedTotal.WithLabelValues("overlap").Inc()
		default:
			return res, fmt.Errorf("insert window for %s: %w", d.Date, err)
		}
	}

	s.logger.Info().
		Str("start_date", req.StartDate).
		Str("end_date", req.EndDate).
		Int("created", len(res.Created)).
		Int("duplicates", res.Duplicates).
		Int("overlaps", len(res.Overlaps)).
		Msg("capacity windows generated")

	if len(res.Created) > 0 {
		s.capacityChanged(ctx, "")
		s.publish(events.EventWindowsGenerated, events.Payload{
			events.KeyActor:        actor,
			events.KeyResourceType: "capacity_window",
			"start_date":           req.StartDate,
			"end_date":             req.EndDate,
			"created":              len(res.Created),
			"duplicates":           res.Duplicates,
		})
	}
	return res, nil
}

// CreateWindow adds a single window. An identical window is always a
// conflict; an overlapping one only without AllowOverlap.
func (s *Service) CreateWindow(ctx context.Context, req WindowRequest, actor string) (_ *models.CapacityWindow, err error) {
	ctx, span := telemetry.StartOperation(ctx, "CreateWindow", map[string]any{"date": req.Date})
	defer func() { telemetry.EndOperation(span, err) }()

	if err := invalid(s.validator.ValidateWindow(req)); err != nil {
		return nil, err
	}
	day, _ := clock.ParseDate(req.Date, s.loc)
	start, _ := windowgen.ParseTimeOfDay(req.StartTime)
	end, _ := windowgen.ParseTimeOfDay(req.EndTime)

	w, err := s.windows.Insert(ctx, capacity.Draft{
		Date:            req.Date,
		StartTime:       start.On(day, s.loc),
		EndTime:         end.On(day, s.loc),
		CapacityMinutes: req.CapacityMinutes,
		Notes:           req.Notes,
	}, req.AllowOverlap)
	if err != nil {
		return nil, err
	}

	s.capacityChanged(ctx, w.ID)
	s.publish(events.EventWindowCreated, events.WindowPayload(w, actor))
	return w, nil
}

// DeactivateWindow stops new reservations and batches from landing on a
// window. Existing holds keep their minutes.
func (s *Service) DeactivateWindow(ctx context.Context, id, actor string) (_ *models.CapacityWindow, err error) {
	ctx, span := telemetry.StartOperation(ctx, "DeactivateWindow", map[string]any{"window_id": id})
	defer func() { telemetry.EndOperation(span, err) }()

	w, err := s.windows.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.capacityChanged(ctx, w.ID)
	s.publish(events.EventWindowDeactivated, events.WindowPayload(w, actor))
	return w, nil
}
