/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/export"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/integrity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// ErrExportDisabled is returned when no object store is configured.
var ErrExportDisabled = errors.New("calendar export is not configured")

// ExpireDue runs one expiry pass now. The periodic sweep calls the same code.
func (s *Service) ExpireDue(ctx context.Context) (reservation.SweepResult, error) {
	return s.sweeper.RunOnce(ctx)
}

// ExportCalendar writes a snapshot of the calendar, inactive windows
// included, and returns where it went.
func (s *Service) ExportCalendar(ctx context.Context, startDate, endDate, format, actor string) (_ *export.Result, err error) {
	ctx, span := telemetry.StartOperation(ctx, "ExportCalendar", map[string]any{
		"start_date": startDate,
		"end_date":   endDate,
		"format":     format,
	})
	defer func() { telemetry.EndOperation(span, err) }()

	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}

	cal, err := s.GetCapacityCalendar(ctx, startDate, endDate, true)
	if err != nil {
		return nil, err
	}
	res, err := s.exporter.Export(ctx, *cal, f)
	if err != nil {
		return nil, err
	}

	s.publish(events.EventCalendarExported, events.Payload{
		events.KeyActor:        actor,
		events.KeyResourceType: "calendar_export",
		events.KeyResourceID:   res.Key,
		"start_date":           startDate,
		"end_date":             endDate,
		"format":               string(f),
	})
	return &res, nil
}

// CheckIntegrity compares every window's counters with the reservation
// ledger and batches.
func (s *Service) CheckIntegrity(ctx context.Context) (_ *integrity.Report, err error) {
	ctx, span := telemetry.StartOperation(ctx, "CheckIntegrity", nil)
	defer func() { telemetry.EndOperation(span, err) }()

	report, err := s.integrity.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range report.Findings {
		s.publish(events.EventIntegrityAlert, events.Payload{
			events.KeyResourceType: "capacity_window",
			events.KeyResourceID:   f.ResourceID,
			events.KeyWindowID:     f.WindowID,
			"type":                 string(f.Type),
			"summary":              f.Summary,
		})
	}
	return report, nil
}

// RepairIntegrity rewrites one window's counters from the records.
func (s *Service) RepairIntegrity(ctx context.Context, input integrity.RepairInput, actor string) (_ *integrity.RepairResult, err error) {
	ctx, span := telemetry.StartOperation(ctx, "RepairIntegrity", map[string]any{
		"type":        string(input.Type),
		"resource_id": input.ResourceID,
	})
	defer func() { telemetry.EndOperation(span, err) }()

	if input.ResourceID == "" {
		return nil, invalid([]Violation{{Field: "resource_id", Message: "Name the window to repair."}})
	}
	res, err := s.integrity.Repair(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("repair %s: %w", input.ResourceID, err)
	}
	if res.Changed {
		s.capacityChanged(ctx, input.ResourceID)
		s.publish(events.EventIntegrityRepaired, events.Payload{
			events.KeyActor:        actor,
			events.KeyResourceType: "capacity_window",
			events.KeyResourceID:   input.ResourceID,
			events.KeyWindowID:     input.ResourceID,
			"type":                 string(input.Type),
			"details":              res.Details,
		})
	}
	return &res, nil
}
