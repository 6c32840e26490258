/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package export writes capacity calendar snapshots to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/storage"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for formats other than json and csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts "json" or "csv" in any case. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Result describes a written snapshot.
type Result struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Bytes int    `json:"bytes"`
}

// Exporter renders calendars and stores them.
type Exporter struct {
	store  storage.ObjectStore
	clock  clock.Clock
	logger zerolog.Logger
}

// NewExporter creates an exporter writing to store.
func NewExporter(store storage.ObjectStore, clk clock.Clock, logger zerolog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		clock:  clk,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// Key is the object key for a snapshot taken at now.
func Key(cal capacity.Calendar, format Format, now time.Time) string {
	return fmt.Sprintf("capacity-calendar/%s_%s/%s.%s",
		cal.StartDate, cal.EndDate, now.UTC().Format("20060102T150405Z"), format)
}

// Export renders cal in format and writes it.
func (e *Exporter) Export(ctx context.Context, cal capacity.Calendar, format Format) (Result, error) {
	data, contentType, err := Render(cal, format)
	if err != nil {
		return Result{}, err
	}

	key := Key(cal, format, e.clock.Now())
	if err := e.store.Put(ctx, key, data, contentType); err != nil {
		return Result{}, fmt.Errorf("store export: %w", err)
	}

	e.logger.Info().
		Str("key", key).
		Str("start_date", cal.StartDate).
		Str("end_date", cal.EndDate).
		Int("windows", len(cal.Windows)).
		Msg("capacity calendar exported")

	return Result{Key: key, URL: e.store.URL(key), Bytes: len(data)}, nil
}

// Render encodes cal and returns the bytes and their content type.
func Render(cal capacity.Calendar, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(cal, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("encode calendar: %w", err)
		}
		return data, "application/json", nil
	case FormatCSV:
		data, err := renderCSV(cal)
		if err != nil {
			return nil, "", err
		}
		return data, "text/csv", nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

var csvHeader = []string{
	"date", "window_id", "start_time", "end_time", "is_active",
	"capacity_minutes", "used_minutes", "reserved_minutes",
	"available_minutes", "utilization_percent", "status",
}

func renderCSV(cal capacity.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, v := range cal.Windows {
		row := []string{
			v.Date,
			v.ID,
			v.StartTime.UTC().Format(time.RFC3339),
			v.EndTime.UTC().Format(time.RFC3339),
			strconv.FormatBool(v.IsActive),
			strconv.Itoa(v.CapacityMinutes),
			strconv.Itoa(v.UsedMinutes),
			strconv.Itoa(v.ReservedMinutes),
			strconv.Itoa(v.AvailableMinutes),
			strconv.Itoa(v.UtilizationPercent),
			string(v.Status),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode calendar csv: %w", err)
	}
	return buf.Bytes(), nil
}
