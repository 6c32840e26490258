/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package capacity

import (
	"math"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

// Status classifies a window's fill level.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusNearFull Status = "NEAR_FULL"
	StatusFull     Status = "FULL"
)

// NearFullPercent is the utilization at which a window is NEAR_FULL.
const NearFullPercent = 70

// View is a window with its derived fields. Consumers read these instead of
// recomputing them.
type View struct {
	models.CapacityWindow
	CommittedMinutes   int    `json:"committed_minutes"`
	AvailableMinutes   int    `json:"available_minutes"`
	UtilizationPercent int    `json:"utilization_percent"`
	Status             Status `json:"status"`
}

// Describe computes the derived fields of w.
func Describe(w models.CapacityWindow) View {
	available := w.CapacityMinutes - w.UsedMinutes - w.ReservedMinutes
	util := Utilization(w.UsedMinutes+w.ReservedMinutes, w.CapacityMinutes)

	status := StatusOpen
	switch {
	case available <= 0:
		status = StatusFull
	case util >= NearFullPercent:
		status = StatusNearFull
	}

	return View{
		CapacityWindow:     w,
		CommittedMinutes:   w.UsedMinutes,
		AvailableMinutes:   available,
		UtilizationPercent: util,
		Status:             status,
	}
}

// Utilization returns round(100 * booked / capacity).
func Utilization(booked, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(booked) / float64(capacity)))
}

// DaySummary totals the active windows of one calendar day.
type DaySummary struct {
	Date               string `json:"date"`
	Windows            int    `json:"windows"`
	CapacityMinutes    int    `json:"capacity_minutes"`
	UsedMinutes        int    `json:"used_minutes"`
	ReservedMinutes    int    `json:"reserved_minutes"`
	AvailableMinutes   int    `json:"available_minutes"`
	UtilizationPercent int    `json:"utilization_percent"`
}

// Calendar is the capacity calendar for a date range.
type Calendar struct {
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	Windows   []View       `json:"windows"`
	Days      []DaySummary `json:"days"`
}

// BuildCalendar describes windows and totals them per day. Inactive windows
// are listed but excluded from the day totals. windows must be ordered by
// start time.
func BuildCalendar(startDate, endDate string, windows []models.CapacityWindow) Calendar {
	cal := Calendar{
		StartDate: startDate,
		EndDate:   endDate,
		Windows:   make([]View, 0, len(windows)),
		Days:      []DaySummary{},
	}

	index := map[string]int{}
	for _, w := range windows {
		cal.Windows = append(cal.Windows, Describe(w))
		if !w.IsActive {
			continue
		}
		i, ok := index[w.Date]
		if !ok {
			i = len(cal.Days)
			index[w.Date] = i
			cal.Days = append(cal.Days, DaySummary{Date: w.Date})
		}
		d := &cal.Days[i]
		d.Windows++
		d.CapacityMinutes += w.CapacityMinutes
		d.UsedMinutes += w.UsedMinutes
		d.ReservedMinutes += w.ReservedMinutes
	}

	for i := range cal.Days {
		d := &cal.Days[i]
		d.AvailableMinutes = d.CapacityMinutes - d.UsedMinutes - d.ReservedMinutes
		d.UtilizationPercent = Utilization(d.UsedMinutes+d.ReservedMinutes, d.CapacityMinutes)
	}
	return cal
}
