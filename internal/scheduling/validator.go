/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/windowgen"
)

// Request limits.
const (
	MaxDosesPerReservation = 200
	MaxNotesLength         = 2000
)

// Violation is one rejected field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ReservationRequest is the input of CreateReservation. WindowID is optional;
// when empty the earliest window on RequestedDate with room is chosen.
type ReservationRequest struct {
	CustomerID        string          `json:"customer_id"`
	ProductID         string          `json:"product_id"`
	RequestedDate     string          `json:"requested_date"`
	RequestedActivity decimal.Decimal `json:"requested_activity"`
	ActivityUnit      string          `json:"activity_unit"`
	NumberOfDoses     int             `json:"number_of_doses"`
	Notes             string          `json:"notes,omitempty"`
	WindowID          string          `json:"window_id,omitempty"`
}

// WindowRequest is the input of CreateWindow. Times are plant-local HH:MM.
type WindowRequest struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	CapacityMinutes int    `json:"capacity_minutes"`
	AllowOverlap    bool   `json:"allow_overlap,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// GenerateRequest is the input of GenerateWindows.
type GenerateRequest struct {
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	DailyStartTime  string `json:"daily_start_time"`
	DailyEndTime    string `json:"daily_end_time"`
	CapacityMinutes int    `json:"capacity_minutes"`
	ExcludeWeekends bool   `json:"exclude_weekends"`
	Notes           string `json:"notes,omitempty"`
}

// Validator checks requests before they reach the stores. It knows the plant
// calendar so it can reject dates already in the past.
type Validator struct {
	clock clock.Clock
	loc   *time.Location
}

// NewValidator creates a validator for the plant time zone.
func NewValidator(c clock.Clock, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{clock: c, loc: loc}
}

func (v *Validator) today() string {
	return clock.Date(v.clock.Now(), v.loc)
}

// ValidateReservation returns every problem with req, or nil.
func (v *Validator) ValidateReservation(req ReservationRequest) []Violation {
	var out []Violation
	add := func(field, format string, args ...any) {
		out = append(out, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(req.CustomerID) == "" {
		add("customer_id", "Choose the customer the reservation is for.")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		add("product_id", "Choose a product.")
	}

	if _, err := clock.ParseDate(req.RequestedDate, v.loc); err != nil {
		add("requested_date", "Use a date in YYYY-MM-DD form, got %q.", req.RequestedDate)
	} else if req.RequestedDate < v.today() {
		add("requested_date", "The requested date %s is in the past.", req.RequestedDate)
	}

	if !req.RequestedActivity.IsPositive() {
		add("requested_activity", "Requested activity must be greater than zero.")
	}
	if _, err := catalog.NormalizeUnit(req.ActivityUnit); err != nil {
		add("activity_unit", "Unknown activity unit %q. Use mCi, Ci, MBq or GBq.", req.ActivityUnit)
	}

	switch {
	case req.NumberOfDoses <= 0:
		add("number_of_doses", "At least one dose is required.")
	case req.NumberOfDoses > MaxDosesPerReservation:
		add("number_of_doses", "At most %d doses fit in one reservation.", MaxDosesPerReservation)
	}

	if len(req.Notes) > MaxNotesLength {
		add("notes", "Notes are limited to %d characters.", MaxNotesLength)
	}
	return out
}

// ValidateWindow checks a manual window request.
func (v *Validator) ValidateWindow(req WindowRequest) []Violation {
	var out []Violation
	if _, err := clock.ParseDate(req.Date, v.loc); err != nil {
		out = append(out, Violation{Field: "date", Message: fmt.Sprintf("Use a date in YYYY-MM-DD form, got %q.", req.Date)})
	}
	out = append(out, v.validateTimes(req.StartTime, req.EndTime, "start_time", "end_time")...)
	if req.CapacityMinutes <= 0 {
		out = append(out, Violation{Field: "capacity_minutes", Message: "Capacity must be a positive number of minutes."})
	}
	return out
}

// ValidateGenerate checks a bulk generation request.
func (v *Validator) ValidateGenerate(req GenerateRequest) []Violation {
	var out []Violation
	start, errStart := clock.ParseDate(req.StartDate, v.loc)
	if errStart != nil {
		out = append(out, Violation{Field: "start_date", Message: fmt.Sprintf("Use a date in YYYY-MM-DD form, got %q.", req.StartDate)})
	}
	end, errEnd := clock.ParseDate(req.EndDate, v.loc)
	if errEnd != nil {
		out = append(out, Violation{Field: "end_date", Message: fmt.Sprintf("Use a date in YYYY-MM-DD form, got %q.", req.EndDate)})
	}
	if errStart == nil && errEnd == nil && end.Before(start) {
		out = append(out, Violation{Field: "end_date", Message: "The end date is before the start date."})
	}
	out = append(out, v.validateTimes(req.DailyStartTime, req.DailyEndTime, "daily_start_time", "daily_end_time")...)
	if req.CapacityMinutes <= 0 {
		out = append(out, Violation{Field: "capacity_minutes", Message: "Capacity must be a positive number of minutes."})
	}
	return out
}

func (v *Validator) validateTimes(start, end, startField, endField string) []Violation {
	var out []Violation
	s, errS := windowgen.ParseTimeOfDay(start)
	if errS != nil {
		out = append(out, Violation{Field: startField, Message: fmt.Sprintf("Use a time in HH:MM form, got %q.", start)})
	}
	e, errE := windowgen.ParseTimeOfDay(end)
	if errE != nil {
		out = append(out, Violation{Field: endField, Message: fmt.Sprintf("Use a time in HH:MM form, got %q.", end)})
	}
	if errS == nil && errE == nil && e.Hour*60+e.Minute <= s.Hour*60+s.Minute {
		out = append(out, Violation{Field: endField, Message: fmt.Sprintf("The window must end after it starts (%s to %s).", s, e)})
	}
	return out
}

// invalid wraps violations as a collaborator-facing error.
func invalid(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &Error{
		Code:       CodeValidationFailed,
		Message:    violations[0].Message,
		Violations: violations,
	}
}
