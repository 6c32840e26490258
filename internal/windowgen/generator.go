/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package windowgen expands a date range and a daily template into capacity
// window drafts. It does not touch storage.
package windowgen

import (
	"errors"
	"fmt"
	"time"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/teambition/rrule-go"
)

// MaxRangeDays bounds a single generation request.
const MaxRangeDays = 366

var ErrInvalidTemplate = errors.New("invalid window template")

// TimeOfDay is a wall-clock time in the plant's zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q: want HH:MM", ErrInvalidTemplate, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// On returns the instant of t on the given day in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

// Template is the daily shape of generated windows.
type Template struct {
	StartDate       string
	EndDate         string
	DailyStart      TimeOfDay
	DailyEnd        TimeOfDay
	CapacityMinutes int
	ExcludeWeekends bool
	Notes           string
}

// Generator holds the plant calendar settings.
type Generator struct {
	loc     *time.Location
	weekend map[time.Weekday]bool
}

// New returns a generator for loc with the given weekend days.
func New(loc *time.Location, weekend []time.Weekday) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	g := &Generator{loc: loc, weekend: map[time.Weekday]bool{}}
	for _, d := range weekend {
		g.weekend[d] = true
	}
	return g
}

// Generate returns one draft per eligible day in [StartDate, EndDate].
func (g *Generator) Generate(tpl Template) ([]capacity.Draft, error) {
	start, err := clock.ParseDate(tpl.StartDate, g.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", ErrInvalidTemplate, tpl.StartDate)
	}
	end, err := clock.ParseDate(tpl.EndDate, g.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q", ErrInvalidTemplate, tpl.EndDate)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidTemplate)
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range longer than %d days", ErrInvalidTemplate, MaxRangeDays)
	}
	if tpl.DailyEnd.minutes() <= tpl.DailyStart.minutes() {
		return nil, fmt.Errorf("%w: daily end %s must be after daily start %s", ErrInvalidTemplate, tpl.DailyEnd, tpl.DailyStart)
	}
	if tpl.CapacityMinutes <= 0 {
		return nil, fmt.Errorf("%w: capacity minutes must be positive", ErrInvalidTemplate)
	}

	days, err := g.days(start, end, tpl.ExcludeWeekends)
	if err != nil {
		return nil, err
	}

	drafts := make([]capacity.Draft, 0, len(days))
	for _, day := range days {
		drafts = append(drafts, capacity.Draft{
			Date:            clock.Date(day, g.loc),
			StartTime:       tpl.DailyStart.On(day, g.loc),
			EndTime:         tpl.DailyEnd.On(day, g.loc),
			CapacityMinutes: tpl.CapacityMinutes,
			Notes:           tpl.Notes,
		})
	}
	return drafts, nil
}

// days expands the range with a DAILY rule, restricted to working weekdays
// when weekends are excluded.
func (g *Generator) days(start, end time.Time, excludeWeekends bool) ([]time.Time, error) {
	opt := rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Until:   end,
	}
	if excludeWeekends {
		for _, d := range []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday} {
			if !g.weekend[d] {
				opt.Byweekday = append(opt.Byweekday, weekdays[d])
			}
		}
		if len(opt.Byweekday) == 0 {
			return nil, nil
		}
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence: %w", err)
	}
	return rule.All(), nil
}

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}
