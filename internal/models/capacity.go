/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// CapacityWindow is a bounded production interval on one calendar day.
// Counters are only changed through the capacity store primitives.
type CapacityWindow struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	Date            string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_window_slot,priority:1;index:idx_window_date" json:"date"`
	StartTime       time.Time `gorm:"not null;uniqueIndex:idx_window_slot,priority:2" json:"start_time"`
	EndTime         time.Time `gorm:"not null;uniqueIndex:idx_window_slot,priority:3" json:"end_time"`
	CapacityMinutes int       `gorm:"not null" json:"capacity_minutes"`
	UsedMinutes     int       `gorm:"not null;default:0" json:"used_minutes"`
	ReservedMinutes int       `gorm:"not null;default:0" json:"reserved_minutes"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`
	Notes           string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (CapacityWindow) TableName() string {
	return "capacity_windows"
}

// Overlaps reports whether the two windows share any instant.
func (w CapacityWindow) Overlaps(start, end time.Time) bool {
	return w.StartTime.Before(end) && start.Before(w.EndTime)
}

// SameSlot reports whether the window covers exactly [start, end).
func (w CapacityWindow) SameSlot(start, end time.Time) bool {
	return w.StartTime.Equal(start) && w.EndTime.Equal(end)
}

// Contains reports whether t falls in [StartTime, EndTime).
func (w CapacityWindow) Contains(t time.Time) bool {
	return !t.Before(w.StartTime) && t.Before(w.EndTime)
}
