/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationTentative ReservationStatus = "TENTATIVE"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationConverted ReservationStatus = "CONVERTED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

func (s ReservationStatus) String() string { return string(s) }

// IsValid reports whether s is a known status.
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationTentative, ReservationConfirmed, ReservationConverted, ReservationCancelled, ReservationExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationConverted, ReservationCancelled, ReservationExpired:
		return true
	}
	return false
}

// HoldsCapacity reports whether a reservation in state s holds reserved minutes.
func (s ReservationStatus) HoldsCapacity() bool {
	return s == ReservationTentative || s == ReservationConfirmed
}

// Reservation is a hold on window minutes ahead of a firm order.
// Rows are never deleted.
type Reservation struct {
	ID                string            `gorm:"type:uuid;primaryKey" json:"id"`
	ReservationNumber string            `gorm:"type:varchar(32);uniqueIndex;not null" json:"reservation_number"`
	CustomerID        string            `gorm:"type:varchar(64);index;not null" json:"customer_id"`
	ProductID         string            `gorm:"type:varchar(64);index;not null" json:"product_id"`
	WindowID          string            `gorm:"type:uuid;index;not null" json:"window_id"`
	RequestedDate     string            `gorm:"type:varchar(10);index;not null" json:"requested_date"`
	RequestedActivity decimal.Decimal   `gorm:"type:decimal(14,4);not null" json:"requested_activity"`
	ActivityUnit      string            `gorm:"type:varchar(8);not null" json:"activity_unit"`
	NumberOfDoses     int               `gorm:"not null" json:"number_of_doses"`
	EstimatedMinutes  int               `gorm:"not null" json:"estimated_minutes"`
	Notes             string            `gorm:"type:text" json:"notes,omitempty"`
	Status            ReservationStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	StatusReason      string            `gorm:"type:varchar(255)" json:"status_reason,omitempty"`
	OrderID           *string           `gorm:"type:uuid;index" json:"order_id,omitempty"`
	CreatedBy         string            `gorm:"type:varchar(128)" json:"created_by,omitempty"`
	ConfirmedAt       *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	ExpiredAt         *time.Time        `json:"expired_at,omitempty"`
	ConvertedAt       *time.Time        `json:"converted_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	Window *CapacityWindow `gorm:"foreignKey:WindowID" json:"window,omitempty"`
}

// TableName returns the table name for GORM.
func (Reservation) TableName() string {
	return "reservations"
}

// Sequence is a monotonically increasing counter per scope.
// Values handed out are never reused.
type Sequence struct {
	Scope     string `gorm:"type:varchar(64);primaryKey"`
	NextValue int64  `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (Sequence) TableName() string {
	return "sequences"
}
