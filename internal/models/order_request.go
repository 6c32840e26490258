/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// OrderRequestStatus tracks delivery of an order-creation request.
type OrderRequestStatus string

const (
	OrderRequestPending   OrderRequestStatus = "PENDING"
	OrderRequestDelivered OrderRequestStatus = "DELIVERED"
	OrderRequestFailed    OrderRequestStatus = "FAILED"
)

// OrderRequest is an outbox row written in the same transaction that
// converts a reservation. OrderID is assigned here and reused by the
// order service so retries stay idempotent.
type OrderRequest struct {
	ID            string             `gorm:"type:uuid;primaryKey" json:"id"`
	ReservationID string             `gorm:"type:uuid;uniqueIndex;not null" json:"reservation_id"`
	OrderID       string             `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	Payload       string             `gorm:"type:text;not null" json:"payload"`
	Status        OrderRequestStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Attempts      int                `gorm:"not null;default:0" json:"attempts"`
	LastError     string             `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt   *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (OrderRequest) TableName() string {
	return "order_requests"
}
