/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus mirrors the order collaborator's lifecycle as far as scheduling cares.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderValidated OrderStatus = "VALIDATED"
	OrderScheduled OrderStatus = "SCHEDULED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is the scheduling read model of an order owned by the order service.
// DeliveryDate is the plant-local calendar day of DeliveryTimeStart.
type Order struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber       string          `gorm:"type:varchar(32);index" json:"order_number,omitempty"`
	CustomerID        string          `gorm:"type:varchar(64);index;not null" json:"customer_id"`
	ProductID         string          `gorm:"type:varchar(64);index;not null" json:"product_id"`
	ReservationID     *string         `gorm:"type:uuid;index" json:"reservation_id,omitempty"`
	RequestedActivity decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"requested_activity"`
	ActivityUnit      string          `gorm:"type:varchar(8);not null" json:"activity_unit"`
	DeliveryDate      string          `gorm:"type:varchar(10);index;not null" json:"delivery_date"`
	DeliveryTimeStart time.Time       `gorm:"not null" json:"delivery_time_start"`
	DeliveryTimeEnd   *time.Time      `json:"delivery_time_end,omitempty"`
	Status            OrderStatus     `gorm:"type:varchar(16);index;not null" json:"status"`
	BatchID           *string         `gorm:"type:uuid;index" json:"batch_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Order) TableName() string {
	return "orders"
}

// DecayReference is the instant the delivered dose must still meet the request.
func (o Order) DecayReference() time.Time {
	if o.DeliveryTimeEnd != nil && o.DeliveryTimeEnd.After(o.DeliveryTimeStart) {
		return *o.DeliveryTimeEnd
	}
	return o.DeliveryTimeStart
}

// Customer is the existence-check view of the customer directory.
type Customer struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (Customer) TableName() string {
	return "customers"
}
