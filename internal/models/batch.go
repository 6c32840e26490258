/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus is the production state of a materialized batch.
type BatchStatus string

const (
	BatchPlanned BatchStatus = "PLANNED"
)

// Batch is a production run materialized from an accepted suggestion.
// Its later lifecycle (QC, release, dispensing) belongs to production.
type Batch struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	BatchNumber       string          `gorm:"type:varchar(48);uniqueIndex;not null" json:"batch_number"`
	ProductID         string          `gorm:"type:varchar(64);index;not null" json:"product_id"`
	WindowID          string          `gorm:"type:uuid;index;not null" json:"window_id"`
	PlannedStart      time.Time       `gorm:"not null" json:"planned_start"`
	PlannedEnd        time.Time       `gorm:"not null" json:"planned_end"`
	ProductionMinutes int             `gorm:"not null" json:"production_minutes"`
	TotalActivity     decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"total_activity"`
	ActivityUnit      string          `gorm:"type:varchar(8);not null" json:"activity_unit"`
	OrderIDs          []string        `gorm:"type:text;serializer:json" json:"order_ids"`
	Status            BatchStatus     `gorm:"type:varchar(16);not null" json:"status"`
	CreatedBy         string          `gorm:"type:varchar(128)" json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// TableName returns the table name for GORM.
func (Batch) TableName() string {
	return "batches"
}
