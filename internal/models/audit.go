/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

const (
	AuditActionReservationCreate  AuditAction = "reservation.create"
	AuditActionReservationConfirm AuditAction = "reservation.confirm"
	AuditActionReservationCancel  AuditAction = "reservation.cancel"
	AuditActionReservationExpire  AuditAction = "reservation.expire"
	AuditActionReservationConvert AuditAction = "reservation.convert"
	AuditActionWindowsGenerate    AuditAction = "windows.generate"
	AuditActionWindowCreate       AuditAction = "window.create"
	AuditActionWindowDeactivate   AuditAction = "window.deactivate"
	AuditActionBatchCreate        AuditAction = "batch.create"
	AuditActionIntegrityRepair    AuditAction = "integrity.repair"
	AuditActionCalendarExport     AuditAction = "calendar.export"
	AuditActionIntegrityScan      AuditAction = "integrity.scan"
	AuditActionServiceKeyCreate   AuditAction = "service_key.create"
	AuditActionServiceKeyRevoke   AuditAction = "service_key.revoke"
)

// AuditLog records state changes for traceability.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null" json:"timestamp"`
	Actor        string         `gorm:"type:varchar(128);index:idx_audit_actor" json:"actor,omitempty"` // empty for system actions
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null" json:"action"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resource_type,omitempty"`
	ResourceID   string         `gorm:"type:varchar(64);index:idx_audit_resource" json:"resource_id,omitempty"`
	Details      map[string]any `gorm:"type:text;serializer:json" json:"details,omitempty"`
	IPAddress    string         `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
