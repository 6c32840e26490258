/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "github.com/salahatech/KFSH-Ordering-sub001/internal/models"

// Well-known payload keys.
const (
	KeyActor        = "actor"
	KeyResourceType = "resource_type"
	KeyResourceID   = "resource_id"
	KeyWindowID     = "window_id"
)

// ReservationPayload describes a reservation after a transition.
func ReservationPayload(r *models.Reservation, actor string) Payload {
	p := Payload{
		KeyActor:             actor,
		KeyResourceType:      "reservation",
		KeyResourceID:        r.ID,
		KeyWindowID:          r.WindowID,
		"reservation_number": r.ReservationNumber,
		"customer_id":        r.CustomerID,
		"product_id":         r.ProductID,
		"requested_date":     r.RequestedDate,
		"estimated_minutes":  r.EstimatedMinutes,
		"status":             string(r.Status),
	}
	if r.StatusReason != "" {
		p["reason"] = r.StatusReason
	}
	if r.OrderID != nil {
		p["order_id"] = *r.OrderID
	}
	return p
}

// WindowPayload describes a window after a change.
func WindowPayload(w *models.CapacityWindow, actor string) Payload {
	return Payload{
		KeyActor:           actor,
		KeyResourceType:    "capacity_window",
		KeyResourceID:      w.ID,
		KeyWindowID:        w.ID,
		"date":             w.Date,
		"capacity_minutes": w.CapacityMinutes,
		"used_minutes":     w.UsedMinutes,
		"reserved_minutes": w.ReservedMinutes,
		"is_active":        w.IsActive,
	}
}

// BatchPayload describes a newly created batch.
func BatchPayload(b *models.Batch, actor string) Payload {
	return Payload{
		KeyActor:             actor,
		KeyResourceType:      "batch",
		KeyResourceID:        b.ID,
		KeyWindowID:          b.WindowID,
		"batch_number":       b.BatchNumber,
		"product_id":         b.ProductID,
		"order_ids":          b.OrderIDs,
		"production_minutes": b.ProductionMinutes,
		"planned_start":      b.PlannedStart,
	}
}

// CapacityChanged announces that a window's counters moved.
func CapacityChanged(windowID string) Payload {
	return Payload{KeyWindowID: windowID}
}

// Publish is a nil-safe helper for optional brokers.
func Publish(b Broker, eventType EventType, payload Payload) {
	if b == nil {
		return
	}
	b.Publish(eventType, payload)
}
