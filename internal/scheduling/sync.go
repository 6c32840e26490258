/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"strings"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

// SyncOrder records an order pushed by the order service so the planner can
// see it. The delivery date is derived in the plant time zone.
func (s *Service) SyncOrder(ctx context.Context, o models.Order) (*models.Order, error) {
	var out []Violation
	if strings.TrimSpace(o.ID) == "" {
		out = append(out, Violation{Field: "id", Message: "The order id is required."})
	}
	if o.CustomerID == "" || o.ProductID == "" {
		out = append(out, Violation{Field: "product_id", Message: "Customer and product are required."})
	}
	if !o.RequestedActivity.IsPositive() {
		out = append(out, Violation{Field: "requested_activity", Message: "Requested activity must be greater than zero."})
	}
	unit, err := catalog.NormalizeUnit(o.ActivityUnit)
	if err != nil {
		out = append(out, Violation{Field: "activity_unit", Message: err.Error()})
	}
	if o.DeliveryTimeStart.IsZero() {
		out = append(out, Violation{Field: "delivery_time_start", Message: "The delivery time is required."})
	}
	switch o.Status {
	case models.OrderPending, models.OrderValidated, models.OrderScheduled, models.OrderCancelled:
	default:
		out = append(out, Violation{Field: "status", Message: "Unknown order status " + string(o.Status) + "."})
	}
	if err := invalid(out); err != nil {
		return nil, err
	}

	o.ActivityUnit = unit
	o.DeliveryDate = clock.Date(o.DeliveryTimeStart, s.loc)
	o.UpdatedAt = s.clock.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = o.UpdatedAt
	}
	if err := s.orders.Upsert(ctx, &o); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, o.ID)
}

// SyncCustomer records a customer pushed by the customer directory.
func (s *Service) SyncCustomer(ctx context.Context, c models.Customer) (*models.Customer, error) {
	if strings.TrimSpace(c.ID) == "" {
		return nil, invalid([]Violation{{Field: "id", Message: "The customer id is required."}})
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock.Now()
	}
	if err := s.orders.UpsertCustomer(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
