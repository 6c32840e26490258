/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
)

// CreateReservation holds capacity for a customer's request. With no window
// id the earliest window on the requested date that still has room is used;
// a window that fills up between the lookup and the reserve is skipped.
func (s *Service) CreateReservation(ctx context.Context, req ReservationRequest, actor string) (_ *models.Reservation, err error) {
	ctx, span := telemetry.StartOperation(ctx, "CreateReservation", map[string]any{
		"customer_id":    req.CustomerID,
		"product_id":     req.ProductID,
		"requested_date": req.RequestedDate,
	})
	defer func() { telemetry.EndOperation(span, err) }()

	if err := invalid(s.validator.ValidateReservation(req)); err != nil {
		return nil, err
	}

	ok, err := s.orders.CustomerExists(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCustomer, req.CustomerID)
	}

	product, err := s.catalog.Product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	unit, err := catalog.NormalizeUnit(req.ActivityUnit)
	if err != nil {
		return nil, err
	}

	params := reservation.CreateParams{
		CustomerID:        req.CustomerID,
		ProductID:         req.ProductID,
		WindowID:          req.WindowID,
		RequestedDate:     req.RequestedDate,
		RequestedActivity: req.RequestedActivity,
		ActivityUnit:      unit,
		NumberOfDoses:     req.NumberOfDoses,
		EstimatedMinutes:  product.EstimatedMinutes(req.NumberOfDoses),
		Notes:             req.Notes,
		CreatedBy:         actor,
	}

	var r *models.Reservation
	if params.WindowID != "" {
		r, err = s.ledger.Create(ctx, params)
		if errors.Is(err, capacity.ErrCapacityExceeded) {
			telemetry.CapacityRejectionsTotal.WithLabelValues("capacity_exceeded").Inc()
		}
	} else {
		r, err = s.createBestFit(ctx, params)
	}
	if err != nil {
		return nil, err
	}

	s.publish(events.EventReservationCreated, events.ReservationPayload(r, actor))
	s.capacityChanged(ctx, r.WindowID)
	return r, nil
}

func (s *Service) createBestFit(ctx context.Context, params reservation.CreateParams) (*models.Reservation, error) {
	candidates, err := s.windows.Candidates(ctx, params.RequestedDate, params.EstimatedMinutes)
	if err != nil {
		return nil, err
	}
	for _, w := range candidates {
		params.WindowID = w.ID
		r, err := s.ledger.Create(ctx, params)
		switch {
		case err == nil:
			return r, nil
		case errors.Is(err, capacity.ErrCapacityExceeded), errors.Is(err, capacity.ErrWindowInactive):
			s.logger.Debug().Str("window_id", w.ID).Msg("candidate window filled concurrently, trying next")
			continue
		default:
			return nil, err
		}
	}
	telemetry.CapacityRejectionsTotal.WithLabelValues("no_capacity").Inc()
	return nil, fmt.Errorf("%w: %d minutes on %s", ErrNoCapacity, params.EstimatedMinutes, params.RequestedDate)
}

// ConfirmReservation moves a TENTATIVE reservation to CONFIRMED.
func (s *Service) ConfirmReservation(ctx context.Context, id, actor string) (_ *models.Reservation, err error) {
	ctx, span := telemetry.StartOperation(ctx, "ConfirmReservation", map[string]any{"reservation_id": id})
	defer func() { telemetry.EndOperation(span, err) }()

	r, err := s.ledger.Confirm(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventReservationConfirmed, events.ReservationPayload(r, actor))
	return r, nil
}

// CancelReservation releases the reservation's minutes.
func (s *Service) CancelReservation(ctx context.Context, id, reason, actor string) (_ *models.Reservation, err error) {
	ctx, span := telemetry.StartOperation(ctx, "CancelReservation", map[string]any{"reservation_id": id})
	defer func() { telemetry.EndOperation(span, err) }()

	if len(reason) > 255 {
		return nil, invalid([]Violation{{Field: "reason", Message: "The reason is limited to 255 characters."}})
	}

	r, err := s.ledger.Cancel(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventReservationCancelled, events.ReservationPayload(r, actor))
	s.capacityChanged(ctx, r.WindowID)
	return r, nil
}

// ConvertResult is the outcome of ConvertReservation.
type ConvertResult struct {
	Reservation *models.Reservation `json:"reservation"`
	OrderID     string              `json:"created_order_id"`
}

// ConvertReservation commits the reservation's minutes and queues the
// order-creation request for the order service.
func (s *Service) ConvertReservation(ctx context.Context, id, actor string) (_ *ConvertResult, err error) {
	ctx, span := telemetry.StartOperation(ctx, "ConvertReservation", map[string]any{"reservation_id": id})
	defer func() { telemetry.EndOperation(span, err) }()

	r, orderID, err := s.ledger.Convert(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventReservationConverted, events.ReservationPayload(r, actor))
	s.capacityChanged(ctx, r.WindowID)
	return &ConvertResult{Reservation: r, OrderID: orderID}, nil
}

// GetReservation returns one reservation with its window.
func (s *Service) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return s.ledger.Get(ctx, id)
}

// ListReservations returns reservations matching f.
func (s *Service) ListReservations(ctx context.Context, f reservation.Filter) ([]models.Reservation, error) {
	for _, st := range f.Statuses {
		if !st.IsValid() {
			return nil, invalid([]Violation{{Field: "status", Message: fmt.Sprintf("Unknown status %q.", st)}})
		}
	}
	return s.ledger.List(ctx, f)
}

// CopyReservationAsDraft pre-fills a new request from an existing
// reservation's commercial attributes. Date and window are left for the
// caller to choose.
func (s *Service) CopyReservationAsDraft(ctx context.Context, id string) (*ReservationRequest, error) {
	r, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReservationRequest{
		CustomerID:        r.CustomerID,
		ProductID:         r.ProductID,
		RequestedActivity: r.RequestedActivity,
		ActivityUnit:      r.ActivityUnit,
		NumberOfDoses:     r.NumberOfDoses,
		Notes:             r.Notes,
	}, nil
}
