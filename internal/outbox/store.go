/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package outbox stores order-creation requests written by reservation
// conversion and delivers them to the order collaborator.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderRequestPayload carries a converted reservation's commercial
// attributes. OrderID is assigned here so the order service can treat
// redelivery as idempotent.
type OrderRequestPayload struct {
	OrderID           string          `json:"order_id"`
	ReservationID     string          `json:"reservation_id"`
	ReservationNumber string          `json:"reservation_number"`
	CustomerID        string          `json:"customer_id"`
	ProductID         string          `json:"product_id"`
	WindowID          string          `json:"window_id"`
	RequestedDate     string          `json:"requested_date"`
	RequestedActivity decimal.Decimal `json:"requested_activity"`
	ActivityUnit      string          `json:"activity_unit"`
	NumberOfDoses     int             `json:"number_of_doses"`
	EstimatedMinutes  int             `json:"estimated_minutes"`
	Notes             string          `json:"notes,omitempty"`
	RequestedAt       time.Time       `json:"requested_at"`
}

// NewPayload builds the request for converting r into orderID.
func NewPayload(r *models.Reservation, orderID string, at time.Time) OrderRequestPayload {
	return OrderRequestPayload{
		OrderID:           orderID,
		ReservationID:     r.ID,
		ReservationNumber: r.ReservationNumber,
		CustomerID:        r.CustomerID,
		ProductID:         r.ProductID,
		WindowID:          r.WindowID,
		RequestedDate:     r.RequestedDate,
		RequestedActivity: r.RequestedActivity,
		ActivityUnit:      r.ActivityUnit,
		NumberOfDoses:     r.NumberOfDoses,
		EstimatedMinutes:  r.EstimatedMinutes,
		Notes:             r.Notes,
		RequestedAt:       at,
	}
}

// Enqueue writes a pending request in the caller's transaction.
func Enqueue(tx *gorm.DB, p OrderRequestPayload) (*models.OrderRequest, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}
	row := &models.OrderRequest{
		ID:            uuid.NewString(),
		ReservationID: p.ReservationID,
		OrderID:       p.OrderID,
		Payload:       string(body),
		Status:        models.OrderRequestPending,
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("enqueue order request: %w", err)
	}
	return row, nil
}

// Store reads and updates outbox rows.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FetchPending returns up to limit undelivered requests, oldest first.
// Rows that failed maxAttempts times are left for an operator.
func (s *Store) FetchPending(ctx context.Context, limit, maxAttempts int) ([]models.OrderRequest, error) {
	var rows []models.OrderRequest
	err := s.db.WithContext(ctx).
		Where("status IN ? AND attempts < ?", []models.OrderRequestStatus{models.OrderRequestPending, models.OrderRequestFailed}, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch pending order requests: %w", err)
	}
	return rows, nil
}

// CountPending returns the number of undelivered requests.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.OrderRequest{}).
		Where("status <> ?", models.OrderRequestDelivered).
		Count(&n).Error
	return n, err
}

// MarkDelivered records a successful delivery.
func (s *Store) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.OrderRequest{}).
		Where("id = ? AND status <> ?", id, models.OrderRequestDelivered).
		Updates(map[string]any{
			"status":       models.OrderRequestDelivered,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   "",
			"delivered_at": at,
		}).Error
}

// MarkFailed records a failed attempt.
func (s *Store) MarkFailed(ctx context.Context, id string, cause error) error {
	return s.db.WithContext(ctx).Model(&models.OrderRequest{}).
		Where("id = ? AND status <> ?", id, models.OrderRequestDelivered).
		Updates(map[string]any{
			"status":     models.OrderRequestFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		}).Error
}

// GetByReservation returns the request written when reservationID converted.
func (s *Store) GetByReservation(ctx context.Context, reservationID string) (*models.OrderRequest, error) {
	var row models.OrderRequest
	if err := s.db.WithContext(ctx).Where("reservation_id = ?", reservationID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
