/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package orders is the scheduling read model of the order and customer
// collaborators. The order service owns the full lifecycle; scheduling only
// reads eligible orders and stamps them with a batch.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrOrderNotFound = errors.New("order not found")

// Store reads and stamps orders.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Eligible returns validated, unscheduled orders delivering on date.
func (s *Store) Eligible(ctx context.Context, date string) ([]models.Order, error) {
	var out []models.Order
	err := s.db.WithContext(ctx).
		Where("delivery_date = ? AND status = ? AND batch_id IS NULL", date, models.OrderValidated).
		Order("delivery_time_start ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list eligible orders: %w", err)
	}
	return out, nil
}

// Load returns the orders with ids, locked for update when inside a
// transaction on a backend that supports it.
func (s *Store) Load(ctx context.Context, ids []string) ([]models.Order, error) {
	var out []models.Order
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return out, nil
}

// MarkScheduled stamps still-eligible orders with batchID and returns how
// many rows changed.
func (s *Store) MarkScheduled(ctx context.Context, ids []string, batchID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND status = ? AND batch_id IS NULL", ids, models.OrderValidated).
		Updates(map[string]any{
			"status":   models.OrderScheduled,
			"batch_id": batchID,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("mark orders scheduled: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Get returns one order.
func (s *Store) Get(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// Upsert records an order pushed by the order service. Scheduling-owned
// fields (batch id) are never overwritten.
func (s *Store) Upsert(ctx context.Context, o *models.Order) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"order_number", "customer_id", "product_id", "reservation_id",
			"requested_activity", "activity_unit", "delivery_date",
			"delivery_time_start", "delivery_time_end", "status", "updated_at",
		}),
	}).Create(o).Error
}

// CustomerExists reports whether an active customer with id exists.
func (s *Store) CustomerExists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ? AND active = ?", id, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check customer: %w", err)
	}
	return n > 0, nil
}

// UpsertCustomer records a customer pushed by the customer directory.
func (s *Store) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "active"}),
	}).Create(c).Error
}
