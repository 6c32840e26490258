/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Capacity and ledger
		&models.CapacityWindow{},
		&models.Reservation{},
		&models.Sequence{},

		// Collaborator read models
		&models.Customer{},
		&models.Order{},

		// Production
		&models.Batch{},

		// Outbound and operational
		&models.OrderRequest{},
		&models.AuditLog{},
		&models.ServiceKey{},
	); err != nil {
		return err
	}

	return applyPostgresCapacityGuard(database)
}

// applyPostgresCapacityGuard adds CHECK constraints so the counters can never
// be driven out of range even by a statement that bypasses the store.
func applyPostgresCapacityGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_capacity_windows_counters') THEN
    ALTER TABLE capacity_windows ADD CONSTRAINT chk_capacity_windows_counters
      CHECK (used_minutes >= 0 AND reserved_minutes >= 0
             AND used_minutes + reserved_minutes <= capacity_minutes
             AND end_time > start_time AND capacity_minutes > 0);
  END IF;
END;
$$;
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres capacity guard: %w", err)
	}
	return nil
}
