/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextSequence hands out the next value for scope. It must run inside the
// caller's transaction: the UPDATE row-locks the counter until commit, and a
// rolled back caller never consumes a value.
func NextSequence(tx *gorm.DB, scope string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Sequence{Scope: scope, NextValue: 1}).Error; err != nil {
		return 0, fmt.Errorf("init sequence %s: %w", scope, err)
	}

	res := tx.Model(&models.Sequence{}).
		Where("scope = ?", scope).
		Update("next_value", gorm.Expr("next_value + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", scope, res.Error)
	}

	var seq models.Sequence
	if err := tx.Where("scope = ?", scope).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", scope, err)
	}
	return seq.NextValue - 1, nil
}
