/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// ServiceKey authenticates a collaborating service (order portal,
// order desk, production planning) against the API.
type ServiceKey struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string     `gorm:"type:varchar(128);not null" json:"name"`
	Roles      string     `gorm:"type:varchar(255);not null" json:"roles"` // comma separated
	KeyHash    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	KeyPrefix  string     `gorm:"size:12" json:"key_prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName returns the table name for GORM.
func (ServiceKey) TableName() string {
	return "service_keys"
}

// RoleList splits Roles.
func (k *ServiceKey) RoleList() []string {
	var out []string
	for _, r := range strings.Split(k.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// IsValid returns true if the key is neither expired nor revoked at now.
func (k *ServiceKey) IsValid(now time.Time) bool {
	return k.RevokedAt == nil && now.Before(k.ExpiresAt)
}
