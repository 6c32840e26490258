/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

// Service key constants
const (
	KeyPrefix      = "kfsh_"
	KeyRandomBytes = 24
)

var (
	// ErrKeyNotFound is returned when a service key doesn't exist.
	ErrKeyNotFound = errors.New("service key not found")
	// ErrKeyExpired is returned when a service key has expired.
	ErrKeyExpired = errors.New("service key expired")
	// ErrKeyRevoked is returned when a service key has been revoked.
	ErrKeyRevoked = errors.New("service key revoked")
)

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// GenerateServiceKey creates a key for a collaborating service.
// Returns the plaintext key (shown once) and the model to store.
func GenerateServiceKey(name string, roles []string, expiresIn time.Duration) (string, *models.ServiceKey, error) {
	randomBytes := make([]byte, KeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}

	plaintext := KeyPrefix + hex.EncodeToString(randomBytes)

	key := &models.ServiceKey{
		ID:        uuid.NewString(),
		Name:      name,
		Roles:     strings.Join(roles, ","),
		KeyHash:   hashKey(plaintext),
		KeyPrefix: plaintext[:len(KeyPrefix)+7],
		ExpiresAt: time.Now().Add(expiresIn),
	}
	return plaintext, key, nil
}

// ValidateServiceKey looks up a key by hash and returns claims if it is usable.
func ValidateServiceKey(db *gorm.DB, plaintext string, now time.Time) (*Claims, error) {
	var key models.ServiceKey
	err := db.Where("key_hash = ?", hashKey(plaintext)).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	if key.RevokedAt != nil {
		return nil, ErrKeyRevoked
	}
	if !key.IsValid(now) {
		return nil, ErrKeyExpired
	}

	db.Model(&models.ServiceKey{}).Where("id = ?", key.ID).Update("last_used_at", now)

	return &Claims{
		UserID: "service:" + key.Name,
		Roles:  key.RoleList(),
	}, nil
}

// RevokeServiceKey marks a key revoked.
func RevokeServiceKey(db *gorm.DB, keyID string, now time.Time) error {
	result := db.Model(&models.ServiceKey{}).
		Where("id = ? AND revoked_at IS NULL", keyID).
		Update("revoked_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// ListServiceKeys returns all keys, newest first.
func ListServiceKeys(db *gorm.DB) ([]models.ServiceKey, error) {
	var keys []models.ServiceKey
	err := db.Order("created_at DESC").Find(&keys).Error
	return keys, err
}
