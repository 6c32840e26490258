/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage holds the object store used for capacity calendar exports.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under key.
var ErrNotFound = errors.New("object not found")

// ObjectStore abstracts object storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns where an object can be found, for logs and API responses.
	URL(key string) string
}
