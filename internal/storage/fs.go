/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FilesystemStore implements ObjectStore using a local directory.
type FilesystemStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem-based store rooted at rootDir.
func NewFilesystemStore(rootDir string, logger zerolog.Logger) *FilesystemStore {
	return &FilesystemStore{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "fs-store").Logger(),
	}
}

func (fs *FilesystemStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(fs.rootDir, clean), nil
}

// Put writes data under key, replacing any existing object.
func (fs *FilesystemStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	fullPath, err := fs.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename file: %w", err)
	}

	fs.logger.Debug().
		Str("path", fullPath).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("object stored")
	return nil
}

// Get reads the object stored under key.
func (fs *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := fs.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// URL returns the local filesystem path.
func (fs *FilesystemStore) URL(key string) string {
	p, err := fs.path(key)
	if err != nil {
		return key
	}
	return "file://" + p
}

// CheckAccess verifies the root directory exists and is a directory.
func (fs *FilesystemStore) CheckAccess() error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("export directory does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access export directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("export path is not a directory: %s", fs.rootDir)
	}
	return nil
}
