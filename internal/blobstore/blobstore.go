/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package blobstore keeps media payloads on the terminal's local disk,
// keyed by playlist entry id.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotFound reports a key with no stored blob.
var ErrNotFound = errors.New("blob not found")

// Handle is an acquired blob. It pins the underlying file open until
// released, so a concurrent delete cannot pull playback's data away.
type Handle struct {
	key  string
	path string
	file *os.File
	once sync.Once
}

// Key returns the blob key.
func (h *Handle) Key() string { return h.key }

// URI returns a file URI suitable for a media surface.
func (h *Handle) URI() string { return "file://" + h.path }

// Release closes the pinned file. Idempotent.
func (h *Handle) Release() {
	h.once.Do(func() {
		if h.file != nil {
			_ = h.file.Close()
		}
	})
}

// Store is a filesystem-backed local blob store.
type Store struct {
	rootDir string
	logger  zerolog.Logger
}

// New creates a blob store rooted at rootDir.
func New(rootDir string, logger zerolog.Logger) *Store {
	return &Store{rootDir: rootDir, logger: logger}
}

// blobPath shards blobs into two-character prefix directories.
func (s *Store) blobPath(key string) string {
	prefix := "00"
	if len(key) >= 2 {
		prefix = key[:2]
	}
	return filepath.Join(s.rootDir, prefix, key)
}

// Put writes the payload for key, replacing any previous blob.
func (s *Store) Put(ctx context.Context, key string, payload io.Reader) (string, error) {
	fullPath := s.blobPath(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create directories: %w", err)
	}

	dest, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, payload); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write blob: %w", err)
	}

	s.logger.Debug().Str("key", key).Str("path", fullPath).Msg("blob stored")
	return fullPath, nil
}

// Acquire opens the blob for key. The caller owns the handle and must
// release it when superseded.
func (s *Store) Acquire(ctx context.Context, key string) (*Handle, error) {
	fullPath := s.blobPath(key)
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("open blob %q: %w", key, err)
	}

	abs, err := filepath.Abs(fullPath)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("resolve blob path %q: %w", key, err)
	}

	return &Handle{key: key, path: abs, file: file}, nil
}

// Delete removes the blob for key. Missing blobs are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	fullPath := s.blobPath(key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	s.logger.Debug().Str("key", key).Msg("blob deleted")
	return nil
}

// CheckAccess verifies the storage directory exists and is accessible.
func (s *Store) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob root directory does not exist: %s", s.rootDir)
		}
		return fmt.Errorf("cannot access blob root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob root is not a directory: %s", s.rootDir)
	}
	return nil
}
