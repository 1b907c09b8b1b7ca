/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FilesystemStorage implements Storage using the local filesystem. The
// admin server serves the media root over HTTP, so the returned URL is
// the public locator for remote-link playlist entries.
type FilesystemStorage struct {
	rootDir string
	baseURL string
	logger  zerolog.Logger
}

// NewFilesystemStorage creates a filesystem-based storage backend.
func NewFilesystemStorage(rootDir, baseURL string, logger zerolog.Logger) *FilesystemStorage {
	return &FilesystemStorage{
		rootDir: rootDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Store saves a file under the media root.
func (fs *FilesystemStorage) Store(ctx context.Context, key string, file io.Reader) (string, error) {
	fullPath := filepath.Join(fs.rootDir, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create directories: %w", err)
	}

	dest, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Str("key", key).Msg("filesystem storage: file stored")
	return key, nil
}

// Delete removes a file from the filesystem.
func (fs *FilesystemStorage) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(fs.rootDir, key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	fs.logger.Debug().Str("path", fullPath).Msg("filesystem storage: file deleted")
	return nil
}

// URL returns the HTTP locator for a stored key.
func (fs *FilesystemStorage) URL(key string) string {
	return fs.baseURL + "/media/" + key
}

// CheckAccess verifies the storage directory exists and is accessible.
func (fs *FilesystemStorage) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("media root directory does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", fs.rootDir)
	}
	return nil
}
