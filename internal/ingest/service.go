/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ingest stores administrator-uploaded media and hands back the
// locator that goes into the playlist.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/fleetsign/fleetsign/internal/config"
	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/rs/zerolog"
)

// Storage interface abstracts object storage operations.
type Storage interface {
	Store(ctx context.Context, key string, file io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	CheckAccess(ctx context.Context) error
}

// Service manages uploaded media objects.
type Service struct {
	storage Storage
	bus     *events.Bus
	logger  zerolog.Logger
}

// NewService creates an ingest service using filesystem or S3 storage
// based on config.
func NewService(cfg *config.Config, bus *events.Bus, logger zerolog.Logger) (*Service, error) {
	var storage Storage

	if cfg.S3Bucket != "" {
		s3cfg := S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		}
		s3Storage, err := NewS3Storage(context.Background(), s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize S3 storage: %w", err)
		}
		storage = s3Storage
	} else {
		storage = NewFilesystemStorage(cfg.MediaRoot, cfg.BaseURL, logger)
	}

	return &Service{storage: storage, bus: bus, logger: logger}, nil
}

// Ingest saves an uploaded payload under key and returns its locator URL.
func (s *Service) Ingest(ctx context.Context, key string, file io.Reader) (string, error) {
	if _, err := s.storage.Store(ctx, key, file); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("media ingest failed")
		return "", fmt.Errorf("ingest media: %w", err)
	}

	locator := s.storage.URL(key)
	s.logger.Info().Str("key", key).Str("locator", locator).Msg("media ingested")
	s.bus.Publish(events.EventMediaIngested, events.Payload{"key": key, "locator": locator})
	return locator, nil
}

// Remove deletes the stored object for key. Invoked when the matching
// playlist entry is removed.
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove media: %w", err)
	}
	s.bus.Publish(events.EventMediaDeleted, events.Payload{"key": key})
	return nil
}

// CheckAccess verifies the backing storage is reachable.
func (s *Service) CheckAccess(ctx context.Context) error {
	return s.storage.CheckAccess(ctx)
}
