/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audit persists a trail of mutating operations by listening on
// the event bus.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/fleetsign/fleetsign/internal/models"
)

// Service handles audit logging by subscribing to events and storing
// audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to the audited events and records them until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	entryAppend := s.bus.Subscribe(events.EventAuditEntryAppend)
	entryRemove := s.bus.Subscribe(events.EventAuditEntryRemove)
	entrySwap := s.bus.Subscribe(events.EventAuditEntrySwap)
	mediaIngested := s.bus.Subscribe(events.EventMediaIngested)
	mediaDeleted := s.bus.Subscribe(events.EventMediaDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventAuditEntryAppend, entryAppend)
		s.bus.Unsubscribe(events.EventAuditEntryRemove, entryRemove)
		s.bus.Unsubscribe(events.EventAuditEntrySwap, entrySwap)
		s.bus.Unsubscribe(events.EventMediaIngested, mediaIngested)
		s.bus.Unsubscribe(events.EventMediaDeleted, mediaDeleted)
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return

		case payload := <-entryAppend:
			s.logAuditEntry(ctx, models.AuditActionEntryAppend, payload)

		case payload := <-entryRemove:
			s.logAuditEntry(ctx, models.AuditActionEntryRemove, payload)

		case payload := <-entrySwap:
			s.logAuditEntry(ctx, models.AuditActionEntrySwap, payload)

		case payload := <-mediaIngested:
			s.logAuditEntry(ctx, models.AuditActionMediaIngest, payload)

		case payload := <-mediaDeleted:
			s.logAuditEntry(ctx, models.AuditActionMediaDelete, payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		Action:  action,
		Details: make(map[string]any),
	}

	for k, v := range payload {
		if k == "user_id" {
			if userID, ok := v.(string); ok {
				entry.UserID = userID
				continue
			}
		}
		entry.Details[k] = v
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", string(action)).Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly.
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// QueryFilters narrows an audit log query.
type QueryFilters struct {
	Action    *models.AuditAction
	UserID    *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit entries with filters, newest first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var entries []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
