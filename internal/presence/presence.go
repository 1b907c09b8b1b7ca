/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package presence tracks player terminal operational status. Dashboards
// read it; the playback loop never does.
package presence

import (
	"context"
	"time"

	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/rs/zerolog"
)

// Status is a terminal's operational state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Record is one terminal's presence entry.
type Record struct {
	TerminalID string    `json:"terminal_id"`
	Status     Status    `json:"status"`
	LastSeen   time.Time `json:"last_seen"`
}

// Store persists presence records.
type Store interface {
	Set(ctx context.Context, record Record) error
	List(ctx context.Context) ([]Record, error)
}

// Service marks terminals online/offline. Writes go to the primary store
// with a fallback store behind it; a failed write is logged and never
// blocks the caller.
type Service struct {
	primary  Store
	fallback Store
	bus      *events.Bus
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates the presence service. fallback may be nil.
func NewService(primary, fallback Store, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{primary: primary, fallback: fallback, bus: bus, logger: logger, now: time.Now}
}

// MarkOnline records the terminal as online.
func (s *Service) MarkOnline(ctx context.Context, terminalID string) {
	s.write(ctx, Record{TerminalID: terminalID, Status: StatusOnline, LastSeen: s.now().UTC()})
}

// MarkOffline records the terminal as offline.
func (s *Service) MarkOffline(ctx context.Context, terminalID string) {
	s.write(ctx, Record{TerminalID: terminalID, Status: StatusOffline, LastSeen: s.now().UTC()})
}

func (s *Service) write(ctx context.Context, record Record) {
	err := s.primary.Set(ctx, record)
	if err != nil && s.fallback != nil {
		s.logger.Warn().Err(err).Str("terminal", record.TerminalID).Msg("primary presence write failed, using fallback")
		err = s.fallback.Set(ctx, record)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("terminal", record.TerminalID).Msg("presence write failed")
		return
	}

	s.bus.Publish(events.EventPresenceChanged, events.Payload{
		"terminal_id": record.TerminalID,
		"status":      string(record.Status),
	})
}

// List returns all known presence records.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	records, err := s.primary.List(ctx)
	if err != nil && s.fallback != nil {
		s.logger.Warn().Err(err).Msg("primary presence list failed, using fallback")
		return s.fallback.List(ctx)
	}
	return records, err
}

// OnlineCount counts terminals currently marked online.
func (s *Service) OnlineCount(ctx context.Context) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range records {
		if record.Status == StatusOnline {
			count++
		}
	}
	return count, nil
}
