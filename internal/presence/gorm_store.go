/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package presence

import (
	"context"
	"fmt"

	"github.com/fleetsign/fleetsign/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists presence in the relational database. Used standalone
// in small deployments or as the fallback behind Redis.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed presence store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Set upserts the terminal's presence row.
func (g *GormStore) Set(ctx context.Context, record Record) error {
	row := models.TerminalPresence{
		TerminalID: record.TerminalID,
		Status:     string(record.Status),
		LastSeen:   record.LastSeen,
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "terminal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "last_seen"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

// List returns all presence rows.
func (g *GormStore) List(ctx context.Context) ([]Record, error) {
	var rows []models.TerminalPresence
	if err := g.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			TerminalID: row.TerminalID,
			Status:     Status(row.Status),
			LastSeen:   row.LastSeen,
		})
	}
	return records, nil
}
