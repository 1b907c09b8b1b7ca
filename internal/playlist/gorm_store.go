/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fleetsign/fleetsign/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists the playlist as a single named record. The entries
// column holds the JSON-encoded ordered list and every write replaces it
// whole, so the database row is the unit of last-write-wins.
type GormStore struct {
	db   *gorm.DB
	name string
}

// NewGormStore creates a store bound to the named playlist record.
func NewGormStore(db *gorm.DB, name string) *GormStore {
	return &GormStore{db: db, name: name}
}

// Load reads the full snapshot. A missing record is an empty playlist.
func (s *GormStore) Load(ctx context.Context) (Playlist, error) {
	var record models.PlaylistRecord
	err := s.db.WithContext(ctx).First(&record, "name = ?", s.name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Playlist{}, nil
	}
	if err != nil {
		return Playlist{}, fmt.Errorf("load playlist %q: %w", s.name, err)
	}

	var entries []MediaEntry
	if len(record.Entries) > 0 {
		if err := json.Unmarshal(record.Entries, &entries); err != nil {
			return Playlist{}, fmt.Errorf("decode playlist %q: %w", s.name, err)
		}
	}
	return Playlist{Entries: entries, Revision: record.Revision}, nil
}

// Replace overwrites the record in a single upsert. The operation is
// all-or-nothing: no partial list is ever visible.
func (s *GormStore) Replace(ctx context.Context, entries []MediaEntry) (Playlist, error) {
	if entries == nil {
		entries = []MediaEntry{}
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return Playlist{}, fmt.Errorf("encode playlist %q: %w", s.name, err)
	}

	var revision int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.PlaylistRecord
		findErr := tx.First(&current, "name = ?", s.name).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}
		revision = current.Revision + 1

		record := models.PlaylistRecord{
			Name:     s.name,
			Entries:  encoded,
			Revision: revision,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"entries", "revision", "updated_at"}),
		}).Create(&record).Error
	})
	if err != nil {
		return Playlist{}, fmt.Errorf("replace playlist %q: %w", s.name, err)
	}

	snapshot := make([]MediaEntry, len(entries))
	copy(snapshot, entries)
	return Playlist{Entries: snapshot, Revision: revision}, nil
}
