/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"sync"
)

// Store is the shared playlist store: a single named record holding the
// ordered list. Reads return a full snapshot; writes replace the whole
// list, so concurrent writers produce last-write-wins at list granularity.
type Store interface {
	Load(ctx context.Context) (Playlist, error)
	Replace(ctx context.Context, entries []MediaEntry) (Playlist, error)
}

// MemoryStore keeps the playlist in process memory. Used by tests and by
// single-process deployments without a database.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []MediaEntry
	revision int64

	// FailWrites makes Replace return an error, for exercising the
	// authoring failure path.
	FailWrites error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the current snapshot.
func (m *MemoryStore) Load(ctx context.Context) (Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]MediaEntry, len(m.entries))
	copy(entries, m.entries)
	return Playlist{Entries: entries, Revision: m.revision}, nil
}

// Replace overwrites the whole list in a single write.
func (m *MemoryStore) Replace(ctx context.Context, entries []MediaEntry) (Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return Playlist{}, m.FailWrites
	}
	m.entries = make([]MediaEntry, len(entries))
	copy(m.entries, entries)
	m.revision++
	snapshot := make([]MediaEntry, len(m.entries))
	copy(snapshot, m.entries)
	return Playlist{Entries: snapshot, Revision: m.revision}, nil
}
