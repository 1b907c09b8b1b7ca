/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidIndex reports a swap position outside the list.
	ErrInvalidIndex = errors.New("index out of range")
	// ErrEntryNotFound reports a remove for an id that is not enqueued.
	ErrEntryNotFound = errors.New("playlist entry not found")
)

// Authoring performs the admin-side mutations of the shared list. Each
// operation is a read-modify-replace against the store: one write, no
// automatic retry. A transient write failure is returned to the caller so
// the administrator decides whether to resubmit.
type Authoring struct {
	store  Store
	bus    *events.Bus
	logger zerolog.Logger
}

// NewAuthoring creates the authoring service.
func NewAuthoring(store Store, bus *events.Bus, logger zerolog.Logger) *Authoring {
	return &Authoring{store: store, bus: bus, logger: logger}
}

// Append adds the entry at the end of the list. An entry whose id is
// already enqueued gets a synthesized id so the no-duplicate invariant
// holds; the returned entry carries the id actually stored.
func (a *Authoring) Append(ctx context.Context, entry MediaEntry) (MediaEntry, error) {
	if err := entry.Validate(); err != nil {
		return MediaEntry{}, err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	current, err := a.store.Load(ctx)
	if err != nil {
		return MediaEntry{}, fmt.Errorf("append: %w", err)
	}

	if current.IndexOf(entry.ID) >= 0 {
		synthesized := uuid.NewString()
		a.logger.Debug().
			Str("original_id", entry.ID).
			Str("synthesized_id", synthesized).
			Msg("duplicate playlist id, synthesizing")
		entry.ID = synthesized
	}

	updated, err := a.store.Replace(ctx, append(current.Entries, entry))
	if err != nil {
		return MediaEntry{}, fmt.Errorf("append: %w", err)
	}

	a.publishUpdate(updated)
	a.bus.Publish(events.EventAuditEntryAppend, events.Payload{"entry_id": entry.ID})
	return entry, nil
}

// Remove deletes the entry with the given id; following positions shift
// down by one.
func (a *Authoring) Remove(ctx context.Context, id string) error {
	current, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	index := current.IndexOf(id)
	if index < 0 {
		return ErrEntryNotFound
	}

	entries := make([]MediaEntry, 0, current.Len()-1)
	entries = append(entries, current.Entries[:index]...)
	entries = append(entries, current.Entries[index+1:]...)

	updated, err := a.store.Replace(ctx, entries)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	a.publishUpdate(updated)
	a.bus.Publish(events.EventAuditEntryRemove, events.Payload{"entry_id": id})
	return nil
}

// SwapAdjacent exchanges the entries at index and index+1.
func (a *Authoring) SwapAdjacent(ctx context.Context, index int) error {
	current, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	if index < 0 || index+1 >= current.Len() {
		return ErrInvalidIndex
	}

	entries := make([]MediaEntry, current.Len())
	copy(entries, current.Entries)
	entries[index], entries[index+1] = entries[index+1], entries[index]

	updated, err := a.store.Replace(ctx, entries)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	a.publishUpdate(updated)
	a.bus.Publish(events.EventAuditEntrySwap, events.Payload{"index": index})
	return nil
}

// Clear empties the shared list. Explicit administrator action only.
func (a *Authoring) Clear(ctx context.Context) error {
	updated, err := a.store.Replace(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	a.publishUpdate(updated)
	return nil
}

func (a *Authoring) publishUpdate(snapshot Playlist) {
	a.bus.Publish(events.EventPlaylistUpdated, events.Payload{
		"revision": snapshot.Revision,
		"length":   snapshot.Len(),
	})
}
