/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist holds the shared ordered list of media entries that
// drives unattended rotation, the store it lives in, the authoring
// operations that mutate it, and the sync contract players consume it by.
package playlist

import (
	"errors"
	"fmt"
)

// SourceKind tags where an entry's media lives.
type SourceKind string

const (
	SourceRemoteLink SourceKind = "remote-link"
	SourceLocalFile  SourceKind = "local-file"
)

// MediaEntry is one playable item and its metadata.
type MediaEntry struct {
	ID          string     `json:"id"`
	SourceKind  SourceKind `json:"source_kind"`
	Locator     string     `json:"locator"`
	DisplayName string     `json:"display_name"`
	OwnerLabel  string     `json:"owner_label"`
}

// ErrEmptyLocator rejects entries that could never play.
var ErrEmptyLocator = errors.New("media entry has no locator")

// Validate checks the entry invariants before it may be enqueued.
func (e MediaEntry) Validate() error {
	if e.Locator == "" {
		return ErrEmptyLocator
	}
	switch e.SourceKind {
	case SourceRemoteLink, SourceLocalFile:
	default:
		return fmt.Errorf("unknown source kind %q", e.SourceKind)
	}
	return nil
}

// Playlist is a complete snapshot of the shared ordered list.
// Position is the playback order. Readers must treat it as immutable;
// writers replace the whole list under a single write.
type Playlist struct {
	Entries  []MediaEntry
	Revision int64
}

// Len returns the number of entries.
func (p Playlist) Len() int { return len(p.Entries) }

// Empty reports whether there is nothing to play.
func (p Playlist) Empty() bool { return len(p.Entries) == 0 }

// EntryAt returns the entry at index, clamping to 0 when the snapshot
// shrank underneath the caller's index.
func (p Playlist) EntryAt(index int) (MediaEntry, int, bool) {
	if len(p.Entries) == 0 {
		return MediaEntry{}, 0, false
	}
	if index < 0 || index >= len(p.Entries) {
		index = 0
	}
	return p.Entries[index], index, true
}

// IndexOf returns the position of the entry with the given id, or -1.
func (p Playlist) IndexOf(id string) int {
	for i, e := range p.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can hand snapshots across
// goroutines without sharing backing arrays.
func (p Playlist) Clone() Playlist {
	entries := make([]MediaEntry, len(p.Entries))
	copy(entries, p.Entries)
	return Playlist{Entries: entries, Revision: p.Revision}
}
