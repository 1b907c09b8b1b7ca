/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventPlaylistUpdated EventType = "playlist.updated"
	EventNowPlaying      EventType = "now_playing"
	EventPlaybackState   EventType = "playback.state"
	EventPlaybackError   EventType = "playback.error"
	EventPresenceChanged EventType = "presence.changed"
	EventMediaIngested   EventType = "media.ingested"
	EventMediaDeleted    EventType = "media.deleted"

	// Audit events (for operations that need explicit audit logging)
	EventAuditEntryAppend EventType = "audit.playlist.append"
	EventAuditEntryRemove EventType = "audit.playlist.remove"
	EventAuditEntrySwap   EventType = "audit.playlist.swap"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Sends happen under the read
// lock so they cannot race the close in Unsubscribe; they stay
// non-blocking, so the lock is never held on a full channel.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
