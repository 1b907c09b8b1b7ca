/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"sync"
	"time"

	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/rs/zerolog"
)

// ChangeFunc receives a complete replacement snapshot. Never a delta:
// subscribers may treat the playlist as immutable per callback. Rapid
// mutations may be coalesced into one callback with the final state.
type ChangeFunc func(Playlist)

// Unsubscribe stops further callbacks. Idempotent.
type Unsubscribe func()

// Syncer exposes the shared list as a live sequence of snapshots.
type Syncer interface {
	Subscribe(fn ChangeFunc) Unsubscribe
}

// subscribers is the callback registry shared by both sync transports.
// Deliveries are serialized by the owning transport's goroutine; the
// per-subscriber revision check is what coalesces duplicate snapshots.
type subscribers struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]*subscriberState
}

type subscriberState struct {
	fn      ChangeFunc
	lastRev int64
	primed  bool
}

func newSubscribers() *subscribers {
	return &subscribers{entries: make(map[int]*subscriberState)}
}

func (s *subscribers) add(fn ChangeFunc) (int, Unsubscribe) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.entries[id] = &subscriberState{fn: fn}
	s.mu.Unlock()

	var once sync.Once
	return id, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.entries, id)
			s.mu.Unlock()
		})
	}
}

// deliver fans the snapshot out, skipping subscribers that already saw
// this revision.
func (s *subscribers) deliver(snapshot Playlist) {
	s.mu.Lock()
	targets := make([]*subscriberState, 0, len(s.entries))
	for _, state := range s.entries {
		if state.primed && state.lastRev == snapshot.Revision {
			continue
		}
		state.primed = true
		state.lastRev = snapshot.Revision
		targets = append(targets, state)
	}
	s.mu.Unlock()

	for _, state := range targets {
		state.fn(snapshot.Clone())
	}
}

// PushSync republishes the shared list on every change notification.
// Notifications arrive on the in-process bus; with the NATS bridge
// attached the same path covers mutations from other processes. Each
// notification triggers a full re-read of the store, so the callback
// always carries the latest persisted state.
type PushSync struct {
	store  Store
	bus    *events.Bus
	subs   *subscribers
	logger zerolog.Logger
}

// NewPushSync creates a push-based syncer.
func NewPushSync(store Store, bus *events.Bus, logger zerolog.Logger) *PushSync {
	return &PushSync{store: store, bus: bus, subs: newSubscribers(), logger: logger}
}

// Subscribe registers fn and primes it with the current snapshot.
func (p *PushSync) Subscribe(fn ChangeFunc) Unsubscribe {
	_, unsub := p.subs.add(fn)
	if snapshot, err := p.store.Load(context.Background()); err == nil {
		p.subs.deliver(snapshot)
	} else {
		p.logger.Warn().Err(err).Msg("initial playlist load failed")
	}
	return unsub
}

// Run listens for change notifications until context cancellation.
func (p *PushSync) Run(ctx context.Context) error {
	ch := p.bus.Subscribe(events.EventPlaylistUpdated)
	defer p.bus.Unsubscribe(events.EventPlaylistUpdated, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			// Drain queued notifications; one re-read covers them all.
			for {
				select {
				case <-ch:
					continue
				default:
				}
				break
			}
			snapshot, err := p.store.Load(ctx)
			if err != nil {
				p.logger.Warn().Err(err).Msg("playlist reload failed")
				continue
			}
			p.subs.deliver(snapshot)
		}
	}
}

// PollSync re-reads the store on a fixed interval. Used by terminals
// without a push transport; revision comparison keeps unchanged polls
// silent.
type PollSync struct {
	store    Store
	interval time.Duration
	subs     *subscribers
	logger   zerolog.Logger
}

// NewPollSync creates a poll-based syncer.
func NewPollSync(store Store, interval time.Duration, logger zerolog.Logger) *PollSync {
	return &PollSync{store: store, interval: interval, subs: newSubscribers(), logger: logger}
}

// Subscribe registers fn and primes it with the current snapshot.
func (p *PollSync) Subscribe(fn ChangeFunc) Unsubscribe {
	_, unsub := p.subs.add(fn)
	if snapshot, err := p.store.Load(context.Background()); err == nil {
		p.subs.deliver(snapshot)
	} else {
		p.logger.Warn().Err(err).Msg("initial playlist load failed")
	}
	return unsub
}

// Run polls until context cancellation.
func (p *PollSync) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot, err := p.store.Load(ctx)
			if err != nil {
				p.logger.Warn().Err(err).Msg("playlist poll failed")
				continue
			}
			p.subs.deliver(snapshot)
		}
	}
}
