/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player drives a single media surface through the unattended
// rotation loop: resolve, load, play, recover, advance.
package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/fleetsign/fleetsign/internal/playlist"
	"github.com/fleetsign/fleetsign/internal/resolver"
	"github.com/rs/zerolog"
)

// State enumerates the playback machine states.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateLoading     State = "loading"
	StatePlaying     State = "playing"
	StateStalled     State = "stalled"
	StateError       State = "error"
	StateAdvancing   State = "advancing"
	StateWaitingList State = "waiting-for-playlist"
)

// ErrStallTimeout converts an unresolved stall into a playback error.
var ErrStallTimeout = errors.New("stall timeout")

// Policy holds the tunable retry and timing knobs.
type Policy struct {
	// RemoteRetryLimit bounds alternate-resolution retries per entry.
	// Local-file NotFound is never retried regardless.
	RemoteRetryLimit int
	// StallTimeout is the bound after which a stall counts as an error.
	StallTimeout time.Duration
	// ErrorDwell is how long the failure overlay stays up before the
	// loop advances anyway.
	ErrorDwell time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{RemoteRetryLimit: 1, StallTimeout: 15 * time.Second, ErrorDwell: 4 * time.Second}
}

// Status is a read-only snapshot of the session for overlays and
// dashboards.
type Status struct {
	State           State
	Index           int
	EntryID         string
	DisplayName     string
	OwnerLabel      string
	RetryCount      int
	LastError       string
	AwaitingGesture bool
}

// Controller is the playback state machine. It runs as one sequential
// loop driven by subscription callbacks, surface signals, gestures, and
// timers; transitions never overlap and at most one resolved handle is
// outstanding at a time. Errors are contained: they advance the loop,
// never crash it.
type Controller struct {
	surface  Surface
	resolver *resolver.Resolver
	sync     playlist.Syncer
	bus      *events.Bus
	policy   Policy
	logger   zerolog.Logger

	snapC    chan playlist.Playlist
	gestureC chan struct{}

	// Loop-owned session state.
	snapshot playlist.Playlist
	primed   bool
	index    int
	retries  int
	state    State
	entry    playlist.MediaEntry
	handle   *resolver.Handle
	lastErr  error
	unlocked bool
	awaiting bool

	stall *time.Timer
	dwell *time.Timer

	statusMu sync.Mutex
	status   Status
}

// NewController wires the playback machine. The syncer is injected; the
// controller performs no ambient store lookups of its own.
func NewController(surface Surface, res *resolver.Resolver, syncer playlist.Syncer, bus *events.Bus, policy Policy, logger zerolog.Logger) *Controller {
	if policy.RemoteRetryLimit < 0 {
		policy.RemoteRetryLimit = 0
	}
	return &Controller{
		surface:  surface,
		resolver: res,
		sync:     syncer,
		bus:      bus,
		policy:   policy,
		logger:   logger,
		snapC:    make(chan playlist.Playlist, 1),
		gestureC: make(chan struct{}, 1),
		state:    StateWaitingList,
	}
}

// Status returns the current session snapshot.
func (c *Controller) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// Gesture reports a user gesture on the surface. A single gesture unlocks
// playback for the whole session.
func (c *Controller) Gesture() {
	select {
	case c.gestureC <- struct{}{}:
	default:
	}
}

// Run executes the loop until context cancellation.
func (c *Controller) Run(ctx context.Context) error {
	// All media plays muted so autoplay policies that only restrict
	// audible playback do not block the loop.
	c.surface.SetMuted(true)

	c.stall = newStoppedTimer()
	c.dwell = newStoppedTimer()
	defer stopTimer(c.stall)
	defer stopTimer(c.dwell)

	unsubscribe := c.sync.Subscribe(c.onChange)
	defer unsubscribe()
	defer c.releaseHandle()
	defer c.surface.Stop()

	c.logger.Info().Msg("playback controller started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("playback controller stopped")
			return ctx.Err()
		case snapshot := <-c.snapC:
			c.applySnapshot(ctx, snapshot)
		case ev, ok := <-c.surface.Events():
			if !ok {
				return errors.New("surface event stream closed")
			}
			c.onSurfaceEvent(ctx, ev)
		case <-c.gestureC:
			c.onGesture(ctx)
		case <-c.stall.C:
			c.onStallTimeout(ctx)
		case <-c.dwell.C:
			c.advance(ctx)
		}
	}
}

// onChange runs on the syncer's goroutine; it hands the snapshot to the
// loop, replacing any not-yet-consumed one so only the final state lands.
func (c *Controller) onChange(snapshot playlist.Playlist) {
	for {
		select {
		case c.snapC <- snapshot:
			return
		default:
			select {
			case <-c.snapC:
			default:
			}
		}
	}
}

func (c *Controller) applySnapshot(ctx context.Context, snapshot playlist.Playlist) {
	c.snapshot = snapshot
	first := !c.primed
	c.primed = true

	if snapshot.Empty() {
		if c.state != StateWaitingList {
			c.logger.Info().Msg("playlist empty, waiting")
			c.abortInFlight()
			c.index = 0
			c.setState(StateWaitingList)
		}
		return
	}

	if c.state == StateWaitingList || first {
		c.index = 0
		c.retries = 0
		c.setState(StateIdle)
		c.step(ctx)
		return
	}

	entry, clamped, _ := snapshot.EntryAt(c.index)
	if clamped != c.index || entry.ID != c.entry.ID {
		// The in-flight entry is gone or moved; restart against the
		// new snapshot and ignore the old load's eventual completion.
		c.abortInFlight()
		c.index = clamped
		c.retries = 0
		c.setState(StateIdle)
		c.step(ctx)
	}
}

// step drives the synchronous Idle -> Resolving -> Loading edge. Anything
// after Loading is event-driven.
func (c *Controller) step(ctx context.Context) {
	if c.state != StateIdle {
		return
	}
	if c.snapshot.Empty() {
		c.setState(StateWaitingList)
		return
	}

	entry, index, _ := c.snapshot.EntryAt(c.index)
	c.index = index
	c.entry = entry
	c.setState(StateResolving)

	c.releaseHandle()
	handle, err := c.resolver.Resolve(ctx, entry, c.retries)
	if err != nil {
		c.enterError(ctx, err)
		return
	}
	c.handle = handle

	c.setState(StateLoading)
	if err := c.surface.Load(ctx, handle.URI()); err != nil {
		c.enterError(ctx, err)
		return
	}
	c.tryPlay(ctx)
}

func (c *Controller) tryPlay(ctx context.Context) {
	err := c.surface.Play(ctx)
	switch {
	case err == nil:
		c.awaiting = false
		c.armTimer(c.stall, c.policy.StallTimeout)
		c.publishStatus()
	case errors.Is(err, ErrAutoplayBlocked):
		if c.unlocked {
			// The session already got its gesture; nobody will tap an
			// unattended screen twice. Treat the block as a playback
			// error so the dwell keeps the rotation moving.
			c.enterError(ctx, err)
			return
		}
		c.awaiting = true
		stopTimer(c.stall)
		c.logger.Warn().Str("entry", c.entry.ID).Msg("autoplay blocked, waiting for gesture")
		c.bus.Publish(events.EventPlaybackState, events.Payload{
			"state":        string(c.state),
			"tap_to_start": true,
		})
		c.publishStatus()
	default:
		c.enterError(ctx, err)
	}
}

func (c *Controller) onGesture(ctx context.Context) {
	if !c.awaiting {
		return
	}
	c.awaiting = false
	if err := c.surface.Play(ctx); err != nil {
		if errors.Is(err, ErrAutoplayBlocked) {
			c.awaiting = true
			c.publishStatus()
			return
		}
		c.enterError(ctx, err)
		return
	}
	// The gesture unlocks the session, not just this entry.
	c.unlocked = true
	c.armTimer(c.stall, c.policy.StallTimeout)
	c.publishStatus()
}

func (c *Controller) onSurfaceEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventLoadStart:
		// Informational only.
	case EventPlaying:
		if c.state != StateLoading && c.state != StateStalled && c.state != StatePlaying {
			return
		}
		stopTimer(c.stall)
		c.unlocked = true
		c.lastErr = nil
		c.setState(StatePlaying)
		c.bus.Publish(events.EventNowPlaying, events.Payload{
			"entry_id":     c.entry.ID,
			"display_name": c.entry.DisplayName,
			"owner_label":  c.entry.OwnerLabel,
			"index":        c.index,
		})
	case EventWaiting:
		if c.state != StatePlaying && c.state != StateLoading {
			return
		}
		c.setState(StateStalled)
		c.armTimer(c.stall, c.policy.StallTimeout)
	case EventEnded:
		if c.state != StatePlaying && c.state != StateStalled {
			return
		}
		c.setState(StateAdvancing)
		c.advance(ctx)
	case EventError:
		if c.state != StateLoading && c.state != StatePlaying && c.state != StateStalled {
			return
		}
		err := ev.Err
		if err == nil {
			err = errors.New("surface error")
		}
		c.enterError(ctx, err)
	}
}

func (c *Controller) onStallTimeout(ctx context.Context) {
	if c.state != StateLoading && c.state != StateStalled && c.state != StatePlaying {
		return
	}
	// A stall that never resolves counts as a decode error.
	c.enterError(ctx, ErrStallTimeout)
}

func (c *Controller) enterError(ctx context.Context, err error) {
	c.lastErr = err
	stopTimer(c.stall)
	c.setState(StateError)

	c.logger.Warn().Err(err).
		Str("entry", c.entry.ID).
		Int("index", c.index).
		Int("retries", c.retries).
		Msg("playback error")
	c.bus.Publish(events.EventPlaybackError, events.Payload{
		"entry_id": c.entry.ID,
		"index":    c.index,
		"error":    err.Error(),
	})

	// A missing rewrite can never improve; skip the dwell entirely.
	if errors.Is(err, resolver.ErrRewriteUnavailable) {
		c.advance(ctx)
		return
	}

	if c.retryable(err) {
		c.retries++
		c.setState(StateIdle)
		c.step(ctx)
		return
	}

	// Surface the failure on the overlay for the dwell, then move on so
	// an unattended screen never sits blank indefinitely.
	c.armTimer(c.dwell, c.policy.ErrorDwell)
}

// retryable allows one alternate-resolution retry for remote links.
// Local-file NotFound is final: the blob is simply not on the device.
func (c *Controller) retryable(err error) bool {
	if c.entry.SourceKind != playlist.SourceRemoteLink {
		return false
	}
	if errors.Is(err, resolver.ErrNotFound) {
		return false
	}
	// An alternate URL cannot lift an autoplay policy.
	if errors.Is(err, ErrAutoplayBlocked) {
		return false
	}
	return c.retries < c.policy.RemoteRetryLimit
}

func (c *Controller) advance(ctx context.Context) {
	stopTimer(c.stall)
	stopTimer(c.dwell)
	c.abortInFlight()

	if c.snapshot.Empty() {
		c.index = 0
		c.setState(StateWaitingList)
		return
	}

	c.index = (c.index + 1) % c.snapshot.Len()
	c.retries = 0
	c.setState(StateIdle)
	c.step(ctx)
}

// abortInFlight tears down the current load and releases the handle so
// local resource usage stays bounded to one outstanding handle.
func (c *Controller) abortInFlight() {
	stopTimer(c.stall)
	stopTimer(c.dwell)
	if err := c.surface.Stop(); err != nil {
		c.logger.Debug().Err(err).Msg("surface stop failed")
	}
	c.releaseHandle()
	c.awaiting = false
}

func (c *Controller) releaseHandle() {
	if c.handle != nil {
		c.handle.Release()
		c.handle = nil
	}
}

func (c *Controller) setState(state State) {
	c.state = state
	c.publishStatus()
	c.bus.Publish(events.EventPlaybackState, events.Payload{
		"state":    string(state),
		"index":    c.index,
		"entry_id": c.entry.ID,
	})
}

func (c *Controller) publishStatus() {
	status := Status{
		State:           c.state,
		Index:           c.index,
		EntryID:         c.entry.ID,
		DisplayName:     c.entry.DisplayName,
		OwnerLabel:      c.entry.OwnerLabel,
		RetryCount:      c.retries,
		AwaitingGesture: c.awaiting,
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	c.statusMu.Lock()
	c.status = status
	c.statusMu.Unlock()
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopTimer(t)
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func (c *Controller) armTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
