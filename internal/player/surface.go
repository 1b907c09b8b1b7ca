/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
)

// ErrAutoplayBlocked reports that the environment refused to start
// playback without a prior user gesture. Not a failure: the controller
// holds the attempt and replays it on the next gesture.
var ErrAutoplayBlocked = errors.New("autoplay blocked by environment")

// EventKind enumerates surface lifecycle signals.
type EventKind string

const (
	EventLoadStart EventKind = "loadstart"
	EventPlaying   EventKind = "playing"
	EventWaiting   EventKind = "waiting"
	EventEnded     EventKind = "ended"
	EventError     EventKind = "error"
)

// Event is one lifecycle signal from the display surface.
type Event struct {
	Kind EventKind
	Err  error
}

// Surface is the player display surface: it accepts a resolved handle's
// URI, emits lifecycle signals, and supports a muted flag. Exactly one
// load/play cycle is in flight at a time; Load supersedes any previous
// cycle.
type Surface interface {
	Load(ctx context.Context, uri string) error
	Play(ctx context.Context) error
	Stop() error
	SetMuted(muted bool)
	Events() <-chan Event
}
