/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// GstSurface renders media through a GStreamer playbin process, one
// process per load/play cycle. Lifecycle signals are derived from the
// process output and exit status.
type GstSurface struct {
	bin    string
	logger zerolog.Logger

	events chan Event

	mu      sync.Mutex
	uri     string
	muted   bool
	cmd     *exec.Cmd
	done    chan struct{}
	stopped bool
}

// NewGstSurface creates a surface using the given gst-launch binary.
func NewGstSurface(bin string, logger zerolog.Logger) *GstSurface {
	return &GstSurface{
		bin:    bin,
		logger: logger,
		events: make(chan Event, 16),
	}
}

// Events exposes the lifecycle signal stream.
func (g *GstSurface) Events() <-chan Event { return g.events }

// SetMuted controls the mute flag applied to subsequent loads.
func (g *GstSurface) SetMuted(muted bool) {
	g.mu.Lock()
	g.muted = muted
	g.mu.Unlock()
}

// Load stages the URI for the next play cycle, superseding any running
// process.
func (g *GstSurface) Load(ctx context.Context, uri string) error {
	if err := g.Stop(); err != nil {
		g.logger.Debug().Err(err).Msg("stop previous pipeline failed")
	}

	g.mu.Lock()
	g.uri = uri
	g.mu.Unlock()

	g.emit(Event{Kind: EventLoadStart})
	return nil
}

// Play launches the playbin process for the staged URI.
func (g *GstSurface) Play(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.uri == "" {
		return fmt.Errorf("no media loaded")
	}
	if g.cmd != nil && g.done != nil {
		select {
		case <-g.done:
			// Previous process has exited, ok to start a new one.
		default:
			return fmt.Errorf("pipeline already running")
		}
	}

	launch := fmt.Sprintf("playbin uri=%q", g.uri)
	if g.muted {
		launch += " mute=true"
	}

	shellCmd := fmt.Sprintf("%s -e %s", g.bin, launch)
	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	cmd.Stderr = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	g.cmd = cmd
	g.done = make(chan struct{})
	g.stopped = false

	go g.watchOutput(stdout)

	go func(done chan struct{}, c *exec.Cmd) {
		err := c.Wait()
		close(done)

		g.mu.Lock()
		deliberate := g.stopped
		g.mu.Unlock()
		if deliberate {
			return
		}

		if err != nil {
			g.logger.Debug().Err(err).Msg("gstreamer pipeline exited")
			g.emit(Event{Kind: EventError, Err: fmt.Errorf("pipeline exited: %w", err)})
		} else {
			g.emit(Event{Kind: EventEnded})
		}
	}(g.done, cmd)

	return nil
}

// watchOutput maps pipeline state lines onto surface signals.
func (g *GstSurface) watchOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "Setting pipeline to PLAYING"):
			g.emit(Event{Kind: EventPlaying})
		case strings.Contains(strings.ToLower(line), "buffering"):
			g.emit(Event{Kind: EventWaiting})
		}
	}
}

// Stop terminates the running process.
func (g *GstSurface) Stop() error {
	g.mu.Lock()
	cmd := g.cmd
	done := g.done
	g.stopped = true
	g.mu.Unlock()

	if cmd == nil || done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-time.After(5 * time.Second):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	case <-done:
	}

	return nil
}

func (g *GstSurface) emit(ev Event) {
	select {
	case g.events <- ev:
	default:
		g.logger.Warn().Str("kind", string(ev.Kind)).Msg("surface event dropped")
	}
}
