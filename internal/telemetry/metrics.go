/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetsign/fleetsign/internal/events"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint, status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsign_api_requests_total",
		Help: "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetsign_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetsign_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// PlaybackTransitions counts state machine transitions by state.
	PlaybackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsign_playback_transitions_total",
		Help: "Playback state machine transitions.",
	}, []string{"state"})

	// PlaybackErrors counts contained playback-loop errors.
	PlaybackErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetsign_playback_errors_total",
		Help: "Playback errors contained by the loop.",
	})

	// PlaylistRevision gauges the last observed playlist revision.
	PlaylistRevision = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetsign_playlist_revision",
		Help: "Last observed shared playlist revision.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFromBus feeds playback bus events into the metrics until context
// cancellation.
func RecordFromBus(ctx context.Context, bus *events.Bus) {
	states := bus.Subscribe(events.EventPlaybackState)
	errs := bus.Subscribe(events.EventPlaybackError)
	updates := bus.Subscribe(events.EventPlaylistUpdated)
	defer bus.Unsubscribe(events.EventPlaybackState, states)
	defer bus.Unsubscribe(events.EventPlaybackError, errs)
	defer bus.Unsubscribe(events.EventPlaylistUpdated, updates)

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-states:
			if state, ok := payload["state"].(string); ok {
				PlaybackTransitions.WithLabelValues(state).Inc()
			}
		case <-errs:
			PlaybackErrors.Inc()
		case payload := <-updates:
			if revision, ok := payload["revision"].(int64); ok {
				PlaylistRevision.Set(float64(revision))
			}
		}
	}
}
