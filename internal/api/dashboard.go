/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/fleetsign/fleetsign/internal/models"
	"github.com/fleetsign/fleetsign/internal/presence"
)

type dashboardStats struct {
	Advertisers      int64 `json:"advertisers"`
	Drivers          int64 `json:"drivers"`
	PlaylistLength   int   `json:"playlist_length"`
	PlaylistRevision int64 `json:"playlist_revision"`
	TerminalsOnline  int   `json:"terminals_online"`
}

// PresenceList returns the known terminal presence records.
func (a *API) PresenceList(w http.ResponseWriter, r *http.Request) {
	records, err := a.presence.List(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("presence list failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []presence.Record{}
	}
	a.respondJSON(w, http.StatusOK, records)
}

// DashboardStats aggregates the landing-page counters.
func (a *API) DashboardStats(w http.ResponseWriter, r *http.Request) {
	var stats dashboardStats

	if err := a.db.WithContext(r.Context()).Model(&models.Advertiser{}).Count(&stats.Advertisers).Error; err != nil {
		a.logger.Error().Err(err).Msg("advertiser count failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := a.db.WithContext(r.Context()).Model(&models.Driver{}).Count(&stats.Drivers).Error; err != nil {
		a.logger.Error().Err(err).Msg("driver count failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	snapshot, err := a.store.Load(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("playlist load failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	stats.PlaylistLength = snapshot.Len()
	stats.PlaylistRevision = snapshot.Revision

	online, err := a.presence.OnlineCount(r.Context())
	if err != nil {
		// Presence backends are best effort; a dashboard without the
		// online counter still beats a 500.
		a.logger.Warn().Err(err).Msg("online count unavailable")
	}
	stats.TerminalsOnline = online

	a.respondJSON(w, http.StatusOK, stats)
}
