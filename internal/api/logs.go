/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fleetsign/fleetsign/internal/logbuffer"
)

const defaultLogLimit = 200

// LogsList returns recent log entries from the in-memory ring buffer,
// newest first. Filters: level, terminal, q (substring), since (RFC3339),
// limit.
func (a *API) LogsList(w http.ResponseWriter, r *http.Request) {
	if a.logs == nil {
		a.respondError(w, http.StatusNotFound, "log capture disabled")
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Terminal:   r.URL.Query().Get("terminal"),
		Search:     r.URL.Query().Get("q"),
		Limit:      defaultLogLimit,
		Descending: true,
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		params.Limit = limit
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.respondError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		params.Since = since
	}

	entries := a.logs.Query(params)
	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}

	a.respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"stats":   a.logs.Stats(),
	})
}
