/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fleetsign/fleetsign/internal/audit"
	"github.com/fleetsign/fleetsign/internal/models"
)

// AuditList returns persisted audit entries, newest first. Filters:
// action, user_id, from, to (RFC3339), limit, offset.
func (a *API) AuditList(w http.ResponseWriter, r *http.Request) {
	var filters audit.QueryFilters

	query := r.URL.Query()
	if raw := query.Get("action"); raw != "" {
		action := models.AuditAction(raw)
		filters.Action = &action
	}
	if raw := query.Get("user_id"); raw != "" {
		filters.UserID = &raw
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.respondError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filters.StartTime = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.respondError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filters.EndTime = &to
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filters.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			a.respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filters.Offset = offset
	}

	entries, total, err := a.audit.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("audit query failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}

	a.respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}
