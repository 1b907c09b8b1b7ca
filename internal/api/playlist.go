/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleetsign/fleetsign/internal/playlist"
)

// maxUploadBytes caps a single media upload at 512 MiB.
const maxUploadBytes = 512 << 20

type playlistResponse struct {
	Entries  []playlist.MediaEntry `json:"entries"`
	Revision int64                 `json:"revision"`
}

// PlaylistGet returns the current shared list snapshot.
func (a *API) PlaylistGet(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.store.Load(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("playlist load failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries := snapshot.Entries
	if entries == nil {
		entries = []playlist.MediaEntry{}
	}
	a.respondJSON(w, http.StatusOK, playlistResponse{Entries: entries, Revision: snapshot.Revision})
}

// PlaylistAppend adds a remote-link entry at the end of the list.
func (a *API) PlaylistAppend(w http.ResponseWriter, r *http.Request) {
	var entry playlist.MediaEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if entry.SourceKind == "" {
		entry.SourceKind = playlist.SourceRemoteLink
	}

	stored, err := a.authoring.Append(r.Context(), entry)
	if err != nil {
		if errors.Is(err, playlist.ErrEmptyLocator) {
			a.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error().Err(err).Msg("playlist append failed")
		a.respondError(w, http.StatusInternalServerError, "append failed, resubmit to retry")
		return
	}

	a.respondJSON(w, http.StatusCreated, stored)
}

// PlaylistRemove deletes the entry with the given id. When the entry
// points at media this server ingested, the stored object goes with it.
func (a *API) PlaylistRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := a.store.Load(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("playlist load failed")
		a.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var removed playlist.MediaEntry
	if index := snapshot.IndexOf(id); index >= 0 {
		removed = snapshot.Entries[index]
	}

	if err := a.authoring.Remove(r.Context(), id); err != nil {
		if errors.Is(err, playlist.ErrEntryNotFound) {
			a.respondError(w, http.StatusNotFound, "entry not found")
			return
		}
		a.logger.Error().Err(err).Msg("playlist remove failed")
		a.respondError(w, http.StatusInternalServerError, "remove failed, resubmit to retry")
		return
	}

	// Ingested uploads carry a /media/ locator; anything else is a
	// foreign URL and there is nothing of ours to clean up.
	if key := mediaKeyFromLocator(removed.Locator); key != "" {
		if err := a.ingest.Remove(r.Context(), key); err != nil {
			a.logger.Warn().Err(err).Str("key", key).Msg("stored media cleanup failed")
		}
	}

	a.respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// PlaylistSwapAdjacent exchanges the entry at index with its successor.
func (a *API) PlaylistSwapAdjacent(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid index")
		return
	}

	if err := a.authoring.SwapAdjacent(r.Context(), index); err != nil {
		if errors.Is(err, playlist.ErrInvalidIndex) {
			a.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error().Err(err).Msg("playlist swap failed")
		a.respondError(w, http.StatusInternalServerError, "swap failed, resubmit to retry")
		return
	}

	a.respondJSON(w, http.StatusOK, map[string]string{"status": "swapped"})
}

// MediaUpload ingests an uploaded file and appends an entry for it in
// one step. The entry is a remote link: terminals stream it from this
// server's /media/ route (or the S3 bucket) like any other URL, so an
// upload needs no per-device blob distribution.
func (a *API) MediaUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.respondError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	key := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	locator, err := a.ingest.Ingest(r.Context(), key, file)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "media ingest failed")
		return
	}

	displayName := r.FormValue("display_name")
	if displayName == "" {
		displayName = header.Filename
	}

	entry := playlist.MediaEntry{
		SourceKind:  playlist.SourceRemoteLink,
		Locator:     locator,
		DisplayName: displayName,
		OwnerLabel:  r.FormValue("owner_label"),
	}

	stored, err := a.authoring.Append(r.Context(), entry)
	if err != nil {
		// The object is stored but not enqueued; remove it so nothing
		// orphans.
		if cleanupErr := a.ingest.Remove(r.Context(), key); cleanupErr != nil {
			a.logger.Warn().Err(cleanupErr).Str("key", key).Msg("upload rollback failed")
		}
		a.logger.Error().Err(err).Msg("upload append failed")
		a.respondError(w, http.StatusInternalServerError, "append failed, resubmit to retry")
		return
	}

	a.respondJSON(w, http.StatusCreated, stored)
}

// mediaKeyFromLocator recovers the storage key from a locator produced by
// the ingest service.
func mediaKeyFromLocator(locator string) string {
	const marker = "/media/"
	index := strings.LastIndex(locator, marker)
	if index < 0 {
		return ""
	}
	return locator[index+len(marker):]
}
