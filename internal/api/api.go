/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleetsign/fleetsign/internal/audit"
	"github.com/fleetsign/fleetsign/internal/auth"
	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/fleetsign/fleetsign/internal/ingest"
	"github.com/fleetsign/fleetsign/internal/logbuffer"
	"github.com/fleetsign/fleetsign/internal/models"
	"github.com/fleetsign/fleetsign/internal/playlist"
	"github.com/fleetsign/fleetsign/internal/presence"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	authoring *playlist.Authoring
	store     playlist.Store
	ingest    *ingest.Service
	presence  *presence.Service
	bus       *events.Bus
	logs      *logbuffer.Buffer
	audit     *audit.Service
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, authoring *playlist.Authoring, store playlist.Store, ingestSvc *ingest.Service, presenceSvc *presence.Service, bus *events.Bus, logs *logbuffer.Buffer, auditSvc *audit.Service, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		authoring: authoring,
		store:     store,
		ingest:    ingestSvc,
		presence:  presenceSvc,
		bus:       bus,
		logs:      logs,
		audit:     auditSvc,
		logger:    logger,
	}
}

// Routes registers all API routes on the given router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(a.jwtSecret))

			r.Post("/auth/logout", a.Logout)

			// Terminals read the list; everything below is admin-only.
			r.Get("/playlist", a.PlaylistGet)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(string(models.RoleAdmin)))

				r.Post("/playlist/entries", a.PlaylistAppend)
				r.Delete("/playlist/entries/{id}", a.PlaylistRemove)
				r.Post("/playlist/entries/{index}/swap-next", a.PlaylistSwapAdjacent)
				r.Post("/playlist/media", a.MediaUpload)

				r.Route("/advertisers", func(r chi.Router) {
					r.Get("/", a.AdvertiserList)
					r.Post("/", a.AdvertiserCreate)
					r.Get("/{id}", a.AdvertiserGet)
					r.Put("/{id}", a.AdvertiserUpdate)
					r.Delete("/{id}", a.AdvertiserDelete)
				})

				r.Route("/drivers", func(r chi.Router) {
					r.Get("/", a.DriverList)
					r.Post("/", a.DriverCreate)
					r.Get("/{id}", a.DriverGet)
					r.Put("/{id}", a.DriverUpdate)
					r.Delete("/{id}", a.DriverDelete)
				})

				r.Get("/presence", a.PresenceList)
				r.Get("/dashboard/stats", a.DashboardStats)
				r.Get("/logs", a.LogsList)
				r.Get("/audit", a.AuditList)
			})
		})
	})
}

func (a *API) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			a.logger.Error().Err(err).Msg("encode response failed")
		}
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, message string) {
	a.respondJSON(w, status, map[string]string{"error": message})
}
