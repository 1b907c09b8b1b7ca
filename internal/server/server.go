/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the admin process: database, event bus, NATS
// bridge, presence stores, ingest, and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleetsign/fleetsign/internal/api"
	"github.com/fleetsign/fleetsign/internal/audit"
	"github.com/fleetsign/fleetsign/internal/config"
	"github.com/fleetsign/fleetsign/internal/db"
	"github.com/fleetsign/fleetsign/internal/eventbus"
	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/fleetsign/fleetsign/internal/ingest"
	"github.com/fleetsign/fleetsign/internal/logbuffer"
	"github.com/fleetsign/fleetsign/internal/playlist"
	"github.com/fleetsign/fleetsign/internal/presence"
	"github.com/fleetsign/fleetsign/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	logs       *logbuffer.Buffer
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db         *gorm.DB
	bus        *events.Bus
	store      playlist.Store
	authoring  *playlist.Authoring
	ingest     *ingest.Service
	presence   *presence.Service
	natsBridge *eventbus.NATSBridge
	audit      *audit.Service
	api        *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logs may be nil
// when log capture is disabled.
func New(cfg *config.Config, logger zerolog.Logger, logs *logbuffer.Buffer) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("fleetsign-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for uploads that can legitimately exceed it.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/playlist/media" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		logs:   logs,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Header deadline protects against slowloris; no full-body read
		// deadline so large uploads are not terminated mid-request.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline' data: blob: https: http:; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := os.MkdirAll(s.cfg.MediaRoot, 0755); err != nil {
		return fmt.Errorf("create media directory %s: %w", s.cfg.MediaRoot, err)
	}
	s.logger.Info().Str("path", s.cfg.MediaRoot).Msg("media directory ready")

	if s.cfg.NATSURL != "" {
		bridge, err := eventbus.NewNATSBridge(s.cfg.NATSURL, s.bus, []events.EventType{
			events.EventPlaylistUpdated,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("initialize nats bridge: %w", err)
		}
		s.natsBridge = bridge
		s.DeferClose(bridge.Close)
	} else {
		s.logger.Info().Msg("no NATS url configured, players fall back to polling")
	}

	fallback := presence.NewGormStore(database)
	var primary presence.Store = fallback
	if s.cfg.RedisAddr != "" {
		redisStore, err := presence.NewRedisStore(presence.RedisConfig{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		}, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("redis presence store unavailable, using database only")
		} else {
			primary = redisStore
			s.DeferClose(redisStore.Close)
		}
	}
	s.presence = presence.NewService(primary, fallback, s.bus, s.logger)

	s.store = playlist.NewGormStore(database, s.cfg.PlaylistName)
	s.authoring = playlist.NewAuthoring(s.store, s.bus, s.logger)

	ingestSvc, err := ingest.NewService(s.cfg, s.bus, s.logger)
	if err != nil {
		return fmt.Errorf("initialize ingest service: %w", err)
	}
	s.ingest = ingestSvc

	s.audit = audit.NewService(s.db, s.bus, s.logger)

	s.api = api.New(s.db, []byte(s.cfg.JWTSigningKey), s.authoring, s.store, s.ingest, s.presence, s.bus, s.logs, s.audit, s.logger)

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Bus exposes the in-process event bus.
func (s *Server) Bus() *events.Bus {
	return s.bus
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.natsBridge != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.natsBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("nats bridge exited")
			}
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.audit.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		telemetry.RecordFromBus(ctx, s.bus)
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	// Uploaded media is served straight off the filesystem backend; with
	// S3 configured the locators point at the bucket instead.
	if s.cfg.S3Bucket == "" {
		fileServer := http.FileServer(http.Dir(s.cfg.MediaRoot))
		s.router.Handle("/media/*", http.StripPrefix("/media/", fileServer))
	}

	s.api.Routes(s.router)
}
