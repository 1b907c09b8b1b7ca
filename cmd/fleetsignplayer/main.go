/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fleetsign/fleetsign/internal/blobstore"
	"github.com/fleetsign/fleetsign/internal/config"
	"github.com/fleetsign/fleetsign/internal/db"
	"github.com/fleetsign/fleetsign/internal/eventbus"
	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/fleetsign/fleetsign/internal/logging"
	"github.com/fleetsign/fleetsign/internal/player"
	"github.com/fleetsign/fleetsign/internal/playlist"
	"github.com/fleetsign/fleetsign/internal/presence"
	"github.com/fleetsign/fleetsign/internal/resolver"
	"github.com/fleetsign/fleetsign/internal/telemetry"
	"github.com/fleetsign/fleetsign/internal/version"
)

var (
	logger     zerolog.Logger
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "fleetsignplayer",
	Short: "FleetSign player terminal",
	Long:  "FleetSign player runs the unattended media rotation on a vehicle-mounted terminal.",
	RunE:  runPlayer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML provisioning file (overrides environment)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if configPath != "" {
		if err := config.ApplyFile(configPath, cfg); err != nil {
			return err
		}
	}
	if cfg.TerminalID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("no terminal id configured and hostname unavailable: %w", err)
		}
		cfg.TerminalID = hostname
	}

	logger = logging.Setup(cfg.Environment)
	logger = logger.With().Str("terminal", cfg.TerminalID).Logger()
	return nil
}

func runPlayer(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("FleetSign player starting")

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() { _ = db.Close(database) }()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	bus := events.NewBus()
	store := playlist.NewGormStore(database, cfg.PlaylistName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Push sync when a NATS url is provisioned; otherwise fall back to
	// polling the store on an interval.
	var syncer playlist.Syncer
	if cfg.NATSURL != "" {
		bridge, err := eventbus.NewNATSBridge(cfg.NATSURL, bus, []events.EventType{
			events.EventNowPlaying,
			events.EventPlaybackState,
			events.EventPlaybackError,
			events.EventPresenceChanged,
		}, logger)
		if err != nil {
			return fmt.Errorf("initialize nats bridge: %w", err)
		}
		defer func() { _ = bridge.Close() }()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("nats bridge exited")
			}
		}()

		push := playlist.NewPushSync(store, bus, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := push.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("push sync exited")
			}
		}()
		syncer = push
	} else {
		logger.Info().Dur("interval", cfg.PollInterval).Msg("no NATS url configured, polling for playlist changes")
		poll := playlist.NewPollSync(store, cfg.PollInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := poll.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("poll sync exited")
			}
		}()
		syncer = poll
	}

	// Presence: Redis when provisioned, database otherwise. Either way a
	// failed write never disturbs playback.
	fallback := presence.NewGormStore(database)
	var primary presence.Store = fallback
	if cfg.RedisAddr != "" {
		redisStore, err := presence.NewRedisStore(presence.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis presence store unavailable, using database only")
		} else {
			primary = redisStore
			defer func() { _ = redisStore.Close() }()
		}
	}
	presenceSvc := presence.NewService(primary, fallback, bus, logger)
	presenceSvc.MarkOnline(ctx, cfg.TerminalID)

	blobs := blobstore.New(cfg.MediaRoot, logger)
	res := resolver.New(blobs, logger)
	surface := player.NewGstSurface(cfg.GStreamerBin, logger)

	controller := player.NewController(surface, res, syncer, bus, player.Policy{
		RemoteRetryLimit: cfg.RemoteRetryLimit,
		StallTimeout:     cfg.StallTimeout,
		ErrorDwell:       cfg.ErrorDwell,
	}, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		telemetry.RecordFromBus(ctx, bus)
	}()

	metricsServer := &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           metricsMux(controller),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics endpoint listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	// SIGUSR1 is the headless stand-in for a touch gesture: attached
	// input hardware signals the process to unlock playback.
	gestures := make(chan os.Signal, 1)
	signal.Notify(gestures, syscall.SIGUSR1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-gestures:
				logger.Info().Msg("gesture received")
				controller.Gesture()
			}
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- controller.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("shutting down gracefully...")
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("playback controller exited")
		}
	}

	// Offline marker goes out before the context is torn down.
	offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
	presenceSvc.MarkOffline(offlineCtx, cfg.TerminalID)
	offlineCancel()

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown failed")
	}

	wg.Wait()

	logger.Info().Msg("FleetSign player stopped")
	return nil
}

// metricsMux serves Prometheus metrics plus a small status endpoint for
// fleet health checks.
func metricsMux(controller *player.Controller) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := controller.Status()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","state":%q,"entry_id":%q,"index":%d}`,
			status.State, status.EntryID, status.Index)
	})
	return mux
}
