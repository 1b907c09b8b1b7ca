/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	BaseURL       string // Public base URL (e.g., http://192.168.195.6:8080)
	DBBackend     DatabaseBackend
	DBDSN         string
	MediaRoot     string
	JWTSigningKey string
	MetricsBind   string

	// Playlist store / sync
	PlaylistName string        // Name of the shared playlist record
	NATSURL      string        // Push transport; empty means poll-only
	PollInterval time.Duration // Poll fallback interval for players

	// Player terminal configuration
	TerminalID       string
	GStreamerBin     string
	StallTimeout     time.Duration // Stall-to-error bound
	ErrorDwell       time.Duration // Error overlay dwell before advancing
	RemoteRetryLimit int           // Alternate-resolution retries per entry

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	// Presence store
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("FLEETSIGN_ENV", "development"),
		HTTPBind:      getEnv("FLEETSIGN_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("FLEETSIGN_HTTP_PORT", 8080),
		BaseURL:       getEnv("FLEETSIGN_BASE_URL", ""),
		DBBackend:     DatabaseBackend(getEnv("FLEETSIGN_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:         getEnv("FLEETSIGN_DB_DSN", ""),
		MediaRoot:     getEnv("FLEETSIGN_MEDIA_ROOT", "./media"),
		JWTSigningKey: getEnv("FLEETSIGN_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("FLEETSIGN_METRICS_BIND", "127.0.0.1:9000"),

		PlaylistName: getEnv("FLEETSIGN_PLAYLIST_NAME", "default"),
		NATSURL:      getEnv("FLEETSIGN_NATS_URL", ""),
		PollInterval: getEnvDuration("FLEETSIGN_POLL_INTERVAL", 30*time.Second),

		TerminalID:       getEnv("FLEETSIGN_TERMINAL_ID", ""),
		GStreamerBin:     getEnv("FLEETSIGN_GSTREAMER_BIN", "gst-launch-1.0"),
		StallTimeout:     getEnvDuration("FLEETSIGN_PLAYER_STALL_TIMEOUT", 15*time.Second),
		ErrorDwell:       getEnvDuration("FLEETSIGN_PLAYER_ERROR_DWELL", 4*time.Second),
		RemoteRetryLimit: getEnvInt("FLEETSIGN_PLAYER_REMOTE_RETRY_LIMIT", 1),

		S3AccessKeyID:     getEnvAny([]string{"FLEETSIGN_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"FLEETSIGN_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"FLEETSIGN_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"FLEETSIGN_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"FLEETSIGN_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"FLEETSIGN_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBool("FLEETSIGN_S3_USE_PATH_STYLE", false),

		RedisAddr:     getEnv("FLEETSIGN_REDIS_ADDR", ""),
		RedisPassword: getEnv("FLEETSIGN_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("FLEETSIGN_REDIS_DB", 0),

		TracingEnabled:    getEnvBool("FLEETSIGN_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("FLEETSIGN_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("FLEETSIGN_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("FLEETSIGN_DB_DSN must be provided")
	}

	if cfg.RemoteRetryLimit < 0 {
		return nil, fmt.Errorf("FLEETSIGN_PLAYER_REMOTE_RETRY_LIMIT must not be negative")
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("FLEETSIGN_JWT_SIGNING_KEY must be provided in production")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
