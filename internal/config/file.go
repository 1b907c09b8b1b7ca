/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a terminal provisioning file. Pointer
// fields distinguish "absent" from zero so the file only overrides what
// it sets.
type fileConfig struct {
	Environment      *string `yaml:"environment"`
	TerminalID       *string `yaml:"terminal_id"`
	DBBackend        *string `yaml:"db_backend"`
	DBDSN            *string `yaml:"db_dsn"`
	MediaRoot        *string `yaml:"media_root"`
	MetricsBind      *string `yaml:"metrics_bind"`
	PlaylistName     *string `yaml:"playlist_name"`
	NATSURL          *string `yaml:"nats_url"`
	PollInterval     *string `yaml:"poll_interval"`
	GStreamerBin     *string `yaml:"gstreamer_bin"`
	StallTimeout     *string `yaml:"stall_timeout"`
	ErrorDwell       *string `yaml:"error_dwell"`
	RemoteRetryLimit *int    `yaml:"remote_retry_limit"`
	RedisAddr        *string `yaml:"redis_addr"`
	RedisPassword    *string `yaml:"redis_password"`
	RedisDB          *int    `yaml:"redis_db"`
}

// ApplyFile overlays settings from a YAML provisioning file onto cfg.
// Environment variables load first; the file wins for any key it sets.
func ApplyFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&cfg.Environment, file.Environment)
	setString(&cfg.TerminalID, file.TerminalID)
	setString(&cfg.DBDSN, file.DBDSN)
	setString(&cfg.MediaRoot, file.MediaRoot)
	setString(&cfg.MetricsBind, file.MetricsBind)
	setString(&cfg.PlaylistName, file.PlaylistName)
	setString(&cfg.NATSURL, file.NATSURL)
	setString(&cfg.GStreamerBin, file.GStreamerBin)
	setString(&cfg.RedisAddr, file.RedisAddr)
	setString(&cfg.RedisPassword, file.RedisPassword)

	if file.DBBackend != nil {
		backend := DatabaseBackend(*file.DBBackend)
		if backend != DatabasePostgres && backend != DatabaseMySQL && backend != DatabaseSQLite {
			return fmt.Errorf("unsupported database backend %q in %s", *file.DBBackend, path)
		}
		cfg.DBBackend = backend
	}
	if file.RemoteRetryLimit != nil {
		if *file.RemoteRetryLimit < 0 {
			return fmt.Errorf("remote_retry_limit must not be negative in %s", path)
		}
		cfg.RemoteRetryLimit = *file.RemoteRetryLimit
	}
	if file.RedisDB != nil {
		cfg.RedisDB = *file.RedisDB
	}

	setDuration := func(dst *time.Duration, src *string, name string) error {
		if src == nil {
			return nil
		}
		parsed, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("parse %s in %s: %w", name, path, err)
		}
		*dst = parsed
		return nil
	}
	if err := setDuration(&cfg.PollInterval, file.PollInterval, "poll_interval"); err != nil {
		return err
	}
	if err := setDuration(&cfg.StallTimeout, file.StallTimeout, "stall_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.ErrorDwell, file.ErrorDwell, "error_dwell"); err != nil {
		return err
	}

	return nil
}
