/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "fleetsign:presence:"

// RedisStore keeps presence records in Redis so dashboards across
// processes see terminal status without touching the database.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("redis presence store initialized")
	return &RedisStore{client: client, logger: logger}, nil
}

// Set writes the record under the terminal's key.
func (r *RedisStore) Set(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode presence record: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+record.TerminalID, data, 0).Err(); err != nil {
		return fmt.Errorf("set presence record: %w", err)
	}
	return nil
}

// List scans all presence keys.
func (r *RedisStore) List(ctx context.Context) ([]Record, error) {
	var records []Record
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("get presence record: %w", err)
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			r.logger.Warn().Err(err).Str("key", iter.Val()).Msg("corrupt presence record skipped")
			continue
		}
		records = append(records, record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence records: %w", err)
	}
	return records, nil
}

// Close releases the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
