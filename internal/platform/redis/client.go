// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for volatile data storage.

Albumin keeps two kinds of short-lived data here: the OAuth state issued at
login (mapped to the caller's post-login redirect) and cached catalog album
metadata. Both expire on their own, so losing Redis costs a re-login or a
catalog round-trip, never library data.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/albumin/internal/platform/constants"
)

// Pool and timeout defaults. Values given in the URL query win.
const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	defaultMaxIdleConns = 5

	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

/*
Options parses a Redis URL and fills in the pool and timeout defaults.

Description: Query parameters understood by go-redis (pool_size,
dial_timeout, ...) are kept, so operators can tune one deployment through
REDIS_URL alone. Connections are named after the service for CLIENT LIST.
*/
func Options(redisURL string) (*redis.Options, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	if options.PoolSize == 0 {
		options.PoolSize = defaultPoolSize
	}
	if options.MinIdleConns == 0 {
		options.MinIdleConns = defaultMinIdleConns
	}
	if options.MaxIdleConns == 0 {
		options.MaxIdleConns = defaultMaxIdleConns
	}
	if options.DialTimeout == 0 {
		options.DialTimeout = dialTimeout
	}
	if options.ReadTimeout == 0 {
		options.ReadTimeout = readTimeout
	}
	if options.WriteTimeout == 0 {
		options.WriteTimeout = writeTimeout
	}
	if options.ClientName == "" {
		options.ClientName = constants.AppName
	}

	return options, nil
}

// NewClient builds a client from redisURL and pings it once before returning.
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := Options(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
	)
	return client, nil
}

// Ping verifies that Redis answers within pingTimeout.
func Ping(context stdctx.Context, client redis.Cmdable) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis_ping_failed: %w", err)
	}
	return nil
}
