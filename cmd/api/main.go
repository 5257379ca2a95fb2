// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Albumin HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the catalog provider, auth and library domains.
//  7. Start the orphan sweeper and the HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/albumin/internal/api"
	"github.com/taibuivan/albumin/internal/catalog"
	"github.com/taibuivan/albumin/internal/core/library"
	"github.com/taibuivan/albumin/internal/platform/config"
	"github.com/taibuivan/albumin/internal/platform/constants"
	"github.com/taibuivan/albumin/internal/platform/migration"
	pgstore "github.com/taibuivan/albumin/internal/platform/postgres"
	redisstore "github.com/taibuivan/albumin/internal/platform/redis"
	"github.com/taibuivan/albumin/internal/platform/sec"
	"github.com/taibuivan/albumin/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	log := newLogger(slog.LevelInfo)
	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, migration.Source(cfg.MigrationPath), log), "run migrations")

	// ── 6. Security primitives ────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer, cfg.JWTTTL)
	must(log, err, "initialize jwt service")

	crypter, err := sec.NewCipher(cfg.UserCryptSecret, cfg.UserCryptSalt)
	must(log, err, "initialize credential cipher")

	// ── 7. Catalog provider ───────────────────────────────────────────────
	provider, err := catalog.NewProvider(catalog.Config{
		ClientID:          cfg.SpotifyClientID,
		ClientSecret:      cfg.SpotifyClientSecret,
		RedirectURL:       cfg.SpotifyRedirectURL,
		RequestsPerSecond: cfg.CatalogRPS,
		Cache:             catalog.NewRedisAlbumCache(rdb, cfg.CatalogCacheTTL),
		Logger:            log,
	})
	must(log, err, "initialize catalog provider")

	// ── 8. Domain wiring ──────────────────────────────────────────────────
	authService := auth.NewService(
		auth.NewUserRepository(pool),
		auth.NewStateStore(rdb),
		provider,
		tokens,
		crypter,
	)

	libraryStore := library.NewPostgresStore(pool)
	libraryService := library.NewService(libraryStore)
	libraryHandler := library.NewHandler(libraryService, func(ctx context.Context, userID string) (library.Catalog, error) {
		session, err := authService.CatalogSession(ctx, userID)
		if err != nil {
			return nil, err
		}
		return session, nil
	})

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		CheckCache:    func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
	}, log)

	server := api.NewServer(cfg, log, tokens, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Library:   libraryHandler,
	})

	// ── 9. Background sweeper ─────────────────────────────────────────────
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		library.NewSweeper(libraryStore, cfg.OrphanSweepInterval, log).Run(sweepCtx)
	}()

	// ── 10. Graceful shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	stopSweeper()
	<-sweeperDone

	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// newLogger builds the JSON logger shared by every component and makes it the default.
func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	return log
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Only startup wiring uses it. After startup, errors are returned and handled.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
