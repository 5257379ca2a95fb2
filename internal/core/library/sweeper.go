// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically reclaims rows that lost their last reference outside
// the untag flow, for instance when an account is deleted.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a [Sweeper]. A non-positive interval disables it.
func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (sweeper *Sweeper) Run(ctx context.Context) {
	if sweeper.interval <= 0 {
		sweeper.logger.Info("orphan_sweeper_disabled")
		return
	}

	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed pass is retried on the next tick.
			_, _ = sweeper.Sweep(ctx)
		}
	}
}

// Sweep runs one reclamation pass in a single transaction.
func (sweeper *Sweeper) Sweep(ctx context.Context) (Reclaimed, error) {
	var reclaimed Reclaimed
	err := sweeper.store.WithTx(ctx, func(repository Repository) error {
		var err error
		reclaimed, err = repository.ReclaimOrphans(ctx)
		return err
	})
	if err != nil {
		sweeper.logger.ErrorContext(ctx, "orphan_sweep_failed", slog.Any("error", err))
		return Reclaimed{}, err
	}

	if reclaimed.Total() > 0 {
		sweeper.logger.InfoContext(ctx, "orphan_sweep_reclaimed",
			slog.Int64("album_tags", reclaimed.AlbumTags),
			slog.Int64("albums", reclaimed.Albums),
			slog.Int64("tags", reclaimed.Tags),
		)
	}
	return reclaimed, nil
}
