// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/albumin/internal/core/library"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedOrphans leaves one live membership plus an unreferenced album tag, album and tag.
func seedOrphans(t *testing.T, store *library.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	_, err := library.NewService(store).TagAlbum(ctx, alice, "kept", "Kept")
	require.NoError(t, err)

	album, err := store.FindOrCreateAlbum(ctx, "orphan-album")
	require.NoError(t, err)
	tag, err := store.FindOrCreateTag(ctx, "Orphan")
	require.NoError(t, err)
	_, err = store.FindOrCreateAlbumTag(ctx, album, tag)
	require.NoError(t, err)

	_, err = store.FindOrCreateTag(ctx, "Lonely")
	require.NoError(t, err)
}

func TestSweeper_Sweep(t *testing.T) {
	store := library.NewMemoryStore()
	seedOrphans(t, store)
	assertCounts(t, store, 3, 2, 2)

	sweeper := library.NewSweeper(store, time.Hour, discardLogger())
	reclaimed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, library.Reclaimed{AlbumTags: 1, Albums: 1, Tags: 2}, reclaimed)
	assert.Equal(t, int64(4), reclaimed.Total())
	assertCounts(t, store, 1, 1, 1)

	again, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Total())
}

func TestSweeper_CancelledContextRollsBack(t *testing.T) {
	store := library.NewMemoryStore()
	seedOrphans(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := library.NewSweeper(store, time.Hour, discardLogger()).Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assertCounts(t, store, 3, 2, 2)
}

func TestSweeper_RunDisabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		library.NewSweeper(library.NewMemoryStore(), 0, discardLogger()).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a disabled sweeper must return immediately")
	}
}

func TestSweeper_RunTicksUntilCancelled(t *testing.T) {
	store := library.NewMemoryStore()
	seedOrphans(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		library.NewSweeper(store, 10*time.Millisecond, discardLogger()).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		tags, albums, albumTags := store.Counts()
		return tags == 1 && albums == 1 && albumTags == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
