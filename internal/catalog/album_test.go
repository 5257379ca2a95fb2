// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/albumin/internal/catalog"
)

func TestIsAlbumOrEP(t *testing.T) {
	tests := []struct {
		name   string
		album  catalog.Album
		expect bool
	}{
		{"album", catalog.Album{AlbumType: "album", Tracks: catalog.TrackCount{Total: 1}}, true},
		{"single with one track", catalog.Album{AlbumType: "single", Tracks: catalog.TrackCount{Total: 1}}, false},
		{"single with three tracks", catalog.Album{AlbumType: "single", Tracks: catalog.TrackCount{Total: 3}}, false},
		{"ep", catalog.Album{AlbumType: "single", Tracks: catalog.TrackCount{Total: 4}}, true},
		{"compilation", catalog.Album{AlbumType: "compilation", Tracks: catalog.TrackCount{Total: 20}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, catalog.IsAlbumOrEP(tt.album))
		})
	}
}

// evenPages serves 0..total-1 in pages, keeping only even numbers.
func evenPages(total int, calls *int) catalog.PageFunc[int] {
	return func(_ context.Context, limit, offset int) ([]int, bool, error) {
		*calls++
		var kept []int
		for n := offset; n < min(offset+limit, total); n++ {
			if n%2 == 0 {
				kept = append(kept, n)
			}
		}
		return kept, offset+limit < total, nil
	}
}

func TestExtractPage_WindowAfterFiltering(t *testing.T) {
	calls := 0
	items, err := catalog.ExtractPage(context.Background(), 5, 10, 10, evenPages(100, &calls))
	require.NoError(t, err)

	assert.Equal(t, []int{20, 22, 24, 26, 28}, items)
	assert.Equal(t, 3, calls, "stops once offset+limit items are collected")
}

func TestExtractPage_ShortListing(t *testing.T) {
	calls := 0
	items, err := catalog.ExtractPage(context.Background(), 10, 5, 10, evenPages(16, &calls))
	require.NoError(t, err)

	assert.Equal(t, []int{10, 12, 14}, items)
	assert.Equal(t, 2, calls)
}

func TestExtractPage_OffsetBeyondEnd(t *testing.T) {
	calls := 0
	items, err := catalog.ExtractPage(context.Background(), 10, 50, 10, evenPages(20, &calls))
	require.NoError(t, err)

	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestExtractPage_EmptyFilteredPageContinues(t *testing.T) {
	pages := [][]int{{1, 2}, {}, {3}}
	call := 0
	next := func(_ context.Context, _, _ int) ([]int, bool, error) {
		page := pages[call]
		call++
		return page, call < len(pages), nil
	}

	items, err := catalog.ExtractPage(context.Background(), 3, 0, 2, next)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
}

func TestExtractPage_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	next := func(context.Context, int, int) ([]int, bool, error) { return nil, true, boom }

	_, err := catalog.ExtractPage(context.Background(), 1, 0, 10, next)
	assert.ErrorIs(t, err, boom)
}
