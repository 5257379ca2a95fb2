// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"

	"github.com/taibuivan/albumin/internal/platform/constants"
)

// Image is an artwork rendition.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// ArtistRef is the short artist form embedded in albums.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// TrackCount carries the track total the provider nests under "tracks".
type TrackCount struct {
	Total int `json:"total"`
}

// Album is the full album object returned by the provider.
type Album struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	AlbumType            string            `json:"album_type"`
	Artists              []ArtistRef       `json:"artists"`
	Images               []Image           `json:"images"`
	Genres               []string          `json:"genres,omitempty"`
	Label                string            `json:"label,omitempty"`
	ReleaseDate          string            `json:"release_date"`
	ReleaseDatePrecision string            `json:"release_date_precision,omitempty"`
	TotalTracks          int               `json:"total_tracks"`
	Tracks               TrackCount        `json:"tracks"`
	Popularity           int               `json:"popularity,omitempty"`
	URI                  string            `json:"uri"`
	ExternalURLs         map[string]string `json:"external_urls,omitempty"`
}

// SavedAlbum is an entry of the user's saved-albums library.
type SavedAlbum struct {
	AddedAt string `json:"added_at"`
	Album   Album  `json:"album"`
}

// Artist is the full artist object returned by artist search.
type Artist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Genres       []string          `json:"genres"`
	Images       []Image           `json:"images"`
	Popularity   int               `json:"popularity"`
	URI          string            `json:"uri"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
}

// Profile is the authenticated user's private profile.
type Profile struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	Email        string            `json:"email,omitempty"`
	Country      string            `json:"country,omitempty"`
	Product      string            `json:"product,omitempty"`
	Images       []Image           `json:"images"`
	URI          string            `json:"uri"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
}

// Paging is the provider's offset-based page envelope.
type Paging[T any] struct {
	Items  []T    `json:"items"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Total  int    `json:"total"`
	Next   string `json:"next,omitempty"`
}

// IsAlbumOrEP reports whether the release is a full album or an EP.
//
// The provider labels EPs as singles; a "single" with more than three tracks
// is treated as an EP.
func IsAlbumOrEP(album Album) bool {
	if album.AlbumType == "album" {
		return true
	}
	return album.AlbumType == "single" && album.Tracks.Total > constants.CatalogMinTracksForEP
}

// PageFunc fetches one provider page of up to limit items starting at offset
// and returns what survived filtering. more is false once the provider has no
// further pages.
type PageFunc[T any] func(ctx context.Context, limit, offset int) (items []T, more bool, err error)

/*
ExtractPage returns items [offset, offset+limit) of a filtered listing.

Description: Filtering breaks the provider's pagination because every page
shrinks by a different amount. ExtractPage walks provider pages of pageSize
until offset+limit filtered items are collected or the listing ends, then cuts
the requested window. A page emptied by the filter does not end the walk.
*/
func ExtractPage[T any](ctx context.Context, limit, offset, pageSize int, next PageFunc[T]) ([]T, error) {
	wanted := offset + limit
	collected := make([]T, 0, wanted)

	for providerOffset := 0; len(collected) < wanted; providerOffset += pageSize {
		items, more, err := next(ctx, pageSize, providerOffset)
		if err != nil {
			return nil, err
		}
		collected = append(collected, items...)
		if !more {
			break
		}
	}

	if offset >= len(collected) {
		return []T{}, nil
	}
	end := min(offset+limit, len(collected))
	return collected[offset:end], nil
}
