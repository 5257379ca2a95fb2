// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"context"
	"errors"
)

// Membership and listening-list sentinels. The service turns them into
// client-facing errors, since only it knows which names to report.
var (
	ErrAlreadyMember    = errors.New("library: album tag already in user set")
	ErrNotMember        = errors.New("library: album tag not in user set")
	ErrAlreadyListening = errors.New("library: album already in listening list")
	ErrNotListening     = errors.New("library: album not in listening list")
)

// Reclaimed counts rows removed by an orphan sweep.
type Reclaimed struct {
	AlbumTags int64
	Albums    int64
	Tags      int64
}

// Total is the number of rows removed across all tables.
func (r Reclaimed) Total() int64 {
	return r.AlbumTags + r.Albums + r.Tags
}

// Repository is the storage contract for one unit of work.
//
// Find* lookups by natural key return an [apperr.NotFound] when absent and
// hold the row for the rest of the surrounding transaction. Callers that touch
// several rows lock albums before tags before album tags.
type Repository interface {
	// # Tag Registry
	FindOrCreateTag(context context.Context, name string) (*Tag, error)
	FindTag(context context.Context, uniqueID string) (*Tag, error)
	RemoveTagIfOrphan(context context.Context, tag *Tag) (bool, error)

	// # Album Registry
	FindOrCreateAlbum(context context.Context, externalID string) (*Album, error)
	FindAlbum(context context.Context, externalID string) (*Album, error)
	RemoveAlbumIfOrphan(context context.Context, album *Album) (bool, error)

	// # AlbumTag Link
	FindOrCreateAlbumTag(context context.Context, album *Album, tag *Tag) (*AlbumTag, error)
	FindAlbumTag(context context.Context, album *Album, tag *Tag) (*AlbumTag, error)
	RemoveAlbumTagIfOrphan(context context.Context, albumTag *AlbumTag) (bool, error)

	// # User Tag Membership
	AddAlbumTag(context context.Context, userID string, albumTag *AlbumTag) error
	RemoveAlbumTag(context context.Context, userID string, albumTag *AlbumTag) error
	// ListMemberships returns the user's set in insertion order. A non-empty
	// externalAlbumID restricts it to one album.
	ListMemberships(context context.Context, userID, externalAlbumID string) ([]Membership, error)

	// # Listening List
	AddToListeningList(context context.Context, userID, externalAlbumID string) error
	RemoveFromListeningList(context context.Context, userID, externalAlbumID string) error
	ListListeningList(context context.Context, userID string) ([]string, error)

	// # Orphan Reclamation
	ReclaimOrphans(context context.Context) (Reclaimed, error)
}

// Store is a [Repository] that can also run a unit of work atomically.
type Store interface {
	Repository

	// WithTx runs fn against a transactional view. A non-nil error from fn
	// discards every change fn made.
	WithTx(context context.Context, fn func(repository Repository) error) error
}
