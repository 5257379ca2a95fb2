// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/pkg/uuid"
)

// keyedTable is an in-memory table with a unique natural key.
type keyedTable[K comparable, V any] struct {
	rows map[K]*V
}

func newKeyedTable[K comparable, V any]() keyedTable[K, V] {
	return keyedTable[K, V]{rows: make(map[K]*V)}
}

// getOrInsert returns the row stored under key, or stores and returns the
// result of create. The flag reports whether a row was inserted.
func (table keyedTable[K, V]) getOrInsert(key K, create func() *V) (*V, bool) {
	if existing, found := table.rows[key]; found {
		return existing, false
	}
	row := create()
	table.rows[key] = row
	return row, true
}

type albumTagKey struct {
	albumID string
	tagID   string
}

type memberKey struct {
	userID     string
	albumTagID string
}

type listeningKey struct {
	userID          string
	externalAlbumID string
}

// memoryState holds every table. It is shared by a store and its transactions.
type memoryState struct {
	mu sync.Mutex

	tags      keyedTable[string, Tag]
	albums    keyedTable[string, Album]
	albumTags keyedTable[albumTagKey, AlbumTag]

	members   map[memberKey]int64
	listening map[listeningKey]int64
	seq       int64
}

// MemoryStore is an in-process [Store] backing the service and handler tests.
// Every call and every WithTx block runs under one mutex.
type MemoryStore struct {
	state *memoryState

	// undo is non-nil inside WithTx and collects compensations in order.
	undo *[]func()
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		tags:      newKeyedTable[string, Tag](),
		albums:    newKeyedTable[string, Album](),
		albumTags: newKeyedTable[albumTagKey, AlbumTag](),
		members:   make(map[memberKey]int64),
		listening: make(map[listeningKey]int64),
	}}
}

// # Transactions

// WithTx runs fn while holding the store lock and reverts fn's writes when it fails.
func (repository *MemoryStore) WithTx(context context.Context, fn func(Repository) error) error {
	if repository.undo != nil {
		return fn(repository)
	}

	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	journal := make([]func(), 0)
	transaction := &MemoryStore{state: repository.state, undo: &journal}

	err := fn(transaction)
	if err == nil {
		err = context.Err()
	}
	if err != nil {
		for index := len(journal) - 1; index >= 0; index-- {
			journal[index]()
		}
		return err
	}
	return nil
}

// lock takes the store lock for a single call made outside WithTx.
func (repository *MemoryStore) lock() func() {
	if repository.undo != nil {
		return func() {}
	}
	repository.state.mu.Lock()
	return repository.state.mu.Unlock
}

func (repository *MemoryStore) record(compensate func()) {
	if repository.undo != nil {
		*repository.undo = append(*repository.undo, compensate)
	}
}

// # Tag Registry

func (repository *MemoryStore) FindOrCreateTag(context context.Context, name string) (*Tag, error) {
	defer repository.lock()()

	candidate := newTag(uuid.New(), name)
	tags := repository.state.tags
	tag, inserted := tags.getOrInsert(candidate.UniqueID, func() *Tag { return candidate })
	if inserted {
		repository.record(func() { delete(tags.rows, candidate.UniqueID) })
	}

	copied := *tag
	return &copied, nil
}

func (repository *MemoryStore) FindTag(context context.Context, uniqueID string) (*Tag, error) {
	defer repository.lock()()

	tag, found := repository.state.tags.rows[uniqueID]
	if !found {
		return nil, apperr.NotFound("Tag")
	}
	copied := *tag
	return &copied, nil
}

func (repository *MemoryStore) RemoveTagIfOrphan(context context.Context, tag *Tag) (bool, error) {
	defer repository.lock()()

	stored, found := repository.state.tags.rows[tag.UniqueID]
	if !found || stored.ID != tag.ID {
		return false, nil
	}
	for _, albumTag := range repository.state.albumTags.rows {
		if albumTag.TagID == tag.ID {
			return false, nil
		}
	}

	tags := repository.state.tags
	delete(tags.rows, tag.UniqueID)
	repository.record(func() { tags.rows[stored.UniqueID] = stored })
	return true, nil
}

// # Album Registry

func (repository *MemoryStore) FindOrCreateAlbum(context context.Context, externalID string) (*Album, error) {
	defer repository.lock()()

	albums := repository.state.albums
	album, inserted := albums.getOrInsert(externalID, func() *Album {
		return &Album{ID: uuid.New(), ExternalID: externalID}
	})
	if inserted {
		repository.record(func() { delete(albums.rows, externalID) })
	}

	copied := *album
	return &copied, nil
}

func (repository *MemoryStore) FindAlbum(context context.Context, externalID string) (*Album, error) {
	defer repository.lock()()

	album, found := repository.state.albums.rows[externalID]
	if !found {
		return nil, apperr.NotFound("Album")
	}
	copied := *album
	return &copied, nil
}

func (repository *MemoryStore) RemoveAlbumIfOrphan(context context.Context, album *Album) (bool, error) {
	defer repository.lock()()

	stored, found := repository.state.albums.rows[album.ExternalID]
	if !found || stored.ID != album.ID {
		return false, nil
	}
	for _, albumTag := range repository.state.albumTags.rows {
		if albumTag.AlbumID == album.ID {
			return false, nil
		}
	}

	albums := repository.state.albums
	delete(albums.rows, album.ExternalID)
	repository.record(func() { albums.rows[stored.ExternalID] = stored })
	return true, nil
}

// # AlbumTag Link

func (repository *MemoryStore) FindOrCreateAlbumTag(context context.Context, album *Album, tag *Tag) (*AlbumTag, error) {
	defer repository.lock()()

	key := albumTagKey{albumID: album.ID, tagID: tag.ID}
	albumTags := repository.state.albumTags
	albumTag, inserted := albumTags.getOrInsert(key, func() *AlbumTag {
		return &AlbumTag{ID: uuid.New(), AlbumID: album.ID, TagID: tag.ID}
	})
	if inserted {
		repository.record(func() { delete(albumTags.rows, key) })
	}

	copied := *albumTag
	return &copied, nil
}

func (repository *MemoryStore) FindAlbumTag(context context.Context, album *Album, tag *Tag) (*AlbumTag, error) {
	defer repository.lock()()

	albumTag, found := repository.state.albumTags.rows[albumTagKey{albumID: album.ID, tagID: tag.ID}]
	if !found {
		return nil, apperr.NotFound("Tag on album")
	}
	copied := *albumTag
	return &copied, nil
}

func (repository *MemoryStore) RemoveAlbumTagIfOrphan(context context.Context, albumTag *AlbumTag) (bool, error) {
	defer repository.lock()()

	key := albumTagKey{albumID: albumTag.AlbumID, tagID: albumTag.TagID}
	stored, found := repository.state.albumTags.rows[key]
	if !found || stored.ID != albumTag.ID {
		return false, nil
	}
	for member := range repository.state.members {
		if member.albumTagID == albumTag.ID {
			return false, nil
		}
	}

	albumTags := repository.state.albumTags
	delete(albumTags.rows, key)
	repository.record(func() { albumTags.rows[key] = stored })
	return true, nil
}

// # User Tag Membership

func (repository *MemoryStore) AddAlbumTag(context context.Context, userID string, albumTag *AlbumTag) error {
	defer repository.lock()()

	if !repository.albumTagExists(albumTag) {
		return apperr.NotFound("Tag on album")
	}

	key := memberKey{userID: userID, albumTagID: albumTag.ID}
	if _, found := repository.state.members[key]; found {
		return ErrAlreadyMember
	}

	repository.state.seq++
	repository.state.members[key] = repository.state.seq
	members := repository.state.members
	repository.record(func() { delete(members, key) })
	return nil
}

func (repository *MemoryStore) RemoveAlbumTag(context context.Context, userID string, albumTag *AlbumTag) error {
	defer repository.lock()()

	key := memberKey{userID: userID, albumTagID: albumTag.ID}
	seq, found := repository.state.members[key]
	if !found {
		return ErrNotMember
	}

	members := repository.state.members
	delete(members, key)
	repository.record(func() { members[key] = seq })
	return nil
}

func (repository *MemoryStore) ListMemberships(context context.Context, userID, externalAlbumID string) ([]Membership, error) {
	defer repository.lock()()

	byID := make(map[string]*AlbumTag, len(repository.state.albumTags.rows))
	for _, albumTag := range repository.state.albumTags.rows {
		byID[albumTag.ID] = albumTag
	}
	albums := make(map[string]*Album, len(repository.state.albums.rows))
	for _, album := range repository.state.albums.rows {
		albums[album.ID] = album
	}
	tags := make(map[string]*Tag, len(repository.state.tags.rows))
	for _, tag := range repository.state.tags.rows {
		tags[tag.ID] = tag
	}

	type ordered struct {
		seq        int64
		membership Membership
	}
	var found []ordered

	for member, seq := range repository.state.members {
		if member.userID != userID {
			continue
		}
		albumTag := byID[member.albumTagID]
		album := albums[albumTag.AlbumID]
		if externalAlbumID != "" && album.ExternalID != externalAlbumID {
			continue
		}
		found = append(found, ordered{seq: seq, membership: Membership{
			AlbumTag: *albumTag,
			Album:    *album,
			Tag:      *tags[albumTag.TagID],
		}})
	}

	slices.SortFunc(found, func(a, b ordered) int { return cmp.Compare(a.seq, b.seq) })

	memberships := make([]Membership, 0, len(found))
	for _, entry := range found {
		memberships = append(memberships, entry.membership)
	}
	return memberships, nil
}

func (repository *MemoryStore) albumTagExists(albumTag *AlbumTag) bool {
	stored, found := repository.state.albumTags.rows[albumTagKey{albumID: albumTag.AlbumID, tagID: albumTag.TagID}]
	return found && stored.ID == albumTag.ID
}

// # Listening List

func (repository *MemoryStore) AddToListeningList(context context.Context, userID, externalAlbumID string) error {
	defer repository.lock()()

	key := listeningKey{userID: userID, externalAlbumID: externalAlbumID}
	if _, found := repository.state.listening[key]; found {
		return ErrAlreadyListening
	}

	repository.state.seq++
	repository.state.listening[key] = repository.state.seq
	listening := repository.state.listening
	repository.record(func() { delete(listening, key) })
	return nil
}

func (repository *MemoryStore) RemoveFromListeningList(context context.Context, userID, externalAlbumID string) error {
	defer repository.lock()()

	key := listeningKey{userID: userID, externalAlbumID: externalAlbumID}
	seq, found := repository.state.listening[key]
	if !found {
		return ErrNotListening
	}

	listening := repository.state.listening
	delete(listening, key)
	repository.record(func() { listening[key] = seq })
	return nil
}

func (repository *MemoryStore) ListListeningList(context context.Context, userID string) ([]string, error) {
	defer repository.lock()()

	type ordered struct {
		seq int64
		id  string
	}
	var found []ordered
	for key, seq := range repository.state.listening {
		if key.userID == userID {
			found = append(found, ordered{seq: seq, id: key.externalAlbumID})
		}
	}
	slices.SortFunc(found, func(a, b ordered) int { return cmp.Compare(a.seq, b.seq) })

	ids := make([]string, 0, len(found))
	for _, entry := range found {
		ids = append(ids, entry.id)
	}
	return ids, nil
}

// # Orphan Reclamation

func (repository *MemoryStore) ReclaimOrphans(context context.Context) (Reclaimed, error) {
	defer repository.lock()()

	var reclaimed Reclaimed
	state := repository.state

	referenced := make(map[string]struct{}, len(state.members))
	for member := range state.members {
		referenced[member.albumTagID] = struct{}{}
	}
	for key, albumTag := range state.albumTags.rows {
		if _, used := referenced[albumTag.ID]; !used {
			stored := albumTag
			delete(state.albumTags.rows, key)
			repository.record(func() { state.albumTags.rows[key] = stored })
			reclaimed.AlbumTags++
		}
	}

	usedAlbums := make(map[string]struct{})
	usedTags := make(map[string]struct{})
	for _, albumTag := range state.albumTags.rows {
		usedAlbums[albumTag.AlbumID] = struct{}{}
		usedTags[albumTag.TagID] = struct{}{}
	}
	for key, album := range state.albums.rows {
		if _, used := usedAlbums[album.ID]; !used {
			stored := album
			delete(state.albums.rows, key)
			repository.record(func() { state.albums.rows[key] = stored })
			reclaimed.Albums++
		}
	}
	for key, tag := range state.tags.rows {
		if _, used := usedTags[tag.ID]; !used {
			stored := tag
			delete(state.tags.rows, key)
			repository.record(func() { state.tags.rows[key] = stored })
			reclaimed.Tags++
		}
	}

	return reclaimed, nil
}
