// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

// Counts reports the number of stored tags, albums and album tags.
func (repository *MemoryStore) Counts() (tags, albums, albumTags int) {
	defer repository.lock()()
	return len(repository.state.tags.rows), len(repository.state.albums.rows), len(repository.state.albumTags.rows)
}
