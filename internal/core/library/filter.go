// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

// AlbumFilter selects albums from a user's grouping. The criteria are ORed:
// an album matches when it carries any listed tag, or when Untagged is set and
// it carries none. An empty filter matches everything.
type AlbumFilter struct {
	// TagIDs holds uniqueIds; display names are folded by [NewAlbumFilter].
	TagIDs   []string
	Untagged bool
}

// NewAlbumFilter folds requested tag names to uniqueIds.
func NewAlbumFilter(tagNames []string, untagged bool) AlbumFilter {
	filter := AlbumFilter{Untagged: untagged}
	for _, name := range tagNames {
		if uniqueID := CalculateUniqueID(name); uniqueID != "" {
			filter.TagIDs = append(filter.TagIDs, uniqueID)
		}
	}
	return filter
}

// IsEmpty reports whether the filter lets every album through.
func (filter AlbumFilter) IsEmpty() bool {
	return len(filter.TagIDs) == 0 && !filter.Untagged
}

// Matches applies the filter to the tags one album carries.
func (filter AlbumFilter) Matches(tags []Tag) bool {
	if filter.IsEmpty() {
		return true
	}
	if filter.Untagged && len(tags) == 0 {
		return true
	}
	for _, tag := range tags {
		for _, wanted := range filter.TagIDs {
			if tag.UniqueID == wanted {
				return true
			}
		}
	}
	return false
}

// FilterAlbums keeps the items whose tags, looked up in grouping, match the filter.
// externalID extracts the catalog id of an item. Order is preserved.
func FilterAlbums[T any](items []T, externalID func(T) string, grouping TagsByAlbum, filter AlbumFilter) []T {
	if filter.IsEmpty() {
		return items
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if filter.Matches(grouping.Tags(externalID(item))) {
			kept = append(kept, item)
		}
	}
	return kept
}
