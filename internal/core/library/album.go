// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

// Album is the local shadow of a catalog album. Metadata is always fetched
// live from the catalog; only the external id is kept here.
type Album struct {
	ID         string `json:"-"`
	ExternalID string `json:"externalId"`
}

// AlbumTag states that a Tag applies to an Album, independently of any user.
type AlbumTag struct {
	ID      string `json:"-"`
	AlbumID string `json:"-"`
	TagID   string `json:"-"`
}

// Membership is one entry of a user's tag set, resolved to its Album and Tag.
type Membership struct {
	AlbumTag AlbumTag
	Album    Album
	Tag      Tag
}

// AlbumTags groups the tags a user applied to one album.
type AlbumTags struct {
	Album Album `json:"album"`
	Tags  []Tag `json:"tags"`
}

// TagsByAlbum indexes a user's tags by external album id.
type TagsByAlbum map[string]*AlbumTags

// Tags returns the tags on an album, or nil when the album is untagged.
func (grouping TagsByAlbum) Tags(externalAlbumID string) []Tag {
	if group, found := grouping[externalAlbumID]; found {
		return group.Tags
	}
	return nil
}

// groupByAlbum folds ordered memberships into a [TagsByAlbum].
func groupByAlbum(memberships []Membership) TagsByAlbum {
	grouping := make(TagsByAlbum)
	for _, membership := range memberships {
		group, found := grouping[membership.Album.ExternalID]
		if !found {
			group = &AlbumTags{Album: membership.Album}
			grouping[membership.Album.ExternalID] = group
		}
		group.Tags = append(group.Tags, membership.Tag)
	}
	return grouping
}

// distinctTags keeps the first occurrence of every uniqueId, in membership order.
func distinctTags(memberships []Membership) []Tag {
	seen := make(map[string]struct{}, len(memberships))
	tags := make([]Tag, 0, len(memberships))
	for _, membership := range memberships {
		if _, dup := seen[membership.Tag.UniqueID]; dup {
			continue
		}
		seen[membership.Tag.UniqueID] = struct{}{}
		tags = append(tags, membership.Tag)
	}
	return tags
}
