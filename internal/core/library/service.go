// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/internal/platform/ctxutil"
	"github.com/taibuivan/albumin/internal/platform/validate"
)

// maxTagNameLength bounds a display name; longer input is almost certainly not a tag.
const maxTagNameLength = 100

// # Service Layer

// Service orchestrates tagging, untagging with orphan reclamation, and the
// listening list. It is safe for concurrent use; consistency comes from the
// [Store].
type Service struct {
	store Store
}

// NewService constructs a new [Service].
func NewService(store Store) *Service {
	return &Service{store: store}
}

// # Tagging

/*
TagAlbum applies a tag to an album on behalf of a user.

Description: Album, Tag and AlbumTag are found or created, then the link is
added to the user's set. Everything runs in one unit of work, so a rejected
duplicate leaves no trace.

Parameters:
  - context: context.Context
  - userID: string
  - externalAlbumID: string (catalog album id)
  - tagName: string (display name, trimmed before storage)

Returns:
  - *Tag: The stored tag (its name is the first spelling ever used)
  - error: VALIDATION_ERROR on empty input, DUPLICATE_TAG when already applied
*/
func (service *Service) TagAlbum(context context.Context, userID, externalAlbumID, tagName string) (*Tag, error) {
	if err := validateTagInput(externalAlbumID, tagName); err != nil {
		return nil, err
	}

	var tagged *Tag
	err := service.store.WithTx(context, func(repository Repository) error {
		album, err := repository.FindOrCreateAlbum(context, externalAlbumID)
		if err != nil {
			return err
		}

		tag, err := repository.FindOrCreateTag(context, tagName)
		if err != nil {
			return err
		}

		albumTag, err := repository.FindOrCreateAlbumTag(context, album, tag)
		if err != nil {
			return err
		}

		if err := repository.AddAlbumTag(context, userID, albumTag); err != nil {
			if errors.Is(err, ErrAlreadyMember) {
				return apperr.DuplicateTag(tag.Name)
			}
			return err
		}

		tagged = tag
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "album_tagged",
		slog.String("album_id", externalAlbumID),
		slog.String("tag", tagged.UniqueID),
	)
	return tagged, nil
}

/*
UntagAlbum removes a tag from an album for a user and reclaims orphans.

Description: The cascade runs in a fixed order inside one unit of work:
 1. remove the link from the user's set (must succeed);
 2. delete the AlbumTag if no user holds it any more;
 3. only if step 2 deleted it, delete the Album and the Tag when no AlbumTag
    references them. Steps 3a and 3b are independent of each other.

Returns:
  - error: VALIDATION_ERROR on empty input, NOT_FOUND when the album, the tag,
    their pairing or the user's reference does not exist
*/
func (service *Service) UntagAlbum(context context.Context, userID, externalAlbumID, tagName string) error {
	if err := validateTagInput(externalAlbumID, tagName); err != nil {
		return err
	}

	var reclaimed Reclaimed
	err := service.store.WithTx(context, func(repository Repository) error {
		// Lock order matches TagAlbum: album, tag, then the link.
		album, err := repository.FindAlbum(context, externalAlbumID)
		if err != nil {
			return err
		}

		tag, err := repository.FindTag(context, CalculateUniqueID(tagName))
		if err != nil {
			return err
		}

		albumTag, err := repository.FindAlbumTag(context, album, tag)
		if err != nil {
			return err
		}

		if err := repository.RemoveAlbumTag(context, userID, albumTag); err != nil {
			if errors.Is(err, ErrNotMember) {
				return apperr.NotFound("Tag on album")
			}
			return err
		}

		removed, err := repository.RemoveAlbumTagIfOrphan(context, albumTag)
		if err != nil || !removed {
			return err
		}
		reclaimed.AlbumTags++

		albumRemoved, err := repository.RemoveAlbumIfOrphan(context, album)
		if err != nil {
			return err
		}
		if albumRemoved {
			reclaimed.Albums++
		}

		tagRemoved, err := repository.RemoveTagIfOrphan(context, tag)
		if err != nil {
			return err
		}
		if tagRemoved {
			reclaimed.Tags++
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger := ctxutil.GetLogger(context)
	logger.InfoContext(context, "album_untagged",
		slog.String("album_id", externalAlbumID),
		slog.String("tag", CalculateUniqueID(tagName)),
	)
	if reclaimed.Total() > 0 {
		logger.InfoContext(context, "album_tag_reclaimed",
			slog.Int64("album_tags", reclaimed.AlbumTags),
			slog.Int64("albums", reclaimed.Albums),
			slog.Int64("tags", reclaimed.Tags),
		)
	}
	return nil
}

// # Queries

// ListUserTags returns the user's distinct tags; the first spelling applied wins.
func (service *Service) ListUserTags(context context.Context, userID string) ([]Tag, error) {
	memberships, err := service.store.ListMemberships(context, userID, "")
	if err != nil {
		return nil, err
	}
	return distinctTags(memberships), nil
}

// TagsGroupedByAlbum returns the user's full tag set indexed by external album id.
// Filtering is left to [FilterAlbums].
func (service *Service) TagsGroupedByAlbum(context context.Context, userID string) (TagsByAlbum, error) {
	memberships, err := service.store.ListMemberships(context, userID, "")
	if err != nil {
		return nil, err
	}
	return groupByAlbum(memberships), nil
}

// TagsByAlbum returns the tags the user applied to one album.
func (service *Service) TagsByAlbum(context context.Context, userID, externalAlbumID string) ([]Tag, error) {
	memberships, err := service.store.ListMemberships(context, userID, externalAlbumID)
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(memberships))
	for _, membership := range memberships {
		tags = append(tags, membership.Tag)
	}
	return tags, nil
}

// # Listening List

// AddToListeningList records an album the user wants; DUPLICATE if present.
func (service *Service) AddToListeningList(context context.Context, userID, externalAlbumID string) error {
	if err := validateAlbumInput(externalAlbumID); err != nil {
		return err
	}

	err := service.store.AddToListeningList(context, userID, externalAlbumID)
	if errors.Is(err, ErrAlreadyListening) {
		return apperr.Duplicate("Album is already in the listening list")
	}
	return err
}

// RemoveFromListeningList drops an album from the list; NOT_FOUND if absent.
func (service *Service) RemoveFromListeningList(context context.Context, userID, externalAlbumID string) error {
	if err := validateAlbumInput(externalAlbumID); err != nil {
		return err
	}

	err := service.store.RemoveFromListeningList(context, userID, externalAlbumID)
	if errors.Is(err, ErrNotListening) {
		return apperr.NotFound("Album in listening list")
	}
	return err
}

// ListeningList returns the external album ids on the user's list, oldest first.
func (service *Service) ListeningList(context context.Context, userID string) ([]string, error) {
	return service.store.ListListeningList(context, userID)
}

// # Validation

func validateTagInput(externalAlbumID, tagName string) error {
	validator := &validate.Validator{}
	validator.
		Required("album.spotifyId", externalAlbumID).
		CatalogID("album.spotifyId", externalAlbumID).
		Required("tag.name", tagName).
		MaxLen("tag.name", tagName, maxTagNameLength)
	return validator.Err()
}

func validateAlbumInput(externalAlbumID string) error {
	validator := &validate.Validator{}
	validator.
		Required("album.spotifyId", externalAlbumID).
		CatalogID("album.spotifyId", externalAlbumID)
	return validator.Err()
}
