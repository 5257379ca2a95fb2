// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/internal/platform/constants"
	"github.com/taibuivan/albumin/internal/platform/ctxutil"
	"github.com/taibuivan/albumin/pkg/slice"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 4 << 10

// Session is a catalog client bound to one user. Create one per request.
type Session struct {
	provider  *Provider
	onRefresh RefreshFunc

	mu    sync.Mutex
	token *oauth2.Token
}

// Token returns the current credentials, including any refreshed access token.
func (session *Session) Token() *oauth2.Token {
	session.mu.Lock()
	defer session.mu.Unlock()
	copied := *session.token
	return &copied
}

// # Transport

type providerError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

/*
call performs one API request with a single refresh-and-retry on 401.

Description: out may be nil for calls without a response body.
*/
func (session *Session) call(ctx context.Context, method, path string, query url.Values, out any) error {
	status, body, err := session.send(ctx, method, path, query)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if err := session.refresh(ctx); err != nil {
			return err
		}
		if status, body, err = session.send(ctx, method, path, query); err != nil {
			return err
		}
	}

	if status >= http.StatusBadRequest {
		return decodeError(status, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Catalog(http.StatusBadGateway, "malformed catalog response", err)
	}
	return nil
}

func (session *Session) send(ctx context.Context, method, path string, query url.Values) (int, []byte, error) {
	if err := session.provider.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("catalog: rate limiter: %w", err)
	}

	endpoint := session.provider.apiBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("catalog: build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+session.Token().AccessToken)
	request.Header.Set("Accept", "application/json")

	response, err := session.provider.httpClient.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, apperr.Catalog(http.StatusBadGateway, "catalog unreachable", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, nil, apperr.Catalog(http.StatusBadGateway, "catalog response interrupted", err)
	}
	return response.StatusCode, body, nil
}

func (session *Session) refresh(ctx context.Context) error {
	token, err := session.provider.refresh(ctx, session.Token().RefreshToken)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if token.RefreshToken == "" {
		token.RefreshToken = session.token.RefreshToken
	}
	session.token = token
	session.mu.Unlock()

	ctxutil.GetLogger(ctx).InfoContext(ctx, "catalog_token_refreshed")

	if session.onRefresh != nil {
		if err := session.onRefresh(ctx, token); err != nil {
			return fmt.Errorf("catalog: persist refreshed token: %w", err)
		}
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var payload providerError
	message := http.StatusText(status)
	if len(body) > 0 && len(body) <= maxErrorBody && json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}
	return apperr.Catalog(status, message, fmt.Errorf("catalog: status %d", status))
}

// # Profile

// GetProfile returns the authenticated user's profile.
func (session *Session) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := session.call(ctx, http.MethodGet, "/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// # Albums

// GetAlbum returns one album, singles included.
func (session *Session) GetAlbum(ctx context.Context, id string) (*Album, error) {
	cached, err := session.provider.cache.GetAlbums(ctx, []string{id})
	if err != nil {
		session.cacheFailed(ctx, err)
	}
	if album, found := cached[id]; found {
		return &album, nil
	}

	var album Album
	if err := session.call(ctx, http.MethodGet, "/albums/"+url.PathEscape(id), nil, &album); err != nil {
		return nil, err
	}
	session.storeInCache(ctx, []Album{album})
	return &album, nil
}

/*
GetAlbums resolves album ids to albums and EPs, dropping singles.

Description: Cached albums are served from the cache; the rest are fetched in
blocks of the provider's maximum batch size. Output follows input order; ids
the provider does not know are skipped.
*/
func (session *Session) GetAlbums(ctx context.Context, ids []string) ([]Album, error) {
	if len(ids) == 0 {
		return []Album{}, nil
	}

	found, err := session.provider.cache.GetAlbums(ctx, ids)
	if err != nil {
		session.cacheFailed(ctx, err)
		found = map[string]Album{}
	}

	var missing []string
	for _, id := range ids {
		if _, hit := found[id]; !hit {
			missing = append(missing, id)
		}
	}

	for _, block := range slice.Chunk(missing, constants.CatalogAlbumBatchSize) {
		var response struct {
			Albums []*Album `json:"albums"`
		}
		query := url.Values{"ids": {strings.Join(block, ",")}}
		if err := session.call(ctx, http.MethodGet, "/albums", query, &response); err != nil {
			return nil, err
		}

		fetched := make([]Album, 0, len(response.Albums))
		for _, album := range response.Albums {
			if album != nil {
				found[album.ID] = *album
				fetched = append(fetched, *album)
			}
		}
		session.storeInCache(ctx, fetched)
	}

	albums := make([]Album, 0, len(ids))
	for _, id := range ids {
		if album, ok := found[id]; ok && IsAlbumOrEP(album) {
			albums = append(albums, album)
		}
	}
	return albums, nil
}

/*
SavedAlbums returns a window of the user's saved albums and EPs.

Description: keep, when non-nil, narrows each provider page further and must
preserve order; the window is computed after filtering, so pages stay full.
*/
func (session *Session) SavedAlbums(ctx context.Context, limit, offset int, keep func([]Album) []Album) ([]Album, error) {
	next := func(ctx context.Context, pageLimit, pageOffset int) ([]Album, bool, error) {
		var page Paging[SavedAlbum]
		query := url.Values{"limit": {strconv.Itoa(pageLimit)}, "offset": {strconv.Itoa(pageOffset)}}
		if err := session.call(ctx, http.MethodGet, "/me/albums", query, &page); err != nil {
			return nil, false, err
		}

		albums := make([]Album, 0, len(page.Items))
		for _, saved := range page.Items {
			if IsAlbumOrEP(saved.Album) {
				albums = append(albums, saved.Album)
			}
		}
		session.storeInCache(ctx, albums)

		if keep != nil {
			albums = keep(albums)
		}

		more := page.Next != ""
		return albums, more, nil
	}

	return ExtractPage(ctx, limit, offset, constants.CatalogPageSize, next)
}

// SearchAlbums returns a window of albums and EPs matching the keywords.
func (session *Session) SearchAlbums(ctx context.Context, keywords string, limit, offset int) ([]Album, error) {
	next := func(ctx context.Context, pageLimit, pageOffset int) ([]Album, bool, error) {
		var response struct {
			Albums Paging[Album] `json:"albums"`
		}
		query := url.Values{
			"q":      {keywords},
			"type":   {"album"},
			"limit":  {strconv.Itoa(pageLimit)},
			"offset": {strconv.Itoa(pageOffset)},
		}
		if err := session.call(ctx, http.MethodGet, "/search", query, &response); err != nil {
			return nil, false, err
		}

		// Search results are simplified albums without track totals.
		ids := slice.Map(response.Albums.Items, func(album Album) string { return album.ID })
		albums, err := session.GetAlbums(ctx, ids)
		if err != nil {
			return nil, false, err
		}

		more := response.Albums.Next != ""
		return albums, more, nil
	}

	return ExtractPage(ctx, limit, offset, constants.CatalogPageSize, next)
}

// SearchArtists returns one provider page of artists matching the keywords.
func (session *Session) SearchArtists(ctx context.Context, keywords string, limit, offset int) (*Paging[Artist], error) {
	var response struct {
		Artists Paging[Artist] `json:"artists"`
	}
	query := url.Values{
		"q":      {keywords},
		"type":   {"artist"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if err := session.call(ctx, http.MethodGet, "/search", query, &response); err != nil {
		return nil, err
	}
	if response.Artists.Items == nil {
		response.Artists.Items = []Artist{}
	}
	return &response.Artists, nil
}

// # Library

// SaveAlbums adds albums to the user's provider library.
func (session *Session) SaveAlbums(ctx context.Context, ids []string) error {
	return session.call(ctx, http.MethodPut, "/me/albums", url.Values{"ids": {strings.Join(ids, ",")}}, nil)
}

// RemoveAlbums removes albums from the user's provider library.
func (session *Session) RemoveAlbums(ctx context.Context, ids []string) error {
	return session.call(ctx, http.MethodDelete, "/me/albums", url.Values{"ids": {strings.Join(ids, ",")}}, nil)
}

// ContainsSavedAlbums reports, per id, whether the album is in the user's library.
func (session *Session) ContainsSavedAlbums(ctx context.Context, ids []string) ([]bool, error) {
	if len(ids) == 0 {
		return []bool{}, nil
	}

	var saved []bool
	if err := session.call(ctx, http.MethodGet, "/me/albums/contains", url.Values{"ids": {strings.Join(ids, ",")}}, &saved); err != nil {
		return nil, err
	}
	if len(saved) != len(ids) {
		return nil, apperr.Catalog(http.StatusBadGateway, "malformed catalog response", errors.New("catalog: contains length mismatch"))
	}
	return saved, nil
}

// # Cache

func (session *Session) storeInCache(ctx context.Context, albums []Album) {
	if len(albums) == 0 {
		return
	}
	if err := session.provider.cache.SetAlbums(ctx, albums); err != nil {
		session.cacheFailed(ctx, err)
	}
}

// cacheFailed logs and otherwise ignores cache errors; the provider is the source of truth.
func (session *Session) cacheFailed(ctx context.Context, err error) {
	ctxutil.GetLogger(ctx).WarnContext(ctx, "catalog_cache_failed", slog.Any("error", err))
}
