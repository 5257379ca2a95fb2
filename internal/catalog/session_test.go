// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/taibuivan/albumin/internal/catalog"
	"github.com/taibuivan/albumin/internal/platform/apperr"
)

// # Fake Provider

type fakeProvider struct {
	mu          sync.Mutex
	accessToken string
	albums      map[string]catalog.Album
	saved       []catalog.Album
	batches     [][]string
	requests    int
	refreshes   int
	library     map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accessToken: "valid",
		albums:      map[string]catalog.Album{},
		library:     map[string]bool{},
	}
}

func (fake *fakeProvider) add(album catalog.Album) {
	fake.albums[album.ID] = album
}

func fullAlbum(id string) catalog.Album {
	return catalog.Album{ID: id, Name: "Album " + id, AlbumType: "album", Tracks: catalog.TrackCount{Total: 10}}
}

func single(id string) catalog.Album {
	return catalog.Album{ID: id, Name: "Single " + id, AlbumType: "single", Tracks: catalog.TrackCount{Total: 1}}
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

func writeProviderError(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, map[string]any{"error": map[string]any{"status": status, "message": message}})
}

func pageBounds(request *http.Request, size int) (int, int) {
	limit, _ := strconv.Atoi(request.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(request.URL.Query().Get("offset"))
	return offset, min(offset+limit, size)
}

func (fake *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(writer http.ResponseWriter, request *http.Request) {
		_ = request.ParseForm()
		fake.mu.Lock()
		defer fake.mu.Unlock()

		switch request.PostForm.Get("grant_type") {
		case "authorization_code":
			if request.PostForm.Get("code") != "good-code" {
				writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid authorization code"})
				return
			}
			writeJSON(writer, http.StatusOK, map[string]any{"access_token": fake.accessToken, "refresh_token": "refresh-1", "token_type": "Bearer", "expires_in": 3600})
		case "refresh_token":
			if request.PostForm.Get("refresh_token") != "refresh-1" {
				writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Refresh token revoked"})
				return
			}
			fake.refreshes++
			writeJSON(writer, http.StatusOK, map[string]any{"access_token": fake.accessToken, "token_type": "Bearer", "expires_in": 3600})
		default:
			writer.WriteHeader(http.StatusBadRequest)
		}
	})

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/me", func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, catalog.Profile{ID: "listener", DisplayName: "A Listener"})
	})
	api.HandleFunc("GET /v1/albums", func(writer http.ResponseWriter, request *http.Request) {
		ids := strings.Split(request.URL.Query().Get("ids"), ",")
		fake.mu.Lock()
		fake.batches = append(fake.batches, ids)
		albums := make([]*catalog.Album, len(ids))
		for index, id := range ids {
			if album, ok := fake.albums[id]; ok {
				albums[index] = &album
			}
		}
		fake.mu.Unlock()
		writeJSON(writer, http.StatusOK, map[string]any{"albums": albums})
	})
	api.HandleFunc("GET /v1/albums/{id}", func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		album, ok := fake.albums[request.PathValue("id")]
		fake.mu.Unlock()
		if !ok {
			writeProviderError(writer, http.StatusNotFound, "non existing id")
			return
		}
		writeJSON(writer, http.StatusOK, album)
	})
	api.HandleFunc("GET /v1/me/albums", func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		start, end := pageBounds(request, len(fake.saved))
		page := catalog.Paging[catalog.SavedAlbum]{Total: len(fake.saved)}
		for _, album := range fake.saved[min(start, end):end] {
			page.Items = append(page.Items, catalog.SavedAlbum{Album: album})
		}
		if end < len(fake.saved) {
			page.Next = "more"
		}
		writeJSON(writer, http.StatusOK, page)
	})
	api.HandleFunc("GET /v1/me/albums/contains", func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		var result []bool
		for _, id := range strings.Split(request.URL.Query().Get("ids"), ",") {
			result = append(result, fake.library[id])
		}
		writeJSON(writer, http.StatusOK, result)
	})
	api.HandleFunc("PUT /v1/me/albums", func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		for _, id := range strings.Split(request.URL.Query().Get("ids"), ",") {
			fake.library[id] = true
		}
		writer.WriteHeader(http.StatusOK)
	})
	api.HandleFunc("DELETE /v1/me/albums", func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		for _, id := range strings.Split(request.URL.Query().Get("ids"), ",") {
			delete(fake.library, id)
		}
		writer.WriteHeader(http.StatusOK)
	})
	api.HandleFunc("GET /v1/search", func(writer http.ResponseWriter, request *http.Request) {
		query := request.URL.Query()
		fake.mu.Lock()
		defer fake.mu.Unlock()

		if query.Get("type") == "artist" {
			writeJSON(writer, http.StatusOK, map[string]any{"artists": catalog.Paging[catalog.Artist]{
				Items: []catalog.Artist{{ID: "artist-1", Name: query.Get("q")}},
				Total: 1,
			}})
			return
		}

		// Simplified albums: no track totals, like the real search endpoint.
		var matches []catalog.Album
		for index := range len(fake.saved) {
			album := fake.saved[index]
			if strings.Contains(album.Name, query.Get("q")) {
				matches = append(matches, catalog.Album{ID: album.ID, Name: album.Name, AlbumType: album.AlbumType})
			}
		}
		start, end := pageBounds(request, len(matches))
		page := catalog.Paging[catalog.Album]{Items: matches[min(start, end):end], Total: len(matches)}
		if end < len(matches) {
			page.Next = "more"
		}
		writeJSON(writer, http.StatusOK, map[string]any{"albums": page})
	})

	mux.Handle("/v1/", http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		fake.requests++
		authorized := request.Header.Get("Authorization") == "Bearer "+fake.accessToken
		fake.mu.Unlock()

		if !authorized {
			writeProviderError(writer, http.StatusUnauthorized, "The access token expired")
			return
		}
		api.ServeHTTP(writer, request)
	}))

	return mux
}

// memoryCache is an in-process AlbumCache.
type memoryCache struct {
	mu     sync.Mutex
	albums map[string]catalog.Album
}

func (cache *memoryCache) GetAlbums(_ context.Context, ids []string) (map[string]catalog.Album, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	found := map[string]catalog.Album{}
	for _, id := range ids {
		if album, ok := cache.albums[id]; ok {
			found[id] = album
		}
	}
	return found, nil
}

func (cache *memoryCache) SetAlbums(_ context.Context, albums []catalog.Album) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for _, album := range albums {
		cache.albums[album.ID] = album
	}
	return nil
}

func newProvider(t *testing.T, fake *fakeProvider, cache catalog.AlbumCache) *catalog.Provider {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	provider, err := catalog.NewProvider(catalog.Config{
		ClientID:          "client",
		ClientSecret:      "secret",
		RedirectURL:       "http://localhost/callback",
		APIBaseURL:        server.URL + "/v1",
		AuthURL:           server.URL + "/authorize",
		TokenURL:          server.URL + "/token",
		RequestsPerSecond: 1000,
		HTTPClient:        server.Client(),
		Cache:             cache,
	})
	require.NoError(t, err)
	return provider
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "valid", RefreshToken: "refresh-1"}
}

// # Tests

func TestNewProvider_RequiresCredentials(t *testing.T) {
	_, err := catalog.NewProvider(catalog.Config{RequestsPerSecond: 1})
	assert.Error(t, err)

	_, err = catalog.NewProvider(catalog.Config{ClientID: "a", ClientSecret: "b"})
	assert.Error(t, err)
}

func TestProvider_AuthCodeURL(t *testing.T) {
	provider := newProvider(t, newFakeProvider(), nil)

	location := provider.AuthCodeURL("state-123")
	assert.Contains(t, location, "state=state-123")
	assert.Contains(t, location, "client_id=client")
	assert.Contains(t, location, "user-library-modify")
}

func TestProvider_Exchange(t *testing.T) {
	provider := newProvider(t, newFakeProvider(), nil)

	token, err := provider.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "valid", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)

	_, err = provider.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeCatalog))
	assert.Equal(t, http.StatusBadRequest, apperr.As(err).HTTPStatus)
}

func TestSession_GetProfile(t *testing.T) {
	session := newProvider(t, newFakeProvider(), nil).Session(validToken(), nil)

	profile, err := session.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "listener", profile.ID)
}

func TestSession_GetAlbums_BatchesAndFilters(t *testing.T) {
	fake := newFakeProvider()
	var ids []string
	for index := range 45 {
		id := fmt.Sprintf("a%02d", index)
		ids = append(ids, id)
		if index%5 == 0 {
			fake.add(single(id))
		} else {
			fake.add(fullAlbum(id))
		}
	}
	ids = append(ids, "unknown")

	session := newProvider(t, fake, nil).Session(validToken(), nil)
	albums, err := session.GetAlbums(context.Background(), ids)
	require.NoError(t, err)

	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 20)
	assert.Len(t, fake.batches[1], 20)
	assert.Len(t, fake.batches[2], 6)

	assert.Len(t, albums, 36)
	assert.Equal(t, "a01", albums[0].ID)
	assert.Equal(t, "a44", albums[len(albums)-1].ID)
	for _, album := range albums {
		assert.True(t, catalog.IsAlbumOrEP(album))
	}
}

func TestSession_GetAlbums_ReadsThroughCache(t *testing.T) {
	fake := newFakeProvider()
	fake.add(fullAlbum("a1"))
	fake.add(fullAlbum("a2"))
	cache := &memoryCache{albums: map[string]catalog.Album{}}
	provider := newProvider(t, fake, cache)

	first, err := provider.Session(validToken(), nil).GetAlbums(context.Background(), []string{"a1", "a2"})
	require.NoError(t, err)
	second, err := provider.Session(validToken(), nil).GetAlbums(context.Background(), []string{"a2", "a1"})
	require.NoError(t, err)

	assert.Len(t, fake.batches, 1)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[1])
}

func TestSession_GetAlbum_NotFound(t *testing.T) {
	session := newProvider(t, newFakeProvider(), nil).Session(validToken(), nil)

	_, err := session.GetAlbum(context.Background(), "missing")
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, apperr.CodeCatalog, appError.Code)
	assert.Equal(t, http.StatusNotFound, appError.HTTPStatus)
	assert.Contains(t, appError.Message, "non existing id")
}

func TestSession_GetAlbum_KeepsSingles(t *testing.T) {
	fake := newFakeProvider()
	fake.add(single("s1"))
	session := newProvider(t, fake, nil).Session(validToken(), nil)

	album, err := session.GetAlbum(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "single", album.AlbumType)
}

func TestSession_SavedAlbums_PagesAfterFiltering(t *testing.T) {
	fake := newFakeProvider()
	for index := range 130 {
		id := fmt.Sprintf("s%03d", index)
		if index%2 == 0 {
			fake.saved = append(fake.saved, fullAlbum(id))
		} else {
			fake.saved = append(fake.saved, single(id))
		}
	}
	session := newProvider(t, fake, nil).Session(validToken(), nil)

	albums, err := session.SavedAlbums(context.Background(), 10, 25, nil)
	require.NoError(t, err)
	require.Len(t, albums, 10)
	assert.Equal(t, "s050", albums[0].ID)
	assert.Equal(t, "s068", albums[9].ID)

	keepSome := func(albums []catalog.Album) []catalog.Album {
		kept := []catalog.Album{}
		for _, album := range albums {
			if album.ID < "s010" {
				kept = append(kept, album)
			}
		}
		return kept
	}
	filtered, err := session.SavedAlbums(context.Background(), 20, 0, keepSome)
	require.NoError(t, err)
	assert.Len(t, filtered, 5)
}

func TestSession_SearchAlbums_ResolvesFullAlbums(t *testing.T) {
	fake := newFakeProvider()
	for _, album := range []catalog.Album{fullAlbum("x1"), single("x2"), fullAlbum("x3")} {
		album.Name = "Blue " + album.ID
		fake.add(album)
		fake.saved = append(fake.saved, album)
	}
	session := newProvider(t, fake, nil).Session(validToken(), nil)

	albums, err := session.SearchAlbums(context.Background(), "Blue", 10, 0)
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, "x1", albums[0].ID)
	assert.Equal(t, 10, albums[0].Tracks.Total)
	assert.Equal(t, "x3", albums[1].ID)
}

func TestSession_SearchArtists(t *testing.T) {
	session := newProvider(t, newFakeProvider(), nil).Session(validToken(), nil)

	page, err := session.SearchArtists(context.Background(), "Nina", 5, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Nina", page.Items[0].Name)
}

func TestSession_LibraryRoundTrip(t *testing.T) {
	session := newProvider(t, newFakeProvider(), nil).Session(validToken(), nil)
	ctx := context.Background()

	require.NoError(t, session.SaveAlbums(ctx, []string{"a1", "a2"}))
	contains, err := session.ContainsSavedAlbums(ctx, []string{"a1", "a3", "a2"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, contains)

	require.NoError(t, session.RemoveAlbums(ctx, []string{"a1"}))
	contains, err = session.ContainsSavedAlbums(ctx, []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, contains)
}

func TestSession_RefreshesOnceOnUnauthorized(t *testing.T) {
	fake := newFakeProvider()
	fake.accessToken = "rotated"

	var persisted *oauth2.Token
	onRefresh := func(_ context.Context, token *oauth2.Token) error {
		persisted = token
		return nil
	}
	session := newProvider(t, fake, nil).Session(&oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1"}, onRefresh)

	profile, err := session.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "listener", profile.ID)

	require.NotNil(t, persisted)
	assert.Equal(t, "rotated", persisted.AccessToken)
	assert.Equal(t, "refresh-1", persisted.RefreshToken, "refresh token is kept when the provider omits it")
	assert.Equal(t, "rotated", session.Token().AccessToken)
	assert.Equal(t, 1, fake.refreshes)
	assert.Equal(t, 2, fake.requests)
}

func TestSession_RevokedRefreshToken(t *testing.T) {
	fake := newFakeProvider()
	session := newProvider(t, fake, nil).Session(&oauth2.Token{AccessToken: "stale", RefreshToken: "revoked"}, nil)

	_, err := session.GetProfile(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeCatalog))
	assert.Equal(t, 1, fake.requests, "the call is not retried without a new token")
}

func TestSession_MissingRefreshToken(t *testing.T) {
	session := newProvider(t, newFakeProvider(), nil).Session(&oauth2.Token{AccessToken: "stale"}, nil)

	_, err := session.GetProfile(context.Background())
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}

func TestSession_DoesNotShareTokens(t *testing.T) {
	provider := newProvider(t, newFakeProvider(), nil)
	token := validToken()

	session := provider.Session(token, nil)
	token.AccessToken = "mutated"

	assert.Equal(t, "valid", session.Token().AccessToken)
}
