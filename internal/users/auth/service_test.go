// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/albumin/internal/catalog"
	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/internal/platform/sec"
	"github.com/taibuivan/albumin/internal/users/auth"
	"github.com/taibuivan/albumin/pkg/uuid"
)

// # Fakes

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]auth.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]auth.User{}}
}

func (repository *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user, ok := repository.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return &user, nil
}

func (repository *memoryUsers) Upsert(_ context.Context, user *auth.User) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range repository.users {
		if existing.CatalogID == user.CatalogID {
			existing.DisplayName = user.DisplayName
			existing.Credentials = user.Credentials
			existing.LastLoginAt = now
			existing.UpdatedAt = now
			repository.users[existing.ID] = existing
			*user = existing
			return nil
		}
	}
	user.ID = uuid.New()
	user.CreatedAt, user.UpdatedAt, user.LastLoginAt = now, now, now
	repository.users[user.ID] = *user
	return nil
}

func (repository *memoryUsers) UpdateCredentials(_ context.Context, id string, credentials auth.Credentials) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user, ok := repository.users[id]
	if !ok {
		return apperr.NotFound("User")
	}
	user.Credentials = credentials
	repository.users[id] = user
	return nil
}

type memoryStates struct {
	mu     sync.Mutex
	states map[string]string
}

func (store *memoryStates) Save(_ context.Context, state, callback string, _ time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.states[state] = callback
	return nil
}

func (store *memoryStates) Take(_ context.Context, state string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	callback, ok := store.states[state]
	if !ok {
		return "", apperr.Unauthorized("Login state is invalid or expired")
	}
	delete(store.states, state)
	return callback, nil
}

// fakeCatalog accepts one access token at a time and rotates it on refresh.
type fakeCatalog struct {
	mu     sync.Mutex
	access string
}

func (fake *fakeCatalog) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(writer http.ResponseWriter, request *http.Request) {
		_ = request.ParseForm()
		fake.mu.Lock()
		defer fake.mu.Unlock()

		writer.Header().Set("Content-Type", "application/json")
		switch {
		case request.PostForm.Get("grant_type") == "authorization_code" && request.PostForm.Get("code") == "good-code":
			_ = json.NewEncoder(writer).Encode(map[string]any{"access_token": fake.access, "refresh_token": "refresh-1", "token_type": "Bearer", "expires_in": 3600})
		case request.PostForm.Get("grant_type") == "refresh_token":
			fake.access = "rotated"
			_ = json.NewEncoder(writer).Encode(map[string]any{"access_token": fake.access, "token_type": "Bearer", "expires_in": 3600})
		default:
			writer.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(writer).Encode(map[string]string{"error": "invalid_grant"})
		}
	})
	mux.HandleFunc("GET /v1/me", func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		valid := request.Header.Get("Authorization") == "Bearer "+fake.access
		fake.mu.Unlock()

		writer.Header().Set("Content-Type", "application/json")
		if !valid {
			writer.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(writer).Encode(map[string]any{"error": map[string]any{"status": 401, "message": "The access token expired"}})
			return
		}
		_ = json.NewEncoder(writer).Encode(catalog.Profile{ID: "listener-1", DisplayName: "Listener One"})
	})
	return mux
}

type fixture struct {
	service  *auth.Service
	users    *memoryUsers
	states   *memoryStates
	cipher   *sec.Cipher
	tokens   *sec.TokenService
	catalog  *fakeCatalog
	provider *catalog.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := &fakeCatalog{access: "access-1"}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	provider, err := catalog.NewProvider(catalog.Config{
		ClientID:          "client",
		ClientSecret:      "secret",
		RedirectURL:       "http://localhost/auth/spotify/callback",
		APIBaseURL:        server.URL + "/v1",
		AuthURL:           server.URL + "/authorize",
		TokenURL:          server.URL + "/token",
		RequestsPerSecond: 1000,
		HTTPClient:        server.Client(),
	})
	require.NoError(t, err)

	cipher, err := sec.NewCipher("crypt-secret", "crypt-salt")
	require.NoError(t, err)
	tokens, err := sec.NewTokenService("jwt-secret", "albumin.test", time.Hour)
	require.NoError(t, err)

	users := newMemoryUsers()
	states := &memoryStates{states: map[string]string{}}

	return &fixture{
		service:  auth.NewService(users, states, provider, tokens, cipher),
		users:    users,
		states:   states,
		cipher:   cipher,
		tokens:   tokens,
		catalog:  fake,
		provider: provider,
	}
}

// startLogin runs LoginURL and returns the state the provider would echo back.
func (f *fixture) startLogin(t *testing.T, callback string) string {
	t.Helper()
	location, err := f.service.LoginURL(context.Background(), callback)
	require.NoError(t, err)

	parsed, err := url.Parse(location)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

// # Tests

func TestLoginURL_RejectsForeignCallbacks(t *testing.T) {
	f := newFixture(t)

	for _, callback := range []string{"javascript:alert(1)", "//evil.example", "relative/path", "ftp://host/x"} {
		_, err := f.service.LoginURL(context.Background(), callback)
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation), callback)
	}

	for _, callback := range []string{"", "/app", "https://albumin.app/welcome"} {
		_, err := f.service.LoginURL(context.Background(), callback)
		assert.NoError(t, err, callback)
	}
}

func TestHandleCallback_CreatesAccountWithEncryptedTokens(t *testing.T) {
	f := newFixture(t)
	state := f.startLogin(t, "https://albumin.app/welcome")

	result, err := f.service.HandleCallback(context.Background(), "good-code", state)
	require.NoError(t, err)

	assert.Equal(t, "https://albumin.app/welcome", result.Callback)
	assert.Equal(t, "listener-1", result.User.CatalogID)
	assert.Equal(t, "Listener One", result.User.DisplayName)

	claims, err := f.tokens.VerifyToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, "listener-1", claims.CatalogID)

	stored, err := f.users.FindByID(context.Background(), result.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "access-1", stored.Credentials.AccessToken)
	access, err := f.cipher.Decrypt(stored.Credentials.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)
}

func TestHandleCallback_StateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	state := f.startLogin(t, "")

	_, err := f.service.HandleCallback(context.Background(), "good-code", state)
	require.NoError(t, err)

	_, err = f.service.HandleCallback(context.Background(), "good-code", state)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}

func TestHandleCallback_RepeatLoginKeepsAccount(t *testing.T) {
	f := newFixture(t)

	first, err := f.service.HandleCallback(context.Background(), "good-code", f.startLogin(t, ""))
	require.NoError(t, err)
	second, err := f.service.HandleCallback(context.Background(), "good-code", f.startLogin(t, ""))
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, f.users.users, 1)
}

func TestHandleCallback_Failures(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleCallback(context.Background(), "", "")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = f.service.HandleCallback(context.Background(), "bad-code", f.startLogin(t, ""))
	assert.True(t, apperr.HasCode(err, apperr.CodeCatalog))
	assert.Empty(t, f.users.users)
}

func TestCatalogSession_PersistsRefreshedToken(t *testing.T) {
	f := newFixture(t)
	result, err := f.service.HandleCallback(context.Background(), "good-code", f.startLogin(t, ""))
	require.NoError(t, err)

	// The provider now rejects access-1; the session must refresh.
	f.catalog.mu.Lock()
	f.catalog.access = "expired-marker"
	f.catalog.mu.Unlock()

	session, err := f.service.CatalogSession(context.Background(), result.User.ID)
	require.NoError(t, err)

	profile, err := session.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "listener-1", profile.ID)

	stored, err := f.users.FindByID(context.Background(), result.User.ID)
	require.NoError(t, err)
	access, err := f.cipher.Decrypt(stored.Credentials.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "rotated", access)
	refresh, err := f.cipher.Decrypt(stored.Credentials.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)
}

func TestCatalogSession_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CatalogSession(context.Background(), uuid.New())
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}

func TestCatalogSession_IsolatesUsers(t *testing.T) {
	f := newFixture(t)
	_ = f.users.Upsert(context.Background(), &auth.User{CatalogID: "other", Credentials: mustSeal(t, f.cipher, "other-token")})

	var otherID string
	for id, user := range f.users.users {
		if user.CatalogID == "other" {
			otherID = id
		}
	}

	session, err := f.service.CatalogSession(context.Background(), otherID)
	require.NoError(t, err)
	assert.Equal(t, "other-token", session.Token().AccessToken)
}

func mustSeal(t *testing.T, cipher *sec.Cipher, access string) auth.Credentials {
	t.Helper()
	encrypted, err := cipher.Encrypt(access)
	require.NoError(t, err)
	return auth.Credentials{AccessToken: encrypted, Expiry: time.Now().Add(time.Hour)}
}

var _ auth.CatalogAuth = (*catalog.Provider)(nil)

