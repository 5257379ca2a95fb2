// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package catalog is the client for the external music catalog (Spotify).

Architecture:

  - Provider: process-wide, immutable. Holds the OAuth2 client config, the
    outbound rate limiter and the album cache.
  - Session: short-lived, bound to ONE user's credentials. Created per request,
    never shared, so concurrent requests cannot see each other's tokens.

A Session refreshes an expired access token once per call on HTTP 401,
persists the new token through a callback, and retries the call exactly once.
Any other provider failure surfaces as an [apperr.CodeCatalog] error that
keeps the provider's status code.
*/
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/internal/platform/constants"
)

// Default provider endpoints.
const (
	DefaultAPIBaseURL = "https://api.spotify.com/v1"
	DefaultAuthURL    = "https://accounts.spotify.com/authorize"
	DefaultTokenURL   = "https://accounts.spotify.com/api/token"
)

// Scopes requested at login: read and modify the saved-albums library, read the profile.
var Scopes = []string{"user-library-read", "user-library-modify", "user-read-private", "user-read-email"}

const httpTimeout = 10 * time.Second

// Config holds everything needed to build a [Provider].
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoints default to the public Spotify URLs; tests point them at httptest.
	APIBaseURL string
	AuthURL    string
	TokenURL   string

	// RequestsPerSecond caps outbound calls across all sessions.
	RequestsPerSecond float64

	HTTPClient *http.Client
	Cache      AlbumCache
	Logger     *slog.Logger
}

// Provider is the process-wide catalog client factory.
type Provider struct {
	oauth      *oauth2.Config
	apiBaseURL string
	limiter    *rate.Limiter
	httpClient *http.Client
	cache      AlbumCache
	logger     *slog.Logger
}

// NewProvider validates cfg and builds a [Provider].
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("catalog: client id and secret are required")
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("catalog: requests per second must be positive")
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	}
	if cfg.Cache == nil {
		cfg.Cache = NopCache{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiBaseURL: cfg.APIBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), constants.CatalogRateBurst),
		httpClient: cfg.HTTPClient,
		cache:      cfg.Cache,
		logger:     cfg.Logger,
	}, nil
}

// AuthCodeURL returns the provider login page URL for the given state.
func (provider *Provider) AuthCodeURL(state string) string {
	return provider.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "false"))
}

// Exchange trades an authorization code for the user's tokens.
func (provider *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := provider.oauth.Exchange(provider.withClient(ctx), code)
	if err != nil {
		return nil, tokenError(err)
	}
	return token, nil
}

// RefreshFunc persists a token obtained by a transparent refresh.
type RefreshFunc func(ctx context.Context, token *oauth2.Token) error

// Session returns a client bound to one user's credentials. onRefresh may be nil.
func (provider *Provider) Session(token *oauth2.Token, onRefresh RefreshFunc) *Session {
	copied := *token
	return &Session{provider: provider, token: &copied, onRefresh: onRefresh}
}

// refresh obtains a new access token from the refresh token.
func (provider *Provider) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, apperr.Unauthorized("Catalog session expired, please log in again")
	}

	// A token with no access token is always invalid, so the source refreshes.
	source := provider.oauth.TokenSource(provider.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, tokenError(err)
	}
	return token, nil
}

func (provider *Provider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, provider.httpClient)
}

// tokenError keeps the token endpoint's status code.
func tokenError(err error) error {
	var retrieveError *oauth2.RetrieveError
	if errors.As(err, &retrieveError) && retrieveError.Response != nil {
		message := retrieveError.ErrorDescription
		if message == "" {
			message = retrieveError.ErrorCode
		}
		if message == "" {
			message = http.StatusText(retrieveError.Response.StatusCode)
		}
		return apperr.Catalog(retrieveError.Response.StatusCode, message, err)
	}
	return apperr.Catalog(http.StatusBadGateway, "token request failed", err)
}
