// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/taibuivan/albumin/internal/catalog"
	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/internal/platform/constants"
	"github.com/taibuivan/albumin/internal/platform/ctxutil"
	"github.com/taibuivan/albumin/internal/platform/validate"
)

// # Contracts & Types

// TokenIssuer signs the API's own access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, catalogID string) (string, error)
}

// Crypter seals catalog tokens before they reach storage.
type Crypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// CatalogAuth is the part of [catalog.Provider] the login flow needs.
type CatalogAuth interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Session(token *oauth2.Token, onRefresh catalog.RefreshFunc) *catalog.Session
}

// Service implements catalog login and per-user catalog access.
type Service struct {
	userRepository UserRepository
	stateStore     StateStore
	catalog        CatalogAuth
	tokenIssuer    TokenIssuer
	crypter        Crypter
}

// NewService constructs a new [Service] with its dependencies.
func NewService(users UserRepository, states StateStore, provider CatalogAuth, tokens TokenIssuer, crypter Crypter) *Service {
	return &Service{
		userRepository: users,
		stateStore:     states,
		catalog:        provider,
		tokenIssuer:    tokens,
		crypter:        crypter,
	}
}

// # Login Flow

/*
LoginURL starts a login and returns the catalog's consent page.

Description: A fresh random state is stored with the caller's callback so the
provider's redirect can be matched to this request exactly once.

Parameters:
  - context: context.Context
  - callback: string (optional post-login redirect)

Returns:
  - string: Provider authorization URL
  - error: ValidationError for a malformed callback, or storage errors
*/
func (service *Service) LoginURL(context context.Context, callback string) (string, error) {
	if err := validateCallback(callback); err != nil {
		return "", err
	}

	state := rand.Text()
	if err := service.stateStore.Save(context, state, callback, constants.OAuthStateTTL); err != nil {
		return "", fmt.Errorf("auth_service_save_state_failed: %w", err)
	}

	return service.catalog.AuthCodeURL(state), nil
}

/*
HandleCallback completes a login started by [Service.LoginURL].

Description: Consumes the state, exchanges the code, fetches the listener's
profile, upserts the account with encrypted tokens and issues an API token.

Returns:
  - *LoginResult: Account, API token and the saved callback
  - error: Unauthorized for an unknown state, catalog or storage errors
*/
func (service *Service) HandleCallback(context context.Context, code, state string) (*LoginResult, error) {
	validator := &validate.Validator{}
	validator.Required(FieldCode, code).Required(FieldState, state)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	callback, err := service.stateStore.Take(context, state)
	if err != nil {
		return nil, err
	}

	token, err := service.catalog.Exchange(context, code)
	if err != nil {
		return nil, err
	}

	profile, err := service.catalog.Session(token, nil).GetProfile(context)
	if err != nil {
		return nil, err
	}

	credentials, err := service.seal(token)
	if err != nil {
		return nil, err
	}

	user := &User{
		CatalogID:   profile.ID,
		DisplayName: profile.DisplayName,
		Credentials: credentials,
	}
	if err := service.userRepository.Upsert(context, user); err != nil {
		return nil, err
	}

	apiToken, err := service.tokenIssuer.GenerateAccessToken(user.ID, user.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_logged_in",
		slog.String("user_id", user.ID),
		slog.String("catalog_id", user.CatalogID),
	)

	return &LoginResult{User: user, Token: apiToken, Callback: callback}, nil
}

// # Account Access

// Profile returns the account of the given user.
func (service *Service) Profile(context context.Context, userID string) (*User, error) {
	return service.userRepository.FindByID(context, userID)
}

/*
CatalogSession opens a catalog client bound to one user's credentials.

Description: Tokens refreshed during the session are encrypted and written
back, so the next request starts from the new access token.
*/
func (service *Service) CatalogSession(ctx context.Context, userID string) (*catalog.Session, error) {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized("Account no longer exists")
		}
		return nil, err
	}

	token, err := service.open(user.Credentials)
	if err != nil {
		return nil, err
	}

	persist := func(ctx context.Context, refreshed *oauth2.Token) error {
		credentials, err := service.seal(refreshed)
		if err != nil {
			return err
		}
		return service.userRepository.UpdateCredentials(ctx, user.ID, credentials)
	}

	return service.catalog.Session(token, persist), nil
}

// # Helpers

func (service *Service) seal(token *oauth2.Token) (Credentials, error) {
	access, err := service.crypter.Encrypt(token.AccessToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("auth_service_encrypt_failed: %w", err)
	}
	refresh, err := service.crypter.Encrypt(token.RefreshToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("auth_service_encrypt_failed: %w", err)
	}
	return Credentials{AccessToken: access, RefreshToken: refresh, Expiry: token.Expiry}, nil
}

func (service *Service) open(credentials Credentials) (*oauth2.Token, error) {
	access, err := service.crypter.Decrypt(credentials.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("auth_service_decrypt_failed: %w", err)
	}
	refresh, err := service.crypter.Decrypt(credentials.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth_service_decrypt_failed: %w", err)
	}
	return &oauth2.Token{AccessToken: access, RefreshToken: refresh, Expiry: credentials.Expiry, TokenType: "Bearer"}, nil
}

// validateCallback accepts an empty value, a same-site path or an absolute http(s) URL.
func validateCallback(callback string) error {
	if callback == "" {
		return nil
	}

	parsed, err := url.Parse(callback)
	valid := err == nil &&
		((parsed.Scheme == "" && parsed.Host == "" && len(parsed.Path) > 0 && parsed.Path[0] == '/') ||
			((parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""))
	if !valid {
		return apperr.ValidationError("Invalid callback", apperr.FieldError{Field: FieldCallback, Message: "must be an absolute http(s) URL or a path"})
	}
	return nil
}
