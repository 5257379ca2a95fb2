// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/albumin/internal/platform/apperr"
	requestutil "github.com/taibuivan/albumin/internal/platform/request"
	"github.com/taibuivan/albumin/internal/platform/respond"
)

// # Definitions & Constructors

// Handler implements the login endpoints and the profile endpoint.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] with the public login routes.
//
// # Endpoints
//   - GET /spotify          : Redirects to the catalog consent page.
//   - GET /spotify/callback : Completes the login and hands out an API token.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/spotify", handler.login)
	router.Get("/spotify/callback", handler.callback)

	return router
}

// # Response Payloads

type loginResponse struct {
	Auth  *User  `json:"auth"`
	Token string `json:"token"`
}

/*
login starts the catalog OAuth flow.

GET /auth/spotify?callback=

Response:
  - 302: Redirect to the provider
  - 400: ValidationError for a malformed callback
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	location, err := handler.authService.LoginURL(request.Context(), request.URL.Query().Get(FieldCallback))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, location, http.StatusFound)
}

/*
callback receives the provider redirect.

GET /auth/spotify/callback?code=&state=

Response:
  - 302: Redirect to the saved callback with ?token= appended
  - 200: {auth, token} when the login was started without a callback
  - 401: Denied consent or unknown state
*/
func (handler *Handler) callback(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	if reason := query.Get("error"); reason != "" {
		respond.Error(writer, request, apperr.Unauthorized("Catalog login was not granted: "+reason))
		return
	}

	result, err := handler.authService.HandleCallback(request.Context(), query.Get(FieldCode), query.Get(FieldState))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if result.Callback == "" {
		respond.OK(writer, loginResponse{Auth: result.User, Token: result.Token})
		return
	}

	http.Redirect(writer, request, withToken(result.Callback, result.Token), http.StatusFound)
}

/*
Profile returns the authenticated user's account.

GET /api/me/profile
*/
func (handler *Handler) Profile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Profile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// withToken appends the API token to an already validated callback.
func withToken(callback, token string) string {
	target, err := url.Parse(callback)
	if err != nil {
		return callback
	}
	values := target.Query()
	values.Set("token", token)
	target.RawQuery = values.Encode()
	return target.String()
}
