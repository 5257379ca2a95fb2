// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/albumin/internal/platform/ctxutil"
	"github.com/taibuivan/albumin/internal/platform/middleware"
	"github.com/taibuivan/albumin/internal/platform/respond"
	"github.com/taibuivan/albumin/internal/platform/sec"
)

type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*sec.AuthClaims, error) {
	if token == "good" {
		return &sec.AuthClaims{UserID: "user-1"}, nil
	}
	return nil, errors.New("bad token")
}

type stubConfig struct {
	dev     bool
	origins []string
}

func (c stubConfig) IsDevelopment() bool      { return c.dev }
func (c stubConfig) AllowedOrigins() []string { return c.origins }

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) respond.ErrorBody {
	t.Helper()
	var envelope respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	return envelope.Error
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxutil.GetRequestID(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, recorder.Header().Get("X-Request-ID"))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-ID", "client-id")
	handler.ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, "client-id", seen)
}

func TestAuthenticate(t *testing.T) {
	protected := middleware.Authenticate(stubVerifier{})(middleware.RequireAuth(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respond.OK(w, ctxutil.GetAuthUser(r.Context()).UserID)
		}),
	))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer good", http.StatusOK},
		{"anonymous", "", http.StatusUnauthorized},
		{"bad scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/me/tag", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			protected.ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHORIZED", decodeError(t, recorder).ErrorCode)
			}
		})
	}
}

func TestStructuredLogger_RecordsUser(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))

	chain := middleware.RequestID()(middleware.StructuredLogger(logger)(
		middleware.Authenticate(stubVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})),
	))

	request := httptest.NewRequest(http.MethodGet, "/api/me/profile", nil)
	request.Header.Set("Authorization", "Bearer good")
	chain.ServeHTTP(httptest.NewRecorder(), request)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "http_request_finished", entry["msg"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
}

func TestAuthenticate_HandlerEventsCarryUser(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))

	handler := middleware.Authenticate(stubVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxutil.GetLogger(r.Context()).InfoContext(r.Context(), "album_tagged")
	}))

	request := httptest.NewRequest(http.MethodPost, "/api/me/tag", nil)
	request.Header.Set("Authorization", "Bearer good")
	request = request.WithContext(ctxutil.WithLogger(request.Context(), logger))
	handler.ServeHTTP(httptest.NewRecorder(), request)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "album_tagged", entry["msg"])
	assert.Equal(t, "user-1", entry["user_id"])
}

func TestPanicRecovery(t *testing.T) {
	handler := middleware.PanicRecovery()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, recorder).ErrorCode)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	prod := middleware.CORS(stubConfig{origins: []string{"https://albumin.app"}})(next)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Origin", "https://albumin.app")
	recorder := httptest.NewRecorder()
	prod.ServeHTTP(recorder, request)
	assert.Equal(t, "https://albumin.app", recorder.Header().Get("Access-Control-Allow-Origin"))

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Origin", "https://evil.example")
	recorder = httptest.NewRecorder()
	prod.ServeHTTP(recorder, request)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))

	dev := middleware.CORS(stubConfig{dev: true})(next)
	request = httptest.NewRequest(http.MethodOptions, "/", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	recorder = httptest.NewRecorder()
	dev.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "http://localhost:3000", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestRealIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", middleware.RealIP(request))

	request.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", middleware.RealIP(request))

	request.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", middleware.RealIP(request))
}
