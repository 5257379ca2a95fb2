// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ctxutil carries request-scoped values through [context.Context].

Three values travel with every request: the correlation id set by
middleware.RequestID, the request logger set by middleware.StructuredLogger, and
the verified JWT claims set by middleware.Authenticate. Keys are unexported
struct types, so no other package can read or overwrite them.
*/
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/albumin/internal/platform/sec"
)

type (
	requestIDKey struct{}
	loggerKey    struct{}
	claimsKey    struct{}
)

// # Request Tracing

// WithRequestID attaches the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the correlation id, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// # Structured Logging

// WithLogger attaches the request logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the request logger, falling back to [slog.Default] so that
// background jobs and tests can log through the same call.
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithLogAttrs derives the context logger with extra attributes, so that every
// later event of the request carries them (user_id after authentication).
func WithLogAttrs(ctx context.Context, attrs ...any) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return WithLogger(ctx, GetLogger(ctx).With(attrs...))
}

// # Identity

// WithAuthUser attaches the verified token claims.
func WithAuthUser(ctx context.Context, claims *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetAuthUser returns the verified claims, or nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, _ := ctx.Value(claimsKey{}).(*sec.AuthClaims)
	return claims
}

// UserID returns the authenticated user's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if claims := GetAuthUser(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}
