// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Catalog: Provider paging sizes and cache taxonomy.
  - Security: JWT issuer and OAuth state lifetime.
*/
package constants

import "time"

// # Metadata

const AppName = "albumin-api"

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// Saved-album listings page through the catalog, so this is generous.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Catalog

const (
	// CatalogPageSize is the largest page the provider returns for saved albums.
	CatalogPageSize = 50

	// CatalogAlbumBatchSize is the largest id list the provider accepts for album lookups.
	CatalogAlbumBatchSize = 20

	// CatalogMinTracksForEP is the track count above which a single counts as an EP.
	CatalogMinTracksForEP = 3

	// CatalogRateBurst is the outbound burst allowed above the steady catalog rate.
	CatalogRateBurst = 5
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "albumin.app"

	// OAuthStateTTL bounds how long a login attempt may take on the provider side.
	OAuthStateTTL = 10 * time.Minute
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixOAuthState   = "auth:oauth_state:"
	RedisPrefixCatalogAlbum = "catalog:album:"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAuthorization = "Authorization"
)
