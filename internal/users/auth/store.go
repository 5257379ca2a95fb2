// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		Upsert creates the account for user.CatalogID or refreshes the existing one.

		Description: Display name, credentials and last login are overwritten;
		ID and CreatedAt of an existing account are kept and written back to user.
	*/
	Upsert(context context.Context, user *User) error

	// UpdateCredentials replaces the stored (encrypted) catalog tokens.
	UpdateCredentials(context context.Context, id string, credentials Credentials) error
}

// # Login State

// StateStore keeps the OAuth state issued at login until the callback consumes it.
type StateStore interface {

	// Save remembers state together with the post-login redirect.
	Save(context context.Context, state, callback string, ttl time.Duration) error

	/*
		Take returns the redirect saved for state and forgets it.

		Returns:
		  - string: The saved callback (may be empty)
		  - error: apperr.Unauthorized if state is unknown or expired
	*/
	Take(context context.Context, state string) (string, error)
}
