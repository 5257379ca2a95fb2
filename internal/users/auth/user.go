// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements login through the music catalog and the user accounts
that hold each listener's catalog credentials.

# Architecture

  - Service: Runs the OAuth authorization-code flow, upserts the account and
    issues the API's own JWT. Also opens per-user catalog sessions.
  - Repository: Postgres (accounts) and Redis (short-lived login state).
  - Security: Catalog tokens are encrypted at rest with [sec.Cipher]; they
    never leave the server.
*/
package auth

import "time"

// # Domain Entities

// User is a listener who logged in through the catalog at least once.
type User struct {
	ID          string    `json:"id"`
	CatalogID   string    `json:"catalogId"`
	DisplayName string    `json:"displayName"`
	LastLoginAt time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Credentials are stored encrypted and omitted from every response.
	Credentials Credentials `json:"-"`
}

// Credentials are a user's catalog tokens as persisted, i.e. encrypted.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// LoginResult is what a completed login hands back to the HTTP layer.
type LoginResult struct {
	User  *User
	Token string

	// Callback is the post-login redirect the client asked for; empty means reply with JSON.
	Callback string
}

// # Field Identifiers

const (
	FieldCode     = "code"
	FieldState    = "state"
	FieldCallback = "callback"
)
