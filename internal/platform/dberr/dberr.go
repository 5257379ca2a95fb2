// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/albumin/internal/platform/apperr"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint failure.
const uniqueViolation = "23505"

// Wrap inspects a database error and classifies it.
//
// pgx.ErrNoRows becomes an [apperr.NotFound] for the given resource and a
// unique-constraint failure an [apperr.Duplicate] carrying the constraint name
// as its cause. Any other failure is an infrastructure error: it is wrapped with
// the action name so the cause chain stays inspectable, and [respond.Error]
// later hides it behind a 500.
func Wrap(err error, resource, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	// 2. Unique index races the upserts did not absorb
	if IsUniqueViolation(err) {
		duplicate := apperr.Duplicate(resource + " already exists")
		duplicate.Cause = err
		return duplicate
	}

	// 3. Everything else is an infrastructure failure
	return fmt.Errorf("postgres: %s: %w", action, err)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
