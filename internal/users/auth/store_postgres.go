// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/internal/platform/database/schema"
	"github.com/taibuivan/albumin/internal/platform/dberr"
	"github.com/taibuivan/albumin/pkg/uuid"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

var userColumns = strings.Join(schema.UserAccount.Columns(), ", ")

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.CatalogID,
		&user.DisplayName,
		&user.Credentials.AccessToken,
		&user.Credentials.RefreshToken,
		&user.Credentials.Expiry,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
FindByID retrieves an account by its primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, userColumns, schema.UserAccount.Table, schema.UserAccount.ID)

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "find_user_by_id")
	}
	return user, nil
}

/*
Upsert inserts the account or refreshes the one holding the same catalog id.

Description: The unique index on catalogid makes concurrent first logins of the
same listener converge on one row.
*/
func (repository *PostgresUserRepository) Upsert(context context.Context, user *User) error {
	account := schema.UserAccount
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (%[3]s) DO UPDATE SET
			%[4]s = EXCLUDED.%[4]s,
			%[5]s = EXCLUDED.%[5]s,
			%[6]s = EXCLUDED.%[6]s,
			%[7]s = EXCLUDED.%[7]s,
			%[8]s = EXCLUDED.%[8]s,
			%[9]s = EXCLUDED.%[9]s
		RETURNING %[2]s`,
		account.Table, userColumns, account.CatalogID,
		account.DisplayName, account.AccessToken, account.RefreshToken,
		account.TokenExpiry, account.LastLoginAt, account.UpdatedAt,
	)

	if user.ID == "" {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.LastLoginAt = now

	stored, err := scanUser(repository.pool.QueryRow(context, query,
		user.ID,
		user.CatalogID,
		user.DisplayName,
		user.Credentials.AccessToken,
		user.Credentials.RefreshToken,
		user.Credentials.Expiry,
		user.LastLoginAt,
		now,
	))
	if err != nil {
		return dberr.Wrap(err, "User", "upsert_user")
	}

	*user = *stored
	return nil
}

// UpdateCredentials replaces the stored tokens of one account.
func (repository *PostgresUserRepository) UpdateCredentials(context context.Context, id string, credentials Credentials) error {
	account := schema.UserAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = now() WHERE %s = $1`,
		account.Table, account.AccessToken, account.RefreshToken, account.TokenExpiry, account.UpdatedAt, account.ID)

	result, err := repository.pool.Exec(context, query, id, credentials.AccessToken, credentials.RefreshToken, credentials.Expiry)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_credentials_failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}
	return nil
}
