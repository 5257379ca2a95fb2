// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package library implements the user's tag library: tags, albums, the links
between them, each user's tag set and listening list, and the reclamation of
rows nobody references any more.

The PostgreSQL store leans on the database for every consistency rule:
  - Unique indexes on natural keys plus INSERT … ON CONFLICT … RETURNING give
    race-free find-or-create without application locks.
  - Orphan checks lock the candidate row and delete it with NOT EXISTS, so a
    concurrent tagger either commits first and keeps the row alive, or waits
    and re-creates it.
  - Foreign keys with RESTRICT make a dangling membership impossible.
*/
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/albumin/internal/platform/database/schema"
	"github.com/taibuivan/albumin/internal/platform/dberr"
	"github.com/taibuivan/albumin/pkg/uuid"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the PostgreSQL implementation of [Store].
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
}

// NewPostgresStore constructs a [Store] backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

// # Transactions

/*
WithTx runs fn inside a single database transaction.

Description: The transaction commits only when fn returns nil. Nested calls
reuse the outer transaction.
*/
func (repository *PostgresStore) WithTx(context context.Context, fn func(Repository) error) error {
	if repository.pool == nil {
		return fn(repository)
	}

	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer transaction.Rollback(context)

	if err := fn(&PostgresStore{db: transaction}); err != nil {
		return err
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: failed to commit transaction: %w", err)
	}
	return nil
}

// # Generic Find-or-Create

// upsert describes a keyed get-or-insert on one table.
type upsert struct {
	table    string
	columns  []string
	conflict string
	resource string
}

// statement renders the INSERT. The no-op DO UPDATE makes RETURNING yield the
// existing row on conflict and locks it for the rest of the transaction.
func (target upsert) statement() string {
	placeholders := make([]string, len(target.columns))
	for index := range target.columns {
		placeholders[index] = fmt.Sprintf("$%d", index+1)
	}

	columnList := strings.Join(target.columns, ", ")
	return fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES (%s)
		ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s
		RETURNING %s
	`, target.table, columnList, strings.Join(placeholders, ", "), target.conflict, target.columns[1], target.columns[1], columnList)
}

// findOrCreate inserts values or returns the row already holding the key.
// values must follow target.columns; the scan target receives the same columns.
func findOrCreate[T any](context context.Context, db querier, target upsert, scan func(pgx.Row) (*T, error), values ...any) (*T, error) {
	entity, err := scan(db.QueryRow(context, target.statement(), values...))
	if err != nil {
		return nil, dberr.Wrap(err, target.resource, "find_or_create_"+target.resource)
	}
	return entity, nil
}

// removeIfOrphan locks the row, then deletes it only if nothing references it.
func removeIfOrphan(context context.Context, db querier, table, idColumn, id, referenceCheck string) (bool, error) {
	lockQuery := fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = $1 FOR UPDATE`, table, idColumn)

	var exists int
	if err := db.QueryRow(context, lockQuery, id).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: lock %s failed: %w", table, err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s t WHERE t.%s = $1 AND NOT EXISTS (%s)`, table, idColumn, referenceCheck)

	result, err := db.Exec(context, deleteQuery, id)
	if err != nil {
		return false, fmt.Errorf("postgres: delete orphan from %s failed: %w", table, err)
	}
	return result.RowsAffected() > 0, nil
}

// # Tag Registry

var tagUpsert = upsert{
	table:    schema.LibraryTag.Table,
	columns:  []string{schema.LibraryTag.ID, schema.LibraryTag.UniqueID, schema.LibraryTag.Name},
	conflict: schema.LibraryTag.UniqueID,
	resource: "tag",
}

func scanTag(row pgx.Row) (*Tag, error) {
	var tag Tag
	if err := row.Scan(&tag.ID, &tag.UniqueID, &tag.Name); err != nil {
		return nil, err
	}
	return &tag, nil
}

/*
FindOrCreateTag returns the Tag whose uniqueId matches name, creating it with
the trimmed name when absent.
*/
func (repository *PostgresStore) FindOrCreateTag(context context.Context, name string) (*Tag, error) {
	candidate := newTag(uuid.New(), name)
	return findOrCreate(context, repository.db, tagUpsert, scanTag, candidate.ID, candidate.UniqueID, candidate.Name)
}

// FindTag looks a Tag up by uniqueId and locks it.
func (repository *PostgresStore) FindTag(context context.Context, uniqueID string) (*Tag, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 FOR UPDATE`,
		strings.Join(schema.LibraryTag.Columns(), ", "), schema.LibraryTag.Table, schema.LibraryTag.UniqueID)

	tag, err := scanTag(repository.db.QueryRow(context, query, uniqueID))
	if err != nil {
		return nil, dberr.Wrap(err, "Tag", "find_tag")
	}
	return tag, nil
}

// RemoveTagIfOrphan deletes the Tag unless an AlbumTag still references it.
func (repository *PostgresStore) RemoveTagIfOrphan(context context.Context, tag *Tag) (bool, error) {
	reference := fmt.Sprintf(`SELECT 1 FROM %s r WHERE r.%s = t.%s`,
		schema.LibraryAlbumTag.Table, schema.LibraryAlbumTag.TagID, schema.LibraryTag.ID)
	return removeIfOrphan(context, repository.db, schema.LibraryTag.Table, schema.LibraryTag.ID, tag.ID, reference)
}

// # Album Registry

var albumUpsert = upsert{
	table:    schema.LibraryAlbum.Table,
	columns:  []string{schema.LibraryAlbum.ID, schema.LibraryAlbum.ExternalID},
	conflict: schema.LibraryAlbum.ExternalID,
	resource: "album",
}

func scanAlbum(row pgx.Row) (*Album, error) {
	var album Album
	if err := row.Scan(&album.ID, &album.ExternalID); err != nil {
		return nil, err
	}
	return &album, nil
}

// FindOrCreateAlbum returns the Album keyed verbatim by externalID.
func (repository *PostgresStore) FindOrCreateAlbum(context context.Context, externalID string) (*Album, error) {
	return findOrCreate(context, repository.db, albumUpsert, scanAlbum, uuid.New(), externalID)
}

// FindAlbum looks an Album up by external id and locks it.
func (repository *PostgresStore) FindAlbum(context context.Context, externalID string) (*Album, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 FOR UPDATE`,
		strings.Join(schema.LibraryAlbum.Columns(), ", "), schema.LibraryAlbum.Table, schema.LibraryAlbum.ExternalID)

	album, err := scanAlbum(repository.db.QueryRow(context, query, externalID))
	if err != nil {
		return nil, dberr.Wrap(err, "Album", "find_album")
	}
	return album, nil
}

// RemoveAlbumIfOrphan deletes the Album unless an AlbumTag still references it.
func (repository *PostgresStore) RemoveAlbumIfOrphan(context context.Context, album *Album) (bool, error) {
	reference := fmt.Sprintf(`SELECT 1 FROM %s r WHERE r.%s = t.%s`,
		schema.LibraryAlbumTag.Table, schema.LibraryAlbumTag.AlbumID, schema.LibraryAlbum.ID)
	return removeIfOrphan(context, repository.db, schema.LibraryAlbum.Table, schema.LibraryAlbum.ID, album.ID, reference)
}

// # AlbumTag Link

var albumTagUpsert = upsert{
	table:    schema.LibraryAlbumTag.Table,
	columns:  []string{schema.LibraryAlbumTag.ID, schema.LibraryAlbumTag.AlbumID, schema.LibraryAlbumTag.TagID},
	conflict: schema.LibraryAlbumTag.AlbumID + ", " + schema.LibraryAlbumTag.TagID,
	resource: "album_tag",
}

func scanAlbumTag(row pgx.Row) (*AlbumTag, error) {
	var albumTag AlbumTag
	if err := row.Scan(&albumTag.ID, &albumTag.AlbumID, &albumTag.TagID); err != nil {
		return nil, err
	}
	return &albumTag, nil
}

// FindOrCreateAlbumTag returns the single link between album and tag.
func (repository *PostgresStore) FindOrCreateAlbumTag(context context.Context, album *Album, tag *Tag) (*AlbumTag, error) {
	return findOrCreate(context, repository.db, albumTagUpsert, scanAlbumTag, uuid.New(), album.ID, tag.ID)
}

// FindAlbumTag looks the link up and locks it.
func (repository *PostgresStore) FindAlbumTag(context context.Context, album *Album, tag *Tag) (*AlbumTag, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2 FOR UPDATE`,
		strings.Join(schema.LibraryAlbumTag.Columns(), ", "), schema.LibraryAlbumTag.Table,
		schema.LibraryAlbumTag.AlbumID, schema.LibraryAlbumTag.TagID)

	albumTag, err := scanAlbumTag(repository.db.QueryRow(context, query, album.ID, tag.ID))
	if err != nil {
		return nil, dberr.Wrap(err, "Tag on album", "find_album_tag")
	}
	return albumTag, nil
}

// RemoveAlbumTagIfOrphan deletes the link unless a user's set still holds it.
func (repository *PostgresStore) RemoveAlbumTagIfOrphan(context context.Context, albumTag *AlbumTag) (bool, error) {
	reference := fmt.Sprintf(`SELECT 1 FROM %s r WHERE r.%s = t.%s`,
		schema.LibraryUserAlbumTag.Table, schema.LibraryUserAlbumTag.AlbumTagID, schema.LibraryAlbumTag.ID)
	return removeIfOrphan(context, repository.db, schema.LibraryAlbumTag.Table, schema.LibraryAlbumTag.ID, albumTag.ID, reference)
}

// # User Tag Membership

// AddAlbumTag appends the link to the user's set; [ErrAlreadyMember] if present.
func (repository *PostgresStore) AddAlbumTag(context context.Context, userID string, albumTag *AlbumTag) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		schema.LibraryUserAlbumTag.Table, schema.LibraryUserAlbumTag.UserID, schema.LibraryUserAlbumTag.AlbumTagID)

	result, err := repository.db.Exec(context, query, userID, albumTag.ID)
	if err != nil {
		return fmt.Errorf("postgres: add album tag failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// RemoveAlbumTag drops the link from the user's set; [ErrNotMember] if absent.
func (repository *PostgresStore) RemoveAlbumTag(context context.Context, userID string, albumTag *AlbumTag) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
		schema.LibraryUserAlbumTag.Table, schema.LibraryUserAlbumTag.UserID, schema.LibraryUserAlbumTag.AlbumTagID)

	result, err := repository.db.Exec(context, query, userID, albumTag.ID)
	if err != nil {
		return fmt.Errorf("postgres: remove album tag failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

/*
ListMemberships resolves the user's set to albums and tags.

Description: One join over the four tables, ordered by insertion sequence so
that callers can apply first-occurrence rules.
*/
func (repository *PostgresStore) ListMemberships(context context.Context, userID, externalAlbumID string) ([]Membership, error) {
	query := fmt.Sprintf(`
		SELECT at.%s, a.%s, a.%s, t.%s, t.%s, t.%s
		FROM %s m
		JOIN %s at ON at.%s = m.%s
		JOIN %s a ON a.%s = at.%s
		JOIN %s t ON t.%s = at.%s
		WHERE m.%s = $1 AND ($2 = '' OR a.%s = $2)
		ORDER BY m.%s ASC
	`,
		schema.LibraryAlbumTag.ID, schema.LibraryAlbum.ID, schema.LibraryAlbum.ExternalID,
		schema.LibraryTag.ID, schema.LibraryTag.UniqueID, schema.LibraryTag.Name,
		schema.LibraryUserAlbumTag.Table,
		schema.LibraryAlbumTag.Table, schema.LibraryAlbumTag.ID, schema.LibraryUserAlbumTag.AlbumTagID,
		schema.LibraryAlbum.Table, schema.LibraryAlbum.ID, schema.LibraryAlbumTag.AlbumID,
		schema.LibraryTag.Table, schema.LibraryTag.ID, schema.LibraryAlbumTag.TagID,
		schema.LibraryUserAlbumTag.UserID, schema.LibraryAlbum.ExternalID,
		schema.LibraryUserAlbumTag.Seq,
	)

	rows, err := repository.db.Query(context, query, userID, externalAlbumID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list memberships failed: %w", err)
	}
	defer rows.Close()

	memberships := make([]Membership, 0)
	for rows.Next() {
		var membership Membership
		if err := rows.Scan(
			&membership.AlbumTag.ID, &membership.Album.ID, &membership.Album.ExternalID,
			&membership.Tag.ID, &membership.Tag.UniqueID, &membership.Tag.Name,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan membership failed: %w", err)
		}
		membership.AlbumTag.AlbumID = membership.Album.ID
		membership.AlbumTag.TagID = membership.Tag.ID
		memberships = append(memberships, membership)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate memberships failed: %w", err)
	}
	return memberships, nil
}

// # Listening List

// AddToListeningList records the album; [ErrAlreadyListening] if present.
func (repository *PostgresStore) AddToListeningList(context context.Context, userID, externalAlbumID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		schema.LibraryListeningItem.Table, schema.LibraryListeningItem.UserID, schema.LibraryListeningItem.AlbumExternalID)

	result, err := repository.db.Exec(context, query, userID, externalAlbumID)
	if err != nil {
		return fmt.Errorf("postgres: add to listening list failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyListening
	}
	return nil
}

// RemoveFromListeningList drops the album; [ErrNotListening] if absent.
func (repository *PostgresStore) RemoveFromListeningList(context context.Context, userID, externalAlbumID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
		schema.LibraryListeningItem.Table, schema.LibraryListeningItem.UserID, schema.LibraryListeningItem.AlbumExternalID)

	result, err := repository.db.Exec(context, query, userID, externalAlbumID)
	if err != nil {
		return fmt.Errorf("postgres: remove from listening list failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotListening
	}
	return nil
}

// ListListeningList returns the user's external album ids, oldest first.
func (repository *PostgresStore) ListListeningList(context context.Context, userID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s ASC, %s ASC`,
		schema.LibraryListeningItem.AlbumExternalID, schema.LibraryListeningItem.Table,
		schema.LibraryListeningItem.UserID, schema.LibraryListeningItem.CreatedAt, schema.LibraryListeningItem.AlbumExternalID)

	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listening list failed: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan listening list failed: %w", err)
	}
	return ids, nil
}

// # Orphan Reclamation

/*
ReclaimOrphans deletes every unreferenced AlbumTag, then every Album and Tag
left without an AlbumTag.

Description: Rows locked by in-flight tagging requests are skipped and picked
up by a later sweep. Run it inside [PostgresStore.WithTx] so the three passes
commit together.
*/
func (repository *PostgresStore) ReclaimOrphans(context context.Context) (Reclaimed, error) {
	var reclaimed Reclaimed

	passes := []struct {
		table    string
		id       string
		refTable string
		refCol   string
		count    *int64
	}{
		{schema.LibraryAlbumTag.Table, schema.LibraryAlbumTag.ID, schema.LibraryUserAlbumTag.Table, schema.LibraryUserAlbumTag.AlbumTagID, &reclaimed.AlbumTags},
		{schema.LibraryAlbum.Table, schema.LibraryAlbum.ID, schema.LibraryAlbumTag.Table, schema.LibraryAlbumTag.AlbumID, &reclaimed.Albums},
		{schema.LibraryTag.Table, schema.LibraryTag.ID, schema.LibraryAlbumTag.Table, schema.LibraryAlbumTag.TagID, &reclaimed.Tags},
	}

	for _, pass := range passes {
		query := fmt.Sprintf(`
			DELETE FROM %s WHERE %s IN (
				SELECT t.%s FROM %s t
				WHERE NOT EXISTS (SELECT 1 FROM %s r WHERE r.%s = t.%s)
				FOR UPDATE SKIP LOCKED
			)
		`, pass.table, pass.id, pass.id, pass.table, pass.refTable, pass.refCol, pass.id)

		result, err := repository.db.Exec(context, query)
		if err != nil {
			return reclaimed, fmt.Errorf("postgres: reclaim %s failed: %w", pass.table, err)
		}
		*pass.count = result.RowsAffected()
	}

	return reclaimed, nil
}
