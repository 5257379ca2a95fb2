// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package migration applies the SQL schema history with golang-migrate.

The history ships inside the binary (data/migrations), so a container needs
nothing but DATABASE_URL. MIGRATION_PATH points the runner at a directory
instead, which is handy while writing a new migration.
*/
package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/taibuivan/albumin/data/migrations"
)

// fileName matches golang-migrate's NNNNNN_title.(up|down).sql layout.
var fileName = regexp.MustCompile(`^(\d+)_[^.]+\.(up|down)\.sql$`)

// Source returns the migration files to apply: the embedded history when dir
// is empty, otherwise the directory on disk.
func Source(dir string) fs.FS {
	if dir == "" {
		return migrations.Files
	}
	return os.DirFS(dir)
}

/*
RunUp applies all pending UP migrations from files.

Parameters:
  - dsn: postgres:// URL (rewritten to the pgx5:// scheme the driver expects)
  - files: migration files, see [Source]
  - logger: receives version transitions and golang-migrate debug output

Returns:
  - error: invalid history, dirty database, or a failed migration
*/
func RunUp(dsn string, files fs.FS, logger *slog.Logger) error {
	if err := CheckPairs(files); err != nil {
		return err
	}

	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("migration: failed to open source: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, toPgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if err := errors.Join(sourceError, dbError); err != nil {
			logger.Error("migration_close_failed", slog.Any("error", err))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger}

	from, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to read version: %w", err)
	}
	if isDirty {
		return fmt.Errorf("migration: database is dirty at version %d, fix it by hand", from)
	}

	switch err := migrator.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("migration_up_to_date", slog.Uint64("version", uint64(from)))
		return nil
	case err != nil:
		return fmt.Errorf("migration: up failed: %w", err)
	}

	to, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(to)),
	)
	return nil
}

// CheckPairs fails when a version lacks its up or down file, or when a file
// does not follow the naming layout. Non-SQL files are ignored.
func CheckPairs(files fs.FS) error {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return fmt.Errorf("migration: failed to list files: %w", err)
	}

	directions := map[string]map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := fileName.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("migration: unexpected file name %q", name)
		}
		if directions[match[1]] == nil {
			directions[match[1]] = map[string]bool{}
		}
		directions[match[1]][match[2]] = true
	}

	if len(directions) == 0 {
		return errors.New("migration: no migration files found")
	}

	versions := make([]string, 0, len(directions))
	for version := range directions {
		versions = append(versions, version)
	}
	sort.Strings(versions)

	for _, version := range versions {
		if !directions[version]["up"] || !directions[version]["down"] {
			return fmt.Errorf("migration: version %s needs both up and down files", version)
		}
	}
	return nil
}

// toPgx5URL rewrites postgres:// and postgresql:// URLs to pgx5://.
func toPgx5URL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(dsn, prefix); found {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger forwards golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

func (l *migrateLogger) Verbose() bool { return false }
