// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package store

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// migrateIface is the part of *migrate.Migrate the Migrator drives.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded account schema migrations.
type Migrator struct {
	m migrateIface
}

// NewMigrator opens a migrator against databaseURL. postgres:// and
// postgresql:// URLs are accepted and rewritten to the pgx5:// scheme.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "open embedded migrations").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// Up applies all pending migrations. Being already current is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration, dropping the account tables.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps migrates n versions up (n > 0) or down (n < 0).
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version reports the applied version. A fresh database reports 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It is the
// recovery path for a dirty database.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations lists the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	current, all, err := m.versions("get pending migrations")
	if err != nil {
		return nil, err
	}
	var pending []uint
	for _, v := range all {
		if v > current {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// AppliedMigrations lists the versions already applied, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	current, all, err := m.versions("get applied migrations")
	if err != nil {
		return nil, err
	}
	var applied []uint
	for _, v := range all {
		if v <= current {
			applied = append(applied, v)
		}
	}
	return applied, nil
}

func (m *Migrator) versions(op string) (uint, []uint, error) {
	current, _, err := m.Version()
	if err != nil {
		return 0, nil, oops.With("operation", op).Wrap(err)
	}
	all, err := migrationVersions()
	if err != nil {
		return 0, nil, oops.With("operation", op).Wrap(err)
	}
	return current, all, nil
}

// migrationVersions parses NNNNNN_name.up.sql file names from the embedded
// directory. Files that don't follow the pattern are skipped with a warning.
func migrationVersions() ([]uint, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	var versions []uint
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			slog.Warn("skipping migration with malformed name",
				"filename", entry.Name(),
				"expected_format", "NNNNNN_name.up.sql")
			continue
		}
		versions = append(versions, uint(v))
	}
	slices.Sort(versions)
	return slices.Compact(versions), nil
}

// MigrationName returns the NNNNNN_name stem for version, or "" when no
// such migration is embedded.
func MigrationName(version uint) (string, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return "", oops.Code("MIGRATION_READ_FAILED").With("operation", "read migrations dir").Wrap(err)
	}
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		if v, err := strconv.ParseUint(prefix, 10, 32); err == nil && uint(v) == version {
			return name, nil
		}
	}
	return "", nil
}
