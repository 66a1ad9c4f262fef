// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classgate/classgate/pkg/errutil"
)

type fakeMigrate struct {
	upErr, downErr, stepsErr, forceErr error
	version                            uint
	dirty                              bool
	versionErr                         error
	closeSrcErr, closeDBErr            error

	forced int
	steps  int
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }
func (f *fakeMigrate) Steps(n int) error {
	f.steps = n
	return f.stepsErr
}
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}
func (f *fakeMigrate) Close() (error, error) { return f.closeSrcErr, f.closeDBErr }

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/classgate":   "pgx5://u:p@db:5432/classgate",
		"postgresql://u:p@db:5432/classgate": "pgx5://u:p@db:5432/classgate",
		"pgx5://u:p@db:5432/classgate":       "pgx5://u:p@db:5432/classgate",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/classgate")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	f := &fakeMigrate{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}
	m := &Migrator{m: f}

	assert.NoError(t, m.Up())
	assert.NoError(t, m.Down())
	assert.NoError(t, m.Steps(0))
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("database locked")
	tests := []struct {
		name string
		call func(*Migrator) error
		code string
	}{
		{"up", func(m *Migrator) error { return m.Up() }, "MIGRATION_UP_FAILED"},
		{"down", func(m *Migrator) error { return m.Down() }, "MIGRATION_DOWN_FAILED"},
		{"steps", func(m *Migrator) error { return m.Steps(-1) }, "MIGRATION_STEPS_FAILED"},
		{"force", func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"version", func(m *Migrator) error { _, _, err := m.Version(); return err }, "MIGRATION_VERSION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &fakeMigrate{
				upErr: boom, downErr: boom, stepsErr: boom, forceErr: boom, versionErr: boom,
			}}
			err := tt.call(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_Steps_PassesCount(t *testing.T) {
	f := &fakeMigrate{}
	require.NoError(t, (&Migrator{m: f}).Steps(-2))
	assert.Equal(t, -2, f.steps)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("fresh database reports zero", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("reports dirty state", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{version: 2, dirty: true}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})
}

func TestMigrator_Force(t *testing.T) {
	f := &fakeMigrate{}
	m := &Migrator{m: f}

	require.NoError(t, m.Force(1))
	assert.Equal(t, 1, f.forced)

	err := m.Force(-1)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestMigrator_Close(t *testing.T) {
	srcErr := errors.New("source close failed")
	dbErr := errors.New("db close failed")

	tests := []struct {
		name      string
		src, db   error
		component string
	}{
		{"source", srcErr, nil, "source"},
		{"database", nil, dbErr, "database"},
		{"both", srcErr, dbErr, "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &fakeMigrate{closeSrcErr: tt.src, closeDBErr: tt.db}}
			err := m.Close()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	assert.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeMigrate
		pending []uint
		applied []uint
	}{
		{"fresh", &fakeMigrate{versionErr: migrate.ErrNilVersion}, []uint{1, 2}, nil},
		{"students only", &fakeMigrate{version: 1}, []uint{2}, []uint{1}},
		{"current", &fakeMigrate{version: 2}, nil, []uint{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.fake}

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)
		})
	}

	t.Run("version error carries operation", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}
		_, err := m.PendingMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get pending migrations")
		_, err = m.AppliedMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
	})
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_create_students", name)

	name, err = MigrationName(2)
	require.NoError(t, err)
	assert.Equal(t, "000002_create_teachers", name)

	name, err = MigrationName(99)
	require.NoError(t, err)
	assert.Empty(t, name)
}
