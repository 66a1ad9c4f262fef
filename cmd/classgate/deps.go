// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/classgate/classgate/internal/auth"
	"github.com/classgate/classgate/internal/config"
	"github.com/classgate/classgate/internal/notify"
	"github.com/classgate/classgate/internal/store"
)

// Migrator is the subset of store.Migrator used by the CLI.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the PostgreSQL pool.
	// Default: store.OpenPool
	PoolFactory func(ctx context.Context, dsn string, cfg store.PoolConfig) (*pgxpool.Pool, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// RedisFactory creates a Redis client from a URL.
	// Default: goredis.ParseURL + goredis.NewClient
	RedisFactory func(url string) (goredis.UniversalClient, error)

	// NotifierFactory creates the passcode notifier.
	// Default: newNotifier
	NotifierFactory func(cfg config.NotifyConfig, logger *slog.Logger) (auth.Notifier, error)

	// Ready is called once every server is listening. Tests use it to learn
	// the bound addresses.
	Ready func(webAddr, metricsAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = store.OpenPool
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = defaultMigrator
	}
	if out.RedisFactory == nil {
		out.RedisFactory = newRedisClient
	}
	if out.NotifierFactory == nil {
		out.NotifierFactory = newNotifier
	}
	if out.Ready == nil {
		out.Ready = func(string, string) {}
	}
	return &out
}

func defaultMigrator(url string) (Migrator, error) {
	return store.NewMigrator(url)
}

func newRedisClient(url string) (goredis.UniversalClient, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) (auth.Notifier, error) {
	if cfg.Driver == config.DriverSMTP {
		return notify.NewSMTPNotifier(cfg.SMTP.Notifier(), logger)
	}
	return notify.NewLogNotifier(logger)
}
