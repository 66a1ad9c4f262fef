// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package main

import (
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/classgate/classgate/internal/config"
	"github.com/classgate/classgate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigrator)
}

func newMigrateCmd(factory func(url string) (Migrator, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply or roll back the PostgreSQL schema for student and teacher accounts.
Running migrate without a subcommand applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, migrateUp)
		},
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (overrides config and DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, migrateUp)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, func(cmd *cobra.Command, m Migrator) error {
				return migrateDown(cmd, m, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 = all)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, migrateStatus)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, migrateVersion)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use this only
to recover from a migration that failed halfway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, factory, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Force(v); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
				}
				cmd.Printf("Schema version forced to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// databaseURL resolves the connection string from the config file,
// DATABASE_URL and the --database-url flag, in increasing priority.
func databaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("field", "database.url").
			Errorf("a database URL is required: set database.url, DATABASE_URL or --database-url")
	}
	return cfg.Database.URL, nil
}

func withMigrator(cmd *cobra.Command, factory func(string) (Migrator, error), fn func(*cobra.Command, Migrator) error) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	m, err := factory(url)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	return fn(cmd, m)
}

func migrateUp(cmd *cobra.Command, m Migrator) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}
	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateDown(cmd *cobra.Command, m Migrator, steps int) error {
	if steps < 0 {
		return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("steps must not be negative")
	}
	var err error
	if steps == 0 {
		cmd.Println("Rolling back all migrations...")
		err = m.Down()
	} else {
		cmd.Printf("Rolling back %d migration(s)...\n", steps)
		err = m.Steps(-steps)
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back").Wrap(err)
	}
	cmd.Println("Rollback completed")
	return nil
}

func migrateStatus(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
	}

	cmd.Printf("Current version: %d", v)
	if dirty {
		cmd.Print(" (dirty)")
	}
	cmd.Println()
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Println("Pending migrations:")
	for _, p := range pending {
		name, err := store.MigrationName(p)
		if err != nil || name == "" {
			name = strconv.FormatUint(uint64(p), 10)
		}
		cmd.Printf("  %s\n", name)
	}
	return nil
}

func migrateVersion(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	if dirty {
		cmd.Printf("%d (dirty)\n", v)
		return nil
	}
	cmd.Println(v)
	return nil
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("version", s).Errorf("version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("version", s).Errorf("version must not be negative")
	}
	return v, nil
}
