// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/classgate/classgate/internal/auth"
	"github.com/classgate/classgate/internal/auth/memory"
	"github.com/classgate/classgate/internal/auth/postgres"
	authredis "github.com/classgate/classgate/internal/auth/redis"
	"github.com/classgate/classgate/internal/config"
	"github.com/classgate/classgate/internal/logging"
	"github.com/classgate/classgate/internal/observability"
	"github.com/classgate/classgate/internal/store"
	"github.com/classgate/classgate/internal/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Run the signup, passcode verification, login and dashboard pages,
together with the metrics/health server and the idle-session sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return oops.With("operation", "load config").Wrap(err)
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps wires storage, the auth service and the servers, then
// blocks until ctx is cancelled, a signal arrives, or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup(logging.Options{
		Service: "classgate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	}, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	var readiness []observability.ServerOption

	var students, teachers auth.AccountRepository
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := runAutoMigration(cfg.Database.URL, deps.MigratorFactory); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}
		pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.PoolConfig{
			MaxConns:       cfg.Database.MaxConns,
			MinConns:       cfg.Database.MinConns,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		})
		if err != nil {
			return oops.With("operation", "open database").Wrap(err)
		}
		defer pool.Close()
		students = postgres.NewStudentRepository(pool)
		teachers = postgres.NewTeacherRepository(pool)
		readiness = append(readiness, observability.WithReadinessCheck("postgres", pool.Ping))
		logger.Info("connected to database")
	default:
		students = memory.NewAccountRepository(auth.KindStudent)
		teachers = memory.NewAccountRepository(auth.KindTeacher)
		logger.Warn("using in-memory account storage, accounts are lost on restart")
	}

	var sessions auth.SessionStore
	switch cfg.Session.Driver {
	case config.DriverRedis:
		client, err := deps.RedisFactory(cfg.Session.Redis.URL)
		if err != nil {
			return oops.Code("REDIS_CONFIG_INVALID").With("operation", "create redis client").Wrap(err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Debug("error closing redis client", "error", closeErr)
			}
		}()
		rs := authredis.NewSessionStore(client,
			authredis.WithKeyPrefix(cfg.Session.Redis.Prefix),
			authredis.WithIdleTTL(cfg.Session.IdleTimeout),
		)
		sessions = rs
		readiness = append(readiness, observability.WithReadinessCheck("redis", rs.Ping))
	default:
		sessions = memory.NewSessionStore()
	}

	notifier, err := deps.NotifierFactory(cfg.Notify, logger)
	if err != nil {
		return oops.With("operation", "create notifier").Wrap(err)
	}
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Auth.Argon2.Params())
	if err != nil {
		return err
	}
	policy, err := auth.NewEmailPolicy(cfg.Auth.AllowedEmailPatterns)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(students, teachers, sessions, hasher, notifier,
		auth.WithLogger(logger),
		auth.WithEmailPolicy(policy),
		auth.WithChallengeTTL(cfg.Auth.ChallengeTTL),
		auth.WithRollbackOnNotifyFailure(cfg.Auth.RollbackOnNotifyFailure),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper, err := auth.NewSweeper(auth.SweeperConfig{
		IdleTimeout: cfg.Session.IdleTimeout,
		Interval:    cfg.Session.SweepInterval,
	}, sessions, logger)
	if err != nil {
		return err
	}
	sweeper.Start(ctx)
	defer sweeper.Stop()

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	var (
		metrics *observability.Metrics
		obsErr  <-chan error
		obsAddr string
	)
	if cfg.Observability.Addr != "" {
		obs := observability.NewServer(cfg.Observability.Addr, readiness...)
		auth.RegisterMetrics(obs.Registry())
		metrics = obs.Metrics()
		obsErr, err = obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer stopServer(logger, "observability", obs.Stop, shutdownTimeout)
		obsAddr = obs.Addr()
	}

	site, err := web.NewServer(cfg.HTTP.Addr, svc, logger,
		web.WithMetrics(metrics),
		web.WithReadHeaderTimeout(cfg.HTTP.ReadHeaderTimeout),
	)
	if err != nil {
		return err
	}
	webErr, err := site.Start()
	if err != nil {
		return err
	}
	defer stopServer(logger, "web", site.Stop, shutdownTimeout)

	cmd.Println("ClassGate listening on http://" + site.Addr())
	logger.Info("classgate ready",
		"http_addr", site.Addr(),
		"metrics_addr", obsAddr,
		"database", cfg.Database.Driver,
		"sessions", cfg.Session.Driver,
		"notify", cfg.Notify.Driver,
	)
	deps.Ready(site.Addr(), obsAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-webErr:
		return oops.Code("WEB_SERVER_FAILED").Wrap(err)
	case err := <-obsErr:
		return oops.Code("OBSERVABILITY_SERVER_FAILED").Wrap(err)
	}
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// runAutoMigration applies pending migrations before the pool is opened.
func runAutoMigration(url string, factory func(string) (Migrator, error)) error {
	m, err := factory(url)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").Wrap(err)
	}
	return nil
}
