// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package config loads the classgate configuration from defaults, a YAML
// file, the environment and command-line flags, in that order.
package config

import (
	"net"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
	"github.com/classgate/classgate/internal/logging"
	"github.com/classgate/classgate/internal/notify"
)

// CurrentVersion is the config file version written by this release.
const CurrentVersion = "1.0.0"

// SupportedVersions is the semver constraint config files must satisfy.
const SupportedVersions = "^1.0.0"

// Driver names.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSMTP     = "smtp"
	DriverLog      = "log"
)

// Config is the complete classgate configuration.
type Config struct {
	Version       string              `koanf:"version" jsonschema:"required,description=Config file format version (semver)"`
	HTTP          HTTPConfig          `koanf:"http"`
	Observability ObservabilityConfig `koanf:"observability"`
	Log           LogConfig           `koanf:"log"`
	Database      DatabaseConfig      `koanf:"database"`
	Session       SessionConfig       `koanf:"session"`
	Notify        NotifyConfig        `koanf:"notify"`
	Auth          AuthConfig          `koanf:"auth"`
}

// HTTPConfig configures the web front end.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" jsonschema:"description=Listen address for the web UI"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig configures the metrics and health server.
type ObservabilityConfig struct {
	Addr string `koanf:"addr" jsonschema:"description=Metrics and health listen address (empty disables)"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures account storage.
type DatabaseConfig struct {
	Driver         string        `koanf:"driver" jsonschema:"enum=memory,enum=postgres"`
	URL            string        `koanf:"url" jsonschema:"description=PostgreSQL URL; DATABASE_URL overrides"`
	MaxConns       int32         `koanf:"max_conns" jsonschema:"minimum=0"`
	MinConns       int32         `koanf:"min_conns" jsonschema:"minimum=0"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// SessionConfig configures the session store.
type SessionConfig struct {
	Driver        string        `koanf:"driver" jsonschema:"enum=memory,enum=redis"`
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Redis         RedisConfig   `koanf:"redis"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	URL    string `koanf:"url" jsonschema:"description=Redis URL; REDIS_URL overrides"`
	Prefix string `koanf:"prefix"`
}

// NotifyConfig configures passcode delivery.
type NotifyConfig struct {
	Driver string     `koanf:"driver" jsonschema:"enum=smtp,enum=log"`
	SMTP   SMTPConfig `koanf:"smtp"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port" jsonschema:"minimum=1,maximum=65535"`
	Username   string        `koanf:"username"`
	Password   string        `koanf:"password" jsonschema:"description=Relay password; SMTP_PASSWORD overrides"`
	From       string        `koanf:"from"`
	TLS        string        `koanf:"tls" jsonschema:"enum=mandatory,enum=opportunistic,enum=none"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries uint64        `koanf:"max_retries"`
	RetryBase  time.Duration `koanf:"retry_base"`
}

// AuthConfig configures the auth core.
type AuthConfig struct {
	AllowedEmailPatterns    []string      `koanf:"allowed_email_patterns" jsonschema:"description=Glob patterns such as *@school.edu"`
	RollbackOnNotifyFailure bool          `koanf:"rollback_on_notify_failure"`
	ChallengeTTL            time.Duration `koanf:"challenge_ttl"`
	Argon2                  Argon2Config  `koanf:"argon2"`
}

// Argon2Config sets the password hashing cost.
type Argon2Config struct {
	Time    uint32 `koanf:"time" jsonschema:"minimum=1"`
	Memory  uint32 `koanf:"memory" jsonschema:"minimum=1"`
	Threads uint8  `koanf:"threads" jsonschema:"minimum=1"`
}

// Default returns the built-in configuration.
func Default() *Config {
	smtp := notify.DefaultSMTPConfig()
	argon := auth.DefaultArgon2Params()
	sweep := auth.DefaultSweeperConfig()
	return &Config{
		Version: CurrentVersion,
		HTTP: HTTPConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9100"},
		Log:           LogConfig{Format: logging.FormatJSON, Level: "info"},
		Database: DatabaseConfig{
			Driver:         DriverMemory,
			MaxConns:       10,
			ConnectTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			Driver:        DriverMemory,
			IdleTimeout:   sweep.IdleTimeout,
			SweepInterval: sweep.Interval,
			Redis:         RedisConfig{Prefix: "classgate:session:"},
		},
		Notify: NotifyConfig{
			Driver: DriverLog,
			SMTP: SMTPConfig{
				Port:       smtp.Port,
				TLS:        smtp.TLS,
				Timeout:    smtp.Timeout,
				MaxRetries: smtp.MaxRetries,
				RetryBase:  smtp.RetryBase,
			},
		},
		Auth: AuthConfig{
			AllowedEmailPatterns: []string{"*"},
			ChallengeTTL:         auth.ChallengeTTL,
			Argon2: Argon2Config{
				Time:    argon.Time,
				Memory:  argon.Memory,
				Threads: argon.Threads,
			},
		},
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if err := checkVersion(c.Version); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return invalidf("http.addr", "listen address is required")
	}
	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		return invalidf("http.addr", "listen address must be host:port")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		return invalidf("log.format", "must be json or text")
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalidf("database.url", "required when database.driver is postgres (or set DATABASE_URL)")
		}
		if c.Database.MinConns > c.Database.MaxConns && c.Database.MaxConns > 0 {
			return invalidf("database.min_conns", "cannot exceed max_conns")
		}
	default:
		return invalidf("database.driver", "must be memory or postgres")
	}

	switch c.Session.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Session.Redis.URL == "" {
			return invalidf("session.redis.url", "required when session.driver is redis (or set REDIS_URL)")
		}
	default:
		return invalidf("session.driver", "must be memory or redis")
	}
	if c.Session.IdleTimeout <= 0 || c.Session.SweepInterval <= 0 {
		return invalidf("session", "idle_timeout and sweep_interval must be positive")
	}

	switch c.Notify.Driver {
	case DriverLog:
	case DriverSMTP:
		if err := c.Notify.SMTP.Notifier().Validate(); err != nil {
			return oops.Code("CONFIG_INVALID").With("field", "notify.smtp").Wrap(err)
		}
	default:
		return invalidf("notify.driver", "must be smtp or log")
	}

	if c.Auth.ChallengeTTL <= 0 {
		return invalidf("auth.challenge_ttl", "must be positive")
	}
	if err := c.Auth.Argon2.Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "auth.argon2").Wrap(err)
	}
	if _, err := auth.NewEmailPolicy(c.Auth.AllowedEmailPatterns); err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "auth.allowed_email_patterns").Wrap(err)
	}
	return nil
}

// Notifier converts the SMTP section to notifier settings.
func (c SMTPConfig) Notifier() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:       c.Host,
		Port:       c.Port,
		Username:   c.Username,
		Password:   c.Password,
		From:       c.From,
		TLS:        c.TLS,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		RetryBase:  c.RetryBase,
	}
}

// Params converts the section to hasher parameters.
func (c Argon2Config) Params() auth.Argon2Params {
	return auth.Argon2Params{Time: c.Time, Memory: c.Memory, Threads: c.Threads}
}

func checkVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return oops.Code("CONFIG_INVALID_VERSION").With("version", v).Wrap(err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return oops.Code("CONFIG_INVALID_VERSION").Wrap(err)
	}
	if !constraint.Check(version) {
		return oops.Code("CONFIG_UNSUPPORTED_VERSION").
			With("version", v).
			With("supported", SupportedVersions).
			Errorf("config version %s is not supported", v)
	}
	return nil
}

func invalidf(field, msg string) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s: %s", field, msg)
}
