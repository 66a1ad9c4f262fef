// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package config

import (
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// envOverrides maps environment variables to config keys. They apply after
// the file and before flags.
var envOverrides = map[string]string{
	"DATABASE_URL":  "database.url",
	"REDIS_URL":     "session.redis.url",
	"SMTP_PASSWORD": "notify.smtp.password",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":       "http.addr",
	"metrics-addr":    "observability.addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"database-driver": "database.driver",
	"database-url":    "database.url",
	"auto-migrate":    "database.auto_migrate",
	"session-driver":  "session.driver",
	"redis-url":       "session.redis.url",
	"notify-driver":   "notify.driver",
}

// RegisterFlags adds the config override flags to fs. Flag defaults mirror
// Default() and only explicitly set flags override the file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "web UI listen address")
	fs.String("metrics-addr", d.Observability.Addr, "metrics/health listen address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("database-driver", d.Database.Driver, "account storage (memory or postgres)")
	fs.String("database-url", "", "PostgreSQL URL")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
	fs.String("session-driver", d.Session.Driver, "session storage (memory or redis)")
	fs.String("redis-url", "", "Redis URL")
	fs.String("notify-driver", d.Notify.Driver, "passcode delivery (smtp or log)")
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), environment overrides and the changed flags in fs (if non-nil).
// The result is validated.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	}

	for env, key := range envOverrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_ENV_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := unmarshal(k, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// unmarshal decodes k onto cfg. Keys absent from k keep their defaults; a
// list present in k replaces the default list.
func unmarshal(k *koanf.Koanf, cfg *Config) error {
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			ZeroFields:       true,
		},
	})
	if err != nil {
		return oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return nil
}
