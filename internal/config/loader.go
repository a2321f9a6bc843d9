// Package config provides configuration loading, defaults, and validation for
// KeyIP-Analytics.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "KEYIPA"

// envKeys lists the scalar keys that can be set from the environment without
// a config file. Keys nested inside the databases list cannot be bound this
// way; KEYIPA_DB_PATH covers the common single-database case instead.
var envKeys = []string{
	"server.host", "server.port", "server.read_timeout", "server.write_timeout", "server.api_token",
	"default_database",
	"analytics.industry_approval_rate", "analytics.industry_time_to_grant_days",
	"analytics.tolerance_points",
	"mcp.server_name",
	"cache.enabled", "cache.ttl", "cache.redis.addr", "cache.redis.password", "cache.redis.db",
	"artifacts.backend", "artifacts.dir",
	"artifacts.minio.endpoint", "artifacts.minio.access_key_id",
	"artifacts.minio.secret_access_key", "artifacts.minio.bucket", "artifacts.minio.use_ssl",
	"render.chrome_path", "render.pdf_timeout",
	"nl_query.endpoint", "nl_query.api_key", "nl_query.timeout",
	"log.level", "log.format",
	"metrics.enabled", "metrics.path", "metrics.namespace",
}

// newViper builds a Viper instance with YAML file type, the KEYIPA_ env
// prefix and a "." → "_" key replacer, so "cache.redis.addr" resolves to
// KEYIPA_CACHE_REDIS_ADDR.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("db_path")
	return v
}

// Load reads the YAML file at configPath, merges KEYIPA_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from KEYIPA_* environment variables only.
//
//	KEYIPA_<SECTION>_<FIELD>   e.g.  KEYIPA_SERVER_PORT, KEYIPA_CACHE_REDIS_ADDR
//	KEYIPA_DB_PATH             path of the single default SQLite file
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if path := v.GetString("db_path"); path != "" && len(cfg.Databases) == 0 {
		cfg.Databases = []DatabaseConfig{{Name: DefaultDatabaseName, Path: path}}
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// whenever the file changes on disk. Changes that fail to parse or validate
// are reported through onError (when non-nil) and onChange is not called.
//
// Watch is non-blocking; viper runs the watcher goroutine.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on error. For use in main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
