// Package config defines the configuration structures for KeyIP-Analytics.
// No I/O lives here, only plain data types and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Database backends.
const (
	BackendDirect  = "direct"
	BackendGateway = "gateway"
)

// Schema profiles understood by the SQL adapter.
const (
	SchemaCanonical = "canonical"
	SchemaInpit     = "inpit"
)

// Artifact store backends.
const (
	ArtifactsFilesystem = "filesystem"
	ArtifactsMinIO      = "minio"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken        string        `mapstructure:"api_token"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig describes one SQLite data mart, reached either directly on
// disk or through a SQLite HTTP gateway.
type DatabaseConfig struct {
	Name         string        `mapstructure:"name"`
	Backend      string        `mapstructure:"backend"` // "direct" | "gateway"
	Path         string        `mapstructure:"path"`
	Schema       string        `mapstructure:"schema"` // "canonical" | "inpit"
	GatewayURL   string        `mapstructure:"gateway_url"`
	GatewayDB    string        `mapstructure:"gateway_db"`
	APIToken     string        `mapstructure:"api_token"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxRows      int           `mapstructure:"max_rows"`
}

// AnalyticsConfig holds engine tunables and the industry baselines used by
// the assessment comparison.
type AnalyticsConfig struct {
	IndustryApprovalRate     float64 `mapstructure:"industry_approval_rate"`
	IndustryTimeToGrantDays  float64 `mapstructure:"industry_time_to_grant_days"`
	TolerancePoints          float64 `mapstructure:"tolerance_points"`
	LandscapeTopCategories   int     `mapstructure:"landscape_top_categories"`
	CompetitorSeedSubclasses int     `mapstructure:"competitor_seed_subclasses"`
	TopIPCPerApplicant       int     `mapstructure:"top_ipc_per_applicant"`
	TopApplicantsPerYear     int     `mapstructure:"top_applicants_per_year"`
}

// MCPConfig holds MCP dispatcher settings.
type MCPConfig struct {
	ServerName string `mapstructure:"server_name"`
}

// RedisConfig holds Redis connection parameters for the result cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// CacheConfig controls the optional analytics result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	// LoadTimeout bounds a cache fill shared by concurrent callers.
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

// MinIOConfig holds object storage parameters for report artifacts.
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// ArtifactsConfig selects where rendered reports are stored.
type ArtifactsConfig struct {
	Backend string      `mapstructure:"backend"` // "filesystem" | "minio"
	Dir     string      `mapstructure:"dir"`
	MinIO   MinIOConfig `mapstructure:"minio"`
}

// RenderConfig holds renderer settings.
type RenderConfig struct {
	ChromePath string        `mapstructure:"chrome_path"`
	PDFTimeout time.Duration `mapstructure:"pdf_timeout"`
}

// NLQueryConfig points at the natural-language-to-SQL collaborator.
type NLQueryConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Server          ServerConfig      `mapstructure:"server"`
	Databases       []DatabaseConfig  `mapstructure:"databases"`
	DefaultDatabase string            `mapstructure:"default_database"`
	Analytics       AnalyticsConfig   `mapstructure:"analytics"`
	MCP             MCPConfig         `mapstructure:"mcp"`
	Cache           CacheConfig       `mapstructure:"cache"`
	Artifacts       ArtifactsConfig   `mapstructure:"artifacts"`
	Render          RenderConfig      `mapstructure:"render"`
	NLQuery         NLQueryConfig     `mapstructure:"nl_query"`
	Log             logging.LogConfig `mapstructure:"log"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
}

// Database returns the database named name, or the default database when
// name is empty.
func (c *Config) Database(name string) (DatabaseConfig, bool) {
	if name == "" {
		name = c.DefaultDatabase
	}
	for _, db := range c.Databases {
		if db.Name == name {
			return db, true
		}
	}
	return DatabaseConfig{}, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a defaulted Config and returns the
// first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}

	if len(c.Databases) == 0 {
		return fmt.Errorf("config: at least one database is required")
	}
	seen := make(map[string]bool, len(c.Databases))
	for i, db := range c.Databases {
		if db.Name == "" {
			return fmt.Errorf("config: databases[%d].name is required", i)
		}
		if seen[db.Name] {
			return fmt.Errorf("config: database name %q is duplicated", db.Name)
		}
		seen[db.Name] = true

		switch db.Backend {
		case BackendDirect:
			if db.Path == "" {
				return fmt.Errorf("config: databases[%s].path is required for the direct backend", db.Name)
			}
		case BackendGateway:
			if db.GatewayURL == "" {
				return fmt.Errorf("config: databases[%s].gateway_url is required for the gateway backend", db.Name)
			}
			if _, err := url.ParseRequestURI(db.GatewayURL); err != nil {
				return fmt.Errorf("config: databases[%s].gateway_url is invalid: %w", db.Name, err)
			}
		default:
			return fmt.Errorf("config: databases[%s].backend %q is invalid; expected direct|gateway", db.Name, db.Backend)
		}

		switch db.Schema {
		case SchemaCanonical, SchemaInpit:
		default:
			return fmt.Errorf("config: databases[%s].schema %q is invalid; expected canonical|inpit", db.Name, db.Schema)
		}
		if db.QueryTimeout <= 0 {
			return fmt.Errorf("config: databases[%s].query_timeout must be positive", db.Name)
		}
	}
	if !seen[c.DefaultDatabase] {
		return fmt.Errorf("config: default_database %q does not name a configured database", c.DefaultDatabase)
	}

	a := c.Analytics
	if a.IndustryApprovalRate < 0 || a.IndustryApprovalRate > 100 {
		return fmt.Errorf("config: analytics.industry_approval_rate %.1f is out of range [0, 100]", a.IndustryApprovalRate)
	}
	if a.TolerancePoints < 0 {
		return fmt.Errorf("config: analytics.tolerance_points must be ≥ 0")
	}
	if a.LandscapeTopCategories < 1 || a.TopIPCPerApplicant < 1 || a.TopApplicantsPerYear < 1 || a.CompetitorSeedSubclasses < 1 {
		return fmt.Errorf("config: analytics limits must be ≥ 1")
	}

	if c.Cache.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required when the cache is enabled")
	}

	switch c.Artifacts.Backend {
	case ArtifactsFilesystem:
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("config: artifacts.dir is required for the filesystem backend")
		}
	case ArtifactsMinIO:
		if c.Artifacts.MinIO.Endpoint == "" || c.Artifacts.MinIO.Bucket == "" {
			return fmt.Errorf("config: artifacts.minio.endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("config: artifacts.backend %q is invalid; expected filesystem|minio", c.Artifacts.Backend)
	}

	return nil
}
