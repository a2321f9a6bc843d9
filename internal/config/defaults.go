package config

import (
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default values
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultMaxBodySize     = 1 << 20
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDatabaseName = "default"
	DefaultDatabasePath = "data/patents.db"
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 10000

	DefaultIndustryApprovalRate     = 55.0
	DefaultIndustryTimeToGrantDays  = 730.0
	DefaultTolerancePoints          = 1.0
	DefaultLandscapeTopCategories   = 30
	DefaultCompetitorSeedSubclasses = 3
	DefaultTopIPCPerApplicant       = 5
	DefaultTopApplicantsPerYear     = 5

	DefaultMCPServerName = "keyip-analytics"

	DefaultCacheTTL         = 10 * time.Minute
	DefaultCacheLoadTimeout = 2 * time.Minute
	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisPoolSize    = 10
	DefaultRedisKeyPrefix   = "keyipa:"

	DefaultArtifactsDir     = "reports"
	DefaultMinIORegion      = "us-east-1"
	DefaultPresignExpiry    = time.Hour
	DefaultPDFRenderTimeout = 60 * time.Second

	DefaultNLQueryTimeout = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "keyip_analytics"
)

// NewDefaultConfig returns a Config with every default applied and a single
// direct database at DefaultDatabasePath.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg. Explicitly set values
// are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// ── Databases ─────────────────────────────────────────────────────────────
	if len(cfg.Databases) == 0 {
		cfg.Databases = []DatabaseConfig{{Name: DefaultDatabaseName, Path: DefaultDatabasePath}}
	}
	for i := range cfg.Databases {
		db := &cfg.Databases[i]
		if db.Backend == "" {
			db.Backend = BackendDirect
		}
		if db.Schema == "" {
			db.Schema = SchemaCanonical
		}
		if db.QueryTimeout == 0 {
			db.QueryTimeout = DefaultQueryTimeout
		}
		if db.MaxRows == 0 {
			db.MaxRows = DefaultMaxRows
		}
	}
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = cfg.Databases[0].Name
	}

	// ── Analytics ─────────────────────────────────────────────────────────────
	a := &cfg.Analytics
	if a.IndustryApprovalRate == 0 {
		a.IndustryApprovalRate = DefaultIndustryApprovalRate
	}
	if a.IndustryTimeToGrantDays == 0 {
		a.IndustryTimeToGrantDays = DefaultIndustryTimeToGrantDays
	}
	if a.TolerancePoints == 0 {
		a.TolerancePoints = DefaultTolerancePoints
	}
	if a.LandscapeTopCategories == 0 {
		a.LandscapeTopCategories = DefaultLandscapeTopCategories
	}
	if a.CompetitorSeedSubclasses == 0 {
		a.CompetitorSeedSubclasses = DefaultCompetitorSeedSubclasses
	}
	if a.TopIPCPerApplicant == 0 {
		a.TopIPCPerApplicant = DefaultTopIPCPerApplicant
	}
	if a.TopApplicantsPerYear == 0 {
		a.TopApplicantsPerYear = DefaultTopApplicantsPerYear
	}

	// ── MCP ───────────────────────────────────────────────────────────────────
	if cfg.MCP.ServerName == "" {
		cfg.MCP.ServerName = DefaultMCPServerName
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.LoadTimeout <= 0 {
		cfg.Cache.LoadTimeout = DefaultCacheLoadTimeout
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Cache.Redis.PoolSize == 0 {
		cfg.Cache.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Cache.Redis.KeyPrefix == "" {
		cfg.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Artifacts / render ────────────────────────────────────────────────────
	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = ArtifactsFilesystem
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = DefaultArtifactsDir
	}
	if cfg.Artifacts.MinIO.Region == "" {
		cfg.Artifacts.MinIO.Region = DefaultMinIORegion
	}
	if cfg.Artifacts.MinIO.PresignExpiry == 0 {
		cfg.Artifacts.MinIO.PresignExpiry = DefaultPresignExpiry
	}
	if cfg.Render.PDFTimeout == 0 {
		cfg.Render.PDFTimeout = DefaultPDFRenderTimeout
	}
	if cfg.NLQuery.Timeout == 0 {
		cfg.NLQuery.Timeout = DefaultNLQueryTimeout
	}

	// ── Log / metrics ─────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
