// Package app wires the configured databases, caches, renderers and stores
// into the catalog and the outer interfaces that serve it.
package app

import (
	"context"
	"io"
	"net/http"

	"github.com/turtacn/KeyIP-Analytics/internal/application/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/application/catalog"
	"github.com/turtacn/KeyIP-Analytics/internal/application/query"
	"github.com/turtacn/KeyIP-Analytics/internal/application/reporting"
	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/repositories"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/nlsql"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/render"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/storage"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/storage/minio"
	httpapi "github.com/turtacn/KeyIP-Analytics/internal/interfaces/http"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/http/handlers"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/mcp"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// App is a fully wired process: the catalog, the MCP dispatcher and the
// infrastructure clients they depend on.
type App struct {
	Config     *config.Config
	Logger     logging.Logger
	Collector  prometheus.MetricsCollector
	Metrics    *prometheus.AppMetrics
	Catalog    *catalog.Catalog
	Dispatcher *mcp.Dispatcher

	checkers []handlers.HealthChecker
	closers  []io.Closer
}

// infrastructure holds the clients shared by every backend.
type infrastructure struct {
	cache     *redis.Client
	results   *redis.ResultCache
	store     storage.Store
	nlsql     *nlsql.Client
	renderers []reporting.Renderer
	checkers  []handlers.HealthChecker
}

// New builds the App described by cfg. Optional collaborators (the result
// cache, the translator) are skipped when they are not configured; a
// configured cache that cannot be reached fails startup.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	collector, metrics, err := newMetrics(cfg, logger)
	if err != nil {
		return nil, err
	}

	infra, err := initInfrastructure(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	var closers []io.Closer
	if infra.cache != nil {
		closers = append(closers, infra.cache)
	}

	backends := make([]*catalog.Backend, 0, len(cfg.Databases))
	for _, dbCfg := range cfg.Databases {
		b, err := newBackend(dbCfg, cfg, infra, logger, metrics)
		if err != nil {
			for _, opened := range backends {
				_ = opened.Adapter.Close()
			}
			closeAll(closers, logger)
			return nil, errors.Wrapf(err, errors.GetCode(err), "database %s", dbCfg.Name)
		}
		backends = append(backends, b)
	}

	cat, err := catalog.New(cfg.DefaultDatabase, backends, logger, metrics)
	if err != nil {
		for _, b := range backends {
			_ = b.Adapter.Close()
		}
		closeAll(closers, logger)
		return nil, err
	}

	a, err := assemble(cfg, cat, logger, collector, metrics)
	if err != nil {
		_ = cat.Close()
		closeAll(closers, logger)
		return nil, err
	}
	a.checkers = append(a.checkers, infra.checkers...)
	a.closers = append([]io.Closer{cat}, closers...)

	logger.Info("application initialized",
		logging.Strings("databases", cat.Names()),
		logging.String("default_database", cfg.DefaultDatabase),
		logging.Bool("cache", infra.results != nil),
		logging.Bool("nl_query", infra.nlsql != nil),
		logging.String("artifacts", cfg.Artifacts.Backend))
	return a, nil
}

// FromCatalog wraps an already built catalog. The caller keeps ownership of
// cat; Close leaves it open.
func FromCatalog(cfg *config.Config, cat *catalog.Catalog, logger logging.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	collector, metrics, err := newMetrics(cfg, logger)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, cat, logger, collector, metrics)
}

func newMetrics(cfg *config.Config, logger logging.Logger) (prometheus.MetricsCollector, *prometheus.AppMetrics, error) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: cfg.Metrics.Enabled,
		EnableGoMetrics:      cfg.Metrics.Enabled,
	}, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInvalidArguments, "metrics collector")
	}
	return collector, prometheus.NewAppMetrics(collector), nil
}

func assemble(cfg *config.Config, cat *catalog.Catalog, logger logging.Logger, collector prometheus.MetricsCollector, metrics *prometheus.AppMetrics) (*App, error) {
	d := mcp.NewDispatcher(logger, metrics)
	if err := mcp.RegisterTools(d, cat); err != nil {
		return nil, err
	}
	if err := mcp.RegisterResources(d, cat); err != nil {
		return nil, err
	}
	return &App{
		Config:     cfg,
		Logger:     logger,
		Collector:  collector,
		Metrics:    metrics,
		Catalog:    cat,
		Dispatcher: d,
		checkers:   handlers.DatabaseCheckers(cat),
	}, nil
}

func initInfrastructure(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *prometheus.AppMetrics) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.Cache.Enabled {
		client, err := redis.NewClient(ctx, cfg.Cache.Redis, logger)
		if err != nil {
			return nil, err
		}
		infra.cache = client
		infra.results = redis.NewResultCache(client, logger,
			redis.WithDefaultTTL(cfg.Cache.TTL),
			redis.WithLoadTimeout(cfg.Cache.LoadTimeout),
			redis.WithMetrics(metrics))
		infra.checkers = append(infra.checkers, handlers.NewChecker("redis", client.Ping))
	}

	switch cfg.Artifacts.Backend {
	case config.ArtifactsMinIO:
		store, err := minio.NewMinIOClient(ctx, cfg.Artifacts.MinIO, logger)
		if err != nil {
			closeCache(infra, logger)
			return nil, err
		}
		infra.store = store
		infra.checkers = append(infra.checkers, handlers.NewChecker("minio", store.HealthCheck))
	default:
		store, err := storage.NewFilesystem(cfg.Artifacts.Dir, logger)
		if err != nil {
			closeCache(infra, logger)
			return nil, err
		}
		infra.store = store
	}

	if cfg.NLQuery.Endpoint != "" {
		client, err := nlsql.NewClient(cfg.NLQuery, logger)
		if err != nil {
			closeCache(infra, logger)
			return nil, err
		}
		infra.nlsql = client
	}

	infra.renderers = []reporting.Renderer{
		render.NewJSON(),
		render.NewMarkdown(),
		render.NewHTML(),
		render.NewPDF(cfg.Render, logger),
	}
	return infra, nil
}

func newBackend(dbCfg config.DatabaseConfig, cfg *config.Config, infra *infrastructure, logger logging.Logger, metrics *prometheus.AppMetrics) (*catalog.Backend, error) {
	db, err := sqladapter.Open(dbCfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	repo := repositories.NewPatentRepository(db, logger)

	svcCfg := analytics.ServiceConfig{
		Adapter:    db,
		Repository: repo,
		Settings:   cfg.Analytics,
		Logger:     logger,
		CacheTTL:   cfg.Cache.TTL,
	}
	// A nil *ResultCache must not reach the interface field.
	if infra.results != nil {
		svcCfg.Cache = infra.results
	}
	svc, err := analytics.NewService(svcCfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reports, err := reporting.NewService(reporting.ServiceConfig{
		Composer:  reporting.NewComposer(svc, logger),
		Renderers: infra.renderers,
		Store:     infra.store,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	b := &catalog.Backend{Name: dbCfg.Name, Adapter: db, Patents: repo, Analytics: svc, Reports: reports}
	if infra.nlsql != nil {
		nl, err := query.NewNLQueryService(infra.nlsql, db, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		b.NLQuery = nl
	}
	return b, nil
}

// Router builds the HTTP route tree over the App.
func (a *App) Router() http.Handler {
	maxBody := a.Config.Server.MaxBodySize
	cfg := httpapi.RouterConfig{
		SQLHandler:     handlers.NewSQLHandler(a.Catalog, maxBody, a.Logger),
		MCPHandler:     handlers.NewMCPHandler(a.Dispatcher, maxBody),
		StatusHandler:  handlers.NewStatusHandler(a.Catalog),
		HealthHandler:  handlers.NewHealthHandler(config.Version, a.checkers...),
		APIToken:       a.Config.Server.APIToken,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
	}
	if a.Config.Metrics.Enabled {
		cfg.MetricsCollector = a.Collector
		cfg.MetricsPath = a.Config.Metrics.Path
	}
	return httpapi.NewRouter(cfg)
}

// Server returns an HTTP server bound to the configured address.
func (a *App) Server() *httpapi.Server {
	return httpapi.NewServer(a.Config.Server, a.Router(), a.Logger)
}

// StdioServer returns the JSON-RPC MCP server over in and out.
func (a *App) StdioServer(in io.Reader, out io.Writer) *mcp.StdioServer {
	return mcp.NewStdioServer(a.Dispatcher, a.Config.MCP.ServerName, config.Version, in, out, a.Logger)
}

// Close releases the databases and every infrastructure client the App
// opened.
func (a *App) Close() error {
	return closeAll(a.closers, a.Logger)
}

func closeAll(closers []io.Closer, logger logging.Logger) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", logging.Err(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func closeCache(infra *infrastructure, logger logging.Logger) {
	if infra.cache != nil {
		_ = closeAll([]io.Closer{infra.cache}, logger)
	}
}
