// Package http is the thin HTTP adapter over the catalog and the MCP
// dispatcher.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/http/handlers"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
type RouterConfig struct {
	SQLHandler    *handlers.SQLHandler
	MCPHandler    *handlers.MCPHandler
	StatusHandler *handlers.StatusHandler
	HealthHandler *handlers.HealthHandler

	// APIToken guards /api when set.
	APIToken       string
	AllowedOrigins []string

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter builds the route tree. Health endpoints and /metrics are public; /api is
// behind the optional bearer token.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(cfg.Logger.Named("http"), middleware.DefaultLoggingConfig()))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(cfg.Metrics))
	if len(cfg.AllowedOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.AllowedOrigins
		r.Use(middleware.CORS(cors))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.BearerAuth(cfg.APIToken, cfg.Logger.Named("http.auth")))

		if cfg.SQLHandler != nil {
			api.Post("/sql-query", cfg.SQLHandler.Query)
		}
		if cfg.StatusHandler != nil {
			api.Get("/status", cfg.StatusHandler.Status)
		}
		registerMCPRoutes(api, cfg.MCPHandler)
	})

	return r
}

// registerMCPRoutes mounts the tool and resource endpoints under /v1/mcp.
func registerMCPRoutes(r chi.Router, h *handlers.MCPHandler) {
	if h == nil {
		return
	}
	r.Route("/v1/mcp", func(mr chi.Router) {
		mr.Post("/", h.Execute)
		mr.Get("/tools", h.ListTools)
		mr.Get("/resources", h.ListResources)
		mr.Get("/resources/read", h.ReadResource)
	})
}
