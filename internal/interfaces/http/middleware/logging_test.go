package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestRequestLogging_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusForbidden, "warn"},
		{http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		core, logs := observer.New(zap.DebugLevel)
		handler := chimw.RequestID(RequestLogging(logging.NewLoggerFromCore(core), DefaultLoggingConfig())(statusHandler(tt.status)))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sql-query", nil))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, tt.level, entry.Level.String())
		fields := entry.ContextMap()
		assert.Equal(t, int64(tt.status), fields["status"])
		assert.Equal(t, "/api/sql-query", fields["path"])
		assert.NotEmpty(t, fields["request_id"])
	}
}

func TestRequestLogging_SkipsHealthEndpoints(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogging(logging.NewLoggerFromCore(core), DefaultLoggingConfig())(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, 0, logs.Len())
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, nil)
	require.NoError(t, err)
	m := prometheus.NewAppMetrics(collector)

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}

	expected := `
# HELP test_http_requests_total Total HTTP requests
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",route="/items/{id}",status="202"} 2
`
	assert.NoError(t, promtest.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_http_requests_total"))
}

func TestMetrics_NilIsPassthrough(t *testing.T) {
	w := httptest.NewRecorder()
	Metrics(nil)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "ok", w.Body.String())
}
