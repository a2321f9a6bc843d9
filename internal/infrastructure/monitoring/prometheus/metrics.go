package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric recorded by KeyIP-Analytics. A nil
// *AppMetrics is valid; all Record helpers are no-ops on it.
type AppMetrics struct {
	// HTTP adapter
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// SQL adapter
	SQLQueriesTotal  CounterVec
	SQLQueryDuration HistogramVec
	SQLRowsReturned  HistogramVec
	DatabaseUp       GaugeVec
	DatabaseRecords  GaugeVec

	// MCP dispatcher
	ToolCallsTotal   CounterVec
	ToolCallDuration HistogramVec

	// Result cache
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	// Reports
	ReportsRenderedTotal CounterVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultSQLDurationBuckets      = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 10, 30}
	DefaultAnalysisDurationBuckets = []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60}
	DefaultRowBuckets              = []float64{0, 1, 10, 100, 1000, 10000}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")

	m.SQLQueriesTotal = collector.RegisterCounter("sql_queries_total", "SQL adapter queries by outcome", "database", "backend", "outcome")
	m.SQLQueryDuration = collector.RegisterHistogram("sql_query_duration_seconds", "SQL adapter query duration", DefaultSQLDurationBuckets, "database", "backend")
	m.SQLRowsReturned = collector.RegisterHistogram("sql_rows_returned", "Rows returned per SQL query", DefaultRowBuckets, "database")
	m.DatabaseUp = collector.RegisterGauge("database_up", "Database reachability (1=up, 0=down)", "database")
	m.DatabaseRecords = collector.RegisterGauge("database_records", "Patent records per database at last status check", "database")

	m.ToolCallsTotal = collector.RegisterCounter("mcp_tool_calls_total", "MCP tool calls by outcome", "tool", "outcome")
	m.ToolCallDuration = collector.RegisterHistogram("mcp_tool_duration_seconds", "MCP tool call duration", DefaultAnalysisDurationBuckets, "tool")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Result cache hits", "operation")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Result cache misses", "operation")

	m.ReportsRenderedTotal = collector.RegisterCounter("reports_rendered_total", "Rendered report artifacts", "format", "outcome")

	return m
}

// outcome is "ok" for a nil error and the error kind otherwise.
func outcome(kind string) string {
	if kind == "" {
		return "ok"
	}
	return kind
}

// RecordHTTPRequest records one HTTP request.
func (m *AppMetrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordSQLQuery records one SQL adapter call. errKind is empty on success.
func (m *AppMetrics) RecordSQLQuery(database, backend string, d time.Duration, rows int, errKind string) {
	if m == nil {
		return
	}
	m.SQLQueriesTotal.WithLabelValues(database, backend, outcome(errKind)).Inc()
	m.SQLQueryDuration.WithLabelValues(database, backend).Observe(d.Seconds())
	if errKind == "" {
		m.SQLRowsReturned.WithLabelValues(database).Observe(float64(rows))
	}
}

// RecordDatabaseStatus records reachability and record count of a database.
func (m *AppMetrics) RecordDatabaseStatus(database string, up bool, records int64) {
	if m == nil {
		return
	}
	if !up {
		m.DatabaseUp.WithLabelValues(database).Set(0)
		return
	}
	m.DatabaseUp.WithLabelValues(database).Set(1)
	m.DatabaseRecords.WithLabelValues(database).Set(float64(records))
}

// RecordToolCall records one MCP tool invocation. errKind is empty on success.
func (m *AppMetrics) RecordToolCall(tool string, d time.Duration, errKind string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome(errKind)).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordCacheAccess records a cache lookup.
func (m *AppMetrics) RecordCacheAccess(operation string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(operation).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(operation).Inc()
}

// RecordReport records a rendered report artifact.
func (m *AppMetrics) RecordReport(format string, errKind string) {
	if m == nil {
		return
	}
	m.ReportsRenderedTotal.WithLabelValues(format, outcome(errKind)).Inc()
}
