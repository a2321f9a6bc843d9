package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Analytics/internal/app"
	"github.com/turtacn/KeyIP-Analytics/internal/application/catalog/catalogtest"
	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	client, err := NewClient(server.URL, "test-token", opts...)
	require.NoError(t, err)
	return client
}

// newAnalyticsServer serves the real route tree over the fixture catalog.
func newAnalyticsServer(t *testing.T) *Client {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Server.APIToken = "test-token"
	a, err := app.FromCatalog(cfg, catalogtest.New(t), nil)
	require.NoError(t, err)
	return newTestClient(t, a.Router())
}

type testLogger struct {
	lastMsg string
	count   int32
}

func (l *testLogger) Debugf(format string, args ...interface{}) { l.log(format, args...) }
func (l *testLogger) Infof(format string, args ...interface{})  { l.log(format, args...) }
func (l *testLogger) Errorf(format string, args ...interface{}) { l.log(format, args...) }

func (l *testLogger) log(format string, args ...interface{}) {
	atomic.AddInt32(&l.count, 1)
	l.lastMsg = fmt.Sprintf(format, args...)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://analytics.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "http://analytics.example.com", c.baseURL)
	assert.Equal(t, 2, c.retryMax)
	assert.Contains(t, c.userAgent, "keyip-analytics-go/")

	for _, bad := range []string{"", "ftp://analytics", "analytics.example.com"} {
		_, err := NewClient(bad, "")
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments), bad)
	}
}

func TestClient_Query(t *testing.T) {
	c := newAnalyticsServer(t)

	res, err := c.Query(context.Background(), QueryRequest{Query: "SELECT COUNT(*) AS n FROM patents"})
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.Columns)
	assert.Equal(t, 1, res.RecordCount)
	assert.EqualValues(t, 5, res.Results[0][0])

	_, err = c.Query(context.Background(), QueryRequest{Query: "DROP TABLE patents"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "NotAllowed", apiErr.Kind)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotAllowed))

	_, err = c.Query(context.Background(), QueryRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func TestClient_CallTool(t *testing.T) {
	c := newAnalyticsServer(t)
	ctx := context.Background()

	res, err := c.CallTool(ctx, "get_patent_stats", nil)
	require.NoError(t, err)
	assert.Equal(t, "get_patent_stats", res.Tool)
	var stats struct {
		TotalPatents int64 `json:"total_patents"`
	}
	require.NoError(t, res.Decode(&stats))
	assert.Equal(t, int64(5), stats.TotalPatents)

	_, err = c.CallTool(ctx, "get_patent_stats", map[string]interface{}{"top_applicants": "many"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	_, err = c.CallTool(ctx, "no_such_tool", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "UnknownTool", apiErr.Kind)
}

func TestClient_Listings(t *testing.T) {
	c := newAnalyticsServer(t)
	ctx := context.Background()

	tools, err := c.Tools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 17)

	resources, err := c.Resources(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, resources)

	res, err := c.ReadResource(ctx, "patent://status")
	require.NoError(t, err)
	assert.Equal(t, "patent://status", res.Resource)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	require.Len(t, status.Databases, 1)
	assert.True(t, status.Databases[0].Default)
	assert.Equal(t, int64(5), status.Databases[0].RecordCount)

	ready, err := c.Ready(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", ready.Status)
}

func TestClient_Unauthorized(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Server.APIToken = "secret"
	a, err := app.FromCatalog(cfg, catalogtest.New(t), nil)
	require.NoError(t, err)
	c := newTestClient(t, a.Router())

	_, err = c.Status(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
}

func TestClient_ReadyReportsComponents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":"not_ready","components":{"redis":{"status":"unhealthy","error":"dial tcp"}}}`)
	}))

	ready, err := c.Ready(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
	require.NotNil(t, ready)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "dial tcp", ready.Components["redis"].Error)
}

func TestClient_RetriesBadGateway(t *testing.T) {
	var calls int32
	logger := &testLogger{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"ok","databases":[]}`)
	}), WithLogger(logger))

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Positive(t, atomic.LoadInt32(&logger.count))
}

func TestClient_DoesNotRetryServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"success":false,"error":"database main is unreachable","error_kind":"Unavailable"}`)
	}))

	_, err := c.Query(context.Background(), QueryRequest{Query: "SELECT 1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, "database main is unreachable", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_SendsHeaders(t *testing.T) {
	var got http.Header
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		fmt.Fprint(w, `{"columns":[],"results":[],"record_count":0}`)
	}), WithUserAgent("analyst/1.0"))

	_, err := c.Query(context.Background(), QueryRequest{Query: "SELECT 1", Database: "archive"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", got.Get("Authorization"))
	assert.Equal(t, "analyst/1.0", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), WithRetryWait(time.Second, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Status(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}

	first := c.calculateBackoff(1)
	assert.GreaterOrEqual(t, first, 100*time.Millisecond)
	assert.Less(t, first, 125*time.Millisecond)

	capped := c.calculateBackoff(5)
	assert.GreaterOrEqual(t, capped, 300*time.Millisecond)
	assert.Less(t, capped, 375*time.Millisecond)
}
