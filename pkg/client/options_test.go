package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}
	logger := &testLogger{}
	c := &Client{retryMax: 2, retryWaitMin: time.Second, retryWaitMax: 2 * time.Second, userAgent: "default"}

	for _, opt := range []Option{
		WithHTTPClient(custom),
		WithLogger(logger),
		WithRetryMax(5),
		WithUserAgent("agent/2"),
	} {
		opt(c)
	}
	assert.Same(t, custom, c.httpClient)
	assert.Same(t, logger, c.logger)
	assert.Equal(t, 5, c.retryMax)
	assert.Equal(t, "agent/2", c.userAgent)
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	c := &Client{retryMax: 2, userAgent: "default"}
	WithHTTPClient(nil)(c)
	WithLogger(nil)(c)
	WithRetryMax(-1)(c)
	WithUserAgent("")(c)

	assert.Nil(t, c.httpClient)
	assert.Nil(t, c.logger)
	assert.Equal(t, 2, c.retryMax)
	assert.Equal(t, "default", c.userAgent)
}

func TestWithRetryWait(t *testing.T) {
	tests := []struct {
		name    string
		min     time.Duration
		max     time.Duration
		wantMin time.Duration
		wantMax time.Duration
	}{
		{"both valid", 100 * time.Millisecond, time.Second, 100 * time.Millisecond, time.Second},
		{"max below min keeps max", 2 * time.Second, time.Second, 2 * time.Second, 5 * time.Second},
		{"non-positive min ignored", 0, time.Second, 500 * time.Millisecond, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryWaitMin: 500 * time.Millisecond, retryWaitMax: 5 * time.Second}
			WithRetryWait(tt.min, tt.max)(c)
			assert.Equal(t, tt.wantMin, c.retryWaitMin)
			assert.Equal(t, tt.wantMax, c.retryWaitMax)
		})
	}
}

func TestWithDatabase_FillsUnnamedRequests(t *testing.T) {
	var bodies []map[string]interface{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		fmt.Fprint(w, `{"success":true,"columns":[],"results":[],"record_count":0}`)
	}), WithDatabase("archive"))
	ctx := context.Background()

	_, err := c.Query(ctx, QueryRequest{Query: "SELECT 1"})
	require.NoError(t, err)
	_, err = c.Query(ctx, QueryRequest{Query: "SELECT 1", Database: "main"})
	require.NoError(t, err)

	input := map[string]interface{}{"top_applicants": 3}
	_, err = c.CallTool(ctx, "get_patent_stats", input)
	require.NoError(t, err)
	_, err = c.CallTool(ctx, "get_patent_stats", map[string]interface{}{"db_type": "main"})
	require.NoError(t, err)

	require.Len(t, bodies, 4)
	assert.Equal(t, "archive", bodies[0]["db_type"])
	assert.Equal(t, "main", bodies[1]["db_type"])
	assert.Equal(t, map[string]interface{}{"top_applicants": float64(3), "db_type": "archive"}, bodies[2]["tool_input"])
	assert.Equal(t, map[string]interface{}{"db_type": "main"}, bodies[3]["tool_input"])
	assert.NotContains(t, input, "db_type")
}

func TestWithRequestID(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		fmt.Fprint(w, `{"status":"ok","databases":[]}`)
	}), WithRequestID(func() string { return "trace-42" }))

	_, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trace-42", got)

	WithRequestID(nil)(c)
	assert.NotNil(t, c.requestID)
}
