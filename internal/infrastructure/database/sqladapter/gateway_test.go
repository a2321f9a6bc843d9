package sqladapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

func newGatewayAdapter(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewGateway(GatewayOptions{BaseURL: srv.URL + "/", Database: "inpit", Token: "secret"})
	require.NoError(t, err)
	return New(g, Options{Name: "remote", Dialect: InpitDialect, Timeout: timeout})
}

func TestGateway_Query(t *testing.T) {
	var got GatewayRequest
	a := newGatewayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sql-query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(GatewayResponse{
			Success:     true,
			Columns:     []string{"出願番号", "n"},
			Results:     [][]interface{}{{"2020-000001", 3}},
			RecordCount: 1,
		})
	}, time.Second)

	rows, err := a.Passthrough(context.Background(), `SELECT "出願番号", COUNT(*) AS n FROM inpit_data WHERE "出願人" LIKE ?`, "%acme%")
	require.NoError(t, err)
	assert.Equal(t, "inpit", got.DBType)
	assert.Equal(t, []interface{}{"%acme%"}, got.Params)
	assert.Equal(t, []string{"application_number", "n"}, rows.Columns)
	assert.Equal(t, int64(3), rows.Int(0, 1))
	assert.Equal(t, "gateway", a.Kind())
}

func TestGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   GatewayResponse
		code   errors.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, GatewayResponse{Error: "bad token"}, errors.ErrCodeUnauthorized},
		{"forbidden", http.StatusForbidden, GatewayResponse{}, errors.ErrCodeUnauthorized},
		{"bad request", http.StatusBadRequest, GatewayResponse{Error: "no such column"}, errors.ErrCodeBadQuery},
		{"server error", http.StatusInternalServerError, GatewayResponse{}, errors.ErrCodeUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, GatewayResponse{}, errors.ErrCodeTimeout},
		{"unsuccessful 200", http.StatusOK, GatewayResponse{Success: false, Error: "syntax error"}, errors.ErrCodeBadQuery},
		{"explicit kind", http.StatusForbidden, GatewayResponse{Error: "write", ErrorKind: "NotAllowed"}, errors.ErrCodeNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newGatewayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}, time.Second)
			_, err := a.Query(context.Background(), "SELECT 1")
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	a := newGatewayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 30*time.Millisecond)
	defer close(release)

	_, err := a.Query(context.Background(), "SELECT 1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout), "got %v", err)
}

func TestGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g, err := NewGateway(GatewayOptions{BaseURL: url})
	require.NoError(t, err)
	a := New(g, Options{Name: "remote", Timeout: time.Second})
	_, err = a.Query(context.Background(), "SELECT 1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable), "got %v", err)
}

func TestGateway_Ping(t *testing.T) {
	a := newGatewayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}, time.Second)
	assert.NoError(t, a.Ping(context.Background()))
}

func TestNewGateway_InvalidURL(t *testing.T) {
	_, err := NewGateway(GatewayOptions{BaseURL: "ftp://example"})
	assert.Error(t, err)
}
