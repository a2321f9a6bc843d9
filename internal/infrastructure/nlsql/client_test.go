package nlsql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.NLQueryConfig{Endpoint: srv.URL + "/translate", APIKey: "k", Timeout: time.Second}, nil)
	require.NoError(t, err)
	return c
}

func TestTranslate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "how many patents?", req.Question)
		assert.Equal(t, []string{"patents"}, req.Tables)
		_ = json.NewEncoder(w).Encode(map[string]string{"sql": " SELECT COUNT(*) FROM patents ", "explanation": "count"})
	})

	tr, err := c.Translate(context.Background(), Request{Question: "how many patents?", Dialect: "canonical", Tables: []string{"patents"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM patents", tr.SQL)
	assert.Equal(t, "count", tr.Explanation)
}

func TestTranslate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   errors.ErrorCode
	}{
		{"server error", http.StatusBadGateway, `{}`, errors.ErrCodeUnavailable},
		{"rejected", http.StatusBadRequest, `{"error":"question too vague"}`, errors.ErrCodeInvalidArguments},
		{"unauthorized", http.StatusUnauthorized, `{}`, errors.ErrCodeUnauthorized},
		{"empty sql", http.StatusOK, `{"sql":""}`, errors.ErrCodeInvalidArguments},
		{"malformed", http.StatusOK, `not json`, errors.ErrCodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Translate(context.Background(), Request{Question: "q"})
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestTranslate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	c, err := NewClient(config.NLQueryConfig{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = c.Translate(context.Background(), Request{Question: "q"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout), "got %v", err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(config.NLQueryConfig{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
	_, err = NewClient(config.NLQueryConfig{Endpoint: "ftp://x"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}
