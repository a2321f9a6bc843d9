package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerAuth(t *testing.T) {
	handler := BearerAuth("s3cret", nil)(okHandler())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer s3cret", http.StatusOK},
		{"scheme case", "bearer s3cret", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "Basic s3cret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/sql-query", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestBearerAuth_FailureBody(t *testing.T) {
	w := httptest.NewRecorder()
	BearerAuth("s3cret", nil)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Unauthorized", body["error_kind"])
}

func TestBearerAuth_Disabled(t *testing.T) {
	w := httptest.NewRecorder()
	BearerAuth("", nil)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
