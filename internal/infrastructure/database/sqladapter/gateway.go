package sqladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// KindGateway identifies the SQLite HTTP gateway backend.
const KindGateway = "gateway"

// GatewayOptions configures a Gateway backend.
type GatewayOptions struct {
	BaseURL    string
	Database   string
	Token      string
	HTTPClient *http.Client
}

// Gateway forwards statements to a remote SQLite HTTP gateway speaking the
// /api/sql-query protocol. It never retries; the caller decides.
type Gateway struct {
	baseURL  string
	database string
	token    string
	client   *http.Client
}

// GatewayRequest is the body of POST /api/sql-query.
type GatewayRequest struct {
	Query  string        `json:"query"`
	Params []interface{} `json:"params,omitempty"`
	DBType string        `json:"db_type,omitempty"`
}

// GatewayResponse is the reply of POST /api/sql-query.
type GatewayResponse struct {
	Success     bool            `json:"success"`
	Columns     []string        `json:"columns,omitempty"`
	Results     [][]interface{} `json:"results,omitempty"`
	RecordCount int             `json:"record_count"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
}

// NewGateway validates the base URL and builds the backend.
func NewGateway(opts GatewayOptions) (*Gateway, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: invalid gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("sqladapter: gateway url scheme must be http or https")
	}
	client := opts.HTTPClient
	if client == nil {
		// Deadlines come from the request context.
		client = &http.Client{}
	}
	return &Gateway{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		database: opts.Database,
		token:    opts.Token,
		client:   client,
	}, nil
}

func (g *Gateway) Kind() string { return KindGateway }

func (g *Gateway) Query(ctx context.Context, query string, args []interface{}) (*Rows, error) {
	body, err := json.Marshal(GatewayRequest{Query: query, Params: args, DBType: g.database})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidArguments, "failed to encode query parameters")
	}

	resp, err := g.do(ctx, http.MethodPost, "/api/sql-query", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out GatewayResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	decodeErr := dec.Decode(&out)

	if resp.StatusCode != http.StatusOK || (decodeErr == nil && !out.Success) {
		return nil, gatewayError(resp.StatusCode, out)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, errors.ErrCodeUnavailable, "gateway returned a malformed response")
	}

	rows := &Rows{Columns: out.Columns, Data: out.Results}
	if rows.Data == nil {
		rows.Data = [][]interface{}{}
	}
	return rows, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodGet, "/api/status", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return gatewayError(resp.StatusCode, GatewayResponse{})
	}
	return nil
}

func (g *Gateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build gateway request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		if ce := errors.FromContext(ctx.Err()); ce != nil {
			return nil, ce
		}
		return nil, classify(fmt.Errorf("gateway %s %s after %s: %w", method, path, time.Since(start).Round(time.Millisecond), err))
	}
	return resp, nil
}

// gatewayError maps a failed reply onto the taxonomy. An explicit
// error_kind from the gateway wins over the HTTP status.
func gatewayError(status int, body GatewayResponse) error {
	msg := body.Error
	if msg == "" {
		msg = fmt.Sprintf("gateway returned HTTP %d", status)
	}
	if code, ok := errors.CodeForKind(body.ErrorKind); ok {
		return errors.New(code, msg)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeUnauthorized, msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errors.BadQuery(msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.New(errors.ErrCodeTimeout, msg)
	case status >= 500:
		return errors.Unavailable(msg)
	case status == http.StatusOK:
		return errors.BadQuery(msg)
	}
	return errors.New(errors.ErrCodeUnknown, msg)
}
