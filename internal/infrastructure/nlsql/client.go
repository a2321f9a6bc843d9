// Package nlsql talks to the natural-language-to-SQL collaborator over HTTP.
package nlsql

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

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Request asks the collaborator to translate a question into one SELECT
// statement over the described tables.
type Request struct {
	Question string   `json:"question"`
	Dialect  string   `json:"dialect"`
	Tables   []string `json:"tables"`
}

// Translation is the collaborator's answer.
type Translation struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation,omitempty"`
}

type response struct {
	Translation
	Error string `json:"error,omitempty"`
}

// Client posts translation requests to a single endpoint. It never retries.
type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
	logger   logging.Logger
}

// NewClient validates cfg.Endpoint and builds the client. An empty endpoint
// yields Unavailable so callers can treat the feature as switched off.
func NewClient(cfg config.NLQueryConfig, logger logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.Unavailable("natural language query endpoint is not configured")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Newf(errors.ErrCodeInvalidArguments, "invalid nl_query endpoint %q", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultNLQueryTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		http:     &http.Client{},
		logger:   logger.Named("nlsql"),
	}, nil
}

// Translate returns the SQL for req. Transport failures and 5xx replies map
// to Unavailable, 4xx to InvalidArguments, 401/403 to Unauthorized.
func (c *Client) Translate(ctx context.Context, req Request) (*Translation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "encode translation request")
	}

	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(tctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build translation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx.Err())
		}
		if tctx.Err() != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeTimeout, "translation exceeded %s", c.timeout)
		}
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "translation service unreachable")
	}
	defer resp.Body.Close()

	var out response
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)
	c.logger.Debug("translation finished",
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, out.Error)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, errors.ErrCodeUnavailable, "translation service returned a malformed response")
	}
	if out.Error != "" {
		return nil, errors.InvalidArguments(out.Error)
	}
	out.SQL = strings.TrimSpace(out.SQL)
	if out.SQL == "" {
		return nil, errors.InvalidArguments("question could not be translated into SQL")
	}
	return &out.Translation, nil
}

func statusError(status int, msg string) error {
	if msg == "" {
		msg = fmt.Sprintf("translation service returned HTTP %d", status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeUnauthorized, msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.New(errors.ErrCodeTimeout, msg)
	case status >= 500:
		return errors.Unavailable(msg)
	case status >= 400:
		return errors.InvalidArguments(msg)
	}
	return errors.New(errors.ErrCodeUnknown, msg)
}
