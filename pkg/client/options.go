package client

import (
	"net/http"
	"time"
)

// Option configures a Client. Zero and nil values leave the default in place.
type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Timeout bounds one
// attempt; retries add their own waits on top.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDatabase selects the database used by Query and CallTool when the
// request names none. Without it the server's default database answers.
func WithDatabase(name string) Option {
	return func(c *Client) {
		c.database = name
	}
}

// WithRetryMax sets how many times a network error or a 502 is retried.
// 0 disables retries.
func WithRetryMax(retryMax int) Option {
	return func(c *Client) {
		if retryMax >= 0 {
			c.retryMax = retryMax
		}
	}
}

// WithRetryWait bounds the exponential backoff between retries. max is
// ignored when it is below min.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		if min <= 0 {
			return
		}
		c.retryWaitMin = min
		if max >= min {
			c.retryWaitMax = max
		}
	}
}

// WithRequestID replaces the generator of the X-Request-ID header, so a
// caller can correlate server logs with its own trace IDs.
func WithRequestID(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}
