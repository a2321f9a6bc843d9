package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// QueryRequest is one read-only SQL statement. Database selects a configured
// database; empty selects the server's default.
type QueryRequest struct {
	Query    string        `json:"query"`
	Params   []interface{} `json:"params,omitempty"`
	Database string        `json:"db_type,omitempty"`
}

// QueryResult holds the rows of a statement. Numbers decode as float64.
type QueryResult struct {
	Columns     []string        `json:"columns"`
	Results     [][]interface{} `json:"results"`
	RecordCount int             `json:"record_count"`
}

// ToolResult is the successful outcome of a tool call or resource read.
// Response holds the raw JSON of the result model.
type ToolResult struct {
	Tool     string          `json:"tool,omitempty"`
	Resource string          `json:"resource,omitempty"`
	Response json.RawMessage `json:"response"`
}

// Decode unmarshals Response into v.
func (r *ToolResult) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Response, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnknown, "decode tool response")
	}
	return nil
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ResourceInfo describes one registered resource.
type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// DatabaseStatus is the health of one database.
type DatabaseStatus struct {
	Name        string `json:"name"`
	Backend     string `json:"backend"`
	Schema      string `json:"schema"`
	Default     bool   `json:"default"`
	Available   bool   `json:"available"`
	RecordCount int64  `json:"record_count"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

// Status is the answer of GET /api/status. Status is "ok" or "degraded".
type Status struct {
	Status    string           `json:"status"`
	CheckedAt time.Time        `json:"checked_at"`
	Databases []DatabaseStatus `json:"databases"`
}

// Readiness is the answer of GET /readyz.
type Readiness struct {
	Status     string `json:"status"`
	Components map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Error   string `json:"error,omitempty"`
	} `json:"components,omitempty"`
}

// Query runs one read-only statement through POST /api/sql-query.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Query == "" {
		return nil, errors.InvalidArguments("query is required")
	}
	if req.Database == "" {
		req.Database = c.database
	}
	var result QueryResult
	if err := c.post(ctx, "/api/sql-query", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallTool runs one tool. A db_type entry in input selects the database;
// without one the client's database applies. input is not modified.
func (c *Client) CallTool(ctx context.Context, name string, input map[string]interface{}) (*ToolResult, error) {
	if name == "" {
		return nil, errors.InvalidArguments("tool name is required")
	}
	args := make(map[string]interface{}, len(input)+1)
	for k, v := range input {
		args[k] = v
	}
	if _, ok := args["db_type"]; !ok && c.database != "" {
		args["db_type"] = c.database
	}
	body := map[string]interface{}{"tool_name": name, "tool_input": args}
	var result ToolResult
	if err := c.post(ctx, "/api/v1/mcp", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tools lists the registered tools.
func (c *Client) Tools(ctx context.Context) ([]ToolInfo, error) {
	var resp struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := c.get(ctx, "/api/v1/mcp/tools", &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// Resources lists the registered resources.
func (c *Client) Resources(ctx context.Context) ([]ResourceInfo, error) {
	var resp struct {
		Resources []ResourceInfo `json:"resources"`
	}
	if err := c.get(ctx, "/api/v1/mcp/resources", &resp); err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

// ReadResource reads one resource by URI, such as "patent://status".
func (c *Client) ReadResource(ctx context.Context, uri string) (*ToolResult, error) {
	var result ToolResult
	if err := c.get(ctx, "/api/v1/mcp/resources/read?uri="+url.QueryEscape(uri), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status reports every database of the server.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.get(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Ready calls /readyz. A server that is not ready answers with its
// component report and an Unavailable error.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	var ready Readiness
	err := c.get(ctx, "/readyz", &ready)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		if jerr := json.Unmarshal(apiErr.body, &ready); jerr == nil {
			return &ready, err
		}
	}
	if err != nil {
		return nil, err
	}
	return &ready, nil
}
