// Package mcp exposes the analytics engines as Model Context Protocol tools
// and resources: a registry with input-schema validation, a uniform result
// envelope, and a JSON-RPC 2.0 stdio transport.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Handler runs a tool with validated arguments.
type Handler func(ctx context.Context, args Args) (interface{}, error)

// Tool is a registered tool.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	InputSchema Schema  `json:"inputSchema"`
	Handler     Handler `json:"-"`
}

// ResourceReader produces the content of a resource.
type ResourceReader func(ctx context.Context) (interface{}, error)

// Resource is a registered URI-addressed resource.
type Resource struct {
	URI         string         `json:"uri"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	MimeType    string         `json:"mimeType"`
	Read        ResourceReader `json:"-"`
}

// Envelope is the result of a tool call or resource read. Success carries
// Response; failure carries Error and ErrorKind.
type Envelope struct {
	Success   bool        `json:"success"`
	Tool      string      `json:"tool,omitempty"`
	Resource  string      `json:"resource,omitempty"`
	Response  interface{} `json:"response,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// Err rebuilds the typed error of a failed envelope.
func (e *Envelope) Err() error {
	if e.Success {
		return nil
	}
	code, ok := errors.CodeForKind(e.ErrorKind)
	if !ok {
		code = errors.ErrCodeUnknown
	}
	return errors.New(code, e.Error)
}

// Dispatcher routes tool calls and resource reads.
type Dispatcher struct {
	tools     map[string]*Tool
	resources map[string]*Resource
	logger    logging.Logger
	metrics   *prometheus.AppMetrics
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(logger logging.Logger, metrics *prometheus.AppMetrics) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{
		tools:     make(map[string]*Tool),
		resources: make(map[string]*Resource),
		logger:    logger.Named("mcp"),
		metrics:   metrics,
	}
}

// Register adds a tool. Names are unique.
func (d *Dispatcher) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return errors.InvalidArguments("mcp: tool needs a name and a handler")
	}
	if _, dup := d.tools[t.Name]; dup {
		return errors.Newf(errors.ErrCodeInvalidArguments, "mcp: tool %q is registered twice", t.Name)
	}
	if t.InputSchema.Type == "" {
		t.InputSchema = ObjectSchema(nil)
	}
	d.tools[t.Name] = &t
	return nil
}

// RegisterResource adds a resource. URIs are unique.
func (d *Dispatcher) RegisterResource(r Resource) error {
	if r.URI == "" || r.Read == nil {
		return errors.InvalidArguments("mcp: resource needs a uri and a reader")
	}
	if _, dup := d.resources[r.URI]; dup {
		return errors.Newf(errors.ErrCodeInvalidArguments, "mcp: resource %q is registered twice", r.URI)
	}
	if r.MimeType == "" {
		r.MimeType = "application/json"
	}
	d.resources[r.URI] = &r
	return nil
}

// Tools lists the registered tools sorted by name.
func (d *Dispatcher) Tools() []Tool {
	out := make([]Tool, 0, len(d.tools))
	for _, t := range d.tools {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resources lists the registered resources sorted by URI.
func (d *Dispatcher) Resources() []Resource {
	out := make([]Resource, 0, len(d.resources))
	for _, r := range d.resources {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// Execute validates arguments, runs the tool and wraps the outcome. It never
// returns a Go error: every failure is carried in the envelope.
func (d *Dispatcher) Execute(ctx context.Context, name string, raw map[string]interface{}) *Envelope {
	start := time.Now()
	tool, ok := d.tools[name]
	if !ok {
		d.metrics.RecordToolCall("unknown", time.Since(start), errors.KindForCode(errors.ErrCodeUnknownTool))
		return failure(name, "", errors.Newf(errors.ErrCodeUnknownTool,
			"unknown tool %q; available tools: %s", name, strings.Join(d.toolNames(), ", ")))
	}

	result, err := d.call(ctx, tool, raw)
	elapsed := time.Since(start)
	d.metrics.RecordToolCall(name, elapsed, kindOf(err))
	if err != nil {
		d.logger.Info("tool call failed",
			logging.String("tool", name),
			logging.String("kind", errors.KindOf(err)),
			logging.Duration("elapsed", elapsed),
			logging.Err(err))
		return failure(name, "", err)
	}
	d.logger.Debug("tool call succeeded",
		logging.String("tool", name),
		logging.Duration("elapsed", elapsed))
	return &Envelope{Success: true, Tool: name, Response: result}
}

func (d *Dispatcher) call(ctx context.Context, tool *Tool, raw map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked", logging.String("tool", tool.Name), logging.Any("panic", r))
			result, err = nil, errors.Newf(errors.ErrCodeInternal, "tool %s failed unexpectedly", tool.Name)
		}
	}()

	args, err := tool.InputSchema.Validate(raw)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(err)
	}
	return tool.Handler(ctx, args)
}

// ReadResource reads the resource at uri and wraps the outcome.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string) *Envelope {
	res, ok := d.resources[uri]
	if !ok {
		return failure("", uri, errors.Newf(errors.ErrCodeUnknownResource, "unknown resource %q", uri))
	}
	content, err := res.Read(ctx)
	if err != nil {
		d.logger.Info("resource read failed", logging.String("uri", uri), logging.Err(err))
		return failure("", uri, err)
	}
	return &Envelope{Success: true, Resource: uri, Response: content}
}

func (d *Dispatcher) toolNames() []string {
	names := make([]string, 0, len(d.tools))
	for name := range d.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func failure(tool, resource string, err error) *Envelope {
	kind := errors.KindOf(err)
	if kind == "" {
		kind = errors.KindForCode(errors.ErrCodeUnknown)
	}
	return &Envelope{
		Success:   false,
		Tool:      tool,
		Resource:  resource,
		Error:     ErrorMessage(err),
		ErrorKind: kind,
	}
}

// ErrorMessage is the caller-facing text of err without the error code or
// the internal cause chain.
func ErrorMessage(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		if appErr.Detail != "" {
			return fmt.Sprintf("%s: %s", appErr.Message, appErr.Detail)
		}
		if appErr.Cause != nil && (appErr.Code == errors.ErrCodeBadQuery || appErr.Code == errors.ErrCodeUnavailable) {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	return err.Error()
}

func kindOf(err error) string {
	if err == nil {
		return ""
	}
	return errors.KindOf(err)
}
