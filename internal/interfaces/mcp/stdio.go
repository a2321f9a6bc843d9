package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// ProtocolVersion is the MCP revision the stdio server speaks.
const ProtocolVersion = "2024-11-05"

// MaxMessageSize bounds one newline-delimited JSON-RPC message.
const MaxMessageSize = 4 << 20

// Standard JSON-RPC error codes, plus the MCP resource-not-found code.
const (
	ParseError       = -32700
	InvalidRequest   = -32600
	MethodNotFound   = -32601
	InvalidParams    = -32602
	InternalError    = -32603
	ResourceNotFound = -32002
)

var nullID = json.RawMessage("null")

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callToolResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError"`
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// StdioServer serves the dispatcher as newline-delimited JSON-RPC 2.0 over a
// reader/writer pair. Requests are handled one at a time in arrival order.
type StdioServer struct {
	dispatcher *Dispatcher
	name       string
	version    string
	in         io.Reader
	out        io.Writer
	logger     logging.Logger
	mu         sync.Mutex
}

// NewStdioServer returns a server reading in and writing out.
func NewStdioServer(d *Dispatcher, name, version string, in io.Reader, out io.Writer, logger logging.Logger) *StdioServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &StdioServer{
		dispatcher: d,
		name:       name,
		version:    version,
		in:         in,
		out:        out,
		logger:     logger.Named("mcp.stdio"),
	}
}

// Serve processes messages until the input ends or ctx is cancelled.
func (s *StdioServer) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), MaxMessageSize)

	s.logger.Info("mcp stdio server started", logging.String("server", s.name))
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return errors.FromContext(err)
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if resp := s.handle(ctx, line); resp != nil {
			if err := s.write(resp); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "read mcp input")
	}
	s.logger.Info("mcp stdio input closed")
	return nil
}

func (s *StdioServer) write(resp *rpcResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "encode mcp response")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "%s\n", data); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "write mcp response")
	}
	return nil
}

// handle returns nil for notifications.
func (s *StdioServer) handle(ctx context.Context, line []byte) *rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nullID, ParseError, "parse error: "+err.Error(), nil)
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		id := req.ID
		if len(id) == 0 {
			id = nullID
		}
		return errorResponse(id, InvalidRequest, "invalid request", nil)
	}
	if len(req.ID) == 0 {
		s.logger.Debug("notification received", logging.String("method", req.Method))
		return nil
	}

	log := s.logger.With(logging.String("method", req.Method), logging.String("request_id", uuid.New().String()))
	log.Debug("request received")

	switch req.Method {
	case "initialize":
		return result(req.ID, map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools":     map[string]interface{}{},
				"resources": map[string]interface{}{},
			},
			"serverInfo": map[string]string{"name": s.name, "version": s.version},
		})
	case "ping":
		return result(req.ID, map[string]interface{}{})
	case "tools/list":
		return result(req.ID, map[string]interface{}{"tools": s.dispatcher.Tools()})
	case "tools/call":
		return s.callTool(ctx, req)
	case "resources/list":
		return result(req.ID, map[string]interface{}{"resources": s.dispatcher.Resources()})
	case "resources/read":
		return s.readResource(ctx, req)
	}
	return errorResponse(req.ID, MethodNotFound, "method not found: "+req.Method, nil)
}

func (s *StdioServer) callTool(ctx context.Context, req rpcRequest) *rpcResponse {
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := decodeParams(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, InvalidParams, "tools/call requires a tool name", nil)
	}

	env := s.dispatcher.Execute(ctx, params.Name, params.Arguments)
	text, err := json.Marshal(env)
	if err != nil {
		return errorResponse(req.ID, InternalError, "encode tool result", nil)
	}
	return result(req.ID, callToolResult{
		Content: []textContent{{Type: "text", Text: string(text)}},
		IsError: !env.Success,
	})
}

func (s *StdioServer) readResource(ctx context.Context, req rpcRequest) *rpcResponse {
	var params struct {
		URI string `json:"uri"`
	}
	if err := decodeParams(req.Params, &params); err != nil || params.URI == "" {
		return errorResponse(req.ID, InvalidParams, "resources/read requires a uri", nil)
	}

	env := s.dispatcher.ReadResource(ctx, params.URI)
	if !env.Success {
		code := InternalError
		if env.ErrorKind == errors.KindForCode(errors.ErrCodeUnknownResource) {
			code = ResourceNotFound
		}
		return errorResponse(req.ID, code, env.Error, map[string]string{"error_kind": env.ErrorKind})
	}
	text, err := json.Marshal(env.Response)
	if err != nil {
		return errorResponse(req.ID, InternalError, "encode resource", nil)
	}
	return result(req.ID, map[string]interface{}{
		"contents": []resourceContent{{URI: params.URI, MimeType: "application/json", Text: string(text)}},
	})
}

func decodeParams(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dest)
}

func result(id json.RawMessage, v interface{}) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: v}
}

func errorResponse(id json.RawMessage, code int, msg string, data interface{}) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg, Data: data}}
}
