package handlers

import (
	"net/http"

	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/mcp"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// MCPRequest is the body of POST /api/v1/mcp.
type MCPRequest struct {
	ToolName  string                 `json:"tool_name"`
	ToolInput map[string]interface{} `json:"tool_input"`
}

// MCPHandler exposes the tool dispatcher over HTTP.
type MCPHandler struct {
	dispatcher  *mcp.Dispatcher
	maxBodySize int64
}

// NewMCPHandler returns the handler.
func NewMCPHandler(d *mcp.Dispatcher, maxBodySize int64) *MCPHandler {
	return &MCPHandler{dispatcher: d, maxBodySize: maxBodySize}
}

// Execute runs one tool and answers with its envelope. A failed envelope is
// sent with the status of its error kind.
func (h *MCPHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req MCPRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeJSON(w, statusFor(err), &mcp.Envelope{Error: mcp.ErrorMessage(err), ErrorKind: errors.KindOf(err)})
		return
	}
	if req.ToolName == "" {
		err := errors.InvalidArguments("tool_name is required")
		writeJSON(w, statusFor(err), &mcp.Envelope{Error: mcp.ErrorMessage(err), ErrorKind: errors.KindOf(err)})
		return
	}

	env := h.dispatcher.Execute(r.Context(), req.ToolName, req.ToolInput)
	status := http.StatusOK
	if !env.Success {
		status = statusFor(env.Err())
	}
	writeJSON(w, status, env)
}

// ListTools answers GET /api/v1/mcp/tools.
func (h *MCPHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	tools := h.dispatcher.Tools()
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": tools, "count": len(tools)})
}

// ListResources answers GET /api/v1/mcp/resources.
func (h *MCPHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"resources": h.dispatcher.Resources()})
}

// ReadResource answers GET /api/v1/mcp/resources/read?uri=...
func (h *MCPHandler) ReadResource(w http.ResponseWriter, r *http.Request) {
	env := h.dispatcher.ReadResource(r.Context(), r.URL.Query().Get("uri"))
	status := http.StatusOK
	if !env.Success {
		status = statusFor(env.Err())
	}
	writeJSON(w, status, env)
}
