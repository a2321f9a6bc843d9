package handlers

import (
	"net/http"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/application/catalog"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/mcp"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewStatusHandler returns the handler.
func NewStatusHandler(cat *catalog.Catalog) *StatusHandler {
	return &StatusHandler{catalog: cat, now: time.Now}
}

// Status reports every database. A degraded deployment still answers 200;
// the body names the unavailable databases.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	doc, err := mcp.BuildStatus(r.Context(), h.catalog, h.now)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": mcp.ErrorMessage(err), "error_kind": errors.KindOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
