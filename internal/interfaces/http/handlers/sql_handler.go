package handlers

import (
	"net/http"

	"github.com/turtacn/KeyIP-Analytics/internal/application/catalog"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/mcp"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// SQLHandler serves POST /api/sql-query with the same protocol the gateway
// backend speaks, so one deployment can front another.
type SQLHandler struct {
	catalog     *catalog.Catalog
	maxBodySize int64
	logger      logging.Logger
}

// NewSQLHandler returns the handler.
func NewSQLHandler(cat *catalog.Catalog, maxBodySize int64, logger logging.Logger) *SQLHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SQLHandler{catalog: cat, maxBodySize: maxBodySize, logger: logger.Named("http.sql")}
}

// Query runs one read-only statement. Failures carry success=false with the
// error kind and the status mapped from it.
func (h *SQLHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req sqladapter.GatewayRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Query == "" {
		h.fail(w, r, errors.InvalidArguments("query is required"))
		return
	}

	b, err := h.catalog.Get(req.DBType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := b.Adapter.Passthrough(r.Context(), req.Query, req.Params...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sqladapter.GatewayResponse{
		Success:     true,
		Columns:     rows.Columns,
		Results:     rows.Data,
		RecordCount: rows.Len(),
	})
}

func (h *SQLHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithContext(r.Context()).Info("sql query failed", logging.Err(err))
	writeJSON(w, statusFor(err), sqladapter.GatewayResponse{
		Success:   false,
		Error:     mcp.ErrorMessage(err),
		ErrorKind: errors.KindOf(err),
	})
}
