// Package handlers implements the HTTP endpoints of the analytics API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// DefaultMaxBodySize bounds request bodies when no limit is configured.
const DefaultMaxBodySize = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// statusFor maps err to its HTTP status.
func statusFor(err error) int {
	return errors.HTTPStatusForCode(errors.GetCode(err))
}

// decodeJSON reads a single JSON object of at most limit bytes into dest.
// Numbers are kept as json.Number so integer arguments survive intact.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dest interface{}) error {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		if err == io.EOF {
			return errors.InvalidArguments("request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.Newf(errors.ErrCodeInvalidArguments, "request body exceeds %d bytes", limit)
		}
		return errors.Wrap(err, errors.ErrCodeInvalidArguments, "request body is not valid JSON")
	}
	if dec.More() {
		return errors.InvalidArguments("request body must hold a single JSON object")
	}
	return nil
}
