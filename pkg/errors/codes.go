package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal         ErrorCode = "COMMON_001"
	ErrCodeInvalidArguments ErrorCode = "COMMON_002"
	ErrCodeUnauthorized     ErrorCode = "COMMON_003"
	ErrCodeNotFound         ErrorCode = "COMMON_005"
	ErrCodeUnavailable      ErrorCode = "COMMON_008"
	ErrCodeTimeout          ErrorCode = "COMMON_009"
	ErrCodeCancelled        ErrorCode = "COMMON_017"
	ErrCodeUnknown          ErrorCode = "COMMON_999"
)

// SQL Adapter Error Codes
const (
	ErrCodeNotAllowed ErrorCode = "SQL_001"
	ErrCodeBadQuery   ErrorCode = "SQL_002"
)

// IPC Classification Error Codes
const (
	ErrCodeInvalidCode ErrorCode = "IPC_001"
)

// MCP Dispatcher Error Codes
const (
	ErrCodeUnknownTool     ErrorCode = "MCP_001"
	ErrCodeUnknownResource ErrorCode = "MCP_002"
)

// Aliases used at call sites.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrCodeUnknown
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeInvalidArguments: http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
	ErrCodeTimeout:          http.StatusGatewayTimeout,
	ErrCodeCancelled:        499,
	ErrCodeUnknown:          http.StatusInternalServerError,
	ErrCodeNotAllowed:       http.StatusForbidden,
	ErrCodeBadQuery:         http.StatusBadRequest,
	ErrCodeInvalidCode:      http.StatusUnprocessableEntity,
	ErrCodeUnknownTool:      http.StatusNotFound,
	ErrCodeUnknownResource:  http.StatusNotFound,
}

// errorKinds maps error codes to the stable kind names carried on the wire.
var errorKinds = map[ErrorCode]string{
	ErrCodeInternal:         "Unknown",
	ErrCodeInvalidArguments: "InvalidArguments",
	ErrCodeUnauthorized:     "Unauthorized",
	ErrCodeNotFound:         "NotFound",
	ErrCodeUnavailable:      "Unavailable",
	ErrCodeTimeout:          "Timeout",
	ErrCodeCancelled:        "Cancelled",
	ErrCodeUnknown:          "Unknown",
	ErrCodeNotAllowed:       "NotAllowed",
	ErrCodeBadQuery:         "BadQuery",
	ErrCodeInvalidCode:      "InvalidCode",
	ErrCodeUnknownTool:      "UnknownTool",
	ErrCodeUnknownResource:  "UnknownResource",
}

// HTTPStatusForCode returns the HTTP status code for a given error code.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(string(code), "SQL_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// KindForCode returns the wire kind name for a code, "Unknown" when unmapped.
func KindForCode(code ErrorCode) string {
	if kind, ok := errorKinds[code]; ok {
		return kind
	}
	return "Unknown"
}

// CodeForKind is the inverse of KindForCode. It lets a client rebuild the
// code of a remote failure from its wire kind.
func CodeForKind(kind string) (ErrorCode, bool) {
	if kind == "" {
		return "", false
	}
	if kind == "Unknown" {
		return ErrCodeUnknown, true
	}
	for code, k := range errorKinds {
		if k == kind && code != ErrCodeInternal {
			return code, true
		}
	}
	return "", false
}
