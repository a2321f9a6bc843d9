package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeNotAllowed, "write statements are rejected")
	assert.Equal(t, "[SQL_001] write statements are rejected", err.Error())

	withDetail := err.WithDetail("DELETE")
	assert.Equal(t, "[SQL_001] write statements are rejected: DELETE", withDetail.Error())
	assert.Empty(t, err.Detail, "WithDetail must not mutate the receiver")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeBadQuery, "x"))

	cause := stderrors.New("near \"SELEC\": syntax error")
	err := Wrap(cause, ErrCodeBadQuery, "query failed")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ErrCodeBadQuery, err.Code)
}

func TestWrap_PreservesCodeWhenUnknown(t *testing.T) {
	inner := New(ErrCodeTimeout, "gateway deadline")
	outer := Wrap(inner, CodeUnknown, "trend query")
	assert.Equal(t, ErrCodeTimeout, outer.Code)
}

func TestIsCode_ThroughFmtWrap(t *testing.T) {
	inner := NotAllowed("no writes")
	wrapped := fmt.Errorf("dispatch: %w", inner)
	assert.True(t, IsCode(wrapped, ErrCodeNotAllowed))
	assert.False(t, IsCode(wrapped, ErrCodeBadQuery))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeCancelled, GetCode(context.Canceled))
	assert.Equal(t, ErrCodeTimeout, GetCode(fmt.Errorf("x: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrCodeUnavailable, GetCode(Unavailable("down")))
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(nil))
	assert.Nil(t, FromContext(stderrors.New("other")))
	assert.Equal(t, ErrCodeCancelled, FromContext(context.Canceled).Code)
	assert.Equal(t, ErrCodeTimeout, FromContext(context.DeadlineExceeded).Code)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NotAllowed("x"), "NotAllowed"},
		{BadQuery("x"), "BadQuery"},
		{InvalidArguments("x"), "InvalidArguments"},
		{New(ErrCodeUnknownTool, "x"), "UnknownTool"},
		{context.Canceled, "Cancelled"},
		{stderrors.New("boom"), "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}

func TestHTTPStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, HTTPStatusForCode(ErrCodeNotAllowed))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusForCode(ErrCodeInvalidArguments))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatusForCode(ErrCodeTimeout))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusForCode(ErrorCode("SQL_777")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusForCode(ErrorCode("NOPE")))
}

func TestCodeForKind(t *testing.T) {
	code, ok := CodeForKind("NotAllowed")
	assert.True(t, ok)
	assert.Equal(t, ErrCodeNotAllowed, code)

	code, ok = CodeForKind("Unknown")
	assert.True(t, ok)
	assert.Equal(t, ErrCodeUnknown, code)

	_, ok = CodeForKind("")
	assert.False(t, ok)
	_, ok = CodeForKind("Whatever")
	assert.False(t, ok)
}
