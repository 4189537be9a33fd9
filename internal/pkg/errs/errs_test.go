package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError_StatusFollowsKind(t *testing.T) {
	req := require.New(t)

	cases := map[int]int{
		ErrInvalidParams:     http.StatusBadRequest,
		ErrChatNotFound:      http.StatusNotFound,
		ErrNotGroupAdmin:     http.StatusForbidden,
		ErrUnauthorized:      http.StatusUnauthorized,
		ErrAlreadyMember:     http.StatusConflict,
		ErrChatCorrupted:     http.StatusInternalServerError,
		ErrRateLimitExceeded: http.StatusTooManyRequests,
	}

	for code, status := range cases {
		err := NewError(code)
		req.Equal(code, err.Code)
		req.Equal(status, err.Status, "code %d", code)
	}
}

func TestNewError_UnknownCodeFallsBack(t *testing.T) {
	req := require.New(t)

	err := NewError(424242)

	req.Equal(ErrUnknown, err.Code)
	req.Equal(KindInternal, err.Kind)
	req.Equal(http.StatusInternalServerError, err.Status)
}

func TestNewError_FormatsTemplate(t *testing.T) {
	req := require.New(t)

	err := NewError(ErrMalformedEvent, "join chat")

	req.Equal("Malformed join chat event.", err.Message)
}

func TestNewError_ReturnsCopy(t *testing.T) {
	req := require.New(t)

	first := NewError(ErrMalformedEvent, "typing")
	second := NewError(ErrMalformedEvent)

	req.NotEqual(first.Message, second.Message)
}

func TestCustomError_IsMatchesByCode(t *testing.T) {
	req := require.New(t)

	wrapped := fmt.Errorf("guard: %w", NewError(ErrNotGroupAdmin))

	req.True(errors.Is(wrapped, NewError(ErrNotGroupAdmin)))
	req.False(errors.Is(wrapped, NewError(ErrAlreadyMember)))
	req.Equal(KindForbidden, KindOf(wrapped))
	req.Equal(KindInternal, KindOf(errors.New("plain")))
}
