package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := ErrPersistence.WithCause(cause)

	assert.True(t, Is(err, ErrPersistence))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, PersistenceErrorCode, GetErrorCode(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsMatchesByCode(t *testing.T) {
	err := ErrTableNotFound.WithMessage("table %s does not exist", "anime_x")
	wrapped := fmt.Errorf("upsert: %w", err)

	assert.True(t, Is(wrapped, ErrConfiguration), "same code matches")
	assert.False(t, Is(wrapped, ErrPersistence))
	assert.Equal(t, "table anime_x does not exist", err.Message)
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"plain error", stderrors.New("boom"), true},
		{"fetch", ErrFetchFailed.WithCause(stderrors.New("timeout")), true},
		{"persistence wrapped", fmt.Errorf("detail: %w", ErrPersistence), true},
		{"configuration", ErrTableNotFound, false},
		{"malformed", fmt.Errorf("decode: %w", ErrMalformedMessage), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecoverable(tt.err))
		})
	}
}

func TestGetErrorCodeUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(stderrors.New("x")))
}
