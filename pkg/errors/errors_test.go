package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("missing"), http.StatusNotFound},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"conflict", NewConflictError("dup"), http.StatusConflict},
		{"unauthorized", NewUnauthorizedError("who"), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("no"), http.StatusForbidden},
		{"external", NewExternalError("llm down", errors.New("timeout")), http.StatusBadGateway},
		{"internal", NewInternalError("db", errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("plain"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("loading doctor: %w", NewNotFoundError("doctor not found")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "doctor not found", PublicMessage(NewNotFoundError("doctor not found")))
	assert.Equal(t, "internal server error", PublicMessage(NewInternalError("failed to query", errors.New("pq: relation missing"))))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("raw")))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewExternalError("search unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "EXTERNAL: search unavailable: connection refused", err.Error())
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", NewNotFoundError("x"))))
	assert.False(t, IsNotFound(nil))
}
