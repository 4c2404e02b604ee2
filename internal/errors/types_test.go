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
		{"nil", nil, http.StatusOK},
		{"validation", NewValidationError("missing_field", "missing"), http.StatusBadRequest},
		{"not found", NewNotFoundError("plant_not_found", "no plant"), http.StatusNotFound},
		{"unavailable", NewUnavailableError("store_down", "down", errors.New("dial")), http.StatusServiceUnavailable},
		{"store", NewStoreError("insert", "insert failed", errors.New("dup")), http.StatusInternalServerError},
		{"config", NewConfigError("config_invalid", "invalid configuration", errors.New("port")), http.StatusInternalServerError},
		{"internal", NewInternalError("handler_panic", "handler panicked", errors.New("boom")), http.StatusInternalServerError},
		{"foreign", errors.New("plain"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("handler: %w", NewNotFoundError("x", "y")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	err := NewValidationError("missing_field", "required form fields are missing").
		WithField("variety", "required").
		WithField("name", "required")

	assert.Equal(t, "[missing_field] required form fields are missing (name, variety)", err.Error())
	assert.Equal(t, []string{"name", "variety"}, err.FieldNames())
}

func TestAppError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnavailableError("store_down", "store unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", err), NewUnavailableError("store_down", "", nil)))
	assert.False(t, errors.Is(err, NewStoreError("store_down", "", nil)))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "no plant", PublicMessage(NewNotFoundError("x", "no plant")))
	assert.Equal(t, "Internal Server Error", PublicMessage(NewStoreError("x", "secret detail", nil)))
	assert.Equal(t, "Internal Server Error", PublicMessage(errors.New("raw")))
	assert.Contains(t, PublicMessage(NewUnavailableError("x", "y", nil)), "unavailable")
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeConfig, TypeOf(fmt.Errorf("load: %w", NewConfigError("config_decode", "decoding configuration", nil))))
	assert.Equal(t, ErrorTypeInternal, TypeOf(NewInternalError("handler_panic", "handler panicked", nil)))
	assert.Equal(t, ErrorTypeInternal, TypeOf(errors.New("foreign")))
	assert.Equal(t, "Internal Server Error", PublicMessage(NewInternalError("handler_panic", "secret", nil)))
}
