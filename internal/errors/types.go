// Package errors defines the structured error type shared by the plantlog
// request handlers and CLI, and the mapping from error categories to HTTP
// status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeStore       ErrorType = "store"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeInternal    ErrorType = "internal"
)

// AppError is a structured error type with context.
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	// Fields maps a form field name to what is wrong with it.
	Fields map[string]string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	var b strings.Builder
	if e.Code != "" {
		fmt.Fprintf(&b, "[%s] ", e.Code)
	}
	b.WriteString(e.Message)
	if names := e.FieldNames(); len(names) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithField records a problem with a single form field.
func (e *AppError) WithField(name, problem string) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[name] = problem
	return e
}

// FieldNames returns the offending field names in sorted order.
func (e *AppError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Code: code, Message: message}
}

// NewStoreError wraps a document store failure.
func NewStoreError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeStore, Code: code, Message: message, Cause: cause}
}

// NewUnavailableError reports that a dependency could not be reached.
func NewUnavailableError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeUnavailable, Code: code, Message: message, Cause: cause}
}

// NewConfigError reports configuration that cannot be decoded or is invalid.
func NewConfigError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeConfig, Code: code, Message: message, Cause: cause}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// TypeOf returns the category of err, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type
	}
	return ErrorTypeInternal
}

// HTTPStatus maps an error to the status code a handler should answer with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns text that is safe to show to a visitor. Internal and
// store causes are not exposed.
func PublicMessage(err error) string {
	var ae *AppError
	if !errors.As(err, &ae) {
		return http.StatusText(http.StatusInternalServerError)
	}
	switch ae.Type {
	case ErrorTypeValidation, ErrorTypeNotFound:
		return ae.Message
	case ErrorTypeUnavailable:
		return "The plant database is unavailable. Try again shortly."
	default:
		return http.StatusText(http.StatusInternalServerError)
	}
}
