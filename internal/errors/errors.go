// Package errors provides the typed error taxonomy shared by the library core
// and its presentation layers.
//
// Usage:
//
//	if book.AvailableCopies == 0 {
//	    return errors.OutOfStockf("book %s has no available copies", book.ID)
//	}
//
//	if errors.Is(err, errors.ErrOutOfStock) {
//	    // tell the user to come back later
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

const (
	CodeValidation  Code = "VALIDATION"
	CodeNotFound    Code = "NOT_FOUND"
	CodeOutOfStock  Code = "OUT_OF_STOCK"
	CodePersistence Code = "PERSISTENCE"
)

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeOutOfStock:
		return http.StatusConflict
	case CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrOutOfStock  = &Error{Code: CodeOutOfStock, Message: "out of stock"}
	ErrPersistence = &Error{Code: CodePersistence, Message: "persistence failure"}
)

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error carrying per-field messages.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// OutOfStockf creates an out of stock error with formatted message.
func OutOfStockf(format string, args ...any) *Error {
	return &Error{Code: CodeOutOfStock, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage failure.
func Persistence(msg string, err error) *Error {
	return &Error{Code: CodePersistence, Message: msg, cause: err}
}

// CodeOf extracts the Code from err, or "" if err is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
