// Package errors provides standardized error types for query building and
// schema operations. QueryError carries the failing operation and field,
// FetchError carries the shape returned to callers when an outbound
// metadata request fails.
package errors

import (
	"encoding/json"
	"fmt"
)

// QueryError represents standardized errors across query operations
type QueryError struct {
	Op      string // Operation name (e.g., "validate", "resolveSchema")
	Field   string // Column or table name if applicable
	Message string // Human-readable error description
	Hint    string // Optional suggestion shown after the message
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *QueryError) Error() string {
	var msg string
	if e.Field != "" {
		msg = fmt.Sprintf("%s failed on '%s': %s", e.Op, e.Field, e.Message)
	} else {
		msg = fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
	if e.Hint != "" {
		msg += " (hint: " + e.Hint + ")"
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping support
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is()
func (e *QueryError) Is(target error) bool {
	if qe, ok := target.(*QueryError); ok {
		return e.Op == qe.Op && e.Field == qe.Field && e.Message == qe.Message
	}
	return false
}

// WithHint returns a copy of the error carrying a hint.
func (e *QueryError) WithHint(hint string) *QueryError {
	cp := *e
	cp.Hint = hint
	return &cp
}

// NewUnknownTableError creates an error for references to tables missing from the schema
func NewUnknownTableError(op, table string) *QueryError {
	return &QueryError{
		Op:      op,
		Field:   table,
		Message: "table does not exist",
	}
}

// NewUnknownColumnError creates an error for references to columns missing from the schema
func NewUnknownColumnError(op, column string) *QueryError {
	return &QueryError{
		Op:      op,
		Field:   column,
		Message: "column does not exist",
	}
}

// NewInvalidExpressionError creates an error for incomplete or malformed expressions
func NewInvalidExpressionError(op, field, message string) *QueryError {
	return &QueryError{
		Op:      op,
		Field:   field,
		Message: message,
	}
}

// NewSchemaUnavailableError creates an error for lookups made without a resolved schema
func NewSchemaUnavailableError(op string, cause error) *QueryError {
	return &QueryError{
		Op:      op,
		Message: "no schema available",
		Cause:   cause,
	}
}

// ErrNoTable indicates an expression without a source table
var ErrNoTable = &QueryError{
	Op:      "validate",
	Message: "expression has no source table",
}

// FetchError is returned when an outbound metadata request fails after its
// retry. It marshals to {"message": ..., "data": {"Message": ...}}.
type FetchError struct {
	Status  int    // HTTP-like status, 0 when unknown
	Message string // message surfaced to the user
	Cause   error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("could not load schema (status %d): %s", e.Status, e.Message)
	}
	return "could not load schema: " + e.Message
}

// Unwrap returns the underlying cause
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// MarshalJSON renders the error in the shape expected by UI callers.
func (e *FetchError) MarshalJSON() ([]byte, error) {
	type data struct {
		Message string `json:"Message"`
	}
	return json.Marshal(struct {
		Status  int    `json:"status,omitempty"`
		Message string `json:"message"`
		Data    data   `json:"data"`
	}{
		Status:  e.Status,
		Message: e.Error(),
		Data:    data{Message: e.Message},
	})
}

// NewFetchError wraps cause as a FetchError.
func NewFetchError(status int, cause error) *FetchError {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &FetchError{Status: status, Message: msg, Cause: cause}
}
