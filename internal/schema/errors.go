package schema

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes schema errors.
type ErrorCode string

const (
	// ErrCodeUnresolvedTable indicates a name matching no root or derived table.
	ErrCodeUnresolvedTable ErrorCode = "UNRESOLVED_TABLE"

	// ErrCodeInvalidSchema indicates table definitions that cannot form a schema.
	ErrCodeInvalidSchema ErrorCode = "INVALID_SCHEMA"
)

// Error is a schema lookup or construction error.
type Error struct {
	Code    ErrorCode
	Table   string
	Message string
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnresolvedTable returns true if the error is an unresolved table error.
// Uses errors.As to handle wrapped errors.
func IsUnresolvedTable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnresolvedTable
	}
	return false
}

// IsInvalidSchema returns true if the error is a schema construction error.
func IsInvalidSchema(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidSchema
	}
	return false
}

func unresolved(name string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedTable,
		Table:   name,
		Message: "no table or derived table with this name",
	}
}

func invalidSchema(table, msg string) *Error {
	return &Error{Code: ErrCodeInvalidSchema, Table: table, Message: msg}
}
