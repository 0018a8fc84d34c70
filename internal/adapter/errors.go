package adapter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/command"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/schema"
)

// Error is an adapter-level failure detected before or after the remote call.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the logical table of the failed operation.
	Table string
}

// ErrorCode categorizes adapter errors.
type ErrorCode string

const (
	// ErrCodeNoInsertableProperties indicates an insert payload with no field
	// that maps to a column. Raised before any remote call.
	ErrCodeNoInsertableProperties ErrorCode = "NO_INSERTABLE_PROPERTIES"

	// ErrCodeMultipleResults indicates a key lookup that matched more than
	// one entry.
	ErrCodeMultipleResults ErrorCode = "MULTIPLE_RESULTS"

	// ErrCodeNavigationWrite indicates a write addressed through navigation
	// links ("Customers.Orders").
	ErrCodeNavigationWrite ErrorCode = "NAVIGATION_WRITE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsNoInsertableProperties returns true for inserts with no mappable field.
// Uses errors.As to handle wrapped errors.
func IsNoInsertableProperties(err error) bool {
	return hasCode(err, ErrCodeNoInsertableProperties)
}

// IsMultipleResults returns true when a key lookup matched several entries.
func IsMultipleResults(err error) bool {
	return hasCode(err, ErrCodeMultipleResults)
}

// IsNavigationWrite returns true for writes addressed through links.
func IsNavigationWrite(err error) bool {
	return hasCode(err, ErrCodeNavigationWrite)
}

// IsNotFound returns true when the remote side reported a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, client.ErrNotFound)
}

// IsUnresolvedTable returns true when a table name matched no table.
func IsUnresolvedTable(err error) bool {
	return schema.IsUnresolvedTable(err)
}

// IsKeyMismatch returns true when key values do not fit the table key.
func IsKeyMismatch(err error) bool {
	return command.IsKeyMismatch(err)
}

// CodeOf classifies an error for reports and exit messages. Remote failures
// are classified by status.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return string(ae.Code)
	}
	var se *schema.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	if command.IsKeyMismatch(err) {
		return command.ErrCodeKeyMismatch
	}
	var ue *filter.UnsupportedError
	if errors.As(err, &ue) {
		return "UNSUPPORTED_EXPRESSION"
	}
	var syn *filter.SyntaxError
	if errors.As(err, &syn) {
		return "SYNTAX_ERROR"
	}
	var re *client.RequestError
	if errors.As(err, &re) {
		switch re.Status {
		case http.StatusNotFound:
			return "NOT_FOUND"
		case http.StatusBadRequest:
			return "BAD_REQUEST"
		case http.StatusConflict:
			return "CONFLICT"
		}
		return "REMOTE_ERROR"
	}
	return "ERROR"
}
