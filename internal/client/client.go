// Package client defines the boundary to the remote execution client.
//
// The adapter never talks to the network itself. A Provider opens sessions
// against a base address, reports schema metadata, and hands out Clients
// whose fluent Commands select, filter, page and project entity sets. The
// sandbox in internal/store implements this boundary over SQLite.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// Pluralizer converts between singular and plural entity set names.
type Pluralizer interface {
	Pluralize(word string) string
	Singularize(word string) string
}

// Settings address a remote service.
type Settings struct {
	BaseURL  string
	Username string
	Password string

	// IncludeResourceType asks the remote side to report the concrete
	// resource type of each entry under the "__resourcetype" field.
	IncludeResourceType bool

	// Pluralizer resolves entity set names that are not found verbatim.
	// Nil disables the fallback.
	Pluralizer Pluralizer
}

// Provider is the entry point of a remote service.
type Provider interface {
	// Schema fetches schema metadata.
	Schema(ctx context.Context, settings Settings) (*schema.Schema, error)

	// NewClient opens an independent client.
	NewClient(settings Settings) (Client, error)

	// BeginBatch opens a batch. Writes through its client are applied on Commit.
	BeginBatch(ctx context.Context, settings Settings) (Batch, error)
}

// Client issues commands and writes against entity sets.
type Client interface {
	// For starts a command on an entity set.
	For(entitySet string) Command

	InsertEntry(ctx context.Context, entitySet string, data *ir.Record, resultRequired bool) (*ir.Record, error)
	UpdateEntry(ctx context.Context, entitySet string, key Key, data *ir.Record) (int, error)
	UpdateEntries(ctx context.Context, entitySet, filter string, data *ir.Record) (int, error)
	DeleteEntry(ctx context.Context, entitySet string, key Key) (int, error)
	DeleteEntries(ctx context.Context, entitySet, filter string) (int, error)
}

// Command is a fluent read command. Each method returns the command so calls
// can be chained; implementations may mutate and return the receiver.
type Command interface {
	// As narrows the entity set to a derived type. After NavigateTo it
	// narrows the navigation target instead.
	As(derived string) Command
	Key(key Key) Command
	Filter(text string) Command
	Expand(links ...string) Command
	Skip(n int) Command
	Top(n int) Command
	OrderBy(columns ...OrderColumn) Command
	Select(columns ...string) Command
	Count() Command
	// NavigateTo follows a link from the current entity set.
	NavigateTo(link string) Command

	FindEntries(ctx context.Context) ([]*ir.Record, error)
	FindEntriesWithCount(ctx context.Context) ([]*ir.Record, int64, error)
	FindScalar(ctx context.Context) (ir.Value, error)
}

// Batch groups writes into one atomic submission.
type Batch interface {
	ID() string
	Client() Client
	Commit(ctx context.Context) error
	Rollback() error
}

// Key selects one entry, by position or by name.
type Key struct {
	Positional []ir.Value
	Named      *ir.Record
}

// Len returns the number of key values.
func (k Key) Len() int {
	if k.Named != nil {
		return k.Named.Len()
	}
	return len(k.Positional)
}

// IsZero reports whether the key is empty.
func (k Key) IsZero() bool {
	return k.Len() == 0
}

// Values returns the key values in order.
func (k Key) Values() []ir.Value {
	if k.Named == nil {
		return k.Positional
	}
	out := make([]ir.Value, 0, k.Named.Len())
	k.Named.Range(func(_ string, v ir.Value) bool {
		out = append(out, v)
		return true
	})
	return out
}

// OrderColumn is one ordering term.
type OrderColumn struct {
	Name       string
	Descending bool
}

// ErrNotFound matches remote not-found failures.
var ErrNotFound = errors.New("resource not found")

// RequestError is a failed remote request.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("remote request failed (%d %s): %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Is matches ErrNotFound for 404 responses.
func (e *RequestError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// NotFound creates a 404 request error.
func NotFound(format string, args ...any) *RequestError {
	return &RequestError{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// BadRequest creates a 400 request error.
func BadRequest(format string, args ...any) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}
