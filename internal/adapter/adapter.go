// Package adapter is the public operation surface of the table adapter.
//
// A TableAdapter resolves logical table names, builds protocol commands from
// criteria, keys and generic queries, dispatches them through a
// client.Provider and shapes the results into ir.Records.
//
// Thread-safety model:
//   - The schema is fetched once by Open and never mutated afterwards.
//   - Every non-transactional operation opens its own client, so a
//     TableAdapter is safe for concurrent use.
//   - A Transaction shares one batch client and must be used from a single
//     goroutine.
//
// Failures are returned, never logged and swallowed. The one exception is
// the IgnoreResourceNotFound policy, which turns remote not-found failures
// of reads into empty results.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/command"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// Options are read once by Open.
type Options struct {
	Settings client.Settings

	// IgnoreResourceNotFound turns remote not-found failures of reads into
	// "no result".
	IgnoreResourceNotFound bool

	// IncludeResourceTypeInEntryProperties enables the "__resourcetype"
	// discriminator in data, criteria and returned entries.
	IncludeResourceTypeInEntryProperties bool
}

// TableAdapter dispatches table operations to a remote service.
type TableAdapter struct {
	provider client.Provider
	settings client.Settings
	opts     Options
	schema   *schema.Schema
	builder  *command.Builder
	logger   *slog.Logger
	ids      IDGenerator
}

// Option configures a TableAdapter.
type Option func(*TableAdapter)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(a *TableAdapter) {
		a.logger = l
	}
}

// WithIDGenerator sets the transaction id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(a *TableAdapter) {
		a.ids = g
	}
}

// Open fetches the schema and returns a ready adapter.
func Open(ctx context.Context, opts Options, provider client.Provider, options ...Option) (*TableAdapter, error) {
	settings := opts.Settings
	settings.IncludeResourceType = opts.IncludeResourceTypeInEntryProperties

	sch, err := provider.Schema(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("fetch schema: %w", err)
	}

	a := &TableAdapter{
		provider: provider,
		settings: settings,
		opts:     opts,
		schema:   sch,
		builder:  command.NewBuilder(sch, filter.Converter{IncludeResourceType: opts.IncludeResourceTypeInEntryProperties}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Schema returns the schema fetched by Open.
func (a *TableAdapter) Schema() *schema.Schema {
	return a.schema
}

// Builder returns the command builder.
func (a *TableAdapter) Builder() *command.Builder {
	return a.builder
}

// newClient opens an independent client.
func (a *TableAdapter) newClient() (client.Client, error) {
	c, err := a.provider.NewClient(a.settings)
	if err != nil {
		return nil, fmt.Errorf("open client: %w", err)
	}
	return c, nil
}

func (a *TableAdapter) remoteCommand(cmd *command.QueryCommand) (client.Command, error) {
	c, err := a.newClient()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("dispatch", "table", cmd.Table.Name, "command", cmd.String())
	return cmd.Apply(c.For(cmd.EntitySet())), nil
}

// ignorable reports whether a read failure falls under the not-found policy.
func (a *TableAdapter) ignorable(err error) bool {
	return a.opts.IgnoreResourceNotFound && errors.Is(err, client.ErrNotFound)
}

// Find returns the entries of a table matching criteria. A nil criteria
// returns every entry. Zero entries is a valid result.
func (a *TableAdapter) Find(ctx context.Context, table string, criteria expr.Expression) ([]*ir.Record, error) {
	cmd, err := a.builder.FromCriteria(table, criteria)
	if err != nil {
		return nil, err
	}
	rc, err := a.remoteCommand(cmd)
	if err != nil {
		return nil, err
	}
	entries, err := rc.FindEntries(ctx)
	if err != nil {
		if a.ignorable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	return entries, nil
}

// Get returns the entry with the given key. Key values are positional in key
// column order, or a single *ir.Record naming each key column.
//
// A missing entry fails with an error matching client.ErrNotFound, or
// returns nil, nil under IgnoreResourceNotFound.
func (a *TableAdapter) Get(ctx context.Context, table string, keyValues ...ir.Value) (*ir.Record, error) {
	cmd, err := a.builder.FromKey(table, keyValues...)
	if err != nil {
		return nil, err
	}
	rc, err := a.remoteCommand(cmd)
	if err != nil {
		return nil, err
	}
	entries, err := rc.FindEntries(ctx)
	if err != nil {
		if a.ignorable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		return entries[0], nil
	default:
		return nil, &Error{
			Code:    ErrCodeMultipleResults,
			Message: fmt.Sprintf("key lookup matched %d entries", len(entries)),
			Table:   table,
		}
	}
}

// RunQuery executes a generic query. It returns the entries and the clauses
// the command could not carry; the caller applies those itself.
//
// A requested total count is delivered exactly once, before RunQuery
// returns. A count-only query returns one record holding the count under the
// count reference's alias.
func (a *TableAdapter) RunQuery(ctx context.Context, q *expr.Query) ([]*ir.Record, []expr.Clause, error) {
	cmd, err := a.builder.FromQuery(q)
	if err != nil {
		return nil, nil, err
	}
	rc, err := a.remoteCommand(cmd)
	if err != nil {
		return nil, nil, err
	}

	var entries []*ir.Record
	var total int64
	switch {
	case cmd.IsScalarResult:
		var v ir.Value
		v, err = rc.FindScalar(ctx)
		if err == nil {
			entries = []*ir.Record{ir.RecordOf(ir.P(cmd.CountAlias, v))}
			if n, ok := v.(ir.Int); ok {
				total = int64(n)
			}
		}
	case cmd.SetTotalCount != nil:
		entries, total, err = rc.FindEntriesWithCount(ctx)
	default:
		entries, err = rc.FindEntries(ctx)
	}
	if err != nil {
		if !a.ignorable(err) {
			return nil, nil, fmt.Errorf("query %s: %w", q.Table, err)
		}
		entries, total = nil, 0
	}

	if cmd.SetTotalCount != nil {
		cmd.SetTotalCount(total)
	}
	return entries, cmd.UnprocessedClauses, nil
}

// Insert adds an entry. With resultRequired the stored entry is returned.
//
// Under IncludeResourceTypeInEntryProperties a "__resourcetype" field in
// data selects the concrete table and is not sent. data is never modified.
func (a *TableAdapter) Insert(ctx context.Context, table string, data *ir.Record, resultRequired bool) (*ir.Record, error) {
	c, err := a.newClient()
	if err != nil {
		return nil, err
	}
	return a.insert(ctx, c, "", table, data, resultRequired)
}

// Update changes entries matching criteria and returns the affected count.
// Criteria that reduce to a full key update by key; any other criteria
// update by filter. Nil criteria update every entry.
func (a *TableAdapter) Update(ctx context.Context, table string, data *ir.Record, criteria expr.Expression) (int, error) {
	c, err := a.newClient()
	if err != nil {
		return 0, err
	}
	return a.update(ctx, c, "", table, data, criteria)
}

// Delete removes entries matching criteria and returns the affected count.
// Key and filter selection work as for Update.
func (a *TableAdapter) Delete(ctx context.Context, table string, criteria expr.Expression) (int, error) {
	c, err := a.newClient()
	if err != nil {
		return 0, err
	}
	return a.delete(ctx, c, "", table, criteria)
}

// concreteTable applies a resource type override from data, then from
// criteria. The returned data is a copy without the discriminator.
func (a *TableAdapter) concreteTable(table string, data *ir.Record, criteria expr.Expression) (string, *ir.Record) {
	if data != nil {
		data = data.Clone()
	}
	if !a.opts.IncludeResourceTypeInEntryProperties {
		return table, data
	}
	if data != nil {
		if v, ok := data.Get(filter.ResourceTypeField); ok {
			data.Delete(filter.ResourceTypeField)
			if s, ok := v.(ir.String); ok && s != "" {
				return string(s), data
			}
			return table, data
		}
	}
	if criteria != nil {
		if rt := a.builder.Converter().ExtractResourceType(criteria); rt != "" {
			return rt, data
		}
	}
	return table, data
}

func (a *TableAdapter) insert(ctx context.Context, c client.Client, txID, table string, data *ir.Record, resultRequired bool) (*ir.Record, error) {
	concrete, data := a.concreteTable(table, data, nil)
	t, err := a.schema.FindTable(concrete)
	if err != nil {
		return nil, err
	}

	insertable := false
	if data != nil {
		for _, k := range data.Keys() {
			if t.HasColumn(k) {
				insertable = true
				break
			}
		}
	}
	if !insertable {
		return nil, &Error{
			Code:    ErrCodeNoInsertableProperties,
			Message: "no properties were found which could be mapped to the table",
			Table:   t.Name,
		}
	}

	path := schema.PathOf(t)
	a.logger.Debug("insert", "table", t.Name, "command", path, "batch_id", txID)
	entry, err := c.InsertEntry(ctx, path, data, resultRequired)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", t.Name, err)
	}
	return entry, nil
}

// writeCommand builds the command selecting the rows of a write.
func (a *TableAdapter) writeCommand(table string, criteria expr.Expression) (*command.QueryCommand, error) {
	cmd, err := a.builder.FromCriteria(table, criteria)
	if err != nil {
		return nil, err
	}
	if len(cmd.Navigation) > 0 {
		return nil, &Error{
			Code:    ErrCodeNavigationWrite,
			Message: "writes cannot address entries through navigation links",
			Table:   table,
		}
	}
	return cmd, nil
}

func (a *TableAdapter) update(ctx context.Context, c client.Client, txID, table string, data *ir.Record, criteria expr.Expression) (int, error) {
	concrete, data := a.concreteTable(table, data, criteria)
	if data == nil {
		data = ir.NewRecord()
	}
	cmd, err := a.writeCommand(concrete, criteria)
	if err != nil {
		return 0, err
	}
	path := cmd.TablePath
	a.logger.Debug("update", "table", cmd.Table.Name, "command", cmd.String(), "batch_id", txID)

	var n int
	if cmd.HasKey() {
		n, err = c.UpdateEntry(ctx, path, cmd.Key, data)
	} else {
		n, err = c.UpdateEntries(ctx, path, cmd.FilterText, data)
	}
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", cmd.Table.Name, err)
	}
	return n, nil
}

func (a *TableAdapter) delete(ctx context.Context, c client.Client, txID, table string, criteria expr.Expression) (int, error) {
	concrete, _ := a.concreteTable(table, nil, criteria)
	cmd, err := a.writeCommand(concrete, criteria)
	if err != nil {
		return 0, err
	}
	path := cmd.TablePath
	a.logger.Debug("delete", "table", cmd.Table.Name, "command", cmd.String(), "batch_id", txID)

	var n int
	if cmd.HasKey() {
		n, err = c.DeleteEntry(ctx, path, cmd.Key)
	} else {
		n, err = c.DeleteEntries(ctx, path, cmd.FilterText)
	}
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", cmd.Table.Name, err)
	}
	return n, nil
}

// GetKey extracts the key of a record for a table, in key column order.
func (a *TableAdapter) GetKey(table string, record *ir.Record) (*ir.Record, error) {
	t, err := a.schema.FindTable(table)
	if err != nil {
		return nil, err
	}
	key, ok := t.KeyOf(record)
	if !ok {
		return nil, &command.KeyError{
			Table:    t.Name,
			Expected: t.KeyNames(),
			Got:      record.Len(),
			Message:  "record lacks a key column",
		}
	}
	return key, nil
}

// GetKeyNames returns the key column names of a table.
func (a *TableAdapter) GetKeyNames(table string) ([]string, error) {
	t, err := a.schema.FindTable(table)
	if err != nil {
		return nil, err
	}
	return t.KeyNames(), nil
}

// IsExpressionFunction reports whether a function can be sent to the remote
// side inside criteria.
func (a *TableAdapter) IsExpressionFunction(name string) bool {
	return filter.IsSupportedFunction(name)
}
