package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// ErrCodeKeyMismatch identifies key values that do not fit the table key.
const ErrCodeKeyMismatch = "KEY_MISMATCH"

// KeyError reports key values that do not match the table key.
type KeyError struct {
	Table    string
	Expected []string
	Got      int
	Message  string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: %s (table=%s, key=%s, got %d values)",
		ErrCodeKeyMismatch, e.Message, e.Table, strings.Join(e.Expected, ","), e.Got)
}

// IsKeyMismatch returns true if the error is a key mismatch error.
// Uses errors.As to handle wrapped errors.
func IsKeyMismatch(err error) bool {
	var ke *KeyError
	return errors.As(err, &ke)
}

// Builder builds commands against a schema. It holds no mutable state.
type Builder struct {
	schema    *schema.Schema
	converter filter.Converter
}

// NewBuilder creates a builder.
func NewBuilder(s *schema.Schema, conv filter.Converter) *Builder {
	return &Builder{schema: s, converter: conv}
}

// Converter returns the filter converter in use.
func (b *Builder) Converter() filter.Converter {
	return b.converter
}

// FromCriteria builds a command selecting rows matching criteria. Criteria
// that reduce to a full key become a structured key; anything else becomes
// filter text. A nil criteria selects every row.
func (b *Builder) FromCriteria(table string, criteria expr.Expression) (*QueryCommand, error) {
	cmd, err := b.resolve(table)
	if err != nil {
		return nil, err
	}
	if err := b.applyCriteria(cmd, criteria); err != nil {
		return nil, err
	}
	return cmd, nil
}

// FromKey builds a command selecting one row by key. Values are positional,
// in key column order, unless a single *ir.Record is given: then it is a
// named key. The number of values must equal the number of key columns.
func (b *Builder) FromKey(table string, keyValues ...ir.Value) (*QueryCommand, error) {
	cmd, err := b.resolve(table)
	if err != nil {
		return nil, err
	}
	key, err := makeKey(cmd.Table, keyValues)
	if err != nil {
		return nil, err
	}
	cmd.Key = key
	return cmd, nil
}

func makeKey(t *schema.Table, values []ir.Value) (client.Key, error) {
	if len(values) == 1 {
		if named, ok := values[0].(*ir.Record); ok {
			return namedKey(t, named)
		}
	}
	if len(values) != len(t.Key) {
		return client.Key{}, &KeyError{
			Table:    t.Name,
			Expected: t.KeyNames(),
			Got:      len(values),
			Message:  "key value count does not match key column count",
		}
	}
	named := ir.NewRecord()
	for i, name := range t.Key {
		v := values[i]
		if ir.IsNull(v) {
			return client.Key{}, &KeyError{Table: t.Name, Expected: t.KeyNames(), Got: len(values), Message: fmt.Sprintf("key column %s is null", name)}
		}
		named.Set(name, v)
	}
	return client.Key{Named: named}, nil
}

func namedKey(t *schema.Table, rec *ir.Record) (client.Key, error) {
	if rec.Len() != len(t.Key) {
		return client.Key{}, &KeyError{
			Table:    t.Name,
			Expected: t.KeyNames(),
			Got:      rec.Len(),
			Message:  "named key does not cover the key columns",
		}
	}
	named := ir.NewRecord()
	for _, name := range t.Key {
		v, ok := rec.Get(name)
		if !ok {
			return client.Key{}, &KeyError{Table: t.Name, Expected: t.KeyNames(), Got: rec.Len(), Message: fmt.Sprintf("named key lacks %s", name)}
		}
		if ir.IsNull(v) {
			return client.Key{}, &KeyError{Table: t.Name, Expected: t.KeyNames(), Got: rec.Len(), Message: fmt.Sprintf("key column %s is null", name)}
		}
		named.Set(name, v)
	}
	return client.Key{Named: named}, nil
}

// FromQuery builds a command from a generic query. Clauses the command
// cannot carry are returned in UnprocessedClauses, never as errors.
func (b *Builder) FromQuery(q *expr.Query) (*QueryCommand, error) {
	cmd, err := b.resolve(q.Table)
	if err != nil {
		return nil, err
	}

	var criteria []expr.Expression
	for _, clause := range q.Clauses {
		switch c := clause.(type) {
		case expr.Where:
			if c.Criteria == nil {
				continue
			}
			stripped := b.converter.StripResourceType(c.Criteria)
			if _, err := b.converter.ToFilterText(stripped); err != nil {
				cmd.UnprocessedClauses = append(cmd.UnprocessedClauses, c)
				continue
			}
			criteria = append(criteria, c.Criteria)

		case expr.Select:
			if !b.applySelect(cmd, c) {
				cmd.UnprocessedClauses = append(cmd.UnprocessedClauses, c)
			}

		case expr.OrderBy:
			cmd.Order = append(cmd.Order, client.OrderColumn{
				Name:       c.Column.AliasOrName(),
				Descending: c.Direction == expr.Descending,
			})

		case expr.Skip:
			n := c.Count
			cmd.Skip = &n

		case expr.Take:
			n := c.Count
			cmd.Take = &n

		case expr.WithTotalCount:
			cmd.SetTotalCount = c.Set

		case expr.Expand:
			link, ok := cmd.Target.Link(c.Link)
			if !ok {
				cmd.UnprocessedClauses = append(cmd.UnprocessedClauses, c)
				continue
			}
			cmd.Expand = append(cmd.Expand, link.Name)

		default:
			cmd.UnprocessedClauses = append(cmd.UnprocessedClauses, clause)
		}
	}

	if err := b.applyCriteria(cmd, expr.And(criteria...)); err != nil {
		return nil, err
	}
	return cmd, nil
}

// applySelect attaches a projection. A count reference is only accepted
// alone.
func (b *Builder) applySelect(cmd *QueryCommand, s expr.Select) bool {
	if len(s.Columns) == 1 {
		if ref, ok := s.Columns[0].(expr.CountRef); ok {
			if len(cmd.Columns) > 0 {
				return false
			}
			cmd.IsScalarResult = true
			cmd.CountAlias = ref.AliasOrName()
			return true
		}
	}
	if cmd.IsScalarResult {
		return false
	}
	names := make([]string, 0, len(s.Columns))
	for _, ref := range s.Columns {
		if _, ok := ref.(expr.CountRef); ok {
			return false
		}
		names = append(names, ref.AliasOrName())
	}
	cmd.Columns = append(cmd.Columns, names...)
	return true
}

// resolve handles the table path and navigation hops.
func (b *Builder) resolve(name string) (*QueryCommand, error) {
	segments := strings.Split(name, ".")
	table, err := b.schema.FindTable(segments[0])
	if err != nil {
		return nil, err
	}

	cmd := &QueryCommand{
		Table:     table,
		Target:    table,
		TablePath: schema.PathOf(table),
	}
	for _, seg := range segments[1:] {
		link, ok := cmd.Target.Link(seg)
		if !ok {
			return nil, &schema.Error{
				Code:    schema.ErrCodeUnresolvedTable,
				Table:   name,
				Message: fmt.Sprintf("%s has no link %q", cmd.Target.Name, seg),
			}
		}
		target, err := b.schema.FindTable(link.Target)
		if err != nil {
			return nil, err
		}
		cmd.Navigation = append(cmd.Navigation, link.Name)
		cmd.Target = target
	}
	return cmd, nil
}

// applyCriteria resolves a resource type override, then chooses between a
// structured key and filter text. With navigation, the override and a
// filter apply to the last segment and a key to the first.
func (b *Builder) applyCriteria(cmd *QueryCommand, criteria expr.Expression) error {
	if criteria == nil {
		return nil
	}

	if rt := b.converter.ExtractResourceType(criteria); rt != "" {
		criteria = b.converter.StripResourceType(criteria)
		override := b.overrideType
		if len(cmd.Navigation) > 0 {
			override = b.overrideTarget
		}
		if err := override(cmd, rt); err != nil {
			return err
		}
		if criteria == nil {
			return nil
		}
	}

	if key, ok := b.converter.AsKey(criteria, cmd.Table); ok {
		cmd.Key = key
		return nil
	}

	text, err := b.converter.ToFilterText(criteria)
	if err != nil {
		return err
	}
	cmd.Filter = criteria
	cmd.FilterText = text
	return nil
}

// overrideType narrows the command to a derived table of the same root.
func (b *Builder) overrideType(cmd *QueryCommand, resourceType string) error {
	t, err := b.schema.FindTable(resourceType)
	if err != nil {
		return err
	}
	if t.Root() != cmd.Table.Root() {
		return &schema.Error{
			Code:    schema.ErrCodeUnresolvedTable,
			Table:   resourceType,
			Message: fmt.Sprintf("resource type is not derived from %s", cmd.Table.Root().Name),
		}
	}
	cmd.Table = t
	cmd.Target = t
	cmd.TablePath = schema.PathOf(t)
	return nil
}

// overrideTarget narrows the navigation target to a derived table. The
// target must be the base of the derived table or the table itself.
func (b *Builder) overrideTarget(cmd *QueryCommand, resourceType string) error {
	t, err := b.schema.FindTable(resourceType)
	if err != nil {
		return err
	}
	if t == cmd.Target {
		return nil
	}
	if t.Base != cmd.Target {
		return &schema.Error{
			Code:    schema.ErrCodeUnresolvedTable,
			Table:   resourceType,
			Message: fmt.Sprintf("resource type is not derived from navigation target %s", cmd.Target.Name),
		}
	}
	cmd.Target = t
	cmd.TargetType = t.ActualName
	return nil
}
