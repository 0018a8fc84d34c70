package filter

import (
	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// ResourceTypeField is the pseudo-column naming the concrete resource type
// of an entry.
const ResourceTypeField = "__resourcetype"

// AsKey reduces an expression to a structured key.
//
// It succeeds only when the expression is a conjunction of "column eq
// literal" terms naming every key column of the table exactly once and
// nothing else. Extra predicates, or, not and null literals all defeat the
// reduction. The key is named, in key column order.
func (c Converter) AsKey(e expr.Expression, table *schema.Table) (client.Key, bool) {
	terms := expr.Conjuncts(e)
	if len(terms) == 0 || len(terms) != len(table.Key) {
		return client.Key{}, false
	}

	values := make(map[string]ir.Value, len(terms))
	for _, term := range terms {
		col, lit, ok := equality(term)
		if !ok {
			return client.Key{}, false
		}
		name, ok := keyColumn(table, col.Name)
		if !ok {
			return client.Key{}, false
		}
		if _, dup := values[name]; dup {
			return client.Key{}, false
		}
		switch lit.Value.(type) {
		case ir.String, ir.Int, ir.Float, ir.Bool:
		default:
			return client.Key{}, false
		}
		values[name] = lit.Value
	}

	key := ir.NewRecord()
	for _, name := range table.Key {
		key.Set(name, values[name])
	}
	return client.Key{Named: key}, true
}

// equality matches "column eq literal" in either operand order.
func equality(e expr.Expression) (expr.Column, expr.Literal, bool) {
	b, ok := e.(expr.Binary)
	if !ok || b.Op != expr.OpEq {
		return expr.Column{}, expr.Literal{}, false
	}
	if col, ok := b.Left.(expr.Column); ok {
		if lit, ok := b.Right.(expr.Literal); ok {
			return col, lit, true
		}
	}
	if col, ok := b.Right.(expr.Column); ok {
		if lit, ok := b.Left.(expr.Literal); ok {
			return col, lit, true
		}
	}
	return expr.Column{}, expr.Literal{}, false
}

// keyColumn maps a column reference to the canonical key column name.
func keyColumn(table *schema.Table, name string) (string, bool) {
	c, ok := table.Column(name)
	if !ok {
		return "", false
	}
	for _, k := range table.Key {
		if k == c.Name {
			return k, true
		}
	}
	return "", false
}

// ExtractResourceType returns the resource type named by a
// "__resourcetype eq 'Name'" term of the top-level conjunction.
// Always empty when resource types are disabled.
func (c Converter) ExtractResourceType(e expr.Expression) string {
	if !c.IncludeResourceType {
		return ""
	}
	for _, term := range expr.Conjuncts(e) {
		if name, ok := resourceTypeTerm(term); ok {
			return name
		}
	}
	return ""
}

// StripResourceType removes resource type terms from the top-level
// conjunction. It returns nil when nothing else remains and e unchanged when
// resource types are disabled or no term matched.
func (c Converter) StripResourceType(e expr.Expression) expr.Expression {
	if !c.IncludeResourceType || e == nil {
		return e
	}
	terms := expr.Conjuncts(e)
	kept := make([]expr.Expression, 0, len(terms))
	for _, term := range terms {
		if _, ok := resourceTypeTerm(term); !ok {
			kept = append(kept, term)
		}
	}
	if len(kept) == len(terms) {
		return e
	}
	return expr.And(kept...)
}

func resourceTypeTerm(e expr.Expression) (string, bool) {
	col, lit, ok := equality(e)
	if !ok || col.Name != ResourceTypeField {
		return "", false
	}
	s, ok := lit.Value.(ir.String)
	if !ok {
		return "", false
	}
	return string(s), true
}
