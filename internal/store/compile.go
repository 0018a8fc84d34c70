package store

import (
	"fmt"
	"strings"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// compiler turns filter expressions into parameterized SQLite fragments.
//
// CRITICAL: values are never interpolated. Every fragment appends its
// parameters in the order its placeholders appear, so fragments must be
// joined in the order they were compiled.
type compiler struct {
	schema  *schema.Schema
	params  []any
	aliases int
}

func newCompiler(s *schema.Schema) *compiler {
	return &compiler{schema: s}
}

// alias returns a fresh table alias. t0 is reserved for the statement's
// main table.
func (c *compiler) alias() string {
	c.aliases++
	return fmt.Sprintf("t%d", c.aliases)
}

// typeCond restricts rows to a derived type. Root tables return "".
func (c *compiler) typeCond(t *schema.Table, alias string) string {
	if !t.IsDerived() {
		return ""
	}
	c.params = append(c.params, t.Name)
	return fmt.Sprintf("%s.%s = ?", alias, quote(typeColumn))
}

// keyCond matches one row by key. Named keys match by column name;
// positional keys follow key column order.
func (c *compiler) keyCond(t *schema.Table, alias string, key client.Key) (string, error) {
	if key.Len() != len(t.Key) {
		return "", client.BadRequest("%s expects %d key values, got %d", t.Name, len(t.Key), key.Len())
	}
	parts := make([]string, 0, len(t.Key))
	for i, name := range t.Key {
		var v ir.Value
		if key.Named != nil {
			var ok bool
			v, ok = lookupFolded(key.Named, name)
			if !ok {
				return "", client.BadRequest("key of %s lacks %s", t.Name, name)
			}
		} else {
			v = key.Positional[i]
		}
		p, err := param(v)
		if err != nil {
			return "", err
		}
		c.params = append(c.params, p)
		parts = append(parts, fmt.Sprintf("%s.%s = ?", alias, quote(name)))
	}
	return strings.Join(parts, " AND "), nil
}

// filterText parses and compiles filter text against a table.
func (c *compiler) filterText(t *schema.Table, alias, text string) (string, error) {
	e, err := filter.Parse(text)
	if err != nil {
		return "", client.BadRequest("%v", err)
	}
	return c.expr(t, alias, e)
}

func (c *compiler) expr(t *schema.Table, alias string, e expr.Expression) (string, error) {
	switch n := e.(type) {
	case expr.Column:
		return c.column(t, alias, n.Path())

	case expr.Literal:
		if ir.IsNull(n.Value) {
			return "NULL", nil
		}
		p, err := param(n.Value)
		if err != nil {
			return "", err
		}
		c.params = append(c.params, p)
		return "?", nil

	case expr.Not:
		inner, err := c.expr(t, alias, n.Operand)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil

	case expr.Binary:
		return c.binary(t, alias, n)

	case expr.Call:
		return c.call(t, alias, n)

	default:
		return "", client.BadRequest("unsupported expression %T", e)
	}
}

var comparisonSQL = map[expr.Operator]string{
	expr.OpEq: "=",
	expr.OpNe: "<>",
	expr.OpGt: ">",
	expr.OpGe: ">=",
	expr.OpLt: "<",
	expr.OpLe: "<=",
}

func (c *compiler) binary(t *schema.Table, alias string, b expr.Binary) (string, error) {
	// Comparisons against null become IS [NOT] NULL.
	if b.Op == expr.OpEq || b.Op == expr.OpNe {
		operand, ok := nullComparison(b)
		if ok {
			s, err := c.expr(t, alias, operand)
			if err != nil {
				return "", err
			}
			if b.Op == expr.OpEq {
				return "(" + s + " IS NULL)", nil
			}
			return "(" + s + " IS NOT NULL)", nil
		}
	}

	left, err := c.expr(t, alias, b.Left)
	if err != nil {
		return "", err
	}
	right, err := c.expr(t, alias, b.Right)
	if err != nil {
		return "", err
	}

	switch {
	case b.Op == expr.OpAnd:
		return "(" + left + " AND " + right + ")", nil
	case b.Op == expr.OpOr:
		return "(" + left + " OR " + right + ")", nil
	case b.Op.IsComparison():
		return "(" + left + " " + comparisonSQL[b.Op] + " " + right + ")", nil
	default:
		return "", client.BadRequest("unsupported operator %q", b.Op)
	}
}

// nullComparison returns the non-null operand of a comparison with a null
// literal.
func nullComparison(b expr.Binary) (expr.Expression, bool) {
	if lit, ok := b.Right.(expr.Literal); ok && ir.IsNull(lit.Value) {
		return b.Left, true
	}
	if lit, ok := b.Left.(expr.Literal); ok && ir.IsNull(lit.Value) {
		return b.Right, true
	}
	return nil, false
}

// call compiles a function call. Arguments used more than once are
// compiled once per use so parameters stay in placeholder order.
func (c *compiler) call(t *schema.Table, alias string, call expr.Call) (string, error) {
	if err := filter.CheckCall(call.Function, len(call.Args)); err != nil {
		return "", client.BadRequest("%v", err)
	}
	name := strings.ToLower(call.Function)
	arg := func(i int) (string, error) {
		return c.expr(t, alias, call.Args[i])
	}
	// template renders a pattern where $N is replaced by argument N, in the
	// order the references appear.
	template := func(pattern string) (string, error) {
		var sb strings.Builder
		for i := 0; i < len(pattern); i++ {
			if pattern[i] == '$' && i+1 < len(pattern) && pattern[i+1] >= '0' && pattern[i+1] <= '9' {
				s, err := arg(int(pattern[i+1] - '0'))
				if err != nil {
					return "", err
				}
				sb.WriteString(s)
				i++
				continue
			}
			sb.WriteByte(pattern[i])
		}
		return sb.String(), nil
	}

	switch name {
	case "contains":
		return template("(instr($0, $1) > 0)")
	case "substringof":
		return template("(instr($1, $0) > 0)")
	case "startswith":
		return template("(substr($0, 1, length($1)) = $1)")
	case "endswith":
		return template("(substr($0, -length($1)) = $1)")
	case "indexof":
		return template("(instr($0, $1) - 1)")
	case "length":
		return template("length($0)")
	case "tolower":
		return template("lower($0)")
	case "toupper":
		return template("upper($0)")
	case "trim":
		return template("trim($0)")
	case "concat":
		return template("($0 || $1)")
	case "year":
		return template("CAST(strftime('%Y', $0) AS INTEGER)")
	case "month":
		return template("CAST(strftime('%m', $0) AS INTEGER)")
	case "day":
		return template("CAST(strftime('%d', $0) AS INTEGER)")
	case "round":
		return template("round($0)")
	case "floor":
		return template("(CAST($0 AS INTEGER) - ($0 < CAST($0 AS INTEGER)))")
	case "ceiling":
		return template("(CAST($0 AS INTEGER) + ($0 > CAST($0 AS INTEGER)))")
	}
	return "", client.BadRequest("unknown function %q", call.Function)
}

// column compiles a column path. Leading segments follow single-valued
// links through correlated subqueries.
func (c *compiler) column(t *schema.Table, alias string, path []string) (string, error) {
	if len(path) == 1 {
		col, ok := t.Column(path[0])
		if !ok {
			return "", client.BadRequest("%s has no column %q", t.Name, path[0])
		}
		return alias + "." + quote(col.Name), nil
	}

	link, ok := t.Link(path[0])
	if !ok {
		return "", client.BadRequest("%s has no link %q", t.Name, path[0])
	}
	if link.Many {
		return "", client.BadRequest("link %s.%s is not single-valued", t.Name, link.Name)
	}
	target, err := c.schema.FindTable(link.Target)
	if err != nil {
		return "", err
	}
	a := c.alias()
	inner, err := c.column(target, a, path[1:])
	if err != nil {
		return "", err
	}
	where := []string{fmt.Sprintf("%s.%s = %s.%s", a, quote(link.Remote), alias, quote(link.Local))}
	if cond := c.typeCond(target, a); cond != "" {
		where = append(where, cond)
	}
	return fmt.Sprintf("(SELECT %s FROM %s AS %s WHERE %s)",
		inner, quote(target.Root().ActualName), a, strings.Join(where, " AND ")), nil
}

// param converts a scalar value to a driver parameter.
func param(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, client.BadRequest("%T cannot be stored in a column", v)
	}
}

// lookupFolded gets a record field by exact name, then case-insensitively.
func lookupFolded(rec *ir.Record, name string) (ir.Value, bool) {
	if v, ok := rec.Get(name); ok {
		return v, true
	}
	for _, k := range rec.Keys() {
		if strings.EqualFold(k, name) {
			v, _ := rec.Get(k)
			return v, true
		}
	}
	return nil, false
}
