package expr

import (
	"strings"

	"github.com/roach88/odapt/internal/ir"
)

// Expression is a node in a boolean filter tree.
//
// Expression types:
//   - Column: reference to a column, dotted names address related entities
//   - Literal: a constant value
//   - Binary: comparison (eq, ne, gt, ge, lt, le) or logical (and, or)
//   - Not: logical negation
//   - Call: function application (contains, startswith, length, ...)
type Expression interface {
	expressionNode() // Marker method - seals interface to this package
}

// Operator names a binary operator. The values are the protocol keywords.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGe  Operator = "ge"
	OpLt  Operator = "lt"
	OpLe  Operator = "le"
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// IsComparison reports whether the operator compares two operands.
func (o Operator) IsComparison() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

// IsLogical reports whether the operator combines two boolean operands.
func (o Operator) IsLogical() bool {
	return o == OpAnd || o == OpOr
}

// Column references a column of the queried table.
//
// A dotted name ("Category.CategoryName") addresses a column of a related
// entity reached through a navigation link.
type Column struct {
	Name string
}

func (Column) expressionNode() {}

// Path returns the dotted name split into segments.
func (c Column) Path() []string {
	return strings.Split(c.Name, ".")
}

// Literal is a constant operand.
type Literal struct {
	Value ir.Value
}

func (Literal) expressionNode() {}

// Binary applies an operator to two operands.
//
// Semantics:
//
//	<left> <op> <right>
type Binary struct {
	Op    Operator
	Left  Expression
	Right Expression
}

func (Binary) expressionNode() {}

// Not negates a boolean operand.
type Not struct {
	Operand Expression
}

func (Not) expressionNode() {}

// Call applies a named function to arguments.
type Call struct {
	Function string
	Args     []Expression
}

func (Call) expressionNode() {}

// Col creates a column reference.
func Col(name string) Column {
	return Column{Name: name}
}

// Lit creates a literal from a plain Go value or an ir.Value.
// Panics if the value cannot be represented (programming error).
func Lit(v any) Literal {
	return Literal{Value: ir.MustFromGo(v)}
}

func Eq(left, right Expression) Binary { return Binary{Op: OpEq, Left: left, Right: right} }
func Ne(left, right Expression) Binary { return Binary{Op: OpNe, Left: left, Right: right} }
func Gt(left, right Expression) Binary { return Binary{Op: OpGt, Left: left, Right: right} }
func Ge(left, right Expression) Binary { return Binary{Op: OpGe, Left: left, Right: right} }
func Lt(left, right Expression) Binary { return Binary{Op: OpLt, Left: left, Right: right} }
func Le(left, right Expression) Binary { return Binary{Op: OpLe, Left: left, Right: right} }

// And combines expressions into a left-nested conjunction.
// Nil entries are skipped; a single expression is returned as is and no
// expressions yield nil (no filter).
func And(exprs ...Expression) Expression {
	return fold(OpAnd, exprs)
}

// Or combines expressions into a left-nested disjunction.
func Or(exprs ...Expression) Expression {
	return fold(OpOr, exprs)
}

func fold(op Operator, exprs []Expression) Expression {
	var out Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = Binary{Op: op, Left: out, Right: e}
	}
	return out
}

// Negate wraps an expression in Not.
func Negate(e Expression) Not {
	return Not{Operand: e}
}

// Fn creates a function call.
func Fn(name string, args ...Expression) Call {
	return Call{Function: name, Args: args}
}

// Conjuncts flattens a tree of And nodes into its terms, left to right.
// A nil expression has no terms.
func Conjuncts(e Expression) []Expression {
	if e == nil {
		return nil
	}
	if b, ok := e.(Binary); ok && b.Op == OpAnd {
		return append(Conjuncts(b.Left), Conjuncts(b.Right)...)
	}
	return []Expression{e}
}
