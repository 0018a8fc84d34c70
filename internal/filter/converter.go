// Package filter converts expression trees to protocol filter text.
//
// The converter chooses between two strategies for the same logical filter.
// An expression that is exactly a conjunction of key-column equalities
// becomes a structured key (AsKey); any other shape is rendered as filter
// text (ToFilterText) with operator precedence preserved:
//
//	ProductID eq 1
//	CategoryID eq 1 and (UnitPrice lt 10.0 or UnitPrice gt 20.0)
//	not (Discontinued eq true)
//	startswith(ProductName,'Ch') and Category/CategoryName eq 'Beverages'
//
// Parse reads the same syntax back into an expression tree.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/ir"
)

// Precedence levels, loosest first.
const (
	precOr = iota + 1
	precAnd
	precComparison
	precUnary
)

// Converter renders expressions. The zero value is ready to use with
// resource-type extraction disabled.
type Converter struct {
	// IncludeResourceType enables the "__resourcetype" discriminator.
	IncludeResourceType bool
}

// UnsupportedError reports an expression that has no filter text form.
type UnsupportedError struct {
	Node    string
	Message string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s: %s", e.Node, e.Message)
}

// ToFilterText renders an expression as filter text.
// A nil expression renders as the empty string.
func (c Converter) ToFilterText(e expr.Expression) (string, error) {
	if e == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := render(&sb, e, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func precedence(e expr.Expression) int {
	switch n := e.(type) {
	case expr.Binary:
		switch n.Op {
		case expr.OpOr:
			return precOr
		case expr.OpAnd:
			return precAnd
		default:
			return precComparison
		}
	default:
		return precUnary
	}
}

func render(sb *strings.Builder, e expr.Expression, parent int) error {
	paren := precedence(e) < parent
	if paren {
		sb.WriteByte('(')
	}

	switch n := e.(type) {
	case expr.Column:
		if err := checkColumn(n.Name); err != nil {
			return err
		}
		sb.WriteString(strings.ReplaceAll(n.Name, ".", "/"))

	case expr.Literal:
		text, err := Literal(n.Value)
		if err != nil {
			return err
		}
		sb.WriteString(text)

	case expr.Binary:
		if n.Left == nil || n.Right == nil {
			return &UnsupportedError{Node: "binary", Message: fmt.Sprintf("%s with missing operand", n.Op)}
		}
		if !n.Op.IsComparison() && !n.Op.IsLogical() {
			return &UnsupportedError{Node: "operator", Message: fmt.Sprintf("%q", n.Op)}
		}
		prec := precedence(n)
		if err := render(sb, n.Left, prec); err != nil {
			return err
		}
		sb.WriteByte(' ')
		sb.WriteString(string(n.Op))
		sb.WriteByte(' ')
		if err := render(sb, n.Right, prec+1); err != nil {
			return err
		}

	case expr.Not:
		if n.Operand == nil {
			return &UnsupportedError{Node: "not", Message: "missing operand"}
		}
		sb.WriteString("not ")
		if err := render(sb, n.Operand, precUnary); err != nil {
			return err
		}

	case expr.Call:
		if err := CheckCall(n.Function, len(n.Args)); err != nil {
			return err
		}
		name := strings.ToLower(n.Function)
		sb.WriteString(name)
		sb.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			if arg == nil {
				return &UnsupportedError{Node: "function", Message: fmt.Sprintf("%s: missing argument %d", name, i+1)}
			}
			if err := render(sb, arg, 0); err != nil {
				return err
			}
		}
		sb.WriteByte(')')

	case nil:
		return &UnsupportedError{Node: "expression", Message: "nil operand"}

	default:
		return &UnsupportedError{Node: "expression", Message: fmt.Sprintf("%T", e)}
	}

	if paren {
		sb.WriteByte(')')
	}
	return nil
}

// reserved words cannot name a path segment; Parse would read them as
// operators or literals.
var reserved = map[string]bool{
	"and": true, "or": true, "not": true,
	"eq": true, "ne": true, "gt": true, "ge": true, "lt": true, "le": true,
	"true": true, "false": true, "null": true,
}

// checkColumn validates a dotted column path. Each segment must be an
// identifier so that the rendered text parses back to the same column.
func checkColumn(name string) error {
	if name == "" {
		return &UnsupportedError{Node: "column", Message: "empty column name"}
	}
	for _, seg := range strings.Split(name, ".") {
		if !isIdentifier(seg) || reserved[seg] {
			return &UnsupportedError{Node: "column", Message: fmt.Sprintf("%q is not a valid column path", name)}
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if !isIdentRune(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return s != ""
}

// Literal renders a scalar value as a filter literal. Strings are quoted
// with embedded quotes doubled and normalized to NFC; floats always carry a
// decimal point.
func Literal(v ir.Value) (string, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return "null", nil
	case ir.String:
		s := norm.NFC.String(string(val))
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
	case ir.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", &UnsupportedError{Node: "literal", Message: fmt.Sprintf("non-finite number %v", f)}
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	case ir.Bool:
		if val {
			return "true", nil
		}
		return "false", nil
	default:
		return "", &UnsupportedError{Node: "literal", Message: fmt.Sprintf("%T has no literal form", v)}
	}
}
