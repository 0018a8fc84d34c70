package filter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/ir"
)

// SyntaxError reports malformed filter text.
type SyntaxError struct {
	Pos     int // byte offset
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter syntax error at offset %d: %s", e.Pos, e.Message)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse reads filter text into an expression tree.
//
// Column paths written with "/" become dotted column names. Numbers with a
// decimal point or exponent become Float literals, others Int.
func Parse(text string) (expr.Expression, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("unexpected %q", tok.text)}
	}
	return e, nil
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == '\'':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Pos: start, Message: "unterminated string"}
			}
			toks = append(toks, token{tokString, sb.String(), start})
		case r == '-' || unicode.IsDigit(r):
			start := i
			i++
			for i < len(s) && (isDigit(s[i]) || s[i] == '.' || s[i] == 'e' || s[i] == 'E' ||
				((s[i] == '+' || s[i] == '-') && (s[i-1] == 'e' || s[i-1] == 'E'))) {
				i++
			}
			if s[start:i] == "-" {
				return nil, &SyntaxError{Pos: start, Message: "expected number after '-'"}
			}
			toks = append(toks, token{tokNumber, s[start:i], start})
		case isIdentRune(r):
			start := i
			for i < len(s) {
				r, size := utf8.DecodeRuneInString(s[i:])
				if !isIdentRune(r) && !unicode.IsDigit(r) && r != '/' && r != '.' {
					break
				}
				i += size
			}
			toks = append(toks, token{tokIdent, s[start:i], start})
		default:
			return nil, &SyntaxError{Pos: i, Message: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(s)})
	return toks, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// keyword reports whether the next token is the given keyword.
func (p *parser) keyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && tok.text == word
}

func (p *parser) parseOr() (expr.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = expr.Binary{Op: expr.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = expr.Binary{Op: expr.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

var comparisons = map[string]expr.Operator{
	"eq": expr.OpEq,
	"ne": expr.OpNe,
	"gt": expr.OpGt,
	"ge": expr.OpGe,
	"lt": expr.OpLt,
	"le": expr.OpLe,
}

func (p *parser) parseComparison() (expr.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		op, ok := comparisons[tok.text]
		if tok.kind != tokIdent || !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = expr.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (expr.Expression, error) {
	if p.keyword("not") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr.Expression, error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Pos: closing.pos, Message: "expected ')'"}
		}
		return e, nil

	case tokString:
		return expr.Literal{Value: ir.String(tok.text)}, nil

	case tokNumber:
		if strings.ContainsAny(tok.text, ".eE") {
			f, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("invalid number %q", tok.text)}
			}
			return expr.Literal{Value: ir.Float(f)}, nil
		}
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("invalid number %q", tok.text)}
		}
		return expr.Literal{Value: ir.Int(n)}, nil

	case tokIdent:
		switch tok.text {
		case "true":
			return expr.Literal{Value: ir.Bool(true)}, nil
		case "false":
			return expr.Literal{Value: ir.Bool(false)}, nil
		case "null":
			return expr.Literal{Value: ir.Null{}}, nil
		}
		if _, reserved := comparisons[tok.text]; reserved || tok.text == "and" || tok.text == "or" {
			return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("unexpected operator %q", tok.text)}
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(tok)
		}
		return expr.Column{Name: strings.ReplaceAll(tok.text, "/", ".")}, nil

	case tokEOF:
		return nil, &SyntaxError{Pos: tok.pos, Message: "unexpected end of filter"}

	default:
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("unexpected %q", tok.text)}
	}
}

func (p *parser) parseCall(name token) (expr.Expression, error) {
	p.next() // '('
	call := expr.Call{Function: name.text}
	if p.peek().kind == tokRParen {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		tok := p.next()
		switch tok.kind {
		case tokComma:
			continue
		case tokRParen:
			return call, nil
		default:
			return nil, &SyntaxError{Pos: tok.pos, Message: "expected ',' or ')'"}
		}
	}
}
