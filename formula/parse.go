package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError describes why a formula text could not be parsed.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing formula %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

// Parse reads a formula written with the operators !, &&, ||, => and <=>.
// Binding strength decreases in that order and parentheses group. Any run
// of characters that are neither whitespace nor operator symbols is a
// variable, and double quoted strings are variables with arbitrary names.
func Parse(text string) (Formula, error) {
	p := &parser{input: text}
	p.next()
	f, err := p.parseEquiv()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s", p.tok)
	}
	return f, nil
}

// ParseOrLiteral parses text and falls back to a single variable named by
// the whole text when it is not a well-formed formula.
func ParseOrLiteral(text string) Formula {
	f, err := Parse(text)
	if err != nil {
		return Var(text)
	}
	return f
}

// MustParse is like Parse but panics on malformed input.
func MustParse(text string) Formula {
	f, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return f
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNot
	tokAnd
	tokOr
	tokImplies
	tokEquiv
	tokLParen
	tokRParen
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return fmt.Sprintf("identifier %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

type parser struct {
	input string
	off   int
	tok   token
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) next() {
	for p.off < len(p.input) && isSpace(p.input[p.off]) {
		p.off++
	}
	start := p.off
	if p.off >= len(p.input) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}

	rest := p.input[p.off:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			p.off += len(op.text)
			p.tok = token{kind: op.kind, text: op.text, pos: start}
			return
		}
	}

	if rest[0] == '"' {
		prefix, err := strconv.QuotedPrefix(rest)
		if err != nil {
			p.off = len(p.input)
			p.tok = token{kind: tokInvalid, text: rest, pos: start}
			return
		}
		name, _ := strconv.Unquote(prefix)
		p.off += len(prefix)
		p.tok = token{kind: tokIdent, text: name, pos: start}
		return
	}

	for p.off < len(p.input) {
		r := rune(p.input[p.off])
		if !isIdentRune(r) {
			break
		}
		p.off++
	}
	if p.off == start {
		// A lone '&', '|', '<', '=' or '>'.
		p.off++
		p.tok = token{kind: tokInvalid, text: p.input[start:p.off], pos: start}
		return
	}
	p.tok = token{kind: tokIdent, text: p.input[start:p.off], pos: start}
}

// Longer operators first so that "<=>" wins over "=>".
var operators = []struct {
	text string
	kind tokenKind
}{
	{"<=>", tokEquiv},
	{"=>", tokImplies},
	{"&&", tokAnd},
	{"||", tokOr},
	{"!", tokNot},
	{"(", tokLParen},
	{")", tokRParen},
}

func (p *parser) parseEquiv() (Formula, error) {
	l, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokEquiv {
		p.next()
		r, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		l = Equiv{L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseImplies() (Formula, error) {
	l, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokImplies {
		p.next()
		r, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		return Implies{L: l, R: r}, nil
	}
	return l, nil
}

func (p *parser) parseOr() (Formula, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokOr {
		return first, nil
	}
	ops := Or{first}
	for p.tok.kind == tokOr {
		p.next()
		op, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (p *parser) parseAnd() (Formula, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokAnd {
		return first, nil
	}
	ops := And{first}
	for p.tok.kind == tokAnd {
		p.next()
		op, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (p *parser) parseUnary() (Formula, error) {
	switch p.tok.kind {
	case tokNot:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	case tokLParen:
		p.next()
		f, err := p.parseEquiv()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.errorf("expected ')' but found %s", p.tok)
		}
		p.next()
		return f, nil
	case tokIdent:
		v := Var(p.tok.text)
		p.next()
		return v, nil
	}
	return nil, p.errorf("unexpected %s", p.tok)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
