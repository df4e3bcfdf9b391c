// Package formula provides propositional formulas over feature names.
package formula

import (
	"sort"
	"strconv"
	"strings"
)

// Formula is a propositional formula. The concrete types are Const, Var,
// Not, And, Or, Implies and Equiv.
type Formula interface {
	String() string
	formula()
}

// Const is the constant true or false.
type Const bool

// Var is a propositional variable, usually a feature or macro name.
type Var string

// Not negates X.
type Not struct {
	X Formula
}

// And is the conjunction of its operands. An empty And is true.
type And []Formula

// Or is the disjunction of its operands. An empty Or is false.
type Or []Formula

// Implies is the implication L => R.
type Implies struct {
	L, R Formula
}

// Equiv is the biconditional L <=> R.
type Equiv struct {
	L, R Formula
}

const (
	True  = Const(true)
	False = Const(false)
)

func (Const) formula()   {}
func (Var) formula()     {}
func (Not) formula()     {}
func (And) formula()     {}
func (Or) formula()      {}
func (Implies) formula() {}
func (Equiv) formula()   {}

func (c Const) String() string   { return Format(c) }
func (v Var) String() string     { return Format(v) }
func (n Not) String() string     { return Format(n) }
func (a And) String() string     { return Format(a) }
func (o Or) String() string      { return Format(o) }
func (i Implies) String() string { return Format(i) }
func (e Equiv) String() string   { return Format(e) }

// NewAnd conjoins the given formulas. Nil operands are skipped and a single
// remaining operand is returned as is.
func NewAnd(fs ...Formula) Formula {
	ops := make(And, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			ops = append(ops, f)
		}
	}
	switch len(ops) {
	case 0:
		return True
	case 1:
		return ops[0]
	}
	return ops
}

// NewOr disjoins the given formulas. Nil operands are skipped and a single
// remaining operand is returned as is.
func NewOr(fs ...Formula) Formula {
	ops := make(Or, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			ops = append(ops, f)
		}
	}
	switch len(ops) {
	case 0:
		return False
	case 1:
		return ops[0]
	}
	return ops
}

// Negate returns the negation of f, removing a double negation and
// flipping constants.
func Negate(f Formula) Formula {
	switch x := f.(type) {
	case Const:
		return !x
	case Not:
		return x.X
	}
	return Not{X: f}
}

// Equal reports whether a and b are syntactically identical.
func Equal(a, b Formula) bool {
	switch x := a.(type) {
	case Const:
		y, ok := b.(Const)
		return ok && x == y
	case Var:
		y, ok := b.(Var)
		return ok && x == y
	case Not:
		y, ok := b.(Not)
		return ok && Equal(x.X, y.X)
	case And:
		y, ok := b.(And)
		return ok && equalOperands(x, y)
	case Or:
		y, ok := b.(Or)
		return ok && equalOperands(x, y)
	case Implies:
		y, ok := b.(Implies)
		return ok && Equal(x.L, y.L) && Equal(x.R, y.R)
	case Equiv:
		y, ok := b.(Equiv)
		return ok && Equal(x.L, y.L) && Equal(x.R, y.R)
	}
	return a == nil && b == nil
}

func equalOperands(a, b []Formula) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Vars returns the sorted, distinct variable names occurring in f.
func Vars(f Formula) []string {
	seen := make(map[string]bool)
	Walk(f, func(g Formula) {
		if v, ok := g.(Var); ok {
			seen[string(v)] = true
		}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Walk calls fn for f and every sub-formula of f in pre-order.
func Walk(f Formula, fn func(Formula)) {
	if f == nil {
		return
	}
	fn(f)
	switch x := f.(type) {
	case Not:
		Walk(x.X, fn)
	case And:
		for _, op := range x {
			Walk(op, fn)
		}
	case Or:
		for _, op := range x {
			Walk(op, fn)
		}
	case Implies:
		Walk(x.L, fn)
		Walk(x.R, fn)
	case Equiv:
		Walk(x.L, fn)
		Walk(x.R, fn)
	}
}

// Format renders f in the syntax accepted by Parse. Parse(Format(f)) is
// structurally equal to f for every formula without constants.
func Format(f Formula) string {
	var sb strings.Builder
	write(&sb, f)
	return sb.String()
}

func write(sb *strings.Builder, f Formula) {
	switch x := f.(type) {
	case nil:
		sb.WriteString("<nil>")
	case Const:
		if x {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case Var:
		if isIdent(string(x)) {
			sb.WriteString(string(x))
		} else {
			sb.WriteString(strconv.Quote(string(x)))
		}
	case Not:
		sb.WriteString("!")
		writeOperand(sb, x.X)
	case And:
		writeJoined(sb, x, " && ")
	case Or:
		writeJoined(sb, x, " || ")
	case Implies:
		writeOperand(sb, x.L)
		sb.WriteString(" => ")
		writeOperand(sb, x.R)
	case Equiv:
		writeOperand(sb, x.L)
		sb.WriteString(" <=> ")
		writeOperand(sb, x.R)
	}
}

func writeJoined(sb *strings.Builder, ops []Formula, sep string) {
	for i, op := range ops {
		if i > 0 {
			sb.WriteString(sep)
		}
		writeOperand(sb, op)
	}
}

// writeOperand parenthesizes every operand that is not atomic.
func writeOperand(sb *strings.Builder, f Formula) {
	switch f.(type) {
	case Const, Var, Not:
		write(sb, f)
	default:
		sb.WriteString("(")
		write(sb, f)
		sb.WriteString(")")
	}
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

func isIdentRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v', '!', '&', '|', '(', ')', '<', '=', '>', '"':
		return false
	}
	return true
}
