// Package sat answers satisfiability questions about feature formulas using
// the gini SAT solver.
package sat

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/VariantSync/DiffDetective-sub004/formula"
)

const (
	satisfiable   = 1
	unsatisfiable = -1
)

// Oracle decides satisfiability, implication and equivalence of formulas.
type Oracle interface {
	Satisfiable(f formula.Formula) bool
	Implies(a, b formula.Formula) bool
	Equivalent(a, b formula.Formula) bool
}

// Solver is an Oracle backed by gini. Every query builds a fresh circuit, so
// a Solver is safe for concurrent use. Results are cached by the formatted
// query formula.
type Solver struct {
	cache sync.Map // string -> bool

	queries atomic.Int64
	solves  atomic.Int64
}

// New returns a Solver with an empty cache.
func New() *Solver {
	return &Solver{}
}

// Stats reports how many queries were answered and how many of them needed
// a solver run.
func (s *Solver) Stats() (queries, solves int64) {
	return s.queries.Load(), s.solves.Load()
}

// Satisfiable reports whether some assignment makes f true.
func (s *Solver) Satisfiable(f formula.Formula) bool {
	s.queries.Add(1)
	f = formula.EliminateConstants(f)
	if c, ok := f.(formula.Const); ok {
		return bool(c)
	}

	key := formula.Format(f)
	if v, ok := s.cache.Load(key); ok {
		return v.(bool)
	}
	s.solves.Add(1)
	res := solve(f)
	s.cache.Store(key, res)
	return res
}

// Implies reports whether every assignment satisfying a satisfies b.
func (s *Solver) Implies(a, b formula.Formula) bool {
	return !s.Satisfiable(formula.NewAnd(a, formula.Negate(b)))
}

// Equivalent reports whether a and b agree on every assignment.
func (s *Solver) Equivalent(a, b formula.Formula) bool {
	if formula.Equal(a, b) {
		return true
	}
	return s.Implies(a, b) && s.Implies(b, a)
}

// Tautology reports whether f holds for every assignment.
func Tautology(o Oracle, f formula.Formula) bool {
	return !o.Satisfiable(formula.Negate(f))
}

// Contradiction reports whether no assignment satisfies f.
func Contradiction(o Oracle, f formula.Formula) bool {
	return !o.Satisfiable(f)
}

func solve(f formula.Formula) bool {
	c := logic.NewC()
	root := encode(c, make(map[formula.Var]z.Lit), f)

	g := gini.New()
	c.ToCnf(g)
	g.Assume(root)
	switch r := g.Solve(); r {
	case satisfiable:
		return true
	case unsatisfiable:
		return false
	default:
		panic(fmt.Sprintf("sat: unexpected solver result %d", r))
	}
}

// encode adds f to the circuit c and returns the literal standing for it.
// Variables are mapped to circuit inputs on first use.
func encode(c *logic.C, vars map[formula.Var]z.Lit, f formula.Formula) z.Lit {
	switch x := f.(type) {
	case formula.Const:
		if x {
			return c.T
		}
		return c.F
	case formula.Var:
		m, ok := vars[x]
		if !ok {
			m = c.Lit()
			vars[x] = m
		}
		return m
	case formula.Not:
		return encode(c, vars, x.X).Not()
	case formula.And:
		return c.Ands(encodeAll(c, vars, x)...)
	case formula.Or:
		return c.Ors(encodeAll(c, vars, x)...)
	case formula.Implies:
		return c.Implies(encode(c, vars, x.L), encode(c, vars, x.R))
	case formula.Equiv:
		return c.Xor(encode(c, vars, x.L), encode(c, vars, x.R)).Not()
	}
	panic(fmt.Sprintf("sat: cannot encode %T", f))
}

func encodeAll(c *logic.C, vars map[formula.Var]z.Lit, fs []formula.Formula) []z.Lit {
	ms := make([]z.Lit, len(fs))
	for i, f := range fs {
		ms[i] = encode(c, vars, f)
	}
	return ms
}
