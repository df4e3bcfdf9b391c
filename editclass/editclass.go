// Package editclass classifies the edits to artifacts of a variation diff
// into elementary edit patterns.
package editclass

import (
	"fmt"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/formula"
	"github.com/VariantSync/DiffDetective-sub004/sat"
	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// Pattern is an elementary edit pattern. The numeric values are part of
// serialized label formats.
type Pattern int

const (
	AddToPC Pattern = iota
	AddWithMapping
	RemFromPC
	RemWithMapping
	Specialization
	Generalization
	Reconfiguration
	Refactoring
	Untouched
)

// All lists every pattern in index order.
var All = []Pattern{
	AddToPC,
	AddWithMapping,
	RemFromPC,
	RemWithMapping,
	Specialization,
	Generalization,
	Reconfiguration,
	Refactoring,
	Untouched,
}

var patternNames = [...]string{
	"AddToPC",
	"AddWithMapping",
	"RemFromPC",
	"RemWithMapping",
	"Specialization",
	"Generalization",
	"Reconfiguration",
	"Refactoring",
	"Untouched",
}

func (p Pattern) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Pattern(%d)", int(p))
	}
	return patternNames[p]
}

// Valid reports whether p is one of All.
func (p Pattern) Valid() bool {
	return p >= AddToPC && p <= Untouched
}

// DiffType returns the diff type of the artifacts matched by p.
func (p Pattern) DiffType() vdiff.DiffType {
	switch p {
	case AddToPC, AddWithMapping:
		return vdiff.Add
	case RemFromPC, RemWithMapping:
		return vdiff.Rem
	}
	return vdiff.Non
}

// ParsePattern returns the pattern named name.
func ParsePattern(name string) (Pattern, error) {
	for i, n := range patternNames {
		if n == name {
			return Pattern(i), nil
		}
	}
	return 0, fmt.Errorf("unknown edit pattern %q", name)
}

// Match is the pattern matched by an artifact. For unchanged artifacts it
// also holds the presence conditions that were compared.
type Match struct {
	Node    *vdiff.Node
	Pattern Pattern
	Before  formula.Formula
	After   formula.Formula
}

// facts are the properties of an artifact the pattern predicates test.
type facts struct {
	diffType      vdiff.DiffType
	parentAdded   bool
	parentRemoved bool
	// weakened and strengthened are set for unchanged artifacts only.
	weakened     bool // before implies after
	strengthened bool // after implies before
	samePath     bool
}

// predicates decide each pattern. Exactly one holds for every artifact.
var predicates = [...]func(f facts) bool{
	AddToPC:        func(f facts) bool { return f.diffType == vdiff.Add && !f.parentAdded },
	AddWithMapping: func(f facts) bool { return f.diffType == vdiff.Add && f.parentAdded },
	RemFromPC:      func(f facts) bool { return f.diffType == vdiff.Rem && !f.parentRemoved },
	RemWithMapping: func(f facts) bool { return f.diffType == vdiff.Rem && f.parentRemoved },
	Specialization: func(f facts) bool {
		return f.diffType == vdiff.Non && f.strengthened && !f.weakened
	},
	Generalization: func(f facts) bool {
		return f.diffType == vdiff.Non && f.weakened && !f.strengthened
	},
	Reconfiguration: func(f facts) bool {
		return f.diffType == vdiff.Non && !f.weakened && !f.strengthened
	},
	Refactoring: func(f facts) bool {
		return f.diffType == vdiff.Non && f.weakened && f.strengthened && !f.samePath
	},
	Untouched: func(f facts) bool {
		return f.diffType == vdiff.Non && f.weakened && f.strengthened && f.samePath
	},
}

// Classify returns the pattern matched by the artifact n. It panics if n is
// not an artifact or if not exactly one pattern matches.
func Classify(n *vdiff.Node, o sat.Oracle) Match {
	if !n.IsArtifact() {
		panic(fmt.Sprintf("editclass: classifying %v, which is not an artifact", n))
	}

	m := Match{Node: n}
	f := facts{diffType: n.DiffType}
	switch n.DiffType {
	case vdiff.Add:
		f.parentAdded = n.Parent(vdiff.After).DiffType == vdiff.Add
	case vdiff.Rem:
		f.parentRemoved = n.Parent(vdiff.Before).DiffType == vdiff.Rem
	default:
		m.Before = n.PresenceCondition(vdiff.Before)
		m.After = n.PresenceCondition(vdiff.After)
		if formula.Equal(m.Before, m.After) {
			f.weakened, f.strengthened = true, true
		} else {
			f.weakened = o.Implies(m.Before, m.After)
			f.strengthened = o.Implies(m.After, m.Before)
		}
		f.samePath = n.BeforePathEqualsAfterPath()
	}

	matched := -1
	for p, pred := range predicates {
		if !pred(f) {
			continue
		}
		if matched >= 0 {
			panic(fmt.Sprintf("editclass: %v matches both %v and %v", n, Pattern(matched), Pattern(p)))
		}
		matched = p
	}
	if matched < 0 {
		panic(fmt.Sprintf("editclass: %v matches no pattern", n))
	}
	m.Pattern = Pattern(matched)
	return m
}

// ClassifyAll classifies every artifact of d in traversal order.
func ClassifyAll(d *vdiff.VariationDiff, o sat.Oracle) []Match {
	var out []Match
	for _, n := range d.Artifacts() {
		out = append(out, Classify(n, o))
	}
	return out
}

// Counts holds the number of artifacts per pattern.
type Counts map[Pattern]int

// Count classifies the artifacts of d and counts the patterns.
func Count(d *vdiff.VariationDiff, o sat.Oracle) Counts {
	c := make(Counts, len(All))
	for _, m := range ClassifyAll(d, o) {
		c[m.Pattern]++
	}
	return c
}

// Add adds the counts of other to c.
func (c Counts) Add(other Counts) {
	for p, n := range other {
		c[p] += n
	}
}

// Total returns the number of counted artifacts.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// String lists the non-zero counts in pattern order.
func (c Counts) String() string {
	var parts []string
	for _, p := range All {
		if n := c[p]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", p, n))
		}
	}
	return strings.Join(parts, " ")
}
