// Package vdiff implements variation diffs: graphs that describe the
// variability annotated source code before and after an edit at once.
package vdiff

import (
	"fmt"
	"strings"
)

// Time selects one of the two projections of a variation diff.
type Time int

const (
	Before Time = iota
	After
)

// Times lists both projections in order.
var Times = [...]Time{Before, After}

func (t Time) String() string {
	if t == Before {
		return "before"
	}
	return "after"
}

// Other returns the opposite time.
func (t Time) Other() Time {
	return 1 - t
}

// DiffType tells in which projections a node exists. The numeric values are
// part of serialized label formats.
type DiffType int

const (
	Add DiffType = iota
	Rem
	Non
)

var diffTypeNames = [...]string{"ADD", "REM", "NON"}

func (d DiffType) String() string {
	if d < Add || d > Non {
		return fmt.Sprintf("DiffType(%d)", int(d))
	}
	return diffTypeNames[d]
}

// Symbol returns the unified diff marker of d.
func (d DiffType) Symbol() string {
	switch d {
	case Add:
		return "+"
	case Rem:
		return "-"
	}
	return " "
}

// DiffTypeOfSymbol returns the diff type of a unified diff marker byte.
func DiffTypeOfSymbol(marker byte) (DiffType, bool) {
	switch marker {
	case '+':
		return Add, true
	case '-':
		return Rem, true
	case ' ':
		return Non, true
	}
	return 0, false
}

// ParseDiffType parses the name returned by String.
func ParseDiffType(name string) (DiffType, error) {
	for i, n := range diffTypeNames {
		if n == name {
			return DiffType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown diff type %q", name)
}

// DiffTypeOfTime returns the diff type of nodes existing only at t.
func DiffTypeOfTime(t Time) DiffType {
	if t == Before {
		return Rem
	}
	return Add
}

// ExistsAt reports whether nodes of diff type d exist at time t.
func (d DiffType) ExistsAt(t Time) bool {
	switch d {
	case Add:
		return t == After
	case Rem:
		return t == Before
	}
	return true
}

// Times returns the projections in which nodes of diff type d exist.
func (d DiffType) Times() []Time {
	switch d {
	case Add:
		return []Time{After}
	case Rem:
		return []Time{Before}
	}
	return []Time{Before, After}
}

// NodeType is the syntactic kind of a node. The numeric values are part of
// serialized label formats.
type NodeType int

const (
	If NodeType = iota
	Else
	Elif
	Artifact
	Root
)

var nodeTypeNames = [...]string{"if", "else", "elif", "artifact", "root"}

func (n NodeType) String() string {
	if n < If || n > Root {
		return fmt.Sprintf("NodeType(%d)", int(n))
	}
	return nodeTypeNames[n]
}

// ParseNodeType parses the name returned by String, ignoring case.
func ParseNodeType(name string) (NodeType, error) {
	for i, n := range nodeTypeNames {
		if strings.EqualFold(n, name) {
			return NodeType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node type %q", name)
}

// IsAnnotation reports whether n stands for a preprocessor annotation.
// The root counts as an annotation with the condition true.
func (n NodeType) IsAnnotation() bool {
	return n != Artifact
}

// IsConditional reports whether nodes of type n own a formula.
func (n NodeType) IsConditional() bool {
	return n == If || n == Elif
}
