package vdiff

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/formula"
)

const noParent = -1

// Node is a node of a variation diff. Nodes are owned by their
// VariationDiff and refer to each other by id.
type Node struct {
	ID       int
	NodeType NodeType
	DiffType DiffType
	// Formula is set for If and Elif nodes only.
	Formula formula.Formula
	// From is the first line of the node and To is the first line after it.
	From, To LineNumber
	// Lines holds the source text of the node without diff markers.
	Lines []string

	d        *VariationDiff
	parents  [2]int
	children [2][]int
}

// Errors returned when linking nodes.
var (
	ErrHasParent   = errors.New("node already has a parent")
	ErrNotExists   = errors.New("node does not exist at that time")
	ErrHasChildren = errors.New("node still has children")
	ErrForeign     = errors.New("node belongs to another variation diff")
)

func (n *Node) String() string {
	return fmt.Sprintf("%s %s node %d at line %d", n.DiffType, n.NodeType, n.ID, n.From.InDiff)
}

func (n *Node) IsRoot() bool       { return n.NodeType == Root }
func (n *Node) IsArtifact() bool   { return n.NodeType == Artifact }
func (n *Node) IsAnnotation() bool { return n.NodeType.IsAnnotation() }
func (n *Node) IsIf() bool         { return n.NodeType == If }
func (n *Node) IsElif() bool       { return n.NodeType == Elif }
func (n *Node) IsElse() bool       { return n.NodeType == Else }

// ExistsAt reports whether n is part of the projection t.
func (n *Node) ExistsAt(t Time) bool {
	return n.DiffType.ExistsAt(t)
}

// Parent returns the parent of n at time t, or nil.
func (n *Node) Parent(t Time) *Node {
	if id := n.parents[t]; id != noParent {
		return n.d.nodes[id]
	}
	return nil
}

// Children returns the children of n at time t in source order.
func (n *Node) Children(t Time) []*Node {
	out := make([]*Node, len(n.children[t]))
	for i, id := range n.children[t] {
		out[i] = n.d.nodes[id]
	}
	return out
}

// NumChildren returns the number of children of n at time t.
func (n *Node) NumChildren(t Time) int {
	return len(n.children[t])
}

// AllChildren returns the children of n at any time, each once. Children
// before the edit come first.
func (n *Node) AllChildren() []*Node {
	out := n.Children(Before)
	for _, id := range n.children[After] {
		if n.d.nodes[id].parents[Before] != n.ID {
			out = append(out, n.d.nodes[id])
		}
	}
	return out
}

// HasChildren reports whether n has a child at any time.
func (n *Node) HasChildren() bool {
	return len(n.children[Before]) > 0 || len(n.children[After]) > 0
}

// LinesInDiff returns the range of diff lines covered by n.
func (n *Node) LinesInDiff() LineRange {
	return LineRange{n.From.InDiff, n.To.InDiff}
}

// LinesAt returns the range of source lines covered by n at time t.
func (n *Node) LinesAt(t Time) LineRange {
	if !n.ExistsAt(t) {
		return InvalidRange
	}
	return LineRange{n.From.At(t), n.To.At(t)}
}

// AddChild appends child to the children of n at time t.
func (n *Node) AddChild(child *Node, t Time) error {
	return n.InsertChild(child, t, len(n.children[t]))
}

// InsertChild inserts child at index i of the children of n at time t.
func (n *Node) InsertChild(child *Node, t Time, i int) error {
	if child.d != n.d {
		return ErrForeign
	}
	if !n.ExistsAt(t) || !child.ExistsAt(t) {
		return fmt.Errorf("linking %v below %v %s: %w", child, n, t, ErrNotExists)
	}
	if child.parents[t] != noParent {
		return fmt.Errorf("linking %v below %v %s: %w", child, n, t, ErrHasParent)
	}
	kids := n.children[t]
	kids = append(kids, 0)
	copy(kids[i+1:], kids[i:])
	kids[i] = child.ID
	n.children[t] = kids
	child.parents[t] = n.ID
	return nil
}

// AddBelow links n below beforeParent and afterParent in the projections n
// exists in. A nil parent is skipped.
func (n *Node) AddBelow(beforeParent, afterParent *Node) error {
	parents := [2]*Node{beforeParent, afterParent}
	for _, t := range n.DiffType.Times() {
		if parents[t] == nil {
			continue
		}
		if err := parents[t].AddChild(n, t); err != nil {
			return err
		}
	}
	return nil
}

// RemoveChild unlinks child from n at time t. It reports whether child was
// a child of n.
func (n *Node) RemoveChild(child *Node, t Time) bool {
	kids := n.children[t]
	for i, id := range kids {
		if id == child.ID {
			n.children[t] = append(kids[:i:i], kids[i+1:]...)
			child.parents[t] = noParent
			return true
		}
	}
	return false
}

// IndexOf returns the position of child among the children of n at time t,
// or -1.
func (n *Node) IndexOf(child *Node, t Time) int {
	for i, id := range n.children[t] {
		if id == child.ID {
			return i
		}
	}
	return -1
}

// SortChildren stably reorders the children of n at time t by cmp.
func (n *Node) SortChildren(t Time, cmp func(a, b *Node) int) {
	slices.SortStableFunc(n.children[t], func(a, b int) int {
		return cmp(n.d.nodes[a], n.d.nodes[b])
	})
}

// Detach unlinks n from its parents at both times.
func (n *Node) Detach() {
	for _, t := range Times {
		if p := n.Parent(t); p != nil {
			p.RemoveChild(n, t)
		}
	}
}

// Label returns the source lines of n joined by newlines.
func (n *Node) Label() string {
	return strings.Join(n.Lines, "\n")
}
