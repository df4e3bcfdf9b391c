package vdiff

import (
	"fmt"

	"github.com/VariantSync/DiffDetective-sub004/formula"
)

// VariationDiff owns a set of nodes with a distinguished root. For each time
// the nodes existing at that time, linked by their parents at that time,
// form a tree below the root.
type VariationDiff struct {
	nodes []*Node
	live  int
	root  *Node
}

// New returns a variation diff holding only a root node.
func New() *VariationDiff {
	d := &VariationDiff{}
	d.root = d.NewNode(Root, Non, nil, InvalidLineNumber, InvalidLineNumber, nil)
	return d
}

// NewNode allocates a node in d. The node is not linked to any parent yet.
func (d *VariationDiff) NewNode(nt NodeType, dt DiffType, f formula.Formula, from, to LineNumber, lines []string) *Node {
	n := &Node{
		ID:       len(d.nodes),
		NodeType: nt,
		DiffType: dt,
		Formula:  f,
		From:     from,
		To:       to,
		Lines:    lines,
		d:        d,
		parents:  [2]int{noParent, noParent},
	}
	d.nodes = append(d.nodes, n)
	d.live++
	return n
}

// Root returns the root of d.
func (d *VariationDiff) Root() *Node {
	return d.root
}

// Node returns the node with the given id, or nil.
func (d *VariationDiff) Node(id int) *Node {
	if id < 0 || id >= len(d.nodes) {
		return nil
	}
	return d.nodes[id]
}

// Nodes returns all nodes of d ordered by id.
func (d *VariationDiff) Nodes() []*Node {
	out := make([]*Node, 0, d.live)
	for _, n := range d.nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of nodes in d, including the root.
func (d *VariationDiff) Len() int {
	return d.live
}

// Remove unlinks n from its parents and deletes it from d. A node that still
// has children cannot be removed.
func (d *VariationDiff) Remove(n *Node) error {
	if n.d != d {
		return ErrForeign
	}
	if n == d.root {
		return fmt.Errorf("removing %v: the root cannot be removed", n)
	}
	if n.HasChildren() {
		return fmt.Errorf("removing %v: %w", n, ErrHasChildren)
	}
	n.Detach()
	d.nodes[n.ID] = nil
	d.live--
	return nil
}

// Walk visits every node reachable from the root through parents at any
// time, in depth first pre-order. Each node is visited once even when it is
// reached through both projections. Returning false from fn skips the
// descendants of that node.
func (d *VariationDiff) Walk(fn func(*Node) bool) {
	visited := make(map[int]bool, d.live)
	stack := []*Node{d.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.ID] {
			continue
		}
		visited[n.ID] = true
		if !fn(n) {
			continue
		}
		kids := n.AllChildren()
		for i := len(kids) - 1; i >= 0; i-- {
			if !visited[kids[i].ID] {
				stack = append(stack, kids[i])
			}
		}
	}
}

// WalkAt visits the tree of projection t in depth first pre-order.
func (d *VariationDiff) WalkAt(t Time, fn func(*Node)) {
	visited := make(map[int]bool, d.live)
	stack := []*Node{d.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.ID] {
			continue
		}
		visited[n.ID] = true
		fn(n)
		kids := n.children[t]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, d.nodes[kids[i]])
		}
	}
}

// Artifacts returns the artifact nodes reachable from the root in Walk order.
func (d *VariationDiff) Artifacts() []*Node {
	var out []*Node
	d.Walk(func(n *Node) bool {
		if n.IsArtifact() {
			out = append(out, n)
		}
		return true
	})
	return out
}
