package vdiff

import "fmt"

// InconsistencyError describes the first violated invariant found by Check.
type InconsistencyError struct {
	NodeID int
	Time   *Time
	Msg    string
}

func (e *InconsistencyError) Error() string {
	if e.Time != nil {
		return fmt.Sprintf("inconsistent variation diff at node %d %s: %s", e.NodeID, *e.Time, e.Msg)
	}
	return fmt.Sprintf("inconsistent variation diff at node %d: %s", e.NodeID, e.Msg)
}

func inconsistent(n *Node, t *Time, format string, args ...any) error {
	return &InconsistencyError{NodeID: n.ID, Time: t, Msg: fmt.Sprintf(format, args...)}
}

// Check verifies the invariants of d:
//   - the root is the only Root node, it is unchanged and has no parents,
//   - every other node has a parent exactly at the times it exists,
//   - parent pointers and child lists agree,
//   - only annotations have children and only If and Elif own formulas,
//   - every Elif and Else continues an If or Elif chain,
//   - each projection is a tree spanning all nodes existing at that time.
func Check(d *VariationDiff) error {
	root := d.root
	if root.NodeType != Root || root.DiffType != Non {
		return inconsistent(root, nil, "root must be an unchanged root node")
	}

	for _, n := range d.Nodes() {
		if err := checkNode(d, n); err != nil {
			return err
		}
	}

	for _, t := range Times {
		if err := checkTree(d, t); err != nil {
			return err
		}
	}
	return nil
}

func checkNode(d *VariationDiff, n *Node) error {
	if n.NodeType == Root && n != d.root {
		return inconsistent(n, nil, "second root node")
	}
	if n.NodeType.IsConditional() && n.Formula == nil {
		return inconsistent(n, nil, "%s without formula", n.NodeType)
	}
	if !n.NodeType.IsConditional() && n.Formula != nil {
		return inconsistent(n, nil, "%s must not have a formula", n.NodeType)
	}

	for _, t := range Times {
		p := n.Parent(t)
		switch {
		case n == d.root:
			if p != nil {
				return inconsistent(n, &t, "root has a parent")
			}
		case n.ExistsAt(t) && p == nil:
			return inconsistent(n, &t, "%s node has no parent", n.DiffType)
		case !n.ExistsAt(t) && p != nil:
			return inconsistent(n, &t, "%s node has parent %d", n.DiffType, p.ID)
		}
		if p != nil {
			if d.Node(p.ID) != p {
				return inconsistent(n, &t, "parent %d is not part of the variation diff", p.ID)
			}
			if !p.ExistsAt(t) {
				return inconsistent(n, &t, "parent %d does not exist", p.ID)
			}
			if !p.IsAnnotation() {
				return inconsistent(n, &t, "parent %d is an artifact", p.ID)
			}
			if p.IndexOf(n, t) < 0 {
				return inconsistent(n, &t, "missing from children of parent %d", p.ID)
			}
		}

		seen := make(map[int]bool, len(n.children[t]))
		for _, id := range n.children[t] {
			c := d.Node(id)
			if c == nil {
				return inconsistent(n, &t, "child %d was removed", id)
			}
			if seen[id] {
				return inconsistent(n, &t, "child %d listed twice", id)
			}
			seen[id] = true
			if c.parents[t] != n.ID {
				return inconsistent(n, &t, "child %d has parent %d", id, c.parents[t])
			}
		}

		if (n.IsElif() || n.IsElse()) && n.ExistsAt(t) {
			if len(n.PrecedingBranches(t)) == 0 {
				return inconsistent(n, &t, "%s does not follow an if or elif", n.NodeType)
			}
		}
	}
	return nil
}

// checkTree verifies that projection t is a tree below the root spanning all
// nodes existing at t.
func checkTree(d *VariationDiff, t Time) error {
	visited := make(map[int]bool)
	stack := []*Node{d.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.ID] {
			return inconsistent(n, &t, "reachable twice, the projection is not a tree")
		}
		visited[n.ID] = true
		for _, id := range n.children[t] {
			stack = append(stack, d.nodes[id])
		}
	}

	for _, n := range d.Nodes() {
		if n.ExistsAt(t) && !visited[n.ID] {
			return inconsistent(n, &t, "not reachable from the root")
		}
	}
	return nil
}

// AssertConsistency panics if d violates an invariant. It is meant for
// graphs produced by this module, where a failure is a bug.
func AssertConsistency(d *VariationDiff) {
	if err := Check(d); err != nil {
		panic(err)
	}
}
