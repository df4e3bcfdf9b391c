package vdiff

import "github.com/VariantSync/DiffDetective-sub004/formula"

// FeatureMapping returns the condition n itself adds at time t. For an If
// it is its formula. An Elif or Else additionally requires that none of the
// preceding branches of its chain was taken. Artifacts and the root add
// nothing and yield true.
func (n *Node) FeatureMapping(t Time) formula.Formula {
	if f := n.featureMapping(t); f != nil {
		return f
	}
	return formula.True
}

// featureMapping returns nil instead of true to keep conjunctions small.
func (n *Node) featureMapping(t Time) formula.Formula {
	switch n.NodeType {
	case If:
		return n.Formula
	case Elif, Else:
		var ops []formula.Formula
		for _, prev := range n.PrecedingBranches(t) {
			ops = append(ops, formula.Negate(prev.Formula))
		}
		if n.NodeType == Elif {
			ops = append(ops, n.Formula)
		}
		if len(ops) == 0 {
			return nil
		}
		return formula.NewAnd(ops...)
	}
	return nil
}

// PrecedingBranches returns the If and Elif nodes that precede the Elif or
// Else n in its chain at time t, nearest first. The last element is the If
// opening the chain.
func (n *Node) PrecedingBranches(t Time) []*Node {
	if n.NodeType != Elif && n.NodeType != Else {
		return nil
	}
	p := n.Parent(t)
	if p == nil {
		return nil
	}
	kids := p.children[t]
	i := p.IndexOf(n, t)
	var out []*Node
	for i--; i >= 0; i-- {
		prev := n.d.nodes[kids[i]]
		if prev.NodeType != If && prev.NodeType != Elif {
			break
		}
		out = append(out, prev)
		if prev.NodeType == If {
			break
		}
	}
	return out
}

// PresenceCondition returns the condition under which n is part of the
// variant at time t: the conjunction of the feature mappings of n and all
// its ancestors at t, outermost first. It is true for nodes absent at t.
func (n *Node) PresenceCondition(t Time) formula.Formula {
	if !n.ExistsAt(t) {
		return formula.True
	}
	var ops []formula.Formula
	for cur := n; cur != nil; cur = cur.Parent(t) {
		if f := cur.featureMapping(t); f != nil {
			ops = append(ops, f)
		}
	}
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return formula.NewAnd(ops...)
}

// BeforePathEqualsAfterPath reports whether n has the same ancestors before
// and after the edit.
func (n *Node) BeforePathEqualsAfterPath() bool {
	for cur := n; ; {
		b, a := cur.parents[Before], cur.parents[After]
		if b != a {
			return false
		}
		if b == noParent {
			return true
		}
		cur = n.d.nodes[b]
	}
}
