package vdiff

import (
	"fmt"

	"github.com/VariantSync/DiffDetective-sub004/formula"
)

// Transformer rewrites a variation diff in place. A transformer must leave
// the variation diff consistent.
type Transformer interface {
	Name() string
	Transform(d *VariationDiff) error
}

// Apply runs the transformers in order and asserts consistency after each.
func Apply(d *VariationDiff, transformers ...Transformer) error {
	for _, tr := range transformers {
		if err := tr.Transform(d); err != nil {
			return fmt.Errorf("%s: %w", tr.Name(), err)
		}
		AssertConsistency(d)
	}
	return nil
}

// Transformers maps names accepted in configuration to transformers.
var Transformers = map[string]Transformer{
	CutNonEditedSubtrees{}.Name():               CutNonEditedSubtrees{},
	CollapseNestedNonEditedAnnotations{}.Name(): CollapseNestedNonEditedAnnotations{},
}

// CutNonEditedSubtrees removes unchanged leaves that keep their parent
// across the edit, until no such leaf remains. Leaves whose removal would
// change the condition of a following elif or else are kept.
type CutNonEditedSubtrees struct{}

func (CutNonEditedSubtrees) Name() string { return "CutNonEditedSubtrees" }

func (CutNonEditedSubtrees) Transform(d *VariationDiff) error {
	for {
		var cut []*Node
		for _, n := range d.Nodes() {
			if isCuttable(n) {
				cut = append(cut, n)
			}
		}
		if len(cut) == 0 {
			return nil
		}
		for _, n := range cut {
			// Removals earlier in this round may have changed the siblings.
			if !isCuttable(n) {
				continue
			}
			if err := d.Remove(n); err != nil {
				return err
			}
		}
	}
}

func isCuttable(n *Node) bool {
	if n.IsRoot() || n.DiffType != Non || n.HasChildren() {
		return false
	}
	if n.parents[Before] != n.parents[After] {
		return false
	}
	return !continuesChain(n, Before) && !continuesChain(n, After)
}

// continuesChain reports whether the sibling following n at time t is an
// Elif or Else whose condition depends on n.
func continuesChain(n *Node, t Time) bool {
	if n.NodeType != If && n.NodeType != Elif {
		return false
	}
	p := n.Parent(t)
	if p == nil {
		return false
	}
	i := p.IndexOf(n, t)
	if i+1 >= len(p.children[t]) {
		return false
	}
	next := n.d.nodes[p.children[t][i+1]]
	return next.NodeType == Elif || next.NodeType == Else
}

// CollapseNestedNonEditedAnnotations replaces chains of unchanged, nested
// ifs, where each if is the only child of the previous one, by a single if
// whose formula is the conjunction of the chain.
type CollapseNestedNonEditedAnnotations struct{}

func (CollapseNestedNonEditedAnnotations) Name() string {
	return "CollapseNestedNonEditedAnnotations"
}

func (CollapseNestedNonEditedAnnotations) Transform(d *VariationDiff) error {
	var chains [][]*Node
	inChain := make(map[int]bool)
	d.Walk(func(n *Node) bool {
		if inChain[n.ID] || !isChainLink(n) || n.IsRoot() {
			return true
		}
		if continuesChain(n, Before) || continuesChain(n, After) {
			return true
		}
		chain := []*Node{n}
		for cur := n; ; {
			kids := cur.AllChildren()
			if len(kids) != 1 || !isChainLink(kids[0]) {
				break
			}
			cur = kids[0]
			chain = append(chain, cur)
		}
		if len(chain) >= 2 {
			for _, c := range chain {
				inChain[c.ID] = true
			}
			chains = append(chains, chain)
		}
		return true
	})

	for _, chain := range chains {
		if err := collapse(d, chain); err != nil {
			return err
		}
	}
	return nil
}

// isChainLink reports whether n is an unchanged if with the same parent at
// both times.
func isChainLink(n *Node) bool {
	return n.NodeType == If && n.DiffType == Non && n.parents[Before] == n.parents[After]
}

func collapse(d *VariationDiff, chain []*Node) error {
	head, end := chain[0], chain[len(chain)-1]
	parent := head.Parent(Before)

	ops := make([]formula.Formula, 0, len(chain))
	var lines []string
	for _, c := range chain {
		ops = append(ops, c.Formula)
		if len(c.Lines) > 0 {
			lines = append(lines, c.Lines[0])
		}
	}
	merged := d.NewNode(If, Non, formula.NewAnd(ops...), head.From, head.To, lines)

	var index [2]int
	for _, t := range Times {
		index[t] = parent.IndexOf(head, t)
		for _, c := range end.Children(t) {
			end.RemoveChild(c, t)
			if err := merged.AddChild(c, t); err != nil {
				return err
			}
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := d.Remove(chain[i]); err != nil {
			return err
		}
	}
	for _, t := range Times {
		if err := parent.InsertChild(merged, t, index[t]); err != nil {
			return err
		}
	}
	return nil
}
