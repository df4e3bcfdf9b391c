package vdiff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VariantSync/DiffDetective-sub004/formula"
)

func node(d *VariationDiff, nt NodeType, dt DiffType, f string, lines ...string) *Node {
	var fm formula.Formula
	if f != "" {
		fm = formula.MustParse(f)
	}
	return d.NewNode(nt, dt, fm, InvalidLineNumber, InvalidLineNumber, lines)
}

func below(t *testing.T, n, before, after *Node) *Node {
	t.Helper()
	require.NoError(t, n.AddBelow(before, after))
	return n
}

// chainDiff builds
//
//	#if A
//	  a
//	#elif B
//	  b
//	#else
//	  c
//	#endif
//
// with every node unchanged.
func chainDiff(t *testing.T) (d *VariationDiff, ifA, elifB, els, a, b, c *Node) {
	d = New()
	r := d.Root()
	ifA = below(t, node(d, If, Non, "A", "#if A"), r, r)
	a = below(t, node(d, Artifact, Non, "", "a"), ifA, ifA)
	elifB = below(t, node(d, Elif, Non, "B", "#elif B"), r, r)
	b = below(t, node(d, Artifact, Non, "", "b"), elifB, elifB)
	els = below(t, node(d, Else, Non, "", "#else"), r, r)
	c = below(t, node(d, Artifact, Non, "", "c"), els, els)
	return
}

func TestCheck_ValidChain(t *testing.T) {
	d, _, _, _, _, _, _ := chainDiff(t)
	assert.NoError(t, Check(d))
	assert.Equal(t, 7, d.Len())
}

func TestPresenceCondition_Chain(t *testing.T) {
	_, ifA, elifB, els, a, b, c := chainDiff(t)

	for _, tt := range []struct {
		n    *Node
		want string
	}{
		{ifA, "A"},
		{a, "A"},
		{elifB, "!A && B"},
		{b, "!A && B"},
		{els, "!B && !A"},
		{c, "!B && !A"},
	} {
		for _, tm := range Times {
			got := tt.n.PresenceCondition(tm)
			assert.Equal(t, tt.want, formula.Format(got), "%v %s", tt.n, tm)
		}
	}
}

func TestPresenceCondition_Nested(t *testing.T) {
	d := New()
	r := d.Root()
	outer := below(t, node(d, If, Non, "A"), r, r)
	inner := below(t, node(d, If, Add, "B"), nil, outer)
	x := below(t, node(d, Artifact, Non, ""), outer, inner)
	require.NoError(t, Check(d))

	assert.Equal(t, "A", formula.Format(x.PresenceCondition(Before)))
	assert.Equal(t, formula.Format(formula.And{formula.Var("A"), formula.Var("B")}), formula.Format(x.PresenceCondition(After)))
	assert.Equal(t, formula.True, inner.PresenceCondition(Before))
	assert.False(t, x.BeforePathEqualsAfterPath())
	assert.True(t, outer.BeforePathEqualsAfterPath())
}

func TestCheck_Violations(t *testing.T) {
	t.Run("missing parent", func(t *testing.T) {
		d := New()
		n := node(d, Artifact, Non, "")
		require.NoError(t, d.Root().AddChild(n, Before))
		assertInconsistent(t, Check(d), n.ID)
	})

	t.Run("artifact parent", func(t *testing.T) {
		d := New()
		r := d.Root()
		x := below(t, node(d, Artifact, Non, ""), r, r)
		y := below(t, node(d, Artifact, Non, ""), x, x)
		assertInconsistent(t, Check(d), y.ID)
	})

	t.Run("if without formula", func(t *testing.T) {
		d := New()
		r := d.Root()
		n := below(t, node(d, If, Non, ""), r, r)
		assertInconsistent(t, Check(d), n.ID)
	})

	t.Run("else without if", func(t *testing.T) {
		d := New()
		r := d.Root()
		n := below(t, node(d, Else, Non, ""), r, r)
		assertInconsistent(t, Check(d), n.ID)
	})

	t.Run("dangling child list", func(t *testing.T) {
		d := New()
		r := d.Root()
		ifA := below(t, node(d, If, Non, "A"), r, r)
		x := below(t, node(d, Artifact, Non, ""), ifA, ifA)
		// Corrupt the child list behind the parent pointer's back.
		r.children[Before] = append(r.children[Before], x.ID)
		assert.Error(t, Check(d))
	})
}

func assertInconsistent(t *testing.T, err error, id int) {
	t.Helper()
	var ie *InconsistencyError
	require.True(t, errors.As(err, &ie), "expected InconsistencyError, got %v", err)
	assert.Equal(t, id, ie.NodeID)
}

func TestAddChild_Errors(t *testing.T) {
	d := New()
	r := d.Root()
	added := node(d, Artifact, Add, "")
	assert.ErrorIs(t, r.AddChild(added, Before), ErrNotExists)
	require.NoError(t, r.AddChild(added, After))
	assert.ErrorIs(t, r.AddChild(added, After), ErrHasParent)

	other := New()
	assert.ErrorIs(t, other.Root().AddChild(node(d, Artifact, Non, ""), Before), ErrForeign)
}

func TestRemove(t *testing.T) {
	d, ifA, _, _, a, _, _ := chainDiff(t)
	assert.ErrorIs(t, d.Remove(ifA), ErrHasChildren)
	assert.Error(t, d.Remove(d.Root()))

	require.NoError(t, d.Remove(a))
	assert.Nil(t, d.Node(a.ID))
	assert.Equal(t, 6, d.Len())
	assert.Equal(t, 0, ifA.NumChildren(Before))
	assert.NoError(t, Check(d))
}

func TestWalk_VisitsSharedNodesOnce(t *testing.T) {
	d := New()
	r := d.Root()
	before := below(t, node(d, If, Rem, "A"), r, nil)
	after := below(t, node(d, If, Add, "B"), nil, r)
	x := below(t, node(d, Artifact, Non, ""), before, after)
	require.NoError(t, Check(d))

	visits := make(map[int]int)
	d.Walk(func(n *Node) bool {
		visits[n.ID]++
		return true
	})
	assert.Equal(t, map[int]int{r.ID: 1, before.ID: 1, after.ID: 1, x.ID: 1}, visits)

	var order []int
	d.WalkAt(After, func(n *Node) { order = append(order, n.ID) })
	assert.Equal(t, []int{r.ID, after.ID, x.ID}, order)
	assert.Equal(t, []*Node{x}, d.Artifacts())
}

func TestLineNumber(t *testing.T) {
	l := LineNumber{0, 0, 0}
	l = l.Add(1, Non)
	assert.Equal(t, LineNumber{1, 1, 1}, l)
	l = l.Add(1, Add)
	assert.Equal(t, LineNumber{2, 1, 2}, l)
	l = l.Add(1, Rem)
	assert.Equal(t, LineNumber{3, 2, 2}, l)
	assert.Equal(t, LineNumber{3, InvalidLine, 2}, l.As(Add))
	assert.Equal(t, LineNumber{3, 2, InvalidLine}, l.As(Rem))

	r := LineRange{3, 5}
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Contains(4))
	assert.False(t, r.Contains(5))
	assert.Equal(t, 0, InvalidRange.Len())
}

func TestParseTypes(t *testing.T) {
	for _, dt := range []DiffType{Add, Rem, Non} {
		got, err := ParseDiffType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}
	for _, nt := range []NodeType{If, Else, Elif, Artifact, Root} {
		got, err := ParseNodeType(nt.String())
		require.NoError(t, err)
		assert.Equal(t, nt, got)
	}
	_, err := ParseNodeType("endif")
	assert.Error(t, err)
}

func TestCutNonEditedSubtrees(t *testing.T) {
	d := New()
	r := d.Root()
	ifA := below(t, node(d, If, Non, "A"), r, r)
	below(t, node(d, Artifact, Non, ""), ifA, ifA)
	ifB := below(t, node(d, If, Non, "B"), r, r)
	added := below(t, node(d, Artifact, Add, ""), nil, ifB)
	below(t, node(d, Artifact, Non, ""), ifB, ifB)
	require.NoError(t, Check(d))

	require.NoError(t, Apply(d, CutNonEditedSubtrees{}))

	assert.Equal(t, []*Node{ifB}, r.Children(After))
	assert.Equal(t, []*Node{ifB}, r.Children(Before))
	assert.Equal(t, []*Node{added}, ifB.Children(After))
	assert.Equal(t, 3, d.Len())
}

func TestCutNonEditedSubtrees_KeepsChainPredecessors(t *testing.T) {
	d := New()
	r := d.Root()
	ifA := below(t, node(d, If, Non, "A"), r, r)
	els := below(t, node(d, Else, Non, ""), r, r)
	below(t, node(d, Artifact, Add, ""), nil, els)
	require.NoError(t, Check(d))

	require.NoError(t, Apply(d, CutNonEditedSubtrees{}))
	assert.NotNil(t, d.Node(ifA.ID), "if in front of an edited else must stay")
	assert.Equal(t, "!A", formula.Format(els.PresenceCondition(After)))
}

func TestCollapseNestedNonEditedAnnotations(t *testing.T) {
	d := New()
	r := d.Root()
	ifA := below(t, node(d, If, Non, "A", "#if A"), r, r)
	ifB := below(t, node(d, If, Non, "B", "#if B"), ifA, ifA)
	ifC := below(t, node(d, If, Non, "C", "#if C"), ifB, ifB)
	x := below(t, node(d, Artifact, Add, "", "x"), nil, ifC)
	y := below(t, node(d, Artifact, Rem, "", "y"), ifC, nil)
	require.NoError(t, Check(d))

	require.NoError(t, Apply(d, CollapseNestedNonEditedAnnotations{}))

	kids := r.Children(Before)
	require.Len(t, kids, 1)
	merged := kids[0]
	assert.Equal(t, If, merged.NodeType)
	assert.Equal(t, "A && B && C", formula.Format(merged.Formula))
	assert.Equal(t, []string{"#if A", "#if B", "#if C"}, merged.Lines)
	assert.Equal(t, []*Node{x}, merged.Children(After))
	assert.Equal(t, []*Node{y}, merged.Children(Before))
	assert.Equal(t, 4, d.Len())
	assert.Equal(t, "A && B && C", formula.Format(x.PresenceCondition(After)))
}
