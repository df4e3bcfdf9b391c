package linegraph

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VariantSync/DiffDetective-sub004/editclass"
	"github.com/VariantSync/DiffDetective-sub004/formula"
	"github.com/VariantSync/DiffDetective-sub004/parse"
	"github.com/VariantSync/DiffDetective-sub004/sat"
	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

var testDiffs = map[string]string{
	"add annotation": `
 a
+#if X
+code
+#endif
 b
`,
	"elif chain": `
 #if A
-x
+y
-#elif B
+#elif C && !D
 z
 #else
 "quoted" \ text
 #endif
`,
	"moved": `
-#ifdef A
+#ifndef B
 int x;
 #endif
+#if defined(C) || VERSION >= 3
+  y();
+#endif
`,
}

func parsed(t *testing.T, text string) *vdiff.VariationDiff {
	t.Helper()
	d, err := parse.ParseDiff(strings.TrimPrefix(text, "\n"), parse.DefaultOptions())
	require.NoError(t, err)
	return d
}

// canonicalNode describes a node by its content and by the traversal
// positions of its relatives, which makes graphs comparable across id
// assignments.
type canonicalNode struct {
	NodeType vdiff.NodeType
	DiffType vdiff.DiffType
	Formula  string
	From, To vdiff.LineNumber
	Lines    []string
	Parents  [2]int
	Children [2][]int
}

func canonical(d *vdiff.VariationDiff) []canonicalNode {
	pos := make(map[int]int)
	var order []*vdiff.Node
	d.Walk(func(n *vdiff.Node) bool {
		pos[n.ID] = len(order)
		order = append(order, n)
		return true
	})

	out := make([]canonicalNode, len(order))
	for i, n := range order {
		c := canonicalNode{
			NodeType: n.NodeType,
			DiffType: n.DiffType,
			Lines:    n.Lines,
			Parents:  [2]int{-1, -1},
		}
		if !n.IsRoot() {
			c.From, c.To = n.From, n.To
		}
		if n.Formula != nil {
			c.Formula = formula.Format(n.Formula)
		}
		for _, t := range vdiff.Times {
			if p := n.Parent(t); p != nil {
				c.Parents[t] = pos[p.ID]
			}
			for _, k := range n.Children(t) {
				c.Children[t] = append(c.Children[t], pos[k.ID])
			}
		}
		out[i] = c
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	for name, text := range testDiffs {
		t.Run(name, func(t *testing.T) {
			d := parsed(t, text)
			src := TreeSource{Path: "src/main.c", Commit: "0123abcd"}

			out, err := ExportString(src, d, DefaultOptions())
			require.NoError(t, err)

			graphs, err := Import(strings.NewReader(out), DefaultOptions())
			require.NoError(t, err)
			require.Len(t, graphs, 1)
			assert.Equal(t, src, graphs[0].Source)
			require.NoError(t, vdiff.Check(graphs[0].Diff))

			if diff := cmp.Diff(canonical(d), canonical(graphs[0].Diff)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTrip_AfterTransformation(t *testing.T) {
	d := parsed(t, `
 #if A
 #if B
 #if C
+x
 #endif
 #endif
 #endif
`)
	require.NoError(t, vdiff.Apply(d, vdiff.CutNonEditedSubtrees{}, vdiff.CollapseNestedNonEditedAnnotations{}))

	out, err := ExportString(TreeSource{Path: "a.h", Commit: "c"}, d, DefaultOptions())
	require.NoError(t, err)
	graphs, err := Import(strings.NewReader(out), DefaultOptions())
	require.NoError(t, err)
	if diff := cmp.Diff(canonical(d), canonical(graphs[0].Diff)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_Layout(t *testing.T) {
	d := parsed(t, "+#if X\n+code\n+#endif\n a\n")
	out, err := ExportString(TreeSource{Path: "f.c", Commit: "abc"}, d, Options{Nodes: TypeFormat{}})
	require.NoError(t, err)

	want := `t # f.c$$$abc
v 0 NON_root
v 1 NON_artifact
v 2 ADD_if
v 3 ADD_artifact
e 1 0 ba
e 2 0 a
e 3 2 a

`
	assert.Equal(t, want, out)
}

func TestExport_SeparateParents(t *testing.T) {
	d := parsed(t, "-#if A\n+#if B\n x\n #endif\n")
	out, err := ExportString(TreeSource{}, d, Options{Nodes: TypeFormat{}})
	require.NoError(t, err)
	assert.Contains(t, out, "e 2 1 b\n")
	assert.Contains(t, out, "e 2 3 a\n")
}

func TestImport_MultipleBlocks(t *testing.T) {
	var sb strings.Builder
	e := NewExporter(&sb, DefaultOptions())
	for _, name := range []string{"add annotation", "moved"} {
		require.NoError(t, e.Export(TreeSource{Path: name, Commit: "h"}, parsed(t, testDiffs[name])))
	}
	trees, _ := e.Stats()
	assert.Equal(t, 2, trees)

	graphs, err := Import(strings.NewReader(sb.String()), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, graphs, 2)
	assert.Equal(t, "moved", graphs[1].Source.Path)
	assert.Equal(t, "moved$$$h", graphs[1].Label)
}

func TestExport_ReleaseMiningFormat(t *testing.T) {
	d := parsed(t, testDiffs["add annotation"])
	opts := Options{Nodes: ReleaseMiningFormat{Oracle: sat.New()}}
	out, err := ExportString(TreeSource{Path: "p", Commit: "c"}, d, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "v 0 m20\n")
	assert.Contains(t, out, "v 1 c8\n")
	assert.Contains(t, out, "v 3 m00\n")
	assert.Contains(t, out, "v 4 c1\n")

	ml, err := ParseMiningLabel("c1")
	require.NoError(t, err)
	assert.Equal(t, MiningLabel{NodeType: vdiff.Artifact, DiffType: vdiff.Add, Pattern: editclass.AddWithMapping}, ml)
}

func TestImport_DirectedEdges(t *testing.T) {
	d := parsed(t, testDiffs["elif chain"])
	out, err := ExportString(TreeSource{Path: "p", Commit: "c"}, d, Options{Edges: DirectedEdgeFormat{Nodes: TypeFormat{}}})
	require.NoError(t, err)
	assert.Contains(t, out, " ba;NON_if;NON_root\n")

	graphs, err := Import(strings.NewReader(out), DefaultOptions())
	require.NoError(t, err)
	if diff := cmp.Diff(canonical(d), canonical(graphs[0].Diff)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_WriteOnlyFormats(t *testing.T) {
	d := parsed(t, " #if A\n-x\n+y\n #endif\n")
	for _, f := range []NodeFormat{TypeFormat{}, ReleaseMiningFormat{Oracle: sat.New()}, DebugFormat{}} {
		t.Run(f.Name(), func(t *testing.T) {
			opts := Options{Nodes: f}
			out, err := ExportString(TreeSource{Path: "p", Commit: "c"}, d, opts)
			require.NoError(t, err)

			graphs, err := Import(strings.NewReader(out), opts)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
			assert.Empty(t, graphs)
		})
	}
}

func TestImport_Errors(t *testing.T) {
	const (
		root     = "NON root -1,-1,-1 -1,-1,-1 -"
		artifact = `NON artifact 2,2,2 3,3,3 - "x"`
		ifA      = `NON if 1,1,1 4,4,4 "A" "#if A"`
	)
	tests := []struct {
		name string
		text string
		line int
	}{
		{"unknown id", "t # p$$$c\nv 0 " + root + "\ne 1 0 ba\n", 3},
		{"junk line", "t # p$$$c\nv 0 " + root + "\nhello\n", 3},
		{"node before header", "v 0 " + root + "\n", 1},
		{"two roots", "t # p$$$c\nv 0 " + root + "\nv 1 " + root + "\n", 3},
		{"no root", "t # p$$$c\nv 0 " + artifact + "\nv 1 " + ifA + "\ne 0 1 ba\ne 1 0 ba\n", 1},
		{"parentless if", "t # p$$$c\nv 0 " + ifA + "\n", 2},
		{"bad edge label", "t # p$$$c\nv 0 " + root + "\nv 1 " + artifact + "\ne 1 0 x\n", 4},
		{"bad tree label", "t # nothing\nv 0 " + root + "\n", 1},
		{"bad node label", "t # p$$$c\nv 0 NON_root\n", 2},
		{"duplicate id", "t # p$$$c\nv 0 " + root + "\nv 0 " + ifA + "\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(strings.NewReader(tt.text), DefaultOptions())
			require.Error(t, err)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "unexpected error %v", err)
			assert.Equal(t, tt.line, se.Line)
		})
	}
}

func TestLineNumberFormat(t *testing.T) {
	d := vdiff.New()
	n := d.NewNode(vdiff.Elif, vdiff.Rem, formula.MustParse(`A && "B C"`),
		vdiff.LineNumber{InDiff: 3, Before: 2, After: vdiff.InvalidLine},
		vdiff.LineNumber{InDiff: 5, Before: 4, After: vdiff.InvalidLine},
		[]string{`#elif A && \`, `  "B C"`})

	f := LineNumberFormat{}
	label := f.Encode(n)
	assert.Equal(t, `REM elif 3,2,-1 5,4,-1 "A && \"B C\"" "#elif A && \\" "  \"B C\""`, label)

	nd, err := f.Decode(label)
	require.NoError(t, err)
	assert.Equal(t, vdiff.Elif, nd.NodeType)
	assert.Equal(t, vdiff.Rem, nd.DiffType)
	assert.Equal(t, n.From, nd.From)
	assert.Equal(t, n.To, nd.To)
	assert.Equal(t, n.Lines, nd.Lines)
	assert.True(t, formula.Equal(n.Formula, nd.Formula))

	nd, err = f.Decode("NON artifact 1,1,1 2,2,2 -")
	require.NoError(t, err)
	assert.Nil(t, nd.Formula)
	assert.Empty(t, nd.Lines)
}

func TestParseMiningLabel(t *testing.T) {
	ml, err := ParseMiningLabel("c3")
	require.NoError(t, err)
	assert.Equal(t, vdiff.Artifact, ml.NodeType)
	assert.Equal(t, vdiff.Rem, ml.DiffType)
	assert.Equal(t, editclass.RemWithMapping, ml.Pattern)

	ml, err = ParseMiningLabel("m12")
	require.NoError(t, err)
	assert.Equal(t, vdiff.Elif, ml.NodeType)
	assert.Equal(t, vdiff.Rem, ml.DiffType)

	for _, bad := range []string{"m24", "m23", "c9", "x", "", "m3"} {
		_, err := ParseMiningLabel(bad)
		assert.Error(t, err, bad)
	}
}

func TestTreeFormats(t *testing.T) {
	src, err := CommitDiffFormat{}.Decode("dir/$$$weird.c$$$abc")
	require.NoError(t, err)
	assert.Equal(t, TreeSource{Path: "dir/$$$weird.c", Commit: "abc"}, src)

	f := &IndexFormat{}
	assert.Equal(t, "0", f.Encode(TreeSource{}))
	assert.Equal(t, "1", f.Encode(TreeSource{}))
	assert.Equal(t, "0", (&IndexFormat{}).Encode(TreeSource{}))
	_, err = f.Decode("x")
	assert.Error(t, err)
}

func TestNodeFormatByName(t *testing.T) {
	for _, name := range []string{"linenumber", "type", "releasemining", "debug"} {
		f, err := NodeFormatByName(name, sat.New())
		require.NoError(t, err)
		assert.Equal(t, name, f.Name())
	}
	_, err := NodeFormatByName("pretty", nil)
	assert.Error(t, err)
}
