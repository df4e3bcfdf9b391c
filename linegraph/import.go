package linegraph

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// Graph is one variation diff read from a line graph.
type Graph struct {
	// Label is the raw tree label of the block header.
	Label  string
	Source TreeSource
	Diff   *vdiff.VariationDiff
}

type rawLine struct {
	num  int
	text string
}

type block struct {
	header rawLine
	nodes  []rawLine
	edges  []rawLine
}

// Import reads all variation diffs from r. The node format of opts must be
// readable.
//
// Each block is built in two passes: nodes first, then edges. The root is
// the node without parents. When every node carries line numbers, children
// are ordered by their position in the diff.
func Import(r io.Reader, opts Options) ([]Graph, error) {
	opts = opts.withDefaults()

	var (
		graphs []Graph
		cur    *block
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		g, err := build(cur, opts)
		if err != nil {
			return err
		}
		graphs = append(graphs, g)
		cur = nil
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 16<<20)
	num := 0
	for sc.Scan() {
		num++
		l := rawLine{num: num, text: sc.Text()}
		switch {
		case strings.HasPrefix(l.text, TreeHeader):
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &block{header: l}
		case strings.HasPrefix(l.text, NodePrefix+" "):
			if cur == nil {
				return nil, syntaxError(l, "node outside of a tree", nil)
			}
			cur.nodes = append(cur.nodes, l)
		case strings.HasPrefix(l.text, EdgePrefix+" "):
			if cur == nil {
				return nil, syntaxError(l, "edge outside of a tree", nil)
			}
			cur.edges = append(cur.edges, l)
		case strings.TrimSpace(l.text) == "":
		default:
			return nil, syntaxError(l, fmt.Sprintf("expected %q, %q, %q or a blank line", TreeHeader, NodePrefix, EdgePrefix), nil)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading line graph: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return graphs, nil
}

func syntaxError(l rawLine, msg string, err error) *SyntaxError {
	return &SyntaxError{Line: l.num, Text: l.text, Msg: msg, Err: err}
}

func build(b *block, opts Options) (Graph, error) {
	label := strings.TrimSpace(strings.TrimPrefix(b.header.text, TreeHeader))
	src, err := opts.Trees.Decode(label)
	if err != nil {
		return Graph{}, syntaxError(b.header, "malformed tree label", err)
	}

	type pending struct {
		data NodeData
		line rawLine
	}
	byID := make(map[int]*pending, len(b.nodes))
	var ids []int
	for _, l := range b.nodes {
		idText, labelText, _ := strings.Cut(strings.TrimPrefix(l.text, NodePrefix+" "), " ")
		id, err := strconv.Atoi(idText)
		if err != nil || id < 0 {
			return Graph{}, syntaxError(l, "malformed node id", err)
		}
		if _, dup := byID[id]; dup {
			return Graph{}, syntaxError(l, fmt.Sprintf("duplicate node id %d", id), nil)
		}
		data, err := opts.Nodes.Decode(labelText)
		if err != nil {
			return Graph{}, syntaxError(l, "malformed node label", err)
		}
		byID[id] = &pending{data: data, line: l}
		ids = append(ids, id)
	}

	type link struct {
		child, parent int
		times         []vdiff.Time
		line          rawLine
	}
	links := make([]link, 0, len(b.edges))
	hasParent := make(map[int]bool, len(b.nodes))
	for _, l := range b.edges {
		fields := strings.SplitN(strings.TrimPrefix(l.text, EdgePrefix+" "), " ", 3)
		if len(fields) != 3 {
			return Graph{}, syntaxError(l, "expected child id, parent id and label", nil)
		}
		child, err1 := strconv.Atoi(fields[0])
		parent, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			return Graph{}, syntaxError(l, "malformed node id", nil)
		}
		for _, id := range []int{child, parent} {
			if _, ok := byID[id]; !ok {
				return Graph{}, syntaxError(l, fmt.Sprintf("unknown node id %d", id), nil)
			}
		}
		times, ok := decodeEdge(fields[2])
		if !ok {
			return Graph{}, syntaxError(l, fmt.Sprintf("unknown edge label %q", fields[2]), nil)
		}
		links = append(links, link{child: child, parent: parent, times: times, line: l})
		hasParent[child] = true
	}

	rootID := -1
	for _, id := range ids {
		if hasParent[id] {
			continue
		}
		p := byID[id]
		if rootID >= 0 {
			return Graph{}, syntaxError(p.line, fmt.Sprintf("second root, node %d has no parent as well", rootID), nil)
		}
		if p.data.NodeType != vdiff.Root {
			return Graph{}, syntaxError(p.line, fmt.Sprintf("node without parents is a %s", p.data.NodeType), nil)
		}
		rootID = id
	}
	if rootID < 0 {
		return Graph{}, syntaxError(b.header, "variation diff without root", nil)
	}

	d := vdiff.New()
	nodes := make(map[int]*vdiff.Node, len(ids))
	lineNumbers := true
	for _, id := range ids {
		nd := byID[id].data
		if id == rootID {
			nodes[id] = d.Root()
			continue
		}
		if nd.NodeType == vdiff.Root {
			return Graph{}, syntaxError(byID[id].line, "root with a parent", nil)
		}
		nodes[id] = d.NewNode(nd.NodeType, nd.DiffType, nd.Formula, nd.From, nd.To, nd.Lines)
		if nd.From.InDiff == vdiff.InvalidLine {
			lineNumbers = false
		}
	}

	for _, l := range links {
		child, parent := nodes[l.child], nodes[l.parent]
		for _, t := range l.times {
			if err := parent.AddChild(child, t); err != nil {
				return Graph{}, syntaxError(l.line, "invalid edge", err)
			}
		}
	}

	if lineNumbers {
		for _, n := range d.Nodes() {
			for _, t := range vdiff.Times {
				n.SortChildren(t, func(a, b *vdiff.Node) int {
					return cmp.Compare(a.From.InDiff, b.From.InDiff)
				})
			}
		}
	}

	return Graph{Label: label, Source: src, Diff: d}, nil
}
