package linegraph

import (
	"fmt"
	"io"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// Exporter writes variation diffs as line graph blocks.
type Exporter struct {
	w    io.Writer
	opts Options

	trees int
	nodes int
}

// NewExporter returns an exporter writing to w. Missing formats in opts
// are taken from DefaultOptions.
func NewExporter(w io.Writer, opts Options) *Exporter {
	return &Exporter{w: w, opts: opts.withDefaults()}
}

// Export writes d as one block. Node ids are assigned in traversal order
// starting at 0.
func (e *Exporter) Export(src TreeSource, d *vdiff.VariationDiff) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", TreeHeader, e.opts.Trees.Encode(src))

	ids := make(map[int]int, d.Len())
	var order []*vdiff.Node
	d.Walk(func(n *vdiff.Node) bool {
		ids[n.ID] = len(order)
		order = append(order, n)
		return true
	})

	for _, n := range order {
		fmt.Fprintf(&sb, "%s %d %s\n", NodePrefix, ids[n.ID], e.opts.Nodes.Encode(n))
	}

	edge := func(child, parent *vdiff.Node, base string) {
		fmt.Fprintf(&sb, "%s %d %d %s\n", EdgePrefix, ids[child.ID], ids[parent.ID], e.opts.Edges.Encode(child, parent, base))
	}
	for _, n := range order {
		before, after := n.Parent(vdiff.Before), n.Parent(vdiff.After)
		switch {
		case before != nil && before == after:
			edge(n, before, BeforeAndAfterEdge)
		default:
			if before != nil {
				edge(n, before, BeforeEdge)
			}
			if after != nil {
				edge(n, after, AfterEdge)
			}
		}
	}
	sb.WriteString("\n")

	if _, err := io.WriteString(e.w, sb.String()); err != nil {
		return fmt.Errorf("writing line graph: %w", err)
	}
	e.trees++
	e.nodes += len(order)
	return nil
}

// Stats returns the number of trees and nodes written so far.
func (e *Exporter) Stats() (trees, nodes int) {
	return e.trees, e.nodes
}

// ExportString renders d as a single line graph block.
func ExportString(src TreeSource, d *vdiff.VariationDiff, opts Options) (string, error) {
	var sb strings.Builder
	if err := NewExporter(&sb, opts).Export(src, d); err != nil {
		return "", err
	}
	return sb.String(), nil
}
