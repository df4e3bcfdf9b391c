// Package linegraph reads and writes variation diffs in the line graph text
// format consumed by graph mining tools.
//
// A line graph file holds one block per variation diff:
//
//	t # <tree label>
//	v <id> <node label>
//	e <child id> <parent id> <edge label>
//
// Blocks are separated by a blank line. Edge labels start with "b", "a" or
// "ba" for an edge before the edit, after the edit or at both times.
package linegraph

import (
	"errors"
	"fmt"
)

const (
	TreeHeader = "t #"
	NodePrefix = "v"
	EdgePrefix = "e"

	BeforeEdge          = "b"
	AfterEdge           = "a"
	BeforeAndAfterEdge  = "ba"
	treeLabelSeparator  = "$$$"
	directedEdgeDivider = ";"
)

// ErrUnsupportedFormat is returned when decoding a label format that cannot
// be read back.
var ErrUnsupportedFormat = errors.New("label format does not support reading")

// SyntaxError reports a malformed line of a line graph file.
type SyntaxError struct {
	Line int // 1-based line in the input
	Text string
	Msg  string
	Err  error
}

func (e *SyntaxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line graph syntax error at line %d %q: %s: %v", e.Line, e.Text, e.Msg, e.Err)
	}
	return fmt.Sprintf("line graph syntax error at line %d %q: %s", e.Line, e.Text, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Options select the label formats used for export and import.
type Options struct {
	Nodes NodeFormat
	Edges EdgeFormat
	Trees TreeFormat
}

// DefaultOptions writes lossless node labels, plain edge labels and commit
// tree labels.
func DefaultOptions() Options {
	return Options{
		Nodes: LineNumberFormat{},
		Edges: DefaultEdgeFormat{},
		Trees: CommitDiffFormat{},
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Nodes == nil {
		o.Nodes = def.Nodes
	}
	if o.Edges == nil {
		o.Edges = def.Edges
	}
	if o.Trees == nil {
		o.Trees = def.Trees
	}
	return o
}
