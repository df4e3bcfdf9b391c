package linegraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// EdgeFormat writes the label of the edge from child to parent. base is one
// of BeforeEdge, AfterEdge and BeforeAndAfterEdge and must start the label.
//
// Readers only look at that prefix, so every edge format can be read.
type EdgeFormat interface {
	Encode(child, parent *vdiff.Node, base string) string
}

// DefaultEdgeFormat writes just the base label.
type DefaultEdgeFormat struct{}

func (DefaultEdgeFormat) Encode(_, _ *vdiff.Node, base string) string {
	return base
}

// DirectedEdgeFormat appends the labels of both end points, as in
// "ba;<child label>;<parent label>".
type DirectedEdgeFormat struct {
	Nodes NodeFormat
}

func (f DirectedEdgeFormat) Encode(child, parent *vdiff.Node, base string) string {
	return base + directedEdgeDivider + f.Nodes.Encode(child) + directedEdgeDivider + f.Nodes.Encode(parent)
}

// decodeEdge returns the times an edge label stands for.
func decodeEdge(label string) ([]vdiff.Time, bool) {
	switch {
	case strings.HasPrefix(label, BeforeAndAfterEdge):
		return []vdiff.Time{vdiff.Before, vdiff.After}, true
	case strings.HasPrefix(label, BeforeEdge):
		return []vdiff.Time{vdiff.Before}, true
	case strings.HasPrefix(label, AfterEdge):
		return []vdiff.Time{vdiff.After}, true
	}
	return nil, false
}

// TreeSource tells where a variation diff was taken from.
type TreeSource struct {
	Path   string
	Commit string
}

func (s TreeSource) String() string {
	if s.Commit == "" {
		return s.Path
	}
	return s.Path + "@" + s.Commit
}

// TreeFormat writes and reads the label in the header line of a block.
type TreeFormat interface {
	Encode(src TreeSource) string
	Decode(label string) (TreeSource, error)
}

// CommitDiffFormat labels a tree with "<path>$$$<commit hash>".
type CommitDiffFormat struct{}

func (CommitDiffFormat) Encode(src TreeSource) string {
	return src.Path + treeLabelSeparator + src.Commit
}

func (CommitDiffFormat) Decode(label string) (TreeSource, error) {
	i := strings.LastIndex(label, treeLabelSeparator)
	if i < 0 {
		return TreeSource{}, fmt.Errorf("expected <path>%s<commit> but got %q", treeLabelSeparator, label)
	}
	return TreeSource{Path: label[:i], Commit: label[i+len(treeLabelSeparator):]}, nil
}

// IndexFormat labels trees with consecutive numbers starting at 0. Each
// IndexFormat counts on its own, so use a fresh one per export run.
type IndexFormat struct {
	next int
}

func (f *IndexFormat) Encode(TreeSource) string {
	s := strconv.Itoa(f.next)
	f.next++
	return s
}

// Decode accepts any index. The source of an indexed tree is unknown.
func (f *IndexFormat) Decode(label string) (TreeSource, error) {
	if _, err := strconv.Atoi(label); err != nil {
		return TreeSource{}, fmt.Errorf("malformed tree index %q", label)
	}
	return TreeSource{}, nil
}
