package linegraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/editclass"
	"github.com/VariantSync/DiffDetective-sub004/formula"
	"github.com/VariantSync/DiffDetective-sub004/sat"
	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// NodeData is the content of a node label, detached from any graph.
type NodeData struct {
	NodeType vdiff.NodeType
	DiffType vdiff.DiffType
	Formula  formula.Formula
	From, To vdiff.LineNumber
	Lines    []string
}

// NodeFormat encodes nodes as single line labels. Decode returns
// ErrUnsupportedFormat for formats that lose information.
type NodeFormat interface {
	Name() string
	Encode(n *vdiff.Node) string
	Decode(label string) (NodeData, error)
}

// NodeFormatByName returns the node format called name. The oracle is used
// by formats that classify artifacts.
func NodeFormatByName(name string, o sat.Oracle) (NodeFormat, error) {
	switch name {
	case LineNumberFormat{}.Name():
		return LineNumberFormat{}, nil
	case TypeFormat{}.Name():
		return TypeFormat{}, nil
	case ReleaseMiningFormat{}.Name():
		return ReleaseMiningFormat{Oracle: o}, nil
	case DebugFormat{}.Name():
		return DebugFormat{}, nil
	}
	return nil, fmt.Errorf("unknown node format %q", name)
}

// LineNumberFormat is lossless. A label lists the diff type, node type,
// first line and end line, the quoted formula or "-", and the quoted source
// lines:
//
//	NON if 1,1,1 4,4,4 "A && B" "#if A && B"
type LineNumberFormat struct{}

func (LineNumberFormat) Name() string { return "linenumber" }

func (LineNumberFormat) Encode(n *vdiff.Node) string {
	var sb strings.Builder
	sb.WriteString(n.DiffType.String())
	sb.WriteByte(' ')
	sb.WriteString(n.NodeType.String())
	sb.WriteByte(' ')
	sb.WriteString(encodeLineNumber(n.From))
	sb.WriteByte(' ')
	sb.WriteString(encodeLineNumber(n.To))
	sb.WriteByte(' ')
	if n.Formula == nil {
		sb.WriteByte('-')
	} else {
		sb.WriteString(strconv.Quote(formula.Format(n.Formula)))
	}
	for _, line := range n.Lines {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(line))
	}
	return sb.String()
}

func (LineNumberFormat) Decode(label string) (NodeData, error) {
	var nd NodeData
	fields := strings.SplitN(label, " ", 5)
	if len(fields) < 5 {
		return nd, fmt.Errorf("expected at least 5 fields in %q", label)
	}

	var err error
	if nd.DiffType, err = vdiff.ParseDiffType(fields[0]); err != nil {
		return nd, err
	}
	if nd.NodeType, err = vdiff.ParseNodeType(fields[1]); err != nil {
		return nd, err
	}
	if nd.From, err = decodeLineNumber(fields[2]); err != nil {
		return nd, err
	}
	if nd.To, err = decodeLineNumber(fields[3]); err != nil {
		return nd, err
	}

	rest := fields[4]
	if strings.HasPrefix(rest, "-") {
		rest = rest[1:]
	} else {
		text, n, err := unquotePrefix(rest)
		if err != nil {
			return nd, fmt.Errorf("reading formula: %w", err)
		}
		if nd.Formula, err = formula.Parse(text); err != nil {
			return nd, err
		}
		rest = rest[n:]
	}

	for rest != "" {
		if rest[0] != ' ' {
			return nd, fmt.Errorf("expected a space before %q", rest)
		}
		line, n, err := unquotePrefix(rest[1:])
		if err != nil {
			return nd, fmt.Errorf("reading source line: %w", err)
		}
		nd.Lines = append(nd.Lines, line)
		rest = rest[1+n:]
	}
	return nd, nil
}

func unquotePrefix(s string) (string, int, error) {
	q, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", 0, err
	}
	text, err := strconv.Unquote(q)
	return text, len(q), err
}

func encodeLineNumber(l vdiff.LineNumber) string {
	return fmt.Sprintf("%d,%d,%d", l.InDiff, l.Before, l.After)
}

func decodeLineNumber(s string) (vdiff.LineNumber, error) {
	var l vdiff.LineNumber
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return l, fmt.Errorf("malformed line number %q", s)
	}
	var ns [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return l, fmt.Errorf("malformed line number %q: %w", s, err)
		}
		ns[i] = n
	}
	return vdiff.LineNumber{InDiff: ns[0], Before: ns[1], After: ns[2]}, nil
}

// TypeFormat encodes only the diff type and node type, as in "ADD_if". It
// cannot be read back.
type TypeFormat struct{}

func (TypeFormat) Name() string { return "type" }

func (TypeFormat) Encode(n *vdiff.Node) string {
	return n.DiffType.String() + "_" + n.NodeType.String()
}

func (TypeFormat) Decode(string) (NodeData, error) {
	return NodeData{}, ErrUnsupportedFormat
}

// ReleaseMiningFormat is the compact format of released mining results.
// Artifacts are labeled "c" followed by the index of their edit pattern and
// annotations "m" followed by the diff type and node type numbers. The root
// is written as an unchanged if. Use ParseMiningLabel to read single labels,
// whole graphs cannot be imported.
type ReleaseMiningFormat struct {
	Oracle sat.Oracle
}

func (ReleaseMiningFormat) Name() string { return "releasemining" }

func (f ReleaseMiningFormat) Encode(n *vdiff.Node) string {
	if n.IsArtifact() {
		o := f.Oracle
		if o == nil {
			o = sat.New()
		}
		return fmt.Sprintf("c%d", int(editclass.Classify(n, o).Pattern))
	}
	nt := n.NodeType
	if nt == vdiff.Root {
		nt = vdiff.If
	}
	return fmt.Sprintf("m%d%d", int(n.DiffType), int(nt))
}

func (ReleaseMiningFormat) Decode(string) (NodeData, error) {
	return NodeData{}, ErrUnsupportedFormat
}

// MiningLabel is the content of a ReleaseMiningFormat label. Pattern is
// only set for artifacts.
type MiningLabel struct {
	NodeType vdiff.NodeType
	DiffType vdiff.DiffType
	Pattern  editclass.Pattern
}

// ParseMiningLabel reads one ReleaseMiningFormat label.
func ParseMiningLabel(label string) (MiningLabel, error) {
	var ml MiningLabel
	if label == "" {
		return ml, fmt.Errorf("empty label")
	}
	switch label[0] {
	case 'c':
		i, err := strconv.Atoi(label[1:])
		if err != nil {
			return ml, fmt.Errorf("malformed pattern index in %q: %w", label, err)
		}
		p := editclass.Pattern(i)
		if !p.Valid() {
			return ml, fmt.Errorf("unknown pattern index %d", i)
		}
		ml.NodeType = vdiff.Artifact
		ml.DiffType = p.DiffType()
		ml.Pattern = p
		return ml, nil
	case 'm':
		if len(label) != 3 || label[1] < '0' || label[1] > '9' || label[2] < '0' || label[2] > '9' {
			return ml, fmt.Errorf("malformed annotation label %q", label)
		}
		ml.DiffType = vdiff.DiffType(label[1] - '0')
		ml.NodeType = vdiff.NodeType(label[2] - '0')
		if ml.DiffType > vdiff.Non || ml.NodeType == vdiff.Artifact || ml.NodeType > vdiff.Root {
			return ml, fmt.Errorf("invalid annotation label %q", label)
		}
		if ml.NodeType == vdiff.Root {
			return ml, fmt.Errorf("label %q names the root, which is written as an if", label)
		}
		return ml, nil
	}
	return ml, fmt.Errorf("unknown label %q", label)
}

// DebugFormat writes human readable labels for inspection. It cannot be
// read back.
type DebugFormat struct{}

func (DebugFormat) Name() string { return "debug" }

func (DebugFormat) Encode(n *vdiff.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s_%s #%d diff%s", n.DiffType, n.NodeType, n.ID, n.LinesInDiff())
	if n.Formula != nil {
		fmt.Fprintf(&sb, " [%s]", formula.Format(n.Formula))
	}
	if len(n.Lines) > 0 {
		first := strings.TrimSpace(n.Lines[0])
		if len(n.Lines) > 1 {
			first += " ..."
		}
		fmt.Fprintf(&sb, " %q", first)
	}
	return sb.String()
}

func (DebugFormat) Decode(string) (NodeData, error) {
	return NodeData{}, ErrUnsupportedFormat
}
