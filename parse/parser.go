// Package parse builds variation diffs from unified diffs of C preprocessor
// annotated source files.
package parse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/cpp"
	"github.com/VariantSync/DiffDetective-sub004/formula"
	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// maxLineSize bounds a single physical line of the input.
const maxLineSize = 16 << 20

// Options configure the parser.
type Options struct {
	// CollapseMultipleCodeLines merges consecutive artifact lines of the same
	// diff type into one node.
	CollapseMultipleCodeLines bool
	// IgnoreEmptyLines skips lines that contain only whitespace.
	IgnoreEmptyLines bool
	// Formulas extracts the conditions of directives. Nil means an
	// Extractor without macro resolver.
	Formulas *cpp.Extractor
}

// DefaultOptions collapses code lines and keeps empty lines.
func DefaultOptions() Options {
	return Options{CollapseMultipleCodeLines: true}
}

// ParseDiff parses the body of a unified diff of one file. Every line must
// start with "+", "-" or a space. Hunk headers are not supported.
func ParseDiff(text string, opts Options) (*vdiff.VariationDiff, error) {
	return ParseDiffReader(strings.NewReader(text), opts)
}

// ParseDiffReader is like ParseDiff but reads the diff from r.
func ParseDiffReader(r io.Reader, opts Options) (*vdiff.VariationDiff, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	p := newParser(opts)
	return p.run(func() (Line, bool, error) {
		for sc.Scan() {
			raw := sc.Text()
			if isNoNewlineMarker(raw) {
				continue
			}
			l, err := ClassifyLine(raw)
			return l, true, err
		}
		return Line{}, false, sc.Err()
	})
}

// ParseVariationTree parses a plain source file as if every line was
// unchanged. The result has only unchanged nodes.
func ParseVariationTree(src io.Reader, opts Options) (*vdiff.VariationDiff, error) {
	sc := bufio.NewScanner(src)
	sc.Buffer(nil, maxLineSize)
	p := newParser(opts)
	return p.run(func() (Line, bool, error) {
		if sc.Scan() {
			content := sc.Text()
			return Line{DiffType: vdiff.Non, Directive: cpp.DirectiveOf(content), Content: content}, true, nil
		}
		return Line{}, false, sc.Err()
	})
}

// HasDiffMarkers reports whether some line of src starts with "+" or "-",
// which suggests that a diff was passed where a source file was expected.
func HasDiffMarkers(src string) bool {
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			return true
		}
	}
	return false
}

// frame is an open #if chain at one time. branch is the If, Elif or Else
// that receives new children, or the root for the bottom frame.
type frame struct {
	branch *vdiff.Node
}

type parser struct {
	opts Options
	x    *cpp.Extractor
	d    *vdiff.VariationDiff

	stacks [2][]frame
	lines  [2]logicalLine

	// lastArtifact is the artifact created by the previous logical line, if
	// any. Following artifact lines may be merged into it.
	lastArtifact *vdiff.Node
}

func newParser(opts Options) *parser {
	x := opts.Formulas
	if x == nil {
		x = &cpp.Extractor{}
	}
	d := vdiff.New()
	p := &parser{opts: opts, x: x, d: d}
	for _, t := range vdiff.Times {
		p.stacks[t] = []frame{{branch: d.Root()}}
	}
	return p
}

func (p *parser) run(next func() (Line, bool, error)) (*vdiff.VariationDiff, error) {
	lineNumber := vdiff.LineNumber{}
	isNon := false
	before, after := &p.lines[vdiff.Before], &p.lines[vdiff.After]

	for {
		line, ok, err := next()
		if err != nil {
			var pe *Error
			if errors.As(err, &pe) {
				pe.Line = lineNumber.Shift(1)
				return nil, pe
			}
			return nil, fmt.Errorf("reading diff: %w", err)
		}
		if !ok {
			break
		}

		dt := line.DiffType
		lineNumber = lineNumber.Add(1, dt)

		if p.opts.IgnoreEmptyLines && strings.TrimSpace(line.Content) == "" {
			continue
		}

		isNon = dt == vdiff.Non && (isNon || (!before.started() && !after.started()))

		for _, t := range dt.Times() {
			ll := &p.lines[t]
			if ll.startsMacro() && cpp.IsMacroHeader(line.Content) && strings.HasSuffix(line.Content, `\`) {
				return nil, fail(MlMacroWithinMlMacro, lineNumber)
			}
			ll.consume(line.Content, lineNumber)
		}

		if isNon && before.complete() && after.complete() {
			if err := p.parseLine(before, vdiff.Non, lineNumber); err != nil {
				return nil, err
			}
			before.reset()
			after.reset()
			continue
		}
		if before.complete() {
			if err := p.parseLine(before, vdiff.Rem, lineNumber); err != nil {
				return nil, err
			}
			before.reset()
		}
		if after.complete() {
			if err := p.parseLine(after, vdiff.Add, lineNumber); err != nil {
				return nil, err
			}
			after.reset()
		}
	}

	if before.started() || after.started() {
		return nil, fail(InvalidLineContinuation, lineNumber)
	}
	for _, t := range vdiff.Times {
		if s := p.stacks[t]; len(s) > 1 {
			return nil, fail(NotAllAnnotationsClosed, s[len(s)-1].branch.From)
		}
	}

	vdiff.AssertConsistency(p.d)
	return p.d, nil
}

// parseLine turns a complete logical line into a node, or closes a chain
// for #endif. last is the number of the last physical line of ll.
func (p *parser) parseLine(ll *logicalLine, dt vdiff.DiffType, last vdiff.LineNumber) error {
	from := ll.start.As(dt)
	to := last.Shift(1).As(dt)
	text := ll.String()

	if name, ok := cpp.UnknownDirective(text); ok {
		return &Error{Kind: InvalidMacroName, Line: from, Err: fmt.Errorf("unknown directive #%s", name)}
	}

	directive := cpp.DirectiveOf(text)
	switch directive {
	case cpp.Endif:
		p.lastArtifact = nil
		return p.endif(dt, from)
	case cpp.None:
		if p.opts.CollapseMultipleCodeLines && p.lastArtifact != nil &&
			p.lastArtifact.DiffType == dt && p.lastArtifact.To.InDiff == from.InDiff {
			p.lastArtifact.Lines = append(p.lastArtifact.Lines, ll.lines...)
			p.lastArtifact.To = to
			return nil
		}
		n := p.d.NewNode(vdiff.Artifact, dt, nil, from, to, copyLines(ll.lines))
		link(n, p.parents(dt))
		p.lastArtifact = n
		return nil
	}

	p.lastArtifact = nil
	var f formula.Formula
	if directive.HasCondition() {
		var err error
		if f, err = p.x.Parse(text); err != nil {
			return &Error{Kind: IfWithoutCondition, Line: from, Err: err}
		}
	}

	switch directive {
	case cpp.If, cpp.Ifdef, cpp.Ifndef:
		n := p.d.NewNode(vdiff.If, dt, f, from, to, copyLines(ll.lines))
		link(n, p.parents(dt))
		for _, t := range dt.Times() {
			p.stacks[t] = append(p.stacks[t], frame{branch: n})
		}
		return nil
	}

	nt := vdiff.Elif
	if directive == cpp.Else {
		nt = vdiff.Else
	}
	n := p.d.NewNode(nt, dt, f, from, to, copyLines(ll.lines))

	// An elif or else continues the chain of the innermost open #if as a
	// sibling of the branch it closes.
	var parents [2]*vdiff.Node
	for _, t := range dt.Times() {
		s := p.stacks[t]
		if len(s) == 1 {
			return fail(ElseOrElifWithoutIf, from)
		}
		top := s[len(s)-1].branch
		if top.IsElse() {
			return fail(ElseAfterElse, from)
		}
		parents[t] = top.Parent(t)
	}
	for _, t := range dt.Times() {
		s := p.stacks[t]
		closeBranch(s[len(s)-1].branch, t, from)
		s[len(s)-1].branch = n
	}
	link(n, parents)
	return nil
}

func (p *parser) endif(dt vdiff.DiffType, from vdiff.LineNumber) error {
	for _, t := range dt.Times() {
		if len(p.stacks[t]) == 1 {
			return fail(EndifWithoutIf, from)
		}
	}
	for _, t := range dt.Times() {
		s := p.stacks[t]
		closeBranch(s[len(s)-1].branch, t, from)
		p.stacks[t] = s[:len(s)-1]
	}
	return nil
}

// parents returns the branches receiving new content of diff type dt.
func (p *parser) parents(dt vdiff.DiffType) [2]*vdiff.Node {
	var out [2]*vdiff.Node
	for _, t := range dt.Times() {
		s := p.stacks[t]
		out[t] = s[len(s)-1].branch
	}
	return out
}

// link adds n below parents. The parser only links fresh nodes below open
// branches existing at the same times, so a failure is a bug.
func link(n *vdiff.Node, parents [2]*vdiff.Node) {
	if err := n.AddBelow(parents[vdiff.Before], parents[vdiff.After]); err != nil {
		panic(fmt.Sprintf("parse: %v", err))
	}
}

// closeBranch ends branch at time t where the directive starting at line
// closing begins.
func closeBranch(branch *vdiff.Node, t vdiff.Time, closing vdiff.LineNumber) {
	to := branch.To
	to.InDiff = max(closing.InDiff, to.InDiff)
	branch.To = to.With(t, closing.At(t))
}

func copyLines(lines []string) []string {
	return append([]string(nil), lines...)
}
