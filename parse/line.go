package parse

import (
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/cpp"
	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// Line is one classified physical line of a diff.
type Line struct {
	DiffType  vdiff.DiffType
	Directive cpp.Directive
	// Content is the line without its diff marker.
	Content string
}

// IsArtifact reports whether l is ordinary source code.
func (l Line) IsArtifact() bool {
	return l.Directive == cpp.None
}

// ClassifyLine splits the diff marker off raw and recognizes conditional
// directives. Lines without a marker yield an InvalidDiff error that carries
// no line number.
func ClassifyLine(raw string) (Line, error) {
	if raw == "" {
		return Line{}, fail(InvalidDiff, vdiff.InvalidLineNumber)
	}
	dt, ok := vdiff.DiffTypeOfSymbol(raw[0])
	if !ok {
		return Line{}, fail(InvalidDiff, vdiff.InvalidLineNumber)
	}
	content := raw[1:]
	return Line{DiffType: dt, Directive: cpp.DirectiveOf(content), Content: content}, nil
}

// isNoNewlineMarker reports whether raw is a "\ No newline at end of file"
// line. Such lines describe the previous line and carry no content.
func isNoNewlineMarker(raw string) bool {
	return strings.HasPrefix(raw, `\`)
}

// logicalLine joins physical lines that belong together, because of
// trailing backslashes or an open block comment, for one time.
type logicalLine struct {
	lines     []string
	start     vdiff.LineNumber
	continued bool
	inComment bool
}

func (l *logicalLine) reset() {
	*l = logicalLine{}
}

func (l *logicalLine) consume(line string, n vdiff.LineNumber) {
	if !l.started() {
		l.start = n
	}
	l.continued = strings.HasSuffix(line, `\`)

	open, closed := strings.LastIndex(line, "/*"), strings.LastIndex(line, "*/")
	if open != -1 || closed != -1 {
		l.inComment = open > closed
	}
	l.lines = append(l.lines, line)
}

func (l *logicalLine) started() bool {
	return len(l.lines) > 0
}

func (l *logicalLine) complete() bool {
	return l.started() && !l.continued && !l.inComment
}

// startsMacro reports whether the logical line began with a directive or a
// macro definition.
func (l *logicalLine) startsMacro() bool {
	return l.started() && cpp.IsMacroHeader(l.lines[0])
}

// String joins the physical lines, dropping continuation backslashes.
func (l *logicalLine) String() string {
	var sb strings.Builder
	for _, line := range l.lines {
		sb.WriteString(strings.TrimSuffix(line, `\`))
	}
	return sb.String()
}
