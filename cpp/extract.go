package cpp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/VariantSync/DiffDetective-sub004/formula"
)

var (
	conditionPattern = regexp.MustCompile(`^[+-]?\s*#\s*(if|ifdef|ifndef|elif)(\s+(.*)|(\(.*\)))$`)
	blockComment     = regexp.MustCompile(`/\*.*?\*/`)
	definedCall      = regexp.MustCompile(`\bdefined\s*\(([^)]*)\)`)
	definedPrefix    = regexp.MustCompile(`\bdefined\s+`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// ExtractError reports a conditional directive without a usable condition.
type ExtractError struct {
	Line string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("could not extract formula from line %q", e.Line)
}

// MacroResolver rewrites repository specific feature macros before the
// condition is abstracted, for example ENABLED(X) into X.
type MacroResolver interface {
	Resolve(condition string) string
}

// MacroResolverFunc adapts a function to MacroResolver.
type MacroResolverFunc func(string) string

func (f MacroResolverFunc) Resolve(condition string) string { return f(condition) }

// Extractor turns preprocessor directive lines into formulas.
// The zero value is ready to use and resolves no custom macros.
type Extractor struct {
	Resolver MacroResolver
}

// Extract returns the normalized condition text of a conditional directive
// line. The line may carry a leading diff marker and backslash continuations
// must already be joined. For #ifndef the condition is negated.
func (x *Extractor) Extract(line string) (string, error) {
	m := conditionPattern.FindStringSubmatch(line)
	if m == nil {
		return "", &ExtractError{Line: line}
	}
	fm := m[3]
	if m[4] != "" {
		fm = m[4]
	}

	fm = stripComments(fm)
	fm = definedCall.ReplaceAllString(fm, "${1}")
	fm = definedPrefix.ReplaceAllString(fm, "")
	if x != nil && x.Resolver != nil {
		fm = x.Resolver.Resolve(fm)
	}
	fm = whitespace.ReplaceAllString(fm, "")
	fm = AbstractCalls(fm)
	fm = AbstractArithmetics(fm)

	if fm == "" {
		return "", &ExtractError{Line: line}
	}
	if m[1] == string(Ifndef) {
		fm = "!(" + fm + ")"
	}
	return fm, nil
}

// Parse extracts the condition of line and parses it. A condition that is
// extracted but not well-formed becomes a single variable named by the
// extracted text.
func (x *Extractor) Parse(line string) (formula.Formula, error) {
	text, err := x.Extract(line)
	if err != nil {
		return nil, err
	}
	return formula.ParseOrLiteral(text), nil
}

func stripComments(s string) string {
	s = blockComment.ReplaceAllString(s, "")
	if before, _, found := strings.Cut(s, "//"); found {
		s = before
	}
	// An unterminated block comment runs to the end of the logical line.
	if before, _, found := strings.Cut(s, "/*"); found {
		s = before
	}
	return s
}
