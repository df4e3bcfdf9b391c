// Package cpp recognizes C preprocessor conditional directives and extracts
// their conditions as propositional formulas.
package cpp

import "regexp"

// Directive is the kind of preprocessor directive found on a line.
type Directive string

const (
	None   Directive = ""
	If     Directive = "if"
	Ifdef  Directive = "ifdef"
	Ifndef Directive = "ifndef"
	Elif   Directive = "elif"
	Else   Directive = "else"
	Endif  Directive = "endif"
)

// The text after the keyword must not continue the keyword itself, so
// "#ifdef" is never taken for "#if" and "#include" is no directive at all.
var directivePattern = regexp.MustCompile(`^[+-]?\s*#\s*(ifdef|ifndef|if|elif|else|endif)(?:[^A-Za-z0-9_]|$)`)

var (
	definePattern  = regexp.MustCompile(`^[+-]?\s*#\s*define\b`)
	unknownPattern = regexp.MustCompile(`^[+-]?\s*#\s*((?:if|elif|else|endif)[A-Za-z0-9_]+)`)
)

// DirectiveOf returns the conditional directive on a line, or None.
// A leading diff marker is allowed.
func DirectiveOf(line string) Directive {
	m := directivePattern.FindStringSubmatch(line)
	if m == nil {
		return None
	}
	return Directive(m[1])
}

// IsConditional reports whether d opens, continues or closes a conditional
// block.
func (d Directive) IsConditional() bool {
	return d != None
}

// HasCondition reports whether d carries a formula.
func (d Directive) HasCondition() bool {
	switch d {
	case If, Ifdef, Ifndef, Elif:
		return true
	}
	return false
}

// IsMacroHeader reports whether line starts a conditional directive or a
// macro definition, the two constructs that may span several physical lines.
func IsMacroHeader(line string) bool {
	return DirectiveOf(line).IsConditional() || definePattern.MatchString(line)
}

// UnknownDirective returns the name of a directive that starts like a
// conditional one but is none of them, such as "#elifdef" or "#endiff".
func UnknownDirective(line string) (string, bool) {
	if DirectiveOf(line) != None {
		return "", false
	}
	m := unknownPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}
