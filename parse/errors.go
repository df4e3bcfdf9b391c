package parse

import (
	"errors"
	"fmt"

	"github.com/VariantSync/DiffDetective-sub004/vdiff"
)

// ErrorKind names why a diff could not be parsed.
type ErrorKind string

const (
	// InvalidDiff is reported for a line without a "+", "-" or " " marker.
	InvalidDiff ErrorKind = "InvalidDiff"
	// InvalidLineContinuation is reported when the input ends inside a
	// logical line, after a trailing backslash or in an open comment.
	InvalidLineContinuation ErrorKind = "InvalidLineContinuation"
	NotAllAnnotationsClosed ErrorKind = "NotAllAnnotationsClosed"
	EndifWithoutIf          ErrorKind = "EndifWithoutIf"
	ElseOrElifWithoutIf     ErrorKind = "ElseOrElifWithoutIf"
	ElseAfterElse           ErrorKind = "ElseAfterElse"
	// IfWithoutCondition is reported for an #if, #ifdef, #ifndef or #elif
	// without a usable condition.
	IfWithoutCondition   ErrorKind = "IfWithoutCondition"
	MlMacroWithinMlMacro ErrorKind = "MlMacroWithinMlMacro"
	// InvalidMacroName is reported for a directive that starts like a
	// conditional directive but is none, for example #elifdef.
	InvalidMacroName ErrorKind = "InvalidMacroName"
)

// ErrorKinds lists every kind in a stable order.
var ErrorKinds = []ErrorKind{
	InvalidDiff,
	InvalidLineContinuation,
	NotAllAnnotationsClosed,
	EndifWithoutIf,
	ElseOrElifWithoutIf,
	ElseAfterElse,
	IfWithoutCondition,
	MlMacroWithinMlMacro,
	InvalidMacroName,
}

// Error is a recoverable parse failure at a line of the diff.
type Error struct {
	Kind ErrorKind
	Line vdiff.LineNumber
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at diff line %d: %v", e.Kind, e.Line.InDiff, e.Err)
	}
	return fmt.Sprintf("%s at diff line %d", e.Kind, e.Line.InDiff)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the parse error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

func fail(kind ErrorKind, line vdiff.LineNumber) *Error {
	return &Error{Kind: kind, Line: line}
}
