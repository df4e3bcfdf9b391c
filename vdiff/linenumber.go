package vdiff

import "fmt"

// InvalidLine marks a line number that does not exist, for example the
// before line number of an added line.
const InvalidLine = -1

// LineNumber locates a line in the diff text and in the source file before
// and after the edit. Line numbers start at 1.
type LineNumber struct {
	InDiff int
	Before int
	After  int
}

// InvalidLineNumber is a line number that is invalid in every respect.
var InvalidLineNumber = LineNumber{InvalidLine, InvalidLine, InvalidLine}

// At returns the line number in the projection t.
func (l LineNumber) At(t Time) int {
	if t == Before {
		return l.Before
	}
	return l.After
}

// With returns l with the line number in projection t replaced by n.
func (l LineNumber) With(t Time, n int) LineNumber {
	if t == Before {
		l.Before = n
	} else {
		l.After = n
	}
	return l
}

// Add advances l by offset lines of a diff line with diff type d: an added
// line does not advance the before file and a removed line does not advance
// the after file.
func (l LineNumber) Add(offset int, d DiffType) LineNumber {
	r := LineNumber{InDiff: l.InDiff + offset, Before: l.Before, After: l.After}
	if d != Add {
		r.Before += offset
	}
	if d != Rem {
		r.After += offset
	}
	return r
}

// Shift advances every component of l by offset.
func (l LineNumber) Shift(offset int) LineNumber {
	return LineNumber{l.InDiff + offset, l.Before + offset, l.After + offset}
}

// As invalidates the components of l that do not exist for diff type d.
func (l LineNumber) As(d DiffType) LineNumber {
	if !d.ExistsAt(Before) {
		l.Before = InvalidLine
	}
	if !d.ExistsAt(After) {
		l.After = InvalidLine
	}
	return l
}

func (l LineNumber) String() string {
	return fmt.Sprintf("%d (before %d, after %d)", l.InDiff, l.Before, l.After)
}

// LineRange is the half-open interval [From, To) of line numbers.
type LineRange struct {
	From, To int
}

// InvalidRange is the range of a node absent from a projection.
var InvalidRange = LineRange{InvalidLine, InvalidLine}

// Len returns the number of lines in r.
func (r LineRange) Len() int {
	if r.From == InvalidLine || r.To < r.From {
		return 0
	}
	return r.To - r.From
}

// Contains reports whether line lies in r.
func (r LineRange) Contains(line int) bool {
	return r.From <= line && line < r.To
}

func (r LineRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.From, r.To)
}
