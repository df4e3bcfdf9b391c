package cpp

import (
	"regexp"
	"strings"
)

// Placeholders substituted for arithmetic and relational operators so that
// comparisons such as "VERSION>=3" survive as a single boolean variable.
const (
	EQ  = "__EQ__"
	GEQ = "__GEQ__"
	LEQ = "__LEQ__"
	GT  = "__GT__"
	LT  = "__LT__"
	SUB = "__SUB__"
	ADD = "__ADD__"
	MUL = "__MUL__"
	DIV = "__DIV__"
	MOD = "__MOD__"
)

// Order matters: two character operators are replaced before their one
// character prefixes.
var arithmetics = []struct{ op, placeholder string }{
	{"==", EQ},
	{">=", GEQ},
	{"<=", LEQ},
	{">", GT},
	{"<", LT},
	{"+", ADD},
	{"-", SUB},
	{"*", MUL},
	{"/", DIV},
	{"%", MOD},
}

var callPattern = regexp.MustCompile(`(\w+)\((\w*)\)`)

// AbstractArithmetics replaces arithmetic and relational operators by
// placeholder tokens. An operator is only replaced where it touches a word
// boundary or a parenthesis on both sides.
func AbstractArithmetics(formula string) string {
	for _, a := range arithmetics {
		formula = replaceOperator(formula, a.op, a.placeholder)
	}
	return formula
}

func replaceOperator(s, op, placeholder string) string {
	if !strings.Contains(s, op) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], op) && delimited(s, i) && delimited(s, i+len(op)) {
			sb.WriteString(placeholder)
			i += len(op)
			continue
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// delimited reports whether position i of s is a word boundary or is
// adjacent to a parenthesis.
func delimited(s string, i int) bool {
	left := i > 0 && isWordByte(s[i-1])
	right := i < len(s) && isWordByte(s[i])
	if left != right {
		return true
	}
	return (i > 0 && isParen(s[i-1])) || (i < len(s) && isParen(s[i]))
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isParen(c byte) bool {
	return c == '(' || c == ')'
}

// AbstractCalls folds macro calls into single tokens. Commas become "__" and
// calls are inlined until none remain:
//
//	bar(2,foo(baz)) -> bar(2__foo(baz)) -> bar(2__foo__baz) -> bar__2__foo__baz
func AbstractCalls(formula string) string {
	formula = strings.ReplaceAll(formula, ",", "__")
	for {
		next := callPattern.ReplaceAllString(formula, "${1}__${2}")
		if next == formula {
			return formula
		}
		formula = next
	}
}
