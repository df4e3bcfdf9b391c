package formula

import "strings"

// Variable names interpreted as the constants true and false.
var (
	TrueNames  = []string{"true", "1"}
	FalseNames = []string{"false", "0"}
)

func isNamed(v Var, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(n, string(v)) {
			return true
		}
	}
	return false
}

// EliminateConstants replaces variables named after a truth value by the
// corresponding constant and folds constants away. The result is either a
// Const or a formula without any Const inside.
func EliminateConstants(f Formula) Formula {
	switch x := f.(type) {
	case Var:
		if isNamed(x, TrueNames) {
			return True
		}
		if isNamed(x, FalseNames) {
			return False
		}
		return x
	case Not:
		return Negate(EliminateConstants(x.X))
	case And:
		ops := make(And, 0, len(x))
		for _, op := range x {
			s := EliminateConstants(op)
			if s == False {
				return False
			}
			if s != True {
				ops = append(ops, s)
			}
		}
		return NewAnd(ops...)
	case Or:
		ops := make(Or, 0, len(x))
		for _, op := range x {
			s := EliminateConstants(op)
			if s == True {
				return True
			}
			if s != False {
				ops = append(ops, s)
			}
		}
		return NewOr(ops...)
	case Implies:
		l, r := EliminateConstants(x.L), EliminateConstants(x.R)
		switch {
		case l == False:
			return True
		case r == False:
			return Negate(l)
		case l == True:
			return r
		case r == True:
			return True
		}
		return Implies{L: l, R: r}
	case Equiv:
		l, r := EliminateConstants(x.L), EliminateConstants(x.R)
		switch {
		case l == False:
			return Negate(r)
		case r == False:
			return Negate(l)
		case l == True:
			return r
		case r == True:
			return l
		}
		return Equiv{L: l, R: r}
	}
	return f
}
