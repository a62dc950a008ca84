package ast

import (
	"tlog.app/go/errors"
)

type (
	// Const is a folded constant: a scalar if Dims is empty,
	// a flattened row-major array otherwise.
	Const struct {
		Dims  []int
		Elems []int32
	}

	Consts interface {
		LookupConst(name string) (Const, bool)
	}

	NotConstError struct {
		Expr Expr
	}
)

var ErrDivByZero = errors.New("division by zero")

func Scalar(v int32) Const {
	return Const{Elems: []int32{v}}
}

// Eval folds e into an integer.
// Relational and logical operators yield 0 or 1.
func Eval(e Expr, c Consts) (int32, error) {
	switch e := e.(type) {
	case *Number:
		return e.Value, nil
	case *LVal:
		return evalLVal(e, c)
	case *Unary:
		x, err := Eval(e.X, c)
		if err != nil {
			return 0, err
		}

		switch e.Op {
		case '+':
			return x, nil
		case '-':
			return -x, nil
		case '!':
			return b2i(x == 0), nil
		}

		return 0, errors.New("unsupported unary op: %q", e.Op)
	case *Binary:
		return evalBinary(e, c)
	default:
		return 0, NotConstError{Expr: e}
	}
}

func evalLVal(e *LVal, c Consts) (int32, error) {
	if c == nil {
		return 0, NotConstError{Expr: e}
	}

	x, ok := c.LookupConst(e.Name)
	if !ok {
		return 0, NotConstError{Expr: e}
	}

	if len(e.Index) != len(x.Dims) {
		return 0, errors.New("%v: %d indices for %d dimensions", e.Name, len(e.Index), len(x.Dims))
	}

	off := 0

	for k, ie := range e.Index {
		i, err := Eval(ie, c)
		if err != nil {
			return 0, errors.Wrap(err, "index %d", k)
		}

		if i < 0 || int(i) >= x.Dims[k] {
			return 0, errors.New("%v: index %d out of range [0, %d)", e.Name, i, x.Dims[k])
		}

		off = off*x.Dims[k] + int(i)
	}

	return x.Elems[off], nil
}

func evalBinary(e *Binary, c Consts) (int32, error) {
	l, err := Eval(e.L, c)
	if err != nil {
		return 0, err
	}

	switch e.Op {
	case "&&":
		if l == 0 {
			return 0, nil
		}
	case "||":
		if l != 0 {
			return 1, nil
		}
	}

	r, err := Eval(e.R, c)
	if err != nil {
		return 0, err
	}

	switch e.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/", "%":
		if r == 0 {
			return 0, ErrDivByZero
		}

		if e.Op == "/" {
			return l / r, nil
		}

		return l % r, nil
	case "<":
		return b2i(l < r), nil
	case ">":
		return b2i(l > r), nil
	case "<=":
		return b2i(l <= r), nil
	case ">=":
		return b2i(l >= r), nil
	case "==":
		return b2i(l == r), nil
	case "!=":
		return b2i(l != r), nil
	case "&&", "||":
		return b2i(r != 0), nil
	}

	return 0, errors.New("unsupported binary op: %q", e.Op)
}

func (e NotConstError) Error() string {
	return "not a constant: " + e.Expr.Str()
}

func b2i(x bool) int32 {
	if x {
		return 1
	}

	return 0
}
