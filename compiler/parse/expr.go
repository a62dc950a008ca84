package parse

import (
	"context"
	"math"
	"strconv"

	"tlog.app/go/errors"

	"github.com/slowlang/sysy/compiler/ast"
)

var precedence = map[Token]int{
	Op("||"): 1,
	Op("&&"): 2,
	Op("=="): 3,
	Op("!="): 3,
	Char('<'): 4,
	Char('>'): 4,
	Op("<="): 4,
	Op(">="): 4,
	Char('+'): 5,
	Char('-'): 5,
	Char('*'): 6,
	Char('/'): 6,
	Char('%'): 6,
}

func (s *State) parseExpr(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	return s.parseBinary(ctx, st, 1)
}

// parseBinary parses a left-associative chain of operators binding at least as tight as prec.
func (s *State) parseBinary(ctx context.Context, st, prec int) (x ast.Expr, i int, err error) {
	x, i, err = s.parseUnary(ctx, st)
	if err != nil {
		return
	}

	for {
		tk, _, j := s.next(ctx, i)

		p, ok := precedence[tk]
		if !ok || p < prec {
			return x, i, nil
		}

		var r ast.Expr

		r, i, err = s.parseBinary(ctx, j, p+1)
		if err != nil {
			return
		}

		x = &ast.Binary{
			Base: ast.Base{Pos: st, End: i},
			Op:   opString(tk),
			L:    x,
			R:    r,
		}
	}
}

func (s *State) parseUnary(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	switch tk {
	case Char('+'), Char('-'), Char('!'):
		var sub ast.Expr

		sub, i, err = s.parseUnary(ctx, i)
		if err != nil {
			return
		}

		return &ast.Unary{
			Base: ast.Base{Pos: tst, End: i},
			Op:   byte(tk.(Char)),
			X:    sub,
		}, i, nil
	case Char('('):
		x, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return
		}

		i, err = s.expect(ctx, i, Char(')'))
		if err != nil {
			return nil, i, err
		}

		return x, i, nil
	}

	switch tk := tk.(type) {
	case Number:
		v, err := parseNumber(string(tk))
		if err != nil {
			return nil, tst, err
		}

		return &ast.Number{Base: ast.Base{Pos: tst, End: i}, Value: v}, i, nil
	case Ident:
		next, _, j := s.next(ctx, i)
		if next == Char('(') {
			return s.parseCall(ctx, tst, string(tk), j)
		}

		l := &ast.LVal{
			Base: ast.Base{Pos: tst},
			Name: string(tk),
		}

		l.Index, i, err = s.parseDims(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "%v: index", tk)
		}

		l.End = i

		return l, i, nil
	default:
		return nil, tst, NewUnexpected(tk, Number(""), Ident(""), Char('('))
	}
}

func (s *State) parseCall(ctx context.Context, st int, name string, vst int) (x ast.Expr, i int, err error) {
	c := &ast.Call{
		Base: ast.Base{Pos: st},
		Name: name,
	}

	tk, _, i := s.next(ctx, vst)
	if tk != Char(')') {
		i = vst

		for {
			var a ast.Expr

			a, i, err = s.parseExpr(ctx, i)
			if err != nil {
				return nil, i, errors.Wrap(err, "%v: arg %d", name, len(c.Args))
			}

			c.Args = append(c.Args, a)

			var tst int

			tk, tst, i = s.next(ctx, i)
			if tk == Char(')') {
				break
			}

			if tk != Char(',') {
				return nil, tst, NewUnexpected(tk, Char(','), Char(')'))
			}
		}
	}

	c.End = i

	return c, i, nil
}

// parseNumber accepts decimal, octal and hex literals up to 2^32-1.
// 2147483648 wraps so that -2147483648 is representable.
func parseNumber(s string) (int32, error) {
	base := 10

	switch {
	case len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X"):
		base = 16
		s = s[2:]
	case len(s) > 1 && s[0] == '0':
		base = 8
		s = s[1:]
	}

	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse number")
	}

	if v > math.MaxUint32 {
		return 0, errors.New("number out of range: %v", s)
	}

	return int32(uint32(v)), nil
}

func opString(tk Token) string {
	switch tk := tk.(type) {
	case Char:
		return string(tk)
	case Op:
		return string(tk)
	default:
		panic(tk)
	}
}
