package parse

import (
	"context"
	"strings"

	"tlog.app/go/errors"

	"github.com/slowlang/sysy/compiler/ast"
)

func (s *State) parseBlock(ctx context.Context, st int) (b *ast.Block, i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if tk != Char('{') {
		return nil, tst, NewUnexpected(tk, Char('{'))
	}

	b = &ast.Block{Base: ast.Base{Pos: tst}}

	for {
		tk, tst, j := s.next(ctx, i)

		var item ast.Node

		switch tk {
		case Char('}'):
			b.End = j

			return b, j, nil
		case nil:
			return nil, tst, NewUnexpected(tk, Char('}'))
		case Keyword("const"), Keyword("int"):
			item, i, err = s.parseDecl(ctx, i)
		default:
			item, i, err = s.parseStatement(ctx, i)
		}

		if err != nil {
			return
		}

		b.Items = append(b.Items, item)
	}
}

func (s *State) parseStatement(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	switch tk {
	case Char('{'):
		return s.parseBlock(ctx, st)
	case Char(';'):
		return &ast.ExprStmt{Base: ast.Base{Pos: tst, End: i}}, i, nil
	case Keyword("if"):
		return s.parseIf(ctx, tst, i)
	case Keyword("while"):
		return s.parseWhile(ctx, tst, i)
	case Keyword("break"):
		i, err = s.expect(ctx, i, Char(';'))
		if err != nil {
			return nil, i, err
		}

		return &ast.Break{Base: ast.Base{Pos: tst, End: i}}, i, nil
	case Keyword("continue"):
		i, err = s.expect(ctx, i, Char(';'))
		if err != nil {
			return nil, i, err
		}

		return &ast.Continue{Base: ast.Base{Pos: tst, End: i}}, i, nil
	case Keyword("return"):
		return s.parseReturn(ctx, tst, i)
	case Keyword("printf"):
		return s.parsePrintf(ctx, tst, i)
	case Keyword("const"), Keyword("int"), Keyword("void"), Keyword("else"):
		return nil, tst, NewUnexpected(tk, Char('{'), Char(';'), Keyword("if"), Keyword("while"), Keyword("return"), Ident(""))
	}

	return s.parseAssignment(ctx, tst)
}

// parseAssignment parses `LVal = Exp;` or `Exp;`.
func (s *State) parseAssignment(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	lhs, i, err := s.parseExpr(ctx, st)
	if err != nil {
		return nil, i, err
	}

	tk, tst, j := s.next(ctx, i)
	if tk == Char(';') {
		return &ast.ExprStmt{Base: ast.Base{Pos: st, End: j}, Expr: lhs}, j, nil
	}

	lval, ok := lhs.(*ast.LVal)
	if !ok || tk != Char('=') {
		return nil, tst, NewUnexpected(tk, Char(';'))
	}

	rhs, i, err := s.parseExpr(ctx, j)
	if err != nil {
		return nil, i, errors.Wrap(err, "rhs")
	}

	i, err = s.expect(ctx, i, Char(';'))
	if err != nil {
		return nil, i, err
	}

	return &ast.Assign{
		Base: ast.Base{Pos: st, End: i},
		LVal: lval,
		Expr: rhs,
	}, i, nil
}

func (s *State) parseCond(ctx context.Context, st int) (e ast.Expr, i int, err error) {
	i, err = s.expect(ctx, st, Char('('))
	if err != nil {
		return nil, i, err
	}

	e, i, err = s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "cond")
	}

	i, err = s.expect(ctx, i, Char(')'))
	if err != nil {
		return nil, i, err
	}

	return e, i, nil
}

func (s *State) parseIf(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	cond, i, err := s.parseCond(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "if")
	}

	then, i, err := s.parseStatement(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "then")
	}

	r := &ast.If{
		Base: ast.Base{Pos: st},
		Cond: cond,
		Then: then,
	}

	tk, _, j := s.next(ctx, i)
	if tk == Keyword("else") {
		r.Else, i, err = s.parseStatement(ctx, j)
		if err != nil {
			return nil, i, errors.Wrap(err, "else")
		}
	}

	r.End = i

	return r, i, nil
}

func (s *State) parseWhile(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	cond, i, err := s.parseCond(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "while")
	}

	body, i, err := s.parseStatement(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "while body")
	}

	return &ast.While{
		Base: ast.Base{Pos: st, End: i},
		Cond: cond,
		Body: body,
	}, i, nil
}

func (s *State) parseReturn(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	r := &ast.Return{Base: ast.Base{Pos: st}}

	tk, _, i := s.next(ctx, vst)
	if tk != Char(';') {
		r.Expr, i, err = s.parseExpr(ctx, vst)
		if err != nil {
			return nil, i, errors.Wrap(err, "return")
		}

		i, err = s.expect(ctx, i, Char(';'))
		if err != nil {
			return nil, i, err
		}
	}

	r.End = i

	return r, i, nil
}

func (s *State) parsePrintf(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	i, err = s.expect(ctx, vst, Char('('))
	if err != nil {
		return nil, i, err
	}

	tk, tst, i := s.next(ctx, i)
	str, ok := tk.(String)
	if !ok {
		return nil, tst, NewUnexpected(tk, String(""))
	}

	p := &ast.Printf{
		Base:   ast.Base{Pos: st},
		Format: unquote(string(str)),
	}

	for {
		tk, tst, i = s.next(ctx, i)
		if tk == Char(')') {
			break
		}

		if tk != Char(',') {
			return nil, tst, NewUnexpected(tk, Char(','), Char(')'))
		}

		var e ast.Expr

		e, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "printf arg %d", len(p.Args))
		}

		p.Args = append(p.Args, e)
	}

	if n := strings.Count(p.Format, "%d"); n != len(p.Args) {
		return nil, st, errors.New("printf: %d placeholders, %d args", n, len(p.Args))
	}

	i, err = s.expect(ctx, i, Char(';'))
	if err != nil {
		return nil, i, err
	}

	p.End = i

	return p, i, nil
}

// unquote strips quotes and decodes escapes of a format string.
func unquote(q string) string {
	q = q[1 : len(q)-1]

	if strings.IndexByte(q, '\\') < 0 {
		return q
	}

	b := make([]byte, 0, len(q))

	for i := 0; i < len(q); i++ {
		if q[i] != '\\' || i+1 == len(q) {
			b = append(b, q[i])
			continue
		}

		i++

		switch q[i] {
		case 'n':
			b = append(b, '\n')
		case 't':
			b = append(b, '\t')
		case '\\', '"':
			b = append(b, q[i])
		default:
			b = append(b, '\\', q[i])
		}
	}

	return string(b)
}
