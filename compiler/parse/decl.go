package parse

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/ast"
)

func (s *State) parseCompUnit(ctx context.Context, st int) (x *ast.CompUnit, i int, err error) {
	x = &ast.CompUnit{Base: ast.Base{Pos: st}}
	i = st

	for {
		tk, tst, j := s.next(ctx, i)
		if tk == nil {
			break
		}

		fun := tk == Keyword("void")

		if tk == Keyword("int") {
			name, _, k := s.next(ctx, j)
			paren, _, _ := s.next(ctx, k)

			_, ok := name.(Ident)
			fun = ok && paren == Char('(')
		}

		switch {
		case fun:
			var f *ast.FuncDef

			f, i, err = s.parseFuncDef(ctx, tst)
			if err != nil {
				return
			}

			x.Funcs = append(x.Funcs, f)
			x.Order = append(x.Order, f)
		case tk == Keyword("const") || tk == Keyword("int"):
			var d *ast.Decl

			d, i, err = s.parseDecl(ctx, tst)
			if err != nil {
				return
			}

			x.Decls = append(x.Decls, d)
			x.Order = append(x.Order, d)
		default:
			return nil, tst, NewUnexpected(tk, Keyword("const"), Keyword("int"), Keyword("void"))
		}
	}

	x.End = i

	return x, i, nil
}

func (s *State) parseDecl(ctx context.Context, st int) (x *ast.Decl, i int, err error) {
	x = &ast.Decl{Base: ast.Base{Pos: st}}

	tk, tst, i := s.next(ctx, st)
	if tk == Keyword("const") {
		x.Const = true

		tk, tst, i = s.next(ctx, i)
	}

	if tk != Keyword("int") {
		return nil, tst, NewUnexpected(tk, Keyword("int"))
	}

	for {
		var d *ast.VarDef

		d, i, err = s.parseVarDef(ctx, i, x.Const)
		if err != nil {
			return
		}

		x.Defs = append(x.Defs, d)

		tk, tst, i = s.next(ctx, i)
		if tk == Char(',') {
			continue
		}

		if tk != Char(';') {
			return nil, tst, NewUnexpected(tk, Char(','), Char(';'))
		}

		break
	}

	x.End = i

	return x, i, nil
}

func (s *State) parseVarDef(ctx context.Context, st int, isConst bool) (x *ast.VarDef, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tk, Ident(""))
	}

	x = &ast.VarDef{
		Base: ast.Base{Pos: tst},
		Name: string(name),
	}

	x.Dims, i, err = s.parseDims(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "%v: dims", name)
	}

	tk, tst, j := s.next(ctx, i)
	if tk == Char('=') {
		x.Init, i, err = s.parseInitVal(ctx, j)
		if err != nil {
			return nil, i, errors.Wrap(err, "%v: init", name)
		}
	} else if isConst {
		return nil, tst, NewUnexpected(tk, Char('='))
	}

	x.End = i

	tlog.SpanFromContext(ctx).V("parse_decl").Printw("var def", "name", x.Name, "dims", len(x.Dims), "const", isConst)

	return x, i, nil
}

// parseDims parses a possibly empty list of [Exp].
func (s *State) parseDims(ctx context.Context, st int) (l []ast.Expr, i int, err error) {
	i = st

	for {
		tk, _, j := s.next(ctx, i)
		if tk != Char('[') {
			return l, i, nil
		}

		var e ast.Expr

		e, i, err = s.parseExpr(ctx, j)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(ctx, i, Char(']'))
		if err != nil {
			return nil, i, err
		}

		l = append(l, e)
	}
}

func (s *State) parseInitVal(ctx context.Context, st int) (x *ast.InitVal, i int, err error) {
	tk, _, i := s.next(ctx, st)
	if tk != Char('{') {
		e, i, err := s.parseExpr(ctx, st)
		if err != nil {
			return nil, i, err
		}

		return &ast.InitVal{Base: ast.Base{Pos: st, End: i}, Expr: e}, i, nil
	}

	x = &ast.InitVal{Base: ast.Base{Pos: st}, List: []*ast.InitVal{}}

	tk, _, j := s.next(ctx, i)
	if tk == Char('}') {
		x.End = j

		return x, j, nil
	}

	for {
		var sub *ast.InitVal

		sub, i, err = s.parseInitVal(ctx, i)
		if err != nil {
			return nil, i, err
		}

		x.List = append(x.List, sub)

		var tst int

		tk, tst, i = s.next(ctx, i)
		if tk == Char(',') {
			continue
		}

		if tk != Char('}') {
			return nil, tst, NewUnexpected(tk, Char(','), Char('}'))
		}

		break
	}

	x.End = i

	return x, i, nil
}

func (s *State) parseFuncDef(ctx context.Context, st int) (f *ast.FuncDef, i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if tk != Keyword("int") && tk != Keyword("void") {
		return nil, tst, NewUnexpected(tk, Keyword("int"), Keyword("void"))
	}

	f = &ast.FuncDef{
		Base: ast.Base{Pos: tst},
		Void: tk == Keyword("void"),
	}

	tk, tst, i = s.next(ctx, i)
	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tk, Ident(""))
	}

	f.Name = string(name)

	f.Params, i, err = s.parseParams(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "func %v: params", name)
	}

	f.Body, i, err = s.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "func %v", name)
	}

	f.End = i

	tlog.SpanFromContext(ctx).V("parse_func").Printw("func", "name", f.Name, "params", len(f.Params), "void", f.Void)

	return f, i, nil
}

func (s *State) parseParams(ctx context.Context, st int) (l []*ast.Param, i int, err error) {
	i, err = s.expect(ctx, st, Char('('))
	if err != nil {
		return nil, i, err
	}

	tk, _, j := s.next(ctx, i)
	if tk == Char(')') {
		return nil, j, nil
	}

	for {
		var p *ast.Param

		p, i, err = s.parseParam(ctx, i)
		if err != nil {
			return nil, i, err
		}

		l = append(l, p)

		var tst int

		tk, tst, i = s.next(ctx, i)
		if tk == Char(',') {
			continue
		}

		if tk != Char(')') {
			return nil, tst, NewUnexpected(tk, Char(','), Char(')'))
		}

		return l, i, nil
	}
}

func (s *State) parseParam(ctx context.Context, st int) (p *ast.Param, i int, err error) {
	i, err = s.expect(ctx, st, Keyword("int"))
	if err != nil {
		return nil, i, err
	}

	tk, tst, i := s.next(ctx, i)
	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tk, Ident(""))
	}

	p = &ast.Param{
		Base: ast.Base{Pos: st},
		Name: string(name),
	}

	tk, _, j := s.next(ctx, i)
	if tk == Char('[') {
		i, err = s.expect(ctx, j, Char(']'))
		if err != nil {
			return nil, i, err
		}

		p.Array = true

		p.Dims, i, err = s.parseDims(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "%v: dims", name)
		}
	}

	p.End = i

	return p, i, nil
}

func (s *State) expect(ctx context.Context, st int, want Token) (i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if tk != want {
		return tst, NewUnexpected(tk, want)
	}

	return i, nil
}
