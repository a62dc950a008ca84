package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/ast"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

type (
	Options struct {
		// StringSegments prints literal printf segments with one putstr call
		// per segment instead of one putch per character.
		StringSegments bool
	}

	// Front builds IR modules. It keeps no state between builds.
	Front struct {
		Options
	}

	pkgContext struct {
		*ir.Module

		root *Scope

		// printf lowers to these regardless of what user code names shadow.
		putint, putch, putstr ir.Value
	}

	funContext struct {
		f   ir.Value
		def *ast.FuncDef

		// b is the insertion point.
		b ir.Value

		loops []loop
	}

	loop struct {
		brk, cont ir.Value
	}
)

func New(opts Options) *Front {
	return &Front{Options: opts}
}

// Build lowers the compilation unit into a new module.
func (c *Front) Build(ctx context.Context, name string, x *ast.CompUnit) (_ *ir.Module, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: build module", "name", name, "decls", len(x.Decls), "funcs", len(x.Funcs))
	defer tr.Finish("err", &err)

	p := &pkgContext{
		Module: ir.New(name),
	}

	s := rootScope(p, nil)
	s.from = loc.Caller(0)
	p.root = s

	p.addBuiltins()

	for _, n := range x.Order {
		switch n := n.(type) {
		case *ast.Decl:
			err = c.compileDecl(ctx, s, n)
			if err != nil {
				return nil, errors.Wrap(err, "global decl")
			}
		case *ast.FuncDef:
			err = c.compileFunc(ctx, s, n)
			if err != nil {
				return nil, errors.Wrap(err, "func %v", n.Name)
			}
		default:
			panic(n)
		}
	}

	if tr.If("dump_ir") {
		for _, f := range p.Funcs {
			for _, b := range p.Func(f).Blocks {
				for _, id := range p.Block(b).Code {
					tr.Printw("code", "func", p.Func(f).Name, "block", p.Block(b).Name, "instr", p.Format(id))
				}
			}
		}
	}

	return p.Module, nil
}

func (p *pkgContext) addBuiltins() {
	for _, b := range []struct {
		name string
		t    tp.Func
		kind ir.Builtin
	}{
		{"getint", tp.Func{Out: tp.I32}, ir.GetInt},
		{"putint", tp.Func{Out: tp.Void{}, In: []tp.Type{tp.I32}}, ir.PutInt},
		{"putch", tp.Func{Out: tp.Void{}, In: []tp.Type{tp.I32}}, ir.PutCh},
		{"putstr", tp.Func{Out: tp.Void{}, In: []tp.Type{tp.Ptr{X: tp.I8}}}, ir.PutStr},
	} {
		f := p.NewFunc(b.name, b.t, b.kind)

		for i, t := range b.t.In {
			p.NewParam(f, string(rune('a'+i)), t)
		}

		if err := p.root.define(b.name, f); err != nil {
			panic(err)
		}

		switch b.kind {
		case ir.PutInt:
			p.putint = f
		case ir.PutCh:
			p.putch = f
		case ir.PutStr:
			p.putstr = f
		}
	}
}

func (c *Front) compileFunc(ctx context.Context, par *Scope, d *ast.FuncDef) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: compile func", "name", d.Name)
	defer tr.Finish("err", &err)

	ft := tp.Func{Out: tp.I32}
	if d.Void {
		ft.Out = tp.Void{}
	}

	for _, p := range d.Params {
		t, err := c.paramType(ctx, par, p)
		if err != nil {
			return errors.Wrap(err, "param %v", p.Name)
		}

		ft.In = append(ft.In, t)
	}

	f := par.NewFunc(d.Name, ft, ir.NotBuiltin)

	err = par.define(d.Name, f)
	if err != nil {
		return err
	}

	s := par.nextScope()
	s.funContext = &funContext{
		f:   f,
		def: d,
	}

	s.setBlock(s.NewBlock(f, "entry"))

	for i, p := range d.Params {
		pv := s.NewParam(f, p.Name, ft.In[i])

		slot := s.Alloca(s.b, ft.In[i])
		s.Store(s.b, pv, slot)

		err = s.define(p.Name, slot)
		if err != nil {
			return errors.Wrap(err, "param")
		}
	}

	err = c.compileBlock(ctx, s, d.Body)
	if err != nil {
		return err
	}

	if _, ok := s.Terminator(s.b); !ok {
		if d.Void {
			s.Ret(s.b)
		} else {
			s.Ret(s.b, s.ConstInt(0))
		}
	}

	tr.Printw("compiled", "blocks", len(s.Func(f).Blocks))

	return nil
}

// paramType is i32 for scalars and a pointer to the row type for arrays.
func (c *Front) paramType(ctx context.Context, s *Scope, p *ast.Param) (tp.Type, error) {
	if !p.Array {
		return tp.I32, nil
	}

	if len(p.Dims) == 0 {
		return tp.Ptr{X: tp.I32}, nil
	}

	dims, err := c.foldDims(ctx, s, p.Dims)
	if err != nil {
		return nil, err
	}

	return tp.Ptr{X: tp.Array{X: tp.I32, Dims: dims}}, nil
}

// setBlock attaches b to the function layout and makes it the insertion point.
func (s *Scope) setBlock(b ir.Value) {
	s.AttachBlock(b)
	s.b = b
}

// cur returns the insertion point, opening an unreachable block
// if the current one is already terminated.
func (s *Scope) cur() ir.Value {
	if _, ok := s.Terminator(s.b); ok {
		s.setBlock(s.NewBlock(s.f, "dead"))
	}

	return s.b
}

func (s *Scope) terminated() bool {
	_, ok := s.Terminator(s.b)
	return ok
}

// branchTo ends the current block with a jump unless it's already terminated.
func (s *Scope) branchTo(to ir.Value) {
	if s.terminated() {
		return
	}

	s.Br(s.b, to)
}
