package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/ast"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

// unrollZeroFill is the largest uninitialized local array cleared without a loop.
const unrollZeroFill = 16

func (c *Front) compileDecl(ctx context.Context, s *Scope, d *ast.Decl) (err error) {
	for _, v := range d.Defs {
		if d.Const {
			err = c.compileConstDef(ctx, s, v)
		} else {
			err = c.compileVarDef(ctx, s, v)
		}

		if err != nil {
			return errors.Wrap(err, "%v", v.Name)
		}
	}

	return nil
}

func (c *Front) compileConstDef(ctx context.Context, s *Scope, d *ast.VarDef) error {
	dims, err := c.foldDims(ctx, s, d.Dims)
	if err != nil {
		return errors.Wrap(err, "dims")
	}

	inits, err := flatten(d.Init, dims)
	if err != nil {
		return err
	}

	k := ast.Const{Dims: dims, Elems: make([]int32, len(inits))}

	for i, e := range inits {
		if e == nil {
			continue
		}

		k.Elems[i], err = c.fold(ctx, s, e)
		if err != nil {
			return errors.Wrap(err, "init %d", i)
		}
	}

	tlog.SpanFromContext(ctx).V("const").Printw("const", "name", d.Name, "dims", dims, "elems", k.Elems)

	if s.global() {
		g := s.NewGlobal(d.Name, c.constInit(s, dims, k.Elems, true), true)
		return s.defineConst(d.Name, g, k)
	}

	slot := c.localSlot(s, dims)

	if len(dims) == 0 {
		s.Store(s.cur(), s.ConstInt(k.Elems[0]), slot)
	} else {
		for i, x := range k.Elems {
			s.Store(s.cur(), s.ConstInt(x), c.elemAddr(s, slot, dims, i))
		}
	}

	return s.defineConst(d.Name, slot, k)
}

func (c *Front) compileVarDef(ctx context.Context, s *Scope, d *ast.VarDef) error {
	dims, err := c.foldDims(ctx, s, d.Dims)
	if err != nil {
		return errors.Wrap(err, "dims")
	}

	var inits []ast.Expr

	if d.Init != nil {
		inits, err = flatten(d.Init, dims)
		if err != nil {
			return err
		}
	}

	if s.global() {
		elems := make([]int32, tp.Array{Dims: dims}.Cap())

		for i, e := range inits {
			if e == nil {
				continue
			}

			elems[i], err = c.fold(ctx, s, e)
			if err != nil {
				return errors.Wrap(err, "init %d", i)
			}
		}

		g := s.NewGlobal(d.Name, c.constInit(s, dims, elems, d.Init != nil), false)
		return s.define(d.Name, g)
	}

	slot := c.localSlot(s, dims)

	if len(dims) == 0 {
		v := s.ConstInt(0)

		if len(inits) != 0 {
			v, err = c.compileExpr(ctx, s, inits[0])
			if err != nil {
				return errors.Wrap(err, "init")
			}
		}

		s.Store(s.cur(), v, slot)
		return s.define(d.Name, slot)
	}

	if d.Init == nil {
		c.zeroFill(s, slot, dims)
		return s.define(d.Name, slot)
	}

	for i, e := range inits {
		v := s.ConstInt(0)

		if e != nil {
			v, err = c.compileExpr(ctx, s, e)
			if err != nil {
				return errors.Wrap(err, "init %d", i)
			}
		}

		s.Store(s.cur(), v, c.elemAddr(s, slot, dims, i))
	}

	return s.define(d.Name, slot)
}

func (c *Front) constInit(s *Scope, dims []int, elems []int32, init bool) ir.Value {
	if len(dims) == 0 {
		return s.ConstInt(elems[0])
	}

	return s.ConstArray(tp.Array{X: tp.I32, Dims: dims}, elems, init)
}

func (c *Front) localSlot(s *Scope, dims []int) ir.Value {
	if len(dims) == 0 {
		return s.Alloca(s.cur(), tp.I32)
	}

	return s.Alloca(s.cur(), tp.Array{X: tp.I32, Dims: dims})
}

// zeroFill clears a local array.
// Small arrays get a store per element, larger ones a loop over the flat element index.
func (c *Front) zeroFill(s *Scope, slot ir.Value, dims []int) {
	n := tp.Array{Dims: dims}.Cap()
	zero := s.ConstInt(0)

	if n <= unrollZeroFill {
		for i := 0; i < n; i++ {
			s.Store(s.cur(), zero, c.elemAddr(s, slot, dims, i))
		}

		return
	}

	idx := make([]ir.Value, 1+len(dims))
	for i := range idx {
		idx[i] = zero
	}

	base := s.GEP(s.cur(), slot, idx...)

	i := s.Alloca(s.cur(), tp.I32)
	s.Store(s.cur(), zero, i)

	cond := s.NewBlock(s.f, "zero")
	body := s.NewBlock(s.f, "zero.body")
	next := s.NewBlock(s.f, "zero.end")

	s.branchTo(cond)
	s.setBlock(cond)

	s.CondBr(s.b, s.Binary(s.b, ir.Lt, s.Load(s.b, i), s.ConstInt(int32(n))), body, next)

	s.setBlock(body)

	iv := s.Load(s.b, i)
	s.Store(s.b, zero, s.GEP(s.b, base, iv))
	s.Store(s.b, s.Binary(s.b, ir.Add, iv, s.ConstInt(1)), i)
	s.Br(s.b, cond)

	s.setBlock(next)
}

// elemAddr addresses the flat element i of the local array at slot.
func (c *Front) elemAddr(s *Scope, slot ir.Value, dims []int, i int) ir.Value {
	idx := make([]ir.Value, 1+len(dims))
	idx[0] = s.ConstInt(0)

	for k := len(dims) - 1; k >= 0; k-- {
		idx[1+k] = s.ConstInt(int32(i % dims[k]))
		i /= dims[k]
	}

	return s.GEP(s.cur(), slot, idx...)
}

func (c *Front) fold(ctx context.Context, s *Scope, e ast.Expr) (int32, error) {
	v, err := ast.Eval(e, s)
	if err != nil {
		return 0, errors.Wrap(err, "fold %v", e.Str())
	}

	return v, nil
}

func (c *Front) foldDims(ctx context.Context, s *Scope, l []ast.Expr) (dims []int, err error) {
	for i, e := range l {
		v, err := c.fold(ctx, s, e)
		if err != nil {
			return nil, errors.Wrap(err, "dim %d", i)
		}

		if v <= 0 {
			return nil, errors.New("dim %d: non-positive size %d", i, v)
		}

		dims = append(dims, int(v))
	}

	return dims, nil
}

// flatten lays the initializer out in row-major order over dims.
// Missing elements are nil.
func flatten(init *ast.InitVal, dims []int) ([]ast.Expr, error) {
	if len(dims) == 0 {
		if init == nil {
			return []ast.Expr{nil}, nil
		}

		if init.Expr == nil {
			return nil, errors.New("braced initializer for a scalar")
		}

		return []ast.Expr{init.Expr}, nil
	}

	out := make([]ast.Expr, tp.Array{Dims: dims}.Cap())

	if init == nil {
		return out, nil
	}

	if init.Expr != nil {
		return nil, errors.New("scalar initializer for an array")
	}

	err := fill(init.List, dims, out, 0)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func fill(list []*ast.InitVal, dims []int, out []ast.Expr, base int) error {
	size := tp.Array{Dims: dims}.Cap()
	pos := base

	for _, x := range list {
		if pos >= base+size {
			return errors.New("too many initializers")
		}

		if x.Expr != nil {
			out[pos] = x.Expr
			pos++

			continue
		}

		if len(dims) == 1 {
			return errors.New("braced initializer for a scalar element")
		}

		sub := tp.Array{Dims: dims[1:]}.Cap()

		if off := (pos - base) % sub; off != 0 {
			pos += sub - off
		}

		if pos >= base+size {
			return errors.New("too many initializers")
		}

		err := fill(x.List, dims[1:], out, pos)
		if err != nil {
			return err
		}

		pos += sub
	}

	return nil
}
