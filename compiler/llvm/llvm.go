package llvm

import (
	"context"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

type (
	gen struct {
		*ir.Module

		out *llir.Module

		vals   map[ir.Value]value.Value
		blocks map[ir.Value]*llir.Block
	}
)

var preds = map[ir.Op]enum.IPred{
	ir.Lt: enum.IPredSLT,
	ir.Le: enum.IPredSLE,
	ir.Gt: enum.IPredSGT,
	ir.Ge: enum.IPredSGE,
	ir.Eq: enum.IPredEQ,
	ir.Ne: enum.IPredNE,
}

// Print appends the LLVM assembly of m to b.
func Print(ctx context.Context, b []byte, m *ir.Module) ([]byte, error) {
	out, err := Convert(ctx, m)
	if err != nil {
		return nil, err
	}

	return append(b, out.String()...), nil
}

// Convert translates m into an llir module.
func Convert(ctx context.Context, m *ir.Module) (out *llir.Module, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "llvm: convert", "path", m.Path)
	defer tr.Finish("err", &err)

	g := &gen{
		Module: m,
		out:    llir.NewModule(),
		vals:   make(map[ir.Value]value.Value),
		blocks: make(map[ir.Value]*llir.Block),
	}

	g.out.SourceFilename = m.Path

	for _, v := range m.Globals {
		g.global(v)
	}

	for _, f := range m.Funcs {
		g.declare(f)
	}

	for _, f := range m.Funcs {
		if m.Func(f).Builtin != ir.NotBuiltin {
			continue
		}

		err = g.body(f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", m.Func(f).Name)
		}
	}

	return g.out, nil
}

func (g *gen) global(v ir.Value) {
	x := g.Global(v)
	t := g.EType[x.Init]

	var init constant.Constant

	switch c := g.Exprs[x.Init].(type) {
	case ir.ConstInt:
		init = constant.NewInt(types.I32, int64(c))
	case *ir.ConstArray:
		a := t.(tp.Array)

		if !c.Init {
			init = constant.NewZeroInitializer(typeOf(a))
			break
		}

		init = arrayInit(a.X, a.Dims, c.Elems)
	case ir.ConstString:
		init = constant.NewCharArrayFromString(string(c) + "\x00")
	default:
		panic(c)
	}

	d := g.out.NewGlobalDef(x.Name, init)
	d.Immutable = x.Const

	g.vals[v] = d
}

func arrayInit(elem tp.Type, dims []int, elems []int32) constant.Constant {
	if len(dims) == 0 {
		return constant.NewInt(typeOf(elem).(*types.IntType), int64(elems[0]))
	}

	t := typeOf(tp.Array{X: elem, Dims: dims}).(*types.ArrayType)
	step := len(elems) / dims[0]

	l := make([]constant.Constant, dims[0])

	for i := range l {
		l[i] = arrayInit(elem, dims[1:], elems[i*step:(i+1)*step])
	}

	return constant.NewArray(t, l...)
}

func (g *gen) declare(f ir.Value) {
	fn := g.Func(f)
	ft := g.FuncType(f)

	params := make([]*llir.Param, len(fn.Params))

	for i, a := range fn.Params {
		p := llir.NewParam(g.Exprs[a].(ir.Param).Name, typeOf(ft.In[i]))

		params[i] = p
		g.vals[a] = p
	}

	g.vals[f] = g.out.NewFunc(fn.Name, typeOf(ft.Out), params...)
}

func (g *gen) body(f ir.Value) error {
	fn := g.Func(f)
	lf := g.vals[f].(*llir.Func)

	for _, b := range fn.Blocks {
		g.blocks[b] = lf.NewBlock(g.Block(b).Name)
	}

	for _, b := range fn.Blocks {
		lb := g.blocks[b]

		for _, id := range g.Block(b).Code {
			err := g.instr(lb, id)
			if err != nil {
				return errors.Wrap(err, "%v", g.Format(id))
			}
		}
	}

	return nil
}

func (g *gen) instr(b *llir.Block, id ir.Value) error {
	ops := g.Operands(id)

	args := make([]value.Value, len(ops))

	for i, op := range ops {
		if _, ok := g.Exprs[op].(*ir.Block); ok {
			continue
		}

		v, err := g.value(op)
		if err != nil {
			return err
		}

		args[i] = v
	}

	var v value.Value

	switch x := g.Exprs[id].(type) {
	case ir.BinaryOp:
		l, r := args[0], args[1]

		switch x.Op {
		case ir.Add:
			v = b.NewAdd(l, r)
		case ir.Sub:
			v = b.NewSub(l, r)
		case ir.Mul:
			v = b.NewMul(l, r)
		case ir.Div:
			v = b.NewSDiv(l, r)
		case ir.Mod:
			v = b.NewSRem(l, r)
		default:
			v = b.NewICmp(preds[x.Op], l, r)
		}
	case ir.Call:
		v = b.NewCall(args[0], args[1:]...)
	case ir.Ret:
		if len(args) == 0 {
			b.NewRet(nil)
		} else {
			b.NewRet(args[0])
		}
	case ir.Alloca:
		v = b.NewAlloca(typeOf(x.Elem))
	case ir.Load:
		v = b.NewLoad(typeOf(g.EType[id]), args[0])
	case ir.Store:
		b.NewStore(args[0], args[1])
	case ir.GEP:
		v = b.NewGetElementPtr(typeOf(tp.Elem(g.EType[ops[0]])), args[0], args[1:]...)
	case ir.Branch:
		t, f := g.Targets(id)

		if f == ir.Nil {
			b.NewBr(g.blocks[t])
		} else {
			b.NewCondBr(args[0], g.blocks[t], g.blocks[f])
		}
	case ir.Convert:
		to := typeOf(g.EType[id])

		switch x.Kind {
		case ir.Zext:
			v = b.NewZExt(args[0], to)
		case ir.Trunc:
			v = b.NewTrunc(args[0], to)
		default:
			v = b.NewBitCast(args[0], to)
		}
	default:
		return errors.New("unsupported instruction %T", x)
	}

	if v != nil {
		g.vals[id] = v
	}

	return nil
}

func (g *gen) value(v ir.Value) (value.Value, error) {
	if k, ok := g.IsConst(v); ok {
		return constant.NewInt(types.I32, int64(k)), nil
	}

	x, ok := g.vals[v]
	if !ok {
		return nil, errors.New("value %v used before definition", g.Name(v))
	}

	return x, nil
}

func typeOf(t tp.Type) types.Type {
	switch t := t.(type) {
	case tp.Int:
		return types.NewInt(uint64(t.Bits))
	case tp.Void:
		return types.Void
	case tp.Ptr:
		return types.NewPointer(typeOf(t.X))
	case tp.Array:
		x := typeOf(t.X)

		for i := len(t.Dims) - 1; i >= 0; i-- {
			x = types.NewArray(uint64(t.Dims[i]), x)
		}

		return x
	case tp.Func:
		in := make([]types.Type, len(t.In))

		for i, a := range t.In {
			in[i] = typeOf(a)
		}

		return types.NewFunc(typeOf(t.Out), in...)
	default:
		panic(t)
	}
}
