package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/ast"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

type (
	// term is one operand of an additive chain.
	term struct {
		neg bool
		e   ast.Expr
	}
)

var binOps = map[string]ir.Op{
	"+":  ir.Add,
	"-":  ir.Sub,
	"*":  ir.Mul,
	"/":  ir.Div,
	"%":  ir.Mod,
	"<":  ir.Lt,
	"<=": ir.Le,
	">":  ir.Gt,
	">=": ir.Ge,
	"==": ir.Eq,
	"!=": ir.Ne,
}

// compileExpr lowers e into an i32 value.
func (c *Front) compileExpr(ctx context.Context, s *Scope, e ast.Expr) (v ir.Value, err error) {
	switch e := e.(type) {
	case *ast.Number:
		return s.ConstInt(e.Value), nil
	case *ast.LVal:
		return c.compileLVal(ctx, s, e)
	case *ast.Call:
		return c.compileCall(ctx, s, e)
	case *ast.Unary:
		switch e.Op {
		case '+':
			return c.compileExpr(ctx, s, e.X)
		case '-':
			x, err := c.compileExpr(ctx, s, e.X)
			if err != nil {
				return ir.Nil, err
			}

			return s.binary(ir.Sub, s.ConstInt(0), x), nil
		}

		x, err := c.compileBool(ctx, s, e)
		if err != nil {
			return ir.Nil, err
		}

		return s.widen(x), nil
	case *ast.Binary:
		switch e.Op {
		case "+", "-":
			return c.compileAdditive(ctx, s, e)
		case "*", "/", "%":
			l, err := c.compileExpr(ctx, s, e.L)
			if err != nil {
				return ir.Nil, errors.Wrap(err, "left")
			}

			r, err := c.compileExpr(ctx, s, e.R)
			if err != nil {
				return ir.Nil, errors.Wrap(err, "right")
			}

			return s.binary(binOps[e.Op], l, r), nil
		case "&&", "||":
			return c.compileLogicValue(ctx, s, e)
		}

		x, err := c.compileBool(ctx, s, e)
		if err != nil {
			return ir.Nil, err
		}

		return s.widen(x), nil
	default:
		panic(e)
	}
}

// compileAdditive lowers a chain of + and - left to right.
// Consecutive structurally equal terms of the same sign collapse into a multiplication.
func (c *Front) compileAdditive(ctx context.Context, s *Scope, e *ast.Binary) (v ir.Value, err error) {
	terms := flattenAdditive(e, false, nil)

	for i := 0; i < len(terms); {
		t := terms[i]

		n := 1
		for i+n < len(terms) && sameTerm(t, terms[i+n]) {
			n++
		}

		x, err := c.compileExpr(ctx, s, t.e)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "term %d", i)
		}

		if n > 1 {
			tlog.SpanFromContext(ctx).V("additive").Printw("collapse terms", "term", t.e.Str(), "count", n, "neg", t.neg)

			x = s.binary(ir.Mul, x, s.ConstInt(int32(n)))
		}

		switch {
		case i == 0 && t.neg:
			v = s.binary(ir.Sub, s.ConstInt(0), x)
		case i == 0:
			v = x
		case t.neg:
			v = s.binary(ir.Sub, v, x)
		default:
			v = s.binary(ir.Add, v, x)
		}

		i += n
	}

	return v, nil
}

// flattenAdditive unrolls the left spine of an additive chain.
// Right operands are kept whole, so parenthesized sums stay one term.
func flattenAdditive(e ast.Expr, neg bool, l []term) []term {
	b, ok := e.(*ast.Binary)
	if !ok || b.Op != "+" && b.Op != "-" {
		return append(l, term{neg: neg, e: e})
	}

	l = flattenAdditive(b.L, neg, l)

	return append(l, term{neg: b.Op == "-", e: b.R})
}

func sameTerm(a, b term) bool {
	return a.neg == b.neg && !ast.HasCall(a.e) && a.e.Str() == b.e.Str()
}

func (c *Front) compileCall(ctx context.Context, s *Scope, e *ast.Call) (ir.Value, error) {
	f, _, _, err := s.lookup(e.Name)
	if err != nil {
		return ir.Nil, err
	}

	if _, ok := s.Exprs[f].(*ir.Func); !ok {
		return ir.Nil, errors.New("%v is not a function", e.Name)
	}

	ft := s.FuncType(f)

	if len(e.Args) != len(ft.In) {
		return ir.Nil, errors.New("call %v: %d args, want %d", e.Name, len(e.Args), len(ft.In))
	}

	args := make([]ir.Value, len(e.Args))

	for i, a := range e.Args {
		if _, ok := ft.In[i].(tp.Ptr); ok {
			args[i], err = c.compileArrayArg(ctx, s, a)
		} else {
			args[i], err = c.compileExpr(ctx, s, a)
		}

		if err != nil {
			return ir.Nil, errors.Wrap(err, "call %v: arg %d", e.Name, i)
		}
	}

	return s.Call(s.cur(), f, args...), nil
}

func (c *Front) compileArrayArg(ctx context.Context, s *Scope, e ast.Expr) (ir.Value, error) {
	l, ok := e.(*ast.LVal)
	if !ok {
		return ir.Nil, errors.New("array argument expected: %v", e.Str())
	}

	addr, full, err := c.compileAddr(ctx, s, l)
	if err != nil {
		return ir.Nil, err
	}

	if full {
		return ir.Nil, errors.New("array argument expected: %v", e.Str())
	}

	return addr, nil
}

func (c *Front) compileLVal(ctx context.Context, s *Scope, e *ast.LVal) (ir.Value, error) {
	_, k, isConst, err := s.lookup(e.Name)
	if err != nil {
		return ir.Nil, err
	}

	if isConst && len(e.Index) == len(k.Dims) {
		if v, err := ast.Eval(e, s); err == nil {
			return s.ConstInt(v), nil
		}
	}

	addr, full, err := c.compileAddr(ctx, s, e)
	if err != nil {
		return ir.Nil, err
	}

	if !full {
		return ir.Nil, errors.New("%v: array used as a value", e.Name)
	}

	return s.Load(s.cur(), addr), nil
}

// compileAddr computes the address e refers to.
// full is false if e names an array or a part of it, and the address is then decayed
// to a pointer to its first element.
func (c *Front) compileAddr(ctx context.Context, s *Scope, e *ast.LVal) (addr ir.Value, full bool, err error) {
	slot, _, _, err := s.lookup(e.Name)
	if err != nil {
		return ir.Nil, false, err
	}

	if _, ok := s.Exprs[slot].(*ir.Func); ok {
		return ir.Nil, false, errors.New("%v is a function", e.Name)
	}

	idx := make([]ir.Value, len(e.Index))

	for i, x := range e.Index {
		idx[i], err = c.compileExpr(ctx, s, x)
		if err != nil {
			return ir.Nil, false, errors.Wrap(err, "%v: index %d", e.Name, i)
		}
	}

	zero := s.ConstInt(0)

	switch t := tp.Elem(s.EType[slot]).(type) {
	case tp.Int:
		if len(idx) != 0 {
			return ir.Nil, false, errors.New("%v: indexing a scalar", e.Name)
		}

		return slot, true, nil
	case tp.Array:
		if len(idx) > len(t.Dims) {
			return ir.Nil, false, errors.New("%v: too many indices", e.Name)
		}

		full = len(idx) == len(t.Dims)

		gi := append([]ir.Value{zero}, idx...)
		if !full {
			gi = append(gi, zero)
		}

		return s.GEP(s.cur(), slot, gi...), full, nil
	case tp.Ptr:
		p := s.Load(s.cur(), slot)

		rank := 1 + len(tp.Dims(t.X))

		if len(idx) > rank {
			return ir.Nil, false, errors.New("%v: too many indices", e.Name)
		}

		if len(idx) == 0 {
			return p, false, nil
		}

		full = len(idx) == rank

		if !full {
			idx = append(idx, zero)
		}

		return s.GEP(s.cur(), p, idx...), full, nil
	default:
		panic(t)
	}
}

// compileLogicValue evaluates a short-circuit operator into 0 or 1.
func (c *Front) compileLogicValue(ctx context.Context, s *Scope, e *ast.Binary) (ir.Value, error) {
	tmp := s.Alloca(s.cur(), tp.I32)

	t := s.NewBlock(s.f, "true")
	f := s.NewBlock(s.f, "false")
	end := s.NewBlock(s.f, "logic.end")

	err := c.compileCond(ctx, s, e, t, f)
	if err != nil {
		return ir.Nil, err
	}

	s.setBlock(t)
	s.Store(s.b, s.ConstInt(1), tmp)
	s.Br(s.b, end)

	s.setBlock(f)
	s.Store(s.b, s.ConstInt(0), tmp)
	s.Br(s.b, end)

	s.setBlock(end)

	return s.Load(s.b, tmp), nil
}

// binary emits op, folding it if both operands are constants.
func (s *Scope) binary(op ir.Op, l, r ir.Value) ir.Value {
	x, lok := s.IsConst(l)
	y, rok := s.IsConst(r)

	if lok && rok && !op.IsCmp() {
		switch op {
		case ir.Add:
			return s.ConstInt(x + y)
		case ir.Sub:
			return s.ConstInt(x - y)
		case ir.Mul:
			return s.ConstInt(x * y)
		case ir.Div:
			if y != 0 {
				return s.ConstInt(x / y)
			}
		case ir.Mod:
			if y != 0 {
				return s.ConstInt(x % y)
			}
		}
	}

	return s.Binary(s.cur(), op, l, r)
}

// widen turns an i1 into an i32.
func (s *Scope) widen(x ir.Value) ir.Value {
	if !tp.IsInt(s.EType[x], 1) {
		return x
	}

	return s.Convert(s.cur(), ir.Zext, x, tp.I32)
}
