package front

import (
	"context"

	"tlog.app/go/errors"

	"github.com/slowlang/sysy/compiler/ast"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

// compileCond branches to t if e holds and to f otherwise.
// The right operand of && and || is only evaluated if the left one doesn't decide.
func (c *Front) compileCond(ctx context.Context, s *Scope, e ast.Expr, t, f ir.Value) error {
	switch e := e.(type) {
	case *ast.Binary:
		switch e.Op {
		case "&&", "||":
			var next ir.Value

			if e.Op == "&&" {
				next = s.NewBlock(s.f, "and")

				err := c.compileCond(ctx, s, e.L, next, f)
				if err != nil {
					return errors.Wrap(err, "&& left")
				}
			} else {
				next = s.NewBlock(s.f, "or")

				err := c.compileCond(ctx, s, e.L, t, next)
				if err != nil {
					return errors.Wrap(err, "|| left")
				}
			}

			s.setBlock(next)

			return c.compileCond(ctx, s, e.R, t, f)
		}
	case *ast.Unary:
		if e.Op == '!' {
			return c.compileCond(ctx, s, e.X, f, t)
		}
	}

	x, err := c.compileBool(ctx, s, e)
	if err != nil {
		return err
	}

	s.CondBr(s.cur(), x, t, f)

	return nil
}

// compileBool lowers e into an i1 value.
func (c *Front) compileBool(ctx context.Context, s *Scope, e ast.Expr) (ir.Value, error) {
	switch e := e.(type) {
	case *ast.Unary:
		if e.Op != '!' {
			break
		}

		x, err := c.compileExpr(ctx, s, e.X)
		if err != nil {
			return ir.Nil, err
		}

		return s.Binary(s.cur(), ir.Eq, x, s.ConstInt(0)), nil
	case *ast.Binary:
		op, ok := binOps[e.Op]
		if !ok || !op.IsCmp() {
			break
		}

		l, err := c.compileExpr(ctx, s, e.L)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "left")
		}

		r, err := c.compileExpr(ctx, s, e.R)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "right")
		}

		return s.Binary(s.cur(), op, l, r), nil
	}

	x, err := c.compileExpr(ctx, s, e)
	if err != nil {
		return ir.Nil, err
	}

	if tp.IsInt(s.EType[x], 1) {
		return x, nil
	}

	return s.Binary(s.cur(), ir.Ne, x, s.ConstInt(0)), nil
}
