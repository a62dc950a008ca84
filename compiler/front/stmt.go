package front

import (
	"context"
	"strings"

	"tlog.app/go/errors"

	"github.com/slowlang/sysy/compiler/ast"
	"github.com/slowlang/sysy/compiler/ir"
)

func (c *Front) compileBlock(ctx context.Context, par *Scope, b *ast.Block) (err error) {
	s := par.nextScope()

	for _, x := range b.Items {
		if d, ok := x.(*ast.Decl); ok {
			err = c.compileDecl(ctx, s, d)
		} else {
			err = c.compileStmt(ctx, s, x)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Front) compileStmt(ctx context.Context, s *Scope, x ast.Stmt) (err error) {
	switch x := x.(type) {
	case *ast.Block:
		return c.compileBlock(ctx, s, x)
	case *ast.ExprStmt:
		if x.Expr == nil {
			return nil
		}

		_, err = c.compileExpr(ctx, s, x.Expr)
		if err != nil {
			return errors.Wrap(err, "expr stmt")
		}
	case *ast.Assign:
		v, err := c.compileExpr(ctx, s, x.Expr)
		if err != nil {
			return errors.Wrap(err, "assignment rhs")
		}

		_, _, isConst, err := s.lookup(x.LVal.Name)
		if err != nil {
			return errors.Wrap(err, "assignment lhs")
		}

		if isConst {
			return errors.New("assignment to constant %v", x.LVal.Name)
		}

		addr, full, err := c.compileAddr(ctx, s, x.LVal)
		if err != nil {
			return errors.Wrap(err, "assignment lhs")
		}

		if !full {
			return errors.New("assignment to array %v", x.LVal.Name)
		}

		s.Store(s.cur(), v, addr)
	case *ast.If:
		err = c.compileIf(ctx, s, x)
		if err != nil {
			return errors.Wrap(err, "if")
		}
	case *ast.While:
		err = c.compileWhile(ctx, s, x)
		if err != nil {
			return errors.Wrap(err, "while")
		}
	case *ast.Break:
		if len(s.loops) == 0 {
			return errors.New("break outside of a loop")
		}

		s.Br(s.cur(), s.loops[len(s.loops)-1].brk)
	case *ast.Continue:
		if len(s.loops) == 0 {
			return errors.New("continue outside of a loop")
		}

		s.Br(s.cur(), s.loops[len(s.loops)-1].cont)
	case *ast.Return:
		if (x.Expr == nil) != s.def.Void {
			return errors.New("return: value mismatch for func %v", s.def.Name)
		}

		if x.Expr == nil {
			s.Ret(s.cur())

			return nil
		}

		v, err := c.compileExpr(ctx, s, x.Expr)
		if err != nil {
			return errors.Wrap(err, "return value")
		}

		s.Ret(s.cur(), v)
	case *ast.Printf:
		err = c.compilePrintf(ctx, s, x)
		if err != nil {
			return errors.Wrap(err, "printf")
		}
	default:
		panic(x)
	}

	return nil
}

func (c *Front) compileIf(ctx context.Context, s *Scope, x *ast.If) (err error) {
	then := s.NewBlock(s.f, "then")
	next := s.NewBlock(s.f, "endif")

	els := next
	if x.Else != nil {
		els = s.NewBlock(s.f, "else")
	}

	err = c.compileCond(ctx, s, x.Cond, then, els)
	if err != nil {
		return errors.Wrap(err, "cond")
	}

	s.setBlock(then)

	err = c.compileStmt(ctx, s.nextScope(), x.Then)
	if err != nil {
		return errors.Wrap(err, "then")
	}

	s.branchTo(next)

	if x.Else != nil {
		s.setBlock(els)

		err = c.compileStmt(ctx, s.nextScope(), x.Else)
		if err != nil {
			return errors.Wrap(err, "else")
		}

		s.branchTo(next)
	}

	s.setBlock(next)

	return nil
}

func (c *Front) compileWhile(ctx context.Context, s *Scope, x *ast.While) (err error) {
	cond := s.NewBlock(s.f, "while")
	body := s.NewBlock(s.f, "body")
	next := s.NewBlock(s.f, "endwhile")

	s.branchTo(cond)
	s.setBlock(cond)

	err = c.compileCond(ctx, s, x.Cond, body, next)
	if err != nil {
		return errors.Wrap(err, "cond")
	}

	s.setBlock(body)

	s.loops = append(s.loops, loop{brk: next, cont: cond})

	err = c.compileStmt(ctx, s.nextScope(), x.Body)
	if err != nil {
		return errors.Wrap(err, "body")
	}

	s.loops = s.loops[:len(s.loops)-1]

	s.branchTo(cond)
	s.setBlock(next)

	return nil
}

// compilePrintf splits the format on %d placeholders.
// All the arguments are evaluated before anything is printed.
func (c *Front) compilePrintf(ctx context.Context, s *Scope, x *ast.Printf) error {
	args := make([]ir.Value, len(x.Args))

	for i, a := range x.Args {
		var err error

		args[i], err = c.compileExpr(ctx, s, a)
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}
	}

	segs := strings.Split(x.Format, "%d")

	for i, seg := range segs {
		switch {
		case seg == "":
		case c.StringSegments:
			str := s.NewString(seg)
			zero := s.ConstInt(0)

			s.Call(s.cur(), s.putstr, s.GEP(s.cur(), str, zero, zero))
		default:
			for _, ch := range []byte(seg) {
				s.Call(s.cur(), s.putch, s.ConstInt(int32(ch)))
			}
		}

		if i < len(args) {
			s.Call(s.cur(), s.putint, args[i])
		}
	}

	return nil
}
