package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/asm/mips"
	"github.com/slowlang/sysy/compiler/ir"
)

type (
	// Compiler lowers IR modules to MARS assembly. It keeps no state between calls.
	Compiler struct{}

	pkgContext struct {
		*ir.Module

		w  *mips.Writer
		tr tlog.Span

		*funContext
	}

	funContext struct {
		f ir.Value

		slots map[ir.Value]Slot

		// cursor is the lowest offset allocated so far,
		// bottom is the final one.
		cursor int
		bottom int
	}
)

func New() *Compiler {
	return &Compiler{}
}

// CompilePackage appends the assembly of m to b.
func (c *Compiler) CompilePackage(ctx context.Context, b []byte, m *ir.Module) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile package", "path", m.Path, "funcs", len(m.Funcs), "globals", len(m.Globals))
	defer tr.Finish("err", &err)

	p := &pkgContext{
		Module: m,
		w:      mips.NewWriter(b),
		tr:     tr,
	}

	if tr.If("dump_pkg") {
		for id, x := range p.Exprs {
			tr.Printw("expr", "id", id, "tp", p.EType[id], "typ", tlog.NextAsType, x)
		}
	}

	p.data()
	p.macros()

	p.w.Printf("\n.text\n")
	p.w.Ins("jal", "main")
	p.w.Ins("li", mips.V0, 10)
	p.w.Ins("syscall")

	for _, f := range p.Funcs {
		fn := p.Func(f)

		if fn.Builtin != ir.NotBuiltin {
			continue
		}

		err = c.compileFunc(ctx, p, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", fn.Name)
		}
	}

	if tr.If("omit_out") {
		return b, nil
	}

	return p.w.Bytes(), nil
}

func (p *pkgContext) data() {
	p.w.Printf(".data\n")

	for _, g := range p.Globals {
		x := p.Global(g)
		sym := p.symbol(g)

		switch init := p.Exprs[x.Init].(type) {
		case ir.ConstInt:
			p.w.Printf("%s:\t.word %d\n", sym, int32(init))
		case *ir.ConstArray:
			if !init.Init {
				p.w.Printf("%s:\t.space %d\n", sym, len(init.Elems)*mips.WordSize)
				continue
			}

			p.w.Printf("%s:\t.word ", sym)

			for i, v := range init.Elems {
				if i != 0 {
					p.w.Printf(", ")
				}

				p.w.Printf("%d", v)
			}

			p.w.Printf("\n")
		case ir.ConstString:
			p.w.Printf("%s:\t.asciiz %s\n", sym, quote(string(init)))
		default:
			panic(init)
		}
	}
}

func (p *pkgContext) macros() {
	for _, m := range macros {
		p.w.Printf("\n.macro %s()\n", m.name)
		p.w.Ins("li", mips.V0, m.syscall)
		p.w.Ins("syscall")
		p.w.Printf(".end_macro\n")
	}
}

func (c *Compiler) compileFunc(ctx context.Context, p *pkgContext, f ir.Value) (err error) {
	fn := p.Func(f)

	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile func", "name", fn.Name, "params", len(fn.Params), "blocks", len(fn.Blocks))
	defer tr.Finish("err", &err)

	p.funContext = &funContext{
		f:     f,
		slots: make(map[ir.Value]Slot),
	}

	defer func() {
		p.funContext = nil
	}()

	p.layout(f)

	tr.V("frame").Printw("frame", "size", -p.bottom, "slots", len(p.slots))

	p.w.Printf("\n")
	p.w.Label(funcLabel(fn.Name))

	p.entry(f)

	for _, b := range fn.Blocks {
		blk := p.Block(b)

		p.w.Label(blk.Name)

		for _, id := range blk.Code {
			p.w.Comment("%s", p.Format(id))

			p.instr(id)
		}
	}

	return nil
}

func (p *pkgContext) instr(id ir.Value) {
	switch x := p.Exprs[id].(type) {
	case ir.BinaryOp:
		p.binary(id, x)
	case ir.Call:
		p.call(id)
	case ir.Ret:
		p.ret(id)
	case ir.Alloca:
		p.alloca(id, x)
	case ir.Load:
		p.loadInstr(id)
	case ir.Store:
		p.storeInstr(id)
	case ir.GEP:
		p.gep(id)
	case ir.Branch:
		p.branch(id)
	case ir.Convert:
		p.convert(id, x)
	default:
		panic(p.Format(id))
	}
}

func quote(s string) string {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b = append(b, `\n`...)
		case '\t':
			b = append(b, `\t`...)
		case '"', '\\':
			b = append(b, '\\', c)
		default:
			b = append(b, c)
		}
	}

	b = append(b, '"')

	return string(b)
}
