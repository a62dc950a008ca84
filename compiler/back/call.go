package back

import (
	"github.com/slowlang/sysy/compiler/asm/mips"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

var macros = []struct {
	name    string
	syscall int
	builtin ir.Builtin
}{
	{"GETINT", 5, ir.GetInt},
	{"PUTINT", 1, ir.PutInt},
	{"PUTCH", 11, ir.PutCh},
	{"PUTSTR", 4, ir.PutStr},
}

func macroFor(b ir.Builtin) string {
	for _, m := range macros {
		if m.builtin == b {
			return m.name
		}
	}

	panic(b)
}

// entry copies the stacked arguments into the parameter slots.
// Argument k is at 4k($sp).
func (p *pkgContext) entry(f ir.Value) {
	for k, a := range p.Func(f).Params {
		p.w.Ins("lw", mips.T0, mips.Mem(k*mips.WordSize, mips.SP))
		p.store(mips.T0, a)
	}
}

// call saves $ra below the frame, writes the arguments at ascending offsets
// of the callee frame and moves $sp across the call.
func (p *pkgContext) call(id ir.Value) {
	ops := p.Operands(id)
	f, args := ops[0], ops[1:]
	fn := p.Func(f)

	if fn.Builtin != ir.NotBuiltin {
		if len(args) != 0 {
			p.load(mips.A0, args[0])
		}

		p.w.Printf("\t%s()\n", macroFor(fn.Builtin))

		if !tp.IsVoid(p.EType[id]) {
			p.store(mips.V0, id)
		}

		return
	}

	ra := p.bottom - mips.WordSize
	frame := ra - len(args)*mips.WordSize

	p.w.Ins("sw", mips.RA, mips.Mem(ra, mips.SP))

	for k, a := range args {
		p.load(mips.T0, a)
		p.w.Ins("sw", mips.T0, mips.Mem(frame+k*mips.WordSize, mips.SP))
	}

	p.w.Ins("addiu", mips.SP, mips.SP, frame)
	p.w.Ins("jal", funcLabel(fn.Name))
	p.w.Ins("addiu", mips.SP, mips.SP, -frame)
	p.w.Ins("lw", mips.RA, mips.Mem(ra, mips.SP))

	if !tp.IsVoid(p.EType[id]) {
		p.store(mips.V0, id)
	}
}

func (p *pkgContext) ret(id ir.Value) {
	if p.NumOperands(id) != 0 {
		p.load(mips.V0, p.Operand(id, 0))
	}

	p.w.Ins("jr", mips.RA)
}

func (p *pkgContext) branch(id ir.Value) {
	t, f := p.Targets(id)

	if f == ir.Nil {
		p.w.Ins("j", p.Block(t).Name)
		return
	}

	p.load(mips.T0, p.Cond(id))
	p.w.Ins("beqz", mips.T0, p.Block(f).Name)
	p.w.Ins("j", p.Block(t).Name)
}
