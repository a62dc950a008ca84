package back

import (
	"github.com/slowlang/sysy/compiler/asm/mips"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

func (p *pkgContext) alloca(id ir.Value, x ir.Alloca) {
	if _, ok := x.Elem.(tp.Array); !ok {
		p.slot(id)
		return
	}

	p.w.Ins("addiu", mips.T0, mips.SP, p.region(id))
	p.store(mips.T0, id)
}

func (p *pkgContext) loadInstr(id ir.Value) {
	p.deref(mips.T0, mips.T1, p.Operand(id, 0))
	p.store(mips.T0, id)
}

func (p *pkgContext) storeInstr(id ir.Value) {
	p.load(mips.T0, p.Operand(id, 0))
	p.assign(mips.T0, mips.T1, p.Operand(id, 1))
}

// gep accumulates constant indices into one offset
// and scales variable ones at run time.
func (p *pkgContext) gep(id ir.Value) {
	ops := p.Operands(id)
	base, idx := ops[0], ops[1:]

	if p.isString(base) {
		p.w.Ins("la", mips.T2, p.slot(base).Sym)
		p.store(mips.T2, id)

		return
	}

	elem := tp.Elem(p.EType[base])

	p.load(mips.T2, base)

	off := 0

	for i, x := range idx {
		step := mips.WordSize * stride(elem, i)

		if k, ok := p.IsConst(x); ok {
			off += int(k) * step
			continue
		}

		if off != 0 {
			p.w.Ins("addiu", mips.T2, mips.T2, off)
			off = 0
		}

		p.load(mips.T0, x)
		p.mulConst(mips.T0, int32(step))
		p.w.Ins("addu", mips.T2, mips.T2, mips.T0)
	}

	if off != 0 {
		p.w.Ins("addiu", mips.T2, mips.T2, off)
	}

	p.store(mips.T2, id)
}

// stride is the number of words the i-th index steps over
// when indexing a pointer to t.
func stride(t tp.Type, i int) int {
	a, ok := t.(tp.Array)
	if !ok {
		if i != 0 {
			panic("index into scalar")
		}

		return max(1, t.Size()/mips.WordSize)
	}

	return a.Stride(i)
}
