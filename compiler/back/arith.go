package back

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/slowlang/sysy/compiler/asm/mips"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

var binOps = map[ir.Op]string{
	ir.Add: "addu",
	ir.Sub: "subu",
	ir.Mul: "mul",
	ir.Div: "div",
	ir.Mod: "rem",
	ir.Lt:  "slt",
	ir.Le:  "sle",
	ir.Gt:  "sgt",
	ir.Ge:  "sge",
	ir.Eq:  "seq",
	ir.Ne:  "sne",
}

func (p *pkgContext) binary(id ir.Value, x ir.BinaryOp) {
	l, r := p.Operand(id, 0), p.Operand(id, 1)

	switch x.Op {
	case ir.Mul:
		if k, ok := p.IsConst(r); ok {
			p.load(mips.T0, l)
			p.mulConst(mips.T0, k)
			p.store(mips.T0, id)

			return
		}

		if k, ok := p.IsConst(l); ok {
			p.load(mips.T0, r)
			p.mulConst(mips.T0, k)
			p.store(mips.T0, id)

			return
		}
	case ir.Div:
		if k, ok := p.IsConst(r); ok && k != 0 {
			p.load(mips.T0, l)
			p.divConst(mips.T0, k)
			p.store(mips.T0, id)

			return
		}
	}

	op, ok := binOps[x.Op]
	if !ok {
		panic(x.Op)
	}

	p.load(mips.T0, l)
	p.load(mips.T1, r)
	p.w.Ins(op, mips.T0, mips.T0, mips.T1)
	p.store(mips.T0, id)
}

// mulConst multiplies r by k in place. r must not be $t1.
func (p *pkgContext) mulConst(r mips.Reg, k int32) {
	switch {
	case k == 0:
		p.w.Ins("move", r, mips.Zero)
	case k == 1:
	case k == -1:
		p.w.Ins("negu", r, r)
	case k > 0 && k&(k-1) == 0:
		p.w.Ins("sll", r, r, bits.TrailingZeros32(uint32(k)))
	default:
		p.w.Ins("li", mips.T1, k)
		p.w.Ins("mul", r, r, mips.T1)
	}
}

// divConst divides r by nonzero k in place truncating toward zero.
// It clobbers $t1 and $t2.
func (p *pkgContext) divConst(r mips.Reg, k int32) {
	switch {
	case k == 1:
		return
	case k == -1:
		p.w.Ins("negu", r, r)
		return
	case k == math.MinInt32:
		p.w.Ins("li", mips.T1, k)
		p.w.Ins("div", r, r, mips.T1)
		return
	}

	d := uint32(k)
	if k < 0 {
		d = uint32(-k)
	}

	if d&(d-1) == 0 {
		l := bits.TrailingZeros32(d)

		p.w.Ins("sra", mips.T1, r, 31)
		p.w.Ins("srl", mips.T1, mips.T1, 32-l)
		p.w.Ins("addu", r, r, mips.T1)
		p.w.Ins("sra", r, r, l)
	} else {
		m, sh, _ := chooseMultiplier(d, 31)

		p.w.Ins("li", mips.T1, int32(uint32(m)))
		p.w.Ins("mult", r, mips.T1)
		p.w.Ins("mfhi", mips.T2)

		if m >= 1<<31 {
			p.w.Ins("addu", mips.T2, mips.T2, r)
		}

		if sh != 0 {
			p.w.Ins("sra", mips.T2, mips.T2, sh)
		}

		p.w.Ins("sra", mips.T1, r, 31)
		p.w.Ins("subu", r, mips.T2, mips.T1)
	}

	if k < 0 {
		p.w.Ins("negu", r, r)
	}
}

// chooseMultiplier finds m and sh such that
// n / d == (n * m) >> (32 + sh) for every n with prec significant bits.
// l is ceil(log2(d)).
func chooseMultiplier(d uint32, prec int) (m uint64, sh, l int) {
	const n = 32

	if d == 0 {
		panic("zero divisor")
	}

	l = bits.Len32(d - 1)

	if n+l > 63 {
		panic(fmt.Sprintf("multiplier for %d does not fit 64 bits", d))
	}

	sh = l

	low := (uint64(1) << (n + l)) / uint64(d)
	high := ((uint64(1) << (n + l)) + (uint64(1) << (n + l - prec))) / uint64(d)

	for low/2 < high/2 && sh > 0 {
		low /= 2
		high /= 2
		sh--
	}

	if high >= 1<<n {
		panic(fmt.Sprintf("multiplier for %d overflows: %#x", d, high))
	}

	return high, sh, l
}

// convert masks the value to the narrower of the widths involved.
func (p *pkgContext) convert(id ir.Value, x ir.Convert) {
	v := p.Operand(id, 0)

	p.load(mips.T0, v)

	width := 32

	switch x.Kind {
	case ir.Zext:
		width = intBits(p.EType[v])
	case ir.Trunc:
		width = intBits(p.EType[id])
	case ir.Bitcast:
	default:
		panic(x.Kind)
	}

	if width < 32 {
		p.w.Ins("sll", mips.T0, mips.T0, 32-width)
		p.w.Ins("srl", mips.T0, mips.T0, 32-width)
	}

	p.store(mips.T0, id)
}

func intBits(t tp.Type) int {
	if x, ok := t.(tp.Int); ok {
		return int(x.Bits)
	}

	return 32
}
