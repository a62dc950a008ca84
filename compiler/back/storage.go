package back

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/sysy/compiler/asm/mips"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/tp"
)

type (
	Area int

	// Slot is the home of a value: a data symbol or a frame offset from $sp.
	Slot struct {
		Area Area
		Off  int
		Sym  string
	}
)

const (
	Global Area = iota
	Stack
)

func (a Area) String() string {
	if a == Global {
		return "global"
	}

	return "stack"
}

func (s Slot) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if s.Area == Global {
		return e.AppendString(b, s.Sym)
	}

	return e.AppendFormat(b, "%d($sp)", s.Off)
}

func (s Slot) Mem() string {
	return mips.Mem(s.Off, mips.SP)
}

// slot returns the storage of v, assigning it on first reference.
func (p *pkgContext) slot(v ir.Value) Slot {
	if s, ok := p.slots[v]; ok {
		return s
	}

	var s Slot

	switch x := p.Exprs[v].(type) {
	case *ir.Global:
		s = Slot{Area: Global, Sym: p.symbol(v)}
	case ir.Alloca:
		s = p.alloc(1)

		if a, ok := x.Elem.(tp.Array); ok {
			p.alloc(a.Cap())
		}
	case ir.ConstInt, *ir.Func, *ir.Block, *ir.ConstArray, ir.ConstString:
		panic(p.Name(v))
	default:
		s = p.alloc(1)
	}

	p.slots[v] = s

	if p.tr.If("dump_slots") {
		p.tr.Printw("slot", "val", p.Name(v), "slot", s, "from", loc.Caller(1))
	}

	return s
}

// alloc moves the frame cursor down by n words.
func (p *pkgContext) alloc(n int) Slot {
	p.cursor -= n * mips.WordSize

	return Slot{Area: Stack, Off: p.cursor}
}

// region is the first element address of the stack array allocated by a.
func (p *pkgContext) region(a ir.Value) int {
	s := p.slot(a)
	n := p.Exprs[a].(ir.Alloca).Elem.(tp.Array).Cap()

	return s.Off - n*mips.WordSize
}

// layout assigns every slot of the function in emission order,
// so the frame bottom is known before the first call is emitted.
func (p *pkgContext) layout(f ir.Value) {
	fn := p.Func(f)

	for _, a := range fn.Params {
		p.slot(a)
	}

	for _, b := range fn.Blocks {
		for _, id := range p.Block(b).Code {
			if p.EType[id].Size() == 0 {
				continue
			}

			p.slot(id)
		}
	}

	p.bottom = p.cursor
}

func (p *pkgContext) symbol(g ir.Value) string {
	x := p.Global(g)

	if _, ok := p.Exprs[x.Init].(ir.ConstString); ok {
		return x.Name
	}

	return "g." + x.Name
}

func funcLabel(name string) string {
	if name == "main" {
		return name
	}

	return "f." + name
}

// isString reports whether v is a global string constant.
func (p *pkgContext) isString(v ir.Value) bool {
	g, ok := p.Exprs[v].(*ir.Global)
	if !ok {
		return false
	}

	_, ok = p.Exprs[g.Init].(ir.ConstString)

	return ok
}

// load puts the value of v into r.
// Pointer values of globals and stack arrays are their addresses.
func (p *pkgContext) load(r mips.Reg, v ir.Value) {
	if k, ok := p.IsConst(v); ok {
		p.w.Ins("li", r, k)
		return
	}

	s := p.slot(v)

	switch x := p.Exprs[v].(type) {
	case *ir.Global:
		p.w.Ins("la", r, s.Sym)
	case ir.Alloca:
		if _, ok := x.Elem.(tp.Array); ok {
			p.w.Ins("lw", r, s.Mem())
		} else {
			p.w.Ins("addiu", r, mips.SP, s.Off)
		}
	default:
		p.w.Ins("lw", r, s.Mem())
	}
}

// store saves r as the value of v.
func (p *pkgContext) store(r mips.Reg, v ir.Value) {
	s := p.slot(v)

	if s.Area != Stack {
		panic(p.Name(v))
	}

	p.w.Ins("sw", r, s.Mem())
}

// deref loads the word ptr points to into r using t as a scratch register.
func (p *pkgContext) deref(r, t mips.Reg, ptr ir.Value) {
	switch {
	case p.isScalarAlloca(ptr):
		p.w.Ins("lw", r, p.slot(ptr).Mem())
	case p.isGlobal(ptr):
		p.w.Ins("la", t, p.slot(ptr).Sym)
		p.w.Ins("lw", r, mips.Mem(0, t))
	default:
		p.load(t, ptr)
		p.w.Ins("lw", r, mips.Mem(0, t))
	}
}

// assign stores r into the word ptr points to using t as a scratch register.
func (p *pkgContext) assign(r, t mips.Reg, ptr ir.Value) {
	switch {
	case p.isScalarAlloca(ptr):
		p.w.Ins("sw", r, p.slot(ptr).Mem())
	case p.isGlobal(ptr):
		p.w.Ins("la", t, p.slot(ptr).Sym)
		p.w.Ins("sw", r, mips.Mem(0, t))
	default:
		p.load(t, ptr)
		p.w.Ins("sw", r, mips.Mem(0, t))
	}
}

func (p *pkgContext) isScalarAlloca(v ir.Value) bool {
	x, ok := p.Exprs[v].(ir.Alloca)
	if !ok {
		return false
	}

	_, arr := x.Elem.(tp.Array)

	return !arr
}

func (p *pkgContext) isGlobal(v ir.Value) bool {
	_, ok := p.Exprs[v].(*ir.Global)
	return ok
}
