package ir

import (
	"fmt"

	"github.com/slowlang/sysy/compiler/tp"
)

func New(path string) *Module {
	return &Module{
		Path: path,
		ints: make(map[int32]Value),
	}
}

func (m *Module) Func(v Value) *Func {
	return m.Exprs[v].(*Func)
}

func (m *Module) Block(v Value) *Block {
	return m.Exprs[v].(*Block)
}

func (m *Module) Global(v Value) *Global {
	return m.Exprs[v].(*Global)
}

// FuncType returns the signature of the function f.
func (m *Module) FuncType(f Value) tp.Func {
	return m.EType[f].(tp.Func)
}

// IsConst reports whether v is an integer constant and returns it.
func (m *Module) IsConst(v Value) (int32, bool) {
	x, ok := m.Exprs[v].(ConstInt)

	return int32(x), ok
}

func (m *Module) NewFunc(name string, t tp.Func, b Builtin) Value {
	f := &Func{
		Name:    name,
		Builtin: b,
	}

	id := m.alloc(f, t, Nil)
	m.Funcs = append(m.Funcs, id)

	return id
}

func (m *Module) NewParam(f Value, name string, t tp.Type) Value {
	fn := m.Func(f)

	id := m.alloc(Param{Index: len(fn.Params), Name: name}, t, f)
	fn.Params = append(fn.Params, id)

	return id
}

// NewBlock creates a detached block of the function f.
// It becomes part of the function layout with AttachBlock.
func (m *Module) NewBlock(f Value, hint string) Value {
	id := m.id()

	return m.alloc(&Block{Name: fmt.Sprintf("%s.%d", hint, id)}, tp.Void{}, f)
}

func (m *Module) AttachBlock(b Value) {
	f := m.Func(m.owner[b])

	for _, x := range f.Blocks {
		if x == b {
			return
		}
	}

	f.Blocks = append(f.Blocks, b)
}

func (m *Module) Attached(b Value) bool {
	for _, x := range m.Func(m.owner[b]).Blocks {
		if x == b {
			return true
		}
	}

	return false
}

func (m *Module) NewGlobal(name string, init Value, isConst bool) Value {
	g := &Global{
		Name:  name,
		Init:  init,
		Const: isConst,
	}

	id := m.alloc(g, tp.Ptr{X: m.EType[init]}, Nil)
	m.Globals = append(m.Globals, id)

	return id
}

// NewString creates a constant global holding s.
func (m *Module) NewString(s string) Value {
	t := tp.Array{X: tp.I8, Dims: []int{len(s) + 1}}
	init := m.alloc(ConstString(s), t, Nil)

	name := fmt.Sprintf("str.%d", m.strs)
	m.strs++

	return m.NewGlobal(name, init, true)
}

// ConstInt returns the interned constant v.
func (m *Module) ConstInt(v int32) Value {
	if id, ok := m.ints[v]; ok {
		return id
	}

	id := m.alloc(ConstInt(v), tp.I32, Nil)
	m.ints[v] = id

	return id
}

func (m *Module) ConstArray(t tp.Array, elems []int32, init bool) Value {
	if len(elems) != t.Cap() {
		panic(fmt.Sprintf("array initializer size mismatch: %d != %d", len(elems), t.Cap()))
	}

	return m.alloc(&ConstArray{Elems: elems, Init: init}, t, Nil)
}

// Terminator returns the last instruction of b if it's a terminator.
func (m *Module) Terminator(b Value) (Value, bool) {
	code := m.Block(b).Code
	if len(code) == 0 {
		return Nil, false
	}

	last := code[len(code)-1]

	return last, IsTerminator(m.Exprs[last])
}

func (m *Module) insert(b Value, x any, t tp.Type, ops ...Value) Value {
	if _, ok := m.Terminator(b); ok {
		panic(fmt.Sprintf("insert into terminated block %v", m.Block(b).Name))
	}

	id := m.alloc(x, t, b)

	for _, op := range ops {
		m.AddOperand(id, op)
	}

	blk := m.Block(b)
	blk.Code = append(blk.Code, id)

	return id
}

func (m *Module) Binary(b Value, op Op, l, r Value) Value {
	var t tp.Type = tp.I32
	if op.IsCmp() {
		t = tp.I1
	}

	return m.insert(b, BinaryOp{Op: op}, t, l, r)
}

func (m *Module) Call(b, f Value, args ...Value) Value {
	ft := m.FuncType(f)

	if len(args) != len(ft.In) {
		panic(fmt.Sprintf("call %v: %d args, want %d", m.Func(f).Name, len(args), len(ft.In)))
	}

	return m.insert(b, Call{}, ft.Out, append([]Value{f}, args...)...)
}

func (m *Module) Ret(b Value, v ...Value) Value {
	return m.insert(b, Ret{}, tp.Void{}, v...)
}

func (m *Module) Alloca(b Value, elem tp.Type) Value {
	return m.insert(b, Alloca{Elem: elem}, tp.Ptr{X: elem})
}

func (m *Module) Load(b, ptr Value) Value {
	return m.insert(b, Load{}, tp.Elem(m.EType[ptr]), ptr)
}

func (m *Module) Store(b, v, ptr Value) Value {
	return m.insert(b, Store{}, tp.Void{}, v, ptr)
}

// GEP computes an address from base, stepping over the pointer with the first index
// and into array dimensions with the rest.
func (m *Module) GEP(b, base Value, idx ...Value) Value {
	if len(idx) == 0 {
		panic("gep without indices")
	}

	t := tp.Elem(m.EType[base])

	if len(idx) > 1 {
		a, ok := t.(tp.Array)
		if !ok {
			panic(fmt.Sprintf("gep into %v with %d indices", t, len(idx)))
		}

		t = a.Strip(len(idx) - 1)
	}

	return m.insert(b, GEP{}, tp.Ptr{X: t}, append([]Value{base}, idx...)...)
}

func (m *Module) Br(b, to Value) Value {
	return m.insert(b, Branch{}, tp.Void{}, to)
}

func (m *Module) CondBr(b, cond, t, f Value) Value {
	return m.insert(b, Branch{}, tp.Void{}, cond, t, f)
}

func (m *Module) Convert(b Value, k ConvKind, x Value, to tp.Type) Value {
	return m.insert(b, Convert{Kind: k}, to, x)
}

// Targets returns the successor blocks of the branch br.
func (m *Module) Targets(br Value) (t, f Value) {
	ops := m.ops[br]

	if len(ops) == 1 {
		return ops[0], Nil
	}

	return ops[1], ops[2]
}

// Cond returns the condition of the branch br or Nil.
func (m *Module) Cond(br Value) Value {
	ops := m.ops[br]

	if len(ops) == 1 {
		return Nil
	}

	return ops[0]
}
