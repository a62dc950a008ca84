package ir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/sysy/compiler/tp"
)

func testFunc(t *testing.T) (*Module, Value, Value) {
	t.Helper()

	m := New("test")

	f := m.NewFunc("f", tp.Func{Out: tp.I32, In: []tp.Type{tp.I32, tp.I32}}, NotBuiltin)
	m.NewParam(f, "a", tp.I32)
	m.NewParam(f, "b", tp.I32)

	b := m.NewBlock(f, "entry")
	m.AttachBlock(b)

	return m, f, b
}

// usesOf recomputes the use-set of v by scanning every operand slot.
func usesOf(m *Module, v Value) []Use {
	var l []Use

	for u := range m.Exprs {
		for i, x := range m.Operands(Value(u)) {
			if x == v {
				l = append(l, Use{User: Value(u), Index: i})
			}
		}
	}

	return l
}

func checkUses(t *testing.T, m *Module) {
	t.Helper()

	for v := range m.Exprs {
		assert.Equal(t, usesOf(m, Value(v)), m.Uses(Value(v)), "value %v", m.Name(Value(v)))
	}
}

func TestUsesFollowOperands(t *testing.T) {
	m, f, b := testFunc(t)

	a, c := m.Func(f).Params[0], m.Func(f).Params[1]

	x := m.Binary(b, Add, a, c)
	y := m.Binary(b, Mul, x, x)
	m.Ret(b, y)

	assert.Equal(t, []Use{{User: y, Index: 0}, {User: y, Index: 1}}, m.Uses(x))
	checkUses(t, m)

	m.SetOperand(y, 1, c)

	assert.Equal(t, []Use{{User: y, Index: 0}}, m.Uses(x))
	assert.Equal(t, []Use{{User: x, Index: 1}, {User: y, Index: 1}}, m.Uses(c))
	checkUses(t, m)

	m.ReplaceAllUses(c, a)

	assert.Empty(t, m.Uses(c))
	assert.Len(t, m.Uses(a), 3)
	checkUses(t, m)

	require.NoError(t, m.Verify(context.Background()))
}

func TestRemoveInstr(t *testing.T) {
	m, f, b := testFunc(t)

	a := m.Func(f).Params[0]

	x := m.Binary(b, Add, a, m.ConstInt(1))
	y := m.Binary(b, Sub, x, a)
	m.Ret(b, a)

	m.RemoveInstr(y)

	assert.Empty(t, m.Uses(x))
	assert.Len(t, m.Uses(a), 2)
	assert.NotContains(t, m.Block(b).Code, y)
	checkUses(t, m)

	assert.Panics(t, func() { m.RemoveInstr(a) })

	m.RemoveInstr(x)
	checkUses(t, m)

	require.NoError(t, m.Verify(context.Background()))
}

func TestDropOperandsSameValueTwice(t *testing.T) {
	m, f, b := testFunc(t)

	a := m.Func(f).Params[0]

	x := m.Binary(b, Add, a, a)
	m.Ret(b, x)

	require.Len(t, m.Uses(a), 2)

	m.DropOperands(x)

	assert.Empty(t, m.Uses(a))
	assert.Empty(t, m.Operands(x))
	checkUses(t, m)
}

func TestVerifyTerminators(t *testing.T) {
	m, f, b := testFunc(t)

	a := m.Func(f).Params[0]
	m.Binary(b, Add, a, a)

	err := m.Verify(context.Background())
	assert.Error(t, err)

	m.Ret(b, a)
	assert.NoError(t, m.Verify(context.Background()))

	assert.Panics(t, func() { m.Ret(b, a) })
}

func TestVerifyForeignBranch(t *testing.T) {
	m, _, b := testFunc(t)

	g := m.NewFunc("g", tp.Func{Out: tp.Void{}}, NotBuiltin)
	gb := m.NewBlock(g, "entry")
	m.AttachBlock(gb)
	m.Ret(gb)

	m.Br(b, gb)

	assert.Error(t, m.Verify(context.Background()))
}

func TestGEPType(t *testing.T) {
	m, f, b := testFunc(t)

	arr := tp.Array{X: tp.I32, Dims: []int{3, 4}}
	p := m.Alloca(b, arr)

	zero := m.ConstInt(0)
	i := m.Func(f).Params[0]

	row := m.GEP(b, p, zero, i)
	elem := m.GEP(b, p, zero, i, m.ConstInt(2))

	assert.Equal(t, "[4 x i32]*", m.EType[row].String())
	assert.Equal(t, "i32*", m.EType[elem].String())

	v := m.Load(b, elem)
	assert.Equal(t, "i32", m.EType[v].String())

	m.Ret(b, v)

	require.NoError(t, m.Verify(context.Background()))
}

func TestConstIntInterned(t *testing.T) {
	m := New("test")

	assert.Equal(t, m.ConstInt(7), m.ConstInt(7))
	assert.NotEqual(t, m.ConstInt(7), m.ConstInt(8))

	v, ok := m.IsConst(m.ConstInt(-3))
	assert.True(t, ok)
	assert.Equal(t, int32(-3), v)
}
