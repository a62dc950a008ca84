package front

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/parse"
)

func build(t *testing.T, opts Options, src string) *ir.Module {
	t.Helper()

	ctx := context.Background()

	x, err := parse.Parse(ctx, []byte(src))
	require.NoError(t, err)

	m, err := New(opts).Build(ctx, "test", x)
	require.NoError(t, err)

	err = m.Verify(ctx)
	require.NoError(t, err)

	return m
}

func findFunc(t *testing.T, m *ir.Module, name string) ir.Value {
	t.Helper()

	for _, f := range m.Funcs {
		if m.Func(f).Name == name {
			return f
		}
	}

	t.Fatalf("no func %v", name)

	return ir.Nil
}

func instrs[T any](m *ir.Module, f ir.Value) (l []ir.Value) {
	for _, b := range m.Func(f).Blocks {
		for _, id := range m.Block(b).Code {
			if _, ok := m.Exprs[id].(T); ok {
				l = append(l, id)
			}
		}
	}

	return l
}

// calls lists callee names and constant args of the calls in f.
func calls(m *ir.Module, f ir.Value) (l [][2]any) {
	for _, id := range instrs[ir.Call](m, f) {
		callee := m.Func(m.Operand(id, 0)).Name

		var arg any
		if m.NumOperands(id) > 1 {
			a := m.Operand(id, 1)

			if v, ok := m.IsConst(a); ok {
				arg = v
			} else {
				arg = a
			}
		}

		l = append(l, [2]any{callee, arg})
	}

	return l
}

func TestAdditiveCollapse(t *testing.T) {
	m := build(t, Options{}, `
int main() {
	int a = getint();
	int b = getint();
	return a + a + a + b;
}`)

	main := findFunc(t, m, "main")

	rets := instrs[ir.Ret](m, main)
	require.Len(t, rets, 1)

	add := m.Operand(rets[0], 0)
	require.Equal(t, ir.BinaryOp{Op: ir.Add}, m.Exprs[add])

	mul := m.Operand(add, 0)
	require.Equal(t, ir.BinaryOp{Op: ir.Mul}, m.Exprs[mul])

	k, ok := m.IsConst(m.Operand(mul, 1))
	assert.True(t, ok)
	assert.Equal(t, int32(3), k)

	la := m.Operand(mul, 0)
	lb := m.Operand(add, 1)

	assert.IsType(t, ir.Load{}, m.Exprs[la])
	assert.IsType(t, ir.Load{}, m.Exprs[lb])
	assert.NotEqual(t, m.Operand(la, 0), m.Operand(lb, 0))

	assert.Len(t, instrs[ir.Load](m, main), 2)
}

func TestAdditiveSigns(t *testing.T) {
	m := build(t, Options{}, `
int main() {
	int x = getint();
	int a = getint();
	return x - a - a + a;
}`)

	main := findFunc(t, m, "main")
	ret := instrs[ir.Ret](m, main)[0]

	add := m.Operand(ret, 0)
	require.Equal(t, ir.BinaryOp{Op: ir.Add}, m.Exprs[add])

	sub := m.Operand(add, 0)
	require.Equal(t, ir.BinaryOp{Op: ir.Sub}, m.Exprs[sub])

	mul := m.Operand(sub, 1)
	require.Equal(t, ir.BinaryOp{Op: ir.Mul}, m.Exprs[mul])

	k, _ := m.IsConst(m.Operand(mul, 1))
	assert.Equal(t, int32(2), k)
}

func TestAdditiveKeepsCalls(t *testing.T) {
	m := build(t, Options{}, `
int main() {
	return getint() + getint();
}`)

	main := findFunc(t, m, "main")

	assert.Len(t, calls(m, main), 2)

	for _, id := range instrs[ir.BinaryOp](m, main) {
		assert.NotEqual(t, ir.Mul, m.Exprs[id].(ir.BinaryOp).Op)
	}
}

func TestPrintfCalls(t *testing.T) {
	m := build(t, Options{}, `
int main() {
	int v = getint();
	printf("x=%d\n", v);
	return 0;
}`)

	main := findFunc(t, m, "main")
	l := calls(m, main)

	require.Len(t, l, 5)

	assert.Equal(t, [2]any{"getint", nil}, l[0])
	assert.Equal(t, [2]any{"putch", int32('x')}, l[1])
	assert.Equal(t, [2]any{"putch", int32('=')}, l[2])
	assert.Equal(t, "putint", l[3][0])
	assert.IsType(t, ir.Load{}, m.Exprs[l[3][1].(ir.Value)])
	assert.Equal(t, [2]any{"putch", int32('\n')}, l[4])
}

func TestPrintfStringSegments(t *testing.T) {
	m := build(t, Options{StringSegments: true}, `
int main() {
	printf("a=%d, b=%d\n", 1, 2);
	return 0;
}`)

	main := findFunc(t, m, "main")
	l := calls(m, main)

	names := make([]any, len(l))
	for i, c := range l {
		names[i] = c[0]
	}

	assert.Equal(t, []any{"putstr", "putint", "putstr", "putint", "putstr"}, names)

	var strs []string

	for _, g := range m.Globals {
		if s, ok := m.Exprs[m.Global(g).Init].(ir.ConstString); ok {
			strs = append(strs, string(s))
		}
	}

	assert.Equal(t, []string{"a=", ", b=", "\n"}, strs)
}

func TestPrintfShadowedBuiltins(t *testing.T) {
	for _, opts := range []Options{{}, {StringSegments: true}} {
		m := build(t, opts, `
int main() {
	int putch = 1, putint = 2;
	{
		int putstr = 3;
		printf("x%d\n", putch + putint + putstr);
	}
	return putch;
}`)

		main := findFunc(t, m, "main")

		for _, id := range instrs[ir.Call](m, main) {
			f := m.Operand(id, 0)

			require.IsType(t, &ir.Func{}, m.Exprs[f], "%+v", opts)
			assert.NotEqual(t, ir.NotBuiltin, m.Func(f).Builtin, "%+v", opts)
		}

		assert.NotEmpty(t, instrs[ir.Call](m, main))
	}
}

func TestLocalArraysZeroed(t *testing.T) {
	m := build(t, Options{}, `
int main() {
	int a[2][2];
	int b[40];
	return a[1][1] + b[39];
}`)

	main := findFunc(t, m, "main")

	zeros := 0

	for _, id := range instrs[ir.Store](m, main) {
		v, ok := m.IsConst(m.Operand(id, 0))
		if !ok || v != 0 {
			continue
		}

		if _, ok := m.Exprs[m.Operand(id, 1)].(ir.GEP); ok {
			zeros++
		}
	}

	// a is cleared element by element, b in a loop with one store
	assert.Equal(t, 4+1, zeros)

	var names []string

	for _, b := range m.Func(main).Blocks {
		names = append(names, m.Block(b).Name)
	}

	assert.Len(t, names, 4)
	assert.Regexp(t, `^zero\.body\.\d+$`, names[2])
}

func TestScopeShadowing(t *testing.T) {
	m := build(t, Options{}, `
int a = 5;
int main() {
	putint(a);
	int a = 1;
	{
		int a = 2;
		putint(a);
	}
	putint(a);
	return 0;
}`)

	main := findFunc(t, m, "main")
	l := calls(m, main)
	require.Len(t, l, 3)

	var slots []ir.Value

	for _, c := range l {
		slots = append(slots, m.Operand(c[1].(ir.Value), 0))
	}

	assert.IsType(t, &ir.Global{}, m.Exprs[slots[0]])
	assert.IsType(t, ir.Alloca{}, m.Exprs[slots[1]])
	assert.IsType(t, ir.Alloca{}, m.Exprs[slots[2]])
	assert.NotEqual(t, slots[1], slots[2])
}

func TestConstFolding(t *testing.T) {
	m := build(t, Options{}, `
const int N = 2 * 3, M[2] = {N, N + 1};
int g[M[1]];
int main() {
	const int K = M[0] / 4;
	int arr[N][K + 1];
	return N + K;
}`)

	require.Len(t, m.Globals, 3)

	assert.Equal(t, "[7 x i32]*", m.EType[m.Globals[2]].String())

	ca := m.Exprs[m.Global(m.Globals[1]).Init].(*ir.ConstArray)
	assert.Equal(t, []int32{6, 7}, ca.Elems)

	main := findFunc(t, m, "main")

	var types []string
	for _, a := range instrs[ir.Alloca](m, main) {
		types = append(types, m.Exprs[a].(ir.Alloca).Elem.String())
	}

	assert.Equal(t, []string{"i32", "[6 x [2 x i32]]"}, types)

	ret := instrs[ir.Ret](m, main)[0]
	v, ok := m.IsConst(m.Operand(ret, 0))
	assert.True(t, ok)
	assert.Equal(t, int32(7), v)
}

func TestArrayParams(t *testing.T) {
	m := build(t, Options{}, `
int sum(int a[], int b[][4], int n) {
	return a[n] + b[1][n];
}
int main() {
	int x[3][4] = {{1, 2}, {3}};
	return sum(x[1], x, 2);
}`)

	sum := findFunc(t, m, "sum")
	assert.Equal(t, "i32 (i32*, [4 x i32]*, i32)", m.EType[sum].String())

	main := findFunc(t, m, "main")

	call := instrs[ir.Call](m, main)[0]
	assert.Equal(t, "i32*", m.EType[m.Operand(call, 1)].String())
	assert.Equal(t, "[4 x i32]*", m.EType[m.Operand(call, 2)].String())

	// every element of the initialized array is stored
	assert.Len(t, instrs[ir.Store](m, main), 12)
}

func TestShortCircuit(t *testing.T) {
	m := build(t, Options{}, `
int f() { putint(1); return 1; }
int main() {
	int a = getint();
	if (a > 0 && f() || !a) {
		a = 1;
	}
	int b = a < 3 || f();
	while (a < 10) {
		a = a + 1;
		if (a == 5) continue;
		if (a == 7) break;
	}
	return b;
}`)

	main := findFunc(t, m, "main")

	fcall := ir.Nil

	for _, c := range instrs[ir.Call](m, main) {
		if m.Func(m.Operand(c, 0)).Name == "f" {
			fcall = c
			break
		}
	}

	require.NotEqual(t, ir.Nil, fcall)

	entry := m.Func(main).Blocks[0]
	assert.NotEqual(t, entry, m.Owner(fcall), "f must be called in its own block")

	for _, b := range m.Func(main).Blocks {
		last, ok := m.Terminator(b)
		require.True(t, ok)

		if m.Cond(last) != ir.Nil {
			assert.Equal(t, "i1", m.EType[m.Cond(last)].String())
		}
	}
}

func TestMissingReturn(t *testing.T) {
	m := build(t, Options{}, `
void p() { }
int main() { if (1) return 1; }`)

	p := findFunc(t, m, "p")
	ret := instrs[ir.Ret](m, p)
	require.Len(t, ret, 1)
	assert.Equal(t, 0, m.NumOperands(ret[0]))

	main := findFunc(t, m, "main")
	assert.Len(t, instrs[ir.Ret](m, main), 2)
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()

	for _, src := range []string{
		`int main() { break; }`,
		`const int a = 1; int main() { a = 2; return 0; }`,
		`int a[0]; int main() { return 0; }`,
		`int b; int a[b]; int main() { return 0; }`,
		`int a = 1 / 0; int main() { return 0; }`,
		`void f() { return 1; }`,
		`int main() { int a[2] = {1, 2, 3}; return 0; }`,
	} {
		x, err := parse.Parse(ctx, []byte(src))
		require.NoError(t, err, src)

		_, err = New(Options{}).Build(ctx, "test", x)
		assert.Error(t, err, src)
	}
}

func TestNameErrors(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		src string
		err string
	}{
		{`int main() { return y; }`, "undefined: y"},
		{`int main() { y = 1; return 0; }`, "undefined: y"},
		{`int main() { foo(); return 0; }`, "undefined: foo"},
		{`int main() { int a[2]; return a[y]; }`, "undefined: y"},
		{`int getint() { return 1; } int main() { return 0; }`, "redefined: getint"},
		{`int g; int g; int main() { return 0; }`, "redefined: g"},
		{`int main() { int a = 1; int a = 2; return a; }`, "redefined: a"},
		{`int f(int a, int a) { return a; } int main() { return 0; }`, "redefined: a"},
		{`int main() { int x = 1; return x(); }`, "x is not a function"},
		{`int f() { return 1; } int main() { return f; }`, "f is a function"},
	} {
		x, err := parse.Parse(ctx, []byte(tc.src))
		require.NoError(t, err, tc.src)

		_, err = New(Options{}).Build(ctx, "test", x)
		assert.ErrorContains(t, err, tc.err, tc.src)
	}
}
