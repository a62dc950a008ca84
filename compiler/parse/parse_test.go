package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/sysy/compiler/ast"
)

func TestParseProgram(t *testing.T) {
	ctx := context.Background()

	x, err := Parse(ctx, []byte(`
const int N = 3, M[2][2] = {{1, 2}, {3}};
int g;
int arr[N][4] = {};

/* block
   comment */
int sum(int a[], int b[][4], int n) {
	int s = 0; // line comment
	while (s < n && !(n == 0) || 0) {
		s = s + a[s] * b[1][s];
		if (s >= 10) break; else continue;
	}
	return s;
}

void p() { ; {} return; }

int main() {
	g = getint();
	printf("g=%d\n", -g + +1);
	sum(arr[0], arr, 0x10);
	return 0;
}
`))
	require.NoError(t, err)

	require.Len(t, x.Decls, 3)
	require.Len(t, x.Funcs, 3)
	require.Len(t, x.Order, 6)

	c := x.Decls[0]
	assert.True(t, c.Const)
	require.Len(t, c.Defs, 2)
	assert.Equal(t, "N", c.Defs[0].Name)
	assert.Equal(t, "3", c.Defs[0].Init.Expr.Str())
	assert.Equal(t, "M", c.Defs[1].Name)
	require.Len(t, c.Defs[1].Dims, 2)
	require.Len(t, c.Defs[1].Init.List, 2)
	assert.Len(t, c.Defs[1].Init.List[1].List, 1)

	assert.Nil(t, x.Decls[1].Defs[0].Init)
	assert.NotNil(t, x.Decls[2].Defs[0].Init.List)
	assert.Len(t, x.Decls[2].Defs[0].Init.List, 0)

	sum := x.Funcs[0]
	assert.False(t, sum.Void)
	require.Len(t, sum.Params, 3)
	assert.True(t, sum.Params[0].Array)
	assert.Len(t, sum.Params[0].Dims, 0)
	assert.True(t, sum.Params[1].Array)
	assert.Len(t, sum.Params[1].Dims, 1)
	assert.False(t, sum.Params[2].Array)

	require.Len(t, sum.Body.Items, 3)

	w := sum.Body.Items[1].(*ast.While)
	assert.Equal(t, "(((s<n)&&!(n==0))||0)", w.Cond.Str())

	body := w.Body.(*ast.Block)
	as := body.Items[0].(*ast.Assign)
	assert.Equal(t, "s", as.LVal.Str())
	assert.Equal(t, "(s+(a[s]*b[1][s]))", as.Expr.Str())

	iff := body.Items[1].(*ast.If)
	assert.IsType(t, &ast.Break{}, iff.Then)
	assert.IsType(t, &ast.Continue{}, iff.Else)

	assert.True(t, x.Funcs[1].Void)

	main := x.Funcs[2]
	require.Len(t, main.Body.Items, 4)

	get := main.Body.Items[0].(*ast.Assign)
	assert.Equal(t, "getint()", get.Expr.Str())

	pf := main.Body.Items[1].(*ast.Printf)
	assert.Equal(t, "g=%d\n", pf.Format)
	require.Len(t, pf.Args, 1)
	assert.Equal(t, "(-g++1)", pf.Args[0].Str())

	call := main.Body.Items[2].(*ast.ExprStmt).Expr.(*ast.Call)
	assert.Equal(t, "sum(arr[0],arr,16)", call.Str())
}

func TestParseAssociativity(t *testing.T) {
	x, err := Parse(context.Background(), []byte(`int main() { return a - b - c * d / e % f; }`))
	require.NoError(t, err)

	r := x.Funcs[0].Body.Items[0].(*ast.Return)
	assert.Equal(t, "((a-b)-(((c*d)/e)%f))", r.Expr.Str())
}

func TestParseNumbers(t *testing.T) {
	for s, v := range map[string]int32{
		"0":          0,
		"10":         10,
		"017":        15,
		"0x1F":       31,
		"2147483647": 2147483647,
		"2147483648": -2147483648,
	} {
		x, err := parseNumber(s)
		if assert.NoError(t, err, s) {
			assert.Equal(t, v, x, s)
		}
	}

	_, err := parseNumber("4294967296")
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	ctx := context.Background()

	for _, src := range []string{
		`int main() { return 0 }`,
		`int main( { }`,
		`const int a;`,
		`int main() { 1 = 2; }`,
		`int main() { printf("%d %d", 1); }`,
		`int main() { return 0; `,
		`int main() { int a = @; }`,
	} {
		_, err := Parse(ctx, []byte(src))
		assert.Error(t, err, src)
	}

	_, err := Parse(ctx, []byte("int main() {\n  return 0\n}"))
	assert.ErrorContains(t, err, "<input>:3:1")

	var unexp UnexpectedError
	assert.ErrorAs(t, err, &unexp)
}
