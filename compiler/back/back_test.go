package back

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/sysy/compiler/asm/mips"
	"github.com/slowlang/sysy/compiler/front"
	"github.com/slowlang/sysy/compiler/parse"
)

func compile(t *testing.T, opts front.Options, src string) string {
	t.Helper()

	ctx := context.Background()

	x, err := parse.Parse(ctx, []byte(src))
	require.NoError(t, err)

	m, err := front.New(opts).Build(ctx, "test", x)
	require.NoError(t, err)

	err = m.Verify(ctx)
	require.NoError(t, err)

	asm, err := New().CompilePackage(ctx, nil, m)
	require.NoError(t, err)

	return string(asm)
}

func run(t *testing.T, asm, in string) string {
	t.Helper()

	var out bytes.Buffer

	err := mips.Run(context.Background(), []byte(asm), strings.NewReader(in), &out)
	require.NoError(t, err, "%s", asm)

	return out.String()
}

func TestLayout(t *testing.T) {
	asm := compile(t, front.Options{}, `
int g = 3;
int h[2];
const int c[3] = {1, 2};
int main() { return g; }`)

	assert.Contains(t, asm, ".data\ng.g:\t.word 3\ng.h:\t.space 8\ng.c:\t.word 1, 2, 0\n")
	assert.Contains(t, asm, "\n.macro GETINT()\n\tli\t$v0, 5\n\tsyscall\n.end_macro\n")
	assert.Contains(t, asm, "\n.macro PUTSTR()\n\tli\t$v0, 4\n\tsyscall\n.end_macro\n")
	assert.Contains(t, asm, "\n.text\n\tjal\tmain\n\tli\t$v0, 10\n\tsyscall\n")
	assert.Contains(t, asm, "\t# ret i32 %")
	assert.Contains(t, asm, "\tla\t$t1, g.g\n\tlw\t$t0, 0($t1)\n")

	data := strings.Index(asm, ".data")
	macro := strings.Index(asm, ".macro")
	text := strings.Index(asm, ".text")
	main := strings.Index(asm, "\nmain:")

	assert.True(t, data < macro && macro < text && text < main, "%d %d %d %d", data, macro, text, main)
}

func TestMulConst(t *testing.T) {
	for _, tc := range []struct {
		k   int32
		asm string
	}{
		{0, "\tmove\t$t0, $zero\n"},
		{1, ""},
		{2, "\tsll\t$t0, $t0, 1\n"},
		{-1, "\tnegu\t$t0, $t0\n"},
		{8, "\tsll\t$t0, $t0, 3\n"},
		{7, "\tli\t$t1, 7\n\tmul\t$t0, $t0, $t1\n"},
	} {
		p := &pkgContext{w: mips.NewWriter(nil)}

		p.mulConst(mips.T0, tc.k)

		assert.Equal(t, tc.asm, string(p.w.Bytes()), "k = %d", tc.k)
	}
}

func TestMulProgram(t *testing.T) {
	asm := compile(t, front.Options{}, `
int main() {
	int x = getint();
	printf("%d %d %d %d %d %d\n", x * 0, x * 1, 2 * x, x * -1, x * 8, x * 7);
	return 0;
}`)

	assert.Equal(t, "0 -3 -6 3 -24 -21\n", run(t, asm, "-3"))
}

func TestChooseMultiplier(t *testing.T) {
	for _, tc := range []struct {
		d  uint32
		m  uint64
		sh int
	}{
		{3, 0x55555556, 0},
		{5, 0x66666667, 1},
		{7, 0x92492493, 2},
	} {
		m, sh, _ := chooseMultiplier(tc.d, 31)

		assert.Equal(t, tc.m, m, "d = %d", tc.d)
		assert.Equal(t, tc.sh, sh, "d = %d", tc.d)
	}

	dividends := []int32{math.MinInt32, math.MinInt32 + 1, -1000000007, -65536, -100, -7, -1, 0, 1, 6, 7, 99, 65535, 1000000007, math.MaxInt32}

	for _, d := range []int32{3, 5, 6, 7, 10, 11, 25, 100, 641, 1000, 65537, 1 << 20 * 3, 1000000007, math.MaxInt32, -3, -7, -1000} {
		ud := uint32(d)
		if d < 0 {
			ud = uint32(-d)
		}

		m, sh, _ := chooseMultiplier(ud, 31)

		for _, n := range dividends {
			hi := int32((int64(n) * int64(int32(uint32(m)))) >> 32)
			if m >= 1<<31 {
				hi += n
			}

			q := hi>>sh - n>>31
			if d < 0 {
				q = -q
			}

			assert.Equal(t, n/d, q, "%d / %d", n, d)
		}
	}
}

func TestDivision(t *testing.T) {
	dividends := []int32{math.MinInt32, -2147483647, -100, -8, -7, -6, -5, -4, -3, -1, 0, 1, 3, 4, 5, 6, 7, 8, 100, math.MaxInt32}

	var in strings.Builder

	fmt.Fprintf(&in, "%d\n", len(dividends))

	for _, n := range dividends {
		fmt.Fprintf(&in, "%d\n", n)
	}

	for _, d := range []int32{1, -1, 2, 4, -4, 3, 5, 7, -7} {
		asm := compile(t, front.Options{}, fmt.Sprintf(`
int main() {
	int n = getint();
	while (n > 0) {
		int x = getint();
		printf("%%d\n", x / %d);
		n = n - 1;
	}
	return 0;
}`, d))

		assert.NotContains(t, asm, "\tdiv\t", "d = %d", d)

		var exp strings.Builder

		for _, n := range dividends {
			fmt.Fprintf(&exp, "%d\n", n/d)
		}

		assert.Equal(t, exp.String(), run(t, asm, in.String()), "d = %d", d)
	}
}

func TestGEPOffsets(t *testing.T) {
	asm := compile(t, front.Options{}, `
int a[3][4];
int main() {
	int i = getint();
	a[1][2] = 5;
	a[i][2] = 6;
	putint(a[1][2]);
	return 0;
}`)

	assert.Contains(t, asm, "\tla\t$t2, g.a\n\taddiu\t$t2, $t2, 24\n")
	assert.Contains(t, asm, "\tsll\t$t0, $t0, 4\n\taddu\t$t2, $t2, $t0\n\taddiu\t$t2, $t2, 8\n")

	assert.Equal(t, "5", run(t, asm, "0"))
	assert.Equal(t, "6", run(t, asm, "1"))
}

func TestCallConvention(t *testing.T) {
	asm := compile(t, front.Options{}, `
int f(int a, int b, int c) {
	return a * 100 + b * 10 + c;
}
int main() {
	putint(f(1, 2, 3));
	return 0;
}`)

	assert.Contains(t, asm, "\nf.f:\n"+
		"\tlw\t$t0, 0($sp)\n\tsw\t$t0, -4($sp)\n"+
		"\tlw\t$t0, 4($sp)\n\tsw\t$t0, -8($sp)\n"+
		"\tlw\t$t0, 8($sp)\n\tsw\t$t0, -12($sp)\n")

	assert.Contains(t, asm, "\tsw\t$ra, -8($sp)\n"+
		"\tli\t$t0, 1\n\tsw\t$t0, -20($sp)\n"+
		"\tli\t$t0, 2\n\tsw\t$t0, -16($sp)\n"+
		"\tli\t$t0, 3\n\tsw\t$t0, -12($sp)\n"+
		"\taddiu\t$sp, $sp, -20\n"+
		"\tjal\tf.f\n"+
		"\taddiu\t$sp, $sp, 20\n"+
		"\tlw\t$ra, -8($sp)\n"+
		"\tsw\t$v0, -4($sp)\n")

	assert.Equal(t, "123", run(t, asm, ""))
}

func TestLocalArraysZeroed(t *testing.T) {
	asm := compile(t, front.Options{}, `
int dirty() {
	int x[64];
	int i = 0;
	while (i < 64) {
		x[i] = 7;
		i = i + 1;
	}
	return x[0];
}
int small() {
	int a[4];
	return a[0] + a[1] + a[2] + a[3];
}
int large() {
	int b[2][20];
	int i = 0, s = 0;
	while (i < 2) {
		int j = 0;
		while (j < 20) {
			s = s + b[i][j];
			j = j + 1;
		}
		i = i + 1;
	}
	return s;
}
int main() {
	dirty();
	putint(small());
	dirty();
	putint(large());
	putch(10);
	return 0;
}`)

	assert.Contains(t, asm, "zero.body.")
	assert.Equal(t, "00\n", run(t, asm, ""))
}

func TestPrograms(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts front.Options
		src  string
		in   string
		out  string
	}{
		{
			name: "fib",
			src: `
int fib(int n) {
	if (n < 2) return n;
	return fib(n - 1) + fib(n - 2);
}
int main() {
	int n = getint();
	printf("fib(%d)=%d\n", n, fib(n));
	return 0;
}`,
			in:  "15",
			out: "fib(15)=610\n",
		},
		{
			name: "arrays",
			src: `
int g[2][3] = {{1, 2, 3}, {4}};
int sum(int a[][3], int n) {
	int i = 0, s = 0;
	while (i < n) {
		int j = 0;
		while (j < 3) {
			s = s + a[i][j];
			j = j + 1;
		}
		i = i + 1;
	}
	return s;
}
int row(int r[]) { return r[0] * 10 + r[2]; }
int main() {
	int l[2][3] = {{1}, {2, 3}};
	l[1][2] = getint();
	printf("%d %d %d %d\n", sum(g, 2), sum(l, 2), row(g[1]), row(l[1]));
	return 0;
}`,
			in:  "7",
			out: "10 13 40 27\n",
		},
		{
			name: "control",
			src: `
int cnt;
int t(int v) { cnt = cnt + 1; return v; }
int main() {
	int a = getint();
	if (a > 0 && t(1)) putint(1);
	if (a < 0 && t(1)) putint(2);
	if (a > 0 || t(0)) putint(3);
	if (!(a == 5)) putch(110); else putch(121);
	int b = a < 10 || t(1);
	putch(10);
	printf("%d %d\n", cnt, b);
	int i = 0, s = 0;
	while (1) {
		i = i + 1;
		if (i % 2 == 0) continue;
		if (i > 9) break;
		s = s + i;
	}
	printf("%d\n", s);
	return 0;
}`,
			in:  "5",
			out: "13y\n1 1\n25\n",
		},
		{
			name: "divmod",
			src: `
int main() {
	int a = getint(), b = getint();
	printf("%d %d %d %d\n", a / b, a % b, a % 4, -a / 2);
	return 0;
}`,
			in:  "-7 2",
			out: "-3 -1 -3 3\n",
		},
		{
			name: "consts",
			src: `
const int N = 4;
const int P[N] = {1, 2, 4, 8};
int main() {
	int a = 1;
	{
		int a = N * 2;
		putint(a);
	}
	putint(a);
	int i = 0, s = 0;
	while (i < N) {
		s = s + P[i];
		i = i + 1;
	}
	putint(s);
	return 0;
}`,
			out: "8115",
		},
		{
			name: "segments",
			opts: front.Options{StringSegments: true},
			src: `
int main() {
	int x = getint();
	printf("x=%d!\n", x);
	return 0;
}`,
			in:  "42",
			out: "x=42!\n",
		},
		{
			name: "collapse",
			src: `
int main() {
	int a = getint(), b = getint();
	printf("%d %d\n", a + a + a + b, b - a - a + a);
	return 0;
}`,
			in:  "2 10",
			out: "16 8\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			asm := compile(t, tc.opts, tc.src)

			assert.Equal(t, tc.out, run(t, asm, tc.in))
		})
	}
}
