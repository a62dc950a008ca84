package mips

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, text, in string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	err := Run(context.Background(), []byte(text), strings.NewReader(in), &out)

	return out.String(), err
}

func TestAssembleData(t *testing.T) {
	p, err := Assemble([]byte(`
.data
g.a:	.word 5
str.0:	.asciiz "hi\n"
g.b:	.word 1, 2
g.c:	.space 8
.text
main:
	la	$t0, g.b
	jr	$ra
`))
	require.NoError(t, err)

	assert.Equal(t, uint32(DataBase), p.DataLabels["g.a"])
	assert.Equal(t, uint32(DataBase+4), p.DataLabels["str.0"])
	assert.Equal(t, uint32(DataBase+8), p.DataLabels["g.b"])
	assert.Equal(t, uint32(DataBase+16), p.DataLabels["g.c"])
	assert.Len(t, p.Data, 24)

	assert.Equal(t, 0, p.TextLabels["main"])
	require.Len(t, p.Text, 2)
	assert.Equal(t, int32(DataBase+8), p.Text[0].Args[1].Imm)
}

func TestAssembleErrors(t *testing.T) {
	for _, src := range []string{
		"\tla\t$t0, nowhere\n",
		".macro X()\n\tnop\n",
		".data\n\tli $t0, 1\n",
		"\tlw\t$t0, 4($q1)\n",
		".bogus\n",
	} {
		_, err := Assemble([]byte(src))
		assert.Error(t, err, src)
	}
}

func TestRunSyscalls(t *testing.T) {
	out, err := run(t, `
.macro GETINT()
	li	$v0, 5
	syscall
.end_macro
.macro PUTINT()
	li	$v0, 1
	syscall
.end_macro
.data
msg:	.asciiz "sum: "
.text
	jal	main
	li	$v0, 10
	syscall
main:
	GETINT()
	move	$t0, $v0
	GETINT()
	addu	$t0, $t0, $v0
	la	$a0, msg
	li	$v0, 4
	syscall
	move	$a0, $t0
	PUTINT()
	li	$a0, 10
	li	$v0, 11
	syscall
	jr	$ra
`, "3 -10\n")
	require.NoError(t, err)
	assert.Equal(t, "sum: -7\n", out)
}

func TestRunArith(t *testing.T) {
	p, err := Assemble([]byte(`
	li	$t0, -7
	li	$t1, 2
	div	$t2, $t0, $t1
	rem	$t3, $t0, $t1
	sra	$t4, $t0, 1
	srl	$t5, $t0, 28
	mult	$t0, $t0
	mfhi	$t6
	mflo	$t7
	slt	$s0, $t0, $t1
	sltu	$s1, $t0, $t1
	sge	$s2, $t1, $t1
	sw	$t2, -4($sp)
	lw	$s3, -4($sp)
	addiu	$zero, $zero, 1
`))
	require.NoError(t, err)

	m := NewMachine(p, strings.NewReader(""), &bytes.Buffer{})

	err = m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(-3), m.Reg[T2])
	assert.Equal(t, int32(-1), m.Reg[T3])
	assert.Equal(t, int32(-4), m.Reg[T4])
	assert.Equal(t, int32(15), m.Reg[T5])
	assert.Equal(t, int32(0), m.Reg[T6])
	assert.Equal(t, int32(49), m.Reg[T7])
	assert.Equal(t, int32(1), m.Reg[S0])
	assert.Equal(t, int32(0), m.Reg[S1])
	assert.Equal(t, int32(1), m.Reg[S2])
	assert.Equal(t, int32(-3), m.Reg[S3])
	assert.Equal(t, int32(0), m.Reg[Zero])
}

func TestRunLoop(t *testing.T) {
	p, err := Assemble([]byte(`
	li	$t0, 0
	li	$t1, 10
loop.1:
	beqz	$t1, end.2
	addu	$t0, $t0, $t1
	addiu	$t1, $t1, -1
	j	loop.1
end.2:
`))
	require.NoError(t, err)

	m := NewMachine(p, nil, nil)

	err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(55), m.Reg[T0])
}

func TestRunFaults(t *testing.T) {
	_, err := run(t, "\tli $t0, 0\n\tdiv $t1, $t1, $t0\n", "")
	assert.ErrorContains(t, err, "division by zero")

	_, err = run(t, "\tlw $t0, 0($zero)\n", "")
	assert.ErrorContains(t, err, "bad address")

	_, err = run(t, "\tlw $t0, 2($sp)\n", "")
	assert.ErrorContains(t, err, "unaligned")

	p, err := Assemble([]byte("l:\n\tj l\n"))
	require.NoError(t, err)

	m := NewMachine(p, nil, nil)
	m.MaxSteps = 1000

	err = m.Run(context.Background())
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestWriter(t *testing.T) {
	w := NewWriter(nil)

	w.Label("main")
	w.Comment("x = %d", 5)
	w.Ins("lw", T0, Mem(-8, SP))
	w.Ins("syscall")

	assert.Equal(t, "main:\n\t# x = 5\n\tlw\t$t0, -8($sp)\n\tsyscall\n", string(w.Bytes()))
}

func TestParseReg(t *testing.T) {
	for s, r := range map[string]Reg{"$zero": Zero, "$0": Zero, "$t0": T0, "$31": RA, "$s8": FP, "$sp": SP} {
		got, ok := ParseReg(s)
		assert.True(t, ok, s)
		assert.Equal(t, r, got, s)
	}

	for _, s := range []string{"t0", "$32", "$x"} {
		_, ok := ParseReg(s)
		assert.False(t, ok, s)
	}
}
