package mips

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Machine executes a Program with MARS memory layout and syscalls.
	Machine struct {
		Reg    [32]int32
		HI, LO int32

		PC int

		Steps    int
		MaxSteps int

		p *Program

		data  []byte
		stack []byte

		in  *bufio.Reader
		out io.Writer

		exited bool
	}
)

const StackSize = 1 << 22

var ErrStepLimit = errors.New("step limit exceeded")

func NewMachine(p *Program, in io.Reader, out io.Writer) *Machine {
	m := &Machine{
		p:        p,
		data:     append([]byte{}, p.Data...),
		stack:    make([]byte, StackSize),
		in:       bufio.NewReader(in),
		out:      out,
		MaxSteps: 100_000_000,
	}

	m.Reg[SP] = StackTop
	m.Reg[GP] = GlobalPtr

	return m
}

// Run assembles and executes text.
func Run(ctx context.Context, text []byte, in io.Reader, out io.Writer) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "mips: run", "size", len(text))
	defer tr.Finish("err", &err)

	p, err := Assemble(text)
	if err != nil {
		return errors.Wrap(err, "assemble")
	}

	m := NewMachine(p, in, out)

	err = m.Run(ctx)

	tr.Printw("finished", "steps", m.Steps, "exited", m.exited)

	return err
}

// Run executes instructions until the exit syscall or until the program falls off the end of the text.
func (m *Machine) Run(ctx context.Context) (err error) {
	tr := tlog.SpanFromContext(ctx)

	for !m.exited && m.PC >= 0 && m.PC < len(m.p.Text) {
		if m.Steps >= m.MaxSteps {
			return ErrStepLimit
		}

		if m.Steps&0xffff == 0 {
			if err = ctx.Err(); err != nil {
				return err
			}
		}

		ins := &m.p.Text[m.PC]

		if tr.If("mips_trace") {
			tr.Printw("step", "pc", m.PC, "line", ins.Line, "op", ins.Op, "t0", m.Reg[T0], "t1", m.Reg[T1], "t2", m.Reg[T2], "sp", m.Reg[SP])
		}

		m.Steps++
		m.PC++

		err = m.exec(ins)
		if err != nil {
			return errors.Wrap(err, "line %d: %v", ins.Line, ins.Op)
		}
	}

	return nil
}

func (m *Machine) exec(ins *Instr) (err error) {
	a := ins.Args

	if n := operands[ins.Op]; n != len(a) {
		if _, ok := operands[ins.Op]; !ok {
			return errors.New("unsupported instruction")
		}

		if !(ins.Op == "div" && len(a) == 2) {
			return errors.New("%d operands, want %d", len(a), n)
		}
	}

	switch ins.Op {
	case "nop":
	case "li":
		m.set(a[0], m.val(a[1]))
	case "la":
		if a[1].Kind == OpMem {
			m.set(a[0], m.Reg[a[1].Reg]+a[1].Imm)
		} else {
			m.set(a[0], a[1].Imm)
		}
	case "move":
		m.set(a[0], m.val(a[1]))
	case "negu", "neg":
		m.set(a[0], -m.val(a[1]))
	case "not":
		m.set(a[0], ^m.val(a[1]))
	case "lw":
		addr := m.addr(a[1])

		b, err := m.mem(addr, 4)
		if err != nil {
			return err
		}

		m.set(a[0], int32(binary.LittleEndian.Uint32(b)))
	case "sw":
		addr := m.addr(a[1])

		b, err := m.mem(addr, 4)
		if err != nil {
			return err
		}

		binary.LittleEndian.PutUint32(b, uint32(m.val(a[0])))
	case "addu", "add", "addiu", "addi":
		m.set(a[0], m.val(a[1])+m.val(a[2]))
	case "subu", "sub":
		m.set(a[0], m.val(a[1])-m.val(a[2]))
	case "mul":
		m.set(a[0], m.val(a[1])*m.val(a[2]))
	case "and", "andi":
		m.set(a[0], m.val(a[1])&m.val(a[2]))
	case "or", "ori":
		m.set(a[0], m.val(a[1])|m.val(a[2]))
	case "xor", "xori":
		m.set(a[0], m.val(a[1])^m.val(a[2]))
	case "nor":
		m.set(a[0], ^(m.val(a[1]) | m.val(a[2])))
	case "div", "rem":
		if len(a) == 2 {
			x, y := m.val(a[0]), m.val(a[1])
			if y == 0 {
				return errors.New("division by zero")
			}

			m.LO, m.HI = x/y, x%y

			return nil
		}

		x, y := m.val(a[1]), m.val(a[2])
		if y == 0 {
			return errors.New("division by zero")
		}

		if ins.Op == "div" {
			m.set(a[0], x/y)
		} else {
			m.set(a[0], x%y)
		}
	case "mult":
		p := int64(m.val(a[0])) * int64(m.val(a[1]))

		m.HI, m.LO = int32(p>>32), int32(p)
	case "multu":
		p := uint64(uint32(m.val(a[0]))) * uint64(uint32(m.val(a[1])))

		m.HI, m.LO = int32(p>>32), int32(p)
	case "mfhi":
		m.set(a[0], m.HI)
	case "mflo":
		m.set(a[0], m.LO)
	case "sll", "sllv":
		m.set(a[0], m.val(a[1])<<(m.val(a[2])&31))
	case "srl", "srlv":
		m.set(a[0], int32(uint32(m.val(a[1]))>>(m.val(a[2])&31)))
	case "sra", "srav":
		m.set(a[0], m.val(a[1])>>(m.val(a[2])&31))
	case "slt", "slti":
		m.set(a[0], b2i(m.val(a[1]) < m.val(a[2])))
	case "sltu", "sltiu":
		m.set(a[0], b2i(uint32(m.val(a[1])) < uint32(m.val(a[2]))))
	case "sle":
		m.set(a[0], b2i(m.val(a[1]) <= m.val(a[2])))
	case "sgt":
		m.set(a[0], b2i(m.val(a[1]) > m.val(a[2])))
	case "sge":
		m.set(a[0], b2i(m.val(a[1]) >= m.val(a[2])))
	case "seq":
		m.set(a[0], b2i(m.val(a[1]) == m.val(a[2])))
	case "sne":
		m.set(a[0], b2i(m.val(a[1]) != m.val(a[2])))
	case "beqz":
		return m.branch(m.val(a[0]) == 0, a[1])
	case "bnez":
		return m.branch(m.val(a[0]) != 0, a[1])
	case "bltz":
		return m.branch(m.val(a[0]) < 0, a[1])
	case "bgez":
		return m.branch(m.val(a[0]) >= 0, a[1])
	case "bgtz":
		return m.branch(m.val(a[0]) > 0, a[1])
	case "blez":
		return m.branch(m.val(a[0]) <= 0, a[1])
	case "beq":
		return m.branch(m.val(a[0]) == m.val(a[1]), a[2])
	case "bne":
		return m.branch(m.val(a[0]) != m.val(a[1]), a[2])
	case "j", "b":
		return m.branch(true, a[0])
	case "jal":
		m.Reg[RA] = m.textAddr(m.PC)

		return m.branch(true, a[0])
	case "jr":
		return m.jump(m.val(a[0]))
	case "jalr":
		ret := m.textAddr(m.PC)

		err = m.jump(m.val(a[0]))
		m.Reg[RA] = ret

		return err
	case "syscall":
		return m.syscall()
	}

	return nil
}

var operands = map[string]int{
	"nop": 0, "syscall": 0,
	"li": 2, "la": 2, "move": 2, "negu": 2, "neg": 2, "not": 2, "lw": 2, "sw": 2,
	"mult": 2, "multu": 2, "mfhi": 1, "mflo": 1,
	"addu": 3, "add": 3, "addiu": 3, "addi": 3, "subu": 3, "sub": 3, "mul": 3,
	"and": 3, "andi": 3, "or": 3, "ori": 3, "xor": 3, "xori": 3, "nor": 3,
	"div": 3, "rem": 3,
	"sll": 3, "sllv": 3, "srl": 3, "srlv": 3, "sra": 3, "srav": 3,
	"slt": 3, "slti": 3, "sltu": 3, "sltiu": 3, "sle": 3, "sgt": 3, "sge": 3, "seq": 3, "sne": 3,
	"beqz": 2, "bnez": 2, "bltz": 2, "bgez": 2, "bgtz": 2, "blez": 2, "beq": 3, "bne": 3,
	"j": 1, "b": 1, "jal": 1, "jr": 1, "jalr": 1,
}

func (m *Machine) syscall() error {
	switch code := m.Reg[V0]; code {
	case 1:
		_, err := m.out.Write(strconv.AppendInt(nil, int64(m.Reg[A0]), 10))
		return err
	case 4:
		addr := uint32(m.Reg[A0])

		for {
			b, err := m.mem(addr, 1)
			if err != nil {
				return err
			}

			if b[0] == 0 {
				return nil
			}

			_, err = m.out.Write(b)
			if err != nil {
				return err
			}

			addr++
		}
	case 5:
		var v int32

		_, err := fmt.Fscan(m.in, &v)
		if err != nil {
			return errors.Wrap(err, "read int")
		}

		m.Reg[V0] = v
	case 10:
		m.exited = true
	case 11:
		_, err := m.out.Write([]byte{byte(m.Reg[A0])})
		return err
	default:
		return errors.New("unsupported syscall %d", code)
	}

	return nil
}

func (m *Machine) val(a Operand) int32 {
	switch a.Kind {
	case OpReg:
		return m.Reg[a.Reg]
	case OpImm:
		return a.Imm
	case OpLabel:
		if i, ok := m.p.TextLabels[a.Label]; ok {
			return m.textAddr(i)
		}

		return a.Imm
	default:
		panic(a)
	}
}

func (m *Machine) set(a Operand, v int32) {
	if a.Kind != OpReg {
		panic(a)
	}

	if a.Reg != Zero {
		m.Reg[a.Reg] = v
	}
}

func (m *Machine) addr(a Operand) uint32 {
	if a.Kind == OpMem {
		return uint32(m.Reg[a.Reg] + a.Imm)
	}

	return uint32(m.val(a))
}

func (m *Machine) mem(addr uint32, size uint32) ([]byte, error) {
	if size == 4 && addr%4 != 0 {
		return nil, errors.New("unaligned word access: %#x", addr)
	}

	if addr >= DataBase && addr+size <= DataBase+uint32(len(m.data)) {
		off := addr - DataBase
		return m.data[off : off+size], nil
	}

	low := uint32(StackTop + 4 - len(m.stack))

	if addr >= low && addr+size <= StackTop+4 {
		off := addr - low
		return m.stack[off : off+size], nil
	}

	return nil, errors.New("bad address: %#x", addr)
}

func (m *Machine) branch(cond bool, to Operand) error {
	if !cond {
		return nil
	}

	if to.Kind != OpLabel {
		return errors.New("label expected")
	}

	i, ok := m.p.TextLabels[to.Label]
	if !ok {
		return errors.New("undefined text label %v", to.Label)
	}

	m.PC = i

	return nil
}

func (m *Machine) jump(addr int32) error {
	off := uint32(addr) - TextBase

	if uint32(addr) < TextBase || off%4 != 0 || int(off/4) > len(m.p.Text) {
		return errors.New("bad jump address: %#x", uint32(addr))
	}

	m.PC = int(off / 4)

	return nil
}

func (m *Machine) textAddr(i int) int32 {
	return int32(TextBase + 4*i)
}

// Word reads a word of memory.
func (m *Machine) Word(addr uint32) (int32, error) {
	b, err := m.mem(addr, 4)
	if err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(b)), nil
}

func b2i(x bool) int32 {
	if x {
		return 1
	}

	return 0
}
