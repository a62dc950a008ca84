package mips

import (
	"encoding/binary"
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

type (
	// Program is assembled text ready for the emulator.
	Program struct {
		Text []Instr
		Data []byte

		TextLabels map[string]int
		DataLabels map[string]uint32
	}

	Instr struct {
		Op   string
		Args []Operand
		Line int
	}

	Operand struct {
		Kind  OperandKind
		Reg   Reg
		Imm   int32
		Label string
	}

	OperandKind int

	assembler struct {
		p *Program

		macros map[string][]string

		data    bool
		pending []string

		// unresolved label operands
		fix []fixup
	}

	fixup struct {
		ins, arg int
	}
)

const (
	OpReg OperandKind = iota
	OpImm
	OpLabel
	OpMem
)

const (
	TextBase  = 0x00400000
	DataBase  = 0x10010000
	GlobalPtr = 0x10008000
	StackTop  = 0x7fffeffc
)

// Assemble parses the subset of MARS assembly the compiler emits:
// .data/.text sections, .word/.space/.asciiz, argument-less macros, labels and instructions.
func Assemble(text []byte) (*Program, error) {
	a := &assembler{
		p: &Program{
			TextLabels: make(map[string]int),
			DataLabels: make(map[string]uint32),
		},
		macros: make(map[string][]string),
	}

	lines := strings.Split(string(text), "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(stripComment(lines[i]))

		if strings.HasPrefix(line, ".macro") {
			name := macroName(strings.TrimSpace(line[len(".macro"):]))

			var body []string

			for i++; i < len(lines); i++ {
				l := strings.TrimSpace(stripComment(lines[i]))
				if l == ".end_macro" {
					break
				}

				body = append(body, l)
			}

			if i == len(lines) {
				return nil, errors.New("line %d: unterminated macro %v", i, name)
			}

			a.macros[name] = body

			continue
		}

		err := a.line(line, i+1)
		if err != nil {
			return nil, errors.Wrap(err, "line %d", i+1)
		}
	}

	for _, f := range a.fix {
		ins := &a.p.Text[f.ins]
		arg := &ins.Args[f.arg]

		if _, ok := a.p.TextLabels[arg.Label]; ok {
			continue
		}

		addr, ok := a.p.DataLabels[arg.Label]
		if !ok {
			return nil, errors.New("line %d: undefined label %v", ins.Line, arg.Label)
		}

		arg.Imm = int32(addr)
	}

	return a.p, nil
}

func (a *assembler) line(line string, n int) error {
	for {
		l, rest, ok := splitLabel(line)
		if !ok {
			break
		}

		a.label(l)
		line = rest
	}

	if line == "" {
		return nil
	}

	op, rest := line, ""

	if i := strings.IndexAny(line, " \t"); i >= 0 {
		op, rest = line[:i], strings.TrimSpace(line[i+1:])
	}

	if body, ok := a.macros[macroName(op)]; ok {
		for _, l := range body {
			err := a.line(l, n)
			if err != nil {
				return errors.Wrap(err, "macro %v", op)
			}
		}

		return nil
	}

	if strings.HasPrefix(op, ".") {
		return a.directive(op, rest)
	}

	if a.data {
		return errors.New("instruction in data section: %v", op)
	}

	ins := Instr{Op: op, Line: n}

	for _, s := range splitArgs(rest) {
		arg, err := parseOperand(s)
		if err != nil {
			return errors.Wrap(err, "%v", op)
		}

		if arg.Kind == OpLabel {
			a.fix = append(a.fix, fixup{ins: len(a.p.Text), arg: len(ins.Args)})
		}

		ins.Args = append(ins.Args, arg)
	}

	a.p.Text = append(a.p.Text, ins)

	return nil
}

func (a *assembler) label(l string) {
	if a.data {
		a.pending = append(a.pending, l)
		return
	}

	a.p.TextLabels[l] = len(a.p.Text)
}

func (a *assembler) bindData() {
	for _, l := range a.pending {
		a.p.DataLabels[l] = DataBase + uint32(len(a.p.Data))
	}

	a.pending = a.pending[:0]
}

func (a *assembler) directive(op, rest string) error {
	switch op {
	case ".data":
		a.data = true
	case ".text":
		a.bindData()
		a.data = false
	case ".globl", ".global", ".extern":
	case ".align":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return errors.Wrap(err, ".align")
		}

		a.align(1 << n)
	case ".word":
		a.align(WordSize)
		a.bindData()

		for _, s := range splitArgs(rest) {
			v, err := parseInt(s)
			if err != nil {
				return errors.Wrap(err, ".word")
			}

			a.p.Data = binary.LittleEndian.AppendUint32(a.p.Data, uint32(v))
		}
	case ".space":
		a.bindData()

		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return errors.New(".space: bad size %q", rest)
		}

		a.p.Data = append(a.p.Data, make([]byte, n)...)
	case ".asciiz", ".ascii":
		a.bindData()

		s, err := unquote(rest)
		if err != nil {
			return errors.Wrap(err, "%v", op)
		}

		a.p.Data = append(a.p.Data, s...)

		if op == ".asciiz" {
			a.p.Data = append(a.p.Data, 0)
		}
	default:
		return errors.New("unsupported directive: %v", op)
	}

	return nil
}

func (a *assembler) align(n int) {
	for len(a.p.Data)%n != 0 {
		a.p.Data = append(a.p.Data, 0)
	}
}

func parseOperand(s string) (Operand, error) {
	if r, ok := ParseReg(s); ok {
		return Operand{Kind: OpReg, Reg: r}, nil
	}

	if p := strings.IndexByte(s, '('); p >= 0 && strings.HasSuffix(s, ")") {
		r, ok := ParseReg(s[p+1 : len(s)-1])
		if !ok {
			return Operand{}, errors.New("bad base register: %q", s)
		}

		var off int64

		if p > 0 {
			var err error

			off, err = parseInt(s[:p])
			if err != nil {
				return Operand{}, errors.Wrap(err, "offset")
			}
		}

		return Operand{Kind: OpMem, Reg: r, Imm: int32(off)}, nil
	}

	if s == "" {
		return Operand{}, errors.New("empty operand")
	}

	if c := s[0]; c == '-' || c == '+' || c >= '0' && c <= '9' || c == '\'' {
		v, err := parseInt(s)
		if err != nil {
			return Operand{}, err
		}

		return Operand{Kind: OpImm, Imm: int32(v)}, nil
	}

	return Operand{Kind: OpLabel, Label: s}, nil
}

func parseInt(s string) (int64, error) {
	if len(s) == 3 && s[0] == '\'' && s[2] == '\'' {
		return int64(s[1]), nil
	}

	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse int %q", s)
	}

	if v < -1<<31 || v >= 1<<32 {
		return 0, errors.New("out of range: %v", s)
	}

	return v, nil
}

func splitLabel(line string) (label, rest string, ok bool) {
	p := strings.IndexByte(line, ':')
	if p <= 0 {
		return "", line, false
	}

	for _, c := range line[:p] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '$') {
			return "", line, false
		}
	}

	return line[:p], strings.TrimSpace(line[p+1:]), true
}

func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var l []string

	quoted := false
	st := 0

	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			quoted = !quoted
		case s[i] == '\\' && quoted:
			i++
		case s[i] == ',' && !quoted:
			l = append(l, strings.TrimSpace(s[st:i]))
			st = i + 1
		}
	}

	return append(l, strings.TrimSpace(s[st:]))
}

func stripComment(s string) string {
	quoted := false

	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			quoted = !quoted
		case s[i] == '\\' && quoted:
			i++
		case s[i] == '#' && !quoted:
			return s[:i]
		}
	}

	return s
}

func macroName(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), "()")
}

func unquote(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return nil, errors.New("string literal expected: %q", s)
	}

	s = s[1 : len(s)-1]

	b := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b = append(b, s[i])
			continue
		}

		i++

		switch s[i] {
		case 'n':
			b = append(b, '\n')
		case 't':
			b = append(b, '\t')
		case '0':
			b = append(b, 0)
		default:
			b = append(b, s[i])
		}
	}

	return b, nil
}
