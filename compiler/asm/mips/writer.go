package mips

import (
	"github.com/nikandfor/hacked/hfmt"
)

type (
	// Writer appends assembly text.
	Writer struct {
		b []byte
	}
)

func NewWriter(b []byte) *Writer {
	return &Writer{b: b}
}

func (w *Writer) Bytes() []byte { return w.b }

func (w *Writer) Len() int { return len(w.b) }

// Printf appends raw text.
func (w *Writer) Printf(format string, args ...any) {
	w.b = hfmt.Appendf(w.b, format, args...)
}

func (w *Writer) Label(name string) {
	w.b = append(w.b, name...)
	w.b = append(w.b, ":\n"...)
}

func (w *Writer) Comment(format string, args ...any) {
	w.b = append(w.b, "\t# "...)
	w.b = hfmt.Appendf(w.b, format, args...)
	w.b = append(w.b, '\n')
}

// Ins appends one instruction with comma separated operands.
func (w *Writer) Ins(op string, args ...any) {
	w.b = append(w.b, '\t')
	w.b = append(w.b, op...)

	for i, a := range args {
		if i == 0 {
			w.b = append(w.b, '\t')
		} else {
			w.b = append(w.b, ", "...)
		}

		w.b = hfmt.Appendf(w.b, "%v", a)
	}

	w.b = append(w.b, '\n')
}

// Mem formats a base+offset memory operand.
func Mem(off int, base Reg) string {
	return string(hfmt.Appendf(nil, "%d(%v)", off, base))
}
