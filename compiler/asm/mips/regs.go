package mips

import (
	"strconv"
	"strings"
)

type (
	Reg int
)

const (
	Zero Reg = iota
	AT
	V0
	V1
	A0
	A1
	A2
	A3
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	T7
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	T8
	T9
	K0
	K1
	GP
	SP
	FP
	RA
)

const WordSize = 4

var regNames = [...]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

func (r Reg) String() string {
	if r < 0 || int(r) >= len(regNames) {
		return "$r" + strconv.Itoa(int(r))
	}

	return "$" + regNames[r]
}

// ParseReg accepts $name and $number forms.
func ParseReg(s string) (Reg, bool) {
	if !strings.HasPrefix(s, "$") {
		return 0, false
	}

	s = s[1:]

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= len(regNames) {
			return 0, false
		}

		return Reg(n), true
	}

	if s == "s8" {
		return FP, true
	}

	for i, name := range regNames {
		if name == s {
			return Reg(i), true
		}
	}

	return 0, false
}
