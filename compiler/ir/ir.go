package ir

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/sysy/compiler/tp"
)

type (
	// Value is an identity in the Module arena.
	Value int

	// Use is one operand slot pointing at a Value.
	Use struct {
		User  Value
		Index int
	}

	Module struct {
		Path string

		Globals []Value
		Funcs   []Value

		Exprs []any     `tlog:"-"`
		EType []tp.Type `tlog:"-"`

		owner []Value
		ops   [][]Value
		uses  []map[Use]struct{}

		ints map[int32]Value
		strs int
	}

	Global struct {
		Name  string
		Init  Value
		Const bool
	}

	ConstInt int32

	// ConstArray is a flattened row-major array initializer.
	ConstArray struct {
		Elems []int32
		Init  bool
	}

	ConstString string

	Func struct {
		Name    string
		Params  []Value
		Blocks  []Value
		Builtin Builtin
	}

	Param struct {
		Index int
		Name  string
	}

	Block struct {
		Name string
		Code []Value
	}

	BinaryOp struct {
		Op Op
	}

	// Call operands: callee, args...
	Call struct{}

	// Ret operands: optional value.
	Ret struct{}

	Alloca struct {
		Elem tp.Type
	}

	// Load operands: pointer.
	Load struct{}

	// Store operands: value, pointer.
	Store struct{}

	// GEP operands: base, indices...
	GEP struct{}

	// Branch operands: target, or cond, true target, false target.
	Branch struct{}

	Convert struct {
		Kind ConvKind
	}

	Op       int
	ConvKind int
	Builtin  int
)

const (
	Nil Value = -1
)

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
)

const (
	Zext ConvKind = iota
	Trunc
	Bitcast
)

const (
	NotBuiltin Builtin = iota
	GetInt
	PutInt
	PutCh
	PutStr
)

var opNames = []string{
	Add: "add",
	Sub: "sub",
	Mul: "mul",
	Div: "sdiv",
	Mod: "srem",
	Lt:  "icmp slt",
	Le:  "icmp sle",
	Gt:  "icmp sgt",
	Ge:  "icmp sge",
	Eq:  "icmp eq",
	Ne:  "icmp ne",
}

var Builtins = map[string]Builtin{
	"getint": GetInt,
	"putint": PutInt,
	"putch":  PutCh,
	"putstr": PutStr,
}

func (op Op) String() string {
	return opNames[op]
}

func (op Op) IsCmp() bool {
	return op >= Lt
}

func (k ConvKind) String() string {
	switch k {
	case Zext:
		return "zext"
	case Trunc:
		return "trunc"
	case Bitcast:
		return "bitcast"
	default:
		return "conv?"
	}
}

func (b Builtin) String() string {
	for name, x := range Builtins {
		if x == b {
			return name
		}
	}

	return ""
}

// IsTerminator reports whether x ends a basic block.
func IsTerminator(x any) bool {
	switch x.(type) {
	case Ret, Branch:
		return true
	default:
		return false
	}
}

// IsInstr reports whether x is an instruction.
func IsInstr(x any) bool {
	switch x.(type) {
	case BinaryOp, Call, Ret, Alloca, Load, Store, GEP, Branch, Convert:
		return true
	default:
		return false
	}
}

func (u Use) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendFormat(b, "%d:%d", u.User, u.Index)
}
