package ast

import (
	"strconv"
	"strings"
)

type (
	Node interface{}

	// Stmt is one of *Assign, *ExprStmt, *Block, *If, *While, *Break, *Continue, *Return, *Printf.
	Stmt interface{}

	// Expr is one of *Number, *LVal, *Call, *Unary, *Binary.
	Expr interface {
		// Str is the structural identity of the expression.
		// Equal strings mean equal trees.
		Str() string
	}

	Base struct {
		Pos int
		End int
	}

	CompUnit struct {
		Base `tlog:",embed"`

		Decls []*Decl
		Funcs []*FuncDef

		// Order lists Decls and Funcs as they appear in the source.
		Order []Node
	}

	Decl struct {
		Base `tlog:",embed"`

		Const bool
		Defs  []*VarDef
	}

	VarDef struct {
		Base `tlog:",embed"`

		Name string
		Dims []Expr
		Init *InitVal
	}

	// InitVal is either a single Expr or a braced List.
	InitVal struct {
		Base `tlog:",embed"`

		Expr Expr
		List []*InitVal
	}

	FuncDef struct {
		Base `tlog:",embed"`

		Void   bool
		Name   string
		Params []*Param
		Body   *Block
	}

	// Param is an int or an array parameter.
	// Array parameters omit the first dimension, Dims are the rest.
	Param struct {
		Base `tlog:",embed"`

		Name  string
		Array bool
		Dims  []Expr
	}

	// Block items are *Decl or Stmt.
	Block struct {
		Base `tlog:",embed"`

		Items []Node
	}

	Assign struct {
		Base `tlog:",embed"`

		LVal *LVal
		Expr Expr
	}

	// ExprStmt with nil Expr is an empty statement.
	ExprStmt struct {
		Base `tlog:",embed"`

		Expr Expr
	}

	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then Stmt
		Else Stmt
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body Stmt
	}

	Break struct {
		Base `tlog:",embed"`
	}

	Continue struct {
		Base `tlog:",embed"`
	}

	Return struct {
		Base `tlog:",embed"`

		Expr Expr
	}

	// Printf Format is unquoted with escapes decoded.
	Printf struct {
		Base `tlog:",embed"`

		Format string
		Args   []Expr
	}

	Number struct {
		Base `tlog:",embed"`

		Value int32
	}

	LVal struct {
		Base `tlog:",embed"`

		Name  string
		Index []Expr
	}

	Call struct {
		Base `tlog:",embed"`

		Name string
		Args []Expr
	}

	// Unary Op is '+', '-' or '!'.
	Unary struct {
		Base `tlog:",embed"`

		Op byte
		X  Expr
	}

	// Binary Op is one of + - * / % < > <= >= == != && ||.
	Binary struct {
		Base `tlog:",embed"`

		Op string
		L  Expr
		R  Expr
	}
)

func (x *Number) Str() string {
	return strconv.FormatInt(int64(x.Value), 10)
}

func (x *LVal) Str() string {
	if len(x.Index) == 0 {
		return x.Name
	}

	var b strings.Builder

	b.WriteString(x.Name)

	for _, e := range x.Index {
		b.WriteByte('[')
		b.WriteString(e.Str())
		b.WriteByte(']')
	}

	return b.String()
}

func (x *Call) Str() string {
	var b strings.Builder

	b.WriteString(x.Name)
	b.WriteByte('(')

	for i, e := range x.Args {
		if i != 0 {
			b.WriteByte(',')
		}

		b.WriteString(e.Str())
	}

	b.WriteByte(')')

	return b.String()
}

func (x *Unary) Str() string {
	return string(x.Op) + x.X.Str()
}

func (x *Binary) Str() string {
	return "(" + x.L.Str() + x.Op + x.R.Str() + ")"
}

// HasCall reports whether evaluating e calls a function.
func HasCall(e Expr) bool {
	switch e := e.(type) {
	case *Call:
		return true
	case *LVal:
		for _, x := range e.Index {
			if HasCall(x) {
				return true
			}
		}

		return false
	case *Unary:
		return HasCall(e.X)
	case *Binary:
		return HasCall(e.L) || HasCall(e.R)
	default:
		return false
	}
}
