package tp

import (
	"fmt"
	"strings"
)

type (
	Type interface {
		Size() int
		String() string
	}

	Func struct {
		Out Type
		In  []Type
	}

	Int struct {
		Bits int16
	}

	Void struct{}

	Ptr struct {
		X Type
	}

	// Array is a possibly multi-dimensional array of X.
	// Dims are the declared sizes, outermost first.
	Array struct {
		X    Type
		Dims []int
	}
)

const WordSize = 4

var (
	I1  = Int{Bits: 1}
	I8  = Int{Bits: 8}
	I32 = Int{Bits: 32}
)

func (x Int) Size() int {
	if x.Bits < 8 {
		return 1
	}

	return int(x.Bits) / 8
}

func (x Void) Size() int { return 0 }

func (x Ptr) Size() int {
	return WordSize
}

func (x Func) Size() int { return 0 }

// Cap is the flattened number of elements.
func (x Array) Cap() int {
	c := 1

	for _, d := range x.Dims {
		c *= d
	}

	return c
}

func (x Array) Size() int {
	return x.X.Size() * x.Cap()
}

// Strip removes n outer dimensions.
// Stripping all of them leaves the element type.
func (x Array) Strip(n int) Type {
	if n >= len(x.Dims) {
		return x.X
	}

	return Array{X: x.X, Dims: x.Dims[n:]}
}

// Stride is the number of words one step of the n-th index moves over,
// indexing from the pointer to the array: n == 0 steps over the whole array.
func (x Array) Stride(n int) int {
	s := 1

	for _, d := range x.Dims[min(n, len(x.Dims)):] {
		s *= d
	}

	return s
}

func (x Int) String() string { return fmt.Sprintf("i%d", x.Bits) }

func (x Void) String() string { return "void" }

func (x Ptr) String() string { return x.X.String() + "*" }

func (x Array) String() string {
	var b strings.Builder

	for _, d := range x.Dims {
		fmt.Fprintf(&b, "[%d x ", d)
	}

	b.WriteString(x.X.String())

	for range x.Dims {
		b.WriteByte(']')
	}

	return b.String()
}

func (x Func) String() string {
	var b strings.Builder

	b.WriteString(x.Out.String())
	b.WriteString(" (")

	for i, t := range x.In {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(t.String())
	}

	b.WriteByte(')')

	return b.String()
}

// Elem returns the pointee of a pointer type.
func Elem(t Type) Type {
	p, ok := t.(Ptr)
	if !ok {
		panic(fmt.Sprintf("not a pointer: %v", t))
	}

	return p.X
}

// Dims returns the dimensions of t if it's an array and nil otherwise.
func Dims(t Type) []int {
	if a, ok := t.(Array); ok {
		return a.Dims
	}

	return nil
}

func IsVoid(t Type) bool {
	_, ok := t.(Void)
	return ok
}

func IsInt(t Type, bits int16) bool {
	x, ok := t.(Int)
	return ok && x.Bits == bits
}

// Equal compares types structurally.
func Equal(a, b Type) bool {
	return a.String() == b.String()
}
