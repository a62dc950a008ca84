package ir

import (
	"fmt"
	"strings"
)

// Name is the module-unique name of v.
func (m *Module) Name(v Value) string {
	switch x := m.Exprs[v].(type) {
	case *Global:
		return "@" + x.Name
	case *Func:
		return "@" + x.Name
	case *Block:
		return x.Name
	case ConstInt:
		return fmt.Sprintf("%d", x)
	case Param:
		return fmt.Sprintf("%%%s.%d", x.Name, v)
	default:
		return fmt.Sprintf("%%%d", v)
	}
}

func (m *Module) typed(v Value) string {
	return m.EType[v].String() + " " + m.Name(v)
}

func (m *Module) names(l []Value) string {
	var b strings.Builder

	for i, v := range l {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(m.typed(v))
	}

	return b.String()
}

// Format renders a single instruction.
func (m *Module) Format(id Value) string {
	ops := m.ops[id]

	switch x := m.Exprs[id].(type) {
	case BinaryOp:
		return fmt.Sprintf("%v = %v %v, %v", m.Name(id), x.Op, m.typed(ops[0]), m.Name(ops[1]))
	case Call:
		if m.EType[id].Size() == 0 {
			return fmt.Sprintf("call %v(%v)", m.Name(ops[0]), m.names(ops[1:]))
		}

		return fmt.Sprintf("%v = call %v(%v)", m.Name(id), m.Name(ops[0]), m.names(ops[1:]))
	case Ret:
		if len(ops) == 0 {
			return "ret void"
		}

		return "ret " + m.typed(ops[0])
	case Alloca:
		return fmt.Sprintf("%v = alloca %v", m.Name(id), x.Elem)
	case Load:
		return fmt.Sprintf("%v = load %v", m.Name(id), m.typed(ops[0]))
	case Store:
		return fmt.Sprintf("store %v, %v", m.typed(ops[0]), m.typed(ops[1]))
	case GEP:
		return fmt.Sprintf("%v = getelementptr %v", m.Name(id), m.names(ops))
	case Branch:
		if len(ops) == 1 {
			return "br label " + m.Name(ops[0])
		}

		return fmt.Sprintf("br %v, label %v, label %v", m.typed(ops[0]), m.Name(ops[1]), m.Name(ops[2]))
	case Convert:
		return fmt.Sprintf("%v = %v %v to %v", m.Name(id), x.Kind, m.typed(ops[0]), m.EType[id])
	default:
		return fmt.Sprintf("%v = %T", m.Name(id), x)
	}
}
