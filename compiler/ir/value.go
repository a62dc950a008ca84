package ir

import (
	"sort"

	"github.com/slowlang/sysy/compiler/tp"
)

func (m *Module) id() Value {
	return Value(len(m.Exprs))
}

func (m *Module) alloc(x any, t tp.Type, owner Value) Value {
	id := m.id()

	m.Exprs = append(m.Exprs, x)
	m.EType = append(m.EType, t)
	m.owner = append(m.owner, owner)
	m.ops = append(m.ops, nil)
	m.uses = append(m.uses, nil)

	return id
}

func (m *Module) Len() int { return len(m.Exprs) }

// Owner is the block of an instruction, or the function of a block or a param.
func (m *Module) Owner(v Value) Value {
	return m.owner[v]
}

func (m *Module) Operands(u Value) []Value {
	return m.ops[u]
}

func (m *Module) Operand(u Value, i int) Value {
	return m.ops[u][i]
}

func (m *Module) NumOperands(u Value) int {
	return len(m.ops[u])
}

// AddOperand appends v to the operand list of u.
func (m *Module) AddOperand(u, v Value) {
	m.ops[u] = append(m.ops[u], v)
	m.addUse(v, Use{User: u, Index: len(m.ops[u]) - 1})
}

// SetOperand replaces the i-th operand of u, moving the use from the old value to v.
func (m *Module) SetOperand(u Value, i int, v Value) {
	old := m.ops[u][i]
	if old == v {
		return
	}

	m.removeUse(old, Use{User: u, Index: i})
	m.ops[u][i] = v
	m.addUse(v, Use{User: u, Index: i})
}

// ReplaceAllUses rewrites every operand slot pointing at old to point at to.
func (m *Module) ReplaceAllUses(old, to Value) {
	if old == to {
		return
	}

	for _, u := range m.Uses(old) {
		m.SetOperand(u.User, u.Index, to)
	}
}

// DropOperands severs all outgoing uses of u.
func (m *Module) DropOperands(u Value) {
	for i, v := range m.ops[u] {
		m.removeUse(v, Use{User: u, Index: i})
	}

	m.ops[u] = nil
}

// Uses returns the use-set of v ordered by user and operand index.
func (m *Module) Uses(v Value) []Use {
	set := m.uses[v]
	if len(set) == 0 {
		return nil
	}

	l := make([]Use, 0, len(set))

	for u := range set {
		l = append(l, u)
	}

	sort.Slice(l, func(i, j int) bool {
		if l[i].User != l[j].User {
			return l[i].User < l[j].User
		}

		return l[i].Index < l[j].Index
	})

	return l
}

func (m *Module) NumUses(v Value) int {
	return len(m.uses[v])
}

// RemoveInstr drops the instruction's operands and unlinks it from its block.
// The instruction must have no uses left.
func (m *Module) RemoveInstr(id Value) {
	if n := m.NumUses(id); n != 0 {
		panic("remove instruction in use")
	}

	m.DropOperands(id)

	b := m.Block(m.owner[id])

	for i, x := range b.Code {
		if x == id {
			b.Code = append(b.Code[:i], b.Code[i+1:]...)
			break
		}
	}

	m.owner[id] = Nil
}

func (m *Module) addUse(v Value, u Use) {
	if m.uses[v] == nil {
		m.uses[v] = make(map[Use]struct{})
	}

	m.uses[v][u] = struct{}{}
}

func (m *Module) removeUse(v Value, u Use) {
	delete(m.uses[v], u)
}
