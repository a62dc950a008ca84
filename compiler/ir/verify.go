package ir

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/set"
)

type (
	// blocks are visited in layout order
	worklist struct {
		heap.Heap[int]
	}
)

// Verify checks the def-use graph and the block structure of the module.
func (m *Module) Verify(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "ir: verify", "path", m.Path, "values", len(m.Exprs))
	defer tr.Finish("err", &err)

	err = m.verifyUses()
	if err != nil {
		return errors.Wrap(err, "uses")
	}

	for _, f := range m.Funcs {
		fn := m.Func(f)

		if fn.Builtin != NotBuiltin {
			if len(fn.Blocks) != 0 {
				return errors.New("func %v: builtin with a body", fn.Name)
			}

			continue
		}

		err = m.verifyFunc(ctx, f)
		if err != nil {
			return errors.Wrap(err, "func %v", fn.Name)
		}
	}

	return nil
}

func (m *Module) verifyUses() error {
	for u := range m.ops {
		for i, v := range m.ops[u] {
			if _, ok := m.uses[v][Use{User: Value(u), Index: i}]; !ok {
				return errors.New("%v: operand %d (%v) misses its use", m.Name(Value(u)), i, m.Name(v))
			}
		}
	}

	for v := range m.uses {
		for u := range m.uses[v] {
			ops := m.ops[u.User]

			if u.Index >= len(ops) || ops[u.Index] != Value(v) {
				return errors.New("%v: stale use %d:%d", m.Name(Value(v)), u.User, u.Index)
			}
		}
	}

	return nil
}

func (m *Module) verifyFunc(ctx context.Context, f Value) error {
	fn := m.Func(f)

	if len(fn.Blocks) == 0 {
		return errors.New("no blocks")
	}

	pos := make(map[Value]int, len(fn.Blocks))

	for i, b := range fn.Blocks {
		if m.owner[b] != f {
			return errors.New("block %v belongs to another func", m.Name(b))
		}

		pos[b] = i
	}

	for _, b := range fn.Blocks {
		blk := m.Block(b)

		if len(blk.Code) == 0 {
			return errors.New("block %v: empty", blk.Name)
		}

		for i, id := range blk.Code {
			x := m.Exprs[id]

			if !IsInstr(x) {
				return errors.New("block %v: %T is not an instruction", blk.Name, x)
			}

			if m.owner[id] != b {
				return errors.New("block %v: %v has a different owner", blk.Name, m.Name(id))
			}

			term := IsTerminator(x)

			if last := i == len(blk.Code)-1; term != last {
				return errors.New("block %v: terminator at %d of %d", blk.Name, i, len(blk.Code))
			}

			if _, ok := x.(Branch); !ok {
				continue
			}

			t, e := m.Targets(id)

			for _, to := range []Value{t, e} {
				if to == Nil {
					continue
				}

				if _, ok := pos[to]; !ok {
					return errors.New("block %v: branch to %v outside of the function", blk.Name, m.Name(to))
				}
			}
		}
	}

	tr := tlog.SpanFromContext(ctx)

	reach := set.MakeBits(0)

	w := worklist{Heap: heap.Heap[int]{Less: func(d []int, i, j int) bool { return d[i] < d[j] }}}
	w.Push(0)
	reach.Set(0)

	for w.Len() != 0 {
		i := w.Pop()
		b := fn.Blocks[i]

		last, _ := m.Terminator(b)

		if _, ok := m.Exprs[last].(Branch); !ok {
			continue
		}

		t, e := m.Targets(last)

		for _, to := range []Value{t, e} {
			if to == Nil || reach.IsSet(pos[to]) {
				continue
			}

			reach.Set(pos[to])
			w.Push(pos[to])
		}
	}

	if n := reach.Size(); n != len(fn.Blocks) {
		tr.V("unreachable").Printw("unreachable blocks", "func", fn.Name, "reachable", n, "total", len(fn.Blocks), "reach", reach)
	}

	return nil
}
