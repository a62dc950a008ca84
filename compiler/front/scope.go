package front

import (
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/ast"
	"github.com/slowlang/sysy/compiler/ir"
)

type (
	// Scope is one level of the symbol table stack.
	// Lookups walk from the innermost scope outwards.
	Scope struct {
		*pkgContext
		*funContext

		defs   map[string]ir.Value
		consts map[string]ast.Const

		prev  *Scope
		depth int

		from loc.PC
	}
)

func rootScope(p *pkgContext, fun *funContext) *Scope {
	return &Scope{
		pkgContext: p,
		funContext: fun,
		defs:       make(map[string]ir.Value),
		consts:     make(map[string]ast.Const),
	}
}

func (s *Scope) nextScope() *Scope {
	n := rootScope(s.pkgContext, s.funContext)

	n.prev = s
	n.depth = s.depth + 1
	n.from = loc.Caller(1)

	tlog.V("scope").Printw("new scope", "d", n.depth, "from", loc.Callers(1, 3))

	return n
}

// global reports whether s is outside of any function.
func (s *Scope) global() bool {
	return s.funContext == nil
}

func (s *Scope) define(name string, v ir.Value) error {
	if _, ok := s.defs[name]; ok {
		return errors.New("redefined: %v", name)
	}

	tlog.V("scope,define").Printw("define", "d", s.depth, "name", name, "val", s.Name(v), "from", loc.Callers(1, 3))

	s.defs[name] = v

	return nil
}

func (s *Scope) defineConst(name string, v ir.Value, c ast.Const) error {
	err := s.define(name, v)
	if err != nil {
		return err
	}

	s.consts[name] = c

	return nil
}

// lookup finds the innermost binding of name.
func (s *Scope) lookup(name string) (v ir.Value, c ast.Const, isConst bool, err error) {
	for q := s; q != nil; q = q.prev {
		var ok bool

		v, ok = q.defs[name]
		if !ok {
			continue
		}

		c, isConst = q.consts[name]

		if tlog.If("scope,lookup") {
			tlog.Printw("lookup", "name", name, "d", s.depth, "found_d", q.depth, "const", isConst, "from", loc.Callers(1, 3))
		}

		return v, c, isConst, nil
	}

	return ir.Nil, ast.Const{}, false, errors.New("undefined: %v", name)
}

// LookupConst makes Scope usable for constant folding.
// Variables shadow outer constants.
func (s *Scope) LookupConst(name string) (ast.Const, bool) {
	for q := s; q != nil; q = q.prev {
		if _, ok := q.defs[name]; !ok {
			continue
		}

		c, ok := q.consts[name]

		return c, ok
	}

	return ast.Const{}, false
}
