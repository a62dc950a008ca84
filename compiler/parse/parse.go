package parse

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/ast"
)

type (
	State struct {
		b []byte // all files concatenated

		files []file
	}

	file struct {
		base int
		size int
		name string
	}

	UnexpectedError struct {
		Token Token
		Want  []Token
	}

	PartialReadError struct {
		End int
	}
)

func ParseFile(ctx context.Context, name string) (*ast.CompUnit, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	s := New()
	s.AddFile(name, data)

	return s.Parse(ctx)
}

func Parse(ctx context.Context, text []byte) (*ast.CompUnit, error) {
	s := New()
	s.AddFile("", text)

	return s.Parse(ctx)
}

func New() *State {
	return &State{}
}

func (s *State) AddFile(name string, text []byte) {
	f := file{
		name: name,
		base: len(s.b),
		size: len(text),
	}

	s.b = append(s.b, text...)
	s.b = append(s.b, '\n')

	s.files = append(s.files, f)
}

func (s *State) Parse(ctx context.Context) (x *ast.CompUnit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "parse", "files", len(s.files), "size", len(s.b))
	defer tr.Finish("err", &err)

	x, i, err := s.parseCompUnit(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "at %v", s.Position(i))
	}

	tr.V("parse_tree").Printw("parsed", "decls", len(x.Decls), "funcs", len(x.Funcs))

	return x, nil
}

// Position renders the byte offset pos as file:line:col.
func (s *State) Position(pos int) string {
	for _, f := range s.files {
		if pos < f.base || pos > f.base+f.size {
			continue
		}

		text := s.b[f.base:pos]

		line := 1 + bytes.Count(text, []byte{'\n'})
		col := pos - f.base + 1

		if p := bytes.LastIndexByte(text, '\n'); p >= 0 {
			col = len(text) - p
		}

		name := f.name
		if name == "" {
			name = "<input>"
		}

		return fmt.Sprintf("%s:%d:%d", name, line, col)
	}

	return fmt.Sprintf("pos %d", pos)
}

func NewUnexpected(got Token, want ...Token) error {
	return UnexpectedError{
		Token: got,
		Want:  want,
	}
}

func (e UnexpectedError) Error() string {
	l := make([]string, len(e.Want))

	for i := range e.Want {
		l[i] = tokenString(e.Want[i])
	}

	return fmt.Sprintf("unexpected token: %v want: %v", tokenString(e.Token), strings.Join(l, ", "))
}

func (e PartialReadError) Error() string {
	return fmt.Sprintf("partial read: stopped at %d", e.End)
}

func tokenString(tk Token) string {
	switch tk := tk.(type) {
	case nil:
		return "EOF"
	case Ident:
		if tk == "" {
			return "identifier"
		}
	case Number:
		if tk == "" {
			return "number"
		}
	case String:
		if tk == "" {
			return "format string"
		}
	}

	return fmt.Sprintf("%q", tk)
}
