package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler/back"
	"github.com/slowlang/sysy/compiler/front"
	"github.com/slowlang/sysy/compiler/ir"
	"github.com/slowlang/sysy/compiler/llvm"
	"github.com/slowlang/sysy/compiler/parse"
)

type (
	Options struct {
		front.Options
	}
)

func CompileFile(ctx context.Context, name string, opts Options) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, opts)
}

// Compile translates SysY text into MARS assembly.
func Compile(ctx context.Context, name string, text []byte, opts Options) (obj []byte, err error) {
	m, err := BuildIR(ctx, name, text, opts)
	if err != nil {
		return nil, err
	}

	obj, err = back.New().CompilePackage(ctx, nil, m)
	if err != nil {
		return nil, errors.Wrap(err, "codegen")
	}

	return obj, nil
}

// BuildIR parses text and builds a verified IR module.
func BuildIR(ctx context.Context, name string, text []byte, opts Options) (m *ir.Module, err error) {
	st := parse.New()

	st.AddFile(name, text)

	x, err := st.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	m, err = front.New(opts.Options).Build(ctx, name, x)
	if err != nil {
		return nil, errors.Wrap(err, "build ir")
	}

	err = m.Verify(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "verify ir")
	}

	return m, nil
}

// LLVM renders the module built from text as LLVM assembly.
func LLVM(ctx context.Context, name string, text []byte, opts Options) ([]byte, error) {
	m, err := BuildIR(ctx, name, text, opts)
	if err != nil {
		return nil, err
	}

	return llvm.Print(ctx, nil, m)
}
