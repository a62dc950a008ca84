package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/sysy/compiler"
	"github.com/slowlang/sysy/compiler/asm/mips"
	"github.com/slowlang/sysy/compiler/front"
	"github.com/slowlang/sysy/compiler/parse"
)

type logFile struct {
	f *os.File
}

func main() {
	var lf logFile

	cli.RunAndExit(newApp(&lf), os.Args, os.Environ())
}

func newApp(lf *logFile) *cli.Command {
	parseCmd := &cli.Command{
		Name:        "parse",
		Description: "parse files and print syntax trees",
		Action:      parseAct,
		Args:        cli.Args{},
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "print LLVM IR",
		Action:      irAct,
		Args:        cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile to MARS assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "", "output file (stdout if empty)"),
		},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile and execute in the MIPS emulator",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("max-steps", 100_000_000, "instructions limit"),
		},
	}

	return &cli.Command{
		Name:        "sysyc",
		Description: "sysyc compiles SysY programs for the MARS MIPS simulator",
		Before:      lf.before,
		After:       lf.after,
		Flags: []*cli.Flag{
			cli.NewFlag("log", "stderr", "log output file"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.NewFlag("string-segments", false, "print printf literals with putstr"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			parseCmd,
			irCmd,
			compileCmd,
			runCmd,
		},
	}
}

func (lf *logFile) before(c *cli.Command) error {
	var w io.Writer = os.Stderr

	if name := c.String("log"); name != "" && name != "stderr" {
		f, err := os.Create(name)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}

		lf.f = f
		w = f
	}

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(w, tlog.LstdFlags))

	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func (lf *logFile) after(c *cli.Command) error {
	if lf.f == nil {
		return nil
	}

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(os.Stderr, tlog.LstdFlags))

	err := lf.f.Close()
	lf.f = nil
	if err != nil {
		return errors.Wrap(err, "close log file")
	}

	return nil
}

func options(c *cli.Command) compiler.Options {
	return compiler.Options{
		Options: front.Options{
			StringSegments: c.Bool("string-segments"),
		},
	}
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		x, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		for _, n := range x.Order {
			fmt.Printf("%+v\n", n)
		}
	}

	return nil
}

func irAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read file")
		}

		obj, err := compiler.LLVM(ctx, a, text, options(c))
		if err != nil {
			return errors.Wrap(err, "ir %v", a)
		}

		fmt.Printf("%s", obj)
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	var out []byte

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, options(c))
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out = append(out, obj...)
	}

	if name := c.String("output"); name != "" {
		return os.WriteFile(name, out, 0o644)
	}

	_, err = os.Stdout.Write(out)

	return err
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) != 1 {
		return errors.New("exactly one file expected")
	}

	obj, err := compiler.CompileFile(ctx, c.Args[0], options(c))
	if err != nil {
		return errors.Wrap(err, "compile")
	}

	p, err := mips.Assemble(obj)
	if err != nil {
		return errors.Wrap(err, "assemble")
	}

	w := bufio.NewWriter(os.Stdout)
	defer func() {
		e := w.Flush()
		if err == nil {
			err = e
		}
	}()

	m := mips.NewMachine(p, os.Stdin, w)
	m.MaxSteps = c.Int("max-steps")

	err = m.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "run")
	}

	tlog.Printw("finished", "steps", m.Steps)

	return nil
}
