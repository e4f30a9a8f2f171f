package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/kristofer/lumen/internal/compiler"
	"github.com/kristofer/lumen/internal/gc"
	"github.com/kristofer/lumen/internal/vm"
)

const version = "0.1.0"

// Exit codes follow the sysexits.h convention the reference interpreter uses.
const (
	exitOK         = 0
	exitUsage      = 64
	exitCompileErr = 65
	exitRuntimeErr = 70
	exitIOErr      = 74
)

func main() {
	trace := flag.Bool("trace", false, "print each instruction before it executes")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	os.Exit(run(flag.Args(), *trace, os.Stdin, os.Stdout, os.Stderr))
}

// run is main's testable core: it takes every external dependency (args,
// stdin/stdout/stderr) as a parameter and returns an exit code instead of
// calling os.Exit itself, so a test can drive it in-process.
func run(args []string, trace bool, stdin io.Reader, stdout, stderr io.Writer) int {
	switch len(args) {
	case 0:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runREPL(ctx, trace, stdin, stdout, stderr)
	case 1:
		return runFile(context.Background(), args[0], trace, stdout, stderr)
	default:
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "lumen %s\n\n", version)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  lumen              start the interactive REPL")
	fmt.Fprintln(w, "  lumen [-trace] FILE  run a script file")
}

func runFile(ctx context.Context, path string, trace bool, stdout, stderr io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "lumen: %v\n", err)
		return exitIOErr
	}

	heap := gc.NewHeap()
	reporter := compiler.WriterReporter{W: stderr}
	fn, ok := compiler.New(heap, reporter).Compile(string(source))
	if !ok {
		return exitCompileErr
	}

	machine := vm.New(heap, stdout)
	machine.SetTrace(trace)
	if err := machine.Interpret(ctx, fn); err != nil {
		printRuntimeError(stderr, err)
		return exitRuntimeErr
	}
	return exitOK
}

// runREPL keeps a single Heap, VM, and Compiler alive across every line so
// that a global (and whether it was declared const) defined on one line is
// still visible on the next. Each line is parsed on its own: locals don't
// persist (there is no top-level scope to reopen), but globals do, which is
// the part of REPL state that actually matters for exploring the language.
// ctx is cancelled on Ctrl-C, aborting whichever line is currently running.
func runREPL(ctx context.Context, trace bool, stdin io.Reader, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "lumen %s\n", version)
	fmt.Fprintln(stdout, "Ctrl-D to exit.")

	heap := gc.NewHeap()
	machine := vm.New(heap, stdout)
	machine.SetTrace(trace)
	reporter := compiler.WriterReporter{W: stderr}
	c := compiler.New(heap, reporter)

	input := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !input.Scan() {
			fmt.Fprintln(stdout)
			return exitOK
		}
		line := input.Text()
		if line == "" {
			continue
		}

		fn, ok := c.Compile(line)
		if !ok {
			continue
		}
		if err := machine.Interpret(ctx, fn); err != nil {
			printRuntimeError(stderr, err)
		}
	}
}

func printRuntimeError(stderr io.Writer, err error) {
	fmt.Fprintln(stderr, err.Error())
	if rerr, ok := err.(*vm.RuntimeError); ok {
		for _, line := range rerr.Trace {
			fmt.Fprintf(stderr, "  %s\n", line)
		}
	}
}
