// Command rembed is the REPL/script-runner front end spec.md §6
// leaves out-of-scope for the core interpreter; grounded on the
// teacher's cmd/langlang REPL (read a line, run it through the shared
// pipeline, print either a result or an error).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-colorable"

	"github.com/clarete/rembed"
	"github.com/clarete/rembed/internal/rdisasm"
	"github.com/clarete/rembed/rcodegen"
	"github.com/clarete/rembed/rparser"
)

func main() {
	var (
		evalSrc = flag.String("e", "", "Evaluate the given script text and exit")
		disasm  = flag.Bool("d", false, "Print bytecode for the given file instead of running it")
	)
	flag.Parse()

	in, err := rembed.New(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "can't start interpreter:", err)
		os.Exit(1)
	}

	switch {
	case *disasm && flag.NArg() > 0:
		if err := dumpDisasm(in, flag.Arg(0)); err != nil {
			printError(err)
			os.Exit(1)
		}
	case *evalSrc != "":
		runOnce(in, *evalSrc)
	case flag.NArg() > 0:
		val, err := in.EvalFile(flag.Arg(0))
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		fmt.Println(val)
	default:
		repl(in)
	}
}

// dumpDisasm reads path, compiles it the same way Eval would, and
// prints its bytecode via internal/rdisasm instead of running it.
func dumpDisasm(in *rembed.Interp, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p := rparser.New(string(data), path)
	prog, errs := p.ParseProgram()
	if len(errs) > 0 {
		return errs[0]
	}
	irep, err := rcodegen.Generate(in.Symbols(), prog.Body)
	if err != nil {
		return err
	}
	rdisasm.Write(colorable.NewColorable(os.Stdout), irep, in.Symbols())
	return nil
}

func runOnce(in *rembed.Interp, src string) {
	val, err := in.Eval(src)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	fmt.Println(val)
}

// repl mirrors the teacher's own interactive loop in cmd/langlang:
// read a line, run it through the shared pipeline, print either the
// result or the error, and keep going until EOF.
func repl(in *rembed.Interp) {
	out := colorable.NewColorable(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		val, err := in.Eval(line)
		if err != nil {
			printError(err)
			continue
		}
		fmt.Fprintln(out, val)
	}
}

// printError writes "ERROR:" and the error's own text to stderr. For an
// unhandled exception that text is the rvm.RaisedError's fixed
// message; the exception's class name and message are not printed.
func printError(err error) {
	fmt.Fprintln(os.Stderr, "ERROR:", err)
}
