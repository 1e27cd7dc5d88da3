// Command matiria is the toolchain's batch CLI (spec.md §6.1): read a
// source file, run it through scan -> parse -> validate -> emit ->
// execute, and exit with the code matching whichever stage first failed.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/log"

	"github.com/fmaggi/matiria/internal/bytecode"
	"github.com/fmaggi/matiria/internal/emitter"
	"github.com/fmaggi/matiria/internal/merr"
	"github.com/fmaggi/matiria/internal/parser"
	"github.com/fmaggi/matiria/internal/scanner"
	"github.com/fmaggi/matiria/internal/token"
	"github.com/fmaggi/matiria/internal/types"
	"github.com/fmaggi/matiria/internal/validator"
	"github.com/fmaggi/matiria/internal/vm"
	"github.com/fmaggi/matiria/internal/vmheap"
	"github.com/fmaggi/matiria/stdlib"
)

var (
	dumpTokens   = flag.Bool("dump-tokens", false, "print every scanned token and exit before parsing")
	dumpAST      = flag.Bool("dump-ast", false, "print the parsed AST and exit before validation")
	dumpBytecode = flag.Bool("dump-bytecode", false, "print the disassembled bytecode for main and its nested closures, then exit without running")
	// trace registers the flag grailbio/base/log's own verbosity machinery
	// expects on the command line; internal/vm, internal/emitter and
	// internal/validator already log.Debug.Printf unconditionally, gated
	// entirely by that package's own level threshold rather than anything
	// this CLI reads itself.
	trace = flag.Bool("trace", false, "enable debug logging through internal/vm, internal/emitter and friends")
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: matiria <source-file>")
		os.Exit(merr.FileErr.ExitCode())
	}

	os.Exit(run(flag.Arg(0)))
}

// run executes path to completion, returning the process exit code per
// §6.1: 0 on success, otherwise the ExitCode of whichever merr.Kind first
// reported a failure.
func run(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		return report(merr.Wrap(merr.FileErr, err, "cannot read %s", path))
	}

	if *dumpTokens {
		dumpScannedTokens(src)
		return 0
	}

	reg := types.NewRegistry()
	p := parser.New(src, reg)
	root := p.Parse()
	if p.HadError() {
		return report(p.Errors()[0])
	}

	if *dumpAST {
		fmt.Printf("%+v\n", root)
		return 0
	}

	v := validator.New(reg)
	v.Validate(root)
	if v.HadError() {
		return report(v.Errors()[0])
	}

	pkg := emitter.New(reg).Emit(root, v.GlobalScope())
	stdlib.Register(pkg, v.GlobalScope())

	if *dumpBytecode {
		dumpPackageBytecode(pkg.Main)
		return 0
	}

	if err := vm.New().Execute(pkg); err != nil {
		return report(err)
	}
	return 0
}

// report writes err to stderr and returns its mapped exit code.
func report(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return merr.KindOf(err).ExitCode()
}

func dumpScannedTokens(src []byte) {
	sc := scanner.New(src)
	for {
		tok := sc.Next()
		fmt.Printf("%-4d %-12s %q\n", tok.Line, tok.Kind, tok.Text())
		if tok.Kind == token.EOF {
			return
		}
	}
}

// dumpPackageBytecode renders fn's chunk and then every closure template
// collected directly inside it (internal/bytecode.Disassemble, the
// SUPPLEMENTED FEATURES "Disassembler" entry), recursing into nested
// templates the same way CLOSURE instructions address them.
func dumpPackageBytecode(fn *vmheap.FunctionObj) {
	if fn == nil {
		return
	}
	fmt.Println(bytecode.Disassemble(fn.Name, fn.Chunk))
	for _, inner := range fn.Inner {
		dumpPackageBytecode(inner)
	}
}
