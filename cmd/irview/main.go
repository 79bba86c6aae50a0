// Command irview prints the ir lowered from Go or LLVM assembly sources,
// together with the loops found in each function.
//
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/llvm"
	"github.com/nickng/loopopt/opt"
	"github.com/nickng/loopopt/ssa"
	"github.com/nickng/loopopt/ssa/build"
	gossa "golang.org/x/tools/go/ssa"
)

const (
	Usage = `irview is a tool for printing the loop ir of Go or LLVM assembly code.

Usage:

  irview [options] file.go [files.go...]
  irview [options] file.ll

Options:

`
)

var (
	buildlogPath string
	defaultArgs  bool
	outPath      string
	viewFunc     string
	showSSA      bool
	showLoops    bool

	out io.Writer
)

func init() {
	flag.BoolVar(&defaultArgs, "default", true, "Use default SSA build arguments")
	flag.StringVar(&buildlogPath, "log", "", "Specify build log file (use '-' for stdout)")
	flag.StringVar(&outPath, "out", "", "Specify output file (default: stdout)")
	flag.StringVar(&viewFunc, "func", "", `Specify the function to view (format: (import/path).FuncName)`)
	flag.BoolVar(&showSSA, "ssa", false, "Also print the Go SSA form")
	flag.BoolVar(&showLoops, "loops", true, "Print the loop forest and trip counts")
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, Usage)
		flag.PrintDefaults()
		os.Exit(0)
	}

	switch outPath {
	case "":
		out = os.Stdout
	default:
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("Cannot create output file %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}

	var fns []*ir.Func
	if filepath.Ext(flag.Arg(0)) == ".ll" {
		fns = fromLLVM(flag.Arg(0))
	} else {
		fns = fromGo(flag.Args())
	}
	for _, f := range fns {
		if _, err := f.WriteTo(out); err != nil {
			log.Fatal("Cannot write ir:", err)
		}
		if showLoops {
			writeLoops(out, f)
		}
		fmt.Fprintln(out)
	}
}

func writeLoops(w io.Writer, f *ir.Func) {
	facts := opt.NewFacts(f)
	for _, l := range facts.Forest().Preorder() {
		fmt.Fprintf(w, "; %s trip=%s\n", l, facts.SCEV().BackedgeTakenCount(l))
	}
}

func fromLLVM(file string) []*ir.Func {
	m, err := llvm.ParseFile(file)
	if err != nil {
		log.Fatal("Cannot parse LLVM assembly:", err)
	}
	var fns []*ir.Func
	for _, fn := range llvm.Defined(m) {
		if viewFunc != "" && fn.Name() != viewFunc {
			continue
		}
		f, err := llvm.Lower(fn)
		if err != nil {
			log.Printf("Skipping %s: %v", fn.Name(), err)
			continue
		}
		fns = append(fns, f)
	}
	return fns
}

func fromGo(files []string) []*ir.Func {
	conf := build.FromFiles(files...)
	if defaultArgs {
		conf = conf.Default()
	}
	switch buildlogPath {
	case "":
	case "-":
		conf = conf.WithBuildLog(os.Stdout, log.LstdFlags)
	default:
		f, err := os.Create(buildlogPath)
		if err != nil {
			log.Fatalf("Cannot create log %s: %v", buildlogPath, err)
		}
		defer f.Close()
		conf = conf.WithBuildLog(f, log.LstdFlags)
	}

	info, err := conf.Build()
	if err != nil {
		log.Fatal("Cannot build SSA from files:", err)
	}
	srcs := info.SourceFuncs()
	if viewFunc != "" {
		fn, err := info.FindFunc(viewFunc)
		if err != nil {
			log.Fatal(err)
		}
		srcs = []*gossa.Function{fn}
		if showSSA {
			if _, err := info.WriteFunc(out, viewFunc); err != nil {
				log.Fatal("Cannot write SSA:", err)
			}
		}
	} else if showSSA {
		if _, err := info.WriteTo(out); err != nil {
			log.Fatal("Cannot write SSA:", err)
		}
	}

	var fns []*ir.Func
	for _, fn := range srcs {
		f, err := ssa.Lower(fn)
		if err != nil {
			log.Printf("Skipping %s: %v", fn, err)
			continue
		}
		fns = append(fns, f)
	}
	return fns
}
