// Command loopopt hoists loop-invariant code and fuses adjacent loops in Go
// or LLVM assembly sources, and prints the optimized ir.
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
	Usage = `loopopt is a tool for optimizing the loops of Go or LLVM assembly code.

Usage:

  loopopt [options] file.go [files.go...]
  loopopt [options] file.ll [files.ll...]

Options:

`
)

var (
	logPath      string
	outPath      string
	viewFunc     string
	cgAlgo       string
	doLICM       bool
	doFusion     bool
	dumpBefore   bool
	conservative bool
	maxRounds    int

	out io.Writer
)

func init() {
	flag.StringVar(&logPath, "log", "", "Specify analysis log file (use '-' for stderr)")
	flag.StringVar(&outPath, "out", "", "Specify output file (default: stdout)")
	flag.StringVar(&viewFunc, "func", "", `Specify the function to optimize (format: (import/path).FuncName)`)
	flag.StringVar(&cgAlgo, "cg", "", "Only optimize functions reachable in the call graph (static, cha, rta, pta)")
	flag.BoolVar(&doLICM, "licm", true, "Hoist loop-invariant code")
	flag.BoolVar(&doFusion, "fusion", true, "Fuse adjacent loops")
	flag.BoolVar(&dumpBefore, "dump", false, "Print each function before optimizing")
	flag.BoolVar(&conservative, "conservative", false, "Refuse fusion when a dependence distance is unknown")
	flag.IntVar(&maxRounds, "rounds", opt.DefaultMaxRounds, "Maximum rounds of hoisting and fusion per function")
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, Usage)
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg := opt.NewConfig().
		WithLICM(doLICM).
		WithFusion(doFusion).
		WithConservativeDeps(conservative).
		WithMaxRounds(maxRounds)
	switch logPath {
	case "":
	case "-":
		cfg = cfg.WithLogger(opt.NewLogger())
	default:
		cfg = cfg.WithLogger(opt.NewFileLogger(logPath))
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
		fns = loadLLVM(flag.Args())
	} else {
		fns = loadGo(flag.Args())
	}

	p := opt.New(cfg)
	for _, f := range fns {
		if dumpBefore {
			fmt.Fprintf(out, "; before\n%s\n", f)
		}
		p.Run(f)
		if _, err := f.WriteTo(out); err != nil {
			log.Fatal("Cannot write ir:", err)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(os.Stderr, p.Stats)
}

func loadLLVM(files []string) []*ir.Func {
	var fns []*ir.Func
	for _, file := range files {
		m, err := llvm.ParseFile(file)
		if err != nil {
			log.Fatal("Cannot parse LLVM assembly:", err)
		}
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
	}
	return fns
}

func loadGo(files []string) []*ir.Func {
	info, err := build.FromFiles(files...).Default().Build()
	if err != nil {
		log.Fatal("Cannot build SSA from files:", err)
	}

	var srcs []*gossa.Function
	switch {
	case viewFunc != "":
		fn, err := info.FindFunc(viewFunc)
		if err != nil {
			log.Fatal(err)
		}
		srcs = append(srcs, fn)
	case cgAlgo != "":
		cg, err := info.BuildCallGraph(cgAlgo, false)
		if err != nil {
			log.Fatal("Cannot build call graph:", err)
		}
		used, err := cg.UsedFunctions()
		if err != nil {
			log.Fatal(err)
		}
		for _, fn := range used {
			if fn.Pkg != nil && fn.Synthetic == "" && len(fn.Blocks) > 0 {
				srcs = append(srcs, fn)
			}
		}
	default:
		srcs = info.SourceFuncs()
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
