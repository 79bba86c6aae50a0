package ssa

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/ssa"
)

// CallGraph is a call graph of a Program.
type CallGraph struct {
	cg      *callgraph.Graph
	prog    *ssa.Program
	usedFns []*ssa.Function // Functions reachable from main.init and main.main.
	tests   bool            // Test functions are roots too.
}

// BuildCallGraph constructs a callgraph from ssa.Info.
// algo is algorithm available in golang.org/x/tools/go/callgraph, which
// includes:
//  - static  static calls only (unsound)
//  - cha     Class Hierarchy Analysis
//  - rta     Rapid Type Analysis
//  - pta     inclusion-based Points-To Analysis
func (info *Info) BuildCallGraph(algo string, tests bool) (*CallGraph, error) {
	var cg *callgraph.Graph
	switch algo {
	case "static":
		cg = static.CallGraph(info.Prog)

	case "cha":
		cg = cha.CallGraph(info.Prog)

	case "pta":
		res, err := info.pointerCallGraph(tests)
		if err != nil {
			return nil, errors.Wrap(err, "callgraph: pointer analysis failed")
		}
		cg = res.CallGraph

	case "rta":
		mains, err := MainPkgs(info.Prog, tests)
		if err != nil {
			return nil, err
		}
		var roots []*ssa.Function
		for _, main := range mains {
			for _, name := range []string{"init", "main"} {
				if fn := main.Func(name); fn != nil {
					roots = append(roots, fn)
				}
			}
			if tests {
				roots = append(roots, TestFuncs(main)...)
			}
		}
		cg = rta.Analyze(roots, true).CallGraph

	default:
		return nil, errors.Errorf("callgraph: unknown algorithm %q", algo)
	}

	cg.DeleteSyntheticNodes()
	return &CallGraph{cg: cg, prog: info.Prog, tests: tests}, nil
}

// UsedFunctions return the functions reachable from main.init() and
// main.main(), or from the test functions of a graph built for tests,
// ordered by position.
func (g *CallGraph) UsedFunctions() ([]*ssa.Function, error) {
	if g.usedFns != nil {
		return g.usedFns, nil
	}

	callTree := make(map[*ssa.Function][]*ssa.Function)
	if err := callgraph.GraphVisitEdges(g.cg, func(edge *callgraph.Edge) error {
		callTree[edge.Caller.Func] = append(callTree[edge.Caller.Func], edge.Callee.Func)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "callgraph: failed to visit edges")
	}

	mains, err := MainPkgs(g.prog, g.tests)
	if err != nil {
		return nil, errors.Wrap(err, "callgraph: failed to find main packages")
	}

	var fnQueue []*ssa.Function
	for _, main := range mains {
		if main.Func("main") != nil {
			fnQueue = append(fnQueue, main.Func("init"), main.Func("main"))
		}
		if g.tests {
			fnQueue = append(fnQueue, TestFuncs(main)...)
		}
	}

	visited := make(map[*ssa.Function]bool)
	for len(fnQueue) > 0 {
		headFn := fnQueue[0]
		fnQueue = fnQueue[1:]
		visited[headFn] = true
		for _, fn := range callTree[headFn] {
			if !visited[fn] {
				fnQueue = append(fnQueue, fn)
			}
			visited[fn] = true
		}
	}

	for fn := range visited {
		g.usedFns = append(g.usedFns, fn)
	}
	sortFuncs(g.usedFns)
	return g.usedFns, nil
}

func sortFuncs(fns []*ssa.Function) {
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Pos() != fns[j].Pos() {
			return fns[i].Pos() < fns[j].Pos()
		}
		return fns[i].String() < fns[j].String()
	})
}
