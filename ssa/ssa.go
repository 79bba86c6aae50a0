// Package ssa builds Go programs into SSA form with golang.org/x/tools/go/ssa
// and lowers their functions into the ir used by the loop optimizer.
//
// The SSA IR is from golang.org/x/tools/go/ssa, and the call graph used to
// select functions comes from the callgraph packages built on top of it. To
// populate Info, the 'build' subpackage should be used.
package ssa

import (
	"go/token"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/loader"
	"golang.org/x/tools/go/ssa"
)

var (
	ErrNoMainPkgs     = errors.New("no main packages")
	ErrNoTestMainPkgs = errors.New("no test main packages")
	ErrFuncNotFound   = errors.New("function not found")
)

// Info holds the results of a SSA build for analysis.
type Info struct {
	IgnoredPkgs []string // Record of ignored package during the build process.

	FSet  *token.FileSet  // FileSet for parsed source files.
	Prog  *ssa.Program    // SSA IR for whole program.
	LProg *loader.Program // Loaded program from go/loader.

	BldLog io.Writer // Build log.
	PtaLog io.Writer // Pointer analysis log.
}
