package ssa

import (
	"github.com/pkg/errors"
	"golang.org/x/tools/go/pointer"
)

// pointerCallGraph runs inclusion-based points-to analysis from the main
// packages and returns its call graph.
func (info *Info) pointerCallGraph(tests bool) (*pointer.Result, error) {
	if tests {
		return nil, errors.New("pointer analysis needs a main function, not tests")
	}
	mains, err := MainPkgs(info.Prog, false)
	if err != nil {
		return nil, err
	}
	return pointer.Analyze(&pointer.Config{
		Mains:          mains,
		Log:            info.PtaLog,
		BuildCallGraph: true,
	})
}
