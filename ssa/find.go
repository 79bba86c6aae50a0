package ssa

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// FindFunc parses path (e.g. "github.com/nickng/loopopt/ssa".MainPkgs, or
// just fill for a function of a source package) and returns the Function
// body in SSA IR. A qualifier matches a package path or a package name.
func (info *Info) FindFunc(path string) (*ssa.Function, error) {
	pkgPath, fnName := parseFuncPath(path)
	candidates := info.SourceFuncs()
	if pkgPath != "" {
		candidates = nil
		for fn := range ssautil.AllFunctions(info.Prog) {
			candidates = append(candidates, fn)
		}
		sortFuncs(candidates)
	}
	for _, fn := range candidates {
		if fn.Pkg == nil || fn.Name() != fnName {
			continue
		}
		if pkgPath == "" || fn.Pkg.Pkg.Path() == pkgPath || fn.Pkg.Pkg.Name() == pkgPath {
			return fn, nil
		}
	}
	return nil, errors.Wrap(ErrFuncNotFound, path)
}

// parseFuncPath splits path to package and function segments.
// Does not handle complex functions with receivers.
func parseFuncPath(path string) (pkgPath, fnName string) {
	if len(path) < 1 {
		return "", ""
	}
	switch path[0] {
	case '(':
		regex := regexp.MustCompile(`\((?P<pkg>[^)]+)\).(?P<fn>.+)`)
		submatches := regex.FindStringSubmatch(path)
		if len(submatches) >= 3 {
			return submatches[1], submatches[2]
		}
	case '"':
		regex := regexp.MustCompile(`"(?P<pkg>[^)]+)".(?P<fn>.+)`)
		submatches := regex.FindStringSubmatch(path)
		if len(submatches) >= 3 {
			return submatches[1], submatches[2]
		}
	default:
		if i := strings.LastIndex(path, "."); i > 0 {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}
