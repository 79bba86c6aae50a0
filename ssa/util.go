package ssa

import (
	"strings"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// MainPkgs returns the main packages in the program. With tests, it returns
// the packages declaring test functions instead.
func MainPkgs(prog *ssa.Program, tests bool) ([]*ssa.Package, error) {
	pkgs := prog.AllPackages()

	var mains []*ssa.Package
	if tests {
		for _, pkg := range pkgs {
			if len(TestFuncs(pkg)) > 0 {
				mains = append(mains, pkg)
			}
		}
		if mains == nil {
			return nil, ErrNoTestMainPkgs
		}
		return mains, nil
	}

	mains = append(mains, ssautil.MainPackages(pkgs)...)
	if len(mains) == 0 {
		return nil, ErrNoMainPkgs
	}
	return mains, nil
}

// TestFuncs returns the functions of pkg named Test* taking one argument.
func TestFuncs(pkg *ssa.Package) []*ssa.Function {
	var fns []*ssa.Function
	for name, mem := range pkg.Members {
		fn, ok := mem.(*ssa.Function)
		if ok && strings.HasPrefix(name, "Test") && fn.Signature.Params().Len() == 1 {
			fns = append(fns, fn)
		}
	}
	sortFuncs(fns)
	return fns
}

// SourceFuncs returns the functions with a body declared in the packages
// created from source (not imported), ordered by position. Methods and
// anonymous functions are included.
func (info *Info) SourceFuncs() []*ssa.Function {
	created := make(map[*ssa.Package]bool)
	for _, pkgInfo := range info.LProg.Created {
		if pkg := info.Prog.Package(pkgInfo.Pkg); pkg != nil {
			created[pkg] = true
		}
	}
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(info.Prog) {
		if created[fn.Pkg] && fn.Blocks != nil && fn.Synthetic == "" {
			fns = append(fns, fn)
		}
	}
	sortFuncs(fns)
	return fns
}
