package ssa

import (
	"io"

	"golang.org/x/tools/go/ssa"
)

// WriteTo writes the functions declared in the source packages to w in human
// readable SSA IR instruction format.
func (info *Info) WriteTo(w io.Writer) (int64, error) {
	return writeFuncs(w, info.SourceFuncs())
}

// WriteFunc writes the function found by FindFunc(path) to w.
func (info *Info) WriteFunc(w io.Writer, path string) (int64, error) {
	fn, err := info.FindFunc(path)
	if err != nil {
		return 0, err
	}
	return writeFuncs(w, []*ssa.Function{fn})
}

func writeFuncs(w io.Writer, fns []*ssa.Function) (int64, error) {
	var n int64
	for _, f := range fns {
		written, err := f.WriteTo(w)
		n += written
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
