package interp

import (
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/store"
	"github.com/pkg/errors"
)

// ErrDiverged is the cause of the error returned by Compare when the two
// functions behave differently.
var ErrDiverged = errors.New("functions diverged")

// Compare runs f and g on separate copies of mem with the same arguments and
// reports the first observable difference. Neither run may fail.
func Compare(f, g *ir.Func, args []int64, mem *store.Store) error {
	m1, m2 := mem.Clone(), mem.Clone()
	r1, err := Run(f, args, m1, Options{})
	if err != nil {
		return errors.Wrapf(err, "running %s", f.Name)
	}
	r2, err := Run(g, args, m2, Options{})
	if err != nil {
		return errors.Wrapf(err, "running transformed %s", g.Name)
	}
	if !equalInts(r1.Returns, r2.Returns) {
		return errors.Wrapf(ErrDiverged, "returns %v vs %v", r1.Returns, r2.Returns)
	}
	if len(r1.Calls) != len(r2.Calls) {
		return errors.Wrapf(ErrDiverged, "%d calls vs %d calls", len(r1.Calls), len(r2.Calls))
	}
	for i := range r1.Calls {
		if r1.Calls[i].Callee != r2.Calls[i].Callee || !equalInts(r1.Calls[i].Args, r2.Calls[i].Args) {
			return errors.Wrapf(ErrDiverged, "call %d: %v vs %v", i, r1.Calls[i], r2.Calls[i])
		}
	}
	if !m1.Equal(m2) {
		return errors.Wrapf(ErrDiverged, "memory\n%s\nvs\n%s", m1, m2)
	}
	return nil
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
