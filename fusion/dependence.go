package fusion

import (
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
	"github.com/nickng/loopopt/scev"
	"github.com/pkg/errors"
)

var (
	ErrTripCount        = errors.New("trip count not computable")
	ErrTripMismatch     = errors.New("loops iterate a different number of times")
	ErrNegativeDistance = errors.New("negative dependence distance")
	ErrUnknownDistance  = errors.New("dependence distance not computable")
)

// SameTripCount checks that l1 and l2 have structurally equal backedge-taken
// counts.
func SameTripCount(sc *scev.Analysis, l1, l2 *loop.Loop) error {
	n1, n2 := sc.BackedgeTakenCount(l1), sc.BackedgeTakenCount(l2)
	if scev.IsCouldNotCompute(n1) || scev.IsCouldNotCompute(n2) {
		return errors.Wrapf(ErrTripCount, "%s: %s, %s: %s", l1.Header, n1, l2.Header, n2)
	}
	if !scev.Equal(n1, n2) {
		return errors.Wrapf(ErrTripMismatch, "%s vs %s", n1, n2)
	}
	return nil
}

// access is a load or store.
type access struct {
	id    ir.ID
	store bool
	base  ir.Value
}

func accesses(f *ir.Func, l *loop.Loop) []access {
	var as []access
	for _, b := range l.Blocks() {
		for _, id := range f.Instrs(b) {
			in := f.Instr(id)
			if in.Op != ir.OpLoad && in.Op != ir.OpStore {
				continue
			}
			as = append(as, access{id: id, store: in.Op == ir.OpStore, base: baseOf(f, in.Arg(0))})
		}
	}
	return as
}

// baseOf is the array an address points into.
func baseOf(f *ir.Func, addr ir.Value) ir.Value {
	if addr.IsInstr() {
		if in := f.Instr(addr.ID); in.Op == ir.OpAddr {
			return in.Arg(0)
		}
	}
	return addr
}

// NoNegativeDistance checks every pair of accesses to the same array, one in
// each loop and at least one a store. The distance is the address in l1
// minus the address in l2, each at the scope of its loop; the pair is
// rejected when it is known negative or evaluates to a negative constant.
// A distance that cannot be evaluated rejects the pair only if conservative.
func NoNegativeDistance(f *ir.Func, sc *scev.Analysis, l1, l2 *loop.Loop, conservative bool) error {
	as2 := accesses(f, l2)
	for _, a1 := range accesses(f, l1) {
		for _, a2 := range as2 {
			if !a1.store && !a2.store {
				continue
			}
			if a1.base != a2.base {
				continue
			}
			d := scev.Minus(sc.AddressAt(a1.id, l1), sc.AddressAt(a2.id, l2))
			if scev.IsKnownNegative(d) {
				return errors.Wrapf(ErrNegativeDistance, "%s and %s: %s", a1.id, a2.id, d)
			}
			v, ok := scev.Evaluate(d)
			switch {
			case ok && v < 0:
				return errors.Wrapf(ErrNegativeDistance, "%s and %s: %s = %d", a1.id, a2.id, d, v)
			case !ok && conservative:
				return errors.Wrapf(ErrUnknownDistance, "%s and %s: %s", a1.id, a2.id, d)
			}
		}
	}
	return nil
}
