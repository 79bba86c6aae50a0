package fusion

import (
	"github.com/nickng/loopopt/block"
	"github.com/nickng/loopopt/dom"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
	"github.com/pkg/errors"
)

var (
	ErrNotAdjacent   = errors.New("loops are not adjacent")
	ErrNotEquivalent = errors.New("loops are not control-flow equivalent")
)

// Adjacent checks that l2 starts right where l1 ends.
//
// Unguarded loops are adjacent when the only exit block of l1 is the
// preheader of l2 and holds nothing but its terminator. Guarded loops are
// adjacent when their guards test the same condition and the branch of the
// first guard that skips l1 leads to the second guard through comparisons
// and branches only.
func Adjacent(f *ir.Func, l1, l2 *loop.Loop) error {
	g1, g2 := l1.Guard != ir.NoBlock, l2.Guard != ir.NoBlock
	switch {
	case g1 != g2:
		return errors.Wrap(ErrNotAdjacent, "only one loop is guarded")
	case g1:
		return adjacentGuarded(f, l1, l2)
	}
	exit := l1.ExitBlock()
	if exit == ir.NoBlock {
		return errors.Wrapf(ErrNotAdjacent, "%s has %d exit blocks", l1.Header, len(l1.ExitBlocks()))
	}
	if exit != l2.Preheader {
		return errors.Wrapf(ErrNotAdjacent, "%s exits to %s, not to the preheader of %s", l1.Header, exit, l2.Header)
	}
	if n := len(f.Instrs(exit)); n != 1 {
		return errors.Wrapf(ErrNotAdjacent, "%d instructions between the loops", n-1)
	}
	return nil
}

func adjacentGuarded(f *ir.Func, l1, l2 *loop.Loop) error {
	if !sameCondition(f, l1.Guard, l2.Guard) {
		return errors.Wrap(ErrNotAdjacent, "guards test different conditions")
	}
	skip := ir.NoBlock
	for _, s := range f.Succs(l1.Guard) {
		if s != l1.Preheader {
			skip = s
		}
	}
	if !onlyTests(f, l2.Guard) {
		return errors.Wrapf(ErrNotAdjacent, "guard %s does more than branch", l2.Guard)
	}
	if skip == ir.NoBlock || !block.Reachable(f, skip, l2.Guard, nil) {
		return errors.Wrapf(ErrNotAdjacent, "guard %s does not lead to guard %s", l1.Guard, l2.Guard)
	}
	// Every path from the skip branch must end at the second guard.
	ok := true
	block.TraverseFrom(f, skip,
		func(b ir.BlockID) bool { return b == l2.Guard },
		func(_, b ir.BlockID) {
			if b == l2.Guard {
				return
			}
			if l1.Contains(b) || len(f.Succs(b)) == 0 || !onlyTests(f, b) {
				ok = false
			}
		})
	if !ok {
		return errors.Wrapf(ErrNotAdjacent, "code between guard %s and guard %s", l1.Guard, l2.Guard)
	}
	return nil
}

// sameCondition reports whether the branches ending a and b test the same
// value or identical comparisons.
func sameCondition(f *ir.Func, a, b ir.BlockID) bool {
	ta, tb := f.Instr(f.Terminator(a)), f.Instr(f.Terminator(b))
	if ta == nil || tb == nil || ta.Op != ir.OpIf || tb.Op != ir.OpIf {
		return false
	}
	ca, cb := ta.Arg(0), tb.Arg(0)
	if ca == cb {
		return true
	}
	if !ca.IsInstr() || !cb.IsInstr() {
		return false
	}
	x, y := f.Instr(ca.ID), f.Instr(cb.ID)
	return x.Op == ir.OpCmp && y.Op == ir.OpCmp && x.Pred == y.Pred &&
		x.Arg(0) == y.Arg(0) && x.Arg(1) == y.Arg(1)
}

func onlyTests(f *ir.Func, b ir.BlockID) bool {
	for _, id := range f.Instrs(b) {
		if op := f.Instr(id).Op; op != ir.OpCmp && !op.IsTerminator() {
			return false
		}
	}
	return true
}

// entryBlock is the guard of a guarded loop, its preheader otherwise.
func entryBlock(l *loop.Loop) ir.BlockID {
	if l.Guard != ir.NoBlock {
		return l.Guard
	}
	return l.Preheader
}

// Equivalent checks that every execution reaching one loop reaches the
// other: the entry of l1 dominates the entry of l2, which post-dominates it.
func Equivalent(dt, pdt *dom.Tree, l1, l2 *loop.Loop) error {
	e1, e2 := entryBlock(l1), entryBlock(l2)
	if e1 == ir.NoBlock || e2 == ir.NoBlock {
		return errors.Wrap(ErrNotEquivalent, "missing preheader")
	}
	if !dt.Dominates(e1, e2) {
		return errors.Wrapf(ErrNotEquivalent, "%s does not dominate %s", e1, e2)
	}
	if !pdt.Dominates(e2, e1) {
		return errors.Wrapf(ErrNotEquivalent, "%s does not post-dominate %s", e2, e1)
	}
	return nil
}
