package fusion

import (
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
	"github.com/nickng/loopopt/scev"
	"github.com/pkg/errors"
)

var (
	ErrGuarded = errors.New("fusing guarded loops is not supported")
	ErrShape   = errors.New("unsupported loop shape")
)

// Plan is a fusion of two loops whose shape has been checked. Apply
// performs it.
type Plan struct {
	f *ir.Func

	phi1, phi2     ir.ID
	h1, h2         ir.BlockID
	latch1, latch2 ir.BlockID
	ph2            ir.BlockID
	body2          ir.BlockID // first block of the body of l2, or latch2
	exit2          ir.BlockID

	rotated bool // both loops exit from their latch
}

// NewPlan checks that l2 can be folded into l1 and records the blocks
// involved. Nothing is modified.
//
// Both loops must exit from their header, or both from their latch. In the
// first case l2 must consist of a header holding only its induction phi and
// exit test, a body, and a latch holding only the increment. In the second
// the only phi of the header of l2 is its induction phi and its latch holds
// only the increment and exit test.
func NewPlan(f *ir.Func, sc *scev.Analysis, l1, l2 *loop.Loop) (*Plan, error) {
	if l1.Guard != ir.NoBlock || l2.Guard != ir.NoBlock {
		return nil, ErrGuarded
	}
	for _, l := range []*loop.Loop{l1, l2} {
		switch {
		case l.Induction == ir.NoID:
			return nil, errors.Wrapf(ErrShape, "%s has no induction phi", l.Header)
		case l.Preheader == ir.NoBlock, l.Latch == ir.NoBlock, l.Latch == l.Header:
			return nil, errors.Wrapf(ErrShape, "%s is not in normal form", l.Header)
		case l.ExitBlock() == ir.NoBlock:
			return nil, errors.Wrapf(ErrShape, "%s has more than one exit", l.Header)
		case l.ExitingBlock() != l.Header && l.ExitingBlock() != l.Latch:
			return nil, errors.Wrapf(ErrShape, "%s does not exit from its header or latch only", l.Header)
		}
	}
	if (l1.ExitingBlock() == l1.Latch) != (l2.ExitingBlock() == l2.Latch) {
		return nil, errors.Wrap(ErrShape, "loops exit from different blocks")
	}
	p := &Plan{
		f:      f,
		phi1:   l1.Induction,
		phi2:   l2.Induction,
		h1:     l1.Header,
		h2:     l2.Header,
		latch1: l1.Latch,
		latch2: l2.Latch,
		ph2:    l2.Preheader,
		exit2:  l2.ExitBlock(),

		rotated: l1.ExitingBlock() == l1.Latch,
	}
	if l1.ExitBlock() != p.ph2 {
		return nil, errors.Wrap(ErrShape, "first loop does not exit to the second")
	}

	r1, ok1 := sc.Of(ir.Ref(p.phi1)).(*scev.AddRec)
	r2, ok2 := sc.Of(ir.Ref(p.phi2)).(*scev.AddRec)
	if !ok1 || !ok2 || !scev.Equal(r1.Start, r2.Start) || !scev.Equal(r1.Step, r2.Step) {
		return nil, errors.Wrap(ErrShape, "induction variables differ")
	}

	if p.rotated {
		if err := p.checkRotated(l1, l2); err != nil {
			return nil, err
		}
		return p, nil
	}

	for _, s := range f.Succs(p.h2) {
		if l2.Contains(s) {
			p.body2 = s
		}
	}
	if err := p.checkSecond(l2); err != nil {
		return nil, err
	}
	if err := p.checkFirst(l1, l2); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plan) checkSecond(l2 *loop.Loop) error {
	f := p.f
	h2 := f.Instrs(p.h2)
	if len(h2) != 3 || h2[0] != p.phi2 || f.Instr(h2[1]).Op != ir.OpCmp {
		return errors.Wrapf(ErrShape, "header %s does more than test the induction variable", p.h2)
	}
	if uses := f.Uses(h2[1]); len(uses) != 1 || uses[0] != h2[2] {
		return errors.Wrapf(ErrShape, "exit test of %s is used elsewhere", p.h2)
	}
	next, _ := f.Instr(p.phi2).IncomingFor(p.latch2)
	if latch := f.Instrs(p.latch2); len(latch) != 2 || !next.IsInstr() || latch[0] != next.ID {
		return errors.Wrapf(ErrShape, "latch %s does more than increment", p.latch2)
	}
	if uses := f.Uses(next.ID); len(uses) != 1 || uses[0] != p.phi2 {
		return errors.Wrapf(ErrShape, "increment in %s is used elsewhere", p.latch2)
	}
	if p.body2 != p.latch2 {
		if len(f.Preds(p.body2)) != 1 || len(f.Phis(p.body2)) != 0 {
			return errors.Wrapf(ErrShape, "body entry %s is a join", p.body2)
		}
	}
	for _, b := range l2.Blocks() {
		if b == p.h2 {
			continue
		}
		if v, ok := usedOutside(f, b, l2.Contains); ok {
			return errors.Wrapf(ErrShape, "%s escapes the second loop", v)
		}
	}
	return nil
}

func (p *Plan) checkFirst(l1, l2 *loop.Loop) error {
	f := p.f
	if len(f.Phis(p.latch1)) > 0 {
		return errors.Wrapf(ErrShape, "latch %s has phis", p.latch1)
	}
	for _, id := range f.Instrs(p.latch1) {
		switch f.Instr(id).Op {
		case ir.OpLoad, ir.OpStore, ir.OpCall:
			return errors.Wrapf(ErrShape, "latch %s accesses memory", p.latch1)
		}
	}
	notInL2 := func(b ir.BlockID) bool { return !l2.Contains(b) }
	for _, b := range l1.Blocks() {
		in := notInL2
		if b != p.h1 {
			in = l1.Contains
		}
		if v, ok := usedOutside(f, b, in); ok {
			return errors.Wrapf(ErrShape, "%s of the first loop is used later", v)
		}
	}
	return nil
}

// checkRotated checks a pair of loops exiting from their latch. The latch of
// l2 is dropped, so it may only hold the increment and exit test; the latch
// of l1 runs after the body of l2 once fused, so it may not touch memory.
func (p *Plan) checkRotated(l1, l2 *loop.Loop) error {
	f := p.f
	if phis := f.Phis(p.h2); len(phis) != 1 {
		return errors.Wrapf(ErrShape, "header %s has %d phis", p.h2, len(phis))
	}
	if len(f.Phis(p.latch2)) > 0 {
		return errors.Wrapf(ErrShape, "latch %s has phis", p.latch2)
	}
	next, _ := f.Instr(p.phi2).IncomingFor(p.latch2)
	latch := f.Instrs(p.latch2)
	if len(latch) != 3 || !next.IsInstr() || latch[0] != next.ID || f.Instr(latch[1]).Op != ir.OpCmp {
		return errors.Wrapf(ErrShape, "latch %s does more than increment and test", p.latch2)
	}
	for _, u := range f.Uses(next.ID) {
		if u != p.phi2 && u != latch[1] {
			return errors.Wrapf(ErrShape, "increment in %s is used elsewhere", p.latch2)
		}
	}
	if uses := f.Uses(latch[1]); len(uses) != 1 || uses[0] != latch[2] {
		return errors.Wrapf(ErrShape, "exit test of %s is used elsewhere", p.latch2)
	}
	for _, b := range l2.Blocks() {
		if b == p.latch2 {
			continue
		}
		for _, id := range f.Instrs(b) {
			if id == p.phi2 {
				continue
			}
			for _, u := range f.Uses(id) {
				if !l2.Contains(f.BlockOf(u)) {
					return errors.Wrapf(ErrShape, "%s escapes the second loop", id)
				}
			}
		}
	}

	if len(f.Phis(p.latch1)) > 0 {
		return errors.Wrapf(ErrShape, "latch %s has phis", p.latch1)
	}
	for _, id := range f.Instrs(p.latch1) {
		switch f.Instr(id).Op {
		case ir.OpLoad, ir.OpStore, ir.OpCall:
			return errors.Wrapf(ErrShape, "latch %s accesses memory", p.latch1)
		}
	}
	notInL2 := func(b ir.BlockID) bool { return !l2.Contains(b) }
	for _, b := range l1.Blocks() {
		if v, ok := usedOutside(f, b, notInL2); ok {
			return errors.Wrapf(ErrShape, "%s of the first loop is used in the second", v)
		}
	}
	return nil
}

// usedOutside returns a value of b used in a block for which in is false.
func usedOutside(f *ir.Func, b ir.BlockID, in func(ir.BlockID) bool) (ir.ID, bool) {
	for _, id := range f.Instrs(b) {
		for _, u := range f.Uses(id) {
			if !in(f.BlockOf(u)) {
				return id, true
			}
		}
	}
	return ir.NoID, false
}

// Apply fuses the loops: the body of the second loop runs after the body of
// the first in each iteration, on the induction variable of the first. The
// preheader and latch of the second loop are erased, and so is its header
// unless the loops exit from their latch.
func (p *Plan) Apply() {
	f := p.f
	f.ReplaceAllUses(p.phi2, ir.Ref(p.phi1))
	f.EraseInstr(p.phi2)
	if p.rotated {
		p.applyRotated()
		return
	}

	f.ReplaceSucc(p.h1, p.ph2, p.exit2)
	for _, phi := range f.Phis(p.exit2) {
		f.SetIncomingBlock(phi, p.h2, p.h1)
	}
	if p.body2 != p.latch2 {
		for _, b := range dedup(f.Preds(p.latch1)) {
			f.ReplaceSucc(b, p.latch1, p.body2)
		}
		for _, b := range dedup(f.Preds(p.latch2)) {
			if b != p.h2 {
				f.ReplaceSucc(b, p.latch2, p.latch1)
			}
		}
	}
	f.EraseBlocks(p.ph2, p.h2, p.latch2)
}

// applyRotated threads the body of l1 into the header of l2 and the body of
// l2 into the latch of l1, which becomes the only exit test.
func (p *Plan) applyRotated() {
	f := p.f
	preds1, preds2 := dedup(f.Preds(p.latch1)), dedup(f.Preds(p.latch2))
	for _, b := range preds1 {
		f.ReplaceSucc(b, p.latch1, p.h2)
	}
	for _, b := range preds2 {
		f.ReplaceSucc(b, p.latch2, p.latch1)
	}
	f.ReplaceSucc(p.latch1, p.ph2, p.exit2)
	for _, phi := range f.Phis(p.exit2) {
		f.SetIncomingBlock(phi, p.latch2, p.latch1)
	}
	f.EraseBlocks(p.ph2, p.latch2)
}

func dedup(bs []ir.BlockID) []ir.BlockID {
	seen := make(map[ir.BlockID]bool)
	var out []ir.BlockID
	for _, b := range bs {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}
