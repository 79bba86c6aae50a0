package licm

import (
	"github.com/nickng/loopopt/dom"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// Reason a candidate is not legal to move.
type Reason int

const (
	Legal Reason = iota
	NotInLoop
	MultipleDefs // reaches an in-loop phi alongside another in-loop value
	LiveAtExit   // does not dominate an exit it is live at
	MayTrap      // division without a known nonzero divisor
	NoExits
)

var reasons = [...]string{"legal", "not in loop", "multiple definitions", "live at undominated exit", "may trap", "loop has no exits"}

func (r Reason) String() string { return reasons[r] }

// FilterLegal removes from s every candidate that cannot be moved to the
// preheader of l. Dropped candidates are reported to drop, which may be nil.
// If l has no exit blocks every candidate is dropped.
func FilterLegal(f *ir.Func, l *loop.Loop, dt *dom.Tree, s *Candidates, drop func(ir.ID, Reason)) {
	report := func(id ir.ID, r Reason) {
		s.Remove(id)
		if drop != nil {
			drop(id, r)
		}
	}
	exits := l.ExitBlocks()
	if len(exits) == 0 {
		for _, id := range s.IDs() {
			report(id, NoExits)
		}
		return
	}
	for _, id := range s.IDs() {
		if r := legality(f, l, dt, exits, id); r != Legal {
			report(id, r)
		}
	}
}

func legality(f *ir.Func, l *loop.Loop, dt *dom.Tree, exits []ir.BlockID, id ir.ID) Reason {
	in := f.Instr(id)
	if in == nil || !l.Contains(in.Block()) {
		return NotInLoop
	}
	if in.Op.CanTrap() {
		if d := in.Arg(1); !d.IsConst() || d.Const == 0 {
			return MayTrap
		}
	}
	if hasMultipleDefs(f, l, id) {
		return MultipleDefs
	}
	for _, e := range exits {
		if !dt.Dominates(in.Block(), e) {
			if !deadOutside(f, l, id) {
				return LiveAtExit
			}
			break
		}
	}
	return Legal
}

// hasMultipleDefs reports whether id flows into a phi of l that also has an
// incoming value other than id from a block of l.
func hasMultipleDefs(f *ir.Func, l *loop.Loop, id ir.ID) bool {
	self := ir.Ref(id)
	for _, u := range f.Uses(id) {
		phi := f.Instr(u)
		if phi.Op != ir.OpPhi || !l.Contains(phi.Block()) {
			continue
		}
		for n, b := range phi.Incoming() {
			if l.Contains(b) && phi.Arg(n) != self {
				return true
			}
		}
	}
	return false
}

// deadOutside reports whether no use of id lies outside l, following uses
// through phis of l.
func deadOutside(f *ir.Func, l *loop.Loop, id ir.ID) bool {
	seen := map[ir.ID]bool{id: true}
	work := []ir.ID{id}
	for len(work) > 0 {
		x := work[len(work)-1]
		work = work[:len(work)-1]
		for _, u := range f.Uses(x) {
			user := f.Instr(u)
			if !l.Contains(user.Block()) {
				return false
			}
			if user.Op == ir.OpPhi && !seen[u] {
				seen[u] = true
				work = append(work, u)
			}
		}
	}
	return true
}
