package licm

import (
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// FindInvariants adds to s the binary instructions of l whose operands are
// all invariant in l, visiting blocks in layout order.
//
// An operand is invariant when it is a constant, a parameter, a candidate
// already, defined outside l, or itself an invariant binary instruction of
// l. Any other instruction of l is never invariant.
func FindInvariants(f *ir.Func, l *loop.Loop, s *Candidates) {
	for _, b := range l.Blocks() {
		for _, id := range f.Instrs(b) {
			if in := f.Instr(id); in.Op.IsBinary() && invariantInstr(f, l, in, s) {
				s.Add(id)
			}
		}
	}
}

func invariantInstr(f *ir.Func, l *loop.Loop, in *ir.Instr, s *Candidates) bool {
	for _, arg := range in.Args() {
		if !invariantOperand(f, l, arg, s) {
			return false
		}
	}
	return true
}

// Operand chains of binary instructions are acyclic: data cycles in a loop
// pass through a phi, which is never invariant.
func invariantOperand(f *ir.Func, l *loop.Loop, v ir.Value, s *Candidates) bool {
	switch {
	case v.IsConst(), v.IsParam():
		return true
	case !v.IsInstr():
		return false
	}
	switch in := f.Instr(v.ID); {
	case s.Contains(v.ID):
		return true
	case !l.Contains(in.Block()):
		return true
	case !in.Op.IsBinary():
		return false
	default:
		return invariantInstr(f, l, in, s)
	}
}
