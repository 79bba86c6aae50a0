package licm

import (
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// Hoist moves every candidate of s to the end of the preheader of l,
// operands first, and empties s. A candidate with an operand that is neither
// outside l nor movable stays where it is. It returns the moved
// instructions in their new order.
func Hoist(f *ir.Func, l *loop.Loop, s *Candidates) []ir.ID {
	if l.Preheader == ir.NoBlock {
		s.Clear()
		return nil
	}
	h := &hoister{f: f, l: l, s: s, pos: f.Terminator(l.Preheader)}
	for s.Len() > 0 {
		h.move(s.Front())
	}
	return h.moved
}

type hoister struct {
	f     *ir.Func
	l     *loop.Loop
	s     *Candidates
	pos   ir.ID
	moved []ir.ID
}

func (h *hoister) move(id ir.ID) bool {
	h.s.Remove(id)
	for _, arg := range h.f.Instr(id).Args() {
		if h.movable(arg) {
			continue
		}
		if !arg.IsInstr() || !h.s.Contains(arg.ID) || !h.move(arg.ID) {
			return false
		}
	}
	h.f.MoveBefore(id, h.pos)
	h.moved = append(h.moved, id)
	return true
}

// movable reports whether v is available at the end of the preheader.
func (h *hoister) movable(v ir.Value) bool {
	return v.IsConst() || v.IsParam() || (v.IsInstr() && !h.l.Contains(h.f.BlockOf(v.ID)))
}
