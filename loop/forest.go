package loop

import (
	"sort"

	"github.com/nickng/loopopt/dom"
	"github.com/nickng/loopopt/ir"
)

// Forest is the set of natural loops of a function.
type Forest struct {
	f         *ir.Func
	version   uint64
	top       []*Loop
	byHeader  map[ir.BlockID]*Loop
	innermost map[ir.BlockID]*Loop
}

// Find builds the loop forest of f. dt must be the dominator tree of f.
func Find(f *ir.Func, dt *dom.Tree) *Forest {
	fr := &Forest{
		f:         f,
		version:   f.CFGVersion(),
		byHeader:  make(map[ir.BlockID]*Loop),
		innermost: make(map[ir.BlockID]*Loop),
	}
	layout := make(map[ir.BlockID]int)
	for i, b := range f.Blocks() {
		layout[b] = i
	}

	var loops []*Loop
	for _, h := range dt.Preorder() {
		var backedges []ir.BlockID
		for _, p := range f.Preds(h) {
			if dt.Dominates(h, p) {
				backedges = append(backedges, p)
			}
		}
		if len(backedges) == 0 {
			continue
		}
		l := &Loop{
			Header:    h,
			Latch:     ir.NoBlock,
			Preheader: ir.NoBlock,
			Guard:     ir.NoBlock,
			Induction: ir.NoID,
			f:         f,
			blocks:    map[ir.BlockID]bool{h: true},
		}
		// Walk backwards from the back-edge sources up to the header.
		work := append([]ir.BlockID(nil), backedges...)
		for len(work) > 0 {
			b := work[len(work)-1]
			work = work[:len(work)-1]
			if l.blocks[b] || !dt.Dominates(h, b) {
				continue
			}
			l.blocks[b] = true
			work = append(work, f.Preds(b)...)
		}
		if len(dedupBlocks(backedges)) == 1 {
			l.Latch = backedges[0]
		}
		loops = append(loops, l)
		fr.byHeader[h] = l
	}

	// Nesting: the parent is the smallest other loop containing the header.
	for _, l := range loops {
		for _, m := range loops {
			if m == l || !m.blocks[l.Header] {
				continue
			}
			if l.Parent == nil || len(m.blocks) < len(l.Parent.blocks) {
				l.Parent = m
			}
		}
	}
	for _, l := range loops {
		if l.Parent == nil {
			fr.top = append(fr.top, l)
		} else {
			l.Parent.Children = append(l.Parent.Children, l)
		}
	}
	byLayout := func(ls []*Loop) {
		sort.SliceStable(ls, func(i, j int) bool { return layout[ls[i].Header] < layout[ls[j].Header] })
	}
	byLayout(fr.top)
	for _, l := range loops {
		byLayout(l.Children)
	}

	for _, l := range fr.Preorder() {
		if l.Parent == nil {
			l.Depth = 1
		} else {
			l.Depth = l.Parent.Depth + 1
		}
		for b := range l.blocks {
			// Preorder visits outer loops first, so inner loops win.
			fr.innermost[b] = l
		}
		fr.describe(l, layout)
	}
	return fr
}

func (fr *Forest) describe(l *Loop, layout map[ir.BlockID]int) {
	f := fr.f
	for b := range l.blocks {
		l.order = append(l.order, b)
	}
	sort.Slice(l.order, func(i, j int) bool { return layout[l.order[i]] < layout[l.order[j]] })

	seenExit := make(map[ir.BlockID]bool)
	for _, b := range l.order {
		leaves := false
		for _, s := range f.Succs(b) {
			if l.blocks[s] {
				continue
			}
			leaves = true
			if !seenExit[s] {
				seenExit[s] = true
				l.exits = append(l.exits, s)
			}
		}
		if leaves {
			l.exiting = append(l.exiting, b)
		}
	}

	var outside []ir.BlockID
	for _, p := range f.Preds(l.Header) {
		if !l.blocks[p] {
			outside = append(outside, p)
		}
	}
	if outside = dedupBlocks(outside); len(outside) == 1 && len(f.Succs(outside[0])) == 1 {
		l.Preheader = outside[0]
	}
	l.Guard = fr.guard(l)
	l.Induction = fr.induction(l)
}

// guard finds the conditional branch that either enters the loop through the
// preheader or skips to the block the loop exits to (or its only successor).
func (fr *Forest) guard(l *Loop) ir.BlockID {
	f := fr.f
	if l.Preheader == ir.NoBlock {
		return ir.NoBlock
	}
	preds := dedupBlocks(f.Preds(l.Preheader))
	if len(preds) != 1 {
		return ir.NoBlock
	}
	g := preds[0]
	t := f.Terminator(g)
	if t == ir.NoID || f.Instr(t).Op != ir.OpIf {
		return ir.NoBlock
	}
	succs := f.Succs(g)
	other := succs[0]
	if other == l.Preheader {
		other = succs[1]
	}
	if other == l.Preheader {
		return ir.NoBlock
	}
	exit := l.ExitBlock()
	if exit == ir.NoBlock {
		return ir.NoBlock
	}
	if other == exit {
		return g
	}
	if ss := f.Succs(exit); len(ss) == 1 && ss[0] == other {
		return g
	}
	return ir.NoBlock
}

// induction finds the first header phi whose latch value is the phi plus or
// minus a constant.
func (fr *Forest) induction(l *Loop) ir.ID {
	f := fr.f
	if l.Latch == ir.NoBlock {
		return ir.NoID
	}
	for _, phi := range f.Phis(l.Header) {
		next, ok := f.Instr(phi).IncomingFor(l.Latch)
		if !ok || !next.IsInstr() {
			continue
		}
		step := f.Instr(next.ID)
		if step == nil || (step.Op != ir.OpAdd && step.Op != ir.OpSub) {
			continue
		}
		x, y := step.Arg(0), step.Arg(1)
		self := ir.Ref(phi)
		if (x == self && y.IsConst()) || (step.Op == ir.OpAdd && y == self && x.IsConst()) {
			return phi
		}
	}
	return ir.NoID
}

// TopLevel returns the outermost loops in program order.
func (fr *Forest) TopLevel() []*Loop { return append([]*Loop(nil), fr.top...) }

// Preorder returns all loops, each before its children, siblings in program
// order.
func (fr *Forest) Preorder() []*Loop {
	var ls []*Loop
	s := NewStack()
	for i := len(fr.top) - 1; i >= 0; i-- {
		s.Push(fr.top[i])
	}
	for !s.IsEmpty() {
		l, _ := s.Pop()
		ls = append(ls, l)
		for i := len(l.Children) - 1; i >= 0; i-- {
			s.Push(l.Children[i])
		}
	}
	return ls
}

// ByHeader returns the loop headed by h, or nil.
func (fr *Forest) ByHeader(h ir.BlockID) *Loop { return fr.byHeader[h] }

// LoopFor returns the innermost loop containing b, or nil.
func (fr *Forest) LoopFor(b ir.BlockID) *Loop { return fr.innermost[b] }

// Version is the CFG version of the function the forest was computed for.
func (fr *Forest) Version() uint64 { return fr.version }

// Len is the number of loops.
func (fr *Forest) Len() int { return len(fr.byHeader) }

func dedupBlocks(bs []ir.BlockID) []ir.BlockID {
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
