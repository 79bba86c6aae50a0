package block

import "github.com/nickng/loopopt/ir"

// TraverseEdges takes a Func and apply visit to each edge reachable from the
// entry, in breadth-first order. The entry is visited with from == ir.NoBlock.
func TraverseEdges(f *ir.Func, visit func(from, to ir.BlockID)) {
	TraverseFrom(f, f.Entry, nil, visit)
}

// TraverseFrom is TraverseEdges starting at block start. Blocks for which
// stop returns true are visited but their successors are not followed.
func TraverseFrom(f *ir.Func, start ir.BlockID, stop func(ir.BlockID) bool, visit func(from, to ir.BlockID)) {
	if f.Block(start) == nil {
		return
	}
	type Edge struct {
		From, To ir.BlockID
	}
	seen := make(map[ir.BlockID]bool)
	queue := []Edge{{From: ir.NoBlock, To: start}}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if seen[e.To] {
			continue
		}
		seen[e.To] = true
		visit(e.From, e.To)
		if stop != nil && stop(e.To) {
			continue
		}
		for _, succ := range f.Succs(e.To) {
			queue = append(queue, Edge{From: e.To, To: succ})
		}
	}
}

// Reachable reports whether to can be reached from from without passing
// through any block in avoid. from itself is never avoided.
func Reachable(f *ir.Func, from, to ir.BlockID, avoid map[ir.BlockID]bool) bool {
	found := false
	TraverseFrom(f, from,
		func(b ir.BlockID) bool { return b != from && avoid[b] },
		func(_, b ir.BlockID) {
			if b == to && (b == from || !avoid[b]) {
				found = true
			}
		})
	return found
}
