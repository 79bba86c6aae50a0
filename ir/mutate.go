package ir

import "fmt"

// ReplaceAllUses makes every user of old refer to v instead.
func (f *Func) ReplaceAllUses(old ID, v Value) {
	def := f.mustInstr(old)
	users := def.uses
	def.uses = nil
	for _, u := range users {
		in := f.instrs[u]
		for n, a := range in.args {
			if a.IsInstr() && a.ID == old {
				in.args[n] = v
				f.addUse(v, u)
				// one slot per use entry
				break
			}
		}
	}
}

// MoveBefore moves id so that it immediately precedes pos, possibly in
// another block.
func (f *Func) MoveBefore(id, pos ID) {
	if id == pos {
		return
	}
	in, at := f.mustInstr(id), f.mustInstr(pos)
	if in.Op.IsTerminator() || in.Op == OpPhi {
		panic(fmt.Sprintf("ir: cannot move %s", in.Op))
	}
	src := f.blocks[in.block]
	src.instrs = removeID(src.instrs, id)

	dst := f.blocks[at.block]
	idx := indexID(dst.instrs, pos)
	dst.instrs = append(dst.instrs, NoID)
	copy(dst.instrs[idx+1:], dst.instrs[idx:])
	dst.instrs[idx] = id
	in.block = at.block
}

// EraseInstr removes an instruction without users.
func (f *Func) EraseInstr(id ID) {
	in := f.mustInstr(id)
	if len(in.uses) > 0 {
		panic(fmt.Sprintf("ir: %s: erasing %s which still has %d uses", f.Name, id, len(in.uses)))
	}
	for _, a := range in.args {
		f.dropUse(a, id)
	}
	for _, s := range in.succs {
		if blk := f.Block(s); blk != nil {
			blk.preds = removeBlock(blk.preds, in.block)
		}
	}
	if len(in.succs) > 0 {
		f.cfgVersion++
	}
	blk := f.blocks[in.block]
	blk.instrs = removeID(blk.instrs, id)
	f.instrs[id] = nil
}

// SetSucc redirects successor n of the terminator of b to target. Phi nodes
// in the old and new successors are not touched.
func (f *Func) SetSucc(b BlockID, n int, target BlockID) {
	t := f.Terminator(b)
	if t == NoID {
		panic(fmt.Sprintf("ir: %s: block %s has no terminator", f.Name, b))
	}
	in := f.instrs[t]
	old := in.succs[n]
	if old == target {
		return
	}
	if blk := f.Block(old); blk != nil {
		blk.preds = removeBlock(blk.preds, b)
	}
	f.mustBlock(target).preds = append(f.blocks[target].preds, b)
	in.succs[n] = target
	f.cfgVersion++
}

// ReplaceSucc redirects every edge b->old to b->target.
func (f *Func) ReplaceSucc(b, old, target BlockID) {
	for n, s := range f.Succs(b) {
		if s == old {
			f.SetSucc(b, n, target)
		}
	}
}

// SetIncomingBlock renames the incoming block old of phi to b.
func (f *Func) SetIncomingBlock(phi ID, old, b BlockID) {
	in := f.mustInstr(phi)
	for n, blk := range in.incoming {
		if blk == old {
			in.incoming[n] = b
		}
	}
}

// RemoveIncoming drops the incoming edge from b of phi.
func (f *Func) RemoveIncoming(phi ID, b BlockID) {
	in := f.mustInstr(phi)
	for n, blk := range in.incoming {
		if blk == b {
			f.dropUse(in.args[n], phi)
			in.args = append(in.args[:n], in.args[n+1:]...)
			in.incoming = append(in.incoming[:n], in.incoming[n+1:]...)
			return
		}
	}
}

// EraseBlocks removes a set of blocks together with their instructions.
// The blocks may only be reached from each other, and their values may only
// be used inside the set. Phi edges from the erased blocks into surviving
// successors are dropped.
func (f *Func) EraseBlocks(bs ...BlockID) {
	set := make(map[BlockID]bool, len(bs))
	for _, b := range bs {
		f.mustBlock(b)
		set[b] = true
	}
	for _, b := range bs {
		if b == f.Entry {
			panic(fmt.Sprintf("ir: %s: erasing entry block %s", f.Name, b))
		}
		for _, p := range f.blocks[b].preds {
			if !set[p] {
				panic(fmt.Sprintf("ir: %s: erasing %s still reached from %s", f.Name, b, p))
			}
		}
		for _, id := range f.blocks[b].instrs {
			for _, u := range f.instrs[id].uses {
				if !set[f.instrs[u].block] {
					panic(fmt.Sprintf("ir: %s: %s in erased block %s used by %s", f.Name, id, b, u))
				}
			}
		}
	}
	for _, b := range bs {
		for _, s := range f.Succs(b) {
			if set[s] {
				continue
			}
			for _, phi := range f.Phis(s) {
				f.RemoveIncoming(phi, b)
			}
			f.blocks[s].preds = removeBlock(f.blocks[s].preds, b)
		}
	}
	for _, b := range bs {
		for _, id := range f.blocks[b].instrs {
			for _, a := range f.instrs[id].args {
				f.dropUse(a, id)
			}
		}
	}
	for _, b := range bs {
		for _, id := range f.blocks[b].instrs {
			f.instrs[id] = nil
		}
		f.blocks[b] = nil
	}
	f.cfgVersion++
}

func removeID(ids []ID, id ID) []ID {
	if n := indexID(ids, id); n >= 0 {
		return append(ids[:n], ids[n+1:]...)
	}
	return ids
}

func indexID(ids []ID, id ID) int {
	for n, x := range ids {
		if x == id {
			return n
		}
	}
	return -1
}

func removeBlock(bs []BlockID, b BlockID) []BlockID {
	for n, x := range bs {
		if x == b {
			return append(bs[:n], bs[n+1:]...)
		}
	}
	return bs
}
