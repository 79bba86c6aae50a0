package ir

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrMalformed is the cause of every error returned by Verify.
var ErrMalformed = errors.New("malformed function")

// Verify checks the structural invariants of f: every live block ends in
// exactly one terminator, phis lead their block and list exactly its
// predecessors, operands and successors are live, and use and predecessor
// lists agree with the operands and terminators.
func Verify(f *Func) error {
	fail := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrMalformed, "%s: "+format, append([]interface{}{f.Name}, args...)...)
	}
	if f.Block(f.Entry) == nil {
		return fail("no entry block")
	}
	uses := make(map[ID][]ID)
	preds := make(map[BlockID][]BlockID)
	for _, b := range f.Blocks() {
		blk := f.blocks[b]
		if len(blk.instrs) == 0 {
			return fail("block %s is empty", b)
		}
		inPhis := true
		for n, id := range blk.instrs {
			in := f.Instr(id)
			if in == nil {
				return fail("block %s lists erased %s", b, id)
			}
			if in.block != b {
				return fail("%s listed in %s but belongs to %s", id, b, in.block)
			}
			last := n == len(blk.instrs)-1
			if in.Op.IsTerminator() != last {
				return fail("block %s: terminator misplaced at %s", b, id)
			}
			if in.Op == OpPhi {
				if !inPhis {
					return fail("block %s: phi %s after non-phi", b, id)
				}
			} else {
				inPhis = false
			}
			for k, a := range in.args {
				if !a.Valid() {
					return fail("%s: operand %d unset", id, k)
				}
				if a.IsInstr() {
					if f.Instr(a.ID) == nil {
						return fail("%s: operand %s erased", id, a)
					}
					uses[a.ID] = append(uses[a.ID], id)
				}
				if a.IsParam() && (a.Index < 0 || a.Index >= len(f.Params)) {
					return fail("%s: no parameter %d", id, a.Index)
				}
			}
			for _, s := range in.succs {
				if f.Block(s) == nil {
					return fail("%s: successor %s erased", id, s)
				}
				preds[s] = append(preds[s], b)
			}
		}
	}
	for _, b := range f.Blocks() {
		if !sameBlocks(f.blocks[b].preds, preds[b]) {
			return fail("block %s: preds %v, edges %v", b, f.blocks[b].preds, preds[b])
		}
		for _, phi := range f.Phis(b) {
			if !sameBlocks(dedup(f.instrs[phi].incoming), dedup(preds[b])) {
				return fail("phi %s: incoming %v, preds %v", phi, f.instrs[phi].incoming, preds[b])
			}
		}
		for _, id := range f.blocks[b].instrs {
			if !sameIDs(f.instrs[id].uses, uses[id]) {
				return fail("%s: uses %v, users %v", id, f.instrs[id].uses, uses[id])
			}
		}
	}
	return nil
}

func dedup(bs []BlockID) []BlockID {
	seen := make(map[BlockID]bool)
	var out []BlockID
	for _, b := range bs {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

func sameBlocks(a, b []BlockID) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := append([]BlockID(nil), a...), append([]BlockID(nil), b...)
	sort.Slice(x, func(i, j int) bool { return x[i] < x[j] })
	sort.Slice(y, func(i, j int) bool { return y[i] < y[j] })
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func sameIDs(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := append([]ID(nil), a...), append([]ID(nil), b...)
	sort.Slice(x, func(i, j int) bool { return x[i] < x[j] })
	sort.Slice(y, func(i, j int) bool { return y[i] < y[j] })
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
