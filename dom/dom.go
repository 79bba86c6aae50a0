// Package dom computes dominator and post-dominator trees of an ir.Func with
// the iterative algorithm of Cooper, Harvey and Kennedy, "A Simple, Fast
// Dominance Algorithm".
//
// The post-dominator tree is rooted at a virtual exit block which succeeds
// every returning block. Blocks that cannot reach a return (or, for the
// forward tree, that are unreachable from the entry) are not in the tree and
// neither dominate nor are dominated by anything.
package dom

import "github.com/nickng/loopopt/ir"

// VirtualExit is the root of a post-dominator tree.
const VirtualExit ir.BlockID = -2

// Tree is a dominator or post-dominator tree.
type Tree struct {
	post     bool
	version  uint64
	idom     []ir.BlockID // indexed by block, plus the virtual exit last
	children [][]ir.BlockID
	in, out  []int // DFS entry/exit numbers over the tree
	order    []ir.BlockID
}

// New returns the dominator tree of f.
func New(f *ir.Func) *Tree {
	n := f.NumBlocks()
	g := graph{
		n:    n,
		root: int(f.Entry),
		succs: func(b int) []int {
			return ints(f.Succs(ir.BlockID(b)))
		},
		preds: func(b int) []int {
			return ints(f.Preds(ir.BlockID(b)))
		},
		live: func(b int) bool { return f.Block(ir.BlockID(b)) != nil },
	}
	return newTree(f, g, false)
}

// NewPost returns the post-dominator tree of f.
func NewPost(f *ir.Func) *Tree {
	n := f.NumBlocks()
	exit := n
	var rets []int
	for _, b := range f.Blocks() {
		if len(f.Succs(b)) == 0 {
			rets = append(rets, int(b))
		}
	}
	g := graph{
		n:    n + 1,
		root: exit,
		succs: func(b int) []int {
			if b == exit {
				return rets
			}
			return ints(f.Preds(ir.BlockID(b)))
		},
		preds: func(b int) []int {
			if b == exit {
				return nil
			}
			ss := ints(f.Succs(ir.BlockID(b)))
			if len(ss) == 0 {
				return []int{exit}
			}
			return ss
		},
		live: func(b int) bool { return b == exit || f.Block(ir.BlockID(b)) != nil },
	}
	return newTree(f, g, true)
}

type graph struct {
	n            int
	root         int
	succs, preds func(int) []int
	live         func(int) bool
}

func ints(bs []ir.BlockID) []int {
	is := make([]int, len(bs))
	for i, b := range bs {
		is[i] = int(b)
	}
	return is
}

func newTree(f *ir.Func, g graph, post bool) *Tree {
	// Reverse post-order from the root.
	rpoNum := make([]int, g.n)
	for i := range rpoNum {
		rpoNum[i] = -1
	}
	seen := make([]bool, g.n)
	var order []int
	var dfs func(b int)
	dfs = func(b int) {
		seen[b] = true
		for _, s := range g.succs(b) {
			if !seen[s] && g.live(s) {
				dfs(s)
			}
		}
		order = append(order, b)
	}
	if g.root >= 0 && g.root < g.n && g.live(g.root) {
		dfs(g.root)
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	for i, b := range order {
		rpoNum[b] = i
	}

	idom := make([]int, g.n)
	for i := range idom {
		idom[i] = -1
	}
	intersect := func(b1, b2 int) int {
		for b1 != b2 {
			for rpoNum[b1] > rpoNum[b2] {
				b1 = idom[b1]
			}
			for rpoNum[b2] > rpoNum[b1] {
				b2 = idom[b2]
			}
		}
		return b1
	}
	if len(order) > 0 {
		root := order[0]
		idom[root] = root
		for changed := true; changed; {
			changed = false
			for _, b := range order[1:] {
				newIdom := -1
				for _, p := range g.preds(b) {
					if rpoNum[p] < 0 || idom[p] < 0 {
						continue
					}
					if newIdom < 0 {
						newIdom = p
					} else {
						newIdom = intersect(p, newIdom)
					}
				}
				if newIdom >= 0 && idom[b] != newIdom {
					idom[b] = newIdom
					changed = true
				}
			}
		}
	}

	t := &Tree{
		post:     post,
		version:  f.CFGVersion(),
		idom:     make([]ir.BlockID, g.n),
		children: make([][]ir.BlockID, g.n),
		in:       make([]int, g.n),
		out:      make([]int, g.n),
	}
	toID := func(b int) ir.BlockID {
		if post && b == g.n-1 {
			return VirtualExit
		}
		return ir.BlockID(b)
	}
	for b := range idom {
		t.idom[b] = ir.NoBlock
		t.in[b], t.out[b] = -1, -1
	}
	for _, b := range order {
		if idom[b] >= 0 && idom[b] != b {
			t.idom[b] = toID(idom[b])
			t.children[idom[b]] = append(t.children[idom[b]], toID(b))
		}
	}
	// Number the tree for constant-time dominance queries.
	clock := 0
	var number func(b int)
	number = func(b int) {
		t.in[b] = clock
		clock++
		t.order = append(t.order, toID(b))
		for _, c := range t.children[b] {
			number(t.index(c))
		}
		t.out[b] = clock
		clock++
	}
	if len(order) > 0 {
		number(order[0])
	}
	return t
}

func (t *Tree) index(b ir.BlockID) int {
	if b == VirtualExit {
		if !t.post {
			return -1
		}
		return len(t.idom) - 1
	}
	if b < 0 || (t.post && int(b) >= len(t.idom)-1) || int(b) >= len(t.idom) {
		return -1
	}
	return int(b)
}

// IsPost reports whether t is a post-dominator tree.
func (t *Tree) IsPost() bool { return t.post }

// Version is the CFG version of the function the tree was computed for.
func (t *Tree) Version() uint64 { return t.version }

// Contains reports whether b is in the tree.
func (t *Tree) Contains(b ir.BlockID) bool {
	i := t.index(b)
	return i >= 0 && t.in[i] >= 0
}

// Idom returns the immediate dominator of b, or ir.NoBlock for the root and
// for blocks not in the tree.
func (t *Tree) Idom(b ir.BlockID) ir.BlockID {
	if i := t.index(b); i >= 0 {
		return t.idom[i]
	}
	return ir.NoBlock
}

// Children returns the blocks immediately dominated by b.
func (t *Tree) Children(b ir.BlockID) []ir.BlockID {
	if i := t.index(b); i >= 0 {
		return append([]ir.BlockID(nil), t.children[i]...)
	}
	return nil
}

// Dominates reports whether a dominates b. Dominance is reflexive.
func (t *Tree) Dominates(a, b ir.BlockID) bool {
	i, j := t.index(a), t.index(b)
	if i < 0 || j < 0 || t.in[i] < 0 || t.in[j] < 0 {
		return false
	}
	return t.in[i] <= t.in[j] && t.out[j] <= t.out[i]
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *Tree) StrictlyDominates(a, b ir.BlockID) bool {
	return a != b && t.Dominates(a, b)
}

// Preorder returns the blocks of the tree in depth-first preorder, children
// in reverse post-order of the underlying graph.
func (t *Tree) Preorder() []ir.BlockID {
	return append([]ir.BlockID(nil), t.order...)
}
