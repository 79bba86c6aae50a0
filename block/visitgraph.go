package block

import (
	"fmt"
	"sync"

	"github.com/nickng/loopopt/ir"
	"github.com/pkg/errors"
)

var (
	ErrBadNode     = errors.New("VisitNode does not contain block (or has nil block)")
	ErrNotVisited  = errors.New("previous block was never visited")
	ErrBadEdgeFrom = errors.New("no edge between blocks")
)

// visitedEdges counts how many times each edge was taken.
//
// Edges are mapped as block --> incoming block --> count.
type visitedEdges map[ir.BlockID]map[ir.BlockID]int

// VisitGraph is a data structure to track the control flow of execution within
// a function. Each node is the block that the execution has previously
// visited.
//
// VisitGraph, unlike the name suggests, is a doubly linked list.
// Traversing the VisitGraph is equivalent to replaying the execution.
type VisitGraph struct {
	sync.Mutex

	fn    *ir.Func
	nodes []*VisitNode

	// visited keeps track of the incoming edges of each block. The entry of a
	// block is initialised with 0 for all predecessors.
	visited visitedEdges

	// keep is false when only edge counts are recorded.
	keep bool
}

// NewVisitGraph returns a new VisitGraph for blocks of fn. If keepNodes is
// false, only edge counts are recorded and the node list stays empty except
// for the last node.
func NewVisitGraph(fn *ir.Func, keepNodes bool) *VisitGraph {
	g := &VisitGraph{fn: fn, visited: make(visitedEdges), keep: keepNodes}
	for _, b := range fn.Blocks() {
		g.visited[b] = make(map[ir.BlockID]int)
		for _, p := range fn.Preds(b) {
			g.visited[b][p] = 0
		}
	}
	return g
}

func (g *VisitGraph) append(n *VisitNode) {
	if g.keep && len(g.nodes) > 0 {
		last := g.nodes[len(g.nodes)-1]
		n.Prev = last
		last.Next = n
	}
	if g.keep || len(g.nodes) == 0 {
		g.nodes = append(g.nodes, n)
	} else {
		g.nodes[0] = n
	}
}

// Visit enters the entry block of the function.
func (g *VisitGraph) Visit(n *VisitNode) {
	g.Lock()
	defer g.Unlock()
	g.append(n)
}

// VisitFrom records the transfer of control prev --> n.
//
// Param prev is not modified or stored, and is used for looking up the
// previous block. prev must be the last visited node.
func (g *VisitGraph) VisitFrom(prev, n *VisitNode) error {
	g.Lock()
	defer g.Unlock()
	if len(g.nodes) == 0 || g.nodes[len(g.nodes)-1].Blk() != prev.Blk() {
		return errors.Wrapf(ErrNotVisited, "%v", prev)
	}
	in, ok := g.visited[n.Blk()]
	if !ok {
		return errors.Wrapf(ErrBadNode, "%v", n)
	}
	if _, ok := in[prev.Blk()]; !ok {
		return errors.Wrapf(ErrBadEdgeFrom, "%s --> %s", prev.Blk(), n.Blk())
	}
	in[prev.Blk()]++
	g.append(n)
	return nil
}

// LastNode returns the last node in the VisitGraph, or nil if it is empty.
func (g *VisitGraph) LastNode() *VisitNode {
	if len(g.nodes) == 0 {
		return nil
	}
	return g.nodes[len(g.nodes)-1]
}

// Size of the graph.
func (g *VisitGraph) Size() int {
	return len(g.nodes)
}

// NodeVisited returns true if all the in edges of the block are visited.
func (g *VisitGraph) NodeVisited(n *VisitNode) bool {
	g.Lock()
	defer g.Unlock()
	in, ok := g.visited[n.Blk()]
	if !ok {
		return false
	}
	if len(in) == 0 { // entry
		return len(g.nodes) > 0
	}
	for _, count := range in {
		if count == 0 {
			return false
		}
	}
	return true
}

// VisitedOnce returns true if the block is visited via at least one edge.
func (g *VisitGraph) VisitedOnce(n *VisitNode) bool {
	g.Lock()
	defer g.Unlock()
	in := g.visited[n.Blk()]
	if len(in) == 0 {
		return len(g.nodes) > 0 && n.Blk() == g.fn.Entry
	}
	for _, count := range in {
		if count > 0 {
			return true
		}
	}
	return false
}

// EdgeVisited returns true if the edge between the node pair has been visited.
func (g *VisitGraph) EdgeVisited(from, to *VisitNode) bool {
	return g.EdgeCount(from.Blk(), to.Blk()) > 0
}

// EdgeCount returns the number of times the edge from --> to was taken.
func (g *VisitGraph) EdgeCount(from, to ir.BlockID) int {
	g.Lock()
	defer g.Unlock()
	return g.visited[to][from]
}

// VisitNode is one node in the VisitGraph.
// Each VisitNode corresponds to one block.
type VisitNode struct {
	blk ir.BlockID

	Prev, Next *VisitNode
}

// NewVisitNode returns a new VisitNode.
func NewVisitNode(block ir.BlockID) *VisitNode {
	return &VisitNode{blk: block}
}

// Blk returns the underlying block.
func (n *VisitNode) Blk() ir.BlockID {
	return n.blk
}

func (n *VisitNode) String() string {
	if n.Next != nil {
		return fmt.Sprintf("Block: %s\n%s", n.blk, n.Next.String())
	}
	return fmt.Sprintf("Block: %s\n-- end --\n", n.blk)
}
