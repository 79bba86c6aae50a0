// Package loop provides the natural-loop forest of an ir.Func.
//
// Loops are discovered from back edges (an edge whose target dominates its
// source). Each loop records its header, its single latch and preheader when
// they exist, the blocks leaving the loop and the blocks just outside it, an
// optional guard branch that skips the loop entirely, and its nested child
// loops in program order.
//
// A Forest is a snapshot: it records the CFG version of the function it was
// computed for, and becomes stale as soon as the block graph is changed.
package loop
