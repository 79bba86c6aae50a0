// Package block provides the Analyser interface for blocks and supporting
// utils for walking the block graph of an ir.Func.
package block

import "github.com/nickng/loopopt/ir"

// Analyser is an interface for basic block analysis,
// handles block transitions within functions.
type Analyser interface {
	// EnterBlk analyses a block where there is no predecessor,
	// e.g. the entry block of a Func.
	EnterBlk(blk ir.BlockID)

	// JumpBlk analyses a block where the predecessor is specified explicitly,
	// where the transfer of control may impact the control flow directly
	// (e.g. phi selection).
	JumpBlk(curr, next ir.BlockID)

	// ExitBlk analyses a terminating block where there are no successors.
	ExitBlk(blk ir.BlockID)

	// CurrBlk returns the current block (last block entered).
	CurrBlk() ir.BlockID

	// PrevBlk() returns the previous block (last block exited).
	PrevBlk() ir.BlockID
}
