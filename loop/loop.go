package loop

import (
	"bytes"
	"fmt"

	"github.com/nickng/loopopt/ir"
)

// Loop is a natural loop.
type Loop struct {
	Header    ir.BlockID
	Latch     ir.BlockID // Latch is the single back-edge source, or NoBlock.
	Preheader ir.BlockID // Preheader is the dedicated entry block, or NoBlock.
	Guard     ir.BlockID // Guard is the block whose branch may skip the loop, or NoBlock.

	// Induction is the header phi stepping by a constant along the back
	// edge, or NoID.
	Induction ir.ID

	Parent   *Loop
	Children []*Loop // nested loops in program order
	Depth    int     // 1 for top-level loops

	f       *ir.Func
	blocks  map[ir.BlockID]bool
	order   []ir.BlockID
	exits   []ir.BlockID
	exiting []ir.BlockID
}

// Contains reports whether b belongs to the loop (nested loops included).
func (l *Loop) Contains(b ir.BlockID) bool { return l.blocks[b] }

// ContainsInstr reports whether the block of id belongs to the loop.
func (l *Loop) ContainsInstr(id ir.ID) bool {
	in := l.f.Instr(id)
	return in != nil && l.blocks[in.Block()]
}

// ContainsLoop reports whether m is l or nested in l.
func (l *Loop) ContainsLoop(m *Loop) bool {
	for ; m != nil; m = m.Parent {
		if m == l {
			return true
		}
	}
	return false
}

// Blocks returns the member blocks in layout order.
func (l *Loop) Blocks() []ir.BlockID { return append([]ir.BlockID(nil), l.order...) }

// ExitBlocks returns the blocks outside the loop with a predecessor inside.
func (l *Loop) ExitBlocks() []ir.BlockID { return append([]ir.BlockID(nil), l.exits...) }

// ExitingBlocks returns the member blocks with a successor outside the loop.
func (l *Loop) ExitingBlocks() []ir.BlockID { return append([]ir.BlockID(nil), l.exiting...) }

// ExitBlock returns the unique exit block, or NoBlock.
func (l *Loop) ExitBlock() ir.BlockID {
	if len(l.exits) == 1 {
		return l.exits[0]
	}
	return ir.NoBlock
}

// ExitingBlock returns the unique exiting block, or NoBlock.
func (l *Loop) ExitingBlock() ir.BlockID {
	if len(l.exiting) == 1 {
		return l.exiting[0]
	}
	return ir.NoBlock
}

// Func returns the function the loop belongs to.
func (l *Loop) Func() *ir.Func { return l.f }

func (l *Loop) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "loop %s depth=%d blocks=%v", l.Header, l.Depth, l.order)
	if l.Preheader != ir.NoBlock {
		fmt.Fprintf(&buf, " preheader=%s", l.Preheader)
	}
	if l.Latch != ir.NoBlock {
		fmt.Fprintf(&buf, " latch=%s", l.Latch)
	}
	if l.Guard != ir.NoBlock {
		fmt.Fprintf(&buf, " guard=%s", l.Guard)
	}
	if l.Induction != ir.NoID {
		fmt.Fprintf(&buf, " iv=%s", l.Induction)
	}
	return buf.String()
}
