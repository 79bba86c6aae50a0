// Package instr provides the Analyser interface for instructions.
package instr

import (
	"fmt"

	"github.com/nickng/loopopt/ir"
)

// Analyser is an interface for Instruction analysis,
// handles each instruction class.
type Analyser interface {
	VisitBinary(in *ir.Instr)
	VisitCmp(in *ir.Instr)
	VisitPhi(in *ir.Instr)
	VisitLoad(in *ir.Instr)
	VisitStore(in *ir.Instr)
	VisitAddr(in *ir.Instr)
	VisitAlloc(in *ir.Instr)
	VisitExt(in *ir.Instr)
	VisitCall(in *ir.Instr)
	VisitJump(in *ir.Instr)
	VisitIf(in *ir.Instr)
	VisitReturn(in *ir.Instr)
}

// Visit dispatches in to the matching method of v.
func Visit(v Analyser, in *ir.Instr) {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpSRem,
		ir.OpShl, ir.OpAShr, ir.OpLShr, ir.OpAnd, ir.OpOr, ir.OpXor:
		v.VisitBinary(in)
	case ir.OpCmp:
		v.VisitCmp(in)
	case ir.OpPhi:
		v.VisitPhi(in)
	case ir.OpLoad:
		v.VisitLoad(in)
	case ir.OpStore:
		v.VisitStore(in)
	case ir.OpAddr:
		v.VisitAddr(in)
	case ir.OpAlloc:
		v.VisitAlloc(in)
	case ir.OpSExt, ir.OpZExt:
		v.VisitExt(in)
	case ir.OpCall:
		v.VisitCall(in)
	case ir.OpJump:
		v.VisitJump(in)
	case ir.OpIf:
		v.VisitIf(in)
	case ir.OpReturn:
		v.VisitReturn(in)
	default:
		panic(fmt.Sprintf("instr: unhandled op %s", in.Op))
	}
}

// Binary evaluates a binary operator on 64-bit two's complement integers.
// ok is false when the operation traps.
func Binary(op ir.Op, x, y int64) (v int64, ok bool) {
	switch op {
	case ir.OpAdd:
		return x + y, true
	case ir.OpSub:
		return x - y, true
	case ir.OpMul:
		return x * y, true
	case ir.OpSDiv:
		if y == 0 {
			return 0, false
		}
		return x / y, true
	case ir.OpSRem:
		if y == 0 {
			return 0, false
		}
		return x % y, true
	case ir.OpShl:
		return x << uint64(y&63), true
	case ir.OpAShr:
		return x >> uint64(y&63), true
	case ir.OpLShr:
		return int64(uint64(x) >> uint64(y&63)), true
	case ir.OpAnd:
		return x & y, true
	case ir.OpOr:
		return x | y, true
	case ir.OpXor:
		return x ^ y, true
	}
	return 0, false
}

// Extend sign- or zero-extends the low width bits of x.
func Extend(op ir.Op, x int64, width int) int64 {
	if width <= 0 || width >= 64 {
		return x
	}
	shift := uint(64 - width)
	if op == ir.OpSExt {
		return (x << shift) >> shift
	}
	return int64(uint64(x) << shift >> shift)
}
