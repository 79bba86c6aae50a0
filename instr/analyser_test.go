package instr

import (
	"testing"

	"github.com/nickng/loopopt/ir"
)

func TestBinary(t *testing.T) {
	tests := []struct {
		op   ir.Op
		x, y int64
		want int64
		ok   bool
	}{
		{ir.OpAdd, 1, 2, 3, true},
		{ir.OpSub, 1, 2, -1, true},
		{ir.OpMul, -3, 4, -12, true},
		{ir.OpSDiv, -7, 2, -3, true},
		{ir.OpSRem, -7, 2, -1, true},
		{ir.OpSDiv, 1, 0, 0, false},
		{ir.OpShl, 1, 4, 16, true},
		{ir.OpAShr, -16, 2, -4, true},
		{ir.OpLShr, -1, 60, 15, true},
		{ir.OpXor, 6, 3, 5, true},
	}
	for _, tc := range tests {
		got, ok := Binary(tc.op, tc.x, tc.y)
		if got != tc.want || ok != tc.ok {
			t.Errorf("%s %d, %d\nwant: %d %t\ngot: %d %t\n", tc.op, tc.x, tc.y, tc.want, tc.ok, got, ok)
		}
	}
}

func TestExtend(t *testing.T) {
	if want, got := int64(-1), Extend(ir.OpSExt, 0xff, 8); want != got {
		t.Errorf("sext.i8 0xff\nwant: %d\ngot: %d\n", want, got)
	}
	if want, got := int64(0xff), Extend(ir.OpZExt, -1, 8); want != got {
		t.Errorf("zext.i8 -1\nwant: %d\ngot: %d\n", want, got)
	}
	if want, got := int64(5), Extend(ir.OpSExt, 5, 32); want != got {
		t.Errorf("sext.i32 5\nwant: %d\ngot: %d\n", want, got)
	}
}

type counter struct {
	counts map[string]int
}

func (c *counter) VisitBinary(in *ir.Instr) { c.counts["binary"]++ }
func (c *counter) VisitCmp(in *ir.Instr)    { c.counts["cmp"]++ }
func (c *counter) VisitPhi(in *ir.Instr)    { c.counts["phi"]++ }
func (c *counter) VisitLoad(in *ir.Instr)   { c.counts["load"]++ }
func (c *counter) VisitStore(in *ir.Instr)  { c.counts["store"]++ }
func (c *counter) VisitAddr(in *ir.Instr)   { c.counts["addr"]++ }
func (c *counter) VisitAlloc(in *ir.Instr)  { c.counts["alloc"]++ }
func (c *counter) VisitExt(in *ir.Instr)    { c.counts["ext"]++ }
func (c *counter) VisitCall(in *ir.Instr)   { c.counts["call"]++ }
func (c *counter) VisitJump(in *ir.Instr)   { c.counts["jump"]++ }
func (c *counter) VisitIf(in *ir.Instr)     { c.counts["if"]++ }
func (c *counter) VisitReturn(in *ir.Instr) { c.counts["return"]++ }

func TestVisit(t *testing.T) {
	f := ir.NewFunc("f", "a")
	b := f.NewBlock("entry")
	x := f.Binary(b, ir.OpMul, ir.Param(0), ir.Const(2))
	p := f.Addr(b, ir.Param(0), ir.Ref(x))
	f.Store(b, ir.Ref(p), ir.Ref(x))
	f.Return(b)
	c := &counter{counts: make(map[string]int)}
	for _, id := range f.Instrs(b) {
		Visit(c, f.Instr(id))
	}
	for _, k := range []string{"binary", "addr", "store", "return"} {
		if c.counts[k] != 1 {
			t.Errorf("%s visited %d times, want 1", k, c.counts[k])
		}
	}
}
