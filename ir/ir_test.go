package ir_test

import (
	"strings"
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
	"github.com/pkg/errors"
)

func loop() *irtest.Func {
	return irtest.Fun("loop", []string{"n"},
		irtest.Bloc("entry",
			irtest.Goto("header")),
		irtest.Bloc("header",
			irtest.Phi("i", irtest.In("entry", irtest.C(0)), irtest.In("latch", irtest.V("inext"))),
			irtest.Cmp("c", ir.PredSLT, irtest.V("i"), irtest.P(0)),
			irtest.If(irtest.V("c"), "latch", "exit")),
		irtest.Bloc("latch",
			irtest.Valu("t", ir.OpMul, irtest.P(0), irtest.C(2)),
			irtest.Valu("inext", ir.OpAdd, irtest.V("i"), irtest.C(1)),
			irtest.Goto("header")),
		irtest.Bloc("exit",
			irtest.Exit(irtest.V("i"))),
	)
}

func TestBuild(t *testing.T) {
	fn := loop()
	f := fn.F
	if err := ir.Verify(f); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if want, got := fn.B("entry"), f.Entry; want != got {
		t.Errorf("entry\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := 2, len(f.Preds(fn.B("header"))); want != got {
		t.Errorf("header preds\nwant: %d\ngot: %d\n", want, got)
	}
	succs := f.Succs(fn.B("header"))
	if len(succs) != 2 || succs[0] != fn.B("latch") || succs[1] != fn.B("exit") {
		t.Errorf("header succs\nwant: [latch exit]\ngot: %v\n", succs)
	}
	uses := f.Uses(fn.V("i"))
	if want, got := 3, len(uses); want != got {
		t.Errorf("uses of i\nwant: %d\ngot: %d (%v)\n", want, got, uses)
	}
	if phis := f.Phis(fn.B("header")); len(phis) != 1 || phis[0] != fn.V("i") {
		t.Errorf("header phis\nwant: [%s]\ngot: %v\n", fn.V("i"), phis)
	}
	if v, ok := f.Instr(fn.V("i")).IncomingFor(fn.B("latch")); !ok || v != ir.Ref(fn.V("inext")) {
		t.Errorf("incoming from latch\nwant: %s\ngot: %s\n", ir.Ref(fn.V("inext")), v)
	}
}

// Non-terminators are inserted before the terminator and phis after phis.
func TestInsertOrder(t *testing.T) {
	f := ir.NewFunc("f")
	b := f.NewBlock("b")
	x := f.Binary(b, ir.OpAdd, ir.Const(1), ir.Const(2))
	r := f.Return(b, ir.Ref(x))
	y := f.Binary(b, ir.OpAdd, ir.Ref(x), ir.Const(3))
	p := f.Phi(b)
	want := []ir.ID{p, x, y, r}
	got := f.Instrs(b)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("instruction order\nwant: %v\ngot: %v\n", want, got)
		}
	}
	defer func() {
		if recover() == nil {
			t.Errorf("second terminator should panic")
		}
	}()
	f.Jump(b, b)
}

func TestReplaceAndErase(t *testing.T) {
	fn := loop()
	f := fn.F
	tt := fn.V("t")
	// No users: erase directly.
	f.EraseInstr(tt)
	if f.Instr(tt) != nil {
		t.Errorf("%s should be erased", tt)
	}
	if err := ir.Verify(f); err != nil {
		t.Fatalf("Verify after erase: %v", err)
	}

	// Replace i with 0 in the compare only through RAUW of a fresh value.
	x := f.Binary(fn.B("header"), ir.OpAdd, ir.Ref(fn.V("i")), ir.Const(0))
	f.SetArg(fn.V("c"), 0, ir.Ref(x))
	f.ReplaceAllUses(x, ir.Ref(fn.V("i")))
	if len(f.Uses(x)) != 0 {
		t.Errorf("%s should have no uses after RAUW", x)
	}
	if got := f.Instr(fn.V("c")).Arg(0); got != ir.Ref(fn.V("i")) {
		t.Errorf("cmp operand\nwant: %s\ngot: %s\n", ir.Ref(fn.V("i")), got)
	}
	f.EraseInstr(x)
	if err := ir.Verify(f); err != nil {
		t.Fatalf("Verify after RAUW: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("erasing a used instruction should panic")
		}
	}()
	f.EraseInstr(fn.V("inext"))
}

func TestMoveBefore(t *testing.T) {
	fn := loop()
	f := fn.F
	tt := fn.V("t")
	f.MoveBefore(tt, f.Terminator(fn.B("entry")))
	if want, got := fn.B("entry"), f.BlockOf(tt); want != got {
		t.Errorf("block of t\nwant: %s\ngot: %s\n", want, got)
	}
	if ins := f.Instrs(fn.B("entry")); len(ins) != 2 || ins[0] != tt {
		t.Errorf("entry instructions\nwant: [%s jump]\ngot: %v\n", tt, ins)
	}
	if err := ir.Verify(f); err != nil {
		t.Fatalf("Verify after move: %v", err)
	}
}

func TestSetSucc(t *testing.T) {
	fn := loop()
	f := fn.F
	v := f.CFGVersion()
	f.SetSucc(fn.B("header"), 0, fn.B("exit"))
	if f.CFGVersion() == v {
		t.Errorf("SetSucc should bump the CFG version")
	}
	if want, got := 0, len(f.Preds(fn.B("latch"))); want != got {
		t.Errorf("latch preds\nwant: %d\ngot: %d\n", want, got)
	}
	if want, got := 2, len(f.Preds(fn.B("exit"))); want != got {
		t.Errorf("exit preds\nwant: %d\ngot: %d\n", want, got)
	}
}

func TestEraseBlocks(t *testing.T) {
	f := ir.NewFunc("f", "x")
	entry := f.NewBlock("entry")
	dead := f.NewBlock("dead")
	join := f.NewBlock("join")
	f.Jump(entry, join)
	d := f.Binary(dead, ir.OpAdd, ir.Param(0), ir.Const(1))
	f.Jump(dead, join)
	phi := f.Phi(join, ir.PhiEdge{Value: ir.Const(0), Block: entry}, ir.PhiEdge{Value: ir.Ref(d), Block: dead})
	f.Return(join, ir.Ref(phi))

	// The phi uses d from outside the erased set, but through an edge
	// from the erased block, so it is dropped.
	v := f.CFGVersion()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("erasing a block whose value is used outside should panic")
			}
		}()
		f.EraseBlocks(dead)
	}()
	f.RemoveIncoming(phi, dead)
	f.EraseBlocks(dead)
	if f.Block(dead) != nil || f.Instr(d) != nil {
		t.Errorf("dead block should be erased")
	}
	if f.CFGVersion() == v {
		t.Errorf("EraseBlocks should bump the CFG version")
	}
	if want, got := 1, len(f.Preds(join)); want != got {
		t.Errorf("join preds\nwant: %d\ngot: %d\n", want, got)
	}
	if err := ir.Verify(f); err != nil {
		t.Fatalf("Verify after erase: %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	f := ir.NewFunc("f")
	b := f.NewBlock("b")
	f.Binary(b, ir.OpAdd, ir.Const(1), ir.Const(2))
	err := ir.Verify(f)
	if err == nil {
		t.Fatalf("block without terminator should not verify")
	}
	if errors.Cause(err) != ir.ErrMalformed {
		t.Errorf("cause\nwant: %v\ngot: %v\n", ir.ErrMalformed, errors.Cause(err))
	}

	g := ir.NewFunc("g")
	e := g.NewBlock("e")
	h := g.NewBlock("h")
	g.Jump(e, h)
	g.Phi(h) // no incoming edges for pred e
	g.Return(h)
	if err := ir.Verify(g); err == nil {
		t.Errorf("phi missing incoming edges should not verify")
	}
}

func TestClone(t *testing.T) {
	fn := loop()
	g := fn.F.Clone()
	g.EraseInstr(fn.V("t"))
	if fn.F.Instr(fn.V("t")) == nil {
		t.Errorf("erasing in clone should not affect original")
	}
	if err := ir.Verify(g); err != nil {
		t.Errorf("clone should verify: %v", err)
	}
}

func TestPrint(t *testing.T) {
	s := loop().F.String()
	for _, want := range []string{"func", "loop(p0 n)", "phi [0, b0], [", "cmp.slt", "return"} {
		if !strings.Contains(s, want) {
			t.Errorf("printed function should contain %q, got:\n%s", want, s)
		}
	}
}

func TestPred(t *testing.T) {
	for p := ir.PredEQ; p <= ir.PredUGE; p++ {
		for _, xy := range [][2]int64{{1, 2}, {2, 1}, {3, 3}, {-1, 1}} {
			x, y := xy[0], xy[1]
			if p.Eval(x, y) == p.Negate().Eval(x, y) {
				t.Errorf("%s and its negation agree on %d, %d", p, x, y)
			}
			if p.Eval(x, y) != p.Swap().Eval(y, x) {
				t.Errorf("%s and its swap disagree on %d, %d", p, x, y)
			}
		}
	}
}
