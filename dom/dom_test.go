package dom

import (
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
)

//	entry -> header -> {body -> latch -> header, exit}
//	body -> {then -> latch, latch}
func testFn() *irtest.Func {
	return irtest.Fun("f", []string{"n"},
		irtest.Bloc("entry",
			irtest.Goto("header")),
		irtest.Bloc("header",
			irtest.Phi("i", irtest.In("entry", irtest.C(0)), irtest.In("latch", irtest.V("inext"))),
			irtest.Cmp("c", ir.PredSLT, irtest.V("i"), irtest.P(0)),
			irtest.If(irtest.V("c"), "body", "exit")),
		irtest.Bloc("body",
			irtest.Cmp("odd", ir.PredEQ, irtest.V("i"), irtest.C(3)),
			irtest.If(irtest.V("odd"), "then", "latch")),
		irtest.Bloc("then",
			irtest.Goto("latch")),
		irtest.Bloc("latch",
			irtest.Valu("inext", ir.OpAdd, irtest.V("i"), irtest.C(1)),
			irtest.Goto("header")),
		irtest.Bloc("exit",
			irtest.Exit()),
		irtest.Bloc("dead",
			irtest.Goto("exit")),
	)
}

func TestDominators(t *testing.T) {
	fn := testFn()
	dt := New(fn.F)
	b := fn.B
	tests := []struct {
		a, b string
		want bool
	}{
		{"entry", "exit", true},
		{"header", "latch", true},
		{"body", "latch", true},
		{"then", "latch", false},
		{"latch", "header", false},
		{"header", "header", true},
		{"dead", "exit", false},
		{"entry", "dead", false},
	}
	for _, tc := range tests {
		if got := dt.Dominates(b(tc.a), b(tc.b)); got != tc.want {
			t.Errorf("%s dominates %s\nwant: %t\ngot: %t\n", tc.a, tc.b, tc.want, got)
		}
	}
	if want, got := b("body"), dt.Idom(b("latch")); want != got {
		t.Errorf("idom(latch)\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := ir.NoBlock, dt.Idom(b("entry")); want != got {
		t.Errorf("idom(entry)\nwant: %s\ngot: %s\n", want, got)
	}
	if dt.Contains(b("dead")) {
		t.Errorf("unreachable block should not be in the tree")
	}
	pre := dt.Preorder()
	if len(pre) != 6 || pre[0] != b("entry") {
		t.Errorf("preorder should start at entry and cover reachable blocks, got %v", pre)
	}
	if dt.StrictlyDominates(b("header"), b("header")) {
		t.Errorf("strict dominance is irreflexive")
	}
}

func TestPostDominators(t *testing.T) {
	fn := testFn()
	pdt := NewPost(fn.F)
	b := fn.B
	tests := []struct {
		a, b string
		want bool
	}{
		{"exit", "entry", true},
		{"header", "entry", true},
		{"latch", "body", true},
		{"latch", "then", true},
		{"then", "body", false},
		{"body", "header", false},
		{"exit", "dead", true},
	}
	for _, tc := range tests {
		if got := pdt.Dominates(b(tc.a), b(tc.b)); got != tc.want {
			t.Errorf("%s post-dominates %s\nwant: %t\ngot: %t\n", tc.a, tc.b, tc.want, got)
		}
	}
	if want, got := VirtualExit, pdt.Idom(b("exit")); want != got {
		t.Errorf("ipdom(exit)\nwant: %s\ngot: %s\n", want, got)
	}
	if !pdt.Dominates(VirtualExit, b("entry")) {
		t.Errorf("virtual exit should post-dominate everything")
	}
}

// A block that never reaches a return is outside the post-dominator tree.
func TestPostDominatorsInfinite(t *testing.T) {
	fn := irtest.Fun("spin", nil,
		irtest.Bloc("entry",
			irtest.Cmp("c", ir.PredEQ, irtest.C(0), irtest.C(1)),
			irtest.If(irtest.V("c"), "spin", "exit")),
		irtest.Bloc("spin",
			irtest.Goto("spin")),
		irtest.Bloc("exit",
			irtest.Exit()),
	)
	pdt := NewPost(fn.F)
	if pdt.Contains(fn.B("spin")) {
		t.Errorf("spin cannot reach exit and should not be in the tree")
	}
	if !pdt.Dominates(fn.B("exit"), fn.B("entry")) {
		t.Errorf("exit post-dominates entry along all terminating paths")
	}
}
