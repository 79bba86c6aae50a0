package opt

import (
	"testing"

	"github.com/nickng/loopopt/interp"
	"github.com/nickng/loopopt/ir"
	. "github.com/nickng/loopopt/ir/irtest"
	"github.com/nickng/loopopt/store"
	"github.com/pkg/errors"
)

// for i < 8 { a[i] = x * 2 }; for j < 8 { b[j] = a[j] + j }
func twoLoops() *Func {
	return Fun("twoLoops", []string{"a", "b", "x"},
		Bloc("entry",
			Goto("hi")),
		Bloc("hi",
			Phi("i", In("entry", C(0)), In("li", V("in"))),
			Cmp("ci", ir.PredSLT, V("i"), C(8)),
			If(V("ci"), "bi", "mid")),
		Bloc("bi",
			Valu("t", ir.OpMul, P(2), C(2)),
			Addr("p", P(0), V("i")),
			Store(V("p"), V("t")),
			Goto("li")),
		Bloc("li",
			Valu("in", ir.OpAdd, V("i"), C(1)),
			Goto("hi")),
		Bloc("mid",
			Goto("hj")),
		Bloc("hj",
			Phi("j", In("mid", C(0)), In("lj", V("jn"))),
			Cmp("cj", ir.PredSLT, V("j"), C(8)),
			If(V("cj"), "bj", "exit")),
		Bloc("bj",
			Addr("q", P(0), V("j")),
			Load("v", V("q")),
			Valu("w", ir.OpAdd, V("v"), V("j")),
			Addr("r", P(1), V("j")),
			Store(V("r"), V("w")),
			Goto("lj")),
		Bloc("lj",
			Valu("jn", ir.OpAdd, V("j"), C(1)),
			Goto("hj")),
		Bloc("exit",
			Exit()),
	)
}

func run(t *testing.T, cfg Configurer) (*Func, *Pass, bool) {
	fn := twoLoops()
	orig := fn.F.Clone()
	p := New(cfg)
	changed := p.Run(fn.F)
	if err := ir.Verify(fn.F); err != nil {
		t.Fatalf("malformed after optimisation: %v\n%s", err, fn.F)
	}
	mem := store.New()
	a := mem.Put("a", make([]int64, 8))
	b := mem.Put("b", make([]int64, 8))
	if err := interp.Compare(orig, fn.F, []int64{a, b, 21}, mem); err != nil {
		t.Fatal(err)
	}
	return fn, p, changed
}

func TestPassRun(t *testing.T) {
	fn, p, changed := run(t, NewConfig())
	if !changed {
		t.Fatalf("expected changes")
	}
	if want, got := 1, p.Stats.Hoisted; want != got {
		t.Errorf("hoisted\nwant: %d\ngot: %d\n", want, got)
	}
	if want, got := 1, p.Stats.Fused; want != got {
		t.Errorf("fused\nwant: %d\ngot: %d\n", want, got)
	}
	if want, got := fn.B("entry"), fn.F.BlockOf(fn.V("t")); want != got {
		t.Errorf("block of t\nwant: %s\ngot: %s\n", want, got)
	}
	if fn.F.Block(fn.B("hj")) != nil {
		t.Errorf("second loop header should be erased")
	}
	if want, got := 1, p.Stats.Recomputations; want != got {
		t.Errorf("recomputations\nwant: %d\ngot: %d\n", want, got)
	}
}

func TestPassFixedPoint(t *testing.T) {
	fn := twoLoops()
	p := New(NewConfig())
	p.Run(fn.F)
	if p.Run(fn.F) {
		t.Errorf("second run should not change anything:\n%s", fn.F)
	}
	if want, got := 2, p.Stats.Funcs; want != got {
		t.Errorf("funcs\nwant: %d\ngot: %d\n", want, got)
	}
}

func TestPassLICMOnly(t *testing.T) {
	fn, p, changed := run(t, NewConfig().WithFusion(false))
	if !changed {
		t.Fatalf("expected changes")
	}
	if want, got := 0, p.Stats.Fused; want != got {
		t.Errorf("fused\nwant: %d\ngot: %d\n", want, got)
	}
	if fn.F.Block(fn.B("hj")) == nil {
		t.Errorf("second loop should be kept")
	}
}

func TestPassFusionOnly(t *testing.T) {
	fn, p, _ := run(t, NewConfig().WithLICM(false).WithMaxRounds(1))
	if want, got := 0, p.Stats.Hoisted; want != got {
		t.Errorf("hoisted\nwant: %d\ngot: %d\n", want, got)
	}
	if want, got := 1, p.Stats.Fused; want != got {
		t.Errorf("fused\nwant: %d\ngot: %d\n", want, got)
	}
	if want, got := fn.B("bi"), fn.F.BlockOf(fn.V("t")); want != got {
		t.Errorf("block of t\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := 1, p.Stats.Rounds; want != got {
		t.Errorf("rounds\nwant: %d\ngot: %d\n", want, got)
	}
}

func TestStaleFacts(t *testing.T) {
	fn := twoLoops()
	fc := NewFacts(fn.F)
	split := fn.F.NewBlock("split")
	fn.F.Jump(split, fn.B("hj"))
	fn.F.ReplaceSucc(fn.B("mid"), fn.B("hj"), split)
	fn.F.SetIncomingBlock(fn.V("j"), fn.B("mid"), split)
	if !fc.Stale() {
		t.Fatalf("facts should be stale after a CFG change")
	}

	func() {
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok {
				t.Fatalf("expected an error panic, got %v", r)
			}
			if want, got := ErrStaleFacts, errors.Cause(err); want != got {
				t.Errorf("panic\nwant: %v\ngot: %v\n", want, got)
			}
		}()
		fc.Forest()
	}()

	fc.Recompute()
	if fc.Stale() {
		t.Errorf("facts should be fresh after Recompute")
	}
	if want, got := split, fc.Forest().ByHeader(fn.B("hj")).Preheader; want != got {
		t.Errorf("preheader\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := 2, fc.Forest().Len(); want != got {
		t.Errorf("loops\nwant: %d\ngot: %d\n", want, got)
	}
}

func TestConfig(t *testing.T) {
	c := NewConfig().WithMaxRounds(0).WithLogger(nil).WithConservativeDeps(true).Config()
	if want, got := 1, c.maxRounds; want != got {
		t.Errorf("max rounds\nwant: %d\ngot: %d\n", want, got)
	}
	if c.logger == nil {
		t.Errorf("nil logger should be replaced")
	}
	if p := New(c); !p.fusion.Conservative {
		t.Errorf("fusion should be conservative")
	}
}
