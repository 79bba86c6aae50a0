package licm

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/nickng/loopopt/dom"
	"github.com/nickng/loopopt/interp"
	"github.com/nickng/loopopt/ir"
	. "github.com/nickng/loopopt/ir/irtest"
	"github.com/nickng/loopopt/loop"
	"github.com/nickng/loopopt/store"
)

// for i := 0; i < n; i++ { t := x + 0; a[i] = t }; return i
func deadAtExit() *Func {
	return Fun("deadAtExit", []string{"a", "n", "x"},
		Bloc("entry",
			Goto("header")),
		Bloc("header",
			Phi("i", In("entry", C(0)), In("latch", V("inext"))),
			Cmp("c", ir.PredSLT, V("i"), P(1)),
			If(V("c"), "body", "exit")),
		Bloc("body",
			Valu("t", ir.OpAdd, P(2), C(0)),
			Valu("u", ir.OpMul, V("t"), V("i")),
			Valu("w", ir.OpMul, V("t"), C(3)),
			Addr("p", P(0), V("i")),
			Load("v", V("p")),
			Valu("s", ir.OpAdd, V("v"), V("w")),
			Valu("r", ir.OpAdd, V("s"), V("u")),
			Store(V("p"), V("r")),
			Goto("latch")),
		Bloc("latch",
			Valu("inext", ir.OpAdd, V("i"), C(1)),
			Goto("header")),
		Bloc("exit",
			Exit(V("i"))),
	)
}

type facts struct {
	dt     *dom.Tree
	forest *loop.Forest
}

func analyse(t *testing.T, fn *Func) facts {
	if err := ir.Verify(fn.F); err != nil {
		t.Fatal(err)
	}
	dt := dom.New(fn.F)
	return facts{dt: dt, forest: loop.Find(fn.F, dt)}
}

func names(fn *Func, ids []ir.ID) []string {
	byID := make(map[ir.ID]string)
	for name, id := range fn.Values {
		byID[id] = name
	}
	var s []string
	for _, id := range ids {
		s = append(s, byID[id])
	}
	return s
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFindInvariants(t *testing.T) {
	fn := deadAtExit()
	fc := analyse(t, fn)
	l := fc.forest.ByHeader(fn.B("header"))
	s := NewCandidates()
	FindInvariants(fn.F, l, s)
	if want, got := []string{"t", "w"}, names(fn, s.IDs()); !sameNames(want, got) {
		t.Errorf("invariants\nwant: %v\ngot: %v\n", want, got)
	}

	// Candidates persist: a second scan adds nothing new.
	FindInvariants(fn.F, l, s)
	if want, got := 2, s.Len(); want != got {
		t.Errorf("candidates after rescan\nwant: %d\ngot: %d\n", want, got)
	}
}

// TestFindInvariantsGenerated labels random chains of arithmetic over the
// induction variable, a parameter, constants, a value computed before the
// loop and earlier links of the chain. A link must be labeled exactly when
// none of its operands reaches the induction variable, and a labeled link
// must take the same value on every iteration.
func TestFindInvariantsGenerated(t *testing.T) {
	ops := []ir.Op{ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpXor, ir.OpAnd, ir.OpOr}
	const trips = 5
	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		n := 2 + rng.Intn(8)
		varies := make([]bool, n)
		operand := func(k int) (Arg, bool) {
			switch rng.Intn(5) {
			case 0:
				return V("i"), true
			case 1:
				return P(0), false
			case 2:
				return C(int64(rng.Intn(7) - 3)), false
			case 3:
				return V("o"), false
			}
			if k == 0 {
				return V("i"), true
			}
			j := rng.Intn(k)
			return V(fmt.Sprintf("v%d", j)), varies[j]
		}
		var body, latch []Instr
		split := 1 + rng.Intn(n)
		for k := 0; k < n; k++ {
			x, dx := operand(k)
			y, dy := operand(k)
			varies[k] = dx || dy
			name := fmt.Sprintf("v%d", k)
			link := []Instr{
				Valu(name, ops[rng.Intn(len(ops))], x, y),
				Call("r"+name, "observe", C(int64(k)), V(name)),
			}
			if k < split {
				body = append(body, link...)
			} else {
				latch = append(latch, link...)
			}
		}
		fn := Fun("chain", []string{"x"},
			Bloc("entry",
				Valu("o", ir.OpMul, P(0), C(3)),
				Goto("header")),
			Bloc("header",
				Phi("i", In("entry", C(0)), In("latch", V("inext"))),
				Cmp("c", ir.PredSLT, V("i"), C(trips)),
				If(V("c"), "body", "exit")),
			Bloc("body", append(body, Goto("latch"))...),
			Bloc("latch", append(latch,
				Valu("inext", ir.OpAdd, V("i"), C(1)),
				Goto("header"))...),
			Bloc("exit",
				Exit(V("i"))),
		)
		fc := analyse(t, fn)
		s := NewCandidates()
		FindInvariants(fn.F, fc.forest.ByHeader(fn.B("header")), s)

		var want, got []string
		for k := 0; k < n; k++ {
			if !varies[k] {
				want = append(want, fmt.Sprintf("v%d", k))
			}
		}
		labeled := make(map[int64]bool)
		for _, name := range names(fn, s.IDs()) {
			if !strings.HasPrefix(name, "v") {
				t.Errorf("seed %d: %s should not be invariant", seed, name)
				continue
			}
			got = append(got, name)
			var k int64
			fmt.Sscanf(name, "v%d", &k)
			labeled[k] = true
		}
		if !sameNames(want, got) {
			t.Errorf("seed %d: invariants\nwant: %v\ngot: %v\n%s", seed, want, got, fn.F)
			continue
		}

		res, err := interp.Run(fn.F, []int64{7}, store.New(), interp.Options{})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if want, got := trips*n, len(res.Calls); want != got {
			t.Fatalf("seed %d: observations\nwant: %d\ngot: %d\n", seed, want, got)
		}
		first := make(map[int64]int64)
		for _, c := range res.Calls {
			k, v := c.Args[0], c.Args[1]
			if !labeled[k] {
				continue
			}
			if w, ok := first[k]; ok && w != v {
				t.Errorf("seed %d: v%d is labeled invariant but takes %d and %d", seed, k, w, v)
			}
			first[k] = v
		}
	}
}

// t is defined in a block that does not dominate the exit, but it is only
// used inside the loop.
func TestHoistDeadAtExit(t *testing.T) {
	fn := deadAtExit()
	orig := fn.F.Clone()
	fc := analyse(t, fn)

	moved := New().Run(fn.F, fc.dt, fc.forest)
	if want, got := 2, moved; want != got {
		t.Fatalf("moved instructions\nwant: %d\ngot: %d\n", want, got)
	}
	if err := ir.Verify(fn.F); err != nil {
		t.Fatalf("malformed after motion: %v\n%s", err, fn.F)
	}
	for _, name := range []string{"t", "w"} {
		if want, got := fn.B("entry"), fn.F.BlockOf(fn.V(name)); want != got {
			t.Errorf("block of %s\nwant: %s\ngot: %s\n", name, want, got)
		}
	}
	ins := fn.F.Instrs(fn.B("entry"))
	if len(ins) != 3 || ins[0] != fn.V("t") || ins[1] != fn.V("w") {
		t.Errorf("preheader should hold t, w, jump in order, got %v", ins)
	}
	for _, id := range fn.F.Instrs(fn.B("body")) {
		if id == fn.V("t") {
			t.Errorf("loop body still contains t")
		}
	}

	mem := store.New()
	a := mem.Put("a", []int64{5, 6, 7, 8, 9})
	for _, n := range []int64{0, 1, 5} {
		if err := interp.Compare(orig, fn.F, []int64{a, n, 4}, mem); err != nil {
			t.Errorf("n=%d: %v", n, err)
		}
	}

	if again := New().Run(fn.F, fc.dt, fc.forest); again != 0 {
		t.Errorf("second run should move nothing, moved %d", again)
	}
}

// t does not dominate exit, where it is returned through out.
func TestLiveAtExit(t *testing.T) {
	fn := Fun("liveAtExit", []string{"n", "x"},
		Bloc("entry",
			Goto("header")),
		Bloc("header",
			Phi("i", In("entry", C(0)), In("latch", V("inext"))),
			Cmp("c", ir.PredSLT, V("i"), P(0)),
			If(V("c"), "body", "exit")),
		Bloc("body",
			Valu("t", ir.OpMul, P(1), C(2)),
			Cmp("c5", ir.PredEQ, V("i"), C(5)),
			If(V("c5"), "out", "latch")),
		Bloc("latch",
			Valu("inext", ir.OpAdd, V("i"), C(1)),
			Goto("header")),
		Bloc("out",
			Exit(V("t"))),
		Bloc("exit",
			Exit(C(0))),
	)
	fc := analyse(t, fn)
	l := fc.forest.ByHeader(fn.B("header"))
	s := NewCandidates()
	FindInvariants(fn.F, l, s)
	var reasons []Reason
	FilterLegal(fn.F, l, fc.dt, s, func(id ir.ID, r Reason) { reasons = append(reasons, r) })
	if s.Len() != 0 || len(reasons) != 1 || reasons[0] != LiveAtExit {
		t.Errorf("t should be dropped as live at exit, left %v dropped %v", s.IDs(), reasons)
	}
}

func TestMultipleDefs(t *testing.T) {
	fn := Fun("multipleDefs", []string{"n", "x"},
		Bloc("entry",
			Goto("header")),
		Bloc("header",
			Phi("i", In("entry", C(0)), In("join", V("inext"))),
			Cmp("c", ir.PredSLT, V("i"), P(0)),
			If(V("c"), "body", "exit")),
		Bloc("body",
			Cmp("odd", ir.PredNE, V("i"), C(3)),
			If(V("odd"), "then", "else")),
		Bloc("then",
			Valu("t", ir.OpAdd, P(1), C(1)),
			Goto("join")),
		Bloc("else",
			Goto("join")),
		Bloc("join",
			Phi("m", In("then", V("t")), In("else", V("i"))),
			Valu("inext", ir.OpAdd, V("i"), C(1)),
			Goto("header")),
		Bloc("exit",
			Exit(V("i"))),
	)
	fc := analyse(t, fn)
	l := fc.forest.ByHeader(fn.B("header"))
	s := NewCandidates()
	FindInvariants(fn.F, l, s)
	var reasons []Reason
	FilterLegal(fn.F, l, fc.dt, s, func(id ir.ID, r Reason) { reasons = append(reasons, r) })
	if s.Len() != 0 || len(reasons) != 1 || reasons[0] != MultipleDefs {
		t.Errorf("t should be dropped for multiple definitions, left %v dropped %v", s.IDs(), reasons)
	}
}

func TestMayTrap(t *testing.T) {
	fn := Fun("div", []string{"n", "x", "y"},
		Bloc("entry",
			Goto("header")),
		Bloc("header",
			Phi("i", In("entry", C(0)), In("header", V("inext"))),
			Valu("q", ir.OpSDiv, P(1), P(2)),
			Valu("h", ir.OpSDiv, P(1), C(4)),
			Valu("z", ir.OpSRem, P(1), C(0)),
			Valu("inext", ir.OpAdd, V("i"), C(1)),
			Cmp("c", ir.PredSLT, V("inext"), P(0)),
			If(V("c"), "header", "exit")),
		Bloc("exit",
			Exit(V("q"), V("h"), V("z"))),
	)
	fc := analyse(t, fn)
	l := fc.forest.ByHeader(fn.B("header"))
	s := NewCandidates()
	FindInvariants(fn.F, l, s)
	dropped := make(map[string]Reason)
	FilterLegal(fn.F, l, fc.dt, s, func(id ir.ID, r Reason) { dropped[names(fn, []ir.ID{id})[0]] = r })
	if want, got := []string{"h"}, names(fn, s.IDs()); !sameNames(want, got) {
		t.Errorf("legal candidates\nwant: %v\ngot: %v\n", want, got)
	}
	if dropped["q"] != MayTrap || dropped["z"] != MayTrap {
		t.Errorf("q and z should be dropped as trapping, got %v", dropped)
	}
}

func TestNoExits(t *testing.T) {
	fn := Fun("spin", []string{"x"},
		Bloc("entry",
			Goto("header")),
		Bloc("header",
			Valu("t", ir.OpAdd, P(0), C(1)),
			Call("", "use", V("t")),
			Goto("header")),
	)
	fc := analyse(t, fn)
	l := fc.forest.ByHeader(fn.B("header"))
	s := NewCandidates()
	FindInvariants(fn.F, l, s)
	if s.Len() != 1 {
		t.Fatalf("t should be invariant, got %v", s.IDs())
	}
	var reasons []Reason
	FilterLegal(fn.F, l, fc.dt, s, func(id ir.ID, r Reason) { reasons = append(reasons, r) })
	if s.Len() != 0 || len(reasons) != 1 || reasons[0] != NoExits {
		t.Errorf("loop without exits should drop every candidate, dropped %v", reasons)
	}
}

// Candidates listed before their operands are still moved operands first.
func TestHoistOperandsFirst(t *testing.T) {
	fn := Fun("chain", []string{"n", "x"},
		Bloc("entry",
			Goto("header")),
		Bloc("header",
			Phi("i", In("entry", C(0)), In("header", V("inext"))),
			Valu("t", ir.OpAdd, P(1), C(1)),
			Valu("u", ir.OpMul, V("t"), C(2)),
			Valu("v", ir.OpAdd, V("u"), V("i")),
			Valu("inext", ir.OpAdd, V("i"), C(1)),
			Cmp("c", ir.PredSLT, V("inext"), P(0)),
			If(V("c"), "header", "exit")),
		Bloc("exit",
			Exit(V("i"))),
	)
	fc := analyse(t, fn)
	l := fc.forest.ByHeader(fn.B("header"))
	s := NewCandidates()
	s.Add(fn.V("u"))
	s.Add(fn.V("t"))
	s.Add(fn.V("v")) // operand i cannot move
	moved := Hoist(fn.F, l, s)
	if want, got := []string{"t", "u"}, names(fn, moved); !sameNames(want, got) {
		t.Errorf("moved\nwant: %v\ngot: %v\n", want, got)
	}
	if s.Len() != 0 {
		t.Errorf("candidates should be empty after Hoist, got %v", s.IDs())
	}
	if want, got := fn.B("header"), fn.F.BlockOf(fn.V("v")); want != got {
		t.Errorf("v should stay in the loop\nwant: %s\ngot: %s\n", want, got)
	}
	if err := ir.Verify(fn.F); err != nil {
		t.Error(err)
	}
}

func TestHoistNoPreheader(t *testing.T) {
	fn := Fun("twoEntries", []string{"n", "x"},
		Bloc("entry",
			Cmp("c0", ir.PredSGT, P(0), C(0)),
			If(V("c0"), "header", "side")),
		Bloc("side",
			Goto("header")),
		Bloc("header",
			Phi("i", In("entry", C(0)), In("side", C(1)), In("header", V("inext"))),
			Valu("t", ir.OpAdd, P(1), C(1)),
			Valu("inext", ir.OpAdd, V("i"), V("t")),
			Cmp("c", ir.PredSLT, V("inext"), P(0)),
			If(V("c"), "header", "exit")),
		Bloc("exit",
			Exit(V("i"))),
	)
	fc := analyse(t, fn)
	l := fc.forest.ByHeader(fn.B("header"))
	if l.Preheader != ir.NoBlock {
		t.Fatalf("loop should have no preheader, got %s", l.Preheader)
	}
	if moved := New().Run(fn.F, fc.dt, fc.forest); moved != 0 {
		t.Errorf("nothing should move without a preheader, moved %d", moved)
	}
	if want, got := fn.B("header"), fn.F.BlockOf(fn.V("t")); want != got {
		t.Errorf("block of t\nwant: %s\ngot: %s\n", want, got)
	}
}

// for i := 0; i < n; i++ { for j := 0; j < n; j++ { a[j] = x * y } }
func TestHoistNested(t *testing.T) {
	fn := Fun("nested", []string{"a", "n", "x", "y"},
		Bloc("entry",
			Goto("oh")),
		Bloc("oh",
			Phi("i", In("entry", C(0)), In("olatch", V("inext"))),
			Cmp("ci", ir.PredSLT, V("i"), P(1)),
			If(V("ci"), "ipre", "exit")),
		Bloc("ipre",
			Goto("ih")),
		Bloc("ih",
			Phi("j", In("ipre", C(0)), In("ilatch", V("jnext"))),
			Cmp("cj", ir.PredSLT, V("j"), P(1)),
			If(V("cj"), "ilatch", "olatch")),
		Bloc("ilatch",
			Valu("w", ir.OpMul, P(2), P(3)),
			Valu("wi", ir.OpAdd, V("w"), V("i")),
			Addr("p", P(0), V("j")),
			Store(V("p"), V("wi")),
			Valu("jnext", ir.OpAdd, V("j"), C(1)),
			Goto("ih")),
		Bloc("olatch",
			Valu("inext", ir.OpAdd, V("i"), C(1)),
			Goto("oh")),
		Bloc("exit",
			Exit()),
	)
	orig := fn.F.Clone()
	fc := analyse(t, fn)
	if moved := New().Run(fn.F, fc.dt, fc.forest); moved != 2 {
		t.Errorf("moved instructions\nwant: 2\ngot: %d\n", moved)
	}
	if want, got := fn.B("entry"), fn.F.BlockOf(fn.V("w")); want != got {
		t.Errorf("w should leave both loops\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := fn.B("ipre"), fn.F.BlockOf(fn.V("wi")); want != got {
		t.Errorf("wi should leave the inner loop only\nwant: %s\ngot: %s\n", want, got)
	}
	if err := ir.Verify(fn.F); err != nil {
		t.Fatal(err)
	}
	mem := store.New()
	a := mem.Put("a", make([]int64, 4))
	if err := interp.Compare(orig, fn.F, []int64{a, 4, 3, 5}, mem); err != nil {
		t.Error(err)
	}
}
