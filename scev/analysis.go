package scev

import (
	"github.com/fatih/color"
	"github.com/nickng/loopopt/internal/logging"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// Analysis builds expressions for the values of one function. It holds
// references to the loop forest it was created with and must be discarded
// when the forest is recomputed.
type Analysis struct {
	f      *ir.Func
	forest *loop.Forest
	cache  map[ir.ID]Expr
	log    []ir.ID // cache insertion order
	btc    map[*loop.Loop]Expr
	logger *logging.Logger
}

// New returns an analysis of f over its loop forest.
func New(f *ir.Func, forest *loop.Forest) *Analysis {
	return &Analysis{
		f:      f,
		forest: forest,
		cache:  make(map[ir.ID]Expr),
		btc:    make(map[*loop.Loop]Expr),
		logger: logging.Nop().Tagged(color.MagentaString("scev ")),
	}
}

// SetLogger sets the logger for the analysis.
func (a *Analysis) SetLogger(l *logging.Logger) {
	a.logger = l.Tagged(color.MagentaString("scev "))
}

// Forest returns the loop forest the analysis was built on.
func (a *Analysis) Forest() *loop.Forest { return a.forest }

// Of returns the expression for v.
func (a *Analysis) Of(v ir.Value) Expr {
	switch v.Kind {
	case ir.KindConst:
		return NewConstant(v.Const)
	case ir.KindParam:
		return &Unknown{V: v, Block: ir.NoBlock}
	case ir.KindInstr:
		if e, ok := a.cache[v.ID]; ok {
			return e
		}
		e := a.instr(v.ID)
		a.remember(v.ID, e)
		return e
	}
	return CouldNotCompute
}

func (a *Analysis) remember(id ir.ID, e Expr) {
	if _, ok := a.cache[id]; !ok {
		a.log = append(a.log, id)
	}
	a.cache[id] = e
}

func (a *Analysis) unknown(id ir.ID) Expr {
	return &Unknown{V: ir.Ref(id), Block: a.f.BlockOf(id)}
}

func (a *Analysis) instr(id ir.ID) Expr {
	in := a.f.Instr(id)
	if in == nil {
		return CouldNotCompute
	}
	switch in.Op {
	case ir.OpAdd:
		return NewAdd(a.Of(in.Arg(0)), a.Of(in.Arg(1)))
	case ir.OpSub:
		return Minus(a.Of(in.Arg(0)), a.Of(in.Arg(1)))
	case ir.OpMul:
		return NewMul(a.Of(in.Arg(0)), a.Of(in.Arg(1)))
	case ir.OpShl:
		if y := in.Arg(1); y.IsConst() && y.Const >= 0 && y.Const < 63 {
			return NewMul(a.Of(in.Arg(0)), NewConstant(1<<uint(y.Const)))
		}
	case ir.OpSExt:
		return NewSignExtend(a.Of(in.Arg(0)), in.Width)
	case ir.OpAddr:
		return NewAdd(a.Of(in.Arg(0)), a.Of(in.Arg(1)))
	case ir.OpPhi:
		return a.phi(in)
	}
	return a.unknown(id)
}

// phi recognises header phis of the form i = phi [start, preheader side],
// [i + step, latch] with step invariant in the loop.
func (a *Analysis) phi(in *ir.Instr) Expr {
	id := in.ID()
	l := a.forest.ByHeader(in.Block())
	if l == nil || l.Latch == ir.NoBlock || len(in.Incoming()) != 2 {
		return a.unknown(id)
	}
	var start, next ir.Value
	for n, b := range in.Incoming() {
		switch {
		case b == l.Latch:
			next = in.Arg(n)
		case !l.Contains(b):
			start = in.Arg(n)
		}
	}
	if !start.Valid() || !next.Valid() {
		return a.unknown(id)
	}

	// Evaluate the latch value with the phi standing for itself. Anything
	// cached meanwhile may depend on that placeholder and is dropped.
	self := a.unknown(id)
	mark := len(a.log)
	a.remember(id, self)
	diff := Minus(a.Of(next), self)
	for _, stale := range a.log[mark:] {
		delete(a.cache, stale)
	}
	a.log = a.log[:mark]

	if IsCouldNotCompute(diff) || !IsInvariant(diff, l) {
		return self
	}
	return NewAddRec(a.Of(start), diff, l)
}

// BackedgeTakenCount returns the number of times the back edge of l is
// taken, or CouldNotCompute.
//
// The count is known for loops with a single exiting block, the header or
// the latch, branching on a comparison between an affine recurrence of l
// with constant step and a bound invariant in l. Symbolic counts assume the
// loop is entered and that the bound is reached.
func (a *Analysis) BackedgeTakenCount(l *loop.Loop) Expr {
	if e, ok := a.btc[l]; ok {
		return e
	}
	e := a.backedgeTakenCount(l)
	a.btc[l] = e
	a.logger.Debugf("%s backedge-taken count of %s: %s", a.logger.Module(), l.Header, e)
	return e
}

func (a *Analysis) backedgeTakenCount(l *loop.Loop) Expr {
	f := a.f
	exiting := l.ExitingBlock()
	if l.Latch == ir.NoBlock || exiting == ir.NoBlock || (exiting != l.Header && exiting != l.Latch) {
		return CouldNotCompute
	}
	t := f.Instr(f.Terminator(exiting))
	if t == nil || t.Op != ir.OpIf || !t.Arg(0).IsInstr() {
		return CouldNotCompute
	}
	cmp := f.Instr(t.Arg(0).ID)
	if cmp.Op != ir.OpCmp {
		return CouldNotCompute
	}
	pred := cmp.Pred
	succs := t.Succs()
	switch {
	case l.Contains(succs[0]) && !l.Contains(succs[1]):
	case !l.Contains(succs[0]) && l.Contains(succs[1]):
		pred = pred.Negate()
	default:
		return CouldNotCompute
	}

	lhs, rhs := a.Of(cmp.Arg(0)), a.Of(cmp.Arg(1))
	if r, ok := rhs.(*AddRec); ok && r.Loop == l {
		lhs, rhs = rhs, lhs
		pred = pred.Swap()
	}
	rec, ok := lhs.(*AddRec)
	if !ok || rec.Loop != l || !IsInvariant(rhs, l) {
		return CouldNotCompute
	}
	step, ok := constOf(rec.Step)
	if !ok || step == 0 {
		return CouldNotCompute
	}
	if s, ok := constOf(rec.Start); ok {
		if b, ok := constOf(rhs); ok {
			return constantCount(pred, s, step, b)
		}
	}
	return symbolicCount(pred, rec.Start, step, rhs)
}

// constantCount is the least k >= 0 for which pred(s + k*step, b) is false.
func constantCount(pred ir.Pred, s, step, b int64) Expr {
	if !pred.Eval(s, b) {
		return NewConstant(0)
	}
	switch pred {
	case ir.PredULT, ir.PredULE, ir.PredUGT, ir.PredUGE:
		if s < 0 || b < 0 {
			return CouldNotCompute
		}
		pred = map[ir.Pred]ir.Pred{
			ir.PredULT: ir.PredSLT, ir.PredULE: ir.PredSLE,
			ir.PredUGT: ir.PredSGT, ir.PredUGE: ir.PredSGE,
		}[pred]
	}
	switch {
	case pred == ir.PredSLT && step > 0:
		return NewConstant(ceilDiv(b-s, step))
	case pred == ir.PredSLE && step > 0:
		return NewConstant((b-s)/step + 1)
	case pred == ir.PredSGT && step < 0:
		return NewConstant(ceilDiv(s-b, -step))
	case pred == ir.PredSGE && step < 0:
		return NewConstant((s-b)/(-step) + 1)
	case pred == ir.PredNE:
		if d := b - s; d%step == 0 && d/step > 0 {
			return NewConstant(d / step)
		}
	case pred == ir.PredEQ:
		return NewConstant(1)
	}
	return CouldNotCompute
}

func ceilDiv(x, y int64) int64 { return (x + y - 1) / y }

func symbolicCount(pred ir.Pred, start Expr, step int64, bound Expr) Expr {
	switch {
	case step == 1 && (pred == ir.PredSLT || pred == ir.PredULT || pred == ir.PredNE):
		return Minus(bound, start)
	case step == 1 && (pred == ir.PredSLE || pred == ir.PredULE):
		return NewAdd(Minus(bound, start), NewConstant(1))
	case step == -1 && (pred == ir.PredSGT || pred == ir.PredUGT || pred == ir.PredNE):
		return Minus(start, bound)
	case step == -1 && (pred == ir.PredSGE || pred == ir.PredUGE):
		return NewAdd(Minus(start, bound), NewConstant(1))
	}
	return CouldNotCompute
}

// AtScope returns e as seen from inside l: recurrences of loops that do not
// enclose l are replaced by their value on exit from their loop.
func (a *Analysis) AtScope(e Expr, l *loop.Loop) Expr {
	switch e := e.(type) {
	case *AddRec:
		start, step := a.AtScope(e.Start, l), a.AtScope(e.Step, l)
		if l != nil && e.Loop.ContainsLoop(l) {
			return NewAddRec(start, step, e.Loop)
		}
		n := a.BackedgeTakenCount(e.Loop)
		if IsCouldNotCompute(n) {
			return CouldNotCompute
		}
		return NewAdd(start, NewMul(step, n))
	case *Add:
		ops := make([]Expr, len(e.Ops))
		for i, op := range e.Ops {
			ops[i] = a.AtScope(op, l)
		}
		return NewAdd(ops...)
	case *Mul:
		r := NewConstant(1)
		for _, op := range e.Ops {
			r = NewMul(r, a.AtScope(op, l))
		}
		return r
	case *SignExtend:
		return NewSignExtend(a.AtScope(e.X, l), e.From)
	}
	return e
}

// AddressAt is the expression of the address operand of the load or store
// id, at the scope of l.
func (a *Analysis) AddressAt(id ir.ID, l *loop.Loop) Expr {
	return a.AtScope(a.Of(a.f.Instr(id).Arg(0)), l)
}
