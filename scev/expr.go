// Package scev describes integer values of an ir.Func in closed form, as
// functions of the iteration numbers of the loops enclosing them.
//
// Expressions are kept in a canonical form: sums are flattened with their
// constant first and remaining terms sorted, constant factors are folded, and
// a sum of an affine recurrence with terms invariant in its loop is folded
// into the start of the recurrence. Two expressions are therefore compared
// structurally with Equal.
package scev

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// Expr is a symbolic expression.
type Expr interface {
	fmt.Stringer
	expr()
}

// Constant is an integer constant.
type Constant struct{ V int64 }

// Unknown is an opaque value: a parameter or an instruction whose value has
// no closed form.
type Unknown struct {
	V     ir.Value
	Block ir.BlockID // defining block, NoBlock for parameters
}

// AddRec is the affine recurrence {Start,+,Step} over the iterations of Loop:
// its value at iteration k is Start + k*Step.
type AddRec struct {
	Start, Step Expr
	Loop        *loop.Loop
}

// Add is a sum of at least two terms.
type Add struct{ Ops []Expr }

// Mul is a product of at least two factors.
type Mul struct{ Ops []Expr }

// SignExtend is X sign-extended from its From low bits.
type SignExtend struct {
	X    Expr
	From int
}

type couldNotCompute struct{}

// CouldNotCompute is the result for values with no representation.
var CouldNotCompute Expr = couldNotCompute{}

func (*Constant) expr()       {}
func (*Unknown) expr()        {}
func (*AddRec) expr()         {}
func (*Add) expr()            {}
func (*Mul) expr()            {}
func (*SignExtend) expr()     {}
func (couldNotCompute) expr() {}

func (c *Constant) String() string { return fmt.Sprintf("%d", c.V) }
func (u *Unknown) String() string  { return "%" + u.V.String() }
func (r *AddRec) String() string {
	return fmt.Sprintf("{%s,+,%s}<%s>", r.Start, r.Step, r.Loop.Header)
}
func (a *Add) String() string        { return join(a.Ops, " + ") }
func (m *Mul) String() string        { return join(m.Ops, " * ") }
func (s *SignExtend) String() string { return fmt.Sprintf("(sext i%d %s)", s.From, s.X) }
func (couldNotCompute) String() string {
	return "***COULDNOTCOMPUTE***"
}

func join(ops []Expr, sep string) string {
	var buf bytes.Buffer
	buf.WriteString("(")
	for i, op := range ops {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(op.String())
	}
	buf.WriteString(")")
	return buf.String()
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Expr) bool { return a.String() == b.String() }

// NewConstant returns the constant v.
func NewConstant(v int64) Expr { return &Constant{V: v} }

// IsCouldNotCompute reports whether e is CouldNotCompute.
func IsCouldNotCompute(e Expr) bool {
	_, ok := e.(couldNotCompute)
	return ok
}

func constOf(e Expr) (int64, bool) {
	if c, ok := e.(*Constant); ok {
		return c.V, true
	}
	return 0, false
}

// IsInvariant reports whether e does not change over the iterations of l.
func IsInvariant(e Expr, l *loop.Loop) bool {
	switch e := e.(type) {
	case *Constant:
		return true
	case *Unknown:
		return e.Block == ir.NoBlock || !l.Contains(e.Block)
	case *AddRec:
		return !l.ContainsLoop(e.Loop) && IsInvariant(e.Start, l) && IsInvariant(e.Step, l)
	case *Add:
		return allInvariant(e.Ops, l)
	case *Mul:
		return allInvariant(e.Ops, l)
	case *SignExtend:
		return IsInvariant(e.X, l)
	}
	return false
}

func allInvariant(ops []Expr, l *loop.Loop) bool {
	for _, op := range ops {
		if !IsInvariant(op, l) {
			return false
		}
	}
	return true
}

// NewAddRec returns {start,+,step} over l, or start if step is zero.
func NewAddRec(start, step Expr, l *loop.Loop) Expr {
	if IsCouldNotCompute(start) || IsCouldNotCompute(step) {
		return CouldNotCompute
	}
	if c, ok := constOf(step); ok && c == 0 {
		return start
	}
	return &AddRec{Start: start, Step: step, Loop: l}
}

type term struct {
	coef int64
	atom Expr
}

type recSum struct {
	l      *loop.Loop
	starts []Expr
	steps  []Expr
}

// NewAdd returns the canonical sum of ops.
func NewAdd(ops ...Expr) Expr {
	var (
		c     int64
		terms = make(map[string]*term)
		recs  = make(map[ir.BlockID]*recSum)
		keys  []string
		heads []ir.BlockID
		bad   bool
	)
	var flatten func(e Expr, k int64)
	flatten = func(e Expr, k int64) {
		switch e := e.(type) {
		case couldNotCompute:
			bad = true
		case *Constant:
			c += k * e.V
		case *Add:
			for _, op := range e.Ops {
				flatten(op, k)
			}
		case *AddRec:
			r, ok := recs[e.Loop.Header]
			if !ok {
				r = &recSum{l: e.Loop}
				recs[e.Loop.Header] = r
				heads = append(heads, e.Loop.Header)
			}
			r.starts = append(r.starts, scale(e.Start, k))
			r.steps = append(r.steps, scale(e.Step, k))
		case *Mul:
			if k2, ok := constOf(e.Ops[0]); ok {
				rest := e.Ops[1:]
				if len(rest) == 1 {
					flatten(rest[0], k*k2)
				} else {
					flatten(&Mul{Ops: rest}, k*k2)
				}
				return
			}
			addTerm(terms, &keys, e, k)
		default:
			addTerm(terms, &keys, e, k)
		}
	}
	for _, op := range ops {
		flatten(op, 1)
	}
	if bad {
		return CouldNotCompute
	}

	var rs, cancelled []Expr
	for _, h := range heads {
		r := recs[h]
		rec := NewAddRec(NewAdd(r.starts...), NewAdd(r.steps...), r.l)
		if IsCouldNotCompute(rec) {
			return CouldNotCompute
		}
		if ar, ok := rec.(*AddRec); ok && ar.Loop == r.l {
			rs = append(rs, rec)
		} else {
			cancelled = append(cancelled, rec)
		}
	}
	var rest []Expr
	sort.Strings(keys)
	for _, key := range keys {
		t := terms[key]
		if t.coef != 0 {
			rest = append(rest, scale(t.atom, t.coef))
		}
	}

	// A recurrence whose step cancelled leaves its start behind, which may
	// hold recurrences of enclosing loops: sum again without it.
	if len(cancelled) > 0 {
		pieces := append([]Expr{NewConstant(c)}, rest...)
		pieces = append(pieces, rs...)
		return NewAdd(append(pieces, cancelled...)...)
	}

	// Fold everything invariant in the innermost recurrence into its start.
	if len(rs) > 0 {
		inner := 0
		for i, r := range rs {
			if r.(*AddRec).Loop.Depth > rs[inner].(*AddRec).Loop.Depth {
				inner = i
			}
		}
		target := rs[inner].(*AddRec)
		others := append([]Expr(nil), rest...)
		for i, r := range rs {
			if i != inner {
				others = append(others, r)
			}
		}
		if foldable(others, target.Loop) {
			if c != 0 {
				others = append(others, NewConstant(c))
			}
			if len(others) == 0 {
				return target
			}
			return NewAddRec(NewAdd(append(others, target.Start)...), target.Step, target.Loop)
		}
		rest = append(rest, rs...)
		sort.SliceStable(rest, func(i, j int) bool { return rest[i].String() < rest[j].String() })
	}

	if len(rest) == 0 {
		return NewConstant(c)
	}
	if c == 0 && len(rest) == 1 {
		return rest[0]
	}
	var out []Expr
	if c != 0 {
		out = append(out, NewConstant(c))
	}
	return &Add{Ops: append(out, rest...)}
}

// foldable reports whether terms may join the start of a recurrence of l:
// they are invariant in l, and recurrences among them belong to loops
// enclosing l.
func foldable(terms []Expr, l *loop.Loop) bool {
	for _, t := range terms {
		if r, ok := t.(*AddRec); ok && !r.Loop.ContainsLoop(l) {
			return false
		}
	}
	return allInvariant(terms, l)
}

func addTerm(terms map[string]*term, keys *[]string, e Expr, k int64) {
	key := e.String()
	if t, ok := terms[key]; ok {
		t.coef += k
		return
	}
	terms[key] = &term{coef: k, atom: e}
	*keys = append(*keys, key)
}

func scale(e Expr, k int64) Expr {
	if k == 1 {
		return e
	}
	return NewMul(NewConstant(k), e)
}

// NewMul returns the canonical product of a and b.
func NewMul(a, b Expr) Expr {
	if IsCouldNotCompute(a) || IsCouldNotCompute(b) {
		return CouldNotCompute
	}
	c := int64(1)
	var factors []Expr
	var collect func(e Expr)
	collect = func(e Expr) {
		switch e := e.(type) {
		case *Constant:
			c *= e.V
		case *Mul:
			for _, op := range e.Ops {
				collect(op)
			}
		default:
			factors = append(factors, e)
		}
	}
	collect(a)
	collect(b)
	if c == 0 || len(factors) == 0 {
		return NewConstant(c)
	}
	if len(factors) == 1 {
		switch x := factors[0].(type) {
		case *Add:
			ops := make([]Expr, len(x.Ops))
			for i, op := range x.Ops {
				ops[i] = NewMul(NewConstant(c), op)
			}
			return NewAdd(ops...)
		case *AddRec:
			return NewAddRec(NewMul(NewConstant(c), x.Start), NewMul(NewConstant(c), x.Step), x.Loop)
		}
		if c == 1 {
			return factors[0]
		}
	}
	// A recurrence times a factor invariant in its loop stays affine.
	if len(factors) == 2 {
		for i, f := range factors {
			r, ok := f.(*AddRec)
			other := factors[1-i]
			if ok && IsInvariant(other, r.Loop) {
				k := NewMul(NewConstant(c), other)
				return NewAddRec(NewMul(k, r.Start), NewMul(k, r.Step), r.Loop)
			}
		}
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].String() < factors[j].String() })
	var ops []Expr
	if c != 1 {
		ops = append(ops, NewConstant(c))
	}
	return &Mul{Ops: append(ops, factors...)}
}

// NewSignExtend returns x sign-extended from its low from bits. Signed
// recurrences and sums are assumed not to overflow, so the extension is
// pushed into their operands.
func NewSignExtend(x Expr, from int) Expr {
	if from <= 0 || from >= 64 {
		return x
	}
	switch x := x.(type) {
	case couldNotCompute:
		return CouldNotCompute
	case *Constant:
		shift := uint(64 - from)
		return NewConstant((x.V << shift) >> shift)
	case *AddRec:
		return NewAddRec(NewSignExtend(x.Start, from), NewSignExtend(x.Step, from), x.Loop)
	case *Add:
		ops := make([]Expr, len(x.Ops))
		for i, op := range x.Ops {
			ops[i] = NewSignExtend(op, from)
		}
		return NewAdd(ops...)
	case *SignExtend:
		if x.From <= from {
			return x
		}
	}
	return &SignExtend{X: x, From: from}
}

// Minus returns a - b.
func Minus(a, b Expr) Expr {
	return NewAdd(a, NewMul(NewConstant(-1), b))
}
