package scev

// signs is the set of signs an expression may take.
type signs uint8

const (
	neg signs = 1 << iota
	zero
	pos

	anySign = neg | zero | pos
)

func signOf(v int64) signs {
	switch {
	case v < 0:
		return neg
	case v > 0:
		return pos
	}
	return zero
}

func each(s signs, fn func(signs)) {
	for _, b := range []signs{neg, zero, pos} {
		if s&b != 0 {
			fn(b)
		}
	}
}

func addSigns(a, b signs) signs {
	var r signs
	each(a, func(x signs) {
		each(b, func(y signs) {
			switch {
			case x == zero:
				r |= y
			case y == zero, x == y:
				r |= x
			default:
				r |= anySign
			}
		})
	})
	return r
}

func mulSigns(a, b signs) signs {
	var r signs
	each(a, func(x signs) {
		each(b, func(y signs) {
			switch {
			case x == zero || y == zero:
				r |= zero
			case x == y:
				r |= pos
			default:
				r |= neg
			}
		})
	})
	return r
}

func signsOf(e Expr) signs {
	switch e := e.(type) {
	case *Constant:
		return signOf(e.V)
	case *Add:
		r := zero
		for _, op := range e.Ops {
			r = addSigns(r, signsOf(op))
		}
		return r
	case *Mul:
		r := pos
		for _, op := range e.Ops {
			r = mulSigns(r, signsOf(op))
		}
		return r
	case *AddRec:
		// start + k*step for k >= 0
		return addSigns(signsOf(e.Start), mulSigns(signsOf(e.Step), zero|pos))
	case *SignExtend:
		return signsOf(e.X)
	}
	return anySign
}

// IsKnownNegative reports whether e is negative for every value of its
// unknowns and on every iteration of its loops.
func IsKnownNegative(e Expr) bool { return signsOf(e) == neg }

// Evaluate folds e to a constant with every recurrence replaced by its start.
// It fails when unknowns remain after folding.
func Evaluate(e Expr) (int64, bool) {
	c, ok := constOf(startValue(e))
	return c, ok
}

func startValue(e Expr) Expr {
	switch e := e.(type) {
	case *AddRec:
		return startValue(e.Start)
	case *Add:
		ops := make([]Expr, len(e.Ops))
		for i, op := range e.Ops {
			ops[i] = startValue(op)
		}
		return NewAdd(ops...)
	case *Mul:
		r := NewConstant(1)
		for _, op := range e.Ops {
			r = NewMul(r, startValue(op))
		}
		return r
	case *SignExtend:
		return NewSignExtend(startValue(e.X), e.From)
	}
	return e
}
