package ssa

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/nickng/loopopt/ir"
	"golang.org/x/tools/go/ssa"
)

// UnsupportedError is returned by Lower for a function using an instruction
// or value with no ir counterpart.
type UnsupportedError struct {
	Func  string
	Instr string
}

func (e UnsupportedError) Error() string {
	return fmt.Sprintf("%s: cannot lower %s", e.Func, e.Instr)
}

// operand is an ir operand to fill in once every instruction exists.
type operand struct {
	id ir.ID
	n  int
	v  ssa.Value
}

type phiEdge struct {
	phi  ir.ID
	v    ssa.Value
	pred ir.BlockID
}

type lowerer struct {
	fn     *ssa.Function
	f      *ir.Func
	blocks map[*ssa.BasicBlock]ir.BlockID
	params map[*ssa.Parameter]int
	vals   map[ssa.Value]ir.ID
	alias  map[ssa.Value]ssa.Value

	operands []operand
	edges    []phiEdge
}

// Lower converts fn to the ir. Integers and booleans become int64 values,
// pointers and slices become element addresses (a reslice adds its low
// bound), and calls are kept opaque.
func Lower(fn *ssa.Function) (*ir.Func, error) {
	if len(fn.Blocks) == 0 {
		return nil, UnsupportedError{Func: fn.String(), Instr: "external function"}
	}
	if len(fn.FreeVars) > 0 {
		return nil, UnsupportedError{Func: fn.String(), Instr: "closure"}
	}
	var names []string
	l := &lowerer{
		fn:     fn,
		blocks: make(map[*ssa.BasicBlock]ir.BlockID),
		params: make(map[*ssa.Parameter]int),
		vals:   make(map[ssa.Value]ir.ID),
		alias:  make(map[ssa.Value]ssa.Value),
	}
	for i, p := range fn.Params {
		names = append(names, p.Name())
		l.params[p] = i
	}
	l.f = ir.NewFunc(fn.String(), names...)
	for _, b := range fn.Blocks {
		name := b.Comment
		if name == "" {
			name = fmt.Sprintf("b%d", b.Index)
		}
		l.blocks[b] = l.f.NewBlock(name)
	}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if err := l.instr(l.blocks[b], in); err != nil {
				return nil, err
			}
		}
	}
	for _, o := range l.operands {
		v, err := l.value(o.v)
		if err != nil {
			return nil, err
		}
		l.f.SetArg(o.id, o.n, v)
	}
	for _, e := range l.edges {
		v, err := l.value(e.v)
		if err != nil {
			return nil, err
		}
		l.f.AddIncoming(e.phi, v, e.pred)
	}
	return l.f, nil
}

func (l *lowerer) unsupported(what interface{}) error {
	return UnsupportedError{Func: l.fn.String(), Instr: fmt.Sprint(what)}
}

// def records id as the lowering of v and queues its operands.
func (l *lowerer) def(v ssa.Value, id ir.ID, args ...ssa.Value) ir.ID {
	if v != nil {
		l.vals[v] = id
		l.f.Instr(id).Name = v.Name()
	}
	for n, a := range args {
		if a != nil {
			l.operands = append(l.operands, operand{id: id, n: n, v: a})
		}
	}
	return id
}

func (l *lowerer) value(v ssa.Value) (ir.Value, error) {
	for {
		a, ok := l.alias[v]
		if !ok {
			break
		}
		v = a
	}
	switch v := v.(type) {
	case *ssa.Const:
		return l.constant(v)
	case *ssa.Parameter:
		return ir.Param(l.params[v]), nil
	}
	if id, ok := l.vals[v]; ok {
		return ir.Ref(id), nil
	}
	return ir.Value{}, l.unsupported(v)
}

func (l *lowerer) constant(c *ssa.Const) (ir.Value, error) {
	if c.Value == nil {
		return ir.Value{}, l.unsupported("nil constant")
	}
	switch c.Value.Kind() {
	case constant.Bool:
		if constant.BoolVal(c.Value) {
			return ir.Const(1), nil
		}
		return ir.Const(0), nil
	case constant.Int:
		if x, ok := constant.Int64Val(c.Value); ok {
			return ir.Const(x), nil
		}
		if x, ok := constant.Uint64Val(c.Value); ok {
			return ir.Const(int64(x)), nil
		}
	}
	return ir.Value{}, l.unsupported(c)
}

func (l *lowerer) instr(b ir.BlockID, in ssa.Instruction) error {
	f := l.f
	var z ir.Value
	switch in := in.(type) {
	case *ssa.DebugRef:

	case *ssa.Phi:
		id := l.def(in, f.Phi(b))
		for i, e := range in.Edges {
			l.edges = append(l.edges, phiEdge{phi: id, v: e, pred: l.blocks[in.Block().Preds[i]]})
		}

	case *ssa.BinOp:
		return l.binOp(b, in)

	case *ssa.UnOp:
		switch in.Op {
		case token.MUL:
			if in.CommaOk {
				return l.unsupported(in)
			}
			l.def(in, f.Load(b, z), in.X)
		case token.SUB:
			id := l.def(in, f.Binary(b, ir.OpSub, ir.Const(0), z))
			l.operands = append(l.operands, operand{id: id, n: 1, v: in.X})
		case token.XOR:
			l.def(in, f.Binary(b, ir.OpXor, z, ir.Const(-1)), in.X)
		case token.NOT:
			l.def(in, f.Binary(b, ir.OpXor, z, ir.Const(1)), in.X)
		default:
			return l.unsupported(in)
		}

	case *ssa.Convert:
		from, ok1 := intBits(in.X.Type())
		to, ok2 := intBits(in.Type())
		if !ok1 || !ok2 {
			return l.unsupported(in)
		}
		switch {
		case to > from:
			l.def(in, l.extend(b, from, isUnsigned(in.X.Type())), in.X)
		case to < from:
			l.def(in, l.extend(b, to, isUnsigned(in.Type())), in.X)
		default:
			l.alias[in] = in.X
		}

	case *ssa.ChangeType:
		l.alias[in] = in.X

	case *ssa.IndexAddr:
		l.def(in, f.Addr(b, z, z), in.X, in.Index)

	case *ssa.Alloc:
		n := int64(1)
		if arr, ok := deref(in.Type()).Underlying().(*types.Array); ok {
			n = arr.Len()
		}
		l.def(in, f.Alloc(b, ir.Const(n)))

	case *ssa.Slice:
		switch in.X.Type().Underlying().(type) {
		case *types.Slice, *types.Pointer:
		default:
			return l.unsupported(in)
		}
		if in.Low == nil {
			l.alias[in] = in.X
			break
		}
		l.def(in, f.Addr(b, z, z), in.X, in.Low)

	case *ssa.MakeSlice:
		l.def(in, f.Alloc(b, z), in.Len)

	case *ssa.Store:
		l.def(nil, f.Store(b, z, z), in.Addr, in.Val)

	case *ssa.Call:
		if in.Call.IsInvoke() {
			return l.unsupported(in)
		}
		var callee string
		switch fn := in.Call.Value.(type) {
		case *ssa.Function:
			callee = fn.String()
		case *ssa.Builtin:
			callee = fn.Name()
		default:
			return l.unsupported(in)
		}
		args := make([]ir.Value, len(in.Call.Args))
		l.def(in, f.Call(b, callee, args...), in.Call.Args...)

	case *ssa.Jump:
		f.Jump(b, l.blocks[in.Block().Succs[0]])

	case *ssa.If:
		succs := in.Block().Succs
		l.def(nil, f.If(b, z, l.blocks[succs[0]], l.blocks[succs[1]]), in.Cond)

	case *ssa.Return:
		vals := make([]ir.Value, len(in.Results))
		l.def(nil, f.Return(b, vals...), in.Results...)

	default:
		return l.unsupported(in)
	}
	return nil
}

func (l *lowerer) extend(b ir.BlockID, width int, unsigned bool) ir.ID {
	if unsigned {
		return l.f.ZExt(b, ir.Value{}, width)
	}
	return l.f.SExt(b, ir.Value{}, width)
}

var (
	binOps = map[token.Token]ir.Op{
		token.ADD: ir.OpAdd,
		token.SUB: ir.OpSub,
		token.MUL: ir.OpMul,
		token.QUO: ir.OpSDiv,
		token.REM: ir.OpSRem,
		token.SHL: ir.OpShl,
		token.SHR: ir.OpAShr,
		token.AND: ir.OpAnd,
		token.OR:  ir.OpOr,
		token.XOR: ir.OpXor,
	}
	signedPreds = map[token.Token]ir.Pred{
		token.EQL: ir.PredEQ,
		token.NEQ: ir.PredNE,
		token.LSS: ir.PredSLT,
		token.LEQ: ir.PredSLE,
		token.GTR: ir.PredSGT,
		token.GEQ: ir.PredSGE,
	}
	unsignedPreds = map[token.Token]ir.Pred{
		token.EQL: ir.PredEQ,
		token.NEQ: ir.PredNE,
		token.LSS: ir.PredULT,
		token.LEQ: ir.PredULE,
		token.GTR: ir.PredUGT,
		token.GEQ: ir.PredUGE,
	}
)

func (l *lowerer) binOp(b ir.BlockID, in *ssa.BinOp) error {
	f := l.f
	var z ir.Value
	t := in.X.Type()
	if _, ok := intBits(t); !ok && !isBool(t) {
		return l.unsupported(in)
	}
	unsigned := isUnsigned(t)
	if pred, ok := signedPreds[in.Op]; ok {
		if unsigned {
			pred = unsignedPreds[in.Op]
		}
		l.def(in, f.Cmp(b, pred, z, z), in.X, in.Y)
		return nil
	}
	switch in.Op {
	case token.AND_NOT:
		not := l.def(nil, f.Binary(b, ir.OpXor, z, ir.Const(-1)), in.Y)
		l.def(in, f.Binary(b, ir.OpAnd, z, ir.Ref(not)), in.X)
		return nil
	case token.QUO, token.REM:
		if unsigned {
			return l.unsupported(in)
		}
	}
	op, ok := binOps[in.Op]
	if !ok {
		return l.unsupported(in)
	}
	if op == ir.OpAShr && unsigned {
		op = ir.OpLShr
	}
	l.def(in, f.Binary(b, op, z, z), in.X, in.Y)
	return nil
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

func isBool(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsBoolean != 0
}

func isUnsigned(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsUnsigned != 0
}

// intBits is the width of an integer type.
func intBits(t types.Type) (int, bool) {
	b, ok := t.Underlying().(*types.Basic)
	if !ok {
		return 0, false
	}
	switch b.Kind() {
	case types.Int8, types.Uint8:
		return 8, true
	case types.Int16, types.Uint16:
		return 16, true
	case types.Int32, types.Uint32:
		return 32, true
	case types.Int, types.Uint, types.Int64, types.Uint64, types.Uintptr, types.UntypedInt:
		return 64, true
	}
	return 0, false
}
