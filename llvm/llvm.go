// Package llvm imports functions written in LLVM assembly into the ir, so
// that loops emitted by clang can be optimized alongside Go code.
package llvm

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/asm"
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/nickng/loopopt/ir"
	"github.com/pkg/errors"
)

// UnsupportedError is returned by Lower for a function using an instruction
// or operand with no ir counterpart.
type UnsupportedError struct {
	Func  string
	Instr string
}

func (e UnsupportedError) Error() string {
	return fmt.Sprintf("%s: cannot lower %s", e.Func, e.Instr)
}

// ParseFile parses the LLVM assembly file at path.
func ParseFile(path string) (*llir.Module, error) {
	m, err := asm.ParseFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return m, nil
}

// ParseString parses LLVM assembly held in src; path names it in errors.
func ParseString(path, src string) (*llir.Module, error) {
	m, err := asm.ParseString(path, src)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return m, nil
}

// Defined returns the functions of m that have a body.
func Defined(m *llir.Module) []*llir.Func {
	var fs []*llir.Func
	for _, f := range m.Funcs {
		if len(f.Blocks) > 0 {
			fs = append(fs, f)
		}
	}
	return fs
}

type operand struct {
	id ir.ID
	n  int
	v  value.Value
}

type phiEdge struct {
	phi  ir.ID
	v    value.Value
	pred value.Value
}

type lowerer struct {
	src    *llir.Func
	f      *ir.Func
	blocks map[*llir.Block]ir.BlockID
	params map[*llir.Param]int
	vals   map[value.Value]ir.ID

	operands []operand
	edges    []phiEdge
}

// Lower converts f to the ir. Integers of every width become int64 values,
// pointers become element addresses: a getelementptr adds its last index to
// its base. Calls are kept opaque.
func Lower(f *llir.Func) (*ir.Func, error) {
	name := f.Name()
	if len(f.Blocks) == 0 {
		return nil, UnsupportedError{Func: name, Instr: "declaration"}
	}
	l := &lowerer{
		src:    f,
		blocks: make(map[*llir.Block]ir.BlockID),
		params: make(map[*llir.Param]int),
		vals:   make(map[value.Value]ir.ID),
	}
	var names []string
	for i, p := range f.Params {
		names = append(names, local(p.Ident()))
		l.params[p] = i
	}
	l.f = ir.NewFunc(name, names...)
	for _, b := range f.Blocks {
		l.blocks[b] = l.f.NewBlock(local(b.Ident()))
	}
	for _, b := range f.Blocks {
		for _, in := range b.Insts {
			if err := l.instr(l.blocks[b], in); err != nil {
				return nil, err
			}
		}
		if err := l.term(l.blocks[b], b.Term); err != nil {
			return nil, err
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
		pred, err := l.block(e.pred)
		if err != nil {
			return nil, err
		}
		l.f.AddIncoming(e.phi, v, pred)
	}
	return l.f, nil
}

func local(ident string) string { return strings.TrimPrefix(ident, "%") }

func (l *lowerer) unsupported(in llir.Instruction) error {
	return UnsupportedError{Func: l.src.Name(), Instr: strings.TrimPrefix(fmt.Sprintf("%T", in), "*ir.")}
}

func (l *lowerer) def(v value.Value, id ir.ID, args ...value.Value) {
	if v != nil {
		l.vals[v] = id
		l.f.Instr(id).Name = local(v.Ident())
	}
	for n, a := range args {
		l.operands = append(l.operands, operand{id: id, n: n, v: a})
	}
}

func (l *lowerer) value(v value.Value) (ir.Value, error) {
	switch v := v.(type) {
	case *constant.Int:
		if v.Typ.BitSize == 1 && v.X.Sign() != 0 {
			return ir.Const(1), nil
		}
		return ir.Const(v.X.Int64()), nil
	case *llir.Param:
		return ir.Param(l.params[v]), nil
	}
	if id, ok := l.vals[v]; ok {
		return ir.Ref(id), nil
	}
	return ir.Value{}, UnsupportedError{Func: l.src.Name(), Instr: "operand " + v.Ident()}
}

func (l *lowerer) block(v value.Value) (ir.BlockID, error) {
	if b, ok := v.(*llir.Block); ok {
		if id, ok := l.blocks[b]; ok {
			return id, nil
		}
	}
	return ir.NoBlock, UnsupportedError{Func: l.src.Name(), Instr: "branch to " + v.Ident()}
}

var preds = map[enum.IPred]ir.Pred{
	enum.IPredEQ:  ir.PredEQ,
	enum.IPredNE:  ir.PredNE,
	enum.IPredSLT: ir.PredSLT,
	enum.IPredSLE: ir.PredSLE,
	enum.IPredSGT: ir.PredSGT,
	enum.IPredSGE: ir.PredSGE,
	enum.IPredULT: ir.PredULT,
	enum.IPredULE: ir.PredULE,
	enum.IPredUGT: ir.PredUGT,
	enum.IPredUGE: ir.PredUGE,
}

func (l *lowerer) instr(b ir.BlockID, in llir.Instruction) error {
	f := l.f
	var z ir.Value
	binary := func(v value.Value, op ir.Op, x, y value.Value) {
		l.def(v, f.Binary(b, op, z, z), x, y)
	}
	switch in := in.(type) {
	case *llir.InstAdd:
		binary(in, ir.OpAdd, in.X, in.Y)
	case *llir.InstSub:
		binary(in, ir.OpSub, in.X, in.Y)
	case *llir.InstMul:
		binary(in, ir.OpMul, in.X, in.Y)
	case *llir.InstSDiv:
		binary(in, ir.OpSDiv, in.X, in.Y)
	case *llir.InstSRem:
		binary(in, ir.OpSRem, in.X, in.Y)
	case *llir.InstShl:
		binary(in, ir.OpShl, in.X, in.Y)
	case *llir.InstAShr:
		binary(in, ir.OpAShr, in.X, in.Y)
	case *llir.InstLShr:
		binary(in, ir.OpLShr, in.X, in.Y)
	case *llir.InstAnd:
		binary(in, ir.OpAnd, in.X, in.Y)
	case *llir.InstOr:
		binary(in, ir.OpOr, in.X, in.Y)
	case *llir.InstXor:
		binary(in, ir.OpXor, in.X, in.Y)

	case *llir.InstICmp:
		pred, ok := preds[in.Pred]
		if !ok {
			return l.unsupported(in)
		}
		l.def(in, f.Cmp(b, pred, z, z), in.X, in.Y)

	case *llir.InstPhi:
		id := f.Phi(b)
		l.def(in, id)
		for _, inc := range in.Incs {
			l.edges = append(l.edges, phiEdge{phi: id, v: inc.X, pred: value.Value(inc.Pred)})
		}

	case *llir.InstLoad:
		l.def(in, f.Load(b, z), in.Src)
	case *llir.InstStore:
		l.def(nil, f.Store(b, z, z), in.Dst, in.Src)

	case *llir.InstGetElementPtr:
		if len(in.Indices) == 0 {
			return l.unsupported(in)
		}
		last := len(in.Indices) - 1
		for _, idx := range in.Indices[:last] {
			if c, ok := idx.(*constant.Int); !ok || c.X.Sign() != 0 {
				return l.unsupported(in)
			}
		}
		l.def(in, f.Addr(b, z, z), in.Src, in.Indices[last])

	case *llir.InstSExt:
		w, ok := intWidth(in.From.Type())
		if !ok {
			return l.unsupported(in)
		}
		l.def(in, f.SExt(b, z, w), in.From)
	case *llir.InstZExt:
		w, ok := intWidth(in.From.Type())
		if !ok {
			return l.unsupported(in)
		}
		l.def(in, f.ZExt(b, z, w), in.From)
	case *llir.InstTrunc:
		w, ok := intWidth(in.To)
		if !ok {
			return l.unsupported(in)
		}
		l.def(in, f.SExt(b, z, w), in.From)

	case *llir.InstAlloca:
		n := int64(1)
		if arr, ok := in.ElemType.(*types.ArrayType); ok {
			n = int64(arr.Len)
		}
		if in.NElems != nil {
			c, ok := in.NElems.(*constant.Int)
			if !ok {
				return l.unsupported(in)
			}
			n *= c.X.Int64()
		}
		l.def(in, f.Alloc(b, ir.Const(n)))

	case *llir.InstCall:
		callee := local(in.Callee.Ident())
		if fn, ok := in.Callee.(*llir.Func); ok {
			callee = fn.Name()
		}
		args := make([]ir.Value, len(in.Args))
		var res value.Value = in
		if _, void := in.Type().(*types.VoidType); void {
			res = nil
		}
		l.def(res, f.Call(b, callee, args...), in.Args...)

	default:
		return l.unsupported(in)
	}
	return nil
}

func (l *lowerer) term(b ir.BlockID, t llir.Terminator) error {
	f := l.f
	switch t := t.(type) {
	case *llir.TermRet:
		if t.X == nil {
			f.Return(b)
			return nil
		}
		l.def(nil, f.Return(b, ir.Value{}), t.X)
	case *llir.TermBr:
		target, err := l.block(value.Value(t.Target))
		if err != nil {
			return err
		}
		f.Jump(b, target)
	case *llir.TermCondBr:
		then, err := l.block(value.Value(t.TargetTrue))
		if err != nil {
			return err
		}
		els, err := l.block(value.Value(t.TargetFalse))
		if err != nil {
			return err
		}
		l.def(nil, f.If(b, ir.Value{}, then, els), t.Cond)
	default:
		return UnsupportedError{Func: l.src.Name(), Instr: fmt.Sprintf("terminator %T", t)}
	}
	return nil
}

func intWidth(t types.Type) (int, bool) {
	it, ok := t.(*types.IntType)
	if !ok || it.BitSize == 0 || it.BitSize > 64 {
		return 0, false
	}
	return int(it.BitSize), true
}
