// Package irtest provides a small DSL for writing ir.Func fixtures in tests.
//
//	fun := irtest.Fun("sum", []string{"a", "n"},
//		irtest.Bloc("entry",
//			irtest.Goto("header")),
//		irtest.Bloc("header",
//			irtest.Phi("i", irtest.In("entry", irtest.C(0)), irtest.In("latch", irtest.V("inext"))),
//			irtest.Cmp("c", ir.PredSLT, irtest.V("i"), irtest.P(1)),
//			irtest.If(irtest.V("c"), "latch", "exit")),
//		...
//	)
//
// Values may be referenced before they are defined, which is how loop-carried
// phi operands are written.
package irtest

import (
	"fmt"

	"github.com/nickng/loopopt/ir"
)

// Arg is an operand reference resolved when the function is built.
type Arg struct {
	kind  ir.ValueKind
	name  string
	c     int64
	index int
}

// V refers to the value named name.
func V(name string) Arg { return Arg{kind: ir.KindInstr, name: name} }

// C is a constant operand.
func C(c int64) Arg { return Arg{kind: ir.KindConst, c: c} }

// P refers to parameter i.
func P(i int) Arg { return Arg{kind: ir.KindParam, index: i} }

// Edge is a phi incoming edge.
type Edge struct {
	block string
	arg   Arg
}

// In is the phi edge carrying arg from block.
func In(block string, arg Arg) Edge { return Edge{block: block, arg: arg} }

type instrKind int

const (
	kValu instrKind = iota
	kPhi
	kCmp
	kLoad
	kStore
	kAddr
	kSExt
	kAlloc
	kCall
	kGoto
	kIf
	kExit
)

// Instr is an instruction spec inside a Bloc.
type Instr struct {
	kind   instrKind
	name   string
	op     ir.Op
	pred   ir.Pred
	width  int
	callee string
	args   []Arg
	edges  []Edge
	succs  []string
}

// Valu is a binary instruction.
func Valu(name string, op ir.Op, x, y Arg) Instr {
	return Instr{kind: kValu, name: name, op: op, args: []Arg{x, y}}
}

func Phi(name string, edges ...Edge) Instr { return Instr{kind: kPhi, name: name, edges: edges} }

func Cmp(name string, pred ir.Pred, x, y Arg) Instr {
	return Instr{kind: kCmp, name: name, pred: pred, args: []Arg{x, y}}
}

func Load(name string, addr Arg) Instr { return Instr{kind: kLoad, name: name, args: []Arg{addr}} }

func Store(addr, val Arg) Instr { return Instr{kind: kStore, args: []Arg{addr, val}} }

func Addr(name string, base, index Arg) Instr {
	return Instr{kind: kAddr, name: name, args: []Arg{base, index}}
}

func SExt(name string, x Arg, width int) Instr {
	return Instr{kind: kSExt, name: name, width: width, args: []Arg{x}}
}

func Alloc(name string, n Arg) Instr { return Instr{kind: kAlloc, name: name, args: []Arg{n}} }

func Call(name, callee string, args ...Arg) Instr {
	return Instr{kind: kCall, name: name, callee: callee, args: args}
}

func Goto(target string) Instr { return Instr{kind: kGoto, succs: []string{target}} }

func If(cond Arg, then, els string) Instr {
	return Instr{kind: kIf, args: []Arg{cond}, succs: []string{then, els}}
}

func Exit(vals ...Arg) Instr { return Instr{kind: kExit, args: vals} }

// Block is a block spec.
type Block struct {
	name   string
	instrs []Instr
}

// Bloc is a block named name. The first Bloc of a Fun is the entry.
func Bloc(name string, instrs ...Instr) Block { return Block{name: name, instrs: instrs} }

// Func is a built fixture with its name tables.
type Func struct {
	F      *ir.Func
	Values map[string]ir.ID
	Blocks map[string]ir.BlockID
}

// V returns the instruction named name.
func (fn *Func) V(name string) ir.ID {
	id, ok := fn.Values[name]
	if !ok {
		panic(fmt.Sprintf("irtest: no value %q", name))
	}
	return id
}

// B returns the block named name.
func (fn *Func) B(name string) ir.BlockID {
	b, ok := fn.Blocks[name]
	if !ok {
		panic(fmt.Sprintf("irtest: no block %q", name))
	}
	return b
}

// Fun builds a function from block specs. It panics on dangling names.
func Fun(name string, params []string, blocks ...Block) *Func {
	fn := &Func{
		F:      ir.NewFunc(name, params...),
		Values: make(map[string]ir.ID),
		Blocks: make(map[string]ir.BlockID),
	}
	for _, b := range blocks {
		if _, dup := fn.Blocks[b.name]; dup {
			panic(fmt.Sprintf("irtest: duplicate block %q", b.name))
		}
		fn.Blocks[b.name] = fn.F.NewBlock(b.name)
	}

	type pending struct {
		id   ir.ID
		spec Instr
	}
	var todo []pending
	for _, b := range blocks {
		blk := fn.Blocks[b.name]
		for _, in := range b.instrs {
			id := fn.create(blk, in)
			if in.name != "" {
				if _, dup := fn.Values[in.name]; dup {
					panic(fmt.Sprintf("irtest: duplicate value %q", in.name))
				}
				fn.Values[in.name] = id
				fn.F.Instr(id).Name = in.name
			}
			todo = append(todo, pending{id, in})
		}
	}
	for _, p := range todo {
		if p.spec.kind == kPhi {
			for _, e := range p.spec.edges {
				fn.F.AddIncoming(p.id, fn.resolve(e.arg), fn.B(e.block))
			}
			continue
		}
		for n, a := range p.spec.args {
			fn.F.SetArg(p.id, n, fn.resolve(a))
		}
	}
	return fn
}

func (fn *Func) create(b ir.BlockID, in Instr) ir.ID {
	f := fn.F
	var nil2 ir.Value
	switch in.kind {
	case kValu:
		return f.Binary(b, in.op, nil2, nil2)
	case kPhi:
		return f.Phi(b)
	case kCmp:
		return f.Cmp(b, in.pred, nil2, nil2)
	case kLoad:
		return f.Load(b, nil2)
	case kStore:
		return f.Store(b, nil2, nil2)
	case kAddr:
		return f.Addr(b, nil2, nil2)
	case kSExt:
		return f.SExt(b, nil2, in.width)
	case kAlloc:
		return f.Alloc(b, nil2)
	case kCall:
		return f.Call(b, in.callee, make([]ir.Value, len(in.args))...)
	case kGoto:
		return f.Jump(b, fn.B(in.succs[0]))
	case kIf:
		return f.If(b, nil2, fn.B(in.succs[0]), fn.B(in.succs[1]))
	case kExit:
		return f.Return(b, make([]ir.Value, len(in.args))...)
	}
	panic("irtest: unknown instruction kind")
}

func (fn *Func) resolve(a Arg) ir.Value {
	switch a.kind {
	case ir.KindConst:
		return ir.Const(a.c)
	case ir.KindParam:
		return ir.Param(a.index)
	case ir.KindInstr:
		return ir.Ref(fn.V(a.name))
	}
	panic("irtest: invalid operand")
}
