// Package ir is an arena-based SSA intermediate representation for loop
// transformations.
//
// Instructions and blocks of a function live in per-function arenas and refer
// to each other through stable handles (ID and BlockID), so operand links and
// use lists are index lookups rather than pointers. Handles are never reused:
// erasing an instruction or a block leaves an empty slot behind.
//
// The package also provides the primitive mutations the optimizer relies on
// (replace-all-uses, move, erase, successor update, block erase), a verifier
// and a textual printer.
package ir

import "fmt"

// ID is the handle of an instruction inside its Func.
type ID int32

// BlockID is the handle of a basic block inside its Func.
type BlockID int32

const (
	NoID    ID      = -1 // NoID is the absent instruction.
	NoBlock BlockID = -1 // NoBlock is the absent block.
)

func (id ID) String() string { return fmt.Sprintf("v%d", id) }

func (b BlockID) String() string {
	if b == NoBlock {
		return "b?"
	}
	return fmt.Sprintf("b%d", b)
}

// ValueKind tells what an operand refers to.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindConst             // integer constant
	KindParam             // function parameter
	KindInstr             // result of an instruction
)

// Value is an instruction operand: a constant, a function parameter or a
// reference to the instruction defining it. The zero Value is invalid and is
// used by frontends as a placeholder for operands that are filled in later.
type Value struct {
	Kind  ValueKind
	Const int64 // KindConst
	Index int   // KindParam
	ID    ID    // KindInstr
}

// Const returns a constant operand.
func Const(c int64) Value { return Value{Kind: KindConst, Const: c} }

// Param returns the operand for the i-th function parameter.
func Param(i int) Value { return Value{Kind: KindParam, Index: i} }

// Ref returns an operand referring to the result of instruction id.
func Ref(id ID) Value { return Value{Kind: KindInstr, ID: id} }

func (v Value) Valid() bool   { return v.Kind != KindInvalid }
func (v Value) IsConst() bool { return v.Kind == KindConst }
func (v Value) IsParam() bool { return v.Kind == KindParam }
func (v Value) IsInstr() bool { return v.Kind == KindInstr }

func (v Value) String() string {
	switch v.Kind {
	case KindConst:
		return fmt.Sprintf("%d", v.Const)
	case KindParam:
		return fmt.Sprintf("p%d", v.Index)
	case KindInstr:
		return v.ID.String()
	}
	return "<nil>"
}

// Op is an instruction opcode.
type Op uint8

const (
	OpInvalid Op = iota

	// Binary arithmetic.
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpSRem
	OpShl
	OpAShr
	OpLShr
	OpAnd
	OpOr
	OpXor

	// Memory.
	OpLoad  // load addr
	OpStore // store addr, val

	OpPhi // induction-merge node

	// Terminators.
	OpJump   // jump target
	OpIf     // if cond, then, else
	OpReturn // return vals...

	// Others.
	OpCmp   // cmp.pred x, y
	OpSExt  // sign-extend x from Width bits
	OpZExt  // zero-extend x from Width bits
	OpAddr  // addr base, index (element address)
	OpAlloc // alloc n (fresh array of n elements)
	OpCall  // call Callee(args...), opaque with side effects
)

var opNames = [...]string{
	OpInvalid: "invalid",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpSDiv:    "sdiv",
	OpSRem:    "srem",
	OpShl:     "shl",
	OpAShr:    "ashr",
	OpLShr:    "lshr",
	OpAnd:     "and",
	OpOr:      "or",
	OpXor:     "xor",
	OpLoad:    "load",
	OpStore:   "store",
	OpPhi:     "phi",
	OpJump:    "jump",
	OpIf:      "if",
	OpReturn:  "return",
	OpCmp:     "cmp",
	OpSExt:    "sext",
	OpZExt:    "zext",
	OpAddr:    "addr",
	OpAlloc:   "alloc",
	OpCall:    "call",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", op)
}

// Class is the coarse opcode class the loop transformations reason about.
type Class uint8

const (
	ClassOther Class = iota
	ClassBinary
	ClassLoad
	ClassStore
	ClassPhi
	ClassBranch
)

func (c Class) String() string {
	switch c {
	case ClassBinary:
		return "binary"
	case ClassLoad:
		return "load"
	case ClassStore:
		return "store"
	case ClassPhi:
		return "phi"
	case ClassBranch:
		return "branch"
	}
	return "other"
}

// Class returns the opcode class of op.
func (op Op) Class() Class {
	switch {
	case op >= OpAdd && op <= OpXor:
		return ClassBinary
	case op == OpLoad:
		return ClassLoad
	case op == OpStore:
		return ClassStore
	case op == OpPhi:
		return ClassPhi
	case op >= OpJump && op <= OpReturn:
		return ClassBranch
	}
	return ClassOther
}

func (op Op) IsBinary() bool     { return op.Class() == ClassBinary }
func (op Op) IsTerminator() bool { return op.Class() == ClassBranch }

// CanTrap reports whether evaluating op may fault for some operands.
func (op Op) CanTrap() bool { return op == OpSDiv || op == OpSRem }

// HasResult reports whether op defines a value.
func (op Op) HasResult() bool {
	switch op {
	case OpStore, OpJump, OpIf, OpReturn, OpInvalid:
		return false
	}
	return true
}

// Pred is an integer comparison predicate.
type Pred uint8

const (
	PredInvalid Pred = iota
	PredEQ
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
)

var predNames = [...]string{"invalid", "eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}

func (p Pred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return fmt.Sprintf("pred(%d)", p)
}

// Swap returns the predicate q such that (x p y) == (y q x).
func (p Pred) Swap() Pred {
	switch p {
	case PredSLT:
		return PredSGT
	case PredSLE:
		return PredSGE
	case PredSGT:
		return PredSLT
	case PredSGE:
		return PredSLE
	case PredULT:
		return PredUGT
	case PredULE:
		return PredUGE
	case PredUGT:
		return PredULT
	case PredUGE:
		return PredULE
	}
	return p
}

// Negate returns the predicate q such that (x q y) == !(x p y).
func (p Pred) Negate() Pred {
	switch p {
	case PredEQ:
		return PredNE
	case PredNE:
		return PredEQ
	case PredSLT:
		return PredSGE
	case PredSLE:
		return PredSGT
	case PredSGT:
		return PredSLE
	case PredSGE:
		return PredSLT
	case PredULT:
		return PredUGE
	case PredULE:
		return PredUGT
	case PredUGT:
		return PredULE
	case PredUGE:
		return PredULT
	}
	return p
}

// Eval applies the predicate to x and y.
func (p Pred) Eval(x, y int64) bool {
	switch p {
	case PredEQ:
		return x == y
	case PredNE:
		return x != y
	case PredSLT:
		return x < y
	case PredSLE:
		return x <= y
	case PredSGT:
		return x > y
	case PredSGE:
		return x >= y
	case PredULT:
		return uint64(x) < uint64(y)
	case PredULE:
		return uint64(x) <= uint64(y)
	case PredUGT:
		return uint64(x) > uint64(y)
	case PredUGE:
		return uint64(x) >= uint64(y)
	}
	return false
}
