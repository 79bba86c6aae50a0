package ir

import "fmt"

// Instr is an instruction. Its operands, phi incoming blocks and branch
// successors are only changed through Func methods so that use lists and
// predecessor lists stay consistent.
type Instr struct {
	Op     Op
	Name   string // Name is an optional source-level name.
	Pred   Pred   // Pred is the predicate of OpCmp.
	Width  int    // Width is the source bit width of OpSExt/OpZExt.
	Callee string // Callee is the target name of OpCall.

	id       ID
	block    BlockID
	args     []Value
	incoming []BlockID // phi only, parallel to args
	succs    []BlockID // terminators only
	uses     []ID      // one entry per operand slot referring to this instr
}

func (i *Instr) ID() ID          { return i.id }
func (i *Instr) Block() BlockID  { return i.block }
func (i *Instr) NumArgs() int    { return len(i.args) }
func (i *Instr) Arg(n int) Value { return i.args[n] }

// Args returns a copy of the operands.
func (i *Instr) Args() []Value { return append([]Value(nil), i.args...) }

// Incoming returns a copy of the phi incoming blocks, parallel to Args.
func (i *Instr) Incoming() []BlockID { return append([]BlockID(nil), i.incoming...) }

// Succs returns a copy of the successors of a terminator.
func (i *Instr) Succs() []BlockID { return append([]BlockID(nil), i.succs...) }

// Uses returns a copy of the users of i. A user appears once per operand slot.
func (i *Instr) Uses() []ID { return append([]ID(nil), i.uses...) }

// IncomingFor returns the phi operand flowing in from block b.
func (i *Instr) IncomingFor(b BlockID) (Value, bool) {
	for n, blk := range i.incoming {
		if blk == b {
			return i.args[n], true
		}
	}
	return Value{}, false
}

func (i *Instr) String() string {
	s := ""
	if i.Op.HasResult() {
		s = i.id.String() + " = "
	}
	s += i.Op.String()
	if i.Op == OpCmp {
		s += "." + i.Pred.String()
	}
	if i.Op == OpSExt || i.Op == OpZExt {
		s += fmt.Sprintf(".i%d", i.Width)
	}
	if i.Op == OpCall {
		s += " " + i.Callee
	}
	for n, a := range i.args {
		if n > 0 {
			s += ","
		}
		if i.Op == OpPhi {
			s += fmt.Sprintf(" [%s, %s]", a, i.incoming[n])
		} else {
			s += " " + a.String()
		}
	}
	for n, b := range i.succs {
		if n > 0 || len(i.args) > 0 {
			s += ","
		}
		s += " " + b.String()
	}
	return s
}

// Block is a basic block: a list of instructions ending in one terminator.
type Block struct {
	Name string

	id     BlockID
	instrs []ID
	preds  []BlockID
}

func (b *Block) ID() BlockID { return b.id }

// Instrs returns a copy of the instruction list of b.
func (b *Block) Instrs() []ID { return append([]ID(nil), b.instrs...) }

// Preds returns a copy of the predecessors of b, one entry per incoming edge.
func (b *Block) Preds() []BlockID { return append([]BlockID(nil), b.preds...) }

func (b *Block) String() string {
	if b.Name != "" {
		return fmt.Sprintf("%s(%s)", b.id, b.Name)
	}
	return b.id.String()
}

// Func is a function: the arenas of its blocks and instructions.
type Func struct {
	Name   string
	Params []string
	Entry  BlockID

	blocks     []*Block
	instrs     []*Instr
	cfgVersion uint64
}

// NewFunc returns an empty function with the given parameter names.
func NewFunc(name string, params ...string) *Func {
	return &Func{Name: name, Params: params, Entry: NoBlock}
}

// NewBlock appends a new empty block. The first block created is the entry.
func (f *Func) NewBlock(name string) BlockID {
	id := BlockID(len(f.blocks))
	f.blocks = append(f.blocks, &Block{Name: name, id: id})
	if f.Entry == NoBlock {
		f.Entry = id
	}
	f.cfgVersion++
	return id
}

// Block returns block b, or nil if b was erased or is out of range.
func (f *Func) Block(b BlockID) *Block {
	if b < 0 || int(b) >= len(f.blocks) {
		return nil
	}
	return f.blocks[b]
}

// Instr returns instruction id, or nil if id was erased or is out of range.
func (f *Func) Instr(id ID) *Instr {
	if id < 0 || int(id) >= len(f.instrs) {
		return nil
	}
	return f.instrs[id]
}

// Blocks returns the live blocks in creation order.
func (f *Func) Blocks() []BlockID {
	var bs []BlockID
	for _, b := range f.blocks {
		if b != nil {
			bs = append(bs, b.id)
		}
	}
	return bs
}

// NumBlocks is the size of the block arena, erased slots included.
func (f *Func) NumBlocks() int { return len(f.blocks) }

// NumInstrs is the size of the instruction arena, erased slots included.
func (f *Func) NumInstrs() int { return len(f.instrs) }

// CFGVersion is bumped on every change to the block graph.
func (f *Func) CFGVersion() uint64 { return f.cfgVersion }

func (f *Func) mustBlock(b BlockID) *Block {
	blk := f.Block(b)
	if blk == nil {
		panic(fmt.Sprintf("ir: %s: no block %s", f.Name, b))
	}
	return blk
}

func (f *Func) mustInstr(id ID) *Instr {
	in := f.Instr(id)
	if in == nil {
		panic(fmt.Sprintf("ir: %s: no instruction %s", f.Name, id))
	}
	return in
}

// Instrs returns a copy of the instruction list of block b.
func (f *Func) Instrs(b BlockID) []ID { return f.mustBlock(b).Instrs() }

// Preds returns the predecessors of block b.
func (f *Func) Preds(b BlockID) []BlockID { return f.mustBlock(b).Preds() }

// Terminator returns the terminator of b, or NoID if b has none yet.
func (f *Func) Terminator(b BlockID) ID {
	blk := f.mustBlock(b)
	if n := len(blk.instrs); n > 0 && f.instrs[blk.instrs[n-1]].Op.IsTerminator() {
		return blk.instrs[n-1]
	}
	return NoID
}

// Succs returns the successors of b in terminator order.
func (f *Func) Succs(b BlockID) []BlockID {
	t := f.Terminator(b)
	if t == NoID {
		return nil
	}
	return f.instrs[t].Succs()
}

// BlockOf returns the block containing id.
func (f *Func) BlockOf(id ID) BlockID { return f.mustInstr(id).block }

// Uses returns the users of id.
func (f *Func) Uses(id ID) []ID { return f.mustInstr(id).Uses() }

// Phis returns the phi nodes at the top of b.
func (f *Func) Phis(b BlockID) []ID {
	var phis []ID
	for _, id := range f.mustBlock(b).instrs {
		if f.instrs[id].Op != OpPhi {
			break
		}
		phis = append(phis, id)
	}
	return phis
}

func (f *Func) addUse(v Value, user ID) {
	if v.IsInstr() {
		if def := f.Instr(v.ID); def != nil {
			def.uses = append(def.uses, user)
		}
	}
}

func (f *Func) dropUse(v Value, user ID) {
	if !v.IsInstr() {
		return
	}
	def := f.Instr(v.ID)
	if def == nil {
		return
	}
	for n, u := range def.uses {
		if u == user {
			def.uses = append(def.uses[:n], def.uses[n+1:]...)
			return
		}
	}
}

// insert places a new instruction in b: phis after the existing phis,
// terminators at the end, everything else before the terminator.
func (f *Func) insert(b BlockID, in *Instr) ID {
	blk := f.mustBlock(b)
	in.id = ID(len(f.instrs))
	in.block = b
	f.instrs = append(f.instrs, in)

	pos := len(blk.instrs)
	switch {
	case in.Op == OpPhi:
		pos = 0
		for pos < len(blk.instrs) && f.instrs[blk.instrs[pos]].Op == OpPhi {
			pos++
		}
	case in.Op.IsTerminator():
		if f.Terminator(b) != NoID {
			panic(fmt.Sprintf("ir: %s: block %s already has a terminator", f.Name, b))
		}
	default:
		if f.Terminator(b) != NoID {
			pos--
		}
	}
	blk.instrs = append(blk.instrs, NoID)
	copy(blk.instrs[pos+1:], blk.instrs[pos:])
	blk.instrs[pos] = in.id

	for _, a := range in.args {
		f.addUse(a, in.id)
	}
	for _, s := range in.succs {
		f.mustBlock(s).preds = append(f.blocks[s].preds, b)
	}
	if len(in.succs) > 0 {
		f.cfgVersion++
	}
	return in.id
}

// Binary appends x op y to b.
func (f *Func) Binary(b BlockID, op Op, x, y Value) ID {
	if !op.IsBinary() {
		panic(fmt.Sprintf("ir: %s is not a binary operator", op))
	}
	return f.insert(b, &Instr{Op: op, args: []Value{x, y}})
}

// Cmp appends the comparison x pred y to b.
func (f *Func) Cmp(b BlockID, pred Pred, x, y Value) ID {
	return f.insert(b, &Instr{Op: OpCmp, Pred: pred, args: []Value{x, y}})
}

// PhiEdge is one incoming (value, predecessor) pair of a phi.
type PhiEdge struct {
	Value Value
	Block BlockID
}

// Phi adds a phi node at the top of b.
func (f *Func) Phi(b BlockID, edges ...PhiEdge) ID {
	in := &Instr{Op: OpPhi}
	for _, e := range edges {
		in.args = append(in.args, e.Value)
		in.incoming = append(in.incoming, e.Block)
	}
	return f.insert(b, in)
}

// AddIncoming appends an incoming edge to a phi.
func (f *Func) AddIncoming(phi ID, v Value, from BlockID) {
	in := f.mustInstr(phi)
	if in.Op != OpPhi {
		panic(fmt.Sprintf("ir: %s is not a phi", phi))
	}
	in.args = append(in.args, v)
	in.incoming = append(in.incoming, from)
	f.addUse(v, phi)
}

// Load appends a load from addr to b.
func (f *Func) Load(b BlockID, addr Value) ID {
	return f.insert(b, &Instr{Op: OpLoad, args: []Value{addr}})
}

// Store appends a store of val to addr to b.
func (f *Func) Store(b BlockID, addr, val Value) ID {
	return f.insert(b, &Instr{Op: OpStore, args: []Value{addr, val}})
}

// Addr appends the address of element index of array base to b.
func (f *Func) Addr(b BlockID, base, index Value) ID {
	return f.insert(b, &Instr{Op: OpAddr, args: []Value{base, index}})
}

// Alloc appends the allocation of a fresh array of n elements to b.
func (f *Func) Alloc(b BlockID, n Value) ID {
	return f.insert(b, &Instr{Op: OpAlloc, args: []Value{n}})
}

// SExt appends the sign extension of the low width bits of x to b.
func (f *Func) SExt(b BlockID, x Value, width int) ID {
	return f.insert(b, &Instr{Op: OpSExt, Width: width, args: []Value{x}})
}

// ZExt appends the zero extension of the low width bits of x to b.
func (f *Func) ZExt(b BlockID, x Value, width int) ID {
	return f.insert(b, &Instr{Op: OpZExt, Width: width, args: []Value{x}})
}

// Call appends an opaque call to b.
func (f *Func) Call(b BlockID, callee string, args ...Value) ID {
	return f.insert(b, &Instr{Op: OpCall, Callee: callee, args: args})
}

// Jump terminates b with an unconditional branch to target.
func (f *Func) Jump(b, target BlockID) ID {
	return f.insert(b, &Instr{Op: OpJump, succs: []BlockID{target}})
}

// If terminates b with a conditional branch on cond.
func (f *Func) If(b BlockID, cond Value, then, els BlockID) ID {
	return f.insert(b, &Instr{Op: OpIf, args: []Value{cond}, succs: []BlockID{then, els}})
}

// Return terminates b.
func (f *Func) Return(b BlockID, vals ...Value) ID {
	return f.insert(b, &Instr{Op: OpReturn, args: vals})
}

// SetArg replaces operand n of id, keeping use lists consistent.
func (f *Func) SetArg(id ID, n int, v Value) {
	in := f.mustInstr(id)
	f.dropUse(in.args[n], id)
	in.args[n] = v
	f.addUse(v, id)
}

// Clone returns a deep copy of f. Handles are preserved.
func (f *Func) Clone() *Func {
	g := &Func{
		Name:       f.Name,
		Params:     append([]string(nil), f.Params...),
		Entry:      f.Entry,
		blocks:     make([]*Block, len(f.blocks)),
		instrs:     make([]*Instr, len(f.instrs)),
		cfgVersion: f.cfgVersion,
	}
	for n, b := range f.blocks {
		if b == nil {
			continue
		}
		g.blocks[n] = &Block{Name: b.Name, id: b.id, instrs: b.Instrs(), preds: b.Preds()}
	}
	for n, in := range f.instrs {
		if in == nil {
			continue
		}
		c := *in
		c.args = in.Args()
		c.incoming = in.Incoming()
		c.succs = in.Succs()
		c.uses = in.Uses()
		g.instrs[n] = &c
	}
	return g
}
