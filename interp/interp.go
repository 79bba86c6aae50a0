// Package interp is a reference interpreter for ir functions. It is used to
// check that transformations preserve the observable behaviour of a function:
// returned values, calls made, and the final contents of memory.
package interp

import (
	"fmt"

	"github.com/nickng/loopopt/block"
	"github.com/nickng/loopopt/instr"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxSteps bounds the number of instructions executed by Run.
const DefaultMaxSteps = 1 << 20

var (
	ErrStepLimit = errors.New("step limit exceeded")
	ErrArgs      = errors.New("wrong number of arguments")
)

// TrapError is returned when an instruction faults.
type TrapError struct {
	ID  ir.ID
	Op  ir.Op
	Err error
}

func (e TrapError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s) trapped: %v", e.ID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s (%s) trapped", e.ID, e.Op)
}

// Options controls a Run.
type Options struct {
	MaxSteps   int
	Logger     *zap.SugaredLogger
	RecordPath bool // keep the full block sequence in Result.Path
}

// CallRecord is an executed opaque call.
type CallRecord struct {
	Callee string
	Args   []int64
}

// StoreRecord is an executed store.
type StoreRecord struct {
	Addr, Val int64
}

// Result is the outcome of a Run.
type Result struct {
	Returns []int64
	Calls   []CallRecord
	Stores  []StoreRecord // in execution order
	Steps   int
	Path    *block.VisitGraph
}

// Run executes f with the given parameter values against mem.
func Run(f *ir.Func, args []int64, mem *store.Store, opts Options) (*Result, error) {
	if len(args) != len(f.Params) {
		return nil, errors.Wrapf(ErrArgs, "%s: want %d, got %d", f.Name, len(f.Params), len(args))
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	m := &machine{
		f:      f,
		args:   args,
		mem:    mem,
		opts:   opts,
		regs:   make([]int64, f.NumInstrs()),
		curr:   ir.NoBlock,
		prev:   ir.NoBlock,
		result: &Result{Path: block.NewVisitGraph(f, opts.RecordPath)},
	}
	m.EnterBlk(f.Entry)
	for m.err == nil && !m.done {
		m.execBlock()
	}
	if m.err != nil {
		return m.result, m.err
	}
	return m.result, nil
}

// machine implements block.Analyser and instr.Analyser.
type machine struct {
	f    *ir.Func
	args []int64
	mem  *store.Store
	opts Options
	regs []int64

	curr, prev ir.BlockID
	next       ir.BlockID
	done       bool
	err        error
	result     *Result
}

var (
	_ block.Analyser = (*machine)(nil)
	_ instr.Analyser = (*machine)(nil)
)

func (m *machine) value(v ir.Value) int64 {
	switch v.Kind {
	case ir.KindConst:
		return v.Const
	case ir.KindParam:
		return m.args[v.Index]
	case ir.KindInstr:
		return m.regs[v.ID]
	}
	panic(fmt.Sprintf("interp: invalid operand in %s", m.f.Name))
}

func (m *machine) execBlock() {
	m.next = ir.NoBlock
	for _, id := range m.f.Instrs(m.curr) {
		in := m.f.Instr(id)
		if in.Op == ir.OpPhi {
			continue
		}
		m.result.Steps++
		if m.result.Steps > m.opts.MaxSteps {
			m.err = errors.Wrapf(ErrStepLimit, "%s: after %d steps", m.f.Name, m.opts.MaxSteps)
			return
		}
		instr.Visit(m, in)
		if m.err != nil {
			return
		}
	}
	switch {
	case m.done:
		m.ExitBlk(m.curr)
	case m.next != ir.NoBlock:
		m.JumpBlk(m.curr, m.next)
	default:
		m.err = errors.Errorf("%s: block %s has no terminator", m.f.Name, m.curr)
	}
}

func (m *machine) EnterBlk(blk ir.BlockID) {
	m.opts.Logger.Debugf("enter %s", blk)
	m.curr = blk
	m.result.Path.Visit(block.NewVisitNode(blk))
}

// JumpBlk evaluates the phis of next in parallel for the edge curr --> next.
func (m *machine) JumpBlk(curr, next ir.BlockID) {
	phis := m.f.Phis(next)
	vals := make([]int64, len(phis))
	for i, id := range phis {
		v, ok := m.f.Instr(id).IncomingFor(curr)
		if !ok {
			m.err = TrapError{ID: id, Op: ir.OpPhi, Err: errors.Errorf("no incoming value from %s", curr)}
			return
		}
		vals[i] = m.value(v)
	}
	for i, id := range phis {
		m.regs[id] = vals[i]
	}
	if err := m.result.Path.VisitFrom(block.NewVisitNode(curr), block.NewVisitNode(next)); err != nil {
		m.err = err
		return
	}
	m.prev, m.curr = curr, next
}

func (m *machine) ExitBlk(blk ir.BlockID) {
	m.opts.Logger.Debugf("exit %s after %d steps", blk, m.result.Steps)
}

func (m *machine) CurrBlk() ir.BlockID { return m.curr }
func (m *machine) PrevBlk() ir.BlockID { return m.prev }

func (m *machine) VisitBinary(in *ir.Instr) {
	v, ok := instr.Binary(in.Op, m.value(in.Arg(0)), m.value(in.Arg(1)))
	if !ok {
		m.err = TrapError{ID: in.ID(), Op: in.Op}
		return
	}
	m.regs[in.ID()] = v
}

func (m *machine) VisitCmp(in *ir.Instr) {
	m.regs[in.ID()] = 0
	if in.Pred.Eval(m.value(in.Arg(0)), m.value(in.Arg(1))) {
		m.regs[in.ID()] = 1
	}
}

// VisitPhi is a no-op: phis are evaluated on block transitions.
func (m *machine) VisitPhi(in *ir.Instr) {}

func (m *machine) VisitLoad(in *ir.Instr) {
	v, err := m.mem.Load(m.value(in.Arg(0)))
	if err != nil {
		m.err = TrapError{ID: in.ID(), Op: in.Op, Err: err}
		return
	}
	m.regs[in.ID()] = v
}

func (m *machine) VisitStore(in *ir.Instr) {
	addr, val := m.value(in.Arg(0)), m.value(in.Arg(1))
	if err := m.mem.StoreAt(addr, val); err != nil {
		m.err = TrapError{ID: in.ID(), Op: in.Op, Err: err}
		return
	}
	m.result.Stores = append(m.result.Stores, StoreRecord{Addr: addr, Val: val})
}

func (m *machine) VisitAddr(in *ir.Instr) {
	m.regs[in.ID()] = m.value(in.Arg(0)) + m.value(in.Arg(1))
}

func (m *machine) VisitAlloc(in *ir.Instr) {
	n := m.value(in.Arg(0))
	if n < 0 {
		m.err = TrapError{ID: in.ID(), Op: in.Op, Err: errors.Errorf("negative length %d", n)}
		return
	}
	m.regs[in.ID()] = m.mem.Alloc(int(n))
}

func (m *machine) VisitExt(in *ir.Instr) {
	m.regs[in.ID()] = instr.Extend(in.Op, m.value(in.Arg(0)), in.Width)
}

// VisitCall records the call and yields 0.
func (m *machine) VisitCall(in *ir.Instr) {
	c := CallRecord{Callee: in.Callee}
	for _, a := range in.Args() {
		c.Args = append(c.Args, m.value(a))
	}
	m.result.Calls = append(m.result.Calls, c)
	m.regs[in.ID()] = 0
}

func (m *machine) VisitJump(in *ir.Instr) {
	m.next = in.Succs()[0]
}

func (m *machine) VisitIf(in *ir.Instr) {
	succs := in.Succs()
	if m.value(in.Arg(0)) != 0 {
		m.next = succs[0]
	} else {
		m.next = succs[1]
	}
}

func (m *machine) VisitReturn(in *ir.Instr) {
	for _, a := range in.Args() {
		m.result.Returns = append(m.result.Returns, m.value(a))
	}
	m.done = true
}
