package opt

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/nickng/loopopt/dom"
	"github.com/nickng/loopopt/fusion"
	"github.com/nickng/loopopt/internal/logging"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
	"github.com/nickng/loopopt/scev"
	"github.com/pkg/errors"
)

// ErrStaleFacts is the panic value (wrapped) when facts are read after the
// CFG they describe has changed.
var ErrStaleFacts = errors.New("facts read after a CFG change")

// Facts holds the dominator tree, post-dominator tree, loop forest and
// scalar evolution of a function. They are computed together and must be
// recomputed explicitly after any CFG change; moving instructions does not
// invalidate them.
type Facts struct {
	f       *ir.Func
	version uint64
	dt, pdt *dom.Tree
	forest  *loop.Forest
	sc      *scev.Analysis
	logger  *logging.Logger

	Recomputations int
}

var _ fusion.Facts = (*Facts)(nil)

// NewFacts computes the facts of f.
func NewFacts(f *ir.Func) *Facts {
	fc := &Facts{f: f, logger: logging.Nop()}
	fc.compute()
	return fc
}

// SetLogger sets the logger for the facts and the analyses they hold.
func (fc *Facts) SetLogger(l *logging.Logger) {
	fc.logger = l.Tagged(color.BlueString("facts"))
	fc.sc.SetLogger(l)
}

func (fc *Facts) compute() {
	fc.version = fc.f.CFGVersion()
	fc.dt = dom.New(fc.f)
	fc.pdt = dom.NewPost(fc.f)
	fc.forest = loop.Find(fc.f, fc.dt)
	fc.sc = scev.New(fc.f, fc.forest)
	fc.sc.SetLogger(fc.logger)
}

// Recompute rebuilds every fact from the current CFG.
func (fc *Facts) Recompute() {
	fc.compute()
	fc.Recomputations++
	fc.logger.Debugf("%s recomputed for %s: %d loops", fc.logger.Module(), fc.f.Name, fc.forest.Len())
}

// Stale reports whether the CFG changed since the facts were computed.
func (fc *Facts) Stale() bool { return fc.f.CFGVersion() != fc.version }

func (fc *Facts) check() {
	if fc.Stale() {
		panic(errors.Wrap(ErrStaleFacts, fmt.Sprintf("%s: computed at version %d, now %d", fc.f.Name, fc.version, fc.f.CFGVersion())))
	}
}

func (fc *Facts) Func() *ir.Func { return fc.f }

func (fc *Facts) Dom() *dom.Tree {
	fc.check()
	return fc.dt
}

func (fc *Facts) PostDom() *dom.Tree {
	fc.check()
	return fc.pdt
}

func (fc *Facts) Forest() *loop.Forest {
	fc.check()
	return fc.forest
}

func (fc *Facts) SCEV() *scev.Analysis {
	fc.check()
	return fc.sc
}
