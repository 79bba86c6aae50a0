// Package licm hoists loop-invariant arithmetic out of loops.
//
// Each loop of a nest is processed outermost first: FindInvariants collects
// the invariant binary instructions, FilterLegal drops those that cannot be
// moved, and Hoist moves the rest to the loop preheader.
package licm

import (
	"github.com/fatih/color"
	"github.com/nickng/loopopt/dom"
	"github.com/nickng/loopopt/internal/logging"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// LICM is the loop-invariant code motion pass.
type LICM struct {
	logger *logging.Logger
}

// New returns a LICM pass which does not log.
func New() *LICM {
	return &LICM{logger: logging.Nop().Tagged(color.GreenString("licm "))}
}

// SetLogger sets the logger for the pass.
func (p *LICM) SetLogger(l *logging.Logger) {
	p.logger = l.Tagged(color.GreenString("licm "))
}

// Run hoists invariant instructions in every loop of forest, repeating the
// walk until it moves nothing. dt and forest must be up to date for f; code
// motion leaves them valid. It returns the number of instructions moved.
func (p *LICM) Run(f *ir.Func, dt *dom.Tree, forest *loop.Forest) int {
	total := 0
	for {
		n := p.walk(f, dt, forest)
		total += n
		if n == 0 {
			return total
		}
	}
}

func (p *LICM) walk(f *ir.Func, dt *dom.Tree, forest *loop.Forest) int {
	s := NewCandidates()
	moved := 0
	for _, l := range forest.Preorder() {
		FindInvariants(f, l, s)
		if s.Len() == 0 {
			continue
		}
		p.logger.Debugf("%s loop %s invariants: %v", p.logger.Module(), l.Header, s.IDs())
		FilterLegal(f, l, dt, s, func(id ir.ID, r Reason) {
			p.logger.Debugf("%s drop %s: %s", p.logger.Module(), id, r)
		})
		if l.Preheader == ir.NoBlock && s.Len() > 0 {
			p.logger.Infof("%s loop %s has no preheader, skipped", p.logger.Module(), l.Header)
		}
		ids := Hoist(f, l, s)
		for _, id := range ids {
			p.logger.Infof("%s hoisted %s to %s", p.logger.Module(), f.Instr(id), l.Preheader)
		}
		moved += len(ids)
	}
	return moved
}
