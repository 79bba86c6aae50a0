// Package fusion merges adjacent sibling loops that run the same number of
// iterations into a single loop.
//
// A pair (l1, l2) is fused when the loops are adjacent (Adjacent),
// control-flow equivalent (Equivalent), iterate equally often
// (SameTripCount), carry no dependence that fusion would reverse
// (NoNegativeDistance), and have a shape the executor handles (NewPlan).
package fusion

import (
	"github.com/fatih/color"
	"github.com/nickng/loopopt/dom"
	"github.com/nickng/loopopt/internal/logging"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
	"github.com/nickng/loopopt/scev"
	"github.com/pkg/errors"
)

// Facts are the analyses of one function read by fusion. Every accessor
// reflects the CFG as of the last Recompute.
type Facts interface {
	Func() *ir.Func
	Dom() *dom.Tree
	PostDom() *dom.Tree
	Forest() *loop.Forest
	SCEV() *scev.Analysis
	Recompute()
}

// Fusion is the loop fusion pass.
type Fusion struct {
	Conservative bool // reject pairs whose dependence distance is unknown

	logger *logging.Logger
}

// New returns a fusion pass which does not log.
func New() *Fusion {
	return &Fusion{logger: logging.Nop().Tagged(color.CyanString("fuse "))}
}

// SetLogger sets the logger for the pass.
func (p *Fusion) SetLogger(l *logging.Logger) {
	p.logger = l.Tagged(color.CyanString("fuse "))
}

// Run fuses sibling loops level by level, outermost first, and returns the
// number of fused pairs. Facts are recomputed after each fusion.
func (p *Fusion) Run(facts Facts) int {
	return p.level(facts, headers(facts.Forest().TopLevel()))
}

// headers identify loops across recomputations: fusion keeps the header of
// the first loop of a pair.
func headers(ls []*loop.Loop) []ir.BlockID {
	hs := make([]ir.BlockID, len(ls))
	for i, l := range ls {
		hs[i] = l.Header
	}
	return hs
}

// level pairs the loops headed by hs in program order. A fused pair stays
// at the front to be paired with the next sibling; a rejected pair retires
// its first loop.
func (p *Fusion) level(facts Facts, hs []ir.BlockID) int {
	fused := 0
	var done []ir.BlockID
	for len(hs) >= 2 {
		fr := facts.Forest()
		l1, l2 := fr.ByHeader(hs[0]), fr.ByHeader(hs[1])
		if err := p.Fuse(facts, l1, l2); err != nil {
			p.logger.Debugf("%s %s + %s rejected: %v", p.logger.Module(), l1.Header, l2.Header, err)
			done = append(done, hs[0])
			hs = hs[1:]
			continue
		}
		p.logger.Infof("%s fused %s into %s", p.logger.Module(), hs[1], hs[0])
		fused++
		hs = append(hs[:1], hs[2:]...)
	}
	done = append(done, hs...)
	for _, h := range done {
		fused += p.level(facts, headers(facts.Forest().ByHeader(h).Children))
	}
	return fused
}

// Fuse checks and fuses l1 and l2, then recomputes facts. On error nothing
// is modified.
func (p *Fusion) Fuse(facts Facts, l1, l2 *loop.Loop) error {
	f := facts.Func()
	if err := Adjacent(f, l1, l2); err != nil {
		return err
	}
	if err := Equivalent(facts.Dom(), facts.PostDom(), l1, l2); err != nil {
		return err
	}
	sc := facts.SCEV()
	if err := SameTripCount(sc, l1, l2); err != nil {
		return err
	}
	if err := NoNegativeDistance(f, sc, l1, l2, p.Conservative); err != nil {
		return err
	}
	plan, err := NewPlan(f, sc, l1, l2)
	if err != nil {
		return errors.Wrapf(err, "%s + %s", l1.Header, l2.Header)
	}
	plan.Apply()
	facts.Recompute()
	return nil
}
