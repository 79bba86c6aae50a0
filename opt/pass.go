// Package opt runs loop-invariant code motion and loop fusion over ir
// functions.
package opt

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/nickng/loopopt/fusion"
	"github.com/nickng/loopopt/internal/logging"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/licm"
)

// Stats counts what a Pass did.
type Stats struct {
	Funcs          int
	Hoisted        int
	Fused          int
	Rounds         int
	Recomputations int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d funcs, %d hoisted, %d fused, %d rounds, %d recomputations",
		s.Funcs, s.Hoisted, s.Fused, s.Rounds, s.Recomputations)
}

// Pass is the loop optimizer.
type Pass struct {
	cfg    *Config
	licm   *licm.LICM
	fusion *fusion.Fusion
	logger *Logger

	Stats Stats
}

// New returns a pass configured by cfg.
func New(cfg Configurer) *Pass {
	c := cfg.Config()
	p := &Pass{
		cfg:    c,
		licm:   licm.New(),
		fusion: fusion.New(),
		logger: c.logger.Tagged(color.YellowString("pass ")),
	}
	for _, s := range []logging.LogSetter{p.licm, p.fusion} {
		s.SetLogger(c.logger)
	}
	p.fusion.Conservative = c.conservative
	return p
}

// Run optimizes f in place and reports whether it changed. Each round runs
// LICM over every loop nest, then fusion level by level; rounds repeat
// while something changes, up to the configured maximum.
func (p *Pass) Run(f *ir.Func) bool {
	p.Stats.Funcs++
	facts := NewFacts(f)
	facts.SetLogger(p.cfg.logger)
	changed := false
	for round := 0; round < p.cfg.maxRounds; round++ {
		p.Stats.Rounds++
		hoisted, fused := 0, 0
		if p.cfg.licm {
			hoisted = p.licm.Run(f, facts.Dom(), facts.Forest())
		}
		if p.cfg.fusion {
			fused = p.fusion.Run(facts)
		}
		p.logger.Debugf("%s %s round %d: %d hoisted, %d fused", p.logger.Module(), f.Name, round, hoisted, fused)
		p.Stats.Hoisted += hoisted
		p.Stats.Fused += fused
		if hoisted+fused == 0 {
			break
		}
		changed = true
	}
	p.Stats.Recomputations += facts.Recomputations
	return changed
}
