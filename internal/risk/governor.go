package risk

import (
	"fmt"
	"math"
	"sync"

	"gridbot/internal/analytics"
)

// Decision is the governor's verdict after a closed cycle or a
// volatility update.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionRegrid
	DecisionHalt
)

func (d Decision) String() string {
	switch d {
	case DecisionRegrid:
		return "REGRID"
	case DecisionHalt:
		return "HALT"
	default:
		return "CONTINUE"
	}
}

// Result carries the decision and a human-readable reason.
type Result struct {
	Decision Decision
	Reason   string
}

// Limits are the configured risk thresholds.
type Limits struct {
	MaxConsecutiveLosses int
	MaxDrawdown          float64
	DailyLossLimit       float64
	RegridBand           float64
}

// GridContext carries the grid-shaped inputs to an evaluation: the
// volatility ratio recorded when the active generation was built, the
// ratio now, and whether one side of the ladder has run dry.
type GridContext struct {
	RatioAtBuild  float64
	RatioNow      float64
	SideExhausted bool
}

// Governor applies the risk limits. A halt is sticky: once tripped,
// every evaluation returns HALT until Resume is called explicitly.
type Governor struct {
	mu             sync.Mutex
	limits         Limits
	initialCapital float64
	halted         bool
	haltReason     string
}

func NewGovernor(limits Limits, initialCapital float64) *Governor {
	return &Governor{limits: limits, initialCapital: initialCapital}
}

// Evaluate checks halt conditions first, then regrid conditions. Halt
// takes precedence: a state that breaches both yields HALT.
func (g *Governor) Evaluate(st analytics.RiskState, gc GridContext) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.halted {
		return Result{DecisionHalt, g.haltReason}
	}

	if g.limits.MaxConsecutiveLosses > 0 && st.ConsecutiveLosses >= g.limits.MaxConsecutiveLosses {
		return g.trip(fmt.Sprintf("consecutive losses %d reached limit %d",
			st.ConsecutiveLosses, g.limits.MaxConsecutiveLosses))
	}

	if g.limits.MaxDrawdown > 0 && st.Drawdown >= g.limits.MaxDrawdown {
		return g.trip(fmt.Sprintf("drawdown %.4f reached limit %.4f",
			st.Drawdown, g.limits.MaxDrawdown))
	}

	if g.limits.DailyLossLimit > 0 && g.initialCapital > 0 && st.DailyPnL < 0 {
		lossFraction := -st.DailyPnL / g.initialCapital
		if lossFraction >= g.limits.DailyLossLimit {
			return g.trip(fmt.Sprintf("daily loss %.4f reached limit %.4f",
				lossFraction, g.limits.DailyLossLimit))
		}
	}

	if gc.SideExhausted {
		return Result{DecisionRegrid, "grid side exhausted"}
	}

	// A zero RatioAtBuild means the grid was built before the estimator
	// was ready; it counts as a zero baseline, so the first measured
	// ratio beyond the band rebuilds the blind grid.
	if g.limits.RegridBand > 0 && gc.RatioNow > 0 {
		if math.Abs(gc.RatioNow-gc.RatioAtBuild) > g.limits.RegridBand {
			return Result{DecisionRegrid, fmt.Sprintf(
				"volatility ratio drifted from %.4f to %.4f", gc.RatioAtBuild, gc.RatioNow)}
		}
	}

	return Result{DecisionContinue, ""}
}

func (g *Governor) trip(reason string) Result {
	g.halted = true
	g.haltReason = reason
	return Result{DecisionHalt, reason}
}

// Halted reports the sticky halt state and its reason.
func (g *Governor) Halted() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted, g.haltReason
}

// Resume clears a sticky halt. Only an explicit operator action calls
// this; the governor never resumes on its own.
func (g *Governor) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = false
	g.haltReason = ""
}
