package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gridbot/internal/analytics"
)

func defaultLimits() Limits {
	return Limits{
		MaxConsecutiveLosses: 5,
		MaxDrawdown:          0.15,
		DailyLossLimit:       0.05,
		RegridBand:           0.015,
	}
}

// TestEvaluate_Continue verifies a healthy state passes through.
func TestEvaluate_Continue(t *testing.T) {
	g := NewGovernor(defaultLimits(), 1000)
	res := g.Evaluate(analytics.RiskState{ConsecutiveLosses: 1, Drawdown: 0.02}, GridContext{})
	assert.Equal(t, DecisionContinue, res.Decision)
}

// TestEvaluate_HaltConditions covers each halt trigger, including the
// inclusive boundary on every threshold.
func TestEvaluate_HaltConditions(t *testing.T) {
	tests := []struct {
		name   string
		state  analytics.RiskState
		expect Decision
	}{
		{"losses below limit", analytics.RiskState{ConsecutiveLosses: 4}, DecisionContinue},
		{"losses at limit", analytics.RiskState{ConsecutiveLosses: 5}, DecisionHalt},
		{"losses above limit", analytics.RiskState{ConsecutiveLosses: 7}, DecisionHalt},
		{"drawdown below limit", analytics.RiskState{Drawdown: 0.1499}, DecisionContinue},
		{"drawdown at limit", analytics.RiskState{Drawdown: 0.15}, DecisionHalt},
		{"daily loss below limit", analytics.RiskState{DailyPnL: -49.99}, DecisionContinue},
		{"daily loss at limit", analytics.RiskState{DailyPnL: -50}, DecisionHalt},
		{"daily profit never halts", analytics.RiskState{DailyPnL: 500}, DecisionContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGovernor(defaultLimits(), 1000)
			res := g.Evaluate(tt.state, GridContext{})
			assert.Equal(t, tt.expect, res.Decision)
			if tt.expect == DecisionHalt {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

// TestEvaluate_HaltTakesPrecedenceOverRegrid verifies a state breaching
// both a halt limit and a regrid condition yields HALT.
func TestEvaluate_HaltTakesPrecedenceOverRegrid(t *testing.T) {
	g := NewGovernor(defaultLimits(), 1000)
	res := g.Evaluate(
		analytics.RiskState{ConsecutiveLosses: 5},
		GridContext{SideExhausted: true, RatioAtBuild: 0.02, RatioNow: 0.08})
	assert.Equal(t, DecisionHalt, res.Decision)
}

// TestEvaluate_HaltIsSticky verifies that once tripped, the governor
// keeps returning HALT for healthy states until Resume.
func TestEvaluate_HaltIsSticky(t *testing.T) {
	g := NewGovernor(defaultLimits(), 1000)

	res := g.Evaluate(analytics.RiskState{Drawdown: 0.2}, GridContext{})
	assert.Equal(t, DecisionHalt, res.Decision)

	halted, reason := g.Halted()
	assert.True(t, halted)
	assert.NotEmpty(t, reason)

	res = g.Evaluate(analytics.RiskState{}, GridContext{})
	assert.Equal(t, DecisionHalt, res.Decision)
	assert.Equal(t, reason, res.Reason)

	g.Resume()
	halted, _ = g.Halted()
	assert.False(t, halted)
	res = g.Evaluate(analytics.RiskState{}, GridContext{})
	assert.Equal(t, DecisionContinue, res.Decision)
}

// TestEvaluate_RegridOnSideExhaustion verifies an empty side forces a
// rebuild.
func TestEvaluate_RegridOnSideExhaustion(t *testing.T) {
	g := NewGovernor(defaultLimits(), 1000)
	res := g.Evaluate(analytics.RiskState{}, GridContext{SideExhausted: true})
	assert.Equal(t, DecisionRegrid, res.Decision)
}

// TestEvaluate_RegridOnVolatilityDrift verifies the band check fires on
// drift from the build-time ratio, treating an unmeasured build as a
// zero baseline.
func TestEvaluate_RegridOnVolatilityDrift(t *testing.T) {
	tests := []struct {
		name    string
		atBuild float64
		now     float64
		expect  Decision
	}{
		{"within band", 0.020, 0.030, DecisionContinue},
		{"drift up beyond band", 0.020, 0.040, DecisionRegrid},
		{"drift down beyond band", 0.040, 0.020, DecisionRegrid},
		{"unmeasured at build, ratio within band", 0, 0.010, DecisionContinue},
		{"unmeasured at build, ratio beyond band", 0, 0.040, DecisionRegrid},
		{"no ratio now", 0.040, 0, DecisionContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGovernor(defaultLimits(), 1000)
			res := g.Evaluate(analytics.RiskState{}, GridContext{RatioAtBuild: tt.atBuild, RatioNow: tt.now})
			assert.Equal(t, tt.expect, res.Decision)
		})
	}
}

// TestEvaluate_DisabledLimits verifies zero-valued limits never trip.
func TestEvaluate_DisabledLimits(t *testing.T) {
	g := NewGovernor(Limits{}, 1000)
	res := g.Evaluate(
		analytics.RiskState{ConsecutiveLosses: 100, Drawdown: 0.99, DailyPnL: -900},
		GridContext{RatioAtBuild: 0.01, RatioNow: 0.2})
	assert.Equal(t, DecisionContinue, res.Decision)
}

// TestDecision_String covers the log rendering of decisions.
func TestDecision_String(t *testing.T) {
	assert.Equal(t, "CONTINUE", DecisionContinue.String())
	assert.Equal(t, "REGRID", DecisionRegrid.String())
	assert.Equal(t, "HALT", DecisionHalt.String())
}
