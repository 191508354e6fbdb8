package volatility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/pkg/types"
)

// flatCandle builds a candle at the given close whose true range is
// close * trPct, symmetric around the close.
func flatCandle(close, trPct float64) types.OHLCV {
	return types.OHLCV{
		Timestamp: time.Now(),
		Open:      close,
		High:      close * (1 + trPct/2),
		Low:       close * (1 - trPct/2),
		Close:     close,
		Volume:    10,
	}
}

func feedFlat(e *Estimator, n int, close, trPct float64) {
	for i := 0; i < n; i++ {
		e.Observe(flatCandle(close, trPct))
	}
}

// TestEstimator_NeutralBelowMinSamples verifies the estimator reports
// ratio 0, normal regime and unit multipliers before it has enough data.
func TestEstimator_NeutralBelowMinSamples(t *testing.T) {
	e := New(DefaultConfig())
	feedFlat(e, 10, 100, 0.08) // wildly volatile candles, but too few

	assert.False(t, e.Ready())
	assert.Equal(t, 0.0, e.Ratio())
	assert.Equal(t, RegimeNormal, e.Regime())
	assert.Equal(t, 1.0, e.SpacingMultiplier())
	assert.Equal(t, 1.0, e.PositionMultiplier())

	pause, _ := e.ShouldPause()
	assert.False(t, pause)
}

// TestEstimator_RatioIsATROverClose verifies the ratio derivation on a
// constant-range stream.
func TestEstimator_RatioIsATROverClose(t *testing.T) {
	e := New(DefaultConfig())
	feedFlat(e, 20, 100, 0.02)

	require.True(t, e.Ready())
	assert.InDelta(t, 0.02, e.Ratio(), 1e-9)
}

// TestEstimator_RegimeClassification covers the regime buckets and the
// multipliers attached to each.
func TestEstimator_RegimeClassification(t *testing.T) {
	tests := []struct {
		trPct    float64
		regime   Regime
		spacing  float64
		position float64
	}{
		{0.010, RegimeVeryLow, 0.7, 1.1},
		{0.020, RegimeLow, 0.85, 1.0},
		{0.030, RegimeNormal, 1.0, 1.0},
		{0.050, RegimeHigh, 1.3, 0.8},
		{0.080, RegimeVeryHigh, 1.6, 0.6},
	}

	for _, tt := range tests {
		t.Run(string(tt.regime), func(t *testing.T) {
			e := New(DefaultConfig())
			feedFlat(e, 20, 100, tt.trPct)

			assert.Equal(t, tt.regime, e.Regime())
			assert.Equal(t, tt.spacing, e.SpacingMultiplier())
			assert.Equal(t, tt.position, e.PositionMultiplier())
		})
	}
}

// TestEstimator_WindowEvictsOldSamples verifies old candles roll out so
// the estimate follows current conditions.
func TestEstimator_WindowEvictsOldSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window = 20
	e := New(cfg)

	feedFlat(e, 20, 100, 0.08)
	require.Equal(t, RegimeVeryHigh, e.Regime())

	// A full window of quiet candles displaces the volatile ones.
	feedFlat(e, 20, 100, 0.01)
	assert.Equal(t, 20, e.SampleCount())
	assert.Equal(t, RegimeVeryLow, e.Regime())
}

// TestEstimator_PauseOnExtremeRatio verifies submissions pause when the
// ratio itself is beyond the extreme bound.
func TestEstimator_PauseOnExtremeRatio(t *testing.T) {
	e := New(DefaultConfig())
	feedFlat(e, 20, 100, 0.15)

	pause, reason := e.ShouldPause()
	assert.True(t, pause)
	assert.Contains(t, reason, "ratio")
}

// TestEstimator_PauseOnSingleCandleMove verifies one violent candle
// triggers the pause even while the average stays moderate.
func TestEstimator_PauseOnSingleCandleMove(t *testing.T) {
	e := New(DefaultConfig())
	feedFlat(e, 20, 100, 0.01)

	pause, _ := e.ShouldPause()
	require.False(t, pause)

	// 6% jump in one candle.
	e.Observe(types.OHLCV{Open: 100, High: 106, Low: 100, Close: 106, Volume: 10})

	pause, reason := e.ShouldPause()
	assert.True(t, pause)
	assert.Contains(t, reason, "move")
}

// TestEstimator_StdDevLogReturns verifies the secondary measure is zero
// on a flat stream and positive on a moving one.
func TestEstimator_StdDevLogReturns(t *testing.T) {
	e := New(DefaultConfig())
	feedFlat(e, 20, 100, 0.02)
	assert.Equal(t, 0.0, e.StdDevLogReturns())

	e2 := New(DefaultConfig())
	closes := []float64{100, 102, 99, 103, 98, 104}
	for _, c := range closes {
		e2.Observe(flatCandle(c, 0.01))
	}
	assert.Greater(t, e2.StdDevLogReturns(), 0.0)
}

// TestEstimator_ConfigDefaultsApplied verifies a zero config falls back
// to the standard tuning.
func TestEstimator_ConfigDefaultsApplied(t *testing.T) {
	e := New(Config{})
	feedFlat(e, DefaultConfig().MinSamples, 100, 0.02)
	assert.True(t, e.Ready())
	assert.InDelta(t, 0.02, e.Ratio(), 1e-9)
}
