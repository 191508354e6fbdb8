package volatility

import (
	"math"

	"gridbot/pkg/types"
)

// Regime buckets the current volatility level
type Regime string

const (
	RegimeVeryLow  Regime = "very_low"
	RegimeLow      Regime = "low"
	RegimeNormal   Regime = "normal"
	RegimeHigh     Regime = "high"
	RegimeVeryHigh Regime = "very_high"
)

// Thresholds are the upper bounds of the volatility ratio for each regime.
// A ratio above VeryHigh is still classified as very_high.
type Thresholds struct {
	VeryLow float64
	Low     float64
	Normal  float64
	High    float64
}

// Config controls the estimator window and classification bounds.
type Config struct {
	Window     int
	ATRPeriod  int
	MinSamples int
	Thresholds Thresholds

	// ExtremeRatio and ExtremeMove gate the trading pause check.
	ExtremeRatio float64
	ExtremeMove  float64
}

// DefaultConfig returns the standard estimator tuning.
func DefaultConfig() Config {
	return Config{
		Window:     50,
		ATRPeriod:  14,
		MinSamples: 15,
		Thresholds: Thresholds{
			VeryLow: 0.015,
			Low:     0.025,
			Normal:  0.040,
			High:    0.060,
		},
		ExtremeRatio: 0.12,
		ExtremeMove:  0.05,
	}
}

// Estimator maintains a rolling window of candles and derives a
// normalized volatility ratio (ATR / last close) from it. It performs
// no I/O and is not safe for concurrent use; the engine owns it.
type Estimator struct {
	cfg     Config
	samples []types.OHLCV
}

func New(cfg Config) *Estimator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = DefaultConfig().ATRPeriod
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultConfig().Thresholds
	}
	if cfg.ExtremeRatio <= 0 {
		cfg.ExtremeRatio = DefaultConfig().ExtremeRatio
	}
	if cfg.ExtremeMove <= 0 {
		cfg.ExtremeMove = DefaultConfig().ExtremeMove
	}
	return &Estimator{
		cfg:     cfg,
		samples: make([]types.OHLCV, 0, cfg.Window),
	}
}

// Observe appends a candle to the window, evicting the oldest sample
// once the window is full.
func (e *Estimator) Observe(candle types.OHLCV) {
	e.samples = append(e.samples, candle)
	if len(e.samples) > e.cfg.Window {
		e.samples = e.samples[1:]
	}
}

// Ready reports whether enough samples have accumulated to produce a
// meaningful estimate.
func (e *Estimator) Ready() bool {
	return len(e.samples) >= e.cfg.MinSamples
}

// SampleCount returns the number of candles currently in the window.
func (e *Estimator) SampleCount() int {
	return len(e.samples)
}

// Ratio returns ATR divided by the last close. Before the window has
// MinSamples candles the estimator is neutral and returns 0.
func (e *Estimator) Ratio() float64 {
	if !e.Ready() {
		return 0
	}
	lastClose := e.samples[len(e.samples)-1].Close
	if lastClose <= 0 {
		return 0
	}
	return e.atr() / lastClose
}

// atr computes the average true range over the configured period using
// the classic true range definition.
func (e *Estimator) atr() float64 {
	n := len(e.samples)
	period := e.cfg.ATRPeriod
	if n-1 < period {
		period = n - 1
	}
	if period <= 0 {
		return 0
	}

	sum := 0.0
	for i := n - period; i < n; i++ {
		c := e.samples[i]
		prevClose := e.samples[i-1].Close
		tr := c.High - c.Low
		if hc := math.Abs(c.High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(c.Low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

// StdDevLogReturns returns the standard deviation of log returns over
// the window, as a secondary volatility measure.
func (e *Estimator) StdDevLogReturns() float64 {
	n := len(e.samples)
	if n < 2 {
		return 0
	}

	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev := e.samples[i-1].Close
		cur := e.samples[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}

// Regime classifies the current ratio. Below MinSamples the estimator
// stays neutral and reports the normal regime.
func (e *Estimator) Regime() Regime {
	if !e.Ready() {
		return RegimeNormal
	}
	ratio := e.Ratio()
	t := e.cfg.Thresholds
	switch {
	case ratio < t.VeryLow:
		return RegimeVeryLow
	case ratio < t.Low:
		return RegimeLow
	case ratio < t.Normal:
		return RegimeNormal
	case ratio < t.High:
		return RegimeHigh
	default:
		return RegimeVeryHigh
	}
}

// SpacingMultiplier widens grid spacing in volatile regimes and
// tightens it in quiet ones.
func (e *Estimator) SpacingMultiplier() float64 {
	switch e.Regime() {
	case RegimeVeryLow:
		return 0.7
	case RegimeLow:
		return 0.85
	case RegimeHigh:
		return 1.3
	case RegimeVeryHigh:
		return 1.6
	default:
		return 1.0
	}
}

// PositionMultiplier scales per-level quantity down in volatile regimes
// and slightly up in very quiet ones.
func (e *Estimator) PositionMultiplier() float64 {
	switch e.Regime() {
	case RegimeVeryLow:
		return 1.1
	case RegimeHigh:
		return 0.8
	case RegimeVeryHigh:
		return 0.6
	default:
		return 1.0
	}
}

// ShouldPause reports whether conditions are extreme enough that the
// engine should stop placing new orders: either the ratio itself is
// extreme, or the latest candle moved too far in a single step.
func (e *Estimator) ShouldPause() (bool, string) {
	if !e.Ready() {
		return false, ""
	}
	if ratio := e.Ratio(); ratio > e.cfg.ExtremeRatio {
		return true, "extreme volatility ratio"
	}
	n := len(e.samples)
	if n >= 2 {
		prev := e.samples[n-2].Close
		cur := e.samples[n-1].Close
		if prev > 0 && math.Abs(cur-prev)/prev > e.cfg.ExtremeMove {
			return true, "extreme single-candle move"
		}
	}
	return false, ""
}
