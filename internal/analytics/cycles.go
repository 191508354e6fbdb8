package analytics

import (
	"sync"
	"time"
)

// Leg is one executed side of a completed cycle.
type Leg struct {
	OrderID string
	Price   float64
	Qty     float64
	Fee     float64
	Time    time.Time
}

// TradeCycle is an immutable record of one completed buy/sell round
// trip on a grid level.
type TradeCycle struct {
	LevelIndex int       `json:"level_index"`
	Generation uint64    `json:"generation"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Qty        float64   `json:"qty"`
	Fees       float64   `json:"fees"`
	NetPnL     float64   `json:"net_pnl"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// RiskState is the running aggregate the governor evaluates after each
// closed cycle.
type RiskState struct {
	Cycles               int       `json:"cycles"`
	Wins                 int       `json:"wins"`
	ConsecutiveLosses    int       `json:"consecutive_losses"`
	MaxConsecutiveLosses int       `json:"max_consecutive_losses"`
	NetPnL               float64   `json:"net_pnl"`
	Equity               float64   `json:"equity"`
	PeakEquity           float64   `json:"peak_equity"`
	Drawdown             float64   `json:"drawdown"`
	DailyPnL             float64   `json:"daily_pnl"`
	Day                  time.Time `json:"day"`
	LargestLoss          float64   `json:"largest_loss"`
}

// Summary aggregates performance statistics over all closed cycles.
type Summary struct {
	Cycles          int     `json:"cycles"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"win_rate"`
	NetPnL          float64 `json:"net_pnl"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	ProfitFactor    float64 `json:"profit_factor"`
	TotalFees       float64 `json:"total_fees"`
	LargestLoss     float64 `json:"largest_loss"`
	MaxConsecLosses int     `json:"max_consecutive_losses"`
	AvgCyclePnL     float64 `json:"avg_cycle_pnl"`
	ReturnOnCapital float64 `json:"return_on_capital"`
}

// Tracker accumulates closed cycles and the derived risk counters.
// Safe for concurrent use; the engine writes and reporting reads.
type Tracker struct {
	mu             sync.Mutex
	initialCapital float64
	cycles         []TradeCycle
	state          RiskState
}

func NewTracker(initialCapital float64) *Tracker {
	return &Tracker{
		initialCapital: initialCapital,
		state: RiskState{
			Equity:     initialCapital,
			PeakEquity: initialCapital,
		},
	}
}

// CloseCycle records a completed round trip and updates the risk
// counters. Net P&L is (exit - entry) * qty minus the fees of both
// legs, at the observed execution prices.
func (t *Tracker) CloseCycle(levelIndex int, generation uint64, buy, sell Leg) TradeCycle {
	t.mu.Lock()
	defer t.mu.Unlock()

	qty := buy.Qty
	if sell.Qty > 0 && sell.Qty < qty {
		qty = sell.Qty
	}
	fees := buy.Fee + sell.Fee

	openedAt := buy.Time
	closedAt := sell.Time
	if sell.Time.Before(buy.Time) {
		openedAt, closedAt = sell.Time, buy.Time
	}

	cycle := TradeCycle{
		LevelIndex: levelIndex,
		Generation: generation,
		EntryPrice: buy.Price,
		ExitPrice:  sell.Price,
		Qty:        qty,
		Fees:       fees,
		NetPnL:     (sell.Price-buy.Price)*qty - fees,
		OpenedAt:   openedAt,
		ClosedAt:   closedAt,
	}
	t.cycles = append(t.cycles, cycle)
	t.apply(cycle)
	return cycle
}

func (t *Tracker) apply(cycle TradeCycle) {
	st := &t.state

	day := cycle.ClosedAt.UTC().Truncate(24 * time.Hour)
	if !day.Equal(st.Day) {
		st.Day = day
		st.DailyPnL = 0
	}

	st.Cycles++
	st.NetPnL += cycle.NetPnL
	st.DailyPnL += cycle.NetPnL
	st.Equity = t.initialCapital + st.NetPnL

	if cycle.NetPnL > 0 {
		st.Wins++
		st.ConsecutiveLosses = 0
	} else {
		st.ConsecutiveLosses++
		if st.ConsecutiveLosses > st.MaxConsecutiveLosses {
			st.MaxConsecutiveLosses = st.ConsecutiveLosses
		}
		if cycle.NetPnL < st.LargestLoss {
			st.LargestLoss = cycle.NetPnL
		}
	}

	if st.Equity > st.PeakEquity {
		st.PeakEquity = st.Equity
	}
	if st.PeakEquity > 0 {
		st.Drawdown = (st.PeakEquity - st.Equity) / st.PeakEquity
	}
}

// State returns a copy of the current risk counters.
func (t *Tracker) State() RiskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cycles returns a copy of all closed cycles in close order.
func (t *Tracker) Cycles() []TradeCycle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TradeCycle, len(t.cycles))
	copy(out, t.cycles)
	return out
}

// Summarize computes aggregate performance statistics.
func (t *Tracker) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		Cycles:          t.state.Cycles,
		Wins:            t.state.Wins,
		Losses:          t.state.Cycles - t.state.Wins,
		NetPnL:          t.state.NetPnL,
		LargestLoss:     t.state.LargestLoss,
		MaxConsecLosses: t.state.MaxConsecutiveLosses,
	}
	for _, c := range t.cycles {
		s.TotalFees += c.Fees
		if c.NetPnL > 0 {
			s.GrossProfit += c.NetPnL
		} else {
			s.GrossLoss += -c.NetPnL
		}
	}
	if s.Cycles > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Cycles)
		s.AvgCyclePnL = s.NetPnL / float64(s.Cycles)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	if t.initialCapital > 0 {
		s.ReturnOnCapital = s.NetPnL / t.initialCapital
	}
	return s
}
