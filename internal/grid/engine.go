package grid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridbot/internal/analytics"
	"gridbot/internal/eventlog"
	"gridbot/internal/exchange"
	"gridbot/internal/monitoring"
	"gridbot/internal/risk"
	"gridbot/internal/volatility"
	"gridbot/pkg/types"
)

// EngineConfig holds the static parameters of the engine.
type EngineConfig struct {
	Symbol            string
	Capital           float64
	CapitalFraction   float64
	RangePct          float64
	SpacingPct        float64
	Count             int
	MaxSubmitFailures int
	CancelRetries     int
}

// event is the single unit of work on the engine channel. Exactly one
// field is set.
type event struct {
	price  *priceEvent
	candle *types.OHLCV
	fill   *exchange.Fill
	cmd    *command
}

type priceEvent struct {
	price float64
	at    time.Time
}

type commandKind int

const (
	cmdRegrid commandKind = iota
	cmdResume
	cmdHalt
	cmdStop
)

type command struct {
	kind   commandKind
	reason string
	done   chan struct{}
}

// Snapshot is a read-only view of the engine for reporting.
type Snapshot struct {
	Symbol       string
	Generation   uint64
	LastPrice    float64
	Halted       bool
	HaltReason   string
	SpacingPct   float64
	RatioAtBuild float64
	Levels       []Level
	Risk         analytics.RiskState
}

// Engine owns the grid ladder. All state mutation happens on one
// goroutine consuming the event channel, so one event is fully
// processed before the next is looked at; callers only enqueue.
type Engine struct {
	cfg      EngineConfig
	ex       exchange.Exchange
	vol      *volatility.Estimator
	tracker  *analytics.Tracker
	governor *risk.Governor
	logger   *eventlog.Logger

	events chan event
	wg     sync.WaitGroup

	// Everything below is owned by the consumer goroutine.
	levels       []*Level
	byOrder      map[string]*Level
	generation   uint64
	ratioAtBuild float64
	spacingPct   float64
	lastPrice    float64
	halted       bool
	haltReason   string
	paused       bool
	submitFails  int
	pendingPairs map[int]*Level

	snapMu   sync.RWMutex
	snapshot Snapshot
}

// NewEngine wires the engine to its collaborators. Call Start to build
// the first generation and begin consuming events.
func NewEngine(
	cfg EngineConfig,
	ex exchange.Exchange,
	vol *volatility.Estimator,
	tracker *analytics.Tracker,
	governor *risk.Governor,
	logger *eventlog.Logger,
) *Engine {
	if cfg.CancelRetries <= 0 {
		cfg.CancelRetries = 3
	}
	if cfg.MaxSubmitFailures <= 0 {
		cfg.MaxSubmitFailures = 3
	}
	return &Engine{
		cfg:          cfg,
		ex:           ex,
		vol:          vol,
		tracker:      tracker,
		governor:     governor,
		logger:       logger,
		events:       make(chan event, 1024),
		byOrder:      make(map[string]*Level),
		pendingPairs: make(map[int]*Level),
	}
}

// Warm seeds the volatility window from historical candles. Call it
// before Start so the first generation is built with a measured ratio
// instead of the neutral cold-start estimate.
func (e *Engine) Warm(candles []types.OHLCV) {
	for _, c := range candles {
		e.vol.Observe(c)
	}
}

// Start builds the initial grid around the latest price and launches
// the consumer goroutine.
func (e *Engine) Start(ctx context.Context) error {
	price, err := e.ex.GetLatestPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("failed to get starting price: %w", err)
	}
	e.lastPrice = price

	if err := e.buildGrid(ctx, price); err != nil {
		return err
	}
	e.publishSnapshot()

	e.wg.Add(1)
	go e.run(ctx)
	return nil
}

// Stop drains the engine: outstanding orders are cancelled and the
// consumer goroutine exits.
func (e *Engine) Stop(ctx context.Context) error {
	done := make(chan struct{})
	e.events <- event{cmd: &command{kind: cmdStop, done: done}}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	e.wg.Wait()
	return nil
}

// OnPrice enqueues a price tick.
func (e *Engine) OnPrice(price float64) {
	e.events <- event{price: &priceEvent{price: price, at: time.Now()}}
}

// OnCandle enqueues a closed candle for the volatility window.
func (e *Engine) OnCandle(c types.OHLCV) {
	candle := c
	e.events <- event{candle: &candle}
}

// OnFill enqueues an execution event.
func (e *Engine) OnFill(f exchange.Fill) {
	fill := f
	e.events <- event{fill: &fill}
}

// Resume clears a sticky halt and rebuilds the grid.
func (e *Engine) Resume() {
	e.events <- event{cmd: &command{kind: cmdResume}}
}

// RequestRegrid forces a grid rebuild at the current price.
func (e *Engine) RequestRegrid(reason string) {
	e.events <- event{cmd: &command{kind: cmdRegrid, reason: reason}}
}

// Snapshot returns the last published read-only view.
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			e.teardown(context.Background())
			return
		case ev := <-e.events:
			switch {
			case ev.price != nil:
				e.handlePrice(ctx, ev.price.price)
			case ev.candle != nil:
				e.handleCandle(ctx, *ev.candle)
			case ev.fill != nil:
				e.handleFill(ctx, *ev.fill)
			case ev.cmd != nil:
				if stop := e.handleCommand(ctx, ev.cmd); stop {
					return
				}
			}
			e.publishSnapshot()
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd *command) bool {
	switch cmd.kind {
	case cmdStop:
		e.teardown(ctx)
		if cmd.done != nil {
			close(cmd.done)
		}
		return true
	case cmdRegrid:
		if !e.halted {
			e.regrid(ctx, cmd.reason)
		}
	case cmdHalt:
		e.halt(ctx, cmd.reason)
	case cmdResume:
		e.governor.Resume()
		e.halted = false
		e.haltReason = ""
		monitoring.SetHalted(e.cfg.Symbol, false)
		e.logger.Record(eventlog.Event{
			Type:    eventlog.EventResume,
			Symbol:  e.cfg.Symbol,
			Message: "trading resumed by operator",
		})
		e.regrid(ctx, "resume")
	}
	if cmd.done != nil {
		close(cmd.done)
	}
	return false
}

func (e *Engine) handlePrice(ctx context.Context, price float64) {
	e.lastPrice = price
	monitoring.UpdatePrice(e.cfg.Symbol, price)
	e.retryPendingPairs(ctx)
	e.retryEmptyLevels(ctx)
}

func (e *Engine) handleCandle(ctx context.Context, c types.OHLCV) {
	e.vol.Observe(c)
	if c.Close > 0 {
		e.lastPrice = c.Close
	}
	monitoring.UpdateVolatility(e.cfg.Symbol, e.vol.Ratio())

	if e.halted {
		return
	}

	if pause, reason := e.vol.ShouldPause(); pause {
		if !e.paused {
			e.paused = true
			e.logger.Alert(e.cfg.Symbol, "pausing submissions: "+reason, nil)
		}
	} else if e.paused {
		e.paused = false
		e.logger.Infof("extreme conditions cleared, submissions resumed")
	}

	e.evaluate(ctx)
}

// handleFill drives the level state machine. Primary fills trigger the
// counter-order one spacing step away; pair fills close the cycle and
// feed the tracker and the governor.
func (e *Engine) handleFill(ctx context.Context, f exchange.Fill) {
	lvl, ok := e.byOrder[f.OrderID]
	if !ok {
		// Fill for an order of a superseded generation that was
		// executed before its cancel landed. Record it and move on.
		e.logger.Alert(e.cfg.Symbol, "fill for unknown order", map[string]interface{}{
			"order_id": f.OrderID, "price": f.Price, "qty": f.Qty,
		})
		return
	}
	delete(e.byOrder, f.OrderID)
	monitoring.RecordOrderFilled(e.cfg.Symbol, string(f.Side))

	fill := Fill{OrderID: f.OrderID, Price: f.Price, Qty: f.Qty, Fee: f.Fee, Time: f.Time}

	switch lvl.State {
	case StateOrderPlaced:
		if err := lvl.MarkFilled(fill); err != nil {
			e.logger.Errorf("fill rejected: %v", err)
			return
		}
		e.logger.Transition(e.cfg.Symbol, lvl.Index, string(StateOrderPlaced), string(StateFilled),
			map[string]interface{}{"price": f.Price, "qty": f.Qty, "fee": f.Fee})
		e.placePairOrder(ctx, lvl)

	case StatePairPlaced:
		if f.OrderID != lvl.PairOrderID {
			e.logger.Errorf("fill order %s does not match pair order %s on level %d",
				f.OrderID, lvl.PairOrderID, lvl.Index)
			return
		}
		if err := lvl.Close(fill); err != nil {
			e.logger.Errorf("close rejected: %v", err)
			return
		}
		e.logger.Transition(e.cfg.Symbol, lvl.Index, string(StatePairPlaced), string(StateClosed), nil)
		e.closeCycle(ctx, lvl)

	default:
		e.logger.Errorf("fill for level %d in unexpected state %s", lvl.Index, lvl.State)
	}
}

// placePairOrder submits the counter-order one spacing step away from
// the level price: a sell above a filled buy, a buy below a filled
// sell. On failure the level stays FILLED and the submission is retried
// on the next price tick.
func (e *Engine) placePairOrder(ctx context.Context, lvl *Level) {
	if e.halted || e.paused {
		e.pendingPairs[lvl.Index] = lvl
		return
	}

	pairSide := lvl.Side.Opposite()
	var pairPrice float64
	if lvl.Side == SideBuy {
		pairPrice = lvl.Price * (1 + e.spacingPct)
	} else {
		pairPrice = lvl.Price * (1 - e.spacingPct)
	}

	qty := lvl.Qty
	if lvl.Entry != nil && lvl.Entry.Qty > 0 {
		qty = lvl.Entry.Qty
	}

	order, err := e.ex.PlaceLimitOrder(ctx, e.cfg.Symbol, exchange.OrderSide(pairSide), qty, pairPrice)
	if err != nil {
		e.noteSubmitFailure(err)
		e.pendingPairs[lvl.Index] = lvl
		return
	}
	e.submitFails = 0
	delete(e.pendingPairs, lvl.Index)

	if err := lvl.PlacePair(order.ID); err != nil {
		e.logger.Errorf("pair placement rejected: %v", err)
		e.cancelOrder(ctx, order.ID)
		return
	}
	e.byOrder[order.ID] = lvl
	monitoring.RecordOrderPlaced(e.cfg.Symbol, string(pairSide))
	e.logger.Transition(e.cfg.Symbol, lvl.Index, string(StateFilled), string(StatePairPlaced),
		map[string]interface{}{"pair_price": pairPrice, "pair_side": string(pairSide)})
}

func (e *Engine) retryPendingPairs(ctx context.Context) {
	if e.halted || e.paused || len(e.pendingPairs) == 0 {
		return
	}
	for _, lvl := range e.pendingPairs {
		if lvl.State == StateFilled {
			e.placePairOrder(ctx, lvl)
		} else {
			delete(e.pendingPairs, lvl.Index)
		}
	}
}

// retryEmptyLevels re-submits primaries that failed to place, so a
// transient submission error does not leave holes in the ladder until
// the next rebuild.
func (e *Engine) retryEmptyLevels(ctx context.Context) {
	if e.halted || e.paused {
		return
	}
	for _, lvl := range e.levels {
		if lvl.State == StateEmpty {
			e.placePrimaryOrders(ctx)
			return
		}
	}
}

// closeCycle books the completed round trip and lets the governor act
// on the updated risk state.
func (e *Engine) closeCycle(ctx context.Context, lvl *Level) {
	var buy, sell analytics.Leg
	entry := analytics.Leg{
		OrderID: lvl.Entry.OrderID, Price: lvl.Entry.Price,
		Qty: lvl.Entry.Qty, Fee: lvl.Entry.Fee, Time: lvl.Entry.Time,
	}
	exit := analytics.Leg{
		OrderID: lvl.Exit.OrderID, Price: lvl.Exit.Price,
		Qty: lvl.Exit.Qty, Fee: lvl.Exit.Fee, Time: lvl.Exit.Time,
	}
	if lvl.Side == SideBuy {
		buy, sell = entry, exit
	} else {
		buy, sell = exit, entry
	}

	cycle := e.tracker.CloseCycle(lvl.Index, lvl.Generation, buy, sell)
	monitoring.RecordCycle(e.cfg.Symbol, cycle.NetPnL)

	st := e.tracker.State()
	monitoring.UpdateRiskState(e.cfg.Symbol, st.Drawdown, st.ConsecutiveLosses)

	e.logger.Record(eventlog.Event{
		Type:    eventlog.EventCycle,
		Symbol:  e.cfg.Symbol,
		Message: fmt.Sprintf("level %d cycle closed, net %.6f", lvl.Index, cycle.NetPnL),
		Fields: map[string]interface{}{
			"entry": cycle.EntryPrice, "exit": cycle.ExitPrice,
			"qty": cycle.Qty, "fees": cycle.Fees, "net": cycle.NetPnL,
		},
	})

	e.evaluate(ctx)
}

// evaluate runs the governor against the current risk state and grid
// shape and applies its decision.
func (e *Engine) evaluate(ctx context.Context) {
	if e.halted {
		return
	}

	res := e.governor.Evaluate(e.tracker.State(), risk.GridContext{
		RatioAtBuild:  e.ratioAtBuild,
		RatioNow:      e.vol.Ratio(),
		SideExhausted: e.sideExhausted(),
	})

	switch res.Decision {
	case risk.DecisionHalt:
		e.logger.Record(eventlog.Event{
			Type: eventlog.EventDecision, Symbol: e.cfg.Symbol,
			Message: "HALT: " + res.Reason,
		})
		e.halt(ctx, res.Reason)
	case risk.DecisionRegrid:
		e.logger.Record(eventlog.Event{
			Type: eventlog.EventDecision, Symbol: e.cfg.Symbol,
			Message: "REGRID: " + res.Reason,
		})
		e.regrid(ctx, res.Reason)
	}
}

// sideExhausted reports whether either side of the ladder has no
// resting primary order left.
func (e *Engine) sideExhausted() bool {
	if len(e.levels) == 0 {
		return false
	}
	buys, sells := 0, 0
	for _, lvl := range e.levels {
		if lvl.State != StateOrderPlaced {
			continue
		}
		if lvl.Side == SideBuy {
			buys++
		} else {
			sells++
		}
	}
	return buys == 0 || sells == 0
}

// buildGrid derives a fresh generation around center and places its
// primary orders. The volatility estimator adapts spacing and quantity.
func (e *Engine) buildGrid(ctx context.Context, center float64) error {
	e.generation++
	e.spacingPct = e.cfg.SpacingPct * e.vol.SpacingMultiplier()
	e.ratioAtBuild = e.vol.Ratio()

	levels, err := BuildLevels(BuildParams{
		Center:          center,
		RangePct:        e.cfg.RangePct,
		SpacingPct:      e.spacingPct,
		Count:           e.cfg.Count,
		Capital:         e.cfg.Capital,
		CapitalFraction: e.cfg.CapitalFraction,
		Generation:      e.generation,
	})
	if err != nil {
		return err
	}

	posMult := e.vol.PositionMultiplier()
	for _, lvl := range levels {
		lvl.Qty *= posMult
	}

	e.levels = levels
	e.byOrder = make(map[string]*Level)
	e.pendingPairs = make(map[int]*Level)
	monitoring.UpdateGeneration(e.cfg.Symbol, e.generation)

	e.logger.Record(eventlog.Event{
		Type:    eventlog.EventRegrid,
		Symbol:  e.cfg.Symbol,
		Message: fmt.Sprintf("generation %d built around %.4f, spacing %.5f", e.generation, center, e.spacingPct),
		Fields:  map[string]interface{}{"levels": len(levels), "ratio": e.ratioAtBuild},
	})

	if e.paused {
		return nil
	}
	e.placePrimaryOrders(ctx)
	return nil
}

func (e *Engine) placePrimaryOrders(ctx context.Context) {
	buys, sells := 0, 0
	for _, lvl := range e.levels {
		if lvl.State != StateEmpty {
			continue
		}
		order, err := e.ex.PlaceLimitOrder(ctx, e.cfg.Symbol, exchange.OrderSide(lvl.Side), lvl.Qty, lvl.Price)
		if err != nil {
			e.noteSubmitFailure(err)
			continue
		}
		e.submitFails = 0
		if err := lvl.PlaceOrder(order.ID); err != nil {
			e.logger.Errorf("order placement rejected: %v", err)
			e.cancelOrder(ctx, order.ID)
			continue
		}
		e.byOrder[order.ID] = lvl
		monitoring.RecordOrderPlaced(e.cfg.Symbol, string(lvl.Side))
		if lvl.Side == SideBuy {
			buys++
		} else {
			sells++
		}
	}
	monitoring.UpdateActiveLevels(e.cfg.Symbol, buys, sells)
}

// regrid tears the active generation down and installs a fresh one
// around the current price. Cancels are idempotent and retried.
func (e *Engine) regrid(ctx context.Context, reason string) {
	e.cancelOutstanding(ctx)
	if err := e.buildGrid(ctx, e.lastPrice); err != nil {
		e.logger.Errorf("regrid failed: %v", err)
		monitoring.RecordError("regrid")
	}
}

// halt cancels everything and stops all further submissions until an
// explicit resume.
func (e *Engine) halt(ctx context.Context, reason string) {
	e.halted = true
	e.haltReason = reason
	monitoring.SetHalted(e.cfg.Symbol, true)
	e.cancelOutstanding(ctx)
	e.logger.Record(eventlog.Event{
		Type:    eventlog.EventHalt,
		Symbol:  e.cfg.Symbol,
		Message: "trading halted: " + reason,
	})
}

func (e *Engine) cancelOutstanding(ctx context.Context) {
	for _, lvl := range e.levels {
		orderID := lvl.OutstandingOrderID()
		if orderID == "" {
			if lvl.State != StateClosed {
				lvl.Reset()
			}
			continue
		}
		e.cancelOrder(ctx, orderID)
		delete(e.byOrder, orderID)
		lvl.Reset()
	}
	e.pendingPairs = make(map[int]*Level)
	monitoring.UpdateActiveLevels(e.cfg.Symbol, 0, 0)
}

// cancelOrder retries a failed cancel a bounded number of times.
// Cancelling an order that already left the book succeeds by contract.
func (e *Engine) cancelOrder(ctx context.Context, orderID string) {
	var err error
	for attempt := 0; attempt < e.cfg.CancelRetries; attempt++ {
		if err = e.ex.CancelOrder(ctx, e.cfg.Symbol, orderID); err == nil {
			monitoring.RecordOrderCancelled(e.cfg.Symbol)
			return
		}
	}
	monitoring.RecordError("cancel")
	e.logger.Alert(e.cfg.Symbol, "order cancellation failed after retries",
		map[string]interface{}{"order_id": orderID, "error": err.Error()})
}

func (e *Engine) noteSubmitFailure(err error) {
	e.submitFails++
	monitoring.RecordError("submit")
	e.logger.Errorf("order submission failed (%d consecutive): %v", e.submitFails, err)
	if e.submitFails >= e.cfg.MaxSubmitFailures {
		e.logger.Alert(e.cfg.Symbol, "repeated order submission failures",
			map[string]interface{}{"count": e.submitFails, "error": err.Error()})
	}
}

func (e *Engine) teardown(ctx context.Context) {
	e.cancelOutstanding(ctx)
	e.publishSnapshot()
}

func (e *Engine) publishSnapshot() {
	levels := make([]Level, len(e.levels))
	for i, lvl := range e.levels {
		levels[i] = lvl.Clone()
	}
	snap := Snapshot{
		Symbol:       e.cfg.Symbol,
		Generation:   e.generation,
		LastPrice:    e.lastPrice,
		Halted:       e.halted,
		HaltReason:   e.haltReason,
		SpacingPct:   e.spacingPct,
		RatioAtBuild: e.ratioAtBuild,
		Levels:       levels,
		Risk:         e.tracker.State(),
	}
	e.snapMu.Lock()
	e.snapshot = snap
	e.snapMu.Unlock()
}
