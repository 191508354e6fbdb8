package bot

import (
	"context"
	"fmt"
	"time"

	"gridbot/internal/analytics"
	"gridbot/internal/config"
	"gridbot/internal/eventlog"
	"gridbot/internal/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/monitoring"
	"gridbot/internal/risk"
	"gridbot/internal/volatility"
)

// LiveBot ties the engine to a live exchange: it polls prices and
// candles, forwards the fill stream and keeps the health endpoint
// current. The engine remains the single consumer of all events.
type LiveBot struct {
	cfg      *config.Config
	ex       exchange.Exchange
	engine   *grid.Engine
	tracker  *analytics.Tracker
	governor *risk.Governor
	logger   *eventlog.Logger
	health   *monitoring.HealthChecker

	stopChan chan struct{}
}

// New assembles the bot from configuration.
func New(cfg *config.Config, ex exchange.Exchange, logger *eventlog.Logger, health *monitoring.HealthChecker) *LiveBot {
	vol := volatility.New(volatility.Config{
		Window:     cfg.Volatility.Window,
		ATRPeriod:  cfg.Volatility.ATRPeriod,
		MinSamples: cfg.Volatility.MinSamples,
	})
	tracker := analytics.NewTracker(cfg.Risk.InitialCapital)
	governor := risk.NewGovernor(risk.Limits{
		MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
		MaxDrawdown:          cfg.Risk.MaxDrawdown,
		DailyLossLimit:       cfg.Risk.DailyLossLimit,
		RegridBand:           cfg.Volatility.RegridBand,
	}, cfg.Risk.InitialCapital)

	engine := grid.NewEngine(grid.EngineConfig{
		Symbol:            cfg.Trading.Symbol,
		Capital:           cfg.Risk.InitialCapital,
		CapitalFraction:   cfg.Grid.CapitalFraction,
		RangePct:          cfg.Grid.RangePct,
		SpacingPct:        cfg.Grid.SpacingPct,
		Count:             cfg.Grid.Levels,
		MaxSubmitFailures: cfg.Risk.MaxSubmitFailures,
	}, ex, vol, tracker, governor, logger)

	return &LiveBot{
		cfg:      cfg,
		ex:       ex,
		engine:   engine,
		tracker:  tracker,
		governor: governor,
		logger:   logger,
		health:   health,
		stopChan: make(chan struct{}),
	}
}

// Engine exposes the engine for reporting snapshots.
func (b *LiveBot) Engine() *grid.Engine { return b.engine }

// Tracker exposes the cycle tracker for reporting.
func (b *LiveBot) Tracker() *analytics.Tracker { return b.tracker }

// Start connects, warms the volatility window from history and starts
// the engine and the feed goroutines.
func (b *LiveBot) Start(ctx context.Context) error {
	b.logger.Infof("starting grid bot on %s (%s)", b.cfg.Trading.Symbol, b.ex.Name())

	if err := b.ex.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to exchange: %w", err)
	}
	b.health.SetConnected(true)

	// Warm the estimator before the first build so generation 1 is
	// already regime-aware and records a measured ratio for the
	// volatility-drift check.
	candles, err := b.ex.GetKlines(ctx, b.cfg.Trading.Symbol, b.cfg.Trading.KlineInterval, b.cfg.Volatility.Window)
	if err != nil {
		b.logger.Warnf("failed to warm volatility window: %v", err)
	}
	b.engine.Warm(candles)

	if err := b.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	go b.priceLoop(ctx)
	go b.candleLoop(ctx)
	go b.fillLoop(ctx)

	b.logger.Infof("grid bot started")
	return nil
}

func (b *LiveBot) priceLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.Trading.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case <-ticker.C:
			price, err := b.ex.GetLatestPrice(ctx, b.cfg.Trading.Symbol)
			if err != nil {
				b.logger.Errorf("price poll failed: %v", err)
				b.health.AddError(err.Error())
				monitoring.RecordError("price_poll")
				continue
			}
			b.health.UpdatePrice(price)
			b.engine.OnPrice(price)
		}
	}
}

func (b *LiveBot) candleLoop(ctx context.Context) {
	interval := klineDuration(b.cfg.Trading.KlineInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case <-ticker.C:
			candles, err := b.ex.GetKlines(ctx, b.cfg.Trading.Symbol, b.cfg.Trading.KlineInterval, 2)
			if err != nil {
				b.logger.Errorf("kline poll failed: %v", err)
				monitoring.RecordError("kline_poll")
				continue
			}
			if len(candles) < 2 {
				continue
			}
			// The last candle is still forming; feed the closed one.
			b.engine.OnCandle(candles[len(candles)-2])
			b.updateHaltGauge()
		}
	}
}

func (b *LiveBot) fillLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case fill, ok := <-b.ex.Fills():
			if !ok {
				return
			}
			b.health.TouchEvent()
			b.engine.OnFill(fill)
			b.updateHaltGauge()
		}
	}
}

func (b *LiveBot) updateHaltGauge() {
	halted, reason := b.governor.Halted()
	b.health.SetHalted(halted, reason)
}

// Resume clears a sticky risk halt.
func (b *LiveBot) Resume() {
	b.engine.Resume()
	b.health.SetHalted(false, "")
}

// Shutdown cancels outstanding orders and disconnects.
func (b *LiveBot) Shutdown(ctx context.Context) error {
	b.logger.Infof("shutting down grid bot...")
	close(b.stopChan)

	if err := b.engine.Stop(ctx); err != nil {
		b.logger.Errorf("engine stop failed: %v", err)
	}
	if err := b.ex.Disconnect(); err != nil {
		b.logger.Errorf("disconnect failed: %v", err)
	}
	b.health.SetConnected(false)
	b.logger.Infof("grid bot shutdown complete")
	return nil
}

// klineDuration maps a Bybit interval string to a wall-clock duration.
func klineDuration(interval string) time.Duration {
	switch interval {
	case "1":
		return time.Minute
	case "5":
		return 5 * time.Minute
	case "15":
		return 15 * time.Minute
	case "60":
		return time.Hour
	case "240":
		return 4 * time.Hour
	case "D":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
