package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"gridbot/internal/analytics"
	"gridbot/internal/config"
	"gridbot/internal/eventlog"
	"gridbot/internal/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/risk"
	"gridbot/internal/volatility"
	"gridbot/pkg/reporting"
	"gridbot/pkg/types"
)

// griddemo runs the grid engine against the in-memory paper exchange
// over a synthetic random-walk price stream, then prints and exports
// the session report.
func main() {
	steps := flag.Int("steps", 500, "number of simulated candles")
	start := flag.Float64("start", 100.0, "starting price")
	vol := flag.Float64("vol", 0.004, "per-step volatility")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	excelPath := flag.String("excel", "results/demo_report.xlsx", "Excel report path (empty to skip)")
	jsonPath := flag.String("json", "results/demo_snapshot.json", "JSON snapshot path (empty to skip)")
	flag.Parse()

	cfg := config.Default()
	cfg.Trading.Symbol = "DEMOUSDT"

	logger := eventlog.NewDiscard()
	rng := rand.New(rand.NewSource(*seed))

	paper := exchange.NewPaperExchange(cfg.Trading.Symbol, cfg.Fees.MakerRate, cfg.Risk.InitialCapital)
	paper.SetPrice(*start)

	estimator := volatility.New(volatility.Config{
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
		Symbol:          cfg.Trading.Symbol,
		Capital:         cfg.Risk.InitialCapital,
		CapitalFraction: cfg.Grid.CapitalFraction,
		RangePct:        cfg.Grid.RangePct,
		SpacingPct:      cfg.Grid.SpacingPct,
		Count:           cfg.Grid.Levels,
	}, paper, estimator, tracker, governor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := paper.Connect(ctx); err != nil {
		log.Fatalf("paper connect failed: %v", err)
	}
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("engine start failed: %v", err)
	}

	// Forward simulated fills to the engine.
	fillsDone := make(chan struct{})
	go func() {
		defer close(fillsDone)
		for fill := range paper.Fills() {
			engine.OnFill(fill)
		}
	}()

	log.Printf("simulating %d candles from %.2f (seed %d)", *steps, *start, *seed)

	price := *start
	for i := 0; i < *steps; i++ {
		open := price
		change := rng.NormFloat64() * *vol * price
		closePrice := open + change
		high := open
		if closePrice > high {
			high = closePrice
		}
		low := open
		if closePrice < low {
			low = closePrice
		}
		candle := types.OHLCV{
			Timestamp: time.Now(),
			Open:      open,
			High:      high * (1 + rng.Float64()**vol/2),
			Low:       low * (1 - rng.Float64()**vol/2),
			Close:     closePrice,
			Volume:    rng.Float64() * 100,
		}
		paper.AppendCandle(candle)
		engine.OnCandle(candle)
		engine.OnPrice(closePrice)
		price = closePrice

		// Let the engine drain between steps so fills land in order.
		time.Sleep(time.Millisecond)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := engine.Stop(stopCtx); err != nil {
		log.Printf("engine stop: %v", err)
	}
	paper.Disconnect()
	<-fillsDone

	snap := engine.Snapshot()
	summary := tracker.Summarize()
	cycles := tracker.Cycles()

	console := reporting.NewConsoleReporter()
	console.PrintGrid(snap)
	console.PrintSummary(summary, snap.Risk)

	if *excelPath != "" {
		if err := reporting.NewExcelReporter().WriteReport(cycles, summary, *excelPath); err != nil {
			log.Printf("excel report failed: %v", err)
		} else {
			log.Printf("excel report written to %s", *excelPath)
		}
	}
	if *jsonPath != "" {
		if err := reporting.WriteJSONSnapshot(snap, summary, cycles, *jsonPath); err != nil {
			log.Printf("json snapshot failed: %v", err)
		} else {
			log.Printf("json snapshot written to %s", *jsonPath)
		}
	}
}
