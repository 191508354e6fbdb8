package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gridbot/internal/bot"
	"gridbot/internal/config"
	"gridbot/internal/eventlog"
	"gridbot/internal/exchange"
	"gridbot/internal/exchange/bybit"
	"gridbot/internal/monitoring"
	"gridbot/pkg/reporting"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	envFile := flag.String("env", ".env", "path to .env file with credentials")
	flag.Parse()

	// Credentials live in the environment, optionally seeded from .env.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("starting grid bot in %s mode", cfg.Environment)

	logger, err := eventlog.New(cfg.LogDir, eventlog.ParseLevel(cfg.LogLevel))
	if err != nil {
		log.Fatalf("failed to initialize event log: %v", err)
	}
	defer logger.Close()

	ex := exchange.NewBybitExchange(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Category:  cfg.Exchange.Category,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	}, exchange.BybitOptions{})

	healthChecker := monitoring.NewHealthChecker()
	go setupMonitoringServers(cfg, healthChecker)

	gridBot := bot.New(cfg, ex, logger, healthChecker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gridBot.Start(ctx); err != nil {
		log.Fatalf("bot failed to start: %v", err)
	}

	// Periodic console status.
	console := reporting.NewConsoleReporter()
	statusTicker := time.NewTicker(5 * time.Minute)
	defer statusTicker.Stop()
	go func() {
		for range statusTicker.C {
			snap := gridBot.Engine().Snapshot()
			console.PrintGrid(snap)
			console.PrintSummary(gridBot.Tracker().Summarize(), snap.Risk)
		}
	}()

	// Wait for shutdown signal.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the engine before cancelling the run context so outstanding
	// orders are cancelled through the normal drain path.
	if err := gridBot.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	cancel()

	snap := gridBot.Engine().Snapshot()
	console.PrintSummary(gridBot.Tracker().Summarize(), snap.Risk)
	log.Println("bot stopped")
}

func setupMonitoringServers(cfg *config.Config, healthChecker *monitoring.HealthChecker) {
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", healthChecker)

	go func() {
		log.Printf("starting health server on port %d", cfg.Monitoring.HealthPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Monitoring.HealthPort), healthMux); err != nil {
			log.Printf("health server error: %v", err)
		}
	}()

	go func() {
		log.Printf("starting Prometheus server on port %d", cfg.Monitoring.PrometheusPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), monitoring.NewMetricsHandler()); err != nil {
			log.Printf("prometheus server error: %v", err)
		}
	}()
}
