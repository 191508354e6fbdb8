package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	boterrors "gridbot/internal/errors"
)

// Config is the full bot configuration. Values come from a JSON file,
// environment variables override the file, and credentials come from the
// environment only.
type Config struct {
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`
	LogDir      string `json:"log_dir"`

	Exchange   ExchangeConfig   `json:"exchange"`
	Trading    TradingConfig    `json:"trading"`
	Grid       GridConfig       `json:"grid"`
	Risk       RiskConfig       `json:"risk"`
	Volatility VolatilityConfig `json:"volatility"`
	Fees       FeeConfig        `json:"fees"`
	Monitoring MonitoringConfig `json:"monitoring"`
}

type ExchangeConfig struct {
	Name      string `json:"name"`
	APIKey    string `json:"-"`
	APISecret string `json:"-"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
	Category  string `json:"category"` // "spot" or "linear"
}

type TradingConfig struct {
	Symbol        string        `json:"symbol"`
	QuoteAsset    string        `json:"quote_asset"`
	KlineInterval string        `json:"kline_interval"`
	PollInterval  time.Duration `json:"poll_interval"`
}

type GridConfig struct {
	RangePct        float64 `json:"range_pct"`
	SpacingPct      float64 `json:"spacing_pct"`
	Levels          int     `json:"levels"`
	CapitalFraction float64 `json:"capital_fraction"`
}

type RiskConfig struct {
	InitialCapital       float64 `json:"initial_capital"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	DailyLossLimit       float64 `json:"daily_loss_limit"`
	MaxSubmitFailures    int     `json:"max_submit_failures"`
}

type VolatilityConfig struct {
	Window     int     `json:"window"`
	ATRPeriod  int     `json:"atr_period"`
	MinSamples int     `json:"min_samples"`
	RegridBand float64 `json:"regrid_band"`
}

type FeeConfig struct {
	MakerRate float64 `json:"maker_rate"`
	TakerRate float64 `json:"taker_rate"`
}

type MonitoringConfig struct {
	PrometheusPort int `json:"prometheus_port"`
	HealthPort     int `json:"health_port"`
}

// Default returns a configuration with sensible defaults for BTCUSDT
// grid trading. File and environment values override these.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		LogDir:      "logs",
		Exchange: ExchangeConfig{
			Name:     "bybit",
			Testnet:  true,
			Category: "spot",
		},
		Trading: TradingConfig{
			Symbol:        "BTCUSDT",
			QuoteAsset:    "USDT",
			KlineInterval: "5",
			PollInterval:  5 * time.Second,
		},
		Grid: GridConfig{
			RangePct:        0.10,
			SpacingPct:      0.005,
			Levels:          10,
			CapitalFraction: 0.5,
		},
		Risk: RiskConfig{
			InitialCapital:       1000,
			MaxConsecutiveLosses: 5,
			MaxDrawdown:          0.15,
			DailyLossLimit:       0.05,
			MaxSubmitFailures:    3,
		},
		Volatility: VolatilityConfig{
			Window:     50,
			ATRPeriod:  14,
			MinSamples: 15,
			RegridBand: 0.015,
		},
		Fees: FeeConfig{
			MakerRate: 0.001,
			TakerRate: 0.001,
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 8080,
			HealthPort:     8081,
		},
	}
}

// Load reads the configuration file at path (if non-empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogDir = getEnv("LOG_DIR", c.LogDir)

	c.Exchange.Name = getEnv("EXCHANGE_NAME", c.Exchange.Name)
	c.Exchange.APIKey = getEnv("BYBIT_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BYBIT_API_SECRET", c.Exchange.APISecret)
	c.Exchange.Testnet = getEnvBool("BYBIT_TESTNET", c.Exchange.Testnet)
	c.Exchange.Demo = getEnvBool("BYBIT_DEMO", c.Exchange.Demo)
	c.Exchange.Category = getEnv("BYBIT_CATEGORY", c.Exchange.Category)

	c.Trading.Symbol = getEnv("TRADING_SYMBOL", c.Trading.Symbol)
	c.Trading.QuoteAsset = getEnv("QUOTE_ASSET", c.Trading.QuoteAsset)
	c.Trading.KlineInterval = getEnv("KLINE_INTERVAL", c.Trading.KlineInterval)
	c.Trading.PollInterval = getEnvDuration("POLL_INTERVAL", c.Trading.PollInterval)

	c.Grid.RangePct = getEnvFloat("GRID_RANGE_PCT", c.Grid.RangePct)
	c.Grid.SpacingPct = getEnvFloat("GRID_SPACING_PCT", c.Grid.SpacingPct)
	c.Grid.Levels = getEnvInt("GRID_LEVELS", c.Grid.Levels)
	c.Grid.CapitalFraction = getEnvFloat("GRID_CAPITAL_FRACTION", c.Grid.CapitalFraction)

	c.Risk.InitialCapital = getEnvFloat("INITIAL_CAPITAL", c.Risk.InitialCapital)
	c.Risk.MaxConsecutiveLosses = getEnvInt("MAX_CONSECUTIVE_LOSSES", c.Risk.MaxConsecutiveLosses)
	c.Risk.MaxDrawdown = getEnvFloat("MAX_DRAWDOWN", c.Risk.MaxDrawdown)
	c.Risk.DailyLossLimit = getEnvFloat("DAILY_LOSS_LIMIT", c.Risk.DailyLossLimit)

	c.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", c.Monitoring.PrometheusPort)
	c.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", c.Monitoring.HealthPort)
}

// Validate rejects configurations the engine cannot safely run with.
func (c *Config) Validate() error {
	if c.Trading.Symbol == "" {
		return boterrors.NewConfigurationError("config", "validate", "trading symbol is required")
	}
	if c.Grid.Levels < 2 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("grid levels must be at least 2, got %d", c.Grid.Levels))
	}
	if c.Grid.SpacingPct <= 0 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("grid spacing must be positive, got %v", c.Grid.SpacingPct))
	}
	if c.Grid.RangePct <= 0 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("grid range must be positive, got %v", c.Grid.RangePct))
	}
	half := (c.Grid.Levels + 1) / 2
	if c.Grid.SpacingPct*float64(half) > c.Grid.RangePct {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("grid does not fit: spacing %v x %d levels per side exceeds range %v",
				c.Grid.SpacingPct, half, c.Grid.RangePct))
	}
	if c.Grid.CapitalFraction <= 0 || c.Grid.CapitalFraction > 1 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("capital fraction must be in (0, 1], got %v", c.Grid.CapitalFraction))
	}
	if c.Risk.InitialCapital <= 0 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("initial capital must be positive, got %v", c.Risk.InitialCapital))
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown >= 1 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("max drawdown must be in (0, 1), got %v", c.Risk.MaxDrawdown))
	}
	if c.Risk.MaxConsecutiveLosses < 1 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("max consecutive losses must be at least 1, got %d", c.Risk.MaxConsecutiveLosses))
	}
	if c.Volatility.Window < c.Volatility.MinSamples {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("volatility window %d is smaller than min samples %d",
				c.Volatility.Window, c.Volatility.MinSamples))
	}
	if c.Fees.MakerRate < 0 || c.Fees.TakerRate < 0 {
		return boterrors.NewConfigurationError("config", "validate", "fee rates must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
