package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault_IsValid verifies the shipped defaults pass validation.
func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.True(t, cfg.Exchange.Testnet, "defaults must not point at mainnet")
}

// TestLoad_FileOverridesDefaults verifies JSON file values replace the
// defaults while unset fields keep them.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"trading": {"symbol": "ETHUSDT", "quote_asset": "USDT", "kline_interval": "15", "poll_interval": 5000000000},
		"grid": {"range_pct": 0.08, "spacing_pct": 0.004, "levels": 12, "capital_fraction": 0.4},
		"risk": {"initial_capital": 5000, "max_consecutive_losses": 4, "max_drawdown": 0.2, "daily_loss_limit": 0.03}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Trading.Symbol)
	assert.Equal(t, 12, cfg.Grid.Levels)
	assert.Equal(t, 5000.0, cfg.Risk.InitialCapital)
	assert.Equal(t, 5*time.Second, cfg.Trading.PollInterval)
	// Untouched sections keep defaults.
	assert.Equal(t, 50, cfg.Volatility.Window)
	assert.Equal(t, 0.001, cfg.Fees.MakerRate)
}

// TestLoad_EnvOverridesFile verifies environment variables win over the
// config file.
func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"trading": {"symbol": "ETHUSDT"}}`), 0o644))

	t.Setenv("TRADING_SYMBOL", "SOLUSDT")
	t.Setenv("GRID_LEVELS", "8")
	t.Setenv("BYBIT_API_KEY", "test-key")
	t.Setenv("BYBIT_TESTNET", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "SOLUSDT", cfg.Trading.Symbol)
	assert.Equal(t, 8, cfg.Grid.Levels)
	assert.Equal(t, "test-key", cfg.Exchange.APIKey)
	assert.False(t, cfg.Exchange.Testnet)
}

// TestLoad_MissingFile verifies an unreadable path is an error rather
// than a silent fallback.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	assert.Error(t, err)
}

// TestLoad_EmptyPathUsesDefaults verifies running without a config file
// is supported.
func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Grid, cfg.Grid)
}

// TestValidate_Rejections covers configurations the engine cannot
// safely run with.
func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Trading.Symbol = "" }},
		{"one level", func(c *Config) { c.Grid.Levels = 1 }},
		{"zero spacing", func(c *Config) { c.Grid.SpacingPct = 0 }},
		{"zero range", func(c *Config) { c.Grid.RangePct = 0 }},
		{"grid wider than range", func(c *Config) { c.Grid.SpacingPct = 0.03 }},
		{"zero capital fraction", func(c *Config) { c.Grid.CapitalFraction = 0 }},
		{"fraction above one", func(c *Config) { c.Grid.CapitalFraction = 1.1 }},
		{"zero capital", func(c *Config) { c.Risk.InitialCapital = 0 }},
		{"drawdown of one", func(c *Config) { c.Risk.MaxDrawdown = 1.0 }},
		{"zero drawdown", func(c *Config) { c.Risk.MaxDrawdown = 0 }},
		{"zero loss limit count", func(c *Config) { c.Risk.MaxConsecutiveLosses = 0 }},
		{"window below min samples", func(c *Config) { c.Volatility.Window = 10 }},
		{"negative maker fee", func(c *Config) { c.Fees.MakerRate = -0.001 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestConfig_CredentialsNotSerialized verifies API credentials never
// round-trip through JSON.
func TestConfig_CredentialsNotSerialized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"exchange": {"api_key": "leaked"}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Exchange.APIKey, "credentials must come from the environment only")
}
