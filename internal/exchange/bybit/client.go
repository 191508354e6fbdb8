package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Client wraps the Bybit V5 API client for the grid bot: market data,
// limit order management and the account endpoints the ladder needs.
type Client struct {
	httpClient *bybit_api.Client
	apiKey     string
	apiSecret  string
	category   string
	testnet    bool
	demo       bool
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Category  string // "spot" or "linear"
	Testnet   bool
	Demo      bool // demo trading environment
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	if config.Category == "" {
		config.Category = "spot"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient: httpClient,
		apiKey:     config.APIKey,
		apiSecret:  config.APISecret,
		category:   config.Category,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

// Category returns the product category the client trades.
func (c *Client) Category() string {
	return c.category
}

// IsTestnet returns whether the client is configured for testnet
func (c *Client) IsTestnet() bool {
	return c.testnet
}

// IsDemo returns whether the client is configured for demo trading
func (c *Client) IsDemo() bool {
	return c.demo
}

// Environment returns a string describing the current environment
func (c *Client) Environment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}

// StreamURL returns the private WebSocket endpoint for the configured
// environment.
func (c *Client) StreamURL() string {
	if c.demo {
		return "wss://stream-demo.bybit.com/v5/private"
	} else if c.testnet {
		return "wss://stream-testnet.bybit.com/v5/private"
	}
	return "wss://stream.bybit.com/v5/private"
}
