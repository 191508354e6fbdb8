package bybit

import (
	"context"
	"encoding/json"
	"fmt"

	"gridbot/pkg/types"
)

// GetBalance returns the unified-account balance for a single coin.
func (c *Client) GetBalance(ctx context.Context, coin string) (*types.Balance, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}
	if coin != "" {
		params["coin"] = coin
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	balance, err := parseBalanceResponse(result, coin)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet balance response: %w", err)
	}
	return balance, nil
}

// GetFeeRates returns the account's maker and taker fee rates for a
// symbol. Used to override the statically configured rates when the
// exchange reports real ones.
func (c *Client) GetFeeRates(ctx context.Context, symbol string) (maker, taker float64, err error) {
	params := map[string]interface{}{
		"category": c.category,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetFeeRates(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get fee rates: %w", err)
	}

	raw, err := unwrapResult(result)
	if err != nil {
		return 0, 0, err
	}

	var feeResult struct {
		List []struct {
			Symbol       string `json:"symbol"`
			MakerFeeRate string `json:"makerFeeRate"`
			TakerFeeRate string `json:"takerFeeRate"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &feeResult); err != nil {
		return 0, 0, fmt.Errorf("failed to unmarshal fee rates: %w", err)
	}
	if len(feeResult.List) == 0 {
		return 0, 0, fmt.Errorf("no fee rate data found for %s", symbol)
	}
	return parseFloat64(feeResult.List[0].MakerFeeRate), parseFloat64(feeResult.List[0].TakerFeeRate), nil
}

func parseBalanceResponse(response interface{}, coin string) (*types.Balance, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var walletResult struct {
		List []struct {
			AccountType string `json:"accountType"`
			Coin        []struct {
				Coin             string `json:"coin"`
				WalletBalance    string `json:"walletBalance"`
				AvailableToTrade string `json:"availableToTrade"`
				Locked           string `json:"locked"`
				TotalOrderIM     string `json:"totalOrderIM"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &walletResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet result: %w", err)
	}

	for _, account := range walletResult.List {
		for _, c := range account.Coin {
			if c.Coin != coin {
				continue
			}
			total := parseFloat64(c.WalletBalance)
			locked := parseFloat64(c.Locked)
			if locked == 0 {
				locked = parseFloat64(c.TotalOrderIM)
			}
			free := parseFloat64(c.AvailableToTrade)
			if free == 0 {
				free = total - locked
			}
			return &types.Balance{Asset: c.Coin, Free: free, Locked: locked}, nil
		}
	}
	return &types.Balance{Asset: coin}, nil
}
