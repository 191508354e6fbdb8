package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

// Order represents a trading order
type Order struct {
	OrderID     string      `json:"orderId"`
	OrderLinkID string      `json:"orderLinkId"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Qty         string      `json:"qty"`
	Price       string      `json:"price"`
	OrderStatus OrderStatus `json:"orderStatus"`
	AvgPrice    string      `json:"avgPrice"`
	CumExecQty  string      `json:"cumExecQty"`
	CumExecFee  string      `json:"cumExecFee"`
	CreatedTime time.Time   `json:"createdTime"`
	UpdatedTime time.Time   `json:"updatedTime"`
}

// PlaceLimitOrder places a GTC limit order. orderLinkID is optional and
// lets the caller correlate fills before the exchange ID is known.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, qty, price, orderLinkID string) (*Order, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if qty == "" || price == "" {
		return nil, fmt.Errorf("qty and price are required for limit orders")
	}

	apiParams := map[string]interface{}{
		"category":    c.category,
		"symbol":      symbol,
		"side":        string(side),
		"orderType":   "Limit",
		"qty":         qty,
		"price":       price,
		"timeInForce": "GTC",
	}
	if orderLinkID != "" {
		apiParams["orderLinkId"] = orderLinkID
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	order, err := parseOrderResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}
	return order, nil
}

// CancelOrder cancels an order. An order that already left the book
// (filled or previously cancelled) is treated as successfully
// cancelled.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	if err != nil {
		if IsOrderGone(err) {
			return nil
		}
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if err := checkResponse(result); err != nil {
		if IsOrderGone(err) {
			return nil
		}
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	return nil
}

// CancelAllOrders cancels all open orders for a symbol
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel all orders: %w", err)
	}
	if err := checkResponse(result); err != nil {
		return fmt.Errorf("failed to cancel all orders: %w", err)
	}
	return nil
}

// GetOpenOrders retrieves open orders for a symbol
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	params := map[string]interface{}{
		"category": c.category,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}

	orders, err := parseOrdersResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse orders response: %w", err)
	}
	return orders, nil
}

// GetOrderStatus retrieves the status of a specific order
func (c *Client) GetOrderStatus(ctx context.Context, symbol, orderID string) (*Order, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order status: %w", err)
	}

	orders, err := parseOrdersResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order status response: %w", err)
	}
	for i := range orders {
		if orders[i].OrderID == orderID {
			return &orders[i], nil
		}
	}
	return nil, NewAPIError(ErrCodeOrderNotFound, fmt.Sprintf("order %s not found", orderID))
}

// FormatQty renders a quantity with the given decimal precision for the
// string-typed API.
func FormatQty(qty float64, precision int) string {
	return strconv.FormatFloat(qty, 'f', precision, 64)
}

// FormatPrice renders a price with the given decimal precision.
func FormatPrice(price float64, precision int) string {
	return strconv.FormatFloat(price, 'f', precision, 64)
}

func checkResponse(response interface{}) error {
	_, err := unwrapResult(response)
	return err
}

func parseOrderResponse(response interface{}) (*Order, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var orderResult struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Qty         string `json:"qty"`
		Price       string `json:"price"`
		OrderStatus string `json:"orderStatus"`
		AvgPrice    string `json:"avgPrice"`
		CumExecQty  string `json:"cumExecQty"`
		CumExecFee  string `json:"cumExecFee"`
		CreatedTime string `json:"createdTime"`
		UpdatedTime string `json:"updatedTime"`
	}
	if err := json.Unmarshal(result, &orderResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order result: %w", err)
	}

	return &Order{
		OrderID:     orderResult.OrderID,
		OrderLinkID: orderResult.OrderLinkID,
		Symbol:      orderResult.Symbol,
		Side:        OrderSide(orderResult.Side),
		Qty:         orderResult.Qty,
		Price:       orderResult.Price,
		OrderStatus: OrderStatus(orderResult.OrderStatus),
		AvgPrice:    orderResult.AvgPrice,
		CumExecQty:  orderResult.CumExecQty,
		CumExecFee:  orderResult.CumExecFee,
		CreatedTime: parseTimestamp(orderResult.CreatedTime),
		UpdatedTime: parseTimestamp(orderResult.UpdatedTime),
	}, nil
}

func parseOrdersResponse(response interface{}) ([]Order, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var orderListResult struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderLinkID string `json:"orderLinkId"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			Qty         string `json:"qty"`
			Price       string `json:"price"`
			OrderStatus string `json:"orderStatus"`
			AvgPrice    string `json:"avgPrice"`
			CumExecQty  string `json:"cumExecQty"`
			CumExecFee  string `json:"cumExecFee"`
			CreatedTime string `json:"createdTime"`
			UpdatedTime string `json:"updatedTime"`
		} `json:"list"`
		NextPageCursor string `json:"nextPageCursor"`
		Category       string `json:"category"`
	}
	if err := json.Unmarshal(result, &orderListResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order list result: %w", err)
	}

	var orders []Order
	for _, orderData := range orderListResult.List {
		orders = append(orders, Order{
			OrderID:     orderData.OrderID,
			OrderLinkID: orderData.OrderLinkID,
			Symbol:      orderData.Symbol,
			Side:        OrderSide(orderData.Side),
			Qty:         orderData.Qty,
			Price:       orderData.Price,
			OrderStatus: OrderStatus(orderData.OrderStatus),
			AvgPrice:    orderData.AvgPrice,
			CumExecQty:  orderData.CumExecQty,
			CumExecFee:  orderData.CumExecFee,
			CreatedTime: parseTimestamp(orderData.CreatedTime),
			UpdatedTime: parseTimestamp(orderData.UpdatedTime),
		})
	}
	return orders, nil
}
