package exchange

import (
	"context"
	"time"

	"gridbot/pkg/types"
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
	OrderStatusNew       OrderStatus = "New"
	OrderStatusFilled    OrderStatus = "Filled"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusRejected  OrderStatus = "Rejected"
)

// Order represents a resting or executed order
type Order struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Price     float64
	Qty       float64
	Status    OrderStatus
	CreatedAt time.Time
}

// Fill is an execution event delivered on the fill stream.
type Fill struct {
	OrderID string
	Symbol  string
	Side    OrderSide
	Price   float64
	Qty     float64
	Fee     float64
	IsMaker bool
	Time    time.Time
}

// Exchange is the trading venue abstraction the engine runs against.
// CancelOrder must be idempotent: cancelling an order that no longer
// exists (already filled or already cancelled) returns nil.
type Exchange interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
	GetBalance(ctx context.Context, asset string) (*types.Balance, error)

	PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, qty, price float64) (*Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) error

	// Fills returns the stream of execution events. The channel is
	// closed on Disconnect.
	Fills() <-chan Fill
}
