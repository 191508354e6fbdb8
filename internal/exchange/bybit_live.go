package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	boterrors "gridbot/internal/errors"
	"gridbot/internal/exchange/bybit"
	"gridbot/pkg/types"
)

// BybitExchange adapts the Bybit client and its private stream to the
// Exchange interface the engine runs against.
type BybitExchange struct {
	client *bybit.Client
	stream *bybit.PrivateStream

	pricePrec int
	qtyPrec   int

	mu        sync.Mutex
	connected bool
	fills     chan Fill
	done      chan struct{}
	wg        sync.WaitGroup
}

// BybitOptions tunes precision and kline interval for the adapter.
type BybitOptions struct {
	PricePrecision int
	QtyPrecision   int
}

// NewBybitExchange builds the adapter. Precision defaults suit BTCUSDT;
// adjust via opts for other symbols.
func NewBybitExchange(cfg bybit.Config, opts BybitOptions) *BybitExchange {
	if opts.PricePrecision == 0 {
		opts.PricePrecision = 2
	}
	if opts.QtyPrecision == 0 {
		opts.QtyPrecision = 6
	}
	return &BybitExchange{
		client:    bybit.NewClient(cfg),
		pricePrec: opts.PricePrecision,
		qtyPrec:   opts.QtyPrecision,
		fills:     make(chan Fill, 256),
		done:      make(chan struct{}),
	}
}

func (b *BybitExchange) Name() string {
	return fmt.Sprintf("bybit-%s", b.client.Environment())
}

// Connect opens the private execution stream and starts forwarding
// fills.
func (b *BybitExchange) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return nil
	}

	b.stream = b.client.NewPrivateStream()
	if err := b.stream.Connect(); err != nil {
		return boterrors.NewNetworkError("bybit", "connect", err)
	}
	b.connected = true

	b.wg.Add(1)
	go b.forwardFills(b.stream.Executions())
	return nil
}

// forwardFills owns the fill channel: only it sends on b.fills and it
// closes the channel when it exits, so a fill in flight during shutdown
// can never hit a closed channel.
func (b *BybitExchange) forwardFills(executions <-chan bybit.Execution) {
	defer b.wg.Done()
	defer close(b.fills)
	for {
		select {
		case <-b.done:
			return
		case exec, ok := <-executions:
			if !ok {
				return
			}
			fill := Fill{
				OrderID: exec.OrderID,
				Symbol:  exec.Symbol,
				Side:    OrderSide(exec.Side),
				Price:   exec.ExecPrice,
				Qty:     exec.ExecQty,
				Fee:     exec.ExecFee,
				IsMaker: exec.IsMaker,
				Time:    exec.ExecTime,
			}
			select {
			case b.fills <- fill:
			case <-b.done:
				return
			}
		}
	}
}

func (b *BybitExchange) Disconnect() error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return nil
	}
	b.connected = false
	close(b.done)
	err := b.stream.Close()
	b.mu.Unlock()

	// Wait for the forwarder to exit and close the fill channel.
	b.wg.Wait()
	return err
}

func (b *BybitExchange) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *BybitExchange) Fills() <-chan Fill { return b.fills }

func (b *BybitExchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := b.client.Retry(ctx, func() error {
		var err error
		price, err = b.client.GetLatestPrice(ctx, symbol)
		return err
	})
	if err != nil {
		return 0, boterrors.CategorizeError(err, "bybit", "get_latest_price")
	}
	return price, nil
}

func (b *BybitExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	var candles []types.OHLCV
	err := b.client.Retry(ctx, func() error {
		var err error
		candles, err = b.client.GetKlines(ctx, symbol, bybit.KlineInterval(interval), limit)
		return err
	})
	if err != nil {
		return nil, boterrors.CategorizeError(err, "bybit", "get_klines")
	}
	return candles, nil
}

func (b *BybitExchange) GetBalance(ctx context.Context, asset string) (*types.Balance, error) {
	balance, err := b.client.GetBalance(ctx, asset)
	if err != nil {
		return nil, boterrors.CategorizeError(err, "bybit", "get_balance")
	}
	return balance, nil
}

func (b *BybitExchange) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, qty, price float64) (*Order, error) {
	linkID := uuid.NewString()
	order, err := b.client.PlaceLimitOrder(ctx, symbol, bybit.OrderSide(side),
		bybit.FormatQty(qty, b.qtyPrec), bybit.FormatPrice(price, b.pricePrec), linkID)
	if err != nil {
		return nil, boterrors.NewOrderSubmissionError("bybit", "place_limit_order", err)
	}

	placedPrice, _ := strconv.ParseFloat(order.Price, 64)
	placedQty, _ := strconv.ParseFloat(order.Qty, 64)
	if placedPrice == 0 {
		placedPrice = price
	}
	if placedQty == 0 {
		placedQty = qty
	}
	return &Order{
		ID:        order.OrderID,
		Symbol:    symbol,
		Side:      side,
		Price:     placedPrice,
		Qty:       placedQty,
		Status:    OrderStatusNew,
		CreatedAt: order.CreatedTime,
	}, nil
}

// CancelOrder is idempotent: an order that already left the book counts
// as cancelled. Transient failures are retried by the client.
func (b *BybitExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	err := b.client.Retry(ctx, func() error {
		return b.client.CancelOrder(ctx, symbol, orderID)
	})
	if err != nil {
		return boterrors.NewOrderCancellationError("bybit", "cancel_order", err)
	}
	return nil
}

func (b *BybitExchange) CancelAllOrders(ctx context.Context, symbol string) error {
	err := b.client.Retry(ctx, func() error {
		return b.client.CancelAllOrders(ctx, symbol)
	})
	if err != nil {
		return boterrors.NewOrderCancellationError("bybit", "cancel_all_orders", err)
	}
	return nil
}

// FeeRates exposes the account fee rates for fee model calibration.
func (b *BybitExchange) FeeRates(ctx context.Context, symbol string) (maker, taker float64, err error) {
	return b.client.GetFeeRates(ctx, symbol)
}
