package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	boterrors "gridbot/internal/errors"
	"gridbot/pkg/types"
)

// PaperExchange is an in-memory venue for demos and tests. Resting
// limit orders fill at their limit price when the simulated price
// crosses them; fees follow the configured maker rate.
type PaperExchange struct {
	mu        sync.Mutex
	symbol    string
	makerFee  float64
	price     float64
	balances  map[string]float64
	orders    map[string]*Order
	fills     chan Fill
	connected bool
	closed    bool
	candles   []types.OHLCV

	// FailSubmissions makes PlaceLimitOrder fail while > 0, counting
	// down one per attempt. Used to exercise submission error paths.
	FailSubmissions int
}

func NewPaperExchange(symbol string, makerFee, quoteBalance float64) *PaperExchange {
	return &PaperExchange{
		symbol:   symbol,
		makerFee: makerFee,
		balances: map[string]float64{"USDT": quoteBalance},
		orders:   make(map[string]*Order),
		fills:    make(chan Fill, 256),
	}
}

func (p *PaperExchange) Name() string { return "paper" }

func (p *PaperExchange) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *PaperExchange) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		p.connected = false
		p.closed = true
		close(p.fills)
	}
	return nil
}

func (p *PaperExchange) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *PaperExchange) Fills() <-chan Fill { return p.fills }

// SetPrice moves the simulated market and fills every resting order the
// move crossed, in price order along the direction of the move.
func (p *PaperExchange) SetPrice(price float64) {
	p.mu.Lock()

	crossed := make([]*Order, 0)
	for _, o := range p.orders {
		if o.Status != OrderStatusNew {
			continue
		}
		if o.Side == OrderSideBuy && price <= o.Price {
			crossed = append(crossed, o)
		}
		if o.Side == OrderSideSell && price >= o.Price {
			crossed = append(crossed, o)
		}
	}
	// Fill nearest levels first so a large move replays the ladder in
	// the order the market would have reached it.
	descending := price < p.price
	sort.Slice(crossed, func(i, j int) bool {
		if descending {
			return crossed[i].Price > crossed[j].Price
		}
		return crossed[i].Price < crossed[j].Price
	})

	fills := make([]Fill, 0, len(crossed))
	for _, o := range crossed {
		o.Status = OrderStatusFilled
		delete(p.orders, o.ID)
		fills = append(fills, Fill{
			OrderID: o.ID,
			Symbol:  o.Symbol,
			Side:    o.Side,
			Price:   o.Price,
			Qty:     o.Qty,
			Fee:     o.Price * o.Qty * p.makerFee,
			IsMaker: true,
			Time:    time.Now(),
		})
	}
	p.price = price
	closed := p.closed
	p.mu.Unlock()

	// After Disconnect the fill stream is gone; drop the fills instead
	// of sending on the closed channel.
	if closed {
		return
	}
	for _, f := range fills {
		p.fills <- f
	}
}

// AppendCandle records a synthetic candle for GetKlines and moves the
// price to its close.
func (p *PaperExchange) AppendCandle(c types.OHLCV) {
	p.mu.Lock()
	p.candles = append(p.candles, c)
	p.mu.Unlock()
	p.SetPrice(c.Close)
}

func (p *PaperExchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.price <= 0 {
		return 0, fmt.Errorf("no price set for %s", symbol)
	}
	return p.price, nil
}

func (p *PaperExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.candles)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]types.OHLCV, n)
	copy(out, p.candles[len(p.candles)-n:])
	return out, nil
}

func (p *PaperExchange) GetBalance(ctx context.Context, asset string) (*types.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &types.Balance{Asset: asset, Free: p.balances[asset]}, nil
}

func (p *PaperExchange) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, qty, price float64) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailSubmissions > 0 {
		p.FailSubmissions--
		return nil, boterrors.NewOrderSubmissionError("paper", "place_limit_order",
			fmt.Errorf("simulated submission failure"))
	}
	if qty <= 0 || price <= 0 {
		return nil, boterrors.NewValidationError("paper", "place_limit_order",
			fmt.Sprintf("invalid order qty=%v price=%v", qty, price))
	}

	order := &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Qty:       qty,
		Status:    OrderStatusNew,
		CreatedAt: time.Now(),
	}
	p.orders[order.ID] = order
	return order, nil
}

// CancelOrder removes a resting order. Cancelling an unknown order is a
// no-op: the order already left the book.
func (p *PaperExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[orderID]; ok {
		o.Status = OrderStatusCancelled
		delete(p.orders, orderID)
	}
	return nil
}

func (p *PaperExchange) CancelAllOrders(ctx context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, o := range p.orders {
		o.Status = OrderStatusCancelled
		delete(p.orders, id)
	}
	return nil
}

// OpenOrderCount reports the number of resting orders.
func (p *PaperExchange) OpenOrderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

// RandomWalk generates count candles starting at start with the given
// per-step volatility, feeding each through AppendCandle.
func (p *PaperExchange) RandomWalk(start float64, count int, stepVol float64, rng *rand.Rand) {
	price := start
	for i := 0; i < count; i++ {
		open := price
		change := rng.NormFloat64() * stepVol * price
		close := open + change
		high := open
		if close > high {
			high = close
		}
		low := open
		if close < low {
			low = close
		}
		high *= 1 + rng.Float64()*stepVol/2
		low *= 1 - rng.Float64()*stepVol/2
		p.AppendCandle(types.OHLCV{
			Timestamp: time.Now(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    rng.Float64() * 100,
		})
		price = close
	}
}
