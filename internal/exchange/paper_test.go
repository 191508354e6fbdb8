package exchange

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "gridbot/internal/errors"
)

func newPaper(t *testing.T) *PaperExchange {
	t.Helper()
	p := NewPaperExchange("TESTUSDT", 0.001, 1000)
	p.SetPrice(100.0)
	require.NoError(t, p.Connect(context.Background()))
	return p
}

// TestPaper_PlaceAndFillBuy verifies a buy fills when the price crosses
// down through its limit, with the maker fee applied.
func TestPaper_PlaceAndFillBuy(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	order, err := p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 2.0, 99.0)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 1, p.OpenOrderCount())

	// Price above the limit leaves the order resting.
	p.SetPrice(99.5)
	assert.Equal(t, 1, p.OpenOrderCount())

	p.SetPrice(98.5)
	assert.Equal(t, 0, p.OpenOrderCount())

	fill := <-p.Fills()
	assert.Equal(t, order.ID, fill.OrderID)
	assert.Equal(t, OrderSideBuy, fill.Side)
	assert.Equal(t, 99.0, fill.Price) // filled at the limit, not the new price
	assert.Equal(t, 2.0, fill.Qty)
	assert.InDelta(t, 99.0*2.0*0.001, fill.Fee, 1e-9)
	assert.True(t, fill.IsMaker)
}

// TestPaper_SellFillsOnUpMove verifies the sell side crossing rule.
func TestPaper_SellFillsOnUpMove(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	order, err := p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideSell, 1.0, 101.0)
	require.NoError(t, err)

	p.SetPrice(100.9)
	assert.Equal(t, 1, p.OpenOrderCount())

	p.SetPrice(101.0) // touching the limit fills
	assert.Equal(t, 0, p.OpenOrderCount())

	fill := <-p.Fills()
	assert.Equal(t, order.ID, fill.OrderID)
	assert.Equal(t, 101.0, fill.Price)
}

// TestPaper_LargeMoveFillsNearestFirst verifies a sweep through several
// levels emits fills in the order the market reached them.
func TestPaper_LargeMoveFillsNearestFirst(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	for _, price := range []float64{97.0, 99.0, 98.0} {
		_, err := p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 1.0, price)
		require.NoError(t, err)
	}

	p.SetPrice(96.0)
	require.Equal(t, 0, p.OpenOrderCount())

	first := <-p.Fills()
	second := <-p.Fills()
	third := <-p.Fills()
	assert.Equal(t, 99.0, first.Price)
	assert.Equal(t, 98.0, second.Price)
	assert.Equal(t, 97.0, third.Price)
}

// TestPaper_CancelUnknownOrderIsNoOp verifies cancellation is
// idempotent for orders that already left the book.
func TestPaper_CancelUnknownOrderIsNoOp(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	assert.NoError(t, p.CancelOrder(ctx, "TESTUSDT", "never-existed"))

	order, err := p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 1.0, 99.0)
	require.NoError(t, err)
	require.NoError(t, p.CancelOrder(ctx, "TESTUSDT", order.ID))
	assert.Equal(t, 0, p.OpenOrderCount())

	// Cancelling again succeeds quietly.
	assert.NoError(t, p.CancelOrder(ctx, "TESTUSDT", order.ID))
}

// TestPaper_SetPriceAfterDisconnectIsSafe verifies a price move that
// crosses resting orders after shutdown drops the fills instead of
// sending on the closed stream.
func TestPaper_SetPriceAfterDisconnectIsSafe(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	_, err := p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 1.0, 99.0)
	require.NoError(t, err)
	require.NoError(t, p.Disconnect())

	p.SetPrice(98.0) // crosses the resting buy
	assert.Equal(t, 0, p.OpenOrderCount())
}

// TestPaper_CancelAllOrders verifies a full book wipe.
func TestPaper_CancelAllOrders(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	for _, price := range []float64{98, 99, 101, 102} {
		side := OrderSideBuy
		if price > 100 {
			side = OrderSideSell
		}
		_, err := p.PlaceLimitOrder(ctx, "TESTUSDT", side, 1.0, price)
		require.NoError(t, err)
	}
	require.Equal(t, 4, p.OpenOrderCount())

	require.NoError(t, p.CancelAllOrders(ctx, "TESTUSDT"))
	assert.Equal(t, 0, p.OpenOrderCount())
}

// TestPaper_FailSubmissions verifies the scripted failure mode counts
// down per attempt and returns a submission error.
func TestPaper_FailSubmissions(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()
	p.FailSubmissions = 2

	_, err := p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 1.0, 99.0)
	assert.True(t, errors.Is(err, boterrors.ErrOrderSubmission))

	_, err = p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 1.0, 99.0)
	assert.Error(t, err)

	_, err = p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 1.0, 99.0)
	assert.NoError(t, err)
}

// TestPaper_RejectsInvalidOrders verifies qty and price validation.
func TestPaper_RejectsInvalidOrders(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	_, err := p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 0, 99.0)
	assert.Error(t, err)
	_, err = p.PlaceLimitOrder(ctx, "TESTUSDT", OrderSideBuy, 1.0, -1)
	assert.Error(t, err)
}

// TestPaper_KlinesAndPrice verifies the market data surface over a
// generated random walk.
func TestPaper_KlinesAndPrice(t *testing.T) {
	p := newPaper(t)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	p.RandomWalk(100, 30, 0.01, rng)

	klines, err := p.GetKlines(ctx, "TESTUSDT", "5", 20)
	require.NoError(t, err)
	assert.Len(t, klines, 20)

	price, err := p.GetLatestPrice(ctx, "TESTUSDT")
	require.NoError(t, err)
	assert.Equal(t, klines[len(klines)-1].Close, price)

	for _, k := range klines {
		assert.GreaterOrEqual(t, k.High, k.Low)
	}
}

// TestPaper_DisconnectClosesFillStream verifies consumers observe the
// channel close on shutdown.
func TestPaper_DisconnectClosesFillStream(t *testing.T) {
	p := newPaper(t)
	require.NoError(t, p.Disconnect())
	assert.False(t, p.IsConnected())

	_, open := <-p.Fills()
	assert.False(t, open)

	// Double disconnect must not panic on a closed channel.
	assert.NoError(t, p.Disconnect())
}
