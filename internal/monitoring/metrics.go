package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order metrics
	ordersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_placed_total",
			Help: "Total number of limit orders placed",
		},
		[]string{"symbol", "side"},
	)

	ordersFilledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_filled_total",
			Help: "Total number of order fills observed",
		},
		[]string{"symbol", "side"},
	)

	ordersCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		},
		[]string{"symbol"},
	)

	// Cycle metrics
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_cycles_total",
			Help: "Total number of completed grid cycles",
		},
		[]string{"symbol", "result"},
	)

	cyclePnl = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridbot_cycle_pnl",
			Help:    "Distribution of net P&L per completed cycle",
			Buckets: prometheus.LinearBuckets(-5, 1, 15),
		},
		[]string{"symbol"},
	)

	// Market and risk state
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_current_price",
			Help: "Last observed price of the trading symbol",
		},
		[]string{"symbol"},
	)

	volatilityRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_volatility_ratio",
			Help: "Current ATR to price ratio",
		},
		[]string{"symbol"},
	)

	drawdown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_drawdown",
			Help: "Current drawdown fraction from peak equity",
		},
		[]string{"symbol"},
	)

	consecutiveLosses = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_consecutive_losses",
			Help: "Current run of consecutive losing cycles",
		},
		[]string{"symbol"},
	)

	halted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_halted",
			Help: "1 when the risk governor has halted trading",
		},
		[]string{"symbol"},
	)

	activeLevels = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_active_levels",
			Help: "Number of levels with a resting order",
		},
		[]string{"symbol", "side"},
	)

	gridGeneration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_grid_generation",
			Help: "Monotonic generation counter of the active grid",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(ordersPlacedTotal)
	prometheus.MustRegister(ordersFilledTotal)
	prometheus.MustRegister(ordersCancelledTotal)
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cyclePnl)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(volatilityRatio)
	prometheus.MustRegister(drawdown)
	prometheus.MustRegister(consecutiveLosses)
	prometheus.MustRegister(halted)
	prometheus.MustRegister(activeLevels)
	prometheus.MustRegister(gridGeneration)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordOrderPlaced records a placed limit order
func RecordOrderPlaced(symbol, side string) {
	ordersPlacedTotal.WithLabelValues(symbol, side).Inc()
}

// RecordOrderFilled records an observed fill
func RecordOrderFilled(symbol, side string) {
	ordersFilledTotal.WithLabelValues(symbol, side).Inc()
}

// RecordOrderCancelled records a cancelled order
func RecordOrderCancelled(symbol string) {
	ordersCancelledTotal.WithLabelValues(symbol).Inc()
}

// RecordCycle records a completed cycle and its net P&L
func RecordCycle(symbol string, pnl float64) {
	result := "win"
	if pnl <= 0 {
		result = "loss"
	}
	cyclesTotal.WithLabelValues(symbol, result).Inc()
	cyclePnl.WithLabelValues(symbol).Observe(pnl)
}

// UpdatePrice updates the current price gauge
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateVolatility updates the volatility ratio gauge
func UpdateVolatility(symbol string, ratio float64) {
	volatilityRatio.WithLabelValues(symbol).Set(ratio)
}

// UpdateRiskState updates drawdown and loss-streak gauges
func UpdateRiskState(symbol string, dd float64, losses int) {
	drawdown.WithLabelValues(symbol).Set(dd)
	consecutiveLosses.WithLabelValues(symbol).Set(float64(losses))
}

// SetHalted flips the halt gauge
func SetHalted(symbol string, isHalted bool) {
	v := 0.0
	if isHalted {
		v = 1.0
	}
	halted.WithLabelValues(symbol).Set(v)
}

// UpdateActiveLevels sets the resting-order count per side
func UpdateActiveLevels(symbol string, buys, sells int) {
	activeLevels.WithLabelValues(symbol, "Buy").Set(float64(buys))
	activeLevels.WithLabelValues(symbol, "Sell").Set(float64(sells))
}

// UpdateGeneration sets the active grid generation
func UpdateGeneration(symbol string, generation uint64) {
	gridGeneration.WithLabelValues(symbol).Set(float64(generation))
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
