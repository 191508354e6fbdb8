package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker serves a JSON health endpoint summarizing connectivity,
// the last engine event and the halt state.
type HealthChecker struct {
	mu          sync.RWMutex
	lastEvent   time.Time
	lastPrice   float64
	isConnected bool
	isHalted    bool
	haltReason  string
	errors      []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastEvent   time.Time `json:"last_event"`
	LastPrice   float64   `json:"last_price"`
	IsConnected bool      `json:"is_connected"`
	IsHalted    bool      `json:"is_halted"`
	HaltReason  string    `json:"halt_reason,omitempty"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.isConnected || (!h.lastEvent.IsZero() && time.Since(h.lastEvent) > 10*time.Minute) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if h.isHalted {
		status = "halted"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastEvent:   h.lastEvent,
		LastPrice:   h.lastPrice,
		IsConnected: h.isConnected,
		IsHalted:    h.isHalted,
		HaltReason:  h.haltReason,
		Uptime:      time.Since(startTime).String(),
		Errors:      h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

func (h *HealthChecker) SetHalted(halted bool, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isHalted = halted
	h.haltReason = reason
}

func (h *HealthChecker) UpdatePrice(price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPrice = price
	h.lastEvent = time.Now()
}

func (h *HealthChecker) TouchEvent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvent = time.Now()
}

// AddError records an error on the health endpoint, keeping the most
// recent ten.
func (h *HealthChecker) AddError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}
