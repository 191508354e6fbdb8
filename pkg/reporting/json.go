package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gridbot/internal/analytics"
	"gridbot/internal/grid"
)

// PerformanceSnapshot is the JSON export of the current session.
type PerformanceSnapshot struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Symbol      string                 `json:"symbol"`
	Generation  uint64                 `json:"generation"`
	LastPrice   float64                `json:"last_price"`
	Halted      bool                   `json:"halted"`
	HaltReason  string                 `json:"halt_reason,omitempty"`
	Summary     analytics.Summary      `json:"summary"`
	Risk        analytics.RiskState    `json:"risk"`
	Cycles      []analytics.TradeCycle `json:"cycles"`
}

// WriteJSONSnapshot exports the session state to path.
func WriteJSONSnapshot(snap grid.Snapshot, summary analytics.Summary, cycles []analytics.TradeCycle, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	out := PerformanceSnapshot{
		GeneratedAt: time.Now(),
		Symbol:      snap.Symbol,
		Generation:  snap.Generation,
		LastPrice:   snap.LastPrice,
		Halted:      snap.Halted,
		HaltReason:  snap.HaltReason,
		Summary:     summary,
		Risk:        snap.Risk,
		Cycles:      cycles,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
