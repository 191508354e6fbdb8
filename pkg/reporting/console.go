package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gridbot/internal/analytics"
	"gridbot/internal/grid"
)

// ConsoleReporter renders the grid ladder and performance summary as
// terminal tables.
type ConsoleReporter struct{}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintGrid renders the ladder of the active generation, marking the
// level nearest to the last price.
func (r *ConsoleReporter) PrintGrid(snap grid.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("GRID %s  gen %d  last %.2f", snap.Symbol, snap.Generation, snap.LastPrice))
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"#", "Side", "Price", "Qty", "State", "Order"})

	// Render top-down so sells appear above buys, like an order book.
	for i := len(snap.Levels) - 1; i >= 0; i-- {
		lvl := snap.Levels[i]
		marker := ""
		if nearestLevel(snap) == lvl.Index {
			marker = " <"
		}
		t.AppendRow(table.Row{
			lvl.Index,
			string(lvl.Side),
			fmt.Sprintf("%.2f%s", lvl.Price, marker),
			fmt.Sprintf("%.6f", lvl.Qty),
			string(lvl.State),
			shortID(lvl.OutstandingOrderID()),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	t.Render()
	if snap.Halted {
		fmt.Printf("⚠️  HALTED: %s\n", snap.HaltReason)
	}
	fmt.Println()
}

// PrintSummary renders the performance summary table.
func (r *ConsoleReporter) PrintSummary(summary analytics.Summary, st analytics.RiskState) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("PERFORMANCE")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Cycles", summary.Cycles},
		{"Win rate", fmt.Sprintf("%.1f%%", summary.WinRate*100)},
		{"Net P&L", fmt.Sprintf("%.4f", summary.NetPnL)},
		{"Profit factor", fmt.Sprintf("%.2f", summary.ProfitFactor)},
		{"Total fees", fmt.Sprintf("%.4f", summary.TotalFees)},
		{"Largest loss", fmt.Sprintf("%.4f", summary.LargestLoss)},
		{"Max consec losses", summary.MaxConsecLosses},
		{"Equity", fmt.Sprintf("%.2f", st.Equity)},
		{"Peak equity", fmt.Sprintf("%.2f", st.PeakEquity)},
		{"Drawdown", fmt.Sprintf("%.2f%%", st.Drawdown*100)},
		{"Daily P&L", fmt.Sprintf("%.4f", st.DailyPnL)},
		{"Return on capital", fmt.Sprintf("%.2f%%", summary.ReturnOnCapital*100)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 14, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

func nearestLevel(snap grid.Snapshot) int {
	if len(snap.Levels) == 0 {
		return -1
	}
	best := 0
	bestDist := -1.0
	for _, lvl := range snap.Levels {
		dist := lvl.Price - snap.LastPrice
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = lvl.Index
		}
	}
	return best
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
