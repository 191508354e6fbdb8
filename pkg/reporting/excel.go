package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"gridbot/internal/analytics"
)

// ExcelReporter writes closed cycles and the performance summary to a
// workbook.
type ExcelReporter struct{}

func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header  int
	money   int
	loss    int
	percent int
}

// WriteReport writes the Cycles and Summary sheets to path.
func (r *ExcelReporter) WriteReport(cycles []analytics.TradeCycle, summary analytics.Summary, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const cyclesSheet = "Cycles"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), cyclesSheet)
	fx.NewSheet(summarySheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeCyclesSheet(fx, cyclesSheet, cycles, styles); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, summarySheet, summary, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.money, err = fx.NewStyle(&excelize.Style{
		NumFmt: 4, // #,##0.00
	})
	if err != nil {
		return styles, err
	}

	styles.loss, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "CC0000"},
		NumFmt: 4,
	})
	if err != nil {
		return styles, err
	}

	styles.percent, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10, // 0.00%
	})
	return styles, err
}

func (r *ExcelReporter) writeCyclesSheet(fx *excelize.File, sheet string, cycles []analytics.TradeCycle, styles excelStyles) error {
	headers := []string{"#", "Level", "Generation", "Entry", "Exit", "Qty", "Fees", "Net P&L", "Opened", "Closed"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
	}
	fx.SetCellStyle(sheet, "A1", fmt.Sprintf("%s1", mustColumn(len(headers))), styles.header)

	for i, c := range cycles {
		row := i + 2
		fx.SetCellValue(sheet, cell("A", row), i+1)
		fx.SetCellValue(sheet, cell("B", row), c.LevelIndex)
		fx.SetCellValue(sheet, cell("C", row), c.Generation)
		fx.SetCellValue(sheet, cell("D", row), c.EntryPrice)
		fx.SetCellValue(sheet, cell("E", row), c.ExitPrice)
		fx.SetCellValue(sheet, cell("F", row), c.Qty)
		fx.SetCellValue(sheet, cell("G", row), c.Fees)
		fx.SetCellValue(sheet, cell("H", row), c.NetPnL)
		fx.SetCellValue(sheet, cell("I", row), c.OpenedAt.Format("2006-01-02 15:04:05"))
		fx.SetCellValue(sheet, cell("J", row), c.ClosedAt.Format("2006-01-02 15:04:05"))

		pnlStyle := styles.money
		if c.NetPnL < 0 {
			pnlStyle = styles.loss
		}
		fx.SetCellStyle(sheet, cell("H", row), cell("H", row), pnlStyle)
	}

	fx.SetColWidth(sheet, "A", "J", 14)
	return nil
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, summary analytics.Summary, styles excelStyles) error {
	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Cycles", summary.Cycles, 0},
		{"Wins", summary.Wins, 0},
		{"Losses", summary.Losses, 0},
		{"Win rate", summary.WinRate, styles.percent},
		{"Net P&L", summary.NetPnL, styles.money},
		{"Gross profit", summary.GrossProfit, styles.money},
		{"Gross loss", summary.GrossLoss, styles.money},
		{"Profit factor", summary.ProfitFactor, styles.money},
		{"Total fees", summary.TotalFees, styles.money},
		{"Largest loss", summary.LargestLoss, styles.loss},
		{"Max consecutive losses", summary.MaxConsecLosses, 0},
		{"Avg cycle P&L", summary.AvgCyclePnL, styles.money},
		{"Return on capital", summary.ReturnOnCapital, styles.percent},
	}

	fx.SetCellValue(sheet, "A1", "Metric")
	fx.SetCellValue(sheet, "B1", "Value")
	fx.SetCellStyle(sheet, "A1", "B1", styles.header)

	for i, row := range rows {
		r := i + 2
		fx.SetCellValue(sheet, cell("A", r), row.label)
		fx.SetCellValue(sheet, cell("B", r), row.value)
		if row.style != 0 {
			fx.SetCellStyle(sheet, cell("B", r), cell("B", r), row.style)
		}
	}

	fx.SetColWidth(sheet, "A", "A", 26)
	fx.SetColWidth(sheet, "B", "B", 16)
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func mustColumn(n int) string {
	name, _ := excelize.ColumnNumberToName(n)
	return name
}
