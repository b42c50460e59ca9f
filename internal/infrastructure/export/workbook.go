// Package export renders consolidated quotes as excel workbooks.
package export

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-backoffice/internal/application/port"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	quoteSheet     = "Quote"
	benchmarkSheet = "Benchmark"
	tableHeaderRow = 7

	contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var quoteColumns = []string{
	"Group", "Arrival", "Departure", "Nights", "Platform", "Rooms",
	"Client unit price", "Exchange rate", "Local unit price", "Amount",
}

var benchmarkColumns = []string{
	"Group", "Platform", "Unit price", "Currency", "Exchange rate", "Rooms", "Reference",
}

// WorkbookExporter implements port.QuoteExporter with excelize
type WorkbookExporter struct {
	companyName    string
	roundingPlaces int32
	logger         *zap.Logger
}

// NewWorkbookExporter creates a workbook exporter. Money cells are rounded to
// roundingPlaces decimals.
func NewWorkbookExporter(companyName string, roundingPlaces int32, logger *zap.Logger) *WorkbookExporter {
	return &WorkbookExporter{
		companyName:    companyName,
		roundingPlaces: roundingPlaces,
		logger:         logger,
	}
}

// Export renders the quote sheet and the supplier comparison sheet
func (w *WorkbookExporter) Export(ctx context.Context, q *entity.Quote, groups []*entity.BenchmarkGroup) ([]byte, error) {
	byID := make(map[int64]*entity.BenchmarkGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	for _, c := range q.Contributions {
		if byID[c.GroupID] == nil {
			return nil, fmt.Errorf("group %d of quote %s was not supplied", c.GroupID, q.Reference)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", quoteSheet); err != nil {
		return nil, fmt.Errorf("failed to name quote sheet: %w", err)
	}
	if _, err := f.NewSheet(benchmarkSheet); err != nil {
		return nil, fmt.Errorf("failed to create benchmark sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	w.writeQuote(f, q, byID, bold)
	w.writeBenchmark(f, q, byID, bold)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Quote workbook rendered",
		zap.String("reference", q.Reference),
		zap.Int("groups", len(q.Contributions)),
		zap.Int("size", buf.Len()))
	return buf.Bytes(), nil
}

// FileName returns the archive name of the quote's workbook
func (w *WorkbookExporter) FileName(q *entity.Quote) string {
	return q.Reference + ".xlsx"
}

// ContentType returns the xlsx media type
func (w *WorkbookExporter) ContentType() string {
	return contentType
}

func (w *WorkbookExporter) writeQuote(f *excelize.File, q *entity.Quote, groups map[int64]*entity.BenchmarkGroup, bold int) {
	w.setCell(f, quoteSheet, "A1", w.companyName)
	w.setStyle(f, quoteSheet, "A1", "A1", bold)

	header := [][2]interface{}{
		{"Quote", q.Reference},
		{"Product line", q.ProductLine.String()},
		{"Created", q.CreatedAt.Format("2006-01-02")},
		{"Created by", q.CreatedBy},
	}
	for i, kv := range header {
		row := i + 2
		w.setCell(f, quoteSheet, cell(1, row), kv[0])
		w.setCell(f, quoteSheet, cell(2, row), kv[1])
	}

	for i, title := range quoteColumns {
		if i == len(quoteColumns)-1 {
			title = fmt.Sprintf("%s (%s)", title, q.Currency)
		}
		w.setCell(f, quoteSheet, cell(i+1, tableHeaderRow), title)
	}
	w.setStyle(f, quoteSheet, cell(1, tableHeaderRow), cell(len(quoteColumns), tableHeaderRow), bold)

	row := tableHeaderRow + 1
	for _, c := range q.Contributions {
		g := groups[c.GroupID]
		values := []interface{}{c.Label, "", "", c.Nights, "", "", "", "", "", w.money(c.LocalAmount)}
		if g.Stay.IsSet() {
			values[1] = g.Stay.Arrival.Format("2006-01-02")
			values[2] = g.Stay.Departure.Format("2006-01-02")
		}
		if ref := g.Reference(); ref != nil {
			values[4] = ref.Platform
			values[5] = ref.RoomCount
		}
		if g.ClientLine != nil {
			values[6] = w.money(g.ClientLine.ClientUnitPrice)
			values[7] = g.ClientLine.ExchangeRate
			values[8] = w.money(g.ClientLine.LocalUnitPrice)
		}
		for col, v := range values {
			w.setCell(f, quoteSheet, cell(col+1, row), v)
		}
		row++
	}

	last := len(quoteColumns)
	w.setCell(f, quoteSheet, cell(last-1, row), "Total")
	w.setCell(f, quoteSheet, cell(last, row), q.Total.Round(w.roundingPlaces).InexactFloat64())
	w.setStyle(f, quoteSheet, cell(last-1, row), cell(last, row), bold)

	if err := f.SetColWidth(quoteSheet, "A", "A", 32); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}
}

func (w *WorkbookExporter) writeBenchmark(f *excelize.File, q *entity.Quote, groups map[int64]*entity.BenchmarkGroup, bold int) {
	for i, title := range benchmarkColumns {
		w.setCell(f, benchmarkSheet, cell(i+1, 1), title)
	}
	w.setStyle(f, benchmarkSheet, cell(1, 1), cell(len(benchmarkColumns), 1), bold)

	row := 2
	for _, c := range q.Contributions {
		for _, e := range groups[c.GroupID].Entries {
			reference := ""
			if e.IsReference {
				reference = "yes"
			}
			values := []interface{}{c.Label, e.Platform, w.money(e.UnitPrice), e.Currency, e.ExchangeRate, e.RoomCount, reference}
			for col, v := range values {
				w.setCell(f, benchmarkSheet, cell(col+1, row), v)
			}
			row++
		}
	}
}

// money rounds an amount half away from zero to the configured places
func (w *WorkbookExporter) money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(w.roundingPlaces).InexactFloat64()
}

func (w *WorkbookExporter) setCell(f *excelize.File, sheet, axis string, value interface{}) {
	if err := f.SetCellValue(sheet, axis, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", axis),
			zap.Error(err))
	}
}

func (w *WorkbookExporter) setStyle(f *excelize.File, sheet, from, to string, style int) {
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		w.logger.Warn("Failed to set cell style", zap.String("sheet", sheet), zap.Error(err))
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// Verify interface compliance
var _ port.QuoteExporter = (*WorkbookExporter)(nil)
