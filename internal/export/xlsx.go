// Package export renders record sets as spreadsheets for the accountant.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"libreria/internal/core"
)

const (
	RecordsSheet = "Registros"
	SummarySheet = "Resumen"
)

// Report is what an export contains: a title, the records in display order
// and their totals. Billing is optional.
type Report struct {
	Title   string
	Records []core.DailyRecord
	Summary core.Summary
	Billing *core.CopyBilling
}

// WriteXLSX writes rep as an xlsx workbook with a records sheet laid out in
// schema order and a summary sheet.
func WriteXLSX(w io.Writer, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRecords(f, rep.Records); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, rep); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRecords(f *excelize.File, recs []core.DailyRecord) error {
	header := make([]any, len(core.Columns))
	for i, c := range core.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(RecordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(core.Columns), 1)
	if err := f.SetCellStyle(RecordsSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, rec := range recs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := rec.Row().Values(core.Columns)
		if err := f.SetSheetRow(RecordsSheet, cell, &values); err != nil {
			return fmt.Errorf("write record %s: %w", rec.Date, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(core.Columns))
	if err := f.SetColWidth(RecordsSheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetPanes(RecordsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, rep Report) error {
	rows := [][]any{
		{"Vista", rep.Title},
		{"Registros", rep.Summary.Count},
		{"Ganancia neta", rep.Summary.NetProfit},
		{"Ventas totales", rep.Summary.TotalSales},
		{"Sueldos", rep.Summary.PayrollCost},
		{"Gastos fijos", rep.Summary.FixedExpenses},
		{"Copias", rep.Summary.CopyCount},
	}
	if b := rep.Billing; b != nil {
		rows = append(rows,
			[]any{"Copias facturadas", b.CopyCount},
			[]any{"Costo promedio por copia", b.AvgUnitCost},
			[]any{"A pagar por copias", b.Amount},
			[]any{"Faltante para el mínimo", b.Shortfall},
		)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 28)
}
