package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"libreria/internal/core"
)

func TestWriteXLSX(t *testing.T) {
	recs := []core.DailyRecord{
		core.Derive(core.RawInput{Date: core.NewDate(2024, 3, 11), CashSales: 1000, MarginPct: 50, Notes: "lunes"}),
		core.Derive(core.RawInput{Date: core.NewDate(2024, 3, 10), CashSales: 500, MarginPct: 50}),
	}
	billing := core.BillCopies(recs)
	rep := Report{Title: "PERIODO 2024-03 (Cierre 21)", Records: recs, Summary: core.Summarize(recs), Billing: &billing}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rep); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(RecordsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != core.ColDate || len(rows[0]) != len(core.Columns) {
		t.Fatalf("bad header %v", rows[0])
	}
	if rows[1][0] != "2024-03-11" || rows[1][len(rows[1])-1] != "lunes" {
		t.Fatalf("bad first row %v", rows[1])
	}

	summary, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatalf("GetRows summary: %v", err)
	}
	if summary[0][1] != rep.Title || summary[1][1] != "2" {
		t.Fatalf("unexpected summary %v", summary[:2])
	}
	if len(summary) != 11 {
		t.Fatalf("billing rows missing: %d rows", len(summary))
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, Report{Title: "Todo"}); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty workbook")
	}
}
