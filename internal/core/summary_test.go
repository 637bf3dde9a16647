package core

import "testing"

func copiesRecords(counts []int64, unit float64) []DailyRecord {
	out := make([]DailyRecord, len(counts))
	for i, c := range counts {
		out[i] = DailyRecord{Date: NewDate(2024, 3, i+1), CopyCount: c, CopyUnitCost: unit}
	}
	return out
}

func TestBillCopiesMinimumGuarantee(t *testing.T) {
	b := BillCopies(copiesRecords([]int64{5000, 6000, 4000}, 10))
	if b.CopyCount != 15000 || b.AvgUnitCost != 10 {
		t.Fatalf("unexpected totals: %+v", b)
	}
	if b.Tier != TierMinimumGuarantee || b.Amount != 200000 || b.Shortfall != 5000 || b.TargetMet {
		t.Fatalf("unexpected billing: %+v", b)
	}
}

func TestBillCopiesUsage(t *testing.T) {
	b := BillCopies(copiesRecords([]int64{10000, 15000}, 10))
	if b.Tier != TierUsage || b.Amount != 250000 || !b.TargetMet || b.Shortfall != 0 {
		t.Fatalf("unexpected billing: %+v", b)
	}
}

func TestBillCopiesExactlyMinimumIsUsage(t *testing.T) {
	b := BillCopies(copiesRecords([]int64{20000}, 8))
	if b.Tier != TierUsage || b.Amount != 160000 || !b.TargetMet {
		t.Fatalf("unexpected billing: %+v", b)
	}
}

func TestBillCopiesAveragesUnitCostUnweighted(t *testing.T) {
	recs := []DailyRecord{
		{CopyCount: 19000, CopyUnitCost: 10},
		{CopyCount: 2000, CopyUnitCost: 20},
	}
	b := BillCopies(recs)
	// weighted would be ~10.95; the contract uses the plain mean
	if b.AvgUnitCost != 15 || b.Amount != 21000*15 {
		t.Fatalf("unexpected billing: %+v", b)
	}
}

func TestBillCopiesEmpty(t *testing.T) {
	b := BillCopies(nil)
	if b.AvgUnitCost != 0 || b.Amount != 0 || b.Shortfall != CopyMinimumVolume || b.Tier != TierMinimumGuarantee {
		t.Fatalf("unexpected billing: %+v", b)
	}
}

func TestSummarize(t *testing.T) {
	recs := []DailyRecord{
		Derive(RawInput{Date: NewDate(2024, 3, 1), CashSales: 1000, MarginPct: 50, FixedExpenses: 100, HoursWorked: 1, HourlyRate: 50, CopyCount: 10, CopyUnitCost: 1}),
		Derive(RawInput{Date: NewDate(2024, 3, 2), CardSales: 500, MarginPct: 50, FixedExpenses: 50, CopyCount: 5, CopyUnitCost: 1}),
	}
	s := Summarize(recs)
	if s.Count != 2 || s.TotalSales != 1500 || s.PayrollCost != 50 || s.FixedExpenses != 150 || s.CopyCount != 15 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.NetProfit != recs[0].NetProfit+recs[1].NetProfit {
		t.Fatalf("net profit not summed: %+v", s)
	}
	if z := Summarize(nil); z != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", z)
	}
}

func TestSortByDateDesc(t *testing.T) {
	recs := []DailyRecord{
		{Date: NewDate(2024, 1, 2)},
		{Date: NewDate(2024, 3, 1)},
		{Date: NewDate(2023, 12, 31)},
	}
	SortByDateDesc(recs)
	got := datesOf(recs)
	if got[0] != "2024-03-01" || got[1] != "2024-01-02" || got[2] != "2023-12-31" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestFormDefaults(t *testing.T) {
	d := FormDefaults(nil)
	if d.MarginPct != 50 || d.HourlyRate != 2000 || d.CopyUnitCost != 10 || d.FixedExpenses != 0 {
		t.Fatalf("unexpected fallback defaults: %+v", d)
	}
	recs := []DailyRecord{
		{Date: NewDate(2024, 3, 1), MarginPct: 40, HourlyRate: 2500, CopyUnitCost: 12, FixedExpenses: 300},
		{Date: NewDate(2024, 3, 5), MarginPct: 35, HourlyRate: 2600, CopyUnitCost: 11, FixedExpenses: 150},
	}
	d = FormDefaults(recs)
	if d.MarginPct != 35 || d.HourlyRate != 2600 || d.CopyUnitCost != 11 || d.FixedExpenses != 150 {
		t.Fatalf("expected latest record settings, got %+v", d)
	}
}
