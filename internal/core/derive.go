package core

// Derive computes every derived field of a daily record from the operator
// input. It is pure: the same input always yields the same record.
//
// MarginPct is taken as given; the form keeps it within 10..90 but the
// formula is defined for any integer.
func Derive(in RawInput) DailyRecord {
	total := in.CashSales + in.CardSales
	costOfGoods := total * (1 - float64(in.MarginPct)/100)
	gross := total - costOfGoods
	payroll := in.HoursWorked * in.HourlyRate
	copies := float64(in.CopyCount) * in.CopyUnitCost

	return DailyRecord{
		Date:          in.Date,
		CashSales:     in.CashSales,
		CardSales:     in.CardSales,
		TotalSales:    total,
		MarginPct:     in.MarginPct,
		CostOfGoods:   costOfGoods,
		GrossProfit:   gross,
		FixedExpenses: in.FixedExpenses,
		HoursWorked:   in.HoursWorked,
		HourlyRate:    in.HourlyRate,
		PayrollCost:   payroll,
		CopyCount:     in.CopyCount,
		CopyUnitCost:  in.CopyUnitCost,
		CopyTotalCost: copies,
		NetProfit:     gross - in.FixedExpenses - payroll - copies,
		Notes:         in.Notes,
	}
}
