package core

import (
	"errors"
	"time"
)

// DateLayout is the persisted format of the Fecha column.
const DateLayout = "2006-01-02"

// Column names of the record sheet, in header order.
const (
	ColDate          = "Fecha"
	ColCashSales     = "Venta_Efectivo"
	ColCardSales     = "Venta_MP"
	ColTotalSales    = "Total_Ventas"
	ColMarginPct     = "Margen_Porc"
	ColCostOfGoods   = "Costo_Mercaderia"
	ColGrossProfit   = "Ganancia_Bruta"
	ColFixedExpenses = "Gastos_Fijos"
	ColHoursWorked   = "Horas_Trabajadas"
	ColHourlyRate    = "Valor_Hora"
	ColPayrollCost   = "Total_Sueldos"
	ColCopyCount     = "Cant_Copias"
	ColCopyUnitCost  = "Costo_Copia_Unit"
	ColCopyTotalCost = "Total_Costo_Copias"
	ColNetProfit     = "Ganancia_Neta"
	ColNotes         = "Notas"
)

// Columns is the fixed schema of the record store. Order matters: it is the
// header row written when a store has none yet.
var Columns = []string{
	ColDate, ColCashSales, ColCardSales, ColTotalSales,
	ColMarginPct, ColCostOfGoods, ColGrossProfit,
	ColFixedExpenses, ColHoursWorked, ColHourlyRate, ColPayrollCost,
	ColCopyCount, ColCopyUnitCost, ColCopyTotalCost,
	ColNetProfit, ColNotes,
}

type (
	Date struct {
		time.Time
	}

	// RawInput is what the operator types into the daily form.
	RawInput struct {
		Date          Date
		CashSales     float64
		CardSales     float64
		MarginPct     int
		FixedExpenses float64
		HoursWorked   float64
		HourlyRate    float64
		CopyCount     int64
		CopyUnitCost  float64
		Notes         string
	}

	// DailyRecord is one stored row: the raw input plus the fields derived
	// from it at write time.
	DailyRecord struct {
		Date          Date
		CashSales     float64
		CardSales     float64
		TotalSales    float64
		MarginPct     int
		CostOfGoods   float64
		GrossProfit   float64
		FixedExpenses float64
		HoursWorked   float64
		HourlyRate    float64
		PayrollCost   float64
		CopyCount     int64
		CopyUnitCost  float64
		CopyTotalCost float64
		NetProfit     float64
		Notes         string
	}

	// RawRow is a row as read back from a store, keyed by header name.
	RawRow map[string]any

	// Cell is one column/value pair of an ordered Row.
	Cell struct {
		Column string
		Value  any
	}

	// Row is an ordered column→value mapping used for appends.
	Row []Cell
)

var (
	ErrMalformedDate = errors.New("malformed date")
	ErrInvalidRange  = errors.New("start date must not be after end date")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// String formats the date in the persisted YYYY-MM-DD layout.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// Input returns the operator input this record was derived from.
func (r DailyRecord) Input() RawInput {
	return RawInput{
		Date:          r.Date,
		CashSales:     r.CashSales,
		CardSales:     r.CardSales,
		MarginPct:     r.MarginPct,
		FixedExpenses: r.FixedExpenses,
		HoursWorked:   r.HoursWorked,
		HourlyRate:    r.HourlyRate,
		CopyCount:     r.CopyCount,
		CopyUnitCost:  r.CopyUnitCost,
		Notes:         r.Notes,
	}
}

// Row serializes the record in schema order. The date is written as a
// YYYY-MM-DD string so it round-trips through ParseDate.
func (r DailyRecord) Row() Row {
	return Row{
		{ColDate, r.Date.String()},
		{ColCashSales, r.CashSales},
		{ColCardSales, r.CardSales},
		{ColTotalSales, r.TotalSales},
		{ColMarginPct, r.MarginPct},
		{ColCostOfGoods, r.CostOfGoods},
		{ColGrossProfit, r.GrossProfit},
		{ColFixedExpenses, r.FixedExpenses},
		{ColHoursWorked, r.HoursWorked},
		{ColHourlyRate, r.HourlyRate},
		{ColPayrollCost, r.PayrollCost},
		{ColCopyCount, r.CopyCount},
		{ColCopyUnitCost, r.CopyUnitCost},
		{ColCopyTotalCost, r.CopyTotalCost},
		{ColNetProfit, r.NetProfit},
		{ColNotes, r.Notes},
	}
}

// Get returns the value for column, or nil when the row does not carry it.
func (row Row) Get(column string) (any, bool) {
	for _, c := range row {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

// Values lays the row out along headers. Columns the row does not carry
// become empty strings.
func (row Row) Values(headers []string) []any {
	out := make([]any, len(headers))
	for i, h := range headers {
		if v, ok := row.Get(h); ok {
			out[i] = v
		} else {
			out[i] = ""
		}
	}
	return out
}
