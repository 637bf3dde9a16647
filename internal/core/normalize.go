package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericJunk is stripped before parsing: currency symbol and thousands separator.
var numericJunk = strings.NewReplacer("$", "", ",", "")

// NormalizeNumber turns a raw store value into a number. Anything that does
// not parse becomes 0: bad upstream data must never break the dashboard.
func NormalizeNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case json.Number:
		return NormalizeNumber(n.String())
	case string:
		return parseDecimal(n)
	default:
		return parseDecimal(fmt.Sprint(n))
	}
}

func parseDecimal(s string) float64 {
	s = strings.TrimSpace(numericJunk.Replace(s))
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses the Fecha column. Unlike numeric fields there is no
// fallback: the date is the record key.
func ParseDate(v any) (Date, error) {
	switch t := v.(type) {
	case Date:
		return t, nil
	case time.Time:
		return DateOf(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return Date{}, fmt.Errorf("%w: empty", ErrMalformedDate)
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return DateOf(parsed), nil
			}
		}
		return Date{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	case nil:
		return Date{}, fmt.Errorf("%w: missing", ErrMalformedDate)
	default:
		return Date{}, fmt.Errorf("%w: unexpected %T", ErrMalformedDate, v)
	}
}

// RecordFromRow builds a typed record from a stored row. Derived fields are
// read back verbatim, never recomputed.
func RecordFromRow(row RawRow) (DailyRecord, error) {
	date, err := ParseDate(row[ColDate])
	if err != nil {
		return DailyRecord{}, err
	}
	num := func(col string) float64 { return NormalizeNumber(row[col]) }
	notes := ""
	if v, ok := row[ColNotes]; ok && v != nil {
		notes = strings.TrimSpace(fmt.Sprint(v))
	}
	return DailyRecord{
		Date:          date,
		CashSales:     num(ColCashSales),
		CardSales:     num(ColCardSales),
		TotalSales:    num(ColTotalSales),
		MarginPct:     int(num(ColMarginPct)),
		CostOfGoods:   num(ColCostOfGoods),
		GrossProfit:   num(ColGrossProfit),
		FixedExpenses: num(ColFixedExpenses),
		HoursWorked:   num(ColHoursWorked),
		HourlyRate:    num(ColHourlyRate),
		PayrollCost:   num(ColPayrollCost),
		CopyCount:     int64(num(ColCopyCount)),
		CopyUnitCost:  num(ColCopyUnitCost),
		CopyTotalCost: num(ColCopyTotalCost),
		NetProfit:     num(ColNetProfit),
		Notes:         notes,
	}, nil
}

// RecordsFromRows converts a full load. The first malformed date aborts the
// whole load.
func RecordsFromRows(rows []RawRow) ([]DailyRecord, error) {
	out := make([]DailyRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := RecordFromRow(row)
		if err != nil {
			// +2: header is row 1 and rows are 1-based
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
