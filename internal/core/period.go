package core

import (
	"fmt"
	"sort"
)

// FiscalCloseDay is the day of month on which the photocopy billing cycle closes.
const FiscalCloseDay = 21

// PeriodKey names a fiscal month, e.g. "2024-03 (Cierre 21)".
type PeriodKey string

// FiscalPeriod assigns a date to its billing cycle. Days after the close
// belong to the following calendar month's cycle.
func FiscalPeriod(d Date) PeriodKey {
	year, month := d.Year(), d.Time.Month()
	if d.Day() > FiscalCloseDay {
		// first of month + 1 month never overflows into a third month
		next := NewDate(year, int(month), 1).Time.AddDate(0, 1, 0)
		year, month = next.Year(), next.Month()
	}
	return PeriodKey(fmt.Sprintf("%04d-%02d (Cierre %d)", year, int(month), FiscalCloseDay))
}

// FiscalPeriods lists the distinct cycles present in records, newest first.
func FiscalPeriods(records []DailyRecord) []PeriodKey {
	seen := map[PeriodKey]struct{}{}
	out := make([]PeriodKey, 0)
	for _, r := range records {
		k := FiscalPeriod(r.Date)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

type FilterMode string

const (
	FilterAll         FilterMode = "all"
	FilterToday       FilterMode = "today"
	FilterLast7Days   FilterMode = "week"
	FilterCustomRange FilterMode = "range"
	FilterFiscalMonth FilterMode = "fiscal"
)

// Filter selects the records shown by a dashboard view.
type Filter struct {
	Mode   FilterMode
	From   Date // FilterCustomRange
	To     Date // FilterCustomRange
	Period PeriodKey
}

// IsValid reports whether m is a known filter mode.
func (m FilterMode) IsValid() bool {
	switch m {
	case FilterAll, FilterToday, FilterLast7Days, FilterCustomRange, FilterFiscalMonth:
		return true
	default:
		return false
	}
}

// Validate rejects inverted custom ranges. Bounds are never swapped.
func (f Filter) Validate() error {
	if !f.Mode.IsValid() {
		return fmt.Errorf("unknown filter mode %q", f.Mode)
	}
	if f.Mode == FilterCustomRange && f.From.After(f.To.Time) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, f.From, f.To)
	}
	return nil
}

// Match reports whether a single date passes the filter relative to today.
func (f Filter) Match(d Date, today Date) bool {
	switch f.Mode {
	case FilterToday:
		return d.Equal(today)
	case FilterLast7Days:
		return !d.Before(today.AddDays(-7).Time) && !d.After(today.Time)
	case FilterCustomRange:
		return !d.Before(f.From.Time) && !d.After(f.To.Time)
	case FilterFiscalMonth:
		return FiscalPeriod(d) == f.Period
	default:
		return true
	}
}

// ApplyFilter keeps the records matching f. An invalid filter yields an
// empty (non-nil) slice together with the validation error.
func ApplyFilter(records []DailyRecord, f Filter, today Date) ([]DailyRecord, error) {
	if err := f.Validate(); err != nil {
		return []DailyRecord{}, err
	}
	out := make([]DailyRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r.Date, today) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Title is the heading of the view, as shown above the profit banner.
func (f Filter) Title(today Date) string {
	switch f.Mode {
	case FilterToday:
		return "HOY (" + today.Format("02/01") + ")"
	case FilterLast7Days:
		return "ÚLTIMOS 7 DÍAS"
	case FilterCustomRange:
		return "DEL " + f.From.Format("02/01") + " AL " + f.To.Format("02/01")
	case FilterFiscalMonth:
		return "PERIODO " + string(f.Period)
	default:
		return "Todo"
	}
}
