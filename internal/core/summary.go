package core

import "sort"

// CopyMinimumVolume is the monthly copy volume the service contract bills
// at minimum.
const CopyMinimumVolume = 20000

// Summary holds the headline totals of a filtered record set.
type Summary struct {
	Count         int
	NetProfit     float64
	TotalSales    float64
	PayrollCost   float64
	FixedExpenses float64
	CopyCount     int64
}

// BillingTier tells which rule priced the copy service.
type BillingTier string

const (
	TierMinimumGuarantee BillingTier = "minimum_guarantee"
	TierUsage            BillingTier = "usage"
)

// CopyBilling is the photocopy service bill for a period.
type CopyBilling struct {
	CopyCount   int64
	AvgUnitCost float64
	Amount      float64
	Tier        BillingTier
	Shortfall   int64 // copies missing to reach the minimum; 0 when met
	TargetMet   bool
}

// Summarize sums the headline metrics.
func Summarize(records []DailyRecord) Summary {
	s := Summary{Count: len(records)}
	for _, r := range records {
		s.NetProfit += r.NetProfit
		s.TotalSales += r.TotalSales
		s.PayrollCost += r.PayrollCost
		s.FixedExpenses += r.FixedExpenses
		s.CopyCount += r.CopyCount
	}
	return s
}

// BillCopies applies the minimum-guarantee rule. The unit cost is the plain
// average of the records' unit costs, not weighted by volume.
func BillCopies(records []DailyRecord) CopyBilling {
	var total int64
	var costSum float64
	for _, r := range records {
		total += r.CopyCount
		costSum += r.CopyUnitCost
	}
	avg := 0.0
	if len(records) > 0 {
		avg = costSum / float64(len(records))
	}

	b := CopyBilling{CopyCount: total, AvgUnitCost: avg}
	if total < CopyMinimumVolume {
		b.Tier = TierMinimumGuarantee
		b.Amount = CopyMinimumVolume * avg
		b.Shortfall = CopyMinimumVolume - total
		return b
	}
	b.Tier = TierUsage
	b.Amount = float64(total) * avg
	b.TargetMet = true
	return b
}

// SortByDateDesc orders records newest first, in place.
func SortByDateDesc(records []DailyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date.Time)
	})
}

// Defaults prefill the daily form.
type Defaults struct {
	MarginPct     int
	HourlyRate    float64
	CopyUnitCost  float64
	FixedExpenses float64
}

// FormDefaults remembers the settings of the most recent record so the
// operator does not retype them every day.
func FormDefaults(records []DailyRecord) Defaults {
	d := Defaults{MarginPct: 50, HourlyRate: 2000, CopyUnitCost: 10, FixedExpenses: 0}
	if len(records) == 0 {
		return d
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Date.After(latest.Date.Time) {
			latest = r
		}
	}
	d.MarginPct = latest.MarginPct
	d.HourlyRate = latest.HourlyRate
	d.CopyUnitCost = latest.CopyUnitCost
	d.FixedExpenses = latest.FixedExpenses
	return d
}
