package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"libreria/internal/core"
	"libreria/internal/services"
)

// defaultRangeDays is how far back a custom range starts when the operator
// leaves "from" empty.
const defaultRangeDays = 30

var errUnknownFilter = errors.New("filtro desconocido")

// parseFilter reads the dashboard filter from the query string. An empty
// mode is today's view.
func parseFilter(q url.Values, today core.Date) (core.Filter, error) {
	f := core.Filter{Mode: core.FilterMode(sanitizeInput(q.Get("filter")))}
	if f.Mode == "" {
		f.Mode = core.FilterToday
	}
	if !f.Mode.IsValid() {
		return core.Filter{Mode: core.FilterToday}, fmt.Errorf("%w: %q", errUnknownFilter, f.Mode)
	}

	switch f.Mode {
	case core.FilterCustomRange:
		f.From = today.AddDays(-defaultRangeDays)
		f.To = today
		if s := sanitizeInput(q.Get("from")); s != "" {
			d, err := core.ParseDate(s)
			if err != nil {
				return f, fmt.Errorf("fecha desde inválida: %w", err)
			}
			f.From = d
		}
		if s := sanitizeInput(q.Get("to")); s != "" {
			d, err := core.ParseDate(s)
			if err != nil {
				return f, fmt.Errorf("fecha hasta inválida: %w", err)
			}
			f.To = d
		}
	case core.FilterFiscalMonth:
		f.Period = core.PeriodKey(sanitizeInput(q.Get("period")))
	}
	return f, nil
}

// filterQuery is the inverse of parseFilter, used for links that keep the
// current view (export, redirects).
func filterQuery(f core.Filter) url.Values {
	q := url.Values{}
	q.Set("filter", string(f.Mode))
	switch f.Mode {
	case core.FilterCustomRange:
		q.Set("from", f.From.String())
		q.Set("to", f.To.String())
	case core.FilterFiscalMonth:
		if f.Period != "" {
			q.Set("period", string(f.Period))
		}
	}
	return q
}

// parseRecordForm reads the daily form. Every unparsable field is reported
// at once, together with the validator's findings.
func parseRecordForm(r *http.Request) (core.RawInput, error) {
	if err := r.ParseForm(); err != nil {
		return core.RawInput{}, &services.InputError{Problems: []string{"Formulario inválido"}}
	}

	var problems []string
	collect := func(err error) {
		var ie *services.InputError
		if errors.As(err, &ie) {
			problems = append(problems, ie.Problems...)
		}
	}
	amount := func(field, key string) float64 {
		v, err := services.ParseAmount(field, r.PostForm.Get(key))
		collect(err)
		return v
	}
	whole := func(field, key string) int64 {
		v, err := services.ParseCount(field, r.PostForm.Get(key))
		collect(err)
		return v
	}

	in := services.RecordInput{
		Date:          sanitizeInput(r.PostForm.Get("date")),
		CashSales:     amount("CashSales", "cash_sales"),
		CardSales:     amount("CardSales", "card_sales"),
		MarginPct:     int(whole("MarginPct", "margin_pct")),
		FixedExpenses: amount("FixedExpenses", "fixed_expenses"),
		HoursWorked:   amount("HoursWorked", "hours_worked"),
		HourlyRate:    amount("HourlyRate", "hourly_rate"),
		CopyCount:     whole("CopyCount", "copy_count"),
		CopyUnitCost:  amount("CopyUnitCost", "copy_unit_cost"),
		Notes:         sanitizeInput(r.PostForm.Get("notes")),
	}

	raw, err := in.Validate()
	if err != nil {
		var ie *services.InputError
		if !errors.As(err, &ie) {
			return core.RawInput{}, err
		}
		problems = append(problems, ie.Problems...)
	}
	if len(problems) > 0 {
		return core.RawInput{}, &services.InputError{Problems: problems}
	}
	return raw, nil
}
