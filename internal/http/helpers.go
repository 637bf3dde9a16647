package http

import (
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"libreria/internal/core"
)

// Amounts are shown the way the shop writes them: "$ 12.345", no cents.
const numberFormat = "#.###,"

func formatMoney(v float64) string {
	return "$ " + humanize.FormatFloat(numberFormat, math.Round(v))
}

func formatCount(n int64) string {
	return humanize.FormatInteger(numberFormat, int(n))
}

func formatHours(v float64) string {
	return humanize.FormatFloat("#.###,#", v)
}

func formatDate(d core.Date) string {
	return d.Format("02/01/2006")
}

// pnlClass picks the banner style for a net profit figure.
func pnlClass(v float64) string {
	switch {
	case v > 0:
		return "profit"
	case v < 0:
		return "loss"
	default:
		return "even"
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":    formatMoney,
		"count":    formatCount,
		"hours":    formatHours,
		"date":     formatDate,
		"isoDate":  func(d core.Date) string { return d.String() },
		"pnlClass": pnlClass,
		"neg":      func(v float64) float64 { return -v },
		"plain":    func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
