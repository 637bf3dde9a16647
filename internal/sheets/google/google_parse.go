package google

import (
	"fmt"
	"strings"

	"libreria/internal/core"
)

// parseRows turns a values matrix (header first) into header-keyed rows.
// Blank rows are skipped; short rows simply lack the trailing columns.
func parseRows(values [][]any) []core.RawRow {
	out := make([]core.RawRow, 0)
	if len(values) == 0 {
		return out
	}
	headers := toStrings(values[0])
	for _, row := range values[1:] {
		if isBlankRow(row) {
			continue
		}
		raw := core.RawRow{}
		for i, h := range headers {
			if h == "" || i >= len(row) {
				continue
			}
			raw[h] = row[i]
		}
		out = append(out, raw)
	}
	return out
}

// findDateRow returns the 0-based sheet row of the first record whose date
// cell equals date, or -1. The date column is located through the header
// row; without one the default schema order applies.
func findDateRow(values [][]any, date string) int {
	col, start := dateColumn(values)
	for i := start; i < len(values); i++ {
		row := values[i]
		if col >= len(row) {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[col])) == date {
			return i
		}
	}
	return -1
}

// dateColumn reports the index of the date column and the first data row.
func dateColumn(values [][]any) (col, start int) {
	if len(values) > 0 {
		for i, h := range toStrings(values[0]) {
			if h == core.ColDate {
				return i, 1
			}
		}
	}
	for i, h := range core.Columns {
		if h == core.ColDate {
			return i, 0
		}
	}
	return 0, 0
}

func isBlankRow(row []any) bool {
	for _, v := range row {
		if strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// quoteSheet renders a worksheet title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
