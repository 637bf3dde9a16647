package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"libreria/internal/core"
	ports "libreria/internal/sheets"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ ports.RecordStore = (*SQLiteRepository)(nil)
	_ ports.Pinger      = (*SQLiteRepository)(nil)
)

// columnMap pairs each table column with its record header, in schema order.
var columnMap = []struct {
	sql    string
	header string
}{
	{"record_date", core.ColDate},
	{"cash_sales", core.ColCashSales},
	{"card_sales", core.ColCardSales},
	{"total_sales", core.ColTotalSales},
	{"margin_pct", core.ColMarginPct},
	{"cost_of_goods", core.ColCostOfGoods},
	{"gross_profit", core.ColGrossProfit},
	{"fixed_expenses", core.ColFixedExpenses},
	{"hours_worked", core.ColHoursWorked},
	{"hourly_rate", core.ColHourlyRate},
	{"payroll_cost", core.ColPayrollCost},
	{"copy_count", core.ColCopyCount},
	{"copy_unit_cost", core.ColCopyUnitCost},
	{"copy_total_cost", core.ColCopyTotalCost},
	{"net_profit", core.ColNetProfit},
	{"notes", core.ColNotes},
}

var (
	selectAllSQL string
	insertSQL    string
)

func init() {
	cols := make([]string, len(columnMap))
	marks := make([]string, len(columnMap))
	for i, c := range columnMap {
		cols[i] = c.sql
		marks[i] = "?"
	}
	list := strings.Join(cols, ", ")
	selectAllSQL = "SELECT " + list + " FROM daily_records ORDER BY id"
	insertSQL = "INSERT INTO daily_records (" + list + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := MigrateDailyRecords(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadAll returns every stored row in insertion order, keyed by header name.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.RawRow, error) {
	rows, err := r.db.QueryContext(ctx, selectAllSQL)
	if err != nil {
		return nil, fmt.Errorf("query daily records: %w", err)
	}
	defer rows.Close()

	out := make([]core.RawRow, 0)
	for rows.Next() {
		vals := make([]any, len(columnMap))
		ptrs := make([]any, len(columnMap))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan daily record: %w", err)
		}
		raw := make(core.RawRow, len(columnMap))
		for i, c := range columnMap {
			raw[c.header] = vals[i]
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily records: %w", err)
	}
	return out, nil
}

// Append inserts one row. Columns the row does not carry take the table
// defaults' zero values.
func (r *SQLiteRepository) Append(ctx context.Context, row core.Row) error {
	args := make([]any, len(columnMap))
	for i, c := range columnMap {
		v, ok := row.Get(c.header)
		switch {
		case c.header == core.ColDate:
			if !ok {
				return fmt.Errorf("append daily record: %w: missing", core.ErrMalformedDate)
			}
			args[i] = fmt.Sprint(v)
		case c.header == core.ColNotes:
			if ok && v != nil {
				args[i] = fmt.Sprint(v)
			} else {
				args[i] = ""
			}
		case !ok:
			args[i] = 0
		default:
			args[i] = v
		}
	}

	res, err := r.db.ExecContext(ctx, insertSQL, args...)
	if err != nil {
		return fmt.Errorf("insert daily record: %w", err)
	}
	id, _ := res.LastInsertId()

	slog.InfoContext(ctx, "Daily record saved to SQLite", "id", id, "date", args[0])
	return nil
}

// DeleteByDate removes the oldest row stored for d.
func (r *SQLiteRepository) DeleteByDate(ctx context.Context, d core.Date) error {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM daily_records WHERE record_date = ? ORDER BY id LIMIT 1", d.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find daily record %s: %w", d, err)
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM daily_records WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete daily record %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Daily record deleted from SQLite", "id", id, "date", d.String())
	return nil
}
