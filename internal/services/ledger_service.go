package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"libreria/internal/core"
	applog "libreria/internal/log"
	ports "libreria/internal/sheets"
)

// EventPublisher receives notice of successful store mutations. Publishing
// is best effort: failures are logged and never fail the user action.
type EventPublisher interface {
	RecordAppended(ctx context.Context, rec core.DailyRecord) error
	RecordDeleted(ctx context.Context, d core.Date) error
}

// LedgerService reloads the store on every action and recomputes the
// dashboard from that snapshot. Nothing is cached between calls.
type LedgerService struct {
	store  ports.RecordStore
	events EventPublisher
}

func NewLedgerService(store ports.RecordStore, events EventPublisher) *LedgerService {
	return &LedgerService{store: store, events: events}
}

// DashboardView is everything the dashboard renders for one filter.
type DashboardView struct {
	Filter  core.Filter
	Title   string
	Records []core.DailyRecord // filtered, newest first
	Summary core.Summary
	// Billing is set only for the fiscal month view.
	Billing  *core.CopyBilling
	Periods  []core.PeriodKey
	Defaults core.Defaults
	// Total is the number of records in the store, before filtering.
	Total int
	// InvalidFilter holds a user-facing validation error, such as an
	// inverted custom range. Records is empty when it is set.
	InvalidFilter error
}

// Snapshot loads and normalizes every stored record.
func (s *LedgerService) Snapshot(ctx context.Context) ([]core.DailyRecord, error) {
	rows, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	recs, err := core.RecordsFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return recs, nil
}

// Record derives the full record from operator input and appends it.
func (s *LedgerService) Record(ctx context.Context, in core.RawInput) (core.DailyRecord, error) {
	rec := core.Derive(in)
	sl := applog.NewStructuredLogger(applog.FromContext(ctx))
	if err := s.store.Append(ctx, rec.Row()); err != nil {
		sl.LogError(ctx, "Failed to append record", err, applog.ComponentLedger, applog.OpAppend,
			applog.NewFields().WithRecord(rec.Date.String(), rec.TotalSales, rec.NetProfit, rec.CopyCount))
		return core.DailyRecord{}, fmt.Errorf("append record: %w", err)
	}

	sl.LogRecordSaved(ctx, rec.Date.String(), rec.TotalSales, rec.NetProfit, rec.CopyCount)

	if s.events != nil {
		if err := s.events.RecordAppended(ctx, rec); err != nil {
			slog.WarnContext(ctx, "Failed to publish record event", "date", rec.Date.String(), "error", err)
		}
	}
	return rec, nil
}

// Delete removes the first record stored for d. The error wraps
// sheets.ErrNotFound when there is none.
func (s *LedgerService) Delete(ctx context.Context, d core.Date) error {
	if err := s.store.DeleteByDate(ctx, d); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			slog.WarnContext(ctx, "No record to delete", "date", d.String())
		} else {
			applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Failed to delete record", err,
				applog.ComponentLedger, applog.OpDelete, applog.NewFields().WithDate(d.String()))
		}
		return fmt.Errorf("delete record %s: %w", d, err)
	}

	slog.InfoContext(ctx, "Record deleted", "date", d.String())

	if s.events != nil {
		if err := s.events.RecordDeleted(ctx, d); err != nil {
			slog.WarnContext(ctx, "Failed to publish record event", "date", d.String(), "error", err)
		}
	}
	return nil
}

// Dashboard builds the view for f as seen on today. A fiscal filter without
// a period selects the most recent one.
func (s *LedgerService) Dashboard(ctx context.Context, f core.Filter, today core.Date) (*DashboardView, error) {
	all, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	view := &DashboardView{
		Periods:  core.FiscalPeriods(all),
		Defaults: core.FormDefaults(all),
		Total:    len(all),
	}
	if f.Mode == "" {
		f.Mode = core.FilterToday
	}
	if f.Mode == core.FilterFiscalMonth && f.Period == "" && len(view.Periods) > 0 {
		f.Period = view.Periods[0]
	}
	view.Filter = f
	view.Title = f.Title(today)

	recs, err := core.ApplyFilter(all, f, today)
	if err != nil {
		view.InvalidFilter = err
		view.Records = recs
		return view, nil
	}
	core.SortByDateDesc(recs)
	view.Records = recs
	view.Summary = core.Summarize(recs)

	if f.Mode == core.FilterFiscalMonth {
		b := core.BillCopies(recs)
		view.Billing = &b
	}
	return view, nil
}
