package worker

import (
	"context"
	"sync"

	"libreria/internal/amqp"
	"libreria/internal/core"
	"libreria/internal/log"
	"libreria/internal/services"
)

// AuditWorker turns the record event feed into an audit log. When it has a
// ledger it also reports the fiscal period each event touched, recomputed
// from a fresh snapshot.
type AuditWorker struct {
	ledger *services.LedgerService
	logger *log.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats counts handled events by type.
type Stats struct {
	Appended int
	Deleted  int
	Unknown  int
}

// NewAuditWorker creates a worker. ledger may be nil, in which case only
// the events themselves are logged.
func NewAuditWorker(ledger *services.LedgerService, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.New(log.Config{})
	}
	return &AuditWorker{ledger: ledger, logger: logger.WithComponent(log.ComponentAMQP)}
}

// HandleEvent logs one event. It never asks for a redelivery: the audit line
// is written before the store is consulted, so a store outage only loses
// the period report.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *amqp.RecordEvent) error {
	switch ev.Type {
	case amqp.EventRecordAppended:
		w.count(func(s *Stats) { s.Appended++ })
		w.logger.InfoContext(ctx, "Record appended",
			log.FieldDate, ev.Date,
			log.FieldTotalSales, ev.TotalSales,
			log.FieldNetProfit, ev.NetProfit,
			"at", ev.Timestamp)
	case amqp.EventRecordDeleted:
		w.count(func(s *Stats) { s.Deleted++ })
		w.logger.InfoContext(ctx, "Record deleted", log.FieldDate, ev.Date, "at", ev.Timestamp)
	default:
		w.count(func(s *Stats) { s.Unknown++ })
		w.logger.WarnContext(ctx, "Ignoring unknown record event", "type", ev.Type, log.FieldDate, ev.Date)
		return nil
	}

	if w.ledger == nil {
		return nil
	}
	d, err := core.ParseDate(ev.Date)
	if err != nil {
		w.logger.WarnContext(ctx, "Event carries a malformed date", log.FieldDate, ev.Date, log.FieldError, err)
		return nil
	}
	w.reportPeriod(ctx, d)
	return nil
}

func (w *AuditWorker) reportPeriod(ctx context.Context, d core.Date) {
	period := core.FiscalPeriod(d)
	view, err := w.ledger.Dashboard(ctx, core.Filter{Mode: core.FilterFiscalMonth, Period: period}, d)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to load period", "period", period, log.FieldError, err)
		return
	}
	args := []any{
		"period", period,
		log.FieldRecords, view.Summary.Count,
		log.FieldNetProfit, view.Summary.NetProfit,
		log.FieldCopyCount, view.Summary.CopyCount,
	}
	if b := view.Billing; b != nil {
		args = append(args, "copy_bill", b.Amount, "copy_target_met", b.TargetMet)
	}
	w.logger.InfoContext(ctx, "Period result", args...)
}

// StartupCheck logs the state of the store before consuming, so the audit
// trail has a baseline.
func (w *AuditWorker) StartupCheck(ctx context.Context) error {
	if w.ledger == nil {
		return nil
	}
	recs, err := w.ledger.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		w.logger.InfoContext(ctx, "Store is empty")
		return nil
	}
	core.SortByDateDesc(recs)
	w.logger.InfoContext(ctx, "Store baseline",
		log.FieldRecords, len(recs),
		"latest", recs[0].Date.String(),
		"periods", len(core.FiscalPeriods(recs)))
	return nil
}

func (w *AuditWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *AuditWorker) count(f func(*Stats)) {
	w.mu.Lock()
	f(&w.stats)
	w.mu.Unlock()
}
