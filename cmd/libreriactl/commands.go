package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"libreria/internal/auth"
	"libreria/internal/core"
	"libreria/internal/export"
	"libreria/internal/services"
)

type app struct {
	out  io.Writer
	in   io.Reader
	now  func() time.Time
	open func(context.Context) (*services.LedgerService, func(), error)

	ledger *services.LedgerService
	close  func()
}

type filterFlags struct {
	mode   string
	from   string
	to     string
	period string
}

func (f *filterFlags) register(cmd *cobra.Command, def core.FilterMode) {
	cmd.Flags().StringVar(&f.mode, "filter", string(def), "View: today, week, range, fiscal or all")
	cmd.Flags().StringVar(&f.from, "from", "", "Range start, YYYY-MM-DD (default 30 days ago)")
	cmd.Flags().StringVar(&f.to, "to", "", "Range end, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.period, "period", "", `Fiscal period key, e.g. "2024-03 (Cierre 21)" (default latest)`)
}

func (f filterFlags) build(today core.Date) (core.Filter, error) {
	out := core.Filter{Mode: core.FilterMode(f.mode)}
	if !out.Mode.IsValid() {
		return out, fmt.Errorf("unknown filter %q", f.mode)
	}
	switch out.Mode {
	case core.FilterCustomRange:
		out.From, out.To = today.AddDays(-30), today
		if f.from != "" {
			d, err := core.ParseDate(f.from)
			if err != nil {
				return out, fmt.Errorf("--from: %w", err)
			}
			out.From = d
		}
		if f.to != "" {
			d, err := core.ParseDate(f.to)
			if err != nil {
				return out, fmt.Errorf("--to: %w", err)
			}
			out.To = d
		}
	case core.FilterFiscalMonth:
		out.Period = core.PeriodKey(f.period)
	}
	return out, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "libreriactl",
		Short:        "Manage the daily records of the store",
		SilenceUsage: true,
	}
	root.AddCommand(
		newListCmd(a),
		newSummaryCmd(a),
		newAddCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newHashPasswordCmd(a),
	)
	return root
}

// withLedger opens the store for the duration of one command.
func (a *app) withLedger(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if a.ledger == nil {
			ledger, closer, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			a.ledger, a.close = ledger, closer
			defer func() {
				a.close()
				a.ledger, a.close = nil, nil
			}()
		}
		return run(cmd, args)
	}
}

func (a *app) today() core.Date { return core.DateOf(a.now()) }

func (a *app) view(ctx context.Context, ff filterFlags) (*services.DashboardView, error) {
	f, err := ff.build(a.today())
	if err != nil {
		return nil, err
	}
	v, err := a.ledger.Dashboard(ctx, f, a.today())
	if err != nil {
		return nil, err
	}
	if v.InvalidFilter != nil {
		return nil, v.InvalidFilter
	}
	return v, nil
}

func money(v float64) string {
	return "$ " + humanize.FormatFloat("#.###,", v)
}

func count(n int64) string {
	return humanize.FormatInteger("#.###,", int(n))
}

func newListCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string) error {
			v, err := a.view(cmd.Context(), ff)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, v.Title)
			if len(v.Records) == 0 {
				fmt.Fprintln(a.out, "No records.")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "Fecha\tVentas\tMargen\tSueldos\tGastos\tCopias\tNeta\t")
			for _, r := range v.Records {
				fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\t%s\t%s\t\n",
					r.Date, money(r.TotalSales), r.MarginPct, money(r.PayrollCost),
					money(r.FixedExpenses), count(r.CopyCount), money(r.NetProfit))
			}
			return tw.Flush()
		}),
	}
	ff.register(cmd, core.FilterAll)
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the totals of a view",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string) error {
			v, err := a.view(cmd.Context(), ff)
			if err != nil {
				return err
			}
			s := v.Summary
			fmt.Fprintln(a.out, v.Title)
			fmt.Fprintf(a.out, "Registros:     %d\n", s.Count)
			fmt.Fprintf(a.out, "Ventas:        %s\n", money(s.TotalSales))
			fmt.Fprintf(a.out, "Sueldos:       %s\n", money(s.PayrollCost))
			fmt.Fprintf(a.out, "Gastos fijos:  %s\n", money(s.FixedExpenses))
			fmt.Fprintf(a.out, "Copias:        %s\n", count(s.CopyCount))
			fmt.Fprintf(a.out, "Ganancia neta: %s\n", money(s.NetProfit))
			if b := v.Billing; b != nil {
				fmt.Fprintf(a.out, "Servicio de copias: %s (%s copias a %s)\n", money(b.Amount), count(b.CopyCount), money(b.AvgUnitCost))
				if !b.TargetMet {
					fmt.Fprintf(a.out, "Mínimo garantizado, faltan %s copias\n", count(b.Shortfall))
				}
			}
			return nil
		}),
	}
	ff.register(cmd, core.FilterToday)
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		in      services.RecordInput
		useLast bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a daily record",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if in.Date == "" {
				in.Date = a.today().String()
			}
			if useLast {
				all, err := a.ledger.Snapshot(ctx)
				if err != nil {
					return err
				}
				d := core.FormDefaults(all)
				flags := cmd.Flags()
				if !flags.Changed("margin") {
					in.MarginPct = d.MarginPct
				}
				if !flags.Changed("rate") {
					in.HourlyRate = d.HourlyRate
				}
				if !flags.Changed("copy-cost") {
					in.CopyUnitCost = d.CopyUnitCost
				}
				if !flags.Changed("fixed") {
					in.FixedExpenses = d.FixedExpenses
				}
			}
			raw, err := in.Validate()
			if err != nil {
				return err
			}
			rec, err := a.ledger.Record(ctx, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s: ventas %s, ganancia neta %s\n", rec.Date, money(rec.TotalSales), money(rec.NetProfit))
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&in.Date, "date", "", "Record date, YYYY-MM-DD (default today)")
	f.Float64Var(&in.CashSales, "cash", 0, "Cash sales")
	f.Float64Var(&in.CardSales, "card", 0, "Card/MP sales")
	f.IntVar(&in.MarginPct, "margin", 50, "Margin percent (10-90)")
	f.Float64Var(&in.FixedExpenses, "fixed", 0, "Fixed expenses of the day")
	f.Float64Var(&in.HoursWorked, "hours", 0, "Hours worked")
	f.Float64Var(&in.HourlyRate, "rate", 2000, "Hourly rate")
	f.Int64Var(&in.CopyCount, "copies", 0, "Photocopies made")
	f.Float64Var(&in.CopyUnitCost, "copy-cost", 10, "Cost per copy")
	f.StringVar(&in.Notes, "notes", "", "Free-form notes")
	f.BoolVar(&useLast, "use-last", true, "Take margin, rate, copy cost and fixed expenses from the latest record unless given")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the first record stored for a date",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string) error {
			d, err := core.ParseDate(date)
			if err != nil {
				return err
			}
			if err := a.ledger.Delete(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted record of %s\n", d)
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "Date of the record to delete, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		ff  filterFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a view to an .xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string) error {
			v, err := a.view(cmd.Context(), ff)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			rep := export.Report{Title: v.Title, Records: v.Records, Summary: v.Summary, Billing: v.Billing}
			if err := export.WriteXLSX(f, rep); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(a.out, "Wrote %d records to %s\n", len(v.Records), out)
			return nil
		}),
	}
	ff.register(cmd, core.FilterAll)
	cmd.Flags().StringVar(&out, "out", "libreria.xlsx", "Output file")
	return cmd
}

func newHashPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to use as APP_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				pw = strings.TrimRight(line, "\r\n")
			}
			if pw == "" {
				return errors.New("password must not be empty")
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, hash)
			return nil
		},
	}
}
