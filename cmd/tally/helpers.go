package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/ledger"
	"github.com/Veraticus/tally/internal/metrics"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/settings"
	"github.com/Veraticus/tally/internal/storage"
)

// app bundles what a command needs to talk to the ledger.
type app struct {
	store    *storage.SQLiteStorage
	ledger   *ledger.Service
	agg      *ledger.Aggregator
	settings *settings.Settings
	metrics  *metrics.PrometheusRecorder
	cfg      *config.Config
}

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewPrometheusRecorder("tally")
	return &app{
		store:    store,
		ledger:   ledger.NewWithConfig(store, ledger.Config{Metrics: recorder}),
		agg:      ledger.NewAggregator(store),
		settings: settings.New(store),
		metrics:  recorder,
		cfg:      cfg,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// autoBackup snapshots the ledger before operation when backup.auto is on.
// A failed snapshot is logged and does not stop the operation.
func (a *app) autoBackup(ctx context.Context, operation string) {
	if !a.cfg.AutoBackup {
		return
	}
	backups, err := a.store.Backups()
	if err == nil {
		_, err = backups.Auto(ctx, operation)
	}
	if err != nil {
		slog.Warn("Automatic backup failed", "operation", operation, "error", err)
	}
}

// money renders an amount with the user's currency, honouring privacy mode
// unless reveal is set.
type money struct {
	currency model.Currency
	hide     bool
}

func (a *app) money(ctx context.Context, reveal bool) (money, error) {
	currency, err := a.settings.Currency(ctx)
	if err != nil {
		return money{}, err
	}
	hide := false
	if !reveal {
		if hide, err = a.settings.HideValues(ctx); err != nil {
			return money{}, err
		}
	}
	return money{currency: currency, hide: hide}, nil
}

func (m money) format(amount decimal.Decimal) string {
	return settings.FormatAmount(amount, m.currency, m.hide)
}

// formatTotal renders an aggregate. Privacy mode only withholds itemized
// amounts, so totals are always shown.
func (m money) formatTotal(amount decimal.Decimal) string {
	return settings.FormatAmount(amount, m.currency, false)
}

func (m money) formatDetail(d model.TransactionDetail) string {
	if d.Hidden {
		return settings.HiddenAmount
	}
	if d.Type == model.TransactionTypeExpense {
		return m.format(d.Amount.Neg())
	}
	return m.format(d.Amount)
}

const dateLayout = "2006-01-02"

// parseMoney reads a positive or negative decimal amount such as "12.50".
func parseMoney(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", common.ErrValidation, s)
	}
	return amount, nil
}

// parseDate reads YYYY-MM-DD in local time, or "today".
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" || s == "today" {
		return now, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must look like %s", common.ErrValidation, s, dateLayout)
	}
	return t, nil
}

// filterFlags are the listing filters shared by tx list, report and watch.
type filterFlags struct {
	accounts   []string
	categories []string
	types      []string
	kinds      []string
	period     string
	from       string
	to         string
	limit      int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.accounts, "account", nil, "only transactions touching these account IDs")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "only these category IDs")
	cmd.Flags().StringSliceVar(&f.kinds, "category-type", nil, "only categories of these types (income, expense)")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "only these transaction types (income, expense, transfer)")
	cmd.Flags().StringVar(&f.period, "period", string(model.RangeAll), "today, this-week, this-month, this-year, all or custom")
	cmd.Flags().StringVar(&f.from, "from", "", "start date YYYY-MM-DD (implies --period custom)")
	cmd.Flags().StringVar(&f.to, "to", "", "end date YYYY-MM-DD, inclusive (implies --period custom)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of transactions (0 for all)")
}

func (f *filterFlags) filter(now time.Time) (service.TransactionFilter, error) {
	filter := service.TransactionFilter{
		AccountIDs:  f.accounts,
		CategoryIDs: f.categories,
		Limit:       f.limit,
	}
	for _, k := range f.kinds {
		filter.CategoryTypes = append(filter.CategoryTypes, model.CategoryType(k))
	}
	for _, t := range f.types {
		filter.Types = append(filter.Types, model.TransactionType(t))
	}

	period := model.DateRangeType(f.period)
	if f.from != "" || f.to != "" {
		period = model.RangeCustom
	}
	if period == model.RangeCustom && f.from == "" && f.to == "" {
		return filter, fmt.Errorf("%w: a custom period needs --from or --to", common.ErrValidation)
	}

	if period != model.RangeCustom {
		r, err := period.Resolve(now)
		if err != nil {
			return filter, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		filter.Range = r
		return filter, nil
	}

	if f.from != "" {
		start, err := parseDate(f.from, now)
		if err != nil {
			return filter, err
		}
		filter.Range.Start = start
	}
	if f.to != "" {
		end, err := parseDate(f.to, now)
		if err != nil {
			return filter, err
		}
		// The whole end day is included.
		filter.Range.End = end.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return filter, nil
}

// policyFlags select what happens to transactions of a deleted account or category.
type policyFlags struct {
	cascade    bool
	reassignTo string
}

func (p *policyFlags) register(cmd *cobra.Command, noun string) {
	cmd.Flags().BoolVar(&p.cascade, "cascade", false, "also delete every transaction referencing the "+noun)
	cmd.Flags().StringVar(&p.reassignTo, "reassign-to", "", "move referencing transactions to this "+noun+" ID")
	cmd.MarkFlagsMutuallyExclusive("cascade", "reassign-to")
}

func (p *policyFlags) policy() service.DeletePolicy {
	switch {
	case p.cascade:
		return service.Cascade()
	case p.reassignTo != "":
		return service.Reassign(p.reassignTo)
	default:
		return service.Block()
	}
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}
