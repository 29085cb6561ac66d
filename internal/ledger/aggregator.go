package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/observe"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/validation"
)

// Options adjusts how aggregated results are presented.
type Options struct {
	// HideValues withholds itemized amounts. Totals are still reported.
	HideValues bool
}

// CategoryGroup is the share of a breakdown filed under one category.
type CategoryGroup struct {
	Category *model.Category // nil groups uncategorized transfers
	Total    decimal.Decimal
	Percent  decimal.Decimal // of the breakdown's absolute total, two places
	Items    []model.TransactionDetail
	Count    int
}

// Name returns the category name or a placeholder for uncategorized rows.
func (g CategoryGroup) Name() string {
	if g.Category == nil {
		return "Uncategorized"
	}
	return g.Category.Name
}

// CategoryBreakdown groups a filtered ledger by category.
type CategoryBreakdown struct {
	Groups        []CategoryGroup
	Total         decimal.Decimal // signed
	AbsoluteTotal decimal.Decimal // sum of absolute group totals
	Count         int
}

// Aggregator answers read queries over the ledger: filtered listings,
// signed totals and per-category breakdowns.
type Aggregator struct {
	storage service.Storage
}

// NewAggregator creates an aggregator reading from storage.
func NewAggregator(storage service.Storage) *Aggregator {
	return &Aggregator{storage: storage}
}

// Transactions returns the matching transactions newest first.
func (a *Aggregator) Transactions(ctx context.Context, filter service.TransactionFilter, opts Options) ([]model.TransactionDetail, error) {
	if err := validation.ValidateDateRange(filter.Range); err != nil {
		return nil, err
	}
	details, err := a.storage.QueryTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return present(details, opts), nil
}

// TotalAmount returns the signed sum of the matching transactions. Transfers
// only count for the sides that fall inside filter.AccountIDs, so with no
// account filter they net to zero.
func (a *Aggregator) TotalAmount(ctx context.Context, filter service.TransactionFilter) (decimal.Decimal, error) {
	if err := validation.ValidateDateRange(filter.Range); err != nil {
		return decimal.Zero, err
	}
	details, err := a.storage.QueryTransactions(ctx, filter)
	if err != nil {
		return decimal.Zero, err
	}
	return total(details, filter.AccountSet()), nil
}

// GroupByCategory buckets the matching transactions by category, largest
// absolute total first.
func (a *Aggregator) GroupByCategory(ctx context.Context, filter service.TransactionFilter, opts Options) (*CategoryBreakdown, error) {
	if err := validation.ValidateDateRange(filter.Range); err != nil {
		return nil, err
	}
	details, err := a.storage.QueryTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return breakdown(details, filter.AccountSet(), opts), nil
}

// WatchTransactions is a live Transactions.
func (a *Aggregator) WatchTransactions(ctx context.Context, filter service.TransactionFilter, opts Options) *observe.Subscription[[]model.TransactionDetail] {
	return observe.Map(a.storage.WatchTransactions(ctx, filter), func(details []model.TransactionDetail) ([]model.TransactionDetail, error) {
		return present(details, opts), nil
	})
}

// WatchTotal is a live TotalAmount.
func (a *Aggregator) WatchTotal(ctx context.Context, filter service.TransactionFilter) *observe.Subscription[decimal.Decimal] {
	accounts := filter.AccountSet()
	return observe.Map(a.storage.WatchTransactions(ctx, filter), func(details []model.TransactionDetail) (decimal.Decimal, error) {
		return total(details, accounts), nil
	})
}

// WatchBreakdown is a live GroupByCategory.
func (a *Aggregator) WatchBreakdown(ctx context.Context, filter service.TransactionFilter, opts Options) *observe.Subscription[*CategoryBreakdown] {
	accounts := filter.AccountSet()
	return observe.Map(a.storage.WatchTransactions(ctx, filter), func(details []model.TransactionDetail) (*CategoryBreakdown, error) {
		return breakdown(details, accounts, opts), nil
	})
}

func total(details []model.TransactionDetail, accounts map[string]bool) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range details {
		sum = sum.Add(d.SignedAmountFor(accounts))
	}
	return sum
}

// present applies privacy mode to an itemized listing.
func present(details []model.TransactionDetail, opts Options) []model.TransactionDetail {
	if !opts.HideValues {
		return details
	}
	masked := make([]model.TransactionDetail, len(details))
	for i, d := range details {
		d.Amount = decimal.Zero
		d.Hidden = true
		masked[i] = d
	}
	return masked
}

var hundred = decimal.NewFromInt(100)

func breakdown(details []model.TransactionDetail, accounts map[string]bool, opts Options) *CategoryBreakdown {
	out := &CategoryBreakdown{
		Total:         decimal.Zero,
		AbsoluteTotal: decimal.Zero,
		Count:         len(details),
	}

	index := make(map[string]int)
	for _, d := range details {
		i, ok := index[d.CategoryID]
		if !ok {
			i = len(out.Groups)
			index[d.CategoryID] = i
			out.Groups = append(out.Groups, CategoryGroup{Category: d.Category, Total: decimal.Zero})
		}
		group := &out.Groups[i]
		amount := d.SignedAmountFor(accounts)
		group.Total = group.Total.Add(amount)
		group.Count++
		group.Items = append(group.Items, d)
		out.Total = out.Total.Add(amount)
	}

	for _, g := range out.Groups {
		out.AbsoluteTotal = out.AbsoluteTotal.Add(g.Total.Abs())
	}
	for i := range out.Groups {
		g := &out.Groups[i]
		g.Percent = decimal.Zero
		if out.AbsoluteTotal.IsPositive() {
			g.Percent = g.Total.Abs().Mul(hundred).DivRound(out.AbsoluteTotal, 2)
		}
		if opts.HideValues {
			g.Items = nil
		}
	}

	sort.SliceStable(out.Groups, func(i, j int) bool {
		a, b := out.Groups[i], out.Groups[j]
		if c := a.Total.Abs().Cmp(b.Total.Abs()); c != 0 {
			return c > 0
		}
		return strings.ToLower(a.Name()) < strings.ToLower(b.Name())
	})
	return out
}

// String renders a one-line summary, mostly for logs.
func (b *CategoryBreakdown) String() string {
	return fmt.Sprintf("%d groups, %d transactions, total %s", len(b.Groups), b.Count, b.Total.StringFixed(2))
}
