package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/testutil"
)

func seededAggregator(t *testing.T) (*Aggregator, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	db.SeedDefaults()

	db.Income("3000", testutil.AccountBank, testutil.CategorySalary, testutil.Day(2024, time.May, 1))
	db.Expense("1200", testutil.AccountBank, testutil.CategoryRent, testutil.Day(2024, time.May, 2))
	db.Expense("80.50", testutil.AccountCard, testutil.CategoryGroceries, testutil.Day(2024, time.May, 3))
	db.Expense("19.50", testutil.AccountWallet, testutil.CategoryGroceries, testutil.Day(2024, time.May, 4))
	db.Transfer("200", testutil.AccountBank, testutil.AccountWallet, testutil.Day(2024, time.May, 5))
	db.Expense("45", testutil.AccountWallet, testutil.CategoryDining, testutil.Day(2024, time.June, 1))

	return NewAggregator(db.Storage), db
}

func mayRange() model.DateRange {
	return model.DateRange{
		Start: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.May, 31, 23, 59, 59, 0, time.UTC),
	}
}

func TestAggregator_Transactions(t *testing.T) {
	agg, _ := seededAggregator(t)
	ctx := context.Background()

	details, err := agg.Transactions(ctx, service.TransactionFilter{Range: mayRange()}, Options{})
	require.NoError(t, err)
	require.Len(t, details, 5)
	for i := 1; i < len(details); i++ {
		assert.False(t, details[i].Date.After(details[i-1].Date), "dates must not increase")
	}
	assert.Equal(t, model.TransactionTypeTransfer, details[0].Type)
	assert.Equal(t, "Wallet", details[0].ToAccount.Name)

	hidden, err := agg.Transactions(ctx, service.TransactionFilter{Range: mayRange()}, Options{HideValues: true})
	require.NoError(t, err)
	for _, d := range hidden {
		assert.True(t, d.Hidden)
		assert.True(t, d.Amount.IsZero())
	}

	_, err = agg.Transactions(ctx, service.TransactionFilter{Range: model.DateRange{
		Start: testutil.Day(2024, time.June, 1),
		End:   testutil.Day(2024, time.May, 1),
	}}, Options{})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestAggregator_TotalAmount(t *testing.T) {
	agg, _ := seededAggregator(t)
	ctx := context.Background()

	tests := []struct {
		want   string
		name   string
		filter service.TransactionFilter
	}{
		{
			name:   "whole ledger nets transfers out",
			filter: service.TransactionFilter{},
			want:   "1655.00",
		},
		{
			name:   "month",
			filter: service.TransactionFilter{Range: mayRange()},
			want:   "1700.00",
		},
		{
			name:   "wallet counts incoming transfer",
			filter: service.TransactionFilter{AccountIDs: []string{testutil.AccountWallet}},
			want:   "135.50",
		},
		{
			name:   "bank counts outgoing transfer",
			filter: service.TransactionFilter{AccountIDs: []string{testutil.AccountBank}},
			want:   "1600.00",
		},
		{
			name:   "transfer between selected accounts nets out",
			filter: service.TransactionFilter{AccountIDs: []string{testutil.AccountBank, testutil.AccountWallet}},
			want:   "1735.50",
		},
		{
			name:   "expenses only",
			filter: service.TransactionFilter{CategoryTypes: []model.CategoryType{model.CategoryTypeExpense}},
			want:   "-1345.00",
		},
		{
			name:   "nothing matches",
			filter: service.TransactionFilter{CategoryIDs: []string{"none"}},
			want:   "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := agg.TotalAmount(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestAggregator_GroupByCategory(t *testing.T) {
	agg, _ := seededAggregator(t)
	ctx := context.Background()
	filter := service.TransactionFilter{
		Range:         mayRange(),
		CategoryTypes: []model.CategoryType{model.CategoryTypeExpense},
	}

	b, err := agg.GroupByCategory(ctx, filter, Options{})
	require.NoError(t, err)
	require.Len(t, b.Groups, 2)
	assert.Equal(t, 3, b.Count)
	assert.Equal(t, "-1300.00", b.Total.StringFixed(2))
	assert.Equal(t, "1300.00", b.AbsoluteTotal.StringFixed(2))

	rent, groceries := b.Groups[0], b.Groups[1]
	assert.Equal(t, "Rent", rent.Name())
	assert.Equal(t, "-1200.00", rent.Total.StringFixed(2))
	assert.Equal(t, "92.31", rent.Percent.StringFixed(2))
	assert.Equal(t, 1, rent.Count)
	assert.Equal(t, "Groceries", groceries.Name())
	assert.Equal(t, "-100.00", groceries.Total.StringFixed(2))
	assert.Equal(t, "7.69", groceries.Percent.StringFixed(2))
	assert.Len(t, groceries.Items, 2)

	private, err := agg.GroupByCategory(ctx, filter, Options{HideValues: true})
	require.NoError(t, err)
	assert.True(t, b.Total.Equal(private.Total), "privacy keeps totals")
	for i, g := range private.Groups {
		assert.Nil(t, g.Items)
		assert.True(t, b.Groups[i].Total.Equal(g.Total))
		assert.Equal(t, b.Groups[i].Count, g.Count)
	}
}

func TestAggregator_GroupByCategory_Uncategorized(t *testing.T) {
	agg, _ := seededAggregator(t)
	b, err := agg.GroupByCategory(context.Background(), service.TransactionFilter{
		Types:      []model.TransactionType{model.TransactionTypeTransfer},
		AccountIDs: []string{testutil.AccountWallet},
	}, Options{})
	require.NoError(t, err)
	require.Len(t, b.Groups, 1)
	assert.Nil(t, b.Groups[0].Category)
	assert.Equal(t, "Uncategorized", b.Groups[0].Name())
	assert.Equal(t, "200.00", b.Groups[0].Total.StringFixed(2))
	assert.Equal(t, "100.00", b.Groups[0].Percent.StringFixed(2))
}

func TestAggregator_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	agg := NewAggregator(db.Storage)

	b, err := agg.GroupByCategory(context.Background(), service.TransactionFilter{}, Options{})
	require.NoError(t, err)
	assert.Empty(t, b.Groups)
	assert.True(t, b.Total.IsZero())
}

func TestAggregator_WatchTotal(t *testing.T) {
	agg, db := seededAggregator(t)
	ctx := context.Background()

	sub := agg.WatchTotal(ctx, service.TransactionFilter{AccountIDs: []string{testutil.AccountWallet}})
	defer sub.Cancel()

	next := func() decimal.Decimal {
		t.Helper()
		select {
		case r := <-sub.Updates():
			require.NoError(t, r.Err)
			return r.Value
		case <-time.After(5 * time.Second):
			t.Fatal("no update")
			return decimal.Zero
		}
	}

	assert.Equal(t, "135.50", next().StringFixed(2))
	db.Income("10", testutil.AccountWallet, testutil.CategorySalary, testutil.Day(2024, time.June, 2))
	assert.Equal(t, "145.50", next().StringFixed(2))
}

func TestAggregator_WatchBreakdown_HidesValues(t *testing.T) {
	agg, _ := seededAggregator(t)
	sub := agg.WatchBreakdown(context.Background(), service.TransactionFilter{Range: mayRange()}, Options{HideValues: true})
	defer sub.Cancel()

	r := <-sub.Updates()
	require.NoError(t, r.Err)
	assert.Equal(t, "1700.00", r.Value.Total.StringFixed(2))
	for _, g := range r.Value.Groups {
		assert.Nil(t, g.Items)
	}
}
