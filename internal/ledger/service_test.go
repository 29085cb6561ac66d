package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/testutil"
	"github.com/Veraticus/tally/internal/validation"
)

type mutation struct {
	entity    string
	operation string
	success   bool
}

type recordingMetrics struct {
	mutations []mutation
	drift     int
	mu        sync.Mutex
}

func (r *recordingMetrics) RecordMutation(entity, operation string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, mutation{entity, operation, success})
}

func (r *recordingMetrics) RecordDrift(accounts int) { r.drift = accounts }

func (r *recordingMetrics) RecordImport(int, int) {}

func newTestService(t *testing.T) (*Service, *testutil.TestDB, *recordingMetrics) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	db.SeedDefaults()
	rec := &recordingMetrics{}
	ids := 0
	svc := NewWithConfig(db.Storage, Config{
		Metrics: rec,
		NewID: func() string {
			ids++
			return "gen-" + string(rune('a'+ids-1))
		},
	})
	return svc, db, rec
}

func TestService_CreateAccount(t *testing.T) {
	svc, db, rec := newTestService(t)
	ctx := context.Background()

	account := &model.Account{
		Name:           "Savings",
		Type:           model.AccountTypeBank,
		IconColor:      "#00FF00",
		OpeningBalance: testutil.Money("10.00"),
	}
	require.NoError(t, svc.CreateAccount(ctx, account))
	assert.Equal(t, "gen-a", account.ID)
	assert.True(t, db.Balance("gen-a").Equal(testutil.Money("10")))

	err := svc.CreateAccount(ctx, &model.Account{Name: "Bad", Type: model.AccountTypeBank, IconColor: "00FF00"})
	require.ErrorIs(t, err, validation.ErrInvalidColorFormat)

	assert.Equal(t, []mutation{
		{"account", "create", true},
		{"account", "create", false},
	}, rec.mutations)
}

func TestService_CreateCategory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		wantErr error
		name    string
		color   string
	}{
		{name: "valid", color: "#FF0000"},
		{name: "missing hash", color: "FF0000", wantErr: validation.ErrInvalidColorFormat},
		{name: "empty", color: "", wantErr: validation.ErrMissingColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category := &model.Category{Name: "Gifts", Type: model.CategoryTypeExpense, IconColor: tt.color}
			err := svc.CreateCategory(ctx, category)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			got, err := svc.Categories(ctx, model.CategoryTypeExpense)
			require.NoError(t, err)
			assert.Len(t, got, 4)
		})
	}
}

func TestService_AddTransaction(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	txn := &model.Transaction{
		Type:          model.TransactionTypeExpense,
		Amount:        testutil.Money("12.34"),
		FromAccountID: testutil.AccountWallet,
		CategoryID:    testutil.CategoryGroceries,
		Date:          testutil.Day(2024, time.May, 1),
	}
	id, err := svc.AddTransaction(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, "gen-a", id)
	assert.Equal(t, "37.66", db.Balance(testutil.AccountWallet).StringFixed(2))

	found, err := svc.FindTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", found.Category.Name)
	assert.Equal(t, "Wallet", found.FromAccount.Name)
	db.RequireConsistent()
}

func TestService_AddTransaction_Rejected(t *testing.T) {
	tests := []struct {
		txn     model.Transaction
		wantErr error
		name    string
	}{
		{
			name: "transfer to same account",
			txn: model.Transaction{
				Type: model.TransactionTypeTransfer, Amount: testutil.Money("5"),
				FromAccountID: testutil.AccountBank, ToAccountID: testutil.AccountBank,
				Date: testutil.Day(2024, time.May, 1),
			},
			wantErr: validation.ErrSameAccount,
		},
		{
			name: "expense without category",
			txn: model.Transaction{
				Type: model.TransactionTypeExpense, Amount: testutil.Money("5"),
				FromAccountID: testutil.AccountBank, Date: testutil.Day(2024, time.May, 1),
			},
			wantErr: validation.ErrMissingCategory,
		},
		{
			name: "income under expense category",
			txn: model.Transaction{
				Type: model.TransactionTypeIncome, Amount: testutil.Money("5"),
				FromAccountID: testutil.AccountBank, CategoryID: testutil.CategoryRent,
				Date: testutil.Day(2024, time.May, 1),
			},
			wantErr: validation.ErrCategoryTypeMismatch,
		},
		{
			name: "unknown account",
			txn: model.Transaction{
				Type: model.TransactionTypeExpense, Amount: testutil.Money("5"),
				FromAccountID: "ghost", CategoryID: testutil.CategoryRent,
				Date: testutil.Day(2024, time.May, 1),
			},
			wantErr: validation.ErrUnknownAccount,
		},
		{
			name: "fractional cents",
			txn: model.Transaction{
				Type: model.TransactionTypeExpense, Amount: testutil.Money("5.001"),
				FromAccountID: testutil.AccountBank, CategoryID: testutil.CategoryRent,
				Date: testutil.Day(2024, time.May, 1),
			},
			wantErr: validation.ErrInvalidAmount,
		},
		{
			name: "amount too large for minor units",
			txn: model.Transaction{
				Type: model.TransactionTypeIncome, Amount: testutil.Money("200000000000000000"),
				FromAccountID: testutil.AccountBank, CategoryID: testutil.CategorySalary,
				Date: testutil.Day(2024, time.May, 1),
			},
			wantErr: validation.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, _ := newTestService(t)
			txn := tt.txn
			_, err := svc.AddTransaction(context.Background(), &txn)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, "1000.00", db.Balance(testutil.AccountBank).StringFixed(2))
		})
	}
}

func TestService_UpdateAndDeleteTransaction(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	txn := &model.Transaction{
		Type:          model.TransactionTypeExpense,
		Amount:        testutil.Money("100"),
		FromAccountID: testutil.AccountBank,
		CategoryID:    testutil.CategoryRent,
		Date:          testutil.Day(2024, time.May, 1),
	}
	id, err := svc.AddTransaction(ctx, txn)
	require.NoError(t, err)

	txn.Amount = testutil.Money("150")
	require.NoError(t, svc.UpdateTransaction(ctx, txn))
	assert.Equal(t, "850.00", db.Balance(testutil.AccountBank).StringFixed(2))

	txn.CategoryID = testutil.CategorySalary
	require.ErrorIs(t, svc.UpdateTransaction(ctx, txn), validation.ErrCategoryTypeMismatch)
	assert.Equal(t, "850.00", db.Balance(testutil.AccountBank).StringFixed(2))

	require.NoError(t, svc.DeleteTransaction(ctx, id))
	assert.Equal(t, "1000.00", db.Balance(testutil.AccountBank).StringFixed(2))

	_, err = svc.FindTransaction(ctx, id)
	require.ErrorIs(t, err, common.ErrNotFound)
	require.ErrorIs(t, svc.DeleteTransaction(ctx, ""), common.ErrValidation)
	db.RequireConsistent()
}

func TestService_DeleteRequiresPolicy(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	db.Expense("20", testutil.AccountWallet, testutil.CategoryDining, testutil.Day(2024, time.May, 2))

	require.ErrorIs(t, svc.DeleteCategory(ctx, testutil.CategoryDining, service.DeletePolicy{}), validation.ErrMissingPolicy)
	require.ErrorIs(t, svc.DeleteCategory(ctx, testutil.CategoryDining, service.Reassign(testutil.CategoryDining)), validation.ErrInvalidReassignTarget)
	require.ErrorIs(t, svc.DeleteCategory(ctx, testutil.CategoryDining, service.Block()), common.ErrReferenced)
	require.NoError(t, svc.DeleteCategory(ctx, testutil.CategoryDining, service.Cascade()))
	assert.Equal(t, "50.00", db.Balance(testutil.AccountWallet).StringFixed(2))

	require.ErrorIs(t, svc.DeleteAccount(ctx, testutil.AccountCard, service.DeletePolicy{}), validation.ErrMissingPolicy)
	require.NoError(t, svc.DeleteAccount(ctx, testutil.AccountCard, service.Block()))
}

func TestService_VerifyAndRepair(t *testing.T) {
	svc, db, rec := newTestService(t)
	ctx := context.Background()
	db.Income("500", testutil.AccountBank, testutil.CategorySalary, testutil.Day(2024, time.May, 3))

	drifts, err := svc.VerifyBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
	assert.Equal(t, 0, rec.drift)

	repaired, err := svc.RepairBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, repaired)
}
