package validation

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
)

type fakeLookup struct {
	accounts   map[string]*model.Account
	categories map[string]*model.Category
}

func (f fakeLookup) GetAccount(_ context.Context, id string) (*model.Account, error) {
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, common.NotFoundError("account", id)
}

func (f fakeLookup) GetCategory(_ context.Context, id string) (*model.Category, error) {
	if c, ok := f.categories[id]; ok {
		return c, nil
	}
	return nil, common.NotFoundError("category", id)
}

func newLookup() fakeLookup {
	return fakeLookup{
		accounts: map[string]*model.Account{
			"wallet": {ID: "wallet", Name: "Wallet", Type: model.AccountTypeCash},
			"bank":   {ID: "bank", Name: "Bank", Type: model.AccountTypeBank},
		},
		categories: map[string]*model.Category{
			"food":   {ID: "food", Name: "Food", Type: model.CategoryTypeExpense},
			"salary": {ID: "salary", Name: "Salary", Type: model.CategoryTypeIncome},
		},
	}
}

func TestValidateCategory(t *testing.T) {
	valid := func() *model.Category {
		return &model.Category{ID: "food", Name: "Food", Type: model.CategoryTypeExpense, IconColor: "#FF0000"}
	}

	tests := []struct {
		mutate  func(*model.Category)
		wantErr error
		name    string
	}{
		{name: "valid", mutate: func(*model.Category) {}},
		{name: "eight digit color", mutate: func(c *model.Category) { c.IconColor = "#80FF0000" }},
		{name: "blank id", mutate: func(c *model.Category) { c.ID = "  " }, wantErr: ErrInvalidID},
		{name: "missing color", mutate: func(c *model.Category) { c.IconColor = "" }, wantErr: ErrMissingColor},
		{name: "color without hash", mutate: func(c *model.Category) { c.IconColor = "FF0000" }, wantErr: ErrInvalidColorFormat},
		{name: "color with bad digits", mutate: func(c *model.Category) { c.IconColor = "#GG0000" }, wantErr: ErrInvalidColorFormat},
		{name: "short color", mutate: func(c *model.Category) { c.IconColor = "#F00" }, wantErr: ErrInvalidColorFormat},
		{name: "blank name", mutate: func(c *model.Category) { c.Name = "" }, wantErr: ErrMissingName},
		{name: "unknown type", mutate: func(c *model.Category) { c.Type = "transfer" }, wantErr: ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := valid()
			tt.mutate(cat)
			err := ValidateCategory(cat)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	assert.ErrorIs(t, ValidateCategory(nil), ErrNilParameter)
}

func TestValidateAccount(t *testing.T) {
	limit := decimal.RequireFromString("500")
	negative := decimal.RequireFromString("-1")
	hugeLimit := model.MaxAmount.Add(decimal.RequireFromString("0.01"))

	tests := []struct {
		account *model.Account
		wantErr error
		name    string
	}{
		{
			name:    "valid credit account",
			account: &model.Account{ID: "cc", Name: "Card", Type: model.AccountTypeCredit, IconColor: "#000000", CreditLimit: &limit},
		},
		{
			name:    "negative opening balance is fine",
			account: &model.Account{ID: "cc", Name: "Card", Type: model.AccountTypeCredit, IconColor: "#000000", OpeningBalance: decimal.RequireFromString("-20.50")},
		},
		{
			name:    "unknown type",
			account: &model.Account{ID: "x", Name: "X", Type: "stocks", IconColor: "#000000"},
			wantErr: ErrInvalidType,
		},
		{
			name:    "negative credit limit",
			account: &model.Account{ID: "cc", Name: "Card", Type: model.AccountTypeCredit, IconColor: "#000000", CreditLimit: &negative},
			wantErr: ErrInvalidCreditLimit,
		},
		{
			name:    "sub-cent opening balance",
			account: &model.Account{ID: "a", Name: "A", Type: model.AccountTypeCash, IconColor: "#000000", OpeningBalance: decimal.RequireFromString("1.005")},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "opening balance at the bound",
			account: &model.Account{ID: "a", Name: "A", Type: model.AccountTypeCash, IconColor: "#000000", OpeningBalance: model.MaxAmount.Neg()},
		},
		{
			name:    "opening balance beyond the bound",
			account: &model.Account{ID: "a", Name: "A", Type: model.AccountTypeCash, IconColor: "#000000", OpeningBalance: decimal.RequireFromString("-200000000000000000")},
			wantErr: ErrAmountTooLarge,
		},
		{
			name:    "credit limit beyond the bound",
			account: &model.Account{ID: "cc", Name: "Card", Type: model.AccountTypeCredit, IconColor: "#000000", CreditLimit: &hugeLimit},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "missing color",
			account: &model.Account{ID: "a", Name: "A", Type: model.AccountTypeCash},
			wantErr: ErrMissingColor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccount(tt.account)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateTransaction(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	expense := func() *model.Transaction {
		return &model.Transaction{
			ID:            "t1",
			Amount:        decimal.RequireFromString("12.50"),
			Type:          model.TransactionTypeExpense,
			FromAccountID: "wallet",
			CategoryID:    "food",
			Date:          date,
		}
	}
	transfer := func() *model.Transaction {
		return &model.Transaction{
			ID:            "t2",
			Amount:        decimal.RequireFromString("100"),
			Type:          model.TransactionTypeTransfer,
			FromAccountID: "bank",
			ToAccountID:   "wallet",
			Date:          date,
		}
	}

	tests := []struct {
		txn     func() *model.Transaction
		wantErr error
		name    string
	}{
		{name: "valid expense", txn: expense},
		{name: "valid transfer", txn: transfer},
		{
			name: "transfer with category",
			txn: func() *model.Transaction {
				tx := transfer()
				tx.CategoryID = "food"
				return tx
			},
		},
		{
			name: "zero amount",
			txn: func() *model.Transaction {
				tx := expense()
				tx.Amount = decimal.Zero
				return tx
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "negative amount",
			txn: func() *model.Transaction {
				tx := expense()
				tx.Amount = decimal.RequireFromString("-3")
				return tx
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "fractional cents",
			txn: func() *model.Transaction {
				tx := expense()
				tx.Amount = decimal.RequireFromString("0.001")
				return tx
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "amount at the bound",
			txn: func() *model.Transaction {
				tx := expense()
				tx.Amount = model.MaxAmount
				return tx
			},
		},
		{
			name: "amount overflowing minor units",
			txn: func() *model.Transaction {
				tx := expense()
				tx.Amount = decimal.RequireFromString("200000000000000000")
				return tx
			},
			wantErr: ErrAmountTooLarge,
		},
		{
			name: "transfer to itself",
			txn: func() *model.Transaction {
				tx := transfer()
				tx.ToAccountID = tx.FromAccountID
				return tx
			},
			wantErr: ErrSameAccount,
		},
		{
			name: "transfer without destination",
			txn: func() *model.Transaction {
				tx := transfer()
				tx.ToAccountID = ""
				return tx
			},
			wantErr: ErrMissingDestination,
		},
		{
			name: "expense with destination",
			txn: func() *model.Transaction {
				tx := expense()
				tx.ToAccountID = "bank"
				return tx
			},
			wantErr: ErrUnexpectedDestination,
		},
		{
			name: "expense without category",
			txn: func() *model.Transaction {
				tx := expense()
				tx.CategoryID = ""
				return tx
			},
			wantErr: ErrMissingCategory,
		},
		{
			name: "missing source account",
			txn: func() *model.Transaction {
				tx := expense()
				tx.FromAccountID = ""
				return tx
			},
			wantErr: ErrMissingAccount,
		},
		{
			name: "unknown source account",
			txn: func() *model.Transaction {
				tx := expense()
				tx.FromAccountID = "ghost"
				return tx
			},
			wantErr: ErrUnknownAccount,
		},
		{
			name: "unknown destination account",
			txn: func() *model.Transaction {
				tx := transfer()
				tx.ToAccountID = "ghost"
				return tx
			},
			wantErr: ErrUnknownAccount,
		},
		{
			name: "unknown category",
			txn: func() *model.Transaction {
				tx := expense()
				tx.CategoryID = "ghost"
				return tx
			},
			wantErr: ErrUnknownCategory,
		},
		{
			name: "expense filed under income category",
			txn: func() *model.Transaction {
				tx := expense()
				tx.CategoryID = "salary"
				return tx
			},
			wantErr: ErrCategoryTypeMismatch,
		},
		{
			name: "missing date",
			txn: func() *model.Transaction {
				tx := expense()
				tx.Date = time.Time{}
				return tx
			},
			wantErr: ErrMissingDate,
		},
	}

	lookup := newLookup()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransaction(ctx, tt.txn(), lookup)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestValidateDeletePolicy(t *testing.T) {
	assert.NoError(t, ValidateDeletePolicy(service.Block(), "a"))
	assert.NoError(t, ValidateDeletePolicy(service.Cascade(), "a"))
	assert.NoError(t, ValidateDeletePolicy(service.Reassign("b"), "a"))

	assert.ErrorIs(t, ValidateDeletePolicy(service.DeletePolicy{}, "a"), ErrMissingPolicy)
	assert.ErrorIs(t, ValidateDeletePolicy(service.Reassign("a"), "a"), ErrInvalidReassignTarget)
	assert.ErrorIs(t, ValidateDeletePolicy(service.Reassign(""), "a"), ErrInvalidReassignTarget)
}

func TestValidateDateRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ValidateDateRange(model.DateRange{}))
	require.NoError(t, ValidateDateRange(model.DateRange{Start: start, End: start}))
	assert.ErrorIs(t, ValidateDateRange(model.DateRange{Start: start, End: start.Add(-time.Second)}), ErrInvalidDateRange)
}
