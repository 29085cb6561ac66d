// Package testutil provides a migrated ledger database and seed helpers for
// tests outside the storage package.
package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/storage"
)

// TestDB wraps an in-memory ledger store bound to a test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	seq     int
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedDefaults()
//	svc := ledger.New(db.Storage)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()), "failed to run migrations")

	return &TestDB{Storage: store, t: t}
}

// Account stores an account with the given opening balance.
func (db *TestDB) Account(id, name string, accountType model.AccountType, opening string) *model.Account {
	db.t.Helper()
	account := &model.Account{
		ID:             id,
		Name:           name,
		Type:           accountType,
		IconColor:      "#607D8B",
		OpeningBalance: Money(opening),
	}
	require.NoError(db.t, db.Storage.CreateAccount(context.Background(), account), "failed to seed account %q", id)
	return account
}

// Category stores a category.
func (db *TestDB) Category(id, name string, categoryType model.CategoryType) *model.Category {
	db.t.Helper()
	category := &model.Category{
		ID:        id,
		Name:      name,
		Type:      categoryType,
		IconColor: "#4CAF50",
	}
	require.NoError(db.t, db.Storage.CreateCategory(context.Background(), category), "failed to seed category %q", id)
	return category
}

// Income stores an income transaction and returns its ID.
func (db *TestDB) Income(amount, account, category string, date time.Time) string {
	db.t.Helper()
	return db.insert(model.Transaction{
		Type: model.TransactionTypeIncome, Amount: Money(amount),
		FromAccountID: account, CategoryID: category, Date: date,
	})
}

// Expense stores an expense transaction and returns its ID.
func (db *TestDB) Expense(amount, account, category string, date time.Time) string {
	db.t.Helper()
	return db.insert(model.Transaction{
		Type: model.TransactionTypeExpense, Amount: Money(amount),
		FromAccountID: account, CategoryID: category, Date: date,
	})
}

// Transfer stores a transfer and returns its ID.
func (db *TestDB) Transfer(amount, from, to string, date time.Time) string {
	db.t.Helper()
	return db.insert(model.Transaction{
		Type: model.TransactionTypeTransfer, Amount: Money(amount),
		FromAccountID: from, ToAccountID: to, Date: date,
	})
}

func (db *TestDB) insert(txn model.Transaction) string {
	db.t.Helper()
	db.seq++
	txn.ID = "seed-" + strconv.Itoa(db.seq)
	id, err := db.Storage.InsertTransaction(context.Background(), &txn)
	require.NoError(db.t, err, "failed to seed transaction")
	return id
}

// Balance returns the stored balance of an account.
func (db *TestDB) Balance(id string) decimal.Decimal {
	db.t.Helper()
	account, err := db.Storage.GetAccount(context.Background(), id)
	require.NoError(db.t, err)
	return account.Balance
}

// RequireConsistent fails the test if any stored balance has drifted.
func (db *TestDB) RequireConsistent() {
	db.t.Helper()
	drifts, err := db.Storage.VerifyBalances(context.Background())
	require.NoError(db.t, err)
	require.Empty(db.t, drifts, "balances drifted")
}
