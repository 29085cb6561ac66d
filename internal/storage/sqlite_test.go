package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/observe"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// Helper function to create test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	store.SetClock(func() time.Time { return testNow })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

func seedAccount(t *testing.T, s *SQLiteStorage, id string, opening string) *model.Account {
	t.Helper()
	account := &model.Account{
		ID:             id,
		Name:           "Account " + id,
		Type:           model.AccountTypeBank,
		IconColor:      "#336699",
		OpeningBalance: dec(opening),
	}
	require.NoError(t, s.CreateAccount(context.Background(), account))
	return account
}

func seedCategory(t *testing.T, s *SQLiteStorage, id string, categoryType model.CategoryType) *model.Category {
	t.Helper()
	category := &model.Category{
		ID:        id,
		Name:      "Category " + id,
		Type:      categoryType,
		IconColor: "#FF0000",
	}
	require.NoError(t, s.CreateCategory(context.Background(), category))
	return category
}

func balanceOf(t *testing.T, s *SQLiteStorage, id string) decimal.Decimal {
	t.Helper()
	account, err := s.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func requireConsistent(t *testing.T, s *SQLiteStorage) {
	t.Helper()
	drifts, err := s.VerifyBalances(context.Background())
	require.NoError(t, err)
	require.Empty(t, drifts)
}

var txnCounter int

func insertTxn(t *testing.T, s *SQLiteStorage, txnType model.TransactionType, amount, from, to, category string, date time.Time) string {
	t.Helper()
	txnCounter++
	txn := &model.Transaction{
		ID:            fmt.Sprintf("txn-%d", txnCounter),
		Type:          txnType,
		Amount:        dec(amount),
		FromAccountID: from,
		ToAccountID:   to,
		CategoryID:    category,
		Date:          date,
	}
	id, err := s.InsertTransaction(context.Background(), txn)
	require.NoError(t, err)
	return id
}

func TestNewSQLiteStorage(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")
		store, err := NewSQLiteStorage(dbPath)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		assert.Equal(t, dbPath, store.Path())
	})

	t.Run("in memory", func(t *testing.T) {
		store, err := NewSQLiteStorage(":memory:")
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		require.NoError(t, store.Migrate(context.Background()))

		version, err := store.SchemaVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ExpectedSchemaVersion, version)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := NewSQLiteStorage("  ")
		require.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	var tables int
	require.NoError(t, store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('accounts', 'categories', 'transactions', 'preferences')
	`).Scan(&tables))
	assert.Equal(t, 4, tables)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
		name string
	}{
		{
			name: "foreign key",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey},
			want: common.ErrDanglingReference,
		},
		{
			name: "primary key",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey},
			want: common.ErrDuplicateEntry,
		},
		{
			name: "unique",
			err:  fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}),
			want: common.ErrDuplicateEntry,
		},
		{
			name: "check",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck},
			want: common.ErrValidation,
		},
		{
			name: "domain error passes through",
			err:  common.NotFoundError("account", "a"),
			want: common.ErrNotFound,
		},
		{
			name: "anything else",
			err:  errors.New("disk on fire"),
			want: common.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tt.err), tt.want)
		})
	}
}

func TestWithTx_PublishesOnlyAfterCommit(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	signal, release := store.Notifier().Listen(observe.TableAccounts)
	defer release()

	err := store.withTx(ctx, "failing", func(_ *sql.Tx) error {
		return errors.New("boom")
	}, observe.TableAccounts)
	require.ErrorIs(t, err, common.ErrPersistence)

	select {
	case <-signal:
		t.Fatal("rolled back transaction must not notify")
	default:
	}

	seedAccount(t, store, "a", "0")
	select {
	case <-signal:
	default:
		t.Fatal("committed write must notify")
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestFollowExternalChanges(t *testing.T) {
	store := createTestStorage(t)
	other, err := NewSQLiteStorage(store.Path())
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.FollowExternalChanges(ctx, 10*time.Millisecond) }()

	signal, release := store.Notifier().Listen(observe.TableTransactions)
	defer release()

	// Let the follower read its starting version before the other process writes.
	time.Sleep(30 * time.Millisecond)
	seedAccount(t, other, "elsewhere", "5")

	select {
	case <-signal:
	case <-time.After(5 * time.Second):
		t.Fatal("commit from another connection was not published")
	}

	cancel()
	require.NoError(t, <-done)
}
