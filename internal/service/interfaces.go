// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/observe"
)

// TransactionFilter selects ledger rows. Empty sets match everything; a
// non-empty set matches rows whose value is in the set. AccountIDs match a
// transaction's source or destination account. CategoryTypes excludes
// uncategorized transfers.
type TransactionFilter struct {
	AccountIDs    []string
	CategoryIDs   []string
	CategoryTypes []model.CategoryType
	Types         []model.TransactionType
	Range         model.DateRange
	Limit         int
}

// AccountSet returns AccountIDs as a lookup set.
func (f TransactionFilter) AccountSet() map[string]bool {
	set := make(map[string]bool, len(f.AccountIDs))
	for _, id := range f.AccountIDs {
		set[id] = true
	}
	return set
}

// DeleteMode says what happens to transactions referencing a deleted
// account or category.
type DeleteMode string

// Delete modes. The zero value is not a valid mode.
const (
	// DeleteBlock refuses the delete while anything references the row.
	DeleteBlock DeleteMode = "block"
	// DeleteCascade removes referencing transactions, reversing their balance effects.
	DeleteCascade DeleteMode = "cascade"
	// DeleteReassign moves references to DeletePolicy.ReassignTo.
	DeleteReassign DeleteMode = "reassign"
)

// DeletePolicy is the required parameter of account and category deletes.
type DeletePolicy struct {
	Mode       DeleteMode
	ReassignTo string
}

// Block returns a policy refusing deletes of referenced rows.
func Block() DeletePolicy { return DeletePolicy{Mode: DeleteBlock} }

// Cascade returns a policy deleting referencing transactions.
func Cascade() DeletePolicy { return DeletePolicy{Mode: DeleteCascade} }

// Reassign returns a policy moving references to target.
func Reassign(target string) DeletePolicy {
	return DeletePolicy{Mode: DeleteReassign, ReassignTo: target}
}

// AccountReader looks up accounts by identifier.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// CategoryReader looks up categories by identifier.
type CategoryReader interface {
	GetCategory(ctx context.Context, id string) (*model.Category, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	AccountReader
	CategoryReader

	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccounts(ctx context.Context) ([]model.Account, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
	DeleteAccount(ctx context.Context, id string, policy DeletePolicy) error
	CountAccountReferences(ctx context.Context, id string) (int, error)

	// Category operations
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategories(ctx context.Context, types ...model.CategoryType) ([]model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id string, policy DeletePolicy) error
	CountCategoryReferences(ctx context.Context, id string) (int, error)

	// Transaction operations
	InsertTransaction(ctx context.Context, txn *model.Transaction) (string, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	GetTransaction(ctx context.Context, id string) (*model.TransactionDetail, error)
	QueryTransactions(ctx context.Context, filter TransactionFilter) ([]model.TransactionDetail, error)

	// Live queries
	WatchTransactions(ctx context.Context, filter TransactionFilter) *observe.Subscription[[]model.TransactionDetail]
	WatchAccounts(ctx context.Context) *observe.Subscription[[]model.Account]
	WatchCategories(ctx context.Context) *observe.Subscription[[]model.Category]

	// Balance maintenance
	VerifyBalances(ctx context.Context) ([]model.BalanceDrift, error)
	RepairBalances(ctx context.Context) ([]model.BalanceDrift, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// PreferenceStore is a string key/value store for user settings.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	WatchPreference(ctx context.Context, key string) *observe.Subscription[string]
}
