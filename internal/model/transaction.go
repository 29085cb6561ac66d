package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType determines how a transaction moves money.
type TransactionType string

// Transaction type constants.
const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// IsValid reports whether the transaction type is known.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// IsTransfer reports whether the type moves money between two accounts.
func (t TransactionType) IsTransfer() bool {
	return t == TransactionTypeTransfer
}

// CategoryType returns the category type an income or expense transaction
// must be filed under. Transfers have none.
func (t TransactionType) CategoryType() (CategoryType, bool) {
	switch t {
	case TransactionTypeIncome:
		return CategoryTypeIncome, true
	case TransactionTypeExpense:
		return CategoryTypeExpense, true
	}
	return "", false
}

// Transaction is a single ledger entry. Amount is always positive; the sign
// a transaction contributes to an account comes from Type and the account's
// role (source or destination).
type Transaction struct {
	Date          time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Amount        decimal.Decimal
	ID            string
	Type          TransactionType
	FromAccountID string
	ToAccountID   string // transfers only
	CategoryID    string // empty for transfers
	Notes         string
}

// BalanceDeltas returns the signed change the transaction applies to each
// account it references.
func BalanceDeltas(t Transaction) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal, 2)
	switch t.Type {
	case TransactionTypeIncome:
		deltas[t.FromAccountID] = t.Amount
	case TransactionTypeExpense:
		deltas[t.FromAccountID] = t.Amount.Neg()
	case TransactionTypeTransfer:
		deltas[t.FromAccountID] = t.Amount.Neg()
		if t.ToAccountID != "" {
			deltas[t.ToAccountID] = deltas[t.ToAccountID].Add(t.Amount)
		}
	}
	return deltas
}

// SignedAmountFor returns what the transaction contributes to the given set of
// accounts. An empty set means the whole ledger, in which case transfers net
// to zero.
func (t Transaction) SignedAmountFor(accounts map[string]bool) decimal.Decimal {
	if t.Type != TransactionTypeTransfer {
		if len(accounts) > 0 && !accounts[t.FromAccountID] {
			return decimal.Zero
		}
		if t.Type == TransactionTypeIncome {
			return t.Amount
		}
		return t.Amount.Neg()
	}

	total := decimal.Zero
	for id, delta := range BalanceDeltas(t) {
		if accounts[id] {
			total = total.Add(delta)
		}
	}
	return total
}

// TransactionDetail is a transaction with its category and accounts resolved.
type TransactionDetail struct {
	Category    *Category // nil only for uncategorized transfers
	FromAccount *Account
	ToAccount   *Account
	Transaction
	Hidden bool // amount withheld by privacy mode
}
