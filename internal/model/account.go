package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType tags what kind of money an account holds.
type AccountType string

// Account type constants.
const (
	AccountTypeCash   AccountType = "cash"
	AccountTypeBank   AccountType = "bank"
	AccountTypeCredit AccountType = "credit"
)

// AccountTypes lists every supported account type in display order.
var AccountTypes = []AccountType{AccountTypeCash, AccountTypeBank, AccountTypeCredit}

// IsValid reports whether the account type is one we know about.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeCash, AccountTypeBank, AccountTypeCredit:
		return true
	}
	return false
}

// Money bounds. Any single amount is at most MaxAmount in magnitude and a
// balance never leaves [-MaxBalance, MaxBalance], so sums of minor units
// always fit in an int64.
var (
	MaxAmount  = decimal.New(1, 13)
	MaxBalance = decimal.New(1, 15)
)

// Account is a pool of money that transactions draw from or pay into.
//
// Balance is maintained by the store: it always equals OpeningBalance plus the
// signed deltas of every transaction referencing the account. Callers never
// write it directly.
type Account struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreditLimit    *decimal.Decimal
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal
	ID             string
	Name           string
	Type           AccountType
	IconName       string
	IconColor      string
}

// AvailableCredit returns how much can still be spent on a credit account.
// Accounts without a credit limit report false.
func (a *Account) AvailableCredit() (decimal.Decimal, bool) {
	if a.Type != AccountTypeCredit || a.CreditLimit == nil {
		return decimal.Zero, false
	}
	return a.CreditLimit.Add(a.Balance), true
}

// BalanceDrift reports an account whose stored balance disagrees with the
// balance recomputed from its opening balance and transactions.
type BalanceDrift struct {
	Stored    decimal.Decimal
	Expected  decimal.Decimal
	AccountID string
}

// Difference is the correction that would bring Stored back to Expected.
func (d BalanceDrift) Difference() decimal.Decimal {
	return d.Expected.Sub(d.Stored)
}
