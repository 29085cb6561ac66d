package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/model"
)

// Identifiers seeded by SeedDefaults.
const (
	AccountWallet = "wallet"
	AccountBank   = "bank"
	AccountCard   = "card"

	CategorySalary    = "salary"
	CategoryGroceries = "groceries"
	CategoryRent      = "rent"
	CategoryDining    = "dining"
)

// SeedDefaults stores a small ledger skeleton: three accounts and a few
// income and expense categories.
func (db *TestDB) SeedDefaults() {
	db.t.Helper()
	db.Account(AccountWallet, "Wallet", model.AccountTypeCash, "50.00")
	db.Account(AccountBank, "Checking", model.AccountTypeBank, "1000.00")
	db.Account(AccountCard, "Visa", model.AccountTypeCredit, "0")

	db.Category(CategorySalary, "Salary", model.CategoryTypeIncome)
	db.Category(CategoryGroceries, "Groceries", model.CategoryTypeExpense)
	db.Category(CategoryRent, "Rent", model.CategoryTypeExpense)
	db.Category(CategoryDining, "Dining", model.CategoryTypeExpense)
}

// Money parses a decimal literal and panics on malformed input.
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Day returns noon UTC on the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}
