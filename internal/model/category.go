package model

import "time"

// CategoryType indicates whether a category is for income or expense.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
)

// IsValid reports whether the category type is income or expense.
func (t CategoryType) IsValid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Category groups transactions for reporting.
type Category struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Name      string
	Type      CategoryType
	IconName  string
	IconColor string
}
