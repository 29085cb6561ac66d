// Package validation rejects malformed accounts, categories and transactions
// before they reach the store.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// Validation errors. Each wraps common.ErrValidation.
var (
	ErrNilParameter          = invalid("parameter cannot be nil")
	ErrInvalidID             = invalid("identifier is required")
	ErrMissingName           = invalid("name is required")
	ErrMissingColor          = invalid("icon background color is required")
	ErrInvalidColorFormat    = invalid("icon background color must be a hex color starting with #")
	ErrInvalidType           = invalid("unknown type")
	ErrInvalidAmount         = invalid("amount must be positive with at most two decimal places")
	ErrAmountTooLarge        = fmt.Errorf("%w: amount exceeds %s", ErrInvalidAmount, model.MaxAmount.String())
	ErrInvalidCreditLimit    = invalid("credit limit must not be negative")
	ErrMissingDate           = invalid("date is required")
	ErrMissingAccount        = invalid("source account is required")
	ErrUnknownAccount        = invalid("account does not exist")
	ErrMissingDestination    = invalid("transfer needs a destination account")
	ErrUnexpectedDestination = invalid("only transfers have a destination account")
	ErrSameAccount           = invalid("transfer source and destination must differ")
	ErrMissingCategory       = invalid("category is required")
	ErrUnknownCategory       = invalid("category does not exist")
	ErrCategoryTypeMismatch  = invalid("category type does not match transaction type")
	ErrMissingPolicy         = invalid("delete policy must be block, cascade or reassign")
	ErrInvalidReassignTarget = invalid("reassign target must be set and differ from the deleted row")
	ErrInvalidDateRange      = invalid("range end is before its start")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, msg)
}

// Lookup resolves the rows a transaction references.
type Lookup interface {
	service.AccountReader
	service.CategoryReader
}

// ValidateCategory checks a category's identifier, name, type and colour.
func ValidateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(category.ID) == "" {
		return ErrInvalidID
	}
	if err := validateColor(category.IconColor); err != nil {
		return err
	}
	if strings.TrimSpace(category.Name) == "" {
		return ErrMissingName
	}
	if !category.Type.IsValid() {
		return fmt.Errorf("%w: category type %q", ErrInvalidType, category.Type)
	}
	return nil
}

// ValidateAccount checks an account's identifier, name, type, colour and money fields.
func ValidateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if strings.TrimSpace(account.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(account.Name) == "" {
		return ErrMissingName
	}
	if !account.Type.IsValid() {
		return fmt.Errorf("%w: account type %q", ErrInvalidType, account.Type)
	}
	if err := validateColor(account.IconColor); err != nil {
		return err
	}
	if !hasCents(account.OpeningBalance) {
		return fmt.Errorf("%w: opening balance %s", ErrInvalidAmount, account.OpeningBalance)
	}
	if tooLarge(account.OpeningBalance) {
		return fmt.Errorf("%w: opening balance %s", ErrAmountTooLarge, account.OpeningBalance)
	}
	if account.CreditLimit != nil {
		if account.CreditLimit.IsNegative() {
			return ErrInvalidCreditLimit
		}
		if !hasCents(*account.CreditLimit) {
			return fmt.Errorf("%w: credit limit %s", ErrInvalidAmount, account.CreditLimit)
		}
		if tooLarge(*account.CreditLimit) {
			return fmt.Errorf("%w: credit limit %s", ErrAmountTooLarge, account.CreditLimit)
		}
	}
	return nil
}

// ValidateTransaction checks a transaction's shape and that every reference
// resolves through lookup.
func ValidateTransaction(ctx context.Context, txn *model.Transaction, lookup Lookup) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.ID) == "" {
		return ErrInvalidID
	}
	if !txn.Amount.IsPositive() || !hasCents(txn.Amount) {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, txn.Amount)
	}
	if tooLarge(txn.Amount) {
		return fmt.Errorf("%w: got %s", ErrAmountTooLarge, txn.Amount)
	}
	if !txn.Type.IsValid() {
		return fmt.Errorf("%w: transaction type %q", ErrInvalidType, txn.Type)
	}
	if txn.Date.IsZero() {
		return ErrMissingDate
	}
	if txn.FromAccountID == "" {
		return ErrMissingAccount
	}

	if txn.Type.IsTransfer() {
		if txn.ToAccountID == "" {
			return ErrMissingDestination
		}
		if txn.ToAccountID == txn.FromAccountID {
			return ErrSameAccount
		}
	} else {
		if txn.ToAccountID != "" {
			return ErrUnexpectedDestination
		}
		if txn.CategoryID == "" {
			return ErrMissingCategory
		}
	}

	if lookup == nil {
		return nil
	}

	if err := resolveAccount(ctx, lookup, txn.FromAccountID); err != nil {
		return err
	}
	if txn.ToAccountID != "" {
		if err := resolveAccount(ctx, lookup, txn.ToAccountID); err != nil {
			return err
		}
	}
	if txn.CategoryID != "" {
		category, err := lookup.GetCategory(ctx, txn.CategoryID)
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, txn.CategoryID)
		}
		if err != nil {
			return err
		}
		if want, ok := txn.Type.CategoryType(); ok && category.Type != want {
			return fmt.Errorf("%w: %s transaction filed under %s category %q",
				ErrCategoryTypeMismatch, txn.Type, category.Type, category.Name)
		}
	}
	return nil
}

// ValidateDeletePolicy checks that a delete of id names an explicit policy.
func ValidateDeletePolicy(policy service.DeletePolicy, id string) error {
	switch policy.Mode {
	case service.DeleteBlock, service.DeleteCascade:
		return nil
	case service.DeleteReassign:
		if policy.ReassignTo == "" || policy.ReassignTo == id {
			return ErrInvalidReassignTarget
		}
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrMissingPolicy, policy.Mode)
	}
}

// ValidateDateRange checks that a closed range does not end before it starts.
func ValidateDateRange(r model.DateRange) error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %v is before start %v", ErrInvalidDateRange, r.End, r.Start)
	}
	return nil
}

func resolveAccount(ctx context.Context, lookup Lookup, id string) error {
	_, err := lookup.GetAccount(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrUnknownAccount, id)
	}
	return err
}

func validateColor(color string) error {
	color = strings.TrimSpace(color)
	if color == "" {
		return ErrMissingColor
	}
	if !strings.HasPrefix(color, "#") {
		return fmt.Errorf("%w: got %q", ErrInvalidColorFormat, color)
	}
	digits := color[1:]
	if len(digits) != 6 && len(digits) != 8 {
		return fmt.Errorf("%w: got %q", ErrInvalidColorFormat, color)
	}
	for _, r := range digits {
		if !isHexDigit(r) {
			return fmt.Errorf("%w: got %q", ErrInvalidColorFormat, color)
		}
	}
	return nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func tooLarge(d decimal.Decimal) bool {
	return d.Abs().GreaterThan(model.MaxAmount)
}

// hasCents reports whether d fits in minor units without rounding.
func hasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
