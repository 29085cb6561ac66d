// Package storage provides the SQLite persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/common"
)

// Parameter errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = fmt.Errorf("%w: string parameter cannot be empty", common.ErrValidation)
	ErrNilParameter = fmt.Errorf("%w: parameter cannot be nil", common.ErrValidation)
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}
