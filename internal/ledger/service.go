// Package ledger is the entry point callers use to change and read the
// ledger: it validates input, assigns identifiers, and delegates to the store.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/tally/internal/metrics"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/validation"
)

// Service applies ledger mutations after validating them.
type Service struct {
	storage service.Storage
	metrics metrics.Recorder
	now     func() time.Time
	newID   func() string
}

// Config holds the replaceable collaborators of a Service.
type Config struct {
	Metrics metrics.Recorder
	Now     func() time.Time
	NewID   func() string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Metrics: metrics.NopRecorder{},
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

// New creates a ledger service over the given store.
func New(storage service.Storage) *Service {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates a ledger service with custom configuration. Unset
// fields fall back to DefaultConfig.
func NewWithConfig(storage service.Storage, config Config) *Service {
	defaults := DefaultConfig()
	if config.Metrics == nil {
		config.Metrics = defaults.Metrics
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if config.NewID == nil {
		config.NewID = defaults.NewID
	}
	return &Service{
		storage: storage,
		metrics: config.Metrics,
		now:     config.Now,
		newID:   config.NewID,
	}
}

// Storage returns the underlying store for read paths that need it directly.
func (s *Service) Storage() service.Storage {
	return s.storage
}

func (s *Service) record(entity, operation string, start time.Time, err error) {
	s.metrics.RecordMutation(entity, operation, err == nil, s.now().Sub(start))
	if err != nil {
		slog.Debug("ledger mutation failed", "entity", entity, "operation", operation, "error", err)
	}
}

// CreateAccount validates and stores a new account. An empty ID is replaced
// with a fresh UUID.
func (s *Service) CreateAccount(ctx context.Context, account *model.Account) (err error) {
	start := s.now()
	defer func() { s.record("account", "create", start, err) }()

	if account != nil && strings.TrimSpace(account.ID) == "" {
		account.ID = s.newID()
	}
	if err := validation.ValidateAccount(account); err != nil {
		return err
	}
	if err := s.storage.CreateAccount(ctx, account); err != nil {
		return err
	}

	slog.Info("created account", "id", account.ID, "name", account.Name, "type", account.Type)
	return nil
}

// UpdateAccount validates and stores changes to an existing account.
func (s *Service) UpdateAccount(ctx context.Context, account *model.Account) (err error) {
	start := s.now()
	defer func() { s.record("account", "update", start, err) }()

	if err := validation.ValidateAccount(account); err != nil {
		return err
	}
	return s.storage.UpdateAccount(ctx, account)
}

// DeleteAccount removes an account under an explicit policy.
func (s *Service) DeleteAccount(ctx context.Context, id string, policy service.DeletePolicy) (err error) {
	start := s.now()
	defer func() { s.record("account", "delete", start, err) }()

	if strings.TrimSpace(id) == "" {
		return validation.ErrInvalidID
	}
	if err := validation.ValidateDeletePolicy(policy, id); err != nil {
		return err
	}
	return s.storage.DeleteAccount(ctx, id, policy)
}

// CreateCategory validates and stores a new category. An empty ID is
// replaced with a fresh UUID.
func (s *Service) CreateCategory(ctx context.Context, category *model.Category) (err error) {
	start := s.now()
	defer func() { s.record("category", "create", start, err) }()

	if category != nil && strings.TrimSpace(category.ID) == "" {
		category.ID = s.newID()
	}
	if err := validation.ValidateCategory(category); err != nil {
		return err
	}
	if err := s.storage.CreateCategory(ctx, category); err != nil {
		return err
	}

	slog.Info("created category", "id", category.ID, "name", category.Name, "type", category.Type)
	return nil
}

// UpdateCategory validates and stores changes to an existing category.
func (s *Service) UpdateCategory(ctx context.Context, category *model.Category) (err error) {
	start := s.now()
	defer func() { s.record("category", "update", start, err) }()

	if err := validation.ValidateCategory(category); err != nil {
		return err
	}
	return s.storage.UpdateCategory(ctx, category)
}

// DeleteCategory removes a category under an explicit policy.
func (s *Service) DeleteCategory(ctx context.Context, id string, policy service.DeletePolicy) (err error) {
	start := s.now()
	defer func() { s.record("category", "delete", start, err) }()

	if strings.TrimSpace(id) == "" {
		return validation.ErrInvalidID
	}
	if err := validation.ValidateDeletePolicy(policy, id); err != nil {
		return err
	}
	return s.storage.DeleteCategory(ctx, id, policy)
}

// AddTransaction validates a transaction, resolves its references and stores
// it together with its balance effects. It returns the new identifier.
func (s *Service) AddTransaction(ctx context.Context, txn *model.Transaction) (id string, err error) {
	start := s.now()
	defer func() { s.record("transaction", "insert", start, err) }()

	if txn != nil && strings.TrimSpace(txn.ID) == "" {
		txn.ID = s.newID()
	}
	if err := validation.ValidateTransaction(ctx, txn, s.storage); err != nil {
		return "", err
	}

	id, err = s.storage.InsertTransaction(ctx, txn)
	if err != nil {
		return "", err
	}

	slog.Info("added transaction",
		"id", id,
		"type", txn.Type,
		"amount", txn.Amount.StringFixed(2),
		"date", txn.Date.Format(time.DateOnly))
	return id, nil
}

// UpdateTransaction validates and stores a changed transaction. Balances move
// by the difference between the stored and the new version.
func (s *Service) UpdateTransaction(ctx context.Context, txn *model.Transaction) (err error) {
	start := s.now()
	defer func() { s.record("transaction", "update", start, err) }()

	if err := validation.ValidateTransaction(ctx, txn, s.storage); err != nil {
		return err
	}
	return s.storage.UpdateTransaction(ctx, txn)
}

// DeleteTransaction removes a transaction and reverses its balance effects.
func (s *Service) DeleteTransaction(ctx context.Context, id string) (err error) {
	start := s.now()
	defer func() { s.record("transaction", "delete", start, err) }()

	if strings.TrimSpace(id) == "" {
		return validation.ErrInvalidID
	}
	return s.storage.DeleteTransaction(ctx, id)
}

// FindTransaction returns one transaction with its references resolved.
func (s *Service) FindTransaction(ctx context.Context, id string) (*model.TransactionDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validation.ErrInvalidID
	}
	return s.storage.GetTransaction(ctx, id)
}

// Accounts lists every account.
func (s *Service) Accounts(ctx context.Context) ([]model.Account, error) {
	return s.storage.GetAccounts(ctx)
}

// Categories lists categories, optionally restricted to the given types.
func (s *Service) Categories(ctx context.Context, types ...model.CategoryType) ([]model.Category, error) {
	return s.storage.GetCategories(ctx, types...)
}

// VerifyBalances reports accounts whose stored balance has drifted from the
// balance implied by their transactions.
func (s *Service) VerifyBalances(ctx context.Context) ([]model.BalanceDrift, error) {
	drifts, err := s.storage.VerifyBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify balances: %w", err)
	}
	s.metrics.RecordDrift(len(drifts))
	return drifts, nil
}

// RepairBalances rewrites drifting balances and returns what it corrected.
func (s *Service) RepairBalances(ctx context.Context) ([]model.BalanceDrift, error) {
	drifts, err := s.storage.RepairBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to repair balances: %w", err)
	}
	s.metrics.RecordDrift(0)
	if len(drifts) > 0 {
		slog.Warn("repaired drifting balances", "accounts", len(drifts))
	}
	return drifts, nil
}
