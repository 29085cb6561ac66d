package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/observe"
	"github.com/Veraticus/tally/internal/service"
)

var _ service.Storage = (*SQLiteStorage)(nil)
var _ service.PreferenceStore = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	notifier *observe.Notifier
	now      func() time.Time
	dbPath   string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // an in-memory database lives on exactly one connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:       db,
		dbPath:   dbPath,
		notifier: observe.NewNotifier(),
		now:      time.Now,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Notifier exposes the change notifier so callers can build their own live queries.
func (s *SQLiteStorage) Notifier() *observe.Notifier {
	return s.notifier
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *SQLiteStorage) SetClock(now func() time.Time) {
	s.now = now
}

// withTx runs fn inside one SQL transaction. Nothing fn wrote is visible
// unless it returns nil and the commit succeeds; only then are the touched
// tables published to observers.
func (s *SQLiteStorage) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error, touched ...observe.Table) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceError(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		return persistenceError(op, err)
	}

	s.notifier.Publish(touched...)
	return nil
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrPersistence, op, err)
}

// classify leaves domain errors alone and maps SQLite constraint failures
// onto the ledger taxonomy. Anything else is a persistence failure.
func classify(op string, err error) error {
	for _, domain := range []error{
		common.ErrValidation,
		common.ErrNotFound,
		common.ErrReferenced,
		common.ErrDanglingReference,
		common.ErrDuplicateEntry,
		common.ErrPersistence,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s: %w", common.ErrDanglingReference, op, err)
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %s: %w", common.ErrDuplicateEntry, op, err)
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s: %w", common.ErrValidation, op, err)
		}
	}

	return persistenceError(op, err)
}

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// AllTables lists every table the store publishes changes for.
var AllTables = []observe.Table{
	observe.TableAccounts,
	observe.TableCategories,
	observe.TableTransactions,
	observe.TablePreferences,
}

// FollowExternalChanges polls for commits made through other connections,
// such as another tally process, and publishes every table when one is seen.
// Writes made through this store publish on their own. It returns when ctx
// is done.
func (s *SQLiteStorage) FollowExternalChanges(ctx context.Context, interval time.Duration) error {
	last, err := s.dataVersion(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			version, err := s.dataVersion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if version != last {
				last = version
				s.notifier.Publish(AllTables...)
			}
		}
	}
}

// dataVersion changes whenever another connection commits.
func (s *SQLiteStorage) dataVersion(ctx context.Context) (int64, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version); err != nil {
		return 0, persistenceError("read data version", err)
	}
	return version, nil
}
