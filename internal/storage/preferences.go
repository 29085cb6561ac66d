package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/tally/internal/observe"
)

// GetPreference returns the stored value for key and whether it was set.
func (s *SQLiteStorage) GetPreference(ctx context.Context, key string) (string, bool, error) {
	if err := validateContext(ctx); err != nil {
		return "", false, err
	}
	if err := validateString(key, "key"); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, persistenceError("get preference", err)
	}
	return value, true, nil
}

// SetPreference stores value under key, replacing any previous value.
func (s *SQLiteStorage) SetPreference(ctx context.Context, key, value string) error {
	if err := validateString(key, "key"); err != nil {
		return err
	}

	now := s.now()
	return s.withTx(ctx, "set preference", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO preferences (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to set preference %s: %w", key, err)
		}
		return nil
	}, observe.TablePreferences)
}

// WatchPreference emits the value of key now and after every preference
// change. An unset key emits the empty string.
func (s *SQLiteStorage) WatchPreference(ctx context.Context, key string) *observe.Subscription[string] {
	return observe.Watch(ctx, s.notifier, func(ctx context.Context) (string, error) {
		value, _, err := s.GetPreference(ctx, key)
		return value, err
	}, observe.TablePreferences)
}
