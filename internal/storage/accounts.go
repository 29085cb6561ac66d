package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/observe"
	"github.com/Veraticus/tally/internal/service"
)

const accountColumns = `id, name, type, icon_name, icon_color, opening_balance, balance, credit_limit, created_at, updated_at`

// CreateAccount inserts a new account. Its balance starts at the opening balance.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.ID, "account.ID"); err != nil {
		return err
	}

	now := s.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Balance = account.OpeningBalance

	opening, err := toMinor(account.OpeningBalance)
	if err != nil {
		return err
	}
	if opening < -maxBalanceMinor || opening > maxBalanceMinor {
		return fmt.Errorf("%w: account %q", ErrBalanceOutOfRange, account.ID)
	}
	creditLimit, err := creditLimitValue(account)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, "create account", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (`+accountColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			account.ID, account.Name, string(account.Type), account.IconName, account.IconColor,
			opening, opening, creditLimit,
			account.CreatedAt.UnixMilli(), account.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	}, observe.TableAccounts)
	if err != nil {
		return err
	}

	slog.Debug("created account", "id", account.ID, "name", account.Name)
	return nil
}

// GetAccount returns an account by identifier.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	account, err := getAccountTx(ctx, s.db, id)
	if err != nil {
		return nil, classify("get account", err)
	}
	return account, nil
}

// GetAccounts returns all accounts, newest first.
func (s *SQLiteStorage) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, persistenceError("list accounts", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, persistenceError("list accounts", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list accounts", err)
	}

	slog.Debug("retrieved accounts", "count", len(accounts))
	return accounts, nil
}

// UpdateAccount rewrites an account's descriptive fields. A changed opening
// balance shifts the stored balance by the same amount; Balance on the
// argument is ignored and refreshed from the store.
func (s *SQLiteStorage) UpdateAccount(ctx context.Context, account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}

	opening, err := toMinor(account.OpeningBalance)
	if err != nil {
		return err
	}
	creditLimit, err := creditLimitValue(account)
	if err != nil {
		return err
	}

	now := s.now()
	return s.withTx(ctx, "update account", func(tx *sql.Tx) error {
		current, err := getAccountTx(ctx, tx, account.ID)
		if err != nil {
			return err
		}
		previous, err := toMinor(current.OpeningBalance)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE accounts
			SET name = ?, type = ?, icon_name = ?, icon_color = ?, credit_limit = ?,
				opening_balance = ?, updated_at = ?
			WHERE id = ?`,
			account.Name, string(account.Type), account.IconName, account.IconColor, creditLimit,
			opening, now.UnixMilli(),
			account.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		if delta := opening - previous; delta != 0 {
			if err := shiftBalance(ctx, tx, account.ID, delta, now); err != nil {
				return err
			}
		}

		updated, err := getAccountTx(ctx, tx, account.ID)
		if err != nil {
			return err
		}
		*account = *updated
		return nil
	}, observe.TableAccounts)
}

// DeleteAccount removes an account. policy decides what happens to the
// transactions that reference it:
//   - block refuses with ErrReferenced while any exist;
//   - cascade deletes them, reversing their effect on any other account;
//   - reassign moves them to policy.ReassignTo, re-applying their balance
//     effects there. A transfer that would end up with the same source and
//     destination aborts the whole delete.
func (s *SQLiteStorage) DeleteAccount(ctx context.Context, id string, policy service.DeletePolicy) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	now := s.now()
	err := s.withTx(ctx, "delete account", func(tx *sql.Tx) error {
		if _, err := getAccountTx(ctx, tx, id); err != nil {
			return err
		}

		refs, err := queryRawTransactions(ctx, tx,
			`WHERE from_account_id = ? OR to_account_id = ?`, id, id)
		if err != nil {
			return err
		}

		switch policy.Mode {
		case service.DeleteBlock:
			if len(refs) > 0 {
				return fmt.Errorf("%w: account %q has %d transactions", common.ErrReferenced, id, len(refs))
			}
		case service.DeleteCascade:
			for _, txn := range refs {
				if err := removeTransactionTx(ctx, tx, txn, now); err != nil {
					return err
				}
			}
		case service.DeleteReassign:
			if _, err := getAccountTx(ctx, tx, policy.ReassignTo); err != nil {
				return fmt.Errorf("reassign target: %w", err)
			}
			for _, old := range refs {
				moved := old
				if moved.FromAccountID == id {
					moved.FromAccountID = policy.ReassignTo
				}
				if moved.ToAccountID == id {
					moved.ToAccountID = policy.ReassignTo
				}
				if moved.Type.IsTransfer() && moved.FromAccountID == moved.ToAccountID {
					return fmt.Errorf("%w: transfer %s would move money from %s to itself",
						common.ErrValidation, old.ID, policy.ReassignTo)
				}
				if err := rewriteTransactionTx(ctx, tx, old, moved, now); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: unknown delete policy %q", common.ErrValidation, policy.Mode)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	}, observe.TableAccounts, observe.TableTransactions)
	if err != nil {
		return err
	}

	slog.Info("deleted account", "id", id, "policy", string(policy.Mode))
	return nil
}

// CountAccountReferences returns how many transactions draw from or pay into the account.
func (s *SQLiteStorage) CountAccountReferences(ctx context.Context, id string) (int, error) {
	var count int
	err := s.read(ctx, "count account references", func(q queryable) error {
		return q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE from_account_id = ? OR to_account_id = ?`,
			id, id).Scan(&count)
	})
	return count, err
}

func getAccountTx(ctx context.Context, q queryable, id string) (*model.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("account", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

func scanAccount(row scanner) (*model.Account, error) {
	var (
		account                      model.Account
		accountType                  string
		opening, balance             int64
		creditLimit                  sql.NullInt64
		createdMillis, updatedMillis int64
	)
	if err := row.Scan(
		&account.ID, &account.Name, &accountType, &account.IconName, &account.IconColor,
		&opening, &balance, &creditLimit, &createdMillis, &updatedMillis,
	); err != nil {
		return nil, err
	}

	account.Type = model.AccountType(accountType)
	account.OpeningBalance = fromMinor(opening)
	account.Balance = fromMinor(balance)
	if creditLimit.Valid {
		limit := fromMinor(creditLimit.Int64)
		account.CreditLimit = &limit
	}
	account.CreatedAt = time.UnixMilli(createdMillis)
	account.UpdatedAt = time.UnixMilli(updatedMillis)
	return &account, nil
}

func creditLimitValue(account *model.Account) (any, error) {
	if account.CreditLimit == nil {
		return nil, nil
	}
	return toMinor(*account.CreditLimit)
}
