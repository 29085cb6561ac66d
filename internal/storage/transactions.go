package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/observe"
	"github.com/Veraticus/tally/internal/service"
)

const transactionColumns = `id, type, amount, from_account_id, to_account_id, category_id, date, notes, created_at, updated_at`

// ledgerOrder is newest first. Rows sharing a date keep reverse insertion order.
const ledgerOrder = ` ORDER BY date DESC, seq DESC`

// InsertTransaction stores a transaction and applies its balance deltas in
// the same SQL transaction. It returns the stored identifier.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (string, error) {
	if txn == nil {
		return "", fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := validateString(txn.ID, "transaction.ID"); err != nil {
		return "", err
	}

	now := s.now()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	amount, err := toMinor(txn.Amount)
	if err != nil {
		return "", err
	}
	deltas, err := deltasOf(*txn)
	if err != nil {
		return "", err
	}

	err = s.withTx(ctx, "insert transaction", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, string(txn.Type), amount, txn.FromAccountID,
			nullString(txn.ToAccountID), nullString(txn.CategoryID),
			txn.Date.UnixMilli(), txn.Notes,
			txn.CreatedAt.UnixMilli(), txn.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return applyDeltas(ctx, tx, deltas, now)
	}, observe.TableTransactions, observe.TableAccounts)
	if err != nil {
		return "", err
	}

	slog.Debug("inserted transaction",
		"id", txn.ID,
		"type", txn.Type,
		"amount", txn.Amount.StringFixed(2))
	return txn.ID, nil
}

// UpdateTransaction replaces a stored transaction. Balances move by the
// difference between the new and old deltas, so a changed amount, type or
// account is reflected exactly once. CreatedAt is preserved.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := validateString(txn.ID, "transaction.ID"); err != nil {
		return err
	}

	now := s.now()
	err := s.withTx(ctx, "update transaction", func(tx *sql.Tx) error {
		old, err := getRawTransactionTx(ctx, tx, txn.ID)
		if err != nil {
			return err
		}
		txn.CreatedAt = old.CreatedAt
		return rewriteTransactionTx(ctx, tx, *old, *txn, now)
	}, observe.TableTransactions, observe.TableAccounts)
	if err != nil {
		return err
	}

	txn.UpdatedAt = time.UnixMilli(now.UnixMilli())
	slog.Debug("updated transaction", "id", txn.ID)
	return nil
}

// DeleteTransaction removes a transaction and reverses its balance deltas.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	now := s.now()
	err := s.withTx(ctx, "delete transaction", func(tx *sql.Tx) error {
		old, err := getRawTransactionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return removeTransactionTx(ctx, tx, *old, now)
	}, observe.TableTransactions, observe.TableAccounts)
	if err != nil {
		return err
	}

	slog.Debug("deleted transaction", "id", id)
	return nil
}

// GetTransaction returns a transaction with its accounts and category resolved.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.TransactionDetail, error) {
	var detail *model.TransactionDetail
	err := s.read(ctx, "get transaction", func(q queryable) error {
		txn, err := getRawTransactionTx(ctx, q, id)
		if err != nil {
			return err
		}
		details, err := resolveDetails(ctx, q, []model.Transaction{*txn})
		if err != nil {
			return err
		}
		detail = &details[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// QueryTransactions returns the transactions matching filter, newest first,
// with their accounts and category resolved. A row whose account or category
// no longer exists fails the whole query with ErrDanglingReference.
func (s *SQLiteStorage) QueryTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.TransactionDetail, error) {
	where, args := filterClause(filter)

	var details []model.TransactionDetail
	err := s.read(ctx, "query transactions", func(q queryable) error {
		txns, err := selectTransactions(ctx, q, where, filter.Limit, args)
		if err != nil {
			return err
		}
		details, err = resolveDetails(ctx, q, txns)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("queried transactions", "count", len(details))
	return details, nil
}

// WatchTransactions is a live QueryTransactions. It re-runs whenever
// transactions, accounts or categories change.
func (s *SQLiteStorage) WatchTransactions(ctx context.Context, filter service.TransactionFilter) *observe.Subscription[[]model.TransactionDetail] {
	return observe.Watch(ctx, s.notifier, func(ctx context.Context) ([]model.TransactionDetail, error) {
		return s.QueryTransactions(ctx, filter)
	}, observe.TableTransactions, observe.TableAccounts, observe.TableCategories)
}

// WatchAccounts is a live GetAccounts.
func (s *SQLiteStorage) WatchAccounts(ctx context.Context) *observe.Subscription[[]model.Account] {
	return observe.Watch(ctx, s.notifier, s.GetAccounts, observe.TableAccounts)
}

// WatchCategories is a live GetCategories.
func (s *SQLiteStorage) WatchCategories(ctx context.Context) *observe.Subscription[[]model.Category] {
	return observe.Watch(ctx, s.notifier, func(ctx context.Context) ([]model.Category, error) {
		return s.GetCategories(ctx)
	}, observe.TableCategories)
}

// read runs fn against a single snapshot of the database.
func (s *SQLiteStorage) read(ctx context.Context, op string, fn func(q queryable) error) error {
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
	return nil
}

func filterClause(filter service.TransactionFilter) (string, []any) {
	var conds []string
	var args []any

	if n := len(filter.AccountIDs); n > 0 {
		conds = append(conds, `(from_account_id IN (`+placeholders(n)+`) OR to_account_id IN (`+placeholders(n)+`))`)
		for range 2 {
			for _, id := range filter.AccountIDs {
				args = append(args, id)
			}
		}
	}
	if n := len(filter.CategoryIDs); n > 0 {
		conds = append(conds, `category_id IN (`+placeholders(n)+`)`)
		for _, id := range filter.CategoryIDs {
			args = append(args, id)
		}
	}
	if n := len(filter.CategoryTypes); n > 0 {
		conds = append(conds, `category_id IN (SELECT id FROM categories WHERE type IN (`+placeholders(n)+`))`)
		for _, t := range filter.CategoryTypes {
			args = append(args, string(t))
		}
	}
	if n := len(filter.Types); n > 0 {
		conds = append(conds, `type IN (`+placeholders(n)+`)`)
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if r := filter.Range; !r.IsOpen() {
		if !r.Start.IsZero() {
			conds = append(conds, `date >= ?`)
			args = append(args, r.Start.UnixMilli())
		}
		if !r.End.IsZero() {
			conds = append(conds, `date <= ?`)
			args = append(args, r.End.UnixMilli())
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return `WHERE ` + strings.Join(conds, " AND "), args
}

// queryRawTransactions returns stored rows matching where, in ledger order,
// without resolving references.
func queryRawTransactions(ctx context.Context, q queryable, where string, args ...any) ([]model.Transaction, error) {
	return selectTransactions(ctx, q, where, 0, args)
}

func selectTransactions(ctx context.Context, q queryable, where string, limit int, args []any) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ` + where + ledgerOrder
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

func getRawTransactionTx(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// resolveDetails attaches accounts and categories. Both tables are small, so
// they are loaded whole rather than joined per row.
func resolveDetails(ctx context.Context, q queryable, txns []model.Transaction) ([]model.TransactionDetail, error) {
	if len(txns) == 0 {
		return []model.TransactionDetail{}, nil
	}

	accounts, err := accountIndex(ctx, q)
	if err != nil {
		return nil, err
	}
	categories, err := categoryIndex(ctx, q)
	if err != nil {
		return nil, err
	}

	details := make([]model.TransactionDetail, 0, len(txns))
	for _, txn := range txns {
		detail := model.TransactionDetail{Transaction: txn}

		from, ok := accounts[txn.FromAccountID]
		if !ok {
			return nil, fmt.Errorf("%w: transaction %s references account %q",
				common.ErrDanglingReference, txn.ID, txn.FromAccountID)
		}
		detail.FromAccount = from

		if txn.ToAccountID != "" {
			to, ok := accounts[txn.ToAccountID]
			if !ok {
				return nil, fmt.Errorf("%w: transaction %s references account %q",
					common.ErrDanglingReference, txn.ID, txn.ToAccountID)
			}
			detail.ToAccount = to
		}

		if txn.CategoryID != "" {
			category, ok := categories[txn.CategoryID]
			if !ok {
				return nil, fmt.Errorf("%w: transaction %s references category %q",
					common.ErrDanglingReference, txn.ID, txn.CategoryID)
			}
			detail.Category = category
		}

		details = append(details, detail)
	}
	return details, nil
}

func accountIndex(ctx context.Context, q queryable) (map[string]*model.Account, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	index := make(map[string]*model.Account)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		index[account.ID] = account
	}
	return index, rows.Err()
}

func categoryIndex(ctx context.Context, q queryable) (map[string]*model.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	index := make(map[string]*model.Category)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		index[category.ID] = category
	}
	return index, rows.Err()
}

// removeTransactionTx reverses a stored transaction's deltas and deletes it.
func removeTransactionTx(ctx context.Context, tx *sql.Tx, txn model.Transaction, now time.Time) error {
	deltas, err := deltasOf(txn)
	if err != nil {
		return err
	}
	if err := applyDeltas(ctx, tx, deltas.negate(), now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, txn.ID); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", txn.ID, err)
	}
	return nil
}

// rewriteTransactionTx stores updated in place of old and moves balances by
// the difference of their deltas.
func rewriteTransactionTx(ctx context.Context, tx *sql.Tx, old, updated model.Transaction, now time.Time) error {
	amount, err := toMinor(updated.Amount)
	if err != nil {
		return err
	}
	oldDeltas, err := deltasOf(old)
	if err != nil {
		return err
	}
	newDeltas, err := deltasOf(updated)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transactions
		SET type = ?, amount = ?, from_account_id = ?, to_account_id = ?, category_id = ?,
			date = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		string(updated.Type), amount, updated.FromAccountID,
		nullString(updated.ToAccountID), nullString(updated.CategoryID),
		updated.Date.UnixMilli(), updated.Notes, now.UnixMilli(),
		old.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", old.ID, err)
	}
	return applyDeltas(ctx, tx, newDeltas.minus(oldDeltas), now)
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		txn                          model.Transaction
		txnType                      string
		amount, dateMillis           int64
		toAccount, category          sql.NullString
		createdMillis, updatedMillis int64
	)
	if err := row.Scan(
		&txn.ID, &txnType, &amount, &txn.FromAccountID, &toAccount, &category,
		&dateMillis, &txn.Notes, &createdMillis, &updatedMillis,
	); err != nil {
		return nil, err
	}

	txn.Type = model.TransactionType(txnType)
	txn.Amount = fromMinor(amount)
	txn.ToAccountID = toAccount.String
	txn.CategoryID = category.String
	txn.Date = time.UnixMilli(dateMillis)
	txn.CreatedAt = time.UnixMilli(createdMillis)
	txn.UpdatedAt = time.UnixMilli(updatedMillis)
	return &txn, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
