package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/observe"
)

// Range errors. Both wrap common.ErrValidation.
var (
	ErrAmountOutOfRange  = fmt.Errorf("%w: amount does not fit in minor units", common.ErrValidation)
	ErrBalanceOutOfRange = fmt.Errorf("%w: balance would exceed %s", common.ErrValidation, model.MaxBalance.String())
)

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)

	maxBalanceMinor = model.MaxBalance.Shift(2).IntPart()
)

// Money is stored as INTEGER minor units so balance arithmetic in SQL is exact.
func toMinor(d decimal.Decimal) (int64, error) {
	minor := d.Shift(2).Round(0)
	if minor.LessThan(minInt64) || minor.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, d)
	}
	return minor.IntPart(), nil
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// deltaSet is a per-account balance change in minor units.
type deltaSet map[string]int64

func deltasOf(txn model.Transaction) (deltaSet, error) {
	d := make(deltaSet, 2)
	for id, amount := range model.BalanceDeltas(txn) {
		minor, err := toMinor(amount)
		if err != nil {
			return nil, err
		}
		d[id] += minor
	}
	return d, nil
}

// minus returns d - other, dropping accounts whose net change is zero.
func (d deltaSet) minus(other deltaSet) deltaSet {
	out := make(deltaSet, len(d)+len(other))
	for id, v := range d {
		out[id] += v
	}
	for id, v := range other {
		out[id] -= v
	}
	for id, v := range out {
		if v == 0 {
			delete(out, id)
		}
	}
	return out
}

func (d deltaSet) negate() deltaSet {
	return deltaSet{}.minus(d)
}

// applyDeltas increments each account's stored balance in place. It never
// recomputes a balance, so the cost is independent of ledger size. Accounts
// are updated in sorted order to keep the statement sequence deterministic.
// A delta that would push a balance past MaxBalance fails with
// ErrBalanceOutOfRange.
func applyDeltas(ctx context.Context, q queryable, deltas deltaSet, now time.Time) error {
	ids := make([]string, 0, len(deltas))
	for id, v := range deltas {
		if v != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := shiftBalance(ctx, q, id, deltas[id], now); err != nil {
			return err
		}
	}
	return nil
}

// shiftBalance adds delta minor units to one account's balance, refusing
// results outside [-MaxBalance, MaxBalance].
func shiftBalance(ctx context.Context, q queryable, id string, delta int64, now time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE accounts SET balance = balance + ?, updated_at = ?
		WHERE id = ? AND balance + ? BETWEEN ? AND ?`,
		delta, now.UnixMilli(), id, delta, -maxBalanceMinor, maxBalanceMinor)
	if err != nil {
		return fmt.Errorf("failed to adjust balance of account %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to adjust balance of account %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up account %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: account %q", common.ErrDanglingReference, id)
	}
	return fmt.Errorf("%w: account %q", ErrBalanceOutOfRange, id)
}

// expectedBalancesQuery recomputes every balance from scratch.
const expectedBalancesQuery = `
	SELECT a.id, a.balance,
		a.opening_balance
		+ COALESCE((SELECT SUM(CASE t.type WHEN 'income' THEN t.amount ELSE -t.amount END)
			FROM transactions t WHERE t.from_account_id = a.id), 0)
		+ COALESCE((SELECT SUM(t.amount)
			FROM transactions t WHERE t.to_account_id = a.id AND t.type = 'transfer'), 0)
	FROM accounts a
	ORDER BY a.id`

// VerifyBalances recomputes every account balance from its opening balance
// and transactions and reports the accounts whose stored balance differs.
func (s *SQLiteStorage) VerifyBalances(ctx context.Context) ([]model.BalanceDrift, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	drifts, err := balanceDrifts(ctx, s.db)
	if err != nil {
		return nil, persistenceError("verify balances", err)
	}
	return drifts, nil
}

// RepairBalances rewrites every drifting balance with its recomputed value
// and returns what it corrected. This is the crash-recovery fallback; normal
// writes keep balances exact incrementally.
func (s *SQLiteStorage) RepairBalances(ctx context.Context) ([]model.BalanceDrift, error) {
	var drifts []model.BalanceDrift
	err := s.withTx(ctx, "repair balances", func(tx *sql.Tx) error {
		var err error
		drifts, err = balanceDrifts(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now().UnixMilli()
		for _, d := range drifts {
			expected, err := toMinor(d.Expected)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
				expected, now, d.AccountID); err != nil {
				return fmt.Errorf("failed to repair account %s: %w", d.AccountID, err)
			}
		}
		return nil
	}, observe.TableAccounts)
	if err != nil {
		return nil, err
	}

	for _, d := range drifts {
		slog.Warn("repaired account balance",
			"account", d.AccountID,
			"stored", d.Stored.StringFixed(2),
			"expected", d.Expected.StringFixed(2))
	}
	return drifts, nil
}

func balanceDrifts(ctx context.Context, q queryable) ([]model.BalanceDrift, error) {
	rows, err := q.QueryContext(ctx, expectedBalancesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drifts []model.BalanceDrift
	for rows.Next() {
		var id string
		var stored, expected int64
		if err := rows.Scan(&id, &stored, &expected); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		if stored != expected {
			drifts = append(drifts, model.BalanceDrift{
				AccountID: id,
				Stored:    fromMinor(stored),
				Expected:  fromMinor(expected),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balances: %w", err)
	}
	return drifts, nil
}
