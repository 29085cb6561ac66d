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

const categoryColumns = `id, name, type, icon_name, icon_color, created_at, updated_at`

// CreateCategory inserts a new category.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if err := validateString(category.ID, "category.ID"); err != nil {
		return err
	}

	now := s.now()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	err := s.withTx(ctx, "create category", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (`+categoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			category.ID, category.Name, string(category.Type), category.IconName, category.IconColor,
			category.CreatedAt.UnixMilli(), category.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to create category: %w", err)
		}
		return nil
	}, observe.TableCategories)
	if err != nil {
		return err
	}

	slog.Debug("created category", "id", category.ID, "name", category.Name, "type", category.Type)
	return nil
}

// GetCategory returns a category by identifier.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	category, err := getCategoryTx(ctx, s.db, id)
	if err != nil {
		return nil, classify("get category", err)
	}
	return category, nil
}

// GetCategories returns categories ordered by type then name. With types
// given, only categories of those types are returned.
func (s *SQLiteStorage) GetCategories(ctx context.Context, types ...model.CategoryType) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories`
	args := make([]any, 0, len(types))
	if len(types) > 0 {
		query += ` WHERE type IN (` + placeholders(len(types)) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY type, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list categories", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, persistenceError("list categories", err)
		}
		categories = append(categories, *category)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list categories", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// UpdateCategory rewrites a category's descriptive fields. Changing the type
// of a category that transactions are filed under is refused with
// ErrReferenced, since those transactions would no longer match it.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}

	now := s.now()
	return s.withTx(ctx, "update category", func(tx *sql.Tx) error {
		current, err := getCategoryTx(ctx, tx, category.ID)
		if err != nil {
			return err
		}

		if current.Type != category.Type {
			count, err := countCategoryRefs(ctx, tx, category.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: category %q has %d transactions, its type cannot change",
					common.ErrReferenced, category.ID, count)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE categories
			SET name = ?, type = ?, icon_name = ?, icon_color = ?, updated_at = ?
			WHERE id = ?`,
			category.Name, string(category.Type), category.IconName, category.IconColor, now.UnixMilli(),
			category.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}

		category.CreatedAt = current.CreatedAt
		category.UpdatedAt = time.UnixMilli(now.UnixMilli())
		return nil
	}, observe.TableCategories, observe.TableTransactions)
}

// DeleteCategory removes a category. policy decides what happens to the
// transactions filed under it:
//   - block refuses with ErrReferenced while any exist;
//   - cascade deletes them, reversing their balance effects;
//   - reassign files them under policy.ReassignTo, which must have the same type.
//
// Balances are untouched by a reassign since category does not affect them.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id string, policy service.DeletePolicy) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	now := s.now()
	err := s.withTx(ctx, "delete category", func(tx *sql.Tx) error {
		current, err := getCategoryTx(ctx, tx, id)
		if err != nil {
			return err
		}

		switch policy.Mode {
		case service.DeleteBlock:
			count, err := countCategoryRefs(ctx, tx, id)
			if err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: category %q has %d transactions", common.ErrReferenced, id, count)
			}
		case service.DeleteCascade:
			refs, err := queryRawTransactions(ctx, tx, `WHERE category_id = ?`, id)
			if err != nil {
				return err
			}
			for _, txn := range refs {
				if err := removeTransactionTx(ctx, tx, txn, now); err != nil {
					return err
				}
			}
		case service.DeleteReassign:
			target, err := getCategoryTx(ctx, tx, policy.ReassignTo)
			if err != nil {
				return fmt.Errorf("reassign target: %w", err)
			}
			if target.Type != current.Type {
				return fmt.Errorf("%w: cannot move %s transactions to %s category %q",
					common.ErrValidation, current.Type, target.Type, target.ID)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE transactions SET category_id = ?, updated_at = ? WHERE category_id = ?`,
				policy.ReassignTo, now.UnixMilli(), id); err != nil {
				return fmt.Errorf("failed to reassign transactions: %w", err)
			}
		default:
			return fmt.Errorf("%w: unknown delete policy %q", common.ErrValidation, policy.Mode)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	}, observe.TableCategories, observe.TableTransactions, observe.TableAccounts)
	if err != nil {
		return err
	}

	slog.Info("deleted category", "id", id, "policy", string(policy.Mode))
	return nil
}

func getCategoryTx(ctx context.Context, q queryable, id string) (*model.Category, error) {
	row := q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	category, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return category, nil
}

// CountCategoryReferences returns how many transactions are filed under the category.
func (s *SQLiteStorage) CountCategoryReferences(ctx context.Context, id string) (int, error) {
	var count int
	err := s.read(ctx, "count category references", func(q queryable) error {
		var err error
		count, err = countCategoryRefs(ctx, q, id)
		return err
	})
	return count, err
}

func countCategoryRefs(ctx context.Context, q queryable, id string) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count category references: %w", err)
	}
	return count, nil
}

func scanCategory(row scanner) (*model.Category, error) {
	var (
		category                     model.Category
		categoryType                 string
		createdMillis, updatedMillis int64
	)
	if err := row.Scan(
		&category.ID, &category.Name, &categoryType, &category.IconName, &category.IconColor,
		&createdMillis, &updatedMillis,
	); err != nil {
		return nil, err
	}
	category.Type = model.CategoryType(categoryType)
	category.CreatedAt = time.UnixMilli(createdMillis)
	category.UpdatedAt = time.UnixMilli(updatedMillis)
	return &category, nil
}
