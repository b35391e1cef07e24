package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateExpense persists a new expense with its payers and splits.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	// Generate IDs if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Description == "" {
		expense.Description = generateDescription(expense.Splits)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO expenses (id, group_id, description, currency, total, split_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		expense.ID, expense.GroupID, expense.Description, string(expense.Total.Currency),
		expense.Total.MinorUnits, string(expense.SplitType), expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := s.insertChildren(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateExpense replaces an expense's fields and its payer and split rows.
// CreatedAt is preserved.
func (s *Store) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.Description == "" {
		expense.Description = generateDescription(expense.Splits)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE expenses SET group_id = ?, description = ?, currency = ?, total = ?, split_type = ?
		 WHERE id = ?`),
		expense.GroupID, expense.Description, string(expense.Total.Currency),
		expense.Total.MinorUnits, string(expense.SplitType), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	} else if n == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	if err := s.deleteChildren(ctx, tx, expense.ID); err != nil {
		return err
	}
	if err := s.insertChildren(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.QueryRowContext(ctx, s.rebind("SELECT created_at FROM expenses WHERE id = ?"), expense.ID).Scan(&expense.CreatedAt); err != nil {
		return fmt.Errorf("failed to read created_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense and its payer and split rows.
func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.deleteChildren(ctx, tx, expenseID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM expenses WHERE id = ?"), expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	} else if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID, including payers and splits.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	var currency, splitType string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, group_id, description, currency, total, split_type, created_at
		 FROM expenses WHERE id = ?`),
		expenseID,
	).Scan(&expense.ID, &expense.GroupID, &expense.Description, &currency,
		&expense.Total.MinorUnits, &splitType, &expense.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	expense.Total.Currency = money.Code(currency)
	expense.SplitType = models.SplitType(splitType)

	byID := map[string]*models.Expense{expense.ID: expense}
	if err := s.loadPayers(ctx, byID, "p.expense_id = ?", expenseID); err != nil {
		return nil, err
	}
	if err := s.loadSplits(ctx, byID, "sp.expense_id = ?", expenseID); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpensesByGroup retrieves every expense of a group, oldest first.
func (s *Store) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, group_id, description, currency, total, split_type, created_at
		 FROM expenses WHERE group_id = ? ORDER BY created_at, id`),
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		expense := &models.Expense{}
		var currency, splitType string
		if err := rows.Scan(&expense.ID, &expense.GroupID, &expense.Description, &currency,
			&expense.Total.MinorUnits, &splitType, &expense.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expense.Total.Currency = money.Code(currency)
		expense.SplitType = models.SplitType(splitType)
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	if err := s.loadPayers(ctx, byID, "e.group_id = ?", groupID); err != nil {
		return nil, err
	}
	if err := s.loadSplits(ctx, byID, "e.group_id = ?", groupID); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) insertChildren(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	for i, p := range expense.Payers {
		_, err := tx.ExecContext(ctx, s.rebind(
			"INSERT INTO expense_payers (expense_id, position, user_id, amount) VALUES (?, ?, ?, ?)"),
			expense.ID, i, p.UserID, p.Amount.MinorUnits,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payer: %w", err)
		}
	}

	for i, sp := range expense.Splits {
		var amount sql.NullInt64
		if sp.Amount != nil {
			amount = sql.NullInt64{Int64: sp.Amount.MinorUnits, Valid: true}
		}
		var pct decimal.NullDecimal
		if sp.Percentage != nil {
			pct = decimal.NewNullDecimal(*sp.Percentage)
		}
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO expense_splits (expense_id, position, user_id, amount, percentage, shares)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			expense.ID, i, sp.UserID, amount, pct, sp.Shares,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

func (s *Store) deleteChildren(ctx context.Context, tx *sql.Tx, expenseID string) error {
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM expense_payers WHERE expense_id = ?"), expenseID); err != nil {
		return fmt.Errorf("failed to delete payers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM expense_splits WHERE expense_id = ?"), expenseID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	return nil
}

// loadPayers attaches payer rows matching where to the expenses in byID.
func (s *Store) loadPayers(ctx context.Context, byID map[string]*models.Expense, where string, arg any) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT p.expense_id, p.user_id, p.amount
		 FROM expense_payers p JOIN expenses e ON e.id = p.expense_id
		 WHERE `+where+` ORDER BY p.expense_id, p.position`),
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get payers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID string
		var p models.Payer
		if err := rows.Scan(&expenseID, &p.UserID, &p.Amount.MinorUnits); err != nil {
			return fmt.Errorf("failed to scan payer: %w", err)
		}
		expense, ok := byID[expenseID]
		if !ok {
			continue
		}
		p.Amount.Currency = expense.Total.Currency
		expense.Payers = append(expense.Payers, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate payers: %w", err)
	}
	return nil
}

// loadSplits attaches split rows matching where to the expenses in byID.
func (s *Store) loadSplits(ctx context.Context, byID map[string]*models.Expense, where string, arg any) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT sp.expense_id, sp.user_id, sp.amount, sp.percentage, sp.shares
		 FROM expense_splits sp JOIN expenses e ON e.id = sp.expense_id
		 WHERE `+where+` ORDER BY sp.expense_id, sp.position`),
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID string
		var sp models.SplitEntry
		var amount sql.NullInt64
		var pct decimal.NullDecimal
		if err := rows.Scan(&expenseID, &sp.UserID, &amount, &pct, &sp.Shares); err != nil {
			return fmt.Errorf("failed to scan split: %w", err)
		}
		expense, ok := byID[expenseID]
		if !ok {
			continue
		}
		if amount.Valid {
			m := money.New(amount.Int64, expense.Total.Currency)
			sp.Amount = &m
		}
		if pct.Valid {
			p := pct.Decimal
			sp.Percentage = &p
		}
		expense.Splits = append(expense.Splits, sp)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate splits: %w", err)
	}
	return nil
}

// generateDescription creates a default label from the split recipients.
func generateDescription(splits []models.SplitEntry) string {
	names := make([]string, len(splits))
	for i, sp := range splits {
		names[i] = sp.UserID
	}
	if len(names) == 0 {
		return fmt.Sprintf("Expense - %s", time.Now().Format("Jan 2, 2006"))
	}
	if len(names) <= 3 {
		return fmt.Sprintf("Split with %s", strings.Join(names, ", "))
	}
	return fmt.Sprintf("Split with %s and %d others",
		strings.Join(names[:2], ", "),
		len(names)-2,
	)
}
