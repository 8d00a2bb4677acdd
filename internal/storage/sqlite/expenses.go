package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

const expenseColumns = `id, group_id, creator_id, title, amount, category, is_refunded,
	attachment_filename, attachment_content, created_at, updated_at`

func scanExpense(row rowScanner) (*models.Expense, error) {
	e := &models.Expense{}
	var category string
	var filename, content sql.NullString
	err := row.Scan(&e.ID, &e.GroupID, &e.CreatorID, &e.Title, &e.Amount, &category, &e.IsRefunded,
		&filename, &content, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Category = models.Category(category)
	if filename.Valid {
		e.Attachment = &models.Attachment{Filename: filename.String, Content: content.String}
	}
	return e, nil
}

func attachmentArgs(a *models.Attachment) (any, any) {
	if a == nil {
		return nil, nil
	}
	return nullString(a.Filename), a.Content
}

// insertRecipients writes the recipient list, preserving order.
func insertRecipients(ctx context.Context, tx *sql.Tx, expenseID string, recipients []string) error {
	for i, userID := range recipients {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_recipients (expense_id, user_id, position) VALUES (?, ?, ?)",
			expenseID, userID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recipient: %w", err)
		}
	}
	return nil
}

// CreateExpense persists a new expense with its recipients.
func (s *SQLiteStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	e.UpdatedAt = e.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	filename, content := attachmentArgs(e.Attachment)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GroupID, e.CreatorID, e.Title, e.Amount.StringFixed(2), string(e.Category), e.IsRefunded,
		filename, content, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertRecipients(ctx, tx, e.ID, e.RefundRecipients); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID, including recipients and attachment.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	recipients, err := s.loadRecipients(ctx, []string{e.ID})
	if err != nil {
		return nil, err
	}
	e.RefundRecipients = recipients[e.ID]
	return e, nil
}

// UpdateExpense overwrites an expense and replaces its recipient list.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, e *models.Expense) error {
	e.UpdatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	filename, content := attachmentArgs(e.Attachment)
	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET title = ?, amount = ?, category = ?, is_refunded = ?,
		 attachment_filename = ?, attachment_content = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Amount.StringFixed(2), string(e.Category), e.IsRefunded,
		filename, content, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if err := expectOneRow(res, "expense", e.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_recipients WHERE expense_id = ?", e.ID); err != nil {
		return fmt.Errorf("failed to delete old recipients: %w", err)
	}
	if err := insertRecipients(ctx, tx, e.ID, e.RefundRecipients); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense and its recipients.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return expectOneRow(res, "expense", expenseID)
}

// ListExpensesByGroup retrieves all expenses of a group, newest first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE group_id = ? ORDER BY created_at DESC, rowid DESC`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}

	var expenses []*models.Expense
	var ids []string
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	recipients, err := s.loadRecipients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range expenses {
		e.RefundRecipients = recipients[e.ID]
	}
	return expenses, nil
}

// loadRecipients returns ordered recipient lists keyed by expense ID.
func (s *SQLiteStore) loadRecipients(ctx context.Context, expenseIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(expenseIDs))
	if len(expenseIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(expenseIDs))
	for i, id := range expenseIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, user_id FROM expense_recipients
		 WHERE expense_id IN (`+placeholders(len(expenseIDs))+`)
		 ORDER BY expense_id, position`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID, userID string
		if err := rows.Scan(&expenseID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		out[expenseID] = append(out[expenseID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", err)
	}
	return out, nil
}
