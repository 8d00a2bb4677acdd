package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/events"
	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

const maxExpenseTitleLength = 100

// ExpenseInput holds the fields of a new expense. Amount is the decimal text
// as entered, with either a dot or a comma separator.
type ExpenseInput struct {
	GroupID          string
	Title            string
	Amount           string
	Category         string
	RefundRecipients []string
	Attachment       *models.Attachment
}

// ExpenseUpdate holds the fields to change; nil fields are left as they are.
type ExpenseUpdate struct {
	Title            *string
	Amount           *string
	Category         *string
	RefundRecipients []string
	IsRefunded       *bool
	Attachment       *models.Attachment
}

// ExpenseService manages expenses. Only an expense's creator may change it.
type ExpenseService struct {
	store     storage.Store
	publisher events.Publisher
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(store storage.Store, publisher events.Publisher) *ExpenseService {
	return &ExpenseService{store: store, publisher: publisher}
}

// CreateExpense records a payment by the caller on behalf of the recipients.
// The caller is a recipient only if listed.
func (s *ExpenseService) CreateExpense(ctx context.Context, userID string, input ExpenseInput) (*models.Expense, error) {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	if _, err := requireMember(ctx, s.store, input.GroupID, userID); err != nil {
		return nil, err
	}

	expense := &models.Expense{
		GroupID:   input.GroupID,
		CreatorID: userID,
	}
	if err := applyTitle(expense, input.Title); err != nil {
		return nil, err
	}
	if err := applyAmount(expense, input.Amount); err != nil {
		return nil, err
	}
	if err := applyCategory(expense, input.Category); err != nil {
		return nil, err
	}
	if err := s.applyRecipients(ctx, expense, input.RefundRecipients); err != nil {
		return nil, err
	}
	if err := applyAttachment(expense, input.Attachment); err != nil {
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, storageError(ctx, "CreateExpense", "", err)
	}

	expensesCreated.Inc()
	slog.InfoContext(ctx, "Expense created",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"user_id", userID,
		"amount", expense.Amount.StringFixed(2),
		"recipients", len(expense.RefundRecipients),
	)
	publish(ctx, s.publisher, expenseEvent(events.ExpenseCreated, expense, userID))
	return expense, nil
}

// GetExpense returns an expense of a group the caller is a member of.
func (s *ExpenseService) GetExpense(ctx context.Context, userID, expenseID string) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, storageError(ctx, "GetExpense", "Expense not found", err)
	}
	if _, err := requireMember(ctx, s.store, expense.GroupID, userID); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses returns the group's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID, groupID string) ([]*models.Expense, error) {
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, storageError(ctx, "ListExpensesByGroup", "", err)
	}
	if expenses == nil {
		expenses = []*models.Expense{}
	}
	return expenses, nil
}

// UpdateExpense changes an expense. The same validation as creation applies.
func (s *ExpenseService) UpdateExpense(ctx context.Context, userID, expenseID string, update ExpenseUpdate) (*models.Expense, error) {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	expense, err := s.editable(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		if err := applyTitle(expense, *update.Title); err != nil {
			return nil, err
		}
	}
	if update.Amount != nil {
		if err := applyAmount(expense, *update.Amount); err != nil {
			return nil, err
		}
	}
	if update.Category != nil {
		if err := applyCategory(expense, *update.Category); err != nil {
			return nil, err
		}
	}
	if update.RefundRecipients != nil {
		if err := s.applyRecipients(ctx, expense, update.RefundRecipients); err != nil {
			return nil, err
		}
	}
	if update.IsRefunded != nil {
		expense.IsRefunded = *update.IsRefunded
	}
	if update.Attachment != nil {
		if err := applyAttachment(expense, update.Attachment); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, storageError(ctx, "UpdateExpense", "Expense not found", err)
	}

	slog.InfoContext(ctx, "Expense updated", "expense_id", expense.ID, "group_id", expense.GroupID, "user_id", userID)
	publish(ctx, s.publisher, expenseEvent(events.ExpenseUpdated, expense, userID))
	return expense, nil
}

// SetRefunded marks an expense as settled out-of-band, or clears the mark.
// Refunded expenses no longer count towards balances and refunds.
func (s *ExpenseService) SetRefunded(ctx context.Context, userID, expenseID string, refunded bool) (*models.Expense, error) {
	return s.UpdateExpense(ctx, userID, expenseID, ExpenseUpdate{IsRefunded: &refunded})
}

// DeleteExpense removes an expense.
func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	expense, err := s.editable(ctx, userID, expenseID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		return storageError(ctx, "DeleteExpense", "Expense not found", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", expenseID, "group_id", expense.GroupID, "user_id", userID)
	publish(ctx, s.publisher, expenseEvent(events.ExpenseDeleted, expense, userID))
	return nil
}

// DeleteAttachment removes the expense's attachment. Removing a missing
// attachment succeeds without writing.
func (s *ExpenseService) DeleteAttachment(ctx context.Context, userID, expenseID string) (*models.Expense, error) {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	expense, err := s.editable(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.Attachment == nil {
		return expense, nil
	}

	expense.Attachment = nil
	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, storageError(ctx, "UpdateExpense", "Expense not found", err)
	}

	slog.InfoContext(ctx, "Expense attachment deleted", "expense_id", expenseID, "user_id", userID)
	publish(ctx, s.publisher, expenseEvent(events.ExpenseUpdated, expense, userID))
	return expense, nil
}

// editable loads an expense the caller created in a group they still belong to.
func (s *ExpenseService) editable(ctx context.Context, userID, expenseID string) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, storageError(ctx, "GetExpense", "Expense not found", err)
	}
	if _, err := requireMember(ctx, s.store, expense.GroupID, userID); err != nil {
		return nil, err
	}
	if expense.CreatorID != userID {
		slog.WarnContext(ctx, "Expense change by non-creator rejected", "expense_id", expenseID, "user_id", userID)
		return nil, apperr.New(apperr.Forbidden, "Only the creator can change this expense")
	}
	return expense, nil
}

func applyTitle(e *models.Expense, title string) error {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return apperr.New(apperr.InvalidInput, "Title is required")
	case len(title) > maxExpenseTitleLength:
		return apperr.New(apperr.InvalidInput, "Title is too long")
	}
	e.Title = title
	return nil
}

// applyRecipients checks that recipients is a non-empty list of distinct
// accepted members of the expense's group. Callers hold membershipMu.
func (s *ExpenseService) applyRecipients(ctx context.Context, e *models.Expense, recipients []string) error {
	if len(recipients) == 0 {
		return invalid("At least one refund recipient is required", models.ErrInvalidRecipient)
	}

	memberships, err := s.store.ListMemberships(ctx, e.GroupID)
	if err != nil {
		return storageError(ctx, "ListMemberships", "", err)
	}
	accepted := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		if m.HasAcceptedInvitation {
			accepted[m.UserID] = true
		}
	}

	seen := make(map[string]bool, len(recipients))
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if seen[r] {
			return invalid("Refund recipients must be distinct", models.ErrInvalidRecipient)
		}
		if !accepted[r] {
			return invalid("Refund recipients must be members of the group", models.ErrInvalidRecipient)
		}
		seen[r] = true
		cleaned = append(cleaned, r)
	}
	e.RefundRecipients = cleaned
	return nil
}

func applyAmount(e *models.Expense, amount string) error {
	d, err := models.ParseAmount(amount)
	if err != nil {
		return invalid("Amount must be a positive number", err)
	}
	e.Amount = d
	return nil
}

func applyCategory(e *models.Expense, category string) error {
	c, err := models.ParseCategory(strings.TrimSpace(category))
	if err != nil {
		return invalid("Unknown category", err)
	}
	e.Category = c
	return nil
}

func applyAttachment(e *models.Expense, a *models.Attachment) error {
	if a == nil {
		return nil
	}
	if err := a.Validate(); err != nil {
		return invalid("Attachment needs a filename and base64 content", err)
	}
	e.Attachment = a
	return nil
}

func expenseEvent(kind events.Kind, e *models.Expense, actorID string) events.Event {
	event := events.New(kind, e.GroupID, actorID)
	event.ExpenseID = e.ID
	return event
}
