// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/wolls/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("already exists")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPseudonym(ctx context.Context, pseudonym string) (*models.User, error)

	// GetUsersByIDs returns a map of user ID to User. Missing users are omitted.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	// SearchUsers returns up to limit users whose pseudonym starts with prefix.
	SearchUsers(ctx context.Context, prefix string, limit int) ([]*models.User, error)

	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser removes the user and their memberships, along with the given
	// groups, in one transaction. Expenses referencing the user are kept.
	DeleteUser(ctx context.Context, userID string, groupIDs []string) error
}

// GroupStore persists groups and memberships.
type GroupStore interface {
	// CreateGroup persists the group and an accepted administrator membership
	// for adminID. The group.ID and CreatedAt fields are populated by the store.
	CreateGroup(ctx context.Context, group *models.Group, adminID string) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes the group with its memberships and expenses.
	DeleteGroup(ctx context.Context, groupID string) error

	// ListGroupsForUser returns the groups where the user has an accepted
	// membership (accepted=true) or a pending invitation (accepted=false).
	ListGroupsForUser(ctx context.Context, userID string, accepted bool) ([]*models.Group, error)

	GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)
	ListMemberships(ctx context.Context, groupID string) ([]*models.Membership, error)

	// CreateMembership returns ErrConflict if the user already has a membership.
	CreateMembership(ctx context.Context, m *models.Membership) error
	UpdateMembership(ctx context.Context, m *models.Membership) error
	DeleteMembership(ctx context.Context, groupID, userID string) error

	// CountAdministrators returns how many accepted administrators the group has.
	CountAdministrators(ctx context.Context, groupID string) (int, error)

	// CountMemberships returns how many accepted memberships and pending
	// invitations the user has.
	CountMemberships(ctx context.Context, userID string) (accepted, pending int, err error)
}

// ExpenseStore persists expenses with their recipients and attachment.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpensesByGroup returns the group's expenses, newest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)
}

// Store defines the full storage interface.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	UserStore
	GroupStore
	ExpenseStore

	// Close releases any resources held by the store.
	Close() error
}
