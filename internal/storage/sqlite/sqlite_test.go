package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store *SQLiteStore, pseudonym string) *models.User {
	t.Helper()
	user := models.NewUser(pseudonym, pseudonym+"@example.com", "hash")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", pseudonym, err)
	}
	return user
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	first, err := New(path)
	if err != nil {
		t.Fatalf("first New failed: %v", err)
	}
	first.Close()

	second, err := New(path)
	if err != nil {
		t.Fatalf("second New failed (migrations should be idempotent): %v", err)
	}
	second.Close()
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")

	t.Run("lookup by id, email and pseudonym", func(t *testing.T) {
		byID, err := store.GetUserByID(ctx, alice.ID)
		if err != nil || byID.Pseudonym != "alice" {
			t.Fatalf("GetUserByID = %+v, %v", byID, err)
		}
		byEmail, err := store.GetUserByEmail(ctx, "ALICE@example.com")
		if err != nil || byEmail.ID != alice.ID {
			t.Fatalf("GetUserByEmail should be case-insensitive: %+v, %v", byEmail, err)
		}
		byPseudonym, err := store.GetUserByPseudonym(ctx, "Alice")
		if err != nil || byPseudonym.ID != alice.ID {
			t.Fatalf("GetUserByPseudonym should be case-insensitive: %+v, %v", byPseudonym, err)
		}
	})

	t.Run("missing user is ErrNotFound", func(t *testing.T) {
		_, err := store.GetUserByID(ctx, "nonexistent")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate pseudonym is ErrConflict", func(t *testing.T) {
		dup := models.NewUser("ALICE", "other@example.com", "hash")
		if err := store.CreateUser(ctx, dup); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("update profile", func(t *testing.T) {
		alice.Firstname = "Alice"
		alice.IBAN = "FR7630006000011234567890189"
		if err := store.UpdateUser(ctx, alice); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		got, _ := store.GetUserByID(ctx, alice.ID)
		if got.Firstname != "Alice" || got.IBAN != alice.IBAN {
			t.Errorf("profile not updated: %+v", got)
		}
	})

	t.Run("search by pseudonym prefix", func(t *testing.T) {
		createUser(t, store, "alicia")
		createUser(t, store, "bob")
		createUser(t, store, "al_x")

		users, err := store.SearchUsers(ctx, "ali", 10)
		if err != nil {
			t.Fatalf("SearchUsers failed: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("expected 2 users, got %d", len(users))
		}

		users, _ = store.SearchUsers(ctx, "al_", 10)
		if len(users) != 1 || users[0].Pseudonym != "al_x" {
			t.Errorf("underscore should match literally, got %d users", len(users))
		}
	})

	t.Run("GetUsersByIDs omits unknown ids", func(t *testing.T) {
		users, err := store.GetUsersByIDs(ctx, []string{alice.ID, "ghost"})
		if err != nil {
			t.Fatalf("GetUsersByIDs failed: %v", err)
		}
		if len(users) != 1 || users[alice.ID] == nil {
			t.Errorf("unexpected result: %v", users)
		}
	})
}

func TestGroupsAndMemberships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	admin := createUser(t, store, "admin")
	bob := createUser(t, store, "bob")

	group := &models.Group{Name: "Ski trip", Description: "Alps", Theme: "blue"}
	if err := store.CreateGroup(ctx, group, admin.ID); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if group.ID == "" || group.CreatedAt == 0 || group.CreatedBy != admin.ID {
		t.Fatalf("CreateGroup did not populate fields: %+v", group)
	}

	t.Run("creator is accepted administrator", func(t *testing.T) {
		m, err := store.GetMembership(ctx, group.ID, admin.ID)
		if err != nil {
			t.Fatalf("GetMembership failed: %v", err)
		}
		if !m.IsAcceptedAdmin() || m.HasPendingInvitation {
			t.Errorf("unexpected membership: %+v", m)
		}
	})

	t.Run("invitation lifecycle", func(t *testing.T) {
		invite := &models.Membership{GroupID: group.ID, UserID: bob.ID, HasPendingInvitation: true, InvitedBy: admin.ID}
		if err := store.CreateMembership(ctx, invite); err != nil {
			t.Fatalf("CreateMembership failed: %v", err)
		}
		if err := store.CreateMembership(ctx, invite); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("duplicate membership should be ErrConflict, got %v", err)
		}

		pending, err := store.ListGroupsForUser(ctx, bob.ID, false)
		if err != nil || len(pending) != 1 {
			t.Fatalf("expected 1 pending group, got %d (%v)", len(pending), err)
		}
		accepted, pending2, err := store.CountMemberships(ctx, bob.ID)
		if err != nil || accepted != 0 || pending2 != 1 {
			t.Errorf("CountMemberships = %d, %d, %v", accepted, pending2, err)
		}

		invite.HasAcceptedInvitation = true
		invite.HasPendingInvitation = false
		if err := store.UpdateMembership(ctx, invite); err != nil {
			t.Fatalf("UpdateMembership failed: %v", err)
		}
		groups, _ := store.ListGroupsForUser(ctx, bob.ID, true)
		if len(groups) != 1 || groups[0].ID != group.ID {
			t.Errorf("expected bob in group after accept, got %v", groups)
		}

		if n, err := store.CountAdministrators(ctx, group.ID); err != nil || n != 1 {
			t.Errorf("CountAdministrators = %d, %v; want 1", n, err)
		}

		memberships, err := store.ListMemberships(ctx, group.ID)
		if err != nil || len(memberships) != 2 {
			t.Fatalf("ListMemberships = %d, %v", len(memberships), err)
		}

		if err := store.DeleteMembership(ctx, group.ID, bob.ID); err != nil {
			t.Fatalf("DeleteMembership failed: %v", err)
		}
		if _, err := store.GetMembership(ctx, group.ID, bob.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteMembership(ctx, group.ID, bob.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second delete should be ErrNotFound, got %v", err)
		}
	})

	t.Run("update group", func(t *testing.T) {
		group.Name = "Ski trip 2026"
		if err := store.UpdateGroup(ctx, group); err != nil {
			t.Fatalf("UpdateGroup failed: %v", err)
		}
		got, _ := store.GetGroup(ctx, group.ID)
		if got.Name != "Ski trip 2026" {
			t.Errorf("name not updated: %s", got.Name)
		}
	})

	t.Run("delete group cascades", func(t *testing.T) {
		expense := &models.Expense{
			GroupID: group.ID, CreatorID: admin.ID, Title: "Fuel",
			Amount: decimal.RequireFromString("10"), Category: models.CategoryTransport,
			RefundRecipients: []string{admin.ID},
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		if err := store.DeleteGroup(ctx, group.ID); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}
		if _, err := store.GetMembership(ctx, group.ID, admin.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("membership should be gone, got %v", err)
		}
		if _, err := store.GetExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expense should be gone, got %v", err)
		}
	})
}

func TestExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := createUser(t, store, "a")
	b := createUser(t, store, "b")
	c := createUser(t, store, "c")

	group := &models.Group{Name: "Flat"}
	if err := store.CreateGroup(ctx, group, a.ID); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	expense := &models.Expense{
		GroupID:          group.ID,
		CreatorID:        a.ID,
		Title:            "Groceries",
		Amount:           decimal.RequireFromString("9.00"),
		Category:         models.CategoryGroceries,
		RefundRecipients: []string{c.ID, a.ID, b.ID},
		Attachment:       &models.Attachment{Filename: "ticket.txt", Content: "aGVsbG8="},
	}

	t.Run("create and get preserves recipient order", func(t *testing.T) {
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		got, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !got.Amount.Equal(expense.Amount) {
			t.Errorf("amount = %s, want %s", got.Amount, expense.Amount)
		}
		if got.Category != models.CategoryGroceries {
			t.Errorf("category = %q", got.Category)
		}
		want := []string{c.ID, a.ID, b.ID}
		if len(got.RefundRecipients) != 3 {
			t.Fatalf("recipients = %v", got.RefundRecipients)
		}
		for i := range want {
			if got.RefundRecipients[i] != want[i] {
				t.Errorf("recipient %d = %s, want %s", i, got.RefundRecipients[i], want[i])
			}
		}
		if got.Attachment == nil || got.Attachment.Filename != "ticket.txt" {
			t.Errorf("attachment = %+v", got.Attachment)
		}
	})

	t.Run("update replaces recipients and clears attachment", func(t *testing.T) {
		expense.RefundRecipients = []string{a.ID, b.ID}
		expense.IsRefunded = true
		expense.Attachment = nil
		if err := store.UpdateExpense(ctx, expense); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}
		got, _ := store.GetExpense(ctx, expense.ID)
		if len(got.RefundRecipients) != 2 || !got.IsRefunded || got.Attachment != nil {
			t.Errorf("unexpected expense after update: %+v", got)
		}
	})

	t.Run("list by group", func(t *testing.T) {
		second := &models.Expense{
			GroupID: group.ID, CreatorID: b.ID, Title: "Pizza",
			Amount: decimal.RequireFromString("12.50"), Category: models.CategoryRestaurants,
			RefundRecipients: []string{a.ID, b.ID, c.ID},
		}
		if err := store.CreateExpense(ctx, second); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		expenses, err := store.ListExpensesByGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListExpensesByGroup failed: %v", err)
		}
		if len(expenses) != 2 {
			t.Fatalf("expected 2 expenses, got %d", len(expenses))
		}
		if expenses[0].ID != second.ID {
			t.Errorf("newest expense should come first")
		}
		if len(expenses[0].RefundRecipients) != 3 || len(expenses[1].RefundRecipients) != 2 {
			t.Errorf("recipients not loaded per expense")
		}
	})

	t.Run("expenses survive user deletion", func(t *testing.T) {
		if err := store.DeleteUser(ctx, c.ID, nil); err != nil {
			t.Fatalf("DeleteUser failed: %v", err)
		}
		expenses, err := store.ListExpensesByGroup(ctx, group.ID)
		if err != nil || len(expenses) != 2 {
			t.Fatalf("expenses should survive: %d, %v", len(expenses), err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.DeleteExpense(ctx, expense.ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		if err := store.DeleteExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second delete should be ErrNotFound, got %v", err)
		}
	})
}
