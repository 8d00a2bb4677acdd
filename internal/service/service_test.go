package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/events"
	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage/sqlite"
)

const testPassword = "correct horse battery"

// eventRecorder keeps published events in memory.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) Close() error { return nil }

// Kinds returns the kinds of all recorded events in order.
func (r *eventRecorder) Kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// testEnv wires every service to a fresh SQLite database.
type testEnv struct {
	store       *sqlite.SQLiteStore
	events      *eventRecorder
	users       *UserService
	groups      *GroupService
	memberships *MembershipService
	expenses    *ExpenseService
	ledger      *LedgerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	recorder := &eventRecorder{}
	authenticator := auth.NewPasswordAuthenticator(store, auth.DefaultMinPasswordLength).WithCost(bcrypt.MinCost)
	jwt := auth.NewJWTManager("test-secret-0123456789", time.Hour)

	return &testEnv{
		store:       store,
		events:      recorder,
		users:       NewUserService(store, authenticator, jwt, recorder),
		groups:      NewGroupService(store, recorder),
		memberships: NewMembershipService(store, recorder),
		expenses:    NewExpenseService(store, recorder),
		ledger:      NewLedgerService(store),
	}
}

func (env *testEnv) register(t *testing.T, pseudonym string) *models.User {
	t.Helper()
	user, err := env.users.Register(context.Background(), auth.Registration{
		Pseudonym: pseudonym,
		Email:     pseudonym + "@example.com",
	}, testPassword)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", pseudonym, err)
	}
	return user
}

func (env *testEnv) createGroup(t *testing.T, admin *models.User, name string) *models.Group {
	t.Helper()
	group, err := env.groups.CreateGroup(context.Background(), admin.ID, GroupInput{Name: name})
	if err != nil {
		t.Fatalf("CreateGroup(%s) failed: %v", name, err)
	}
	return group
}

// join invites each user on behalf of admin and accepts on their behalf.
func (env *testEnv) join(t *testing.T, group *models.Group, admin *models.User, users ...*models.User) {
	t.Helper()
	ctx := context.Background()
	for _, u := range users {
		res, err := env.memberships.Invite(ctx, admin.ID, group.ID, []string{u.Pseudonym})
		if err != nil || len(res.Invited) != 1 {
			t.Fatalf("Invite(%s) = %+v, %v", u.Pseudonym, res, err)
		}
		if _, err := env.memberships.Respond(ctx, u.ID, group.ID, true); err != nil {
			t.Fatalf("Respond(%s) failed: %v", u.Pseudonym, err)
		}
	}
}

func (env *testEnv) createExpense(t *testing.T, creator *models.User, group *models.Group, amount string, recipients ...*models.User) *models.Expense {
	t.Helper()
	ids := make([]string, len(recipients))
	for i, r := range recipients {
		ids[i] = r.ID
	}
	expense, err := env.expenses.CreateExpense(context.Background(), creator.ID, ExpenseInput{
		GroupID:          group.ID,
		Title:            "Expense " + amount,
		Amount:           amount,
		RefundRecipients: ids,
	})
	if err != nil {
		t.Fatalf("CreateExpense(%s) failed: %v", amount, err)
	}
	return expense
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}
