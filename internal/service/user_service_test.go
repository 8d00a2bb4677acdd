package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/events"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.register(t, "alice")

	t.Run("login by pseudonym and email", func(t *testing.T) {
		for _, login := range []string{"alice", "alice@example.com", "  ALICE@example.com "} {
			res, err := env.users.Login(ctx, login, testPassword)
			if err != nil {
				t.Fatalf("Login(%q) failed: %v", login, err)
			}
			if res.Token == "" || res.User.ID != user.ID {
				t.Errorf("Login(%q) = %+v", login, res)
			}
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.users.Login(ctx, "alice", "nope nope nope")
		assertKind(t, err, apperr.Unauthenticated)
	})

	tests := []struct {
		name     string
		reg      auth.Registration
		password string
		want     apperr.Kind
	}{
		{"duplicate email", auth.Registration{Pseudonym: "alice2", Email: "alice@example.com"}, testPassword, apperr.Conflict},
		{"duplicate pseudonym", auth.Registration{Pseudonym: "Alice", Email: "x@example.com"}, testPassword, apperr.Conflict},
		{"weak password", auth.Registration{Pseudonym: "bob", Email: "bob@example.com"}, "short", apperr.InvalidInput},
		{"missing pseudonym", auth.Registration{Email: "bob@example.com"}, testPassword, apperr.InvalidInput},
		{"pseudonym with space", auth.Registration{Pseudonym: "bo b", Email: "bob@example.com"}, testPassword, apperr.InvalidInput},
		{"invalid email", auth.Registration{Pseudonym: "bob", Email: "bob"}, testPassword, apperr.InvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Register(ctx, tt.reg, tt.password)
			assertKind(t, err, tt.want)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice")
	env.register(t, "bob")

	first, last, iban := "Alice", "Liddell", "de89 3704 0044 0532 0130 00"
	updated, err := env.users.UpdateProfile(ctx, alice.ID, ProfileUpdate{Firstname: &first, Lastname: &last, IBAN: &iban})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.DisplayName() != "Alice Liddell" || updated.IBAN != "DE89370400440532013000" {
		t.Errorf("unexpected profile: %+v", updated)
	}

	taken := "bob"
	_, err = env.users.UpdateProfile(ctx, alice.ID, ProfileUpdate{Pseudonym: &taken})
	assertKind(t, err, apperr.Conflict)

	takenEmail := "BOB@example.com"
	_, err = env.users.UpdateProfile(ctx, alice.ID, ProfileUpdate{Email: &takenEmail})
	assertKind(t, err, apperr.Conflict)

	// Changing only the case of one's own pseudonym is allowed.
	same := "Alice"
	if _, err := env.users.UpdateProfile(ctx, alice.ID, ProfileUpdate{Pseudonym: &same}); err != nil {
		t.Errorf("renaming to own pseudonym failed: %v", err)
	}

	password := "a brand new password"
	if _, err := env.users.UpdateProfile(ctx, alice.ID, ProfileUpdate{Password: &password}); err != nil {
		t.Fatalf("password change failed: %v", err)
	}
	if _, err := env.users.Login(ctx, "alice@example.com", password); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestDeleteAccountRejectedForSoleAdministrator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.register(t, "a")
	b := env.register(t, "b")
	g := env.createGroup(t, a, "G")
	env.join(t, g, a, b)

	err := env.users.DeleteAccount(ctx, a.ID)
	assertKind(t, err, apperr.Conflict)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	groups, ok := appErr.Details.([]BlockingGroup)
	if !ok || len(groups) != 1 || groups[0].ID != g.ID || groups[0].Name != "G" {
		t.Fatalf("Details = %#v, want [G]", appErr.Details)
	}

	if _, err := env.users.Me(ctx, a.ID); err != nil {
		t.Errorf("account must survive a rejected deletion: %v", err)
	}

	// Handing over administration unblocks the deletion.
	if _, err := env.memberships.SetAdministrator(ctx, a.ID, g.ID, b.ID, true); err != nil {
		t.Fatalf("SetAdministrator failed: %v", err)
	}
	if err := env.users.DeleteAccount(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	_, err = env.users.Me(ctx, a.ID)
	assertKind(t, err, apperr.NotFound)

	members, err := env.memberships.ListMembers(ctx, b.ID, g.ID)
	if err != nil || len(members) != 1 || members[0].User.ID != b.ID {
		t.Errorf("expected only b left in G, got %d members (%v)", len(members), err)
	}
}

func TestDeleteAccountRemovesSoleMemberGroups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.register(t, "a")
	b := env.register(t, "b")
	solo := env.createGroup(t, a, "Solo")

	// A pending invitation does not keep the group alive.
	if _, err := env.memberships.Invite(ctx, a.ID, solo.ID, []string{"b"}); err != nil {
		t.Fatalf("Invite failed: %v", err)
	}

	if err := env.users.DeleteAccount(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if _, err := env.store.GetGroup(ctx, solo.ID); err == nil {
		t.Error("sole-member group should be deleted with the account")
	}
	counts, err := env.memberships.Counts(ctx, b.ID)
	if err != nil || counts.Pending != 0 {
		t.Errorf("b's invitation should be gone, got %+v (%v)", counts, err)
	}

	kinds := env.events.Kinds()
	if len(kinds) < 2 || kinds[len(kinds)-2] != events.GroupDeleted || kinds[len(kinds)-1] != events.UserDeleted {
		t.Errorf("unexpected events: %v", kinds)
	}
}

func TestSearchInvitable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.register(t, "anna")
	member := env.register(t, "andrew")
	env.register(t, "anton")
	env.register(t, "bert")
	g := env.createGroup(t, admin, "G")
	env.join(t, g, admin, member)

	users, err := env.users.SearchInvitable(ctx, admin.ID, g.ID, "an")
	if err != nil {
		t.Fatalf("SearchInvitable failed: %v", err)
	}
	if len(users) != 1 || users[0].Pseudonym != "anton" {
		t.Errorf("expected only anton, got %v", users)
	}

	empty, err := env.users.SearchInvitable(ctx, admin.ID, g.ID, "  ")
	if err != nil || len(empty) != 0 {
		t.Errorf("blank query = %v, %v", empty, err)
	}

	_, err = env.users.SearchInvitable(ctx, member.ID, g.ID, "an")
	assertKind(t, err, apperr.Forbidden)
}
