// Package service implements the ledger's use cases on top of storage.
//
// Every method takes the authenticated caller's user ID and returns
// *apperr.Error values that the HTTP layer renders directly.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/events"
	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

// membershipMu serializes operations that read memberships and then write
// based on them (invites, responses, admin changes, exclusions, account
// deletion, recipient checks) along with every read-modify-write of an
// expense. SQLite runs on a single connection, so this costs no throughput.
var membershipMu sync.Mutex

// storageError converts a storage failure into an apperr value.
// ErrNotFound maps to NotFound with the given message; anything else is logged
// and becomes Unknown.
func storageError(ctx context.Context, op, notFoundMessage string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, notFoundMessage, err)
	case errors.Is(err, storage.ErrConflict):
		return apperr.Wrap(apperr.Conflict, "Already exists", err)
	default:
		slog.ErrorContext(ctx, op+" failed", "error", err)
		return apperr.Wrap(apperr.Unknown, "", err)
	}
}

// requireMembership returns the caller's membership in the group, in any
// state. A missing group is NotFound; a group the caller has no membership
// in is Forbidden.
func requireMembership(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Membership, error) {
	m, err := store.GetMembership(ctx, groupID, userID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageError(ctx, "GetMembership", "", err)
	}
	if _, err := store.GetGroup(ctx, groupID); err != nil {
		return nil, storageError(ctx, "GetGroup", "Group not found", err)
	}
	return nil, apperr.New(apperr.Forbidden, "You are not a member of this group")
}

// requireMember is requireMembership restricted to accepted members.
func requireMember(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Membership, error) {
	m, err := requireMembership(ctx, store, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !m.HasAcceptedInvitation {
		return nil, apperr.New(apperr.Forbidden, "You have not accepted the invitation to this group")
	}
	return m, nil
}

// requireAdmin is requireMember restricted to administrators.
func requireAdmin(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Membership, error) {
	m, err := requireMember(ctx, store, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdministrator {
		slog.WarnContext(ctx, "Administrator action rejected", "group_id", groupID, "user_id", userID)
		return nil, apperr.New(apperr.Forbidden, "Only administrators can do this")
	}
	return m, nil
}

// publish sends an event. Failures are logged and never fail the request.
func publish(ctx context.Context, publisher events.Publisher, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to publish event", "kind", event.Kind, "group_id", event.GroupID, "error", err)
	}
}

// invalid wraps a validation failure as InvalidInput.
func invalid(message string, err error) error {
	return apperr.Wrap(apperr.InvalidInput, message, err)
}
