package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/events"
	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

// Reasons an invitation was not sent to a pseudonym.
const (
	SkipUnknownUser   = "user not found"
	SkipAlreadyMember = "already a member"
	SkipAlreadyInvite = "already invited"
)

// InviteSkip reports a pseudonym that did not receive an invitation.
type InviteSkip struct {
	Pseudonym string
	Reason    string
}

// InviteResult lists who was invited and who was skipped, in request order.
type InviteResult struct {
	Invited []*models.User
	Skipped []InviteSkip
}

// MembershipCounts is the number of groups a user belongs to and is invited to.
type MembershipCounts struct {
	Accepted int
	Pending  int
}

// MembershipService runs the membership lifecycle: invited, then accepted or
// removed. Removal deletes the record.
type MembershipService struct {
	store     storage.Store
	publisher events.Publisher
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(store storage.Store, publisher events.Publisher) *MembershipService {
	return &MembershipService{store: store, publisher: publisher}
}

// Invite creates a pending invitation for each pseudonym.
//
// Pseudonyms that do not resolve, or whose users already have a membership
// in the group (invited or accepted), are skipped and reported rather than
// failing the whole request. Administrators only.
func (s *MembershipService) Invite(ctx context.Context, callerID, groupID string, pseudonyms []string) (*InviteResult, error) {
	if len(pseudonyms) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "At least one pseudonym is required")
	}

	membershipMu.Lock()
	defer membershipMu.Unlock()

	if _, err := requireAdmin(ctx, s.store, groupID, callerID); err != nil {
		return nil, err
	}

	result := &InviteResult{Invited: []*models.User{}, Skipped: []InviteSkip{}}
	seen := make(map[string]bool, len(pseudonyms))
	for _, p := range pseudonyms {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true

		user, err := s.store.GetUserByPseudonym(ctx, p)
		if errors.Is(err, storage.ErrNotFound) {
			result.Skipped = append(result.Skipped, InviteSkip{Pseudonym: p, Reason: SkipUnknownUser})
			continue
		}
		if err != nil {
			return nil, storageError(ctx, "GetUserByPseudonym", "", err)
		}

		existing, err := s.store.GetMembership(ctx, groupID, user.ID)
		switch {
		case err == nil && existing.HasAcceptedInvitation:
			result.Skipped = append(result.Skipped, InviteSkip{Pseudonym: user.Pseudonym, Reason: SkipAlreadyMember})
			continue
		case err == nil:
			result.Skipped = append(result.Skipped, InviteSkip{Pseudonym: user.Pseudonym, Reason: SkipAlreadyInvite})
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return nil, storageError(ctx, "GetMembership", "", err)
		}

		m := &models.Membership{
			GroupID:              groupID,
			UserID:               user.ID,
			HasPendingInvitation: true,
			InvitedBy:            callerID,
		}
		if err := s.store.CreateMembership(ctx, m); err != nil {
			return nil, storageError(ctx, "CreateMembership", "", err)
		}
		result.Invited = append(result.Invited, user)

		invitationsSent.Inc()
		publish(ctx, s.publisher, memberEvent(events.MemberInvited, groupID, user.ID, callerID))
	}

	slog.InfoContext(ctx, "Invitations sent",
		"group_id", groupID,
		"user_id", callerID,
		"invited", len(result.Invited),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// Respond accepts or declines the caller's pending invitation.
//
// Accepting makes the caller a non-administrator member; declining deletes
// the membership. An invitation can only be answered once.
func (s *MembershipService) Respond(ctx context.Context, userID, groupID string, accept bool) (*models.Membership, error) {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	m, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		return nil, storageError(ctx, "GetMembership", "No invitation for this group", err)
	}
	if m.HasAcceptedInvitation || !m.HasPendingInvitation {
		slog.WarnContext(ctx, "Invitation already answered", "group_id", groupID, "user_id", userID)
		return nil, apperr.New(apperr.Conflict, "Invitation has already been answered")
	}

	if !accept {
		if err := s.store.DeleteMembership(ctx, groupID, userID); err != nil {
			return nil, storageError(ctx, "DeleteMembership", "No invitation for this group", err)
		}
		invitationResponses.WithLabelValues("declined").Inc()
		slog.InfoContext(ctx, "Invitation declined", "group_id", groupID, "user_id", userID)
		publish(ctx, s.publisher, memberEvent(events.MemberDeclined, groupID, userID, userID))
		return nil, nil
	}

	m.HasAcceptedInvitation = true
	m.HasPendingInvitation = false
	m.IsAdministrator = false
	if err := s.store.UpdateMembership(ctx, m); err != nil {
		return nil, storageError(ctx, "UpdateMembership", "No invitation for this group", err)
	}

	invitationResponses.WithLabelValues("accepted").Inc()
	slog.InfoContext(ctx, "Invitation accepted", "group_id", groupID, "user_id", userID)
	publish(ctx, s.publisher, memberEvent(events.MemberAccepted, groupID, userID, userID))
	return m, nil
}

// SetAdministrator grants or revokes administrator rights on an accepted
// member. Administrators only. A group always keeps at least one administrator.
func (s *MembershipService) SetAdministrator(ctx context.Context, callerID, groupID, targetID string, isAdmin bool) (*models.Membership, error) {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	if _, err := requireAdmin(ctx, s.store, groupID, callerID); err != nil {
		return nil, err
	}

	m, err := s.store.GetMembership(ctx, groupID, targetID)
	if err != nil {
		return nil, storageError(ctx, "GetMembership", "User is not a member of this group", err)
	}
	if !m.HasAcceptedInvitation {
		return nil, apperr.New(apperr.Conflict, "User has not accepted the invitation yet")
	}
	if m.IsAdministrator == isAdmin {
		return m, nil
	}

	if !isAdmin {
		if err := s.ensureAnotherAdmin(ctx, groupID); err != nil {
			return nil, err
		}
	}

	m.IsAdministrator = isAdmin
	if err := s.store.UpdateMembership(ctx, m); err != nil {
		return nil, storageError(ctx, "UpdateMembership", "User is not a member of this group", err)
	}

	slog.InfoContext(ctx, "Administrator role changed",
		"group_id", groupID,
		"user_id", targetID,
		"is_administrator", isAdmin,
		"actor_id", callerID,
	)
	publish(ctx, s.publisher, memberEvent(events.MemberRoleChanged, groupID, targetID, callerID))
	return m, nil
}

// Exclude removes a user from the group. Administrators can remove anyone;
// any member can remove themselves. The user's expenses stay in the group and
// keep counting towards balances and refunds.
func (s *MembershipService) Exclude(ctx context.Context, callerID, groupID, targetID string) error {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	if callerID == targetID {
		if _, err := requireMembership(ctx, s.store, groupID, callerID); err != nil {
			return err
		}
	} else if _, err := requireAdmin(ctx, s.store, groupID, callerID); err != nil {
		return err
	}

	m, err := s.store.GetMembership(ctx, groupID, targetID)
	if err != nil {
		return storageError(ctx, "GetMembership", "User is not a member of this group", err)
	}
	if m.IsAcceptedAdmin() {
		if err := s.ensureAnotherAdmin(ctx, groupID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteMembership(ctx, groupID, targetID); err != nil {
		return storageError(ctx, "DeleteMembership", "User is not a member of this group", err)
	}

	slog.InfoContext(ctx, "Member removed", "group_id", groupID, "user_id", targetID, "actor_id", callerID)
	publish(ctx, s.publisher, memberEvent(events.MemberRemoved, groupID, targetID, callerID))
	return nil
}

// ensureAnotherAdmin fails with Conflict when the group has a single
// administrator. Callers hold membershipMu.
func (s *MembershipService) ensureAnotherAdmin(ctx context.Context, groupID string) error {
	admins, err := s.store.CountAdministrators(ctx, groupID)
	if err != nil {
		return storageError(ctx, "CountAdministrators", "", err)
	}
	if admins <= 1 {
		slog.WarnContext(ctx, "Last administrator change rejected", "group_id", groupID)
		return apperr.New(apperr.Conflict, "A group needs at least one administrator. Appoint another administrator or delete the group.")
	}
	return nil
}

// ListMembers returns the group's accepted members and pending invitees with
// their flags, oldest membership first.
func (s *MembershipService) ListMembers(ctx context.Context, callerID, groupID string) ([]models.Member, error) {
	if _, err := requireMembership(ctx, s.store, groupID, callerID); err != nil {
		return nil, err
	}

	memberships, err := s.store.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, storageError(ctx, "ListMemberships", "", err)
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storageError(ctx, "GetUsersByIDs", "", err)
	}

	members := make([]models.Member, 0, len(memberships))
	for _, m := range memberships {
		user, ok := users[m.UserID]
		if !ok {
			continue
		}
		members = append(members, models.Member{User: user, Membership: m})
	}
	return members, nil
}

// PendingInvitations returns the groups the caller is invited to.
func (s *MembershipService) PendingInvitations(ctx context.Context, userID string) ([]*models.Group, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID, false)
	if err != nil {
		return nil, storageError(ctx, "ListGroupsForUser", "", err)
	}
	if groups == nil {
		groups = []*models.Group{}
	}
	return groups, nil
}

// Counts returns how many groups the caller belongs to and is invited to.
func (s *MembershipService) Counts(ctx context.Context, userID string) (MembershipCounts, error) {
	accepted, pending, err := s.store.CountMemberships(ctx, userID)
	if err != nil {
		return MembershipCounts{}, storageError(ctx, "CountMemberships", "", err)
	}
	return MembershipCounts{Accepted: accepted, Pending: pending}, nil
}

func memberEvent(kind events.Kind, groupID, userID, actorID string) events.Event {
	event := events.New(kind, groupID, actorID)
	event.UserID = userID
	return event
}
