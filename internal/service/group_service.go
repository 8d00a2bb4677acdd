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

const (
	maxGroupNameLength        = 100
	maxGroupDescriptionLength = 500
)

// GroupInput holds the fields of a new group.
type GroupInput struct {
	Name        string
	Description string
	Theme       string
}

// GroupUpdate holds the fields to change; nil fields are left as they are.
type GroupUpdate struct {
	Name        *string
	Description *string
	Theme       *string
}

// GroupService manages groups.
type GroupService struct {
	store     storage.Store
	publisher events.Publisher
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, publisher events.Publisher) *GroupService {
	return &GroupService{store: store, publisher: publisher}
}

// CreateGroup creates a group with the caller as its accepted administrator.
func (s *GroupService) CreateGroup(ctx context.Context, userID string, input GroupInput) (*models.Group, error) {
	group := &models.Group{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Theme:       strings.TrimSpace(input.Theme),
	}
	if err := validateGroup(group); err != nil {
		return nil, err
	}

	if err := s.store.CreateGroup(ctx, group, userID); err != nil {
		return nil, storageError(ctx, "CreateGroup", "", err)
	}

	slog.InfoContext(ctx, "Group created", "group_id", group.ID, "user_id", userID)
	publish(ctx, s.publisher, events.New(events.GroupCreated, group.ID, userID))
	return group, nil
}

// GetGroup returns a group the caller belongs to or is invited to.
func (s *GroupService) GetGroup(ctx context.Context, userID, groupID string) (*models.Group, error) {
	if _, err := requireMembership(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storageError(ctx, "GetGroup", "Group not found", err)
	}
	return group, nil
}

// ListGroups returns the groups where the caller is an accepted member.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]*models.Group, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID, true)
	if err != nil {
		return nil, storageError(ctx, "ListGroupsForUser", "", err)
	}
	if groups == nil {
		groups = []*models.Group{}
	}
	return groups, nil
}

// UpdateGroup changes a group's name, description or theme. Administrators only.
func (s *GroupService) UpdateGroup(ctx context.Context, userID, groupID string, update GroupUpdate) (*models.Group, error) {
	if _, err := requireAdmin(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storageError(ctx, "GetGroup", "Group not found", err)
	}

	if update.Name != nil {
		group.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		group.Description = strings.TrimSpace(*update.Description)
	}
	if update.Theme != nil {
		group.Theme = strings.TrimSpace(*update.Theme)
	}
	if err := validateGroup(group); err != nil {
		return nil, err
	}

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return nil, storageError(ctx, "UpdateGroup", "Group not found", err)
	}

	slog.InfoContext(ctx, "Group updated", "group_id", groupID, "user_id", userID)
	publish(ctx, s.publisher, events.New(events.GroupUpdated, groupID, userID))
	return group, nil
}

// DeleteGroup removes a group with its memberships and expenses. Administrators only.
func (s *GroupService) DeleteGroup(ctx context.Context, userID, groupID string) error {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	if _, err := requireAdmin(ctx, s.store, groupID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return storageError(ctx, "DeleteGroup", "Group not found", err)
	}

	slog.InfoContext(ctx, "Group deleted", "group_id", groupID, "user_id", userID)
	publish(ctx, s.publisher, events.New(events.GroupDeleted, groupID, userID))
	return nil
}

func validateGroup(g *models.Group) error {
	switch {
	case g.Name == "":
		return apperr.New(apperr.InvalidInput, "Group name is required")
	case len(g.Name) > maxGroupNameLength:
		return apperr.New(apperr.InvalidInput, "Group name is too long")
	case len(g.Description) > maxGroupDescriptionLength:
		return apperr.New(apperr.InvalidInput, "Group description is too long")
	}
	return nil
}
