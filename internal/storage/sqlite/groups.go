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

const groupColumns = `g.id, g.name, g.description, g.theme, g.created_by, g.created_at`

func scanGroup(row rowScanner) (*models.Group, error) {
	group := &models.Group{}
	err := row.Scan(&group.ID, &group.Name, &group.Description, &group.Theme, &group.CreatedBy, &group.CreatedAt)
	return group, err
}

// CreateGroup persists a new group together with its first administrator.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group, adminID string) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.CreatedBy = adminID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, description, theme, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		group.ID, group.Name, group.Description, group.Theme, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memberships (group_id, user_id, is_administrator, has_accepted_invitation,
		 has_pending_invitation, invited_by, created_at, updated_at)
		 VALUES (?, ?, 1, 1, 0, '', ?, ?)`,
		group.ID, adminID, group.CreatedAt, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert administrator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := scanGroup(s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups g WHERE g.id = ?`, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// UpdateGroup updates the group's name, description and theme.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE groups SET name = ?, description = ?, theme = ? WHERE id = ?",
		group.Name, group.Description, group.Theme, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return expectOneRow(res, "group", group.ID)
}

// DeleteGroup removes a group. Memberships and expenses go with it by cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return expectOneRow(res, "group", groupID)
}

// ListGroupsForUser returns the user's accepted groups or pending invitations, newest first.
func (s *SQLiteStore) ListGroupsForUser(ctx context.Context, userID string, accepted bool) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM groups g
		 JOIN memberships m ON m.group_id = g.id
		 WHERE m.user_id = ? AND m.has_accepted_invitation = ?
		 ORDER BY g.created_at DESC, g.name`,
		userID, accepted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for user: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

const membershipColumns = `group_id, user_id, is_administrator, has_accepted_invitation,
	has_pending_invitation, invited_by, created_at, updated_at`

func scanMembership(row rowScanner) (*models.Membership, error) {
	m := &models.Membership{}
	err := row.Scan(&m.GroupID, &m.UserID, &m.IsAdministrator, &m.HasAcceptedInvitation,
		&m.HasPendingInvitation, &m.InvitedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetMembership retrieves the membership of a user in a group.
func (s *SQLiteStore) GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE group_id = ? AND user_id = ?`,
		groupID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %s/%s: %w", groupID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMemberships returns all memberships of a group, oldest first.
func (s *SQLiteStore) ListMemberships(ctx context.Context, groupID string) ([]*models.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE group_id = ? ORDER BY created_at, user_id`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}

// CreateMembership inserts a membership.
func (s *SQLiteStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	now := time.Now().Unix()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}
	m.UpdatedAt = m.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.GroupID, m.UserID, m.IsAdministrator, m.HasAcceptedInvitation,
		m.HasPendingInvitation, m.InvitedBy, m.CreatedAt, m.UpdatedAt,
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("failed to create membership: %w", storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// UpdateMembership overwrites the membership flags.
func (s *SQLiteStore) UpdateMembership(ctx context.Context, m *models.Membership) error {
	m.UpdatedAt = time.Now().Unix()

	res, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET is_administrator = ?, has_accepted_invitation = ?,
		 has_pending_invitation = ?, updated_at = ? WHERE group_id = ? AND user_id = ?`,
		m.IsAdministrator, m.HasAcceptedInvitation, m.HasPendingInvitation, m.UpdatedAt,
		m.GroupID, m.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return expectOneRow(res, "membership", m.GroupID+"/"+m.UserID)
}

// DeleteMembership removes a membership.
func (s *SQLiteStore) DeleteMembership(ctx context.Context, groupID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM memberships WHERE group_id = ? AND user_id = ?", groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return expectOneRow(res, "membership", groupID+"/"+userID)
}

// CountMemberships returns the user's accepted and pending membership counts.
func (s *SQLiteStore) CountMemberships(ctx context.Context, userID string) (int, int, error) {
	var accepted, pending int
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN has_accepted_invitation = 1 THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN has_pending_invitation = 1 THEN 1 ELSE 0 END), 0)
		 FROM memberships WHERE user_id = ?`,
		userID,
	).Scan(&accepted, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return accepted, pending, nil
}

// CountAdministrators counts the group's accepted administrators.
func (s *SQLiteStore) CountAdministrators(ctx context.Context, groupID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships
		 WHERE group_id = ? AND is_administrator = 1 AND has_accepted_invitation = 1`,
		groupID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count administrators: %w", err)
	}
	return n, nil
}
