package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/events"
	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

const (
	maxPseudonymLength = 32
	maxNameLength      = 64
	invitableLimit     = 20
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  *models.User
}

// ProfileUpdate holds the fields to change; nil fields are left as they are.
type ProfileUpdate struct {
	Pseudonym *string
	Firstname *string
	Lastname  *string
	Email     *string
	IBAN      *string
	Password  *string
}

// BlockingGroup is a group that prevents account deletion because the user
// is its only administrator and other members remain.
type BlockingGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserService manages accounts and sessions.
type UserService struct {
	store         storage.Store
	authenticator auth.Authenticator
	jwt           *auth.JWTManager
	publisher     events.Publisher
}

// NewUserService creates a new UserService.
func NewUserService(store storage.Store, authenticator auth.Authenticator, jwt *auth.JWTManager, publisher events.Publisher) *UserService {
	return &UserService{store: store, authenticator: authenticator, jwt: jwt, publisher: publisher}
}

// Register creates an account.
func (s *UserService) Register(ctx context.Context, reg auth.Registration, password string) (*models.User, error) {
	reg.Pseudonym = strings.TrimSpace(reg.Pseudonym)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Firstname = strings.TrimSpace(reg.Firstname)
	reg.Lastname = strings.TrimSpace(reg.Lastname)
	reg.IBAN = normalizeIBAN(reg.IBAN)

	if err := validatePseudonym(reg.Pseudonym); err != nil {
		return nil, err
	}
	if err := validateEmail(reg.Email); err != nil {
		return nil, err
	}
	if len(reg.Firstname) > maxNameLength || len(reg.Lastname) > maxNameLength {
		return nil, apperr.New(apperr.InvalidInput, "Name is too long")
	}

	user, err := s.authenticator.Register(ctx, reg, password)
	if err != nil {
		return nil, authError(ctx, err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "pseudonym", user.Pseudonym)
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *UserService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	user, err := s.authenticator.Authenticate(ctx, strings.TrimSpace(login), password)
	if err != nil {
		slog.WarnContext(ctx, "Login failed", "login", login)
		return nil, authError(ctx, err)
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to generate token", "user_id", user.ID, "error", err)
		return nil, apperr.Wrap(apperr.Unknown, "", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return &LoginResult{Token: token, User: user}, nil
}

// Me returns the caller's profile.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageError(ctx, "GetUserByID", "User not found", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's profile. Pseudonym and email stay unique.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageError(ctx, "GetUserByID", "User not found", err)
	}

	if update.Pseudonym != nil {
		pseudonym := strings.TrimSpace(*update.Pseudonym)
		if err := validatePseudonym(pseudonym); err != nil {
			return nil, err
		}
		if !strings.EqualFold(pseudonym, user.Pseudonym) {
			if err := s.ensureUnused(ctx, s.store.GetUserByPseudonym, pseudonym, userID, auth.ErrPseudonymExists); err != nil {
				return nil, err
			}
		}
		user.Pseudonym = pseudonym
	}
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if !strings.EqualFold(email, user.Email) {
			if err := s.ensureUnused(ctx, s.store.GetUserByEmail, email, userID, auth.ErrEmailExists); err != nil {
				return nil, err
			}
		}
		user.Email = email
	}
	if update.Firstname != nil {
		user.Firstname = strings.TrimSpace(*update.Firstname)
	}
	if update.Lastname != nil {
		user.Lastname = strings.TrimSpace(*update.Lastname)
	}
	if len(user.Firstname) > maxNameLength || len(user.Lastname) > maxNameLength {
		return nil, apperr.New(apperr.InvalidInput, "Name is too long")
	}
	if update.IBAN != nil {
		user.IBAN = normalizeIBAN(*update.IBAN)
	}
	if update.Password != nil {
		hashed, err := s.authenticator.HashCredential(*update.Password)
		if err != nil {
			return nil, authError(ctx, err)
		}
		user.PasswordHash = hashed
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperr.Wrap(apperr.Conflict, "Pseudonym or email already in use", err)
		}
		return nil, storageError(ctx, "UpdateUser", "User not found", err)
	}

	slog.InfoContext(ctx, "Profile updated", "user_id", userID)
	return user, nil
}

func (s *UserService) ensureUnused(ctx context.Context, lookup func(context.Context, string) (*models.User, error), value, userID string, taken error) error {
	other, err := lookup(ctx, value)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return storageError(ctx, "lookup user", "", err)
	case other.ID != userID:
		return apperr.Wrap(apperr.Conflict, capitalize(taken.Error()), taken)
	}
	return nil
}

// DeleteAccount removes the caller's account.
//
// Groups where the caller is the only accepted member are deleted along with
// the account. If the caller is the only administrator of a group that still
// has other accepted members, nothing is deleted and the error's Details list
// those groups so the caller can hand over administration first.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	membershipMu.Lock()
	defer membershipMu.Unlock()

	groups, err := s.store.ListGroupsForUser(ctx, userID, true)
	if err != nil {
		return storageError(ctx, "ListGroupsForUser", "", err)
	}

	var (
		blocking []BlockingGroup
		orphaned []string
	)
	for _, group := range groups {
		memberships, err := s.store.ListMemberships(ctx, group.ID)
		if err != nil {
			return storageError(ctx, "ListMemberships", "", err)
		}

		var self *models.Membership
		others, otherAdmins := 0, 0
		for _, m := range memberships {
			if m.UserID == userID {
				self = m
				continue
			}
			if m.HasAcceptedInvitation {
				others++
				if m.IsAdministrator {
					otherAdmins++
				}
			}
		}

		switch {
		case others == 0:
			orphaned = append(orphaned, group.ID)
		case self != nil && self.IsAcceptedAdmin() && otherAdmins == 0:
			blocking = append(blocking, BlockingGroup{ID: group.ID, Name: group.Name})
		}
	}

	if len(blocking) > 0 {
		slog.WarnContext(ctx, "Account deletion rejected: sole administrator", "user_id", userID, "groups", len(blocking))
		return &apperr.Error{
			Kind:    apperr.Conflict,
			Message: "You are the only administrator of groups with other members. Appoint another administrator or remove the members first.",
			Details: blocking,
		}
	}

	if err := s.store.DeleteUser(ctx, userID, orphaned); err != nil {
		return storageError(ctx, "DeleteUser", "User not found", err)
	}

	slog.InfoContext(ctx, "Account deleted", "user_id", userID, "groups_deleted", len(orphaned))
	for _, groupID := range orphaned {
		publish(ctx, s.publisher, events.New(events.GroupDeleted, groupID, userID))
	}
	publish(ctx, s.publisher, memberEvent(events.UserDeleted, "", userID, userID))
	return nil
}

// SearchInvitable returns users whose pseudonym starts with query and who
// have no membership in the group yet. Only administrators can invite, so
// only they can search.
func (s *UserService) SearchInvitable(ctx context.Context, userID, groupID, query string) ([]*models.User, error) {
	if _, err := requireAdmin(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.User{}, nil
	}

	memberships, err := s.store.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, storageError(ctx, "ListMemberships", "", err)
	}
	taken := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		taken[m.UserID] = true
	}

	// Over-fetch so filtering out members still fills the page.
	candidates, err := s.store.SearchUsers(ctx, query, invitableLimit+len(memberships))
	if err != nil {
		return nil, storageError(ctx, "SearchUsers", "", err)
	}

	users := make([]*models.User, 0, len(candidates))
	for _, u := range candidates {
		if taken[u.ID] {
			continue
		}
		users = append(users, u)
		if len(users) == invitableLimit {
			break
		}
	}
	return users, nil
}

// authError maps authenticator errors to apperr kinds.
func authError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperr.Wrap(apperr.Unauthenticated, "Invalid login or password", err)
	case errors.Is(err, auth.ErrWeakPassword):
		return apperr.Wrap(apperr.InvalidInput, "Password is too short", err)
	case errors.Is(err, auth.ErrEmailExists):
		return apperr.Wrap(apperr.Conflict, "Email already registered", err)
	case errors.Is(err, auth.ErrPseudonymExists):
		return apperr.Wrap(apperr.Conflict, "Pseudonym already taken", err)
	default:
		return storageError(ctx, "authenticate", "", err)
	}
}

func validatePseudonym(pseudonym string) error {
	if pseudonym == "" {
		return apperr.New(apperr.InvalidInput, "Pseudonym is required")
	}
	if len(pseudonym) > maxPseudonymLength {
		return apperr.New(apperr.InvalidInput, "Pseudonym is too long")
	}
	for _, r := range pseudonym {
		if unicode.IsSpace(r) || r == '@' {
			return apperr.New(apperr.InvalidInput, "Pseudonym cannot contain spaces or '@'")
		}
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.New(apperr.InvalidInput, "Invalid email address")
	}
	return nil
}

func normalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
