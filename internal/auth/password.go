package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrWeakPassword       = errors.New("password is too short")
	ErrEmailExists        = errors.New("email already registered")
	ErrPseudonymExists    = errors.New("pseudonym already taken")
)

// DefaultMinPasswordLength is used when no minimum is configured.
const DefaultMinPasswordLength = 8

// UserStorage defines the interface for user persistence operations.
// This allows the authenticator to be independent of the storage implementation.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPseudonym(ctx context.Context, pseudonym string) (*models.User, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage   UserStorage
	minLength int
	cost      int
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage UserStorage, minLength int) *PasswordAuthenticator {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return &PasswordAuthenticator{
		storage:   storage,
		minLength: minLength,
		cost:      bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	a.cost = cost
	return a
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < a.minLength {
		return ErrWeakPassword
	}
	return nil
}

// HashCredential validates and hashes a password.
func (a *PasswordAuthenticator) HashCredential(credential string) (string, error) {
	if err := a.ValidateCredential(credential); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Register creates a new user account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, reg Registration, credential string) (*models.User, error) {
	hashed, err := a.HashCredential(credential)
	if err != nil {
		return nil, err
	}

	if _, err := a.storage.GetUserByEmail(ctx, reg.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if _, err := a.storage.GetUserByPseudonym(ctx, reg.Pseudonym); err == nil {
		return nil, ErrPseudonymExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	user := models.NewUser(reg.Pseudonym, reg.Email, hashed)
	user.Firstname = reg.Firstname
	user.Lastname = reg.Lastname
	user.IBAN = reg.IBAN

	if err := a.storage.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies the login and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, login, credential string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = a.storage.GetUserByEmail(ctx, login)
	} else {
		user, err = a.storage.GetUserByPseudonym(ctx, login)
	}
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
