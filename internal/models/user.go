package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format). Immutable.
	ID string

	// Pseudonym is the unique public handle used to invite the user into groups.
	Pseudonym string

	Firstname string
	Lastname  string

	// Email is the user's email address (unique). Used for login.
	Email string

	// IBAN is the optional bank account other members refund to.
	IBAN string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a new User with a generated ID and timestamps.
func NewUser(pseudonym, email, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Pseudonym:    pseudonym,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// DisplayName returns "Firstname Lastname", falling back to the pseudonym.
func (u *User) DisplayName() string {
	switch {
	case u.Firstname != "" && u.Lastname != "":
		return u.Firstname + " " + u.Lastname
	case u.Firstname != "":
		return u.Firstname
	default:
		return u.Pseudonym
	}
}
