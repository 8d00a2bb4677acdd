package auth

import (
	"context"

	"github.com/mmynk/wolls/internal/models"
)

// Registration holds the profile a new account is created with.
type Registration struct {
	Pseudonym string
	Firstname string
	Lastname  string
	Email     string
	IBAN      string
}

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password,
// passkeys, OAuth, etc.) without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account with the given profile and credential.
	Register(ctx context.Context, reg Registration, credential string) (*models.User, error)

	// Authenticate verifies the credential for a login, which is either the
	// user's email or pseudonym.
	Authenticate(ctx context.Context, login, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error

	// HashCredential produces the stored form of a new credential.
	HashCredential(credential string) (string, error)
}
