package models

// Group represents a shared-expense circle of users.
// Administrators are tracked on the Membership records, not on the group.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski trip").
	Name string

	Description string

	// Theme is an opaque client-side styling key.
	Theme string

	// CreatedBy is the user ID of the initial administrator.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}
