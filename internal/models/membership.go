package models

// MembershipState is the lifecycle position of a membership.
// A removed membership has no record at all, so it has no state value.
type MembershipState string

const (
	MembershipInvited  MembershipState = "invited"
	MembershipAccepted MembershipState = "accepted"
)

// Membership relates a User to a Group.
type Membership struct {
	GroupID string
	UserID  string

	IsAdministrator       bool
	HasAcceptedInvitation bool
	HasPendingInvitation  bool

	// InvitedBy is the administrator who sent the invitation.
	// Empty for the group creator.
	InvitedBy string

	CreatedAt int64
	UpdatedAt int64
}

// State derives the lifecycle state from the invitation flags.
func (m *Membership) State() MembershipState {
	if m.HasAcceptedInvitation {
		return MembershipAccepted
	}
	return MembershipInvited
}

// IsAcceptedAdmin reports whether the membership grants administrator rights.
// A pending invitation never does, even with the admin flag set.
func (m *Membership) IsAcceptedAdmin() bool {
	return m.HasAcceptedInvitation && m.IsAdministrator
}

// Member pairs a membership with its user for listings.
type Member struct {
	User       *User
	Membership *Membership
}
