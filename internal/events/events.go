// Package events publishes notifications about ledger and membership changes
// so that other processes can drop anything they derived from the old state.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Kind is the routing key of an event.
type Kind string

const (
	ExpenseCreated    Kind = "ledger.expense.created"
	ExpenseUpdated    Kind = "ledger.expense.updated"
	ExpenseDeleted    Kind = "ledger.expense.deleted"
	GroupCreated      Kind = "group.created"
	GroupUpdated      Kind = "group.updated"
	GroupDeleted      Kind = "group.deleted"
	MemberInvited     Kind = "membership.invited"
	MemberAccepted    Kind = "membership.accepted"
	MemberDeclined    Kind = "membership.declined"
	MemberRoleChanged Kind = "membership.role_changed"
	MemberRemoved     Kind = "membership.removed"
	UserDeleted       Kind = "user.deleted"
)

// Event is a lightweight change notification. Consumers refetch the full
// state; events never carry amounts or balances.
type Event struct {
	Kind      Kind      `json:"kind"`
	GroupID   string    `json:"group_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ExpenseID string    `json:"expense_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event stamped with the current time.
func New(kind Kind, groupID, actorID string) Event {
	return Event{Kind: kind, GroupID: groupID, ActorID: actorID, Timestamp: time.Now().UTC()}
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
