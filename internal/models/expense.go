package models

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAttachment is returned when an attachment has no filename or
	// its content is not valid base64.
	ErrInvalidAttachment = errors.New("invalid attachment")

	// ErrInvalidRecipient is returned when a refund recipient is missing,
	// duplicated, or not an accepted member of the expense's group.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// Expense represents a single payment made by one member on behalf of a set of recipients.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	GroupID string

	// CreatorID is the payer. Only the creator may edit or delete the expense.
	CreatorID string

	Title string

	// Amount is the positive total paid, with at most two decimal places.
	Amount decimal.Decimal

	Category Category

	// RefundRecipients are the user IDs sharing the expense, in the order given
	// by the creator. The order decides who absorbs rounding remainders.
	RefundRecipients []string

	// IsRefunded marks the expense as settled out-of-band.
	IsRefunded bool

	// Attachment is optional.
	Attachment *Attachment

	CreatedAt int64
	UpdatedAt int64
}

// Attachment is a file attached to an expense, kept as base64 text.
type Attachment struct {
	Filename string
	Content  string
}

// Validate checks the filename and base64 content.
func (a *Attachment) Validate() error {
	if strings.TrimSpace(a.Filename) == "" {
		return ErrInvalidAttachment
	}
	if _, err := base64.StdEncoding.DecodeString(a.Content); err != nil {
		return ErrInvalidAttachment
	}
	return nil
}

// HasRecipient reports whether userID is one of the expense recipients.
func (e *Expense) HasRecipient(userID string) bool {
	for _, r := range e.RefundRecipients {
		if r == userID {
			return true
		}
	}
	return false
}
