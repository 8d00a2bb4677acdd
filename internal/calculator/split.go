// Package calculator derives refund obligations and balances from expenses.
//
// All arithmetic is done in integer cents so that shares always add back up to
// the expense amount and every group ledger sums to exactly zero.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/wolls/internal/models"
)

var (
	ErrNoRecipients       = errors.New("must have at least one recipient")
	ErrDuplicateRecipient = errors.New("duplicate recipient")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
)

// Share is one recipient's part of an expense.
type Share struct {
	UserID string
	Amount decimal.Decimal
}

// SplitEqually divides amount among recipients in whole cents.
//
// Every recipient gets floor(cents/n); the leftover cents are handed out one
// at a time to recipients in the order given, so 9.00 across three people is
// 3.00 each and 10.00 across three is 3.34, 3.33, 3.33.
func SplitEqually(amount decimal.Decimal, recipients []string) ([]Share, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	seen := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		if seen[r] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRecipient, r)
		}
		seen[r] = true
	}

	total := models.Cents(amount)
	n := int64(len(recipients))
	base := total / n
	remainder := total % n

	shares := make([]Share, len(recipients))
	for i, r := range recipients {
		c := base
		if int64(i) < remainder {
			c++
		}
		shares[i] = Share{UserID: r, Amount: models.FromCents(c)}
	}
	return shares, nil
}
