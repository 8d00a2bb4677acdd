package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/wolls/internal/models"
)

// RefundDetailed is the per-expense breakdown of who owes the creator what.
type RefundDetailed struct {
	ExpenseID string
	Title     string
	Category  models.Category
	CreatorID string
	Amount    decimal.Decimal
	CreatedAt int64

	// Shares lists every recipient in expense order, the creator's own share included.
	Shares []Share
}

// RefundSimplified is the net amount RecipientID owes CreatorID across all
// expenses between the two.
type RefundSimplified struct {
	CreatorID   string // Who is owed
	RecipientID string // Who owes
	Amount      decimal.Decimal
}

// pair is an unordered pair of users, stored with a < b.
type pair struct{ a, b string }

// DetailedRefunds returns one record per unrefunded expense, in input order.
func DetailedRefunds(expenses []*models.Expense) ([]RefundDetailed, error) {
	var out []RefundDetailed
	for _, e := range expenses {
		if e.IsRefunded {
			continue
		}
		shares, err := SplitEqually(e.Amount, e.RefundRecipients)
		if err != nil {
			return nil, fmt.Errorf("failed to split expense %s: %w", e.ID, err)
		}
		out = append(out, RefundDetailed{
			ExpenseID: e.ID,
			Title:     e.Title,
			Category:  e.Category,
			CreatorID: e.CreatorID,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt,
			Shares:    shares,
		})
	}
	return out, nil
}

// SimplifiedRefunds nets obligations pairwise.
//
// If A owes B 10 through one expense and B owes A 4 through another, the
// result is a single record saying A owes B 6. This is not a multi-party
// minimisation: A never ends up owing C because of what B owes C.
// Records are sorted by creator, then recipient.
func SimplifiedRefunds(expenses []*models.Expense) ([]RefundSimplified, error) {
	// net[p] > 0 means p.a owes p.b, in cents.
	net := make(map[pair]int64)

	for _, e := range expenses {
		if e.IsRefunded {
			continue
		}
		shares, err := SplitEqually(e.Amount, e.RefundRecipients)
		if err != nil {
			return nil, fmt.Errorf("failed to split expense %s: %w", e.ID, err)
		}
		for _, s := range shares {
			if s.UserID == e.CreatorID {
				continue
			}
			c := models.Cents(s.Amount)
			if s.UserID < e.CreatorID {
				net[pair{s.UserID, e.CreatorID}] += c
			} else {
				net[pair{e.CreatorID, s.UserID}] -= c
			}
		}
	}

	var out []RefundSimplified
	for p, c := range net {
		switch {
		case c > 0:
			out = append(out, RefundSimplified{CreatorID: p.b, RecipientID: p.a, Amount: models.FromCents(c)})
		case c < 0:
			out = append(out, RefundSimplified{CreatorID: p.a, RecipientID: p.b, Amount: models.FromCents(-c)})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatorID != out[j].CreatorID {
			return out[i].CreatorID < out[j].CreatorID
		}
		return out[i].RecipientID < out[j].RecipientID
	})
	return out, nil
}
