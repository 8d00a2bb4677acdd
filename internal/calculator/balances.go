package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/wolls/internal/models"
)

// MemberBalance represents the balance information for one user in a group.
type MemberBalance struct {
	UserID     string
	NetBalance decimal.Decimal // Positive = owed money, Negative = owes money
	TotalPaid  decimal.Decimal // Sum of amounts of expenses this user created
	TotalOwed  decimal.Decimal // Sum of this user's shares, own expenses included
}

// CalculateBalances computes every user's net position from the group's expenses.
//
// net = paid - owed, which equals what others owe the user as creator minus
// what the user owes other creators, since a creator's own share cancels out.
// Every user that appears as creator or recipient of an unrefunded expense is
// included. The net balances always sum to zero.
//
// Results are sorted by net balance descending, then user ID.
func CalculateBalances(expenses []*models.Expense) ([]MemberBalance, error) {
	paid := make(map[string]int64)
	owed := make(map[string]int64)

	for _, e := range expenses {
		if e.IsRefunded {
			continue
		}
		shares, err := SplitEqually(e.Amount, e.RefundRecipients)
		if err != nil {
			return nil, fmt.Errorf("failed to split expense %s: %w", e.ID, err)
		}
		paid[e.CreatorID] += models.Cents(e.Amount)
		for _, s := range shares {
			owed[s.UserID] += models.Cents(s.Amount)
			if _, ok := paid[s.UserID]; !ok {
				paid[s.UserID] = 0
			}
		}
	}

	balances := make([]MemberBalance, 0, len(paid))
	nets := make(map[string]int64, len(paid))
	for userID, p := range paid {
		nets[userID] = p - owed[userID]
		balances = append(balances, MemberBalance{
			UserID:     userID,
			NetBalance: models.FromCents(p - owed[userID]),
			TotalPaid:  models.FromCents(p),
			TotalOwed:  models.FromCents(owed[userID]),
		})
	}

	sort.Slice(balances, func(i, j int) bool {
		ni, nj := nets[balances[i].UserID], nets[balances[j].UserID]
		if ni != nj {
			return ni > nj
		}
		return balances[i].UserID < balances[j].UserID
	})
	return balances, nil
}
