package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/wolls/internal/calculator"
	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/storage"
)

// formerMemberName is shown for users whose account no longer exists.
const formerMemberName = "Former member"

// Participant identifies a user in balances and refunds. IsMember is false for
// users who were excluded, left, or deleted their account; their obligations
// remain part of the group's ledger.
type Participant struct {
	UserID      string
	Pseudonym   string
	DisplayName string
	IsMember    bool
}

// Balance is a participant's net position in a group.
// Positive means others owe them, negative means they owe others.
type Balance struct {
	Participant
	NetBalance decimal.Decimal
	TotalPaid  decimal.Decimal
	TotalOwed  decimal.Decimal
}

// SimplifiedRefund says Recipient owes Creator Amount, net of everything
// between the two.
type SimplifiedRefund struct {
	Creator   Participant
	Recipient Participant
	Amount    decimal.Decimal
}

// RefundShare is one recipient's part of an expense.
type RefundShare struct {
	Participant
	Amount decimal.Decimal

	// Self marks the creator's own share, which is owed to nobody.
	Self bool
}

// DetailedRefund is the per-expense breakdown.
type DetailedRefund struct {
	ExpenseID string
	Title     string
	Category  models.Category
	Amount    decimal.Decimal
	CreatedAt int64
	Creator   Participant
	Shares    []RefundShare
}

// LedgerService derives balances and refunds from a group's expenses.
// Nothing is cached: every call recomputes from the stored expenses.
type LedgerService struct {
	store storage.Store
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(store storage.Store) *LedgerService {
	return &LedgerService{store: store}
}

// Balances returns every current member's balance, plus anyone else who
// still appears in an unrefunded expense. Sorted by net balance descending.
// The balances sum to zero.
func (s *LedgerService) Balances(ctx context.Context, userID, groupID string) ([]Balance, error) {
	snap, err := s.snapshot(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	computed, err := calculator.CalculateBalances(snap.expenses)
	if err != nil {
		return nil, storageError(ctx, "CalculateBalances", "", err)
	}

	balances := make([]Balance, 0, len(computed)+len(snap.members))
	seen := make(map[string]bool, len(computed))
	for _, b := range computed {
		seen[b.UserID] = true
		balances = append(balances, Balance{
			Participant: snap.participant(b.UserID),
			NetBalance:  b.NetBalance,
			TotalPaid:   b.TotalPaid,
			TotalOwed:   b.TotalOwed,
		})
	}
	for _, id := range snap.memberOrder {
		if seen[id] {
			continue
		}
		balances = append(balances, Balance{
			Participant: snap.participant(id),
			NetBalance:  decimal.Zero,
			TotalPaid:   decimal.Zero,
			TotalOwed:   decimal.Zero,
		})
	}

	sort.SliceStable(balances, func(i, j int) bool {
		if c := balances[i].NetBalance.Cmp(balances[j].NetBalance); c != 0 {
			return c > 0
		}
		return balances[i].UserID < balances[j].UserID
	})
	return balances, nil
}

// SimplifiedRefunds returns the pairwise-netted obligations of the group.
func (s *LedgerService) SimplifiedRefunds(ctx context.Context, userID, groupID string) ([]SimplifiedRefund, error) {
	snap, err := s.snapshot(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	computed, err := calculator.SimplifiedRefunds(snap.expenses)
	if err != nil {
		return nil, storageError(ctx, "SimplifiedRefunds", "", err)
	}

	refunds := make([]SimplifiedRefund, len(computed))
	for i, r := range computed {
		refunds[i] = SimplifiedRefund{
			Creator:   snap.participant(r.CreatorID),
			Recipient: snap.participant(r.RecipientID),
			Amount:    r.Amount,
		}
	}
	return refunds, nil
}

// DetailedRefunds returns one breakdown per unrefunded expense, newest first.
func (s *LedgerService) DetailedRefunds(ctx context.Context, userID, groupID string) ([]DetailedRefund, error) {
	snap, err := s.snapshot(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	computed, err := calculator.DetailedRefunds(snap.expenses)
	if err != nil {
		return nil, storageError(ctx, "DetailedRefunds", "", err)
	}

	refunds := make([]DetailedRefund, len(computed))
	for i, r := range computed {
		shares := make([]RefundShare, len(r.Shares))
		for j, sh := range r.Shares {
			shares[j] = RefundShare{
				Participant: snap.participant(sh.UserID),
				Amount:      sh.Amount,
				Self:        sh.UserID == r.CreatorID,
			}
		}
		refunds[i] = DetailedRefund{
			ExpenseID: r.ExpenseID,
			Title:     r.Title,
			Category:  r.Category,
			Amount:    r.Amount,
			CreatedAt: r.CreatedAt,
			Creator:   snap.participant(r.CreatorID),
			Shares:    shares,
		}
	}
	return refunds, nil
}

// ledgerSnapshot is what a single ledger request reads from storage.
type ledgerSnapshot struct {
	expenses    []*models.Expense
	members     map[string]bool
	memberOrder []string
	users       map[string]*models.User
}

func (s *LedgerService) snapshot(ctx context.Context, userID, groupID string) (*ledgerSnapshot, error) {
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, storageError(ctx, "ListExpensesByGroup", "", err)
	}
	memberships, err := s.store.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, storageError(ctx, "ListMemberships", "", err)
	}

	snap := &ledgerSnapshot{expenses: expenses, members: make(map[string]bool)}
	ids := make(map[string]bool)
	for _, m := range memberships {
		if !m.HasAcceptedInvitation {
			continue
		}
		snap.members[m.UserID] = true
		snap.memberOrder = append(snap.memberOrder, m.UserID)
		ids[m.UserID] = true
	}
	for _, e := range expenses {
		ids[e.CreatorID] = true
		for _, r := range e.RefundRecipients {
			ids[r] = true
		}
	}

	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	snap.users, err = s.store.GetUsersByIDs(ctx, idList)
	if err != nil {
		return nil, storageError(ctx, "GetUsersByIDs", "", err)
	}
	return snap, nil
}

func (snap *ledgerSnapshot) participant(userID string) Participant {
	p := Participant{UserID: userID, IsMember: snap.members[userID], DisplayName: formerMemberName}
	if u, ok := snap.users[userID]; ok {
		p.Pseudonym = u.Pseudonym
		p.DisplayName = u.DisplayName()
	}
	return p
}
