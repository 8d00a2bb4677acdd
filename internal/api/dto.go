package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/service"
)

// money renders a decimal as a JSON number with exactly two decimals.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

// amountText accepts an amount as a JSON number or string and keeps the
// text for models.ParseAmount.
type amountText string

func (a *amountText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("amount must be a number")
	}
	*a = amountText(n.String())
	return nil
}

func timestamp(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}

// Users

type registerRequest struct {
	Pseudonym string `json:"pseudonym"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	IBAN      string `json:"iban"`
	Password  string `json:"password"`
}

type loginRequest struct {
	// Login is an email address or a pseudonym.
	Login     string `json:"login"`
	Email     string `json:"email"`
	Pseudonym string `json:"pseudonym"`
	Password  string `json:"password"`
}

type updateProfileRequest struct {
	Pseudonym *string `json:"pseudonym"`
	Firstname *string `json:"firstname"`
	Lastname  *string `json:"lastname"`
	Email     *string `json:"email"`
	IBAN      *string `json:"iban"`
	Password  *string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Pseudonym string    `json:"pseudonym"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	Email     string    `json:"email"`
	IBAN      string    `json:"iban"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Pseudonym: u.Pseudonym,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
		IBAN:      u.IBAN,
		CreatedAt: timestamp(u.CreatedAt),
	}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// userSummary is what other group members see of a user.
type userSummary struct {
	ID        string `json:"id"`
	Pseudonym string `json:"pseudonym"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	IBAN      string `json:"iban"`
}

func toUserSummary(u *models.User) userSummary {
	return userSummary{ID: u.ID, Pseudonym: u.Pseudonym, Firstname: u.Firstname, Lastname: u.Lastname, IBAN: u.IBAN}
}

func toUserSummaries(users []*models.User) []userSummary {
	out := make([]userSummary, len(users))
	for i, u := range users {
		out[i] = toUserSummary(u)
	}
	return out
}

// Groups

type groupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Theme       *string `json:"theme"`
}

type groupResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Theme       string    `json:"theme"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toGroupResponse(g *models.Group) groupResponse {
	return groupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Theme:       g.Theme,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   timestamp(g.CreatedAt),
	}
}

func toGroupResponses(groups []*models.Group) []groupResponse {
	out := make([]groupResponse, len(groups))
	for i, g := range groups {
		out[i] = toGroupResponse(g)
	}
	return out
}

// Memberships

type inviteRequest struct {
	Pseudonyms []string `json:"pseudonyms"`
}

type respondRequest struct {
	Accept *bool `json:"accept"`
}

type setAdministratorRequest struct {
	IsAdministrator *bool `json:"is_administrator"`
}

type membershipResponse struct {
	GroupID               string `json:"group_id"`
	UserID                string `json:"user_id"`
	IsAdministrator       bool   `json:"is_administrator"`
	HasAcceptedInvitation bool   `json:"has_accepted_invitation"`
	HasPendingInvitation  bool   `json:"has_pending_invitation"`
}

func toMembershipResponse(m *models.Membership) membershipResponse {
	return membershipResponse{
		GroupID:               m.GroupID,
		UserID:                m.UserID,
		IsAdministrator:       m.IsAdministrator,
		HasAcceptedInvitation: m.HasAcceptedInvitation,
		HasPendingInvitation:  m.HasPendingInvitation,
	}
}

type memberResponse struct {
	userSummary
	IsAdministrator       bool `json:"is_administrator"`
	HasAcceptedInvitation bool `json:"has_accepted_invitation"`
	HasPendingInvitation  bool `json:"has_pending_invitation"`
}

func toMemberResponses(members []models.Member) []memberResponse {
	out := make([]memberResponse, len(members))
	for i, m := range members {
		out[i] = memberResponse{
			userSummary:           toUserSummary(m.User),
			IsAdministrator:       m.Membership.IsAdministrator,
			HasAcceptedInvitation: m.Membership.HasAcceptedInvitation,
			HasPendingInvitation:  m.Membership.HasPendingInvitation,
		}
	}
	return out
}

type inviteSkipResponse struct {
	Pseudonym string `json:"pseudonym"`
	Reason    string `json:"reason"`
}

type inviteResponse struct {
	Invited []userSummary        `json:"invited"`
	Skipped []inviteSkipResponse `json:"skipped"`
}

func toInviteResponse(res *service.InviteResult) inviteResponse {
	skipped := make([]inviteSkipResponse, len(res.Skipped))
	for i, s := range res.Skipped {
		skipped[i] = inviteSkipResponse{Pseudonym: s.Pseudonym, Reason: s.Reason}
	}
	return inviteResponse{Invited: toUserSummaries(res.Invited), Skipped: skipped}
}

type countsResponse struct {
	Accepted int `json:"accepted"`
	Pending  int `json:"pending"`
}

// Expenses

type attachmentJSON struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (a *attachmentJSON) model() *models.Attachment {
	if a == nil {
		return nil
	}
	return &models.Attachment{Filename: a.Filename, Content: a.Content}
}

type createExpenseRequest struct {
	GroupID          string          `json:"group_id"`
	Title            string          `json:"title"`
	Amount           amountText      `json:"amount"`
	Category         string          `json:"category"`
	RefundRecipients []string        `json:"refund_recipients"`
	Attachment       *attachmentJSON `json:"attachment"`
}

type updateExpenseRequest struct {
	Title            *string         `json:"title"`
	Amount           *amountText     `json:"amount"`
	Category         *string         `json:"category"`
	RefundRecipients *[]string       `json:"refund_recipients"`
	IsRefunded       *bool           `json:"is_refunded"`
	Attachment       *attachmentJSON `json:"attachment"`
}

func (req *updateExpenseRequest) update() service.ExpenseUpdate {
	update := service.ExpenseUpdate{
		Title:      req.Title,
		Category:   req.Category,
		IsRefunded: req.IsRefunded,
		Attachment: req.Attachment.model(),
	}
	if req.Amount != nil {
		amount := string(*req.Amount)
		update.Amount = &amount
	}
	if req.RefundRecipients != nil {
		update.RefundRecipients = *req.RefundRecipients
		if update.RefundRecipients == nil {
			update.RefundRecipients = []string{}
		}
	}
	return update
}

type expenseResponse struct {
	ID               string          `json:"id"`
	GroupID          string          `json:"group_id"`
	CreatorID        string          `json:"creator_id"`
	Title            string          `json:"title"`
	Amount           money           `json:"amount"`
	Category         models.Category `json:"category"`
	RefundRecipients []string        `json:"refund_recipients"`
	IsRefunded       bool            `json:"is_refunded"`
	Attachment       *attachmentJSON `json:"attachment"`
	Date             time.Time       `json:"date"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toExpenseResponse(e *models.Expense) expenseResponse {
	resp := expenseResponse{
		ID:               e.ID,
		GroupID:          e.GroupID,
		CreatorID:        e.CreatorID,
		Title:            e.Title,
		Amount:           money(e.Amount),
		Category:         e.Category,
		RefundRecipients: e.RefundRecipients,
		IsRefunded:       e.IsRefunded,
		Date:             timestamp(e.CreatedAt),
		UpdatedAt:        timestamp(e.UpdatedAt),
	}
	if resp.RefundRecipients == nil {
		resp.RefundRecipients = []string{}
	}
	if e.Attachment != nil {
		resp.Attachment = &attachmentJSON{Filename: e.Attachment.Filename, Content: e.Attachment.Content}
	}
	return resp
}

func toExpenseResponses(expenses []*models.Expense) []expenseResponse {
	out := make([]expenseResponse, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseResponse(e)
	}
	return out
}

// Ledger

type participantResponse struct {
	ID          string `json:"id"`
	Pseudonym   string `json:"pseudonym"`
	DisplayName string `json:"display_name"`
	IsMember    bool   `json:"is_member"`
}

func toParticipant(p service.Participant) participantResponse {
	return participantResponse{ID: p.UserID, Pseudonym: p.Pseudonym, DisplayName: p.DisplayName, IsMember: p.IsMember}
}

type balanceResponse struct {
	participantResponse
	Balance   money `json:"balance"`
	TotalPaid money `json:"total_paid"`
	TotalOwed money `json:"total_owed"`
}

func toBalanceResponses(balances []service.Balance) []balanceResponse {
	out := make([]balanceResponse, len(balances))
	for i, b := range balances {
		out[i] = balanceResponse{
			participantResponse: toParticipant(b.Participant),
			Balance:             money(b.NetBalance),
			TotalPaid:           money(b.TotalPaid),
			TotalOwed:           money(b.TotalOwed),
		}
	}
	return out
}

type simplifiedRefundResponse struct {
	Creator   participantResponse `json:"creator"`
	Recipient participantResponse `json:"recipient"`
	Amount    money               `json:"amount"`
}

func toSimplifiedRefunds(refunds []service.SimplifiedRefund) []simplifiedRefundResponse {
	out := make([]simplifiedRefundResponse, len(refunds))
	for i, r := range refunds {
		out[i] = simplifiedRefundResponse{
			Creator:   toParticipant(r.Creator),
			Recipient: toParticipant(r.Recipient),
			Amount:    money(r.Amount),
		}
	}
	return out
}

type refundShareResponse struct {
	participantResponse
	Amount money `json:"amount"`
	Self   bool  `json:"self"`
}

type detailedRefundResponse struct {
	ExpenseID  string                `json:"expense_id"`
	Title      string                `json:"title"`
	Category   models.Category       `json:"category"`
	Amount     money                 `json:"amount"`
	Date       time.Time             `json:"date"`
	Creator    participantResponse   `json:"creator"`
	Recipients []refundShareResponse `json:"recipients"`
}

func toDetailedRefunds(refunds []service.DetailedRefund) []detailedRefundResponse {
	out := make([]detailedRefundResponse, len(refunds))
	for i, r := range refunds {
		shares := make([]refundShareResponse, len(r.Shares))
		for j, s := range r.Shares {
			shares[j] = refundShareResponse{
				participantResponse: toParticipant(s.Participant),
				Amount:              money(s.Amount),
				Self:                s.Self,
			}
		}
		out[i] = detailedRefundResponse{
			ExpenseID:  r.ExpenseID,
			Title:      r.Title,
			Category:   r.Category,
			Amount:     money(r.Amount),
			Date:       timestamp(r.CreatedAt),
			Creator:    toParticipant(r.Creator),
			Recipients: shares,
		}
	}
	return out
}
