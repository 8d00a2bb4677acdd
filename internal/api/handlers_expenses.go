package api

import (
	"net/http"
	"strconv"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/middleware"
	"github.com/mmynk/wolls/internal/respond"
	"github.com/mmynk/wolls/internal/service"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	expense, err := s.svc.Expenses.CreateExpense(r.Context(), middleware.GetUserID(r.Context()), service.ExpenseInput{
		GroupID:          req.GroupID,
		Title:            req.Title,
		Amount:           string(req.Amount),
		Category:         req.Category,
		RefundRecipients: req.RefundRecipients,
		Attachment:       req.Attachment.model(),
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.svc.Expenses.ListExpenses(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toExpenseResponses(expenses))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.svc.Expenses.GetExpense(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("expenseId"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req updateExpenseRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	expense, err := s.svc.Expenses.UpdateExpense(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("expenseId"), req.update())
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.DeleteExpense(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("expenseId")); err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	expense, err := s.svc.Expenses.DeleteAttachment(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("expenseId"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.svc.Ledger.Balances(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toBalanceResponses(balances))
}

// handleRefunds serves simplified refunds unless ?simplified=false.
func (s *Server) handleRefunds(w http.ResponseWriter, r *http.Request) {
	simplified := true
	if v := r.URL.Query().Get("simplified"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respond.Err(w, r, apperr.New(apperr.InvalidInput, "Query parameter 'simplified' must be true or false"))
			return
		}
		simplified = parsed
	}

	userID, groupID := middleware.GetUserID(r.Context()), r.PathValue("groupId")
	if simplified {
		refunds, err := s.svc.Ledger.SimplifiedRefunds(r.Context(), userID, groupID)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, toSimplifiedRefunds(refunds))
		return
	}

	refunds, err := s.svc.Ledger.DetailedRefunds(r.Context(), userID, groupID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDetailedRefunds(refunds))
}
