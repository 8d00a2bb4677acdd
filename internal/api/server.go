// Package api exposes the services as the /v1 JSON REST API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/middleware"
	"github.com/mmynk/wolls/internal/respond"
	"github.com/mmynk/wolls/internal/service"
)

// maxBodyBytes bounds request bodies. Attachments travel as base64 inside
// the JSON, so this is generous.
const maxBodyBytes = 10 << 20

// Services groups the use cases the API serves.
type Services struct {
	Users       *service.UserService
	Groups      *service.GroupService
	Memberships *service.MembershipService
	Expenses    *service.ExpenseService
	Ledger      *service.LedgerService
}

// Server routes HTTP requests to the services.
type Server struct {
	svc         Services
	requireAuth func(http.Handler) http.Handler
	mux         *http.ServeMux
	handler     http.Handler
}

// NewServer creates a Server with all routes registered. Session tokens are
// checked with jwtManager and must belong to an account users still has.
func NewServer(svc Services, jwtManager *auth.JWTManager, users middleware.UserLookup) *Server {
	s := &Server{
		svc:         svc,
		requireAuth: middleware.RequireAuth(jwtManager, users),
		mux:         http.NewServeMux(),
	}
	s.registerRoutes()
	s.handler = middleware.CORS(middleware.Logging(s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.requireAuth(h)
}

func (s *Server) registerRoutes() {
	// Ops
	s.mux.HandleFunc("GET /healthz", handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Users
	s.mux.HandleFunc("POST /v1/users", s.handleRegister)
	s.mux.HandleFunc("POST /v1/users/login", s.handleLogin)
	s.mux.Handle("GET /v1/users/me", s.authed(s.handleMe))
	s.mux.Handle("PATCH /v1/users/me", s.authed(s.handleUpdateProfile))
	s.mux.Handle("DELETE /v1/users/me", s.authed(s.handleDeleteAccount))

	// Groups
	s.mux.Handle("GET /v1/groups", s.authed(s.handleListGroups))
	s.mux.Handle("POST /v1/groups", s.authed(s.handleCreateGroup))
	s.mux.Handle("GET /v1/groups/{groupId}", s.authed(s.handleGetGroup))
	s.mux.Handle("PATCH /v1/groups/{groupId}", s.authed(s.handleUpdateGroup))
	s.mux.Handle("DELETE /v1/groups/{groupId}", s.authed(s.handleDeleteGroup))

	// Memberships (literal segments before wildcards)
	s.mux.Handle("GET /v1/groups/memberships/invitations", s.authed(s.handlePendingInvitations))
	s.mux.Handle("GET /v1/groups/memberships/count", s.authed(s.handleMembershipCounts))
	s.mux.Handle("GET /v1/groups/memberships/{groupId}", s.authed(s.handleListMembers))
	s.mux.Handle("GET /v1/groups/memberships/{groupId}/invitable", s.authed(s.handleSearchInvitable))
	s.mux.Handle("POST /v1/groups/memberships/{groupId}", s.authed(s.handleInvite))
	s.mux.Handle("PUT /v1/groups/memberships/{groupId}", s.authed(s.handleRespond))
	s.mux.Handle("PUT /v1/groups/memberships/{groupId}/{userId}", s.authed(s.handleSetAdministrator))
	s.mux.Handle("DELETE /v1/groups/memberships/{groupId}/{userId}", s.authed(s.handleExclude))

	// Expenses
	s.mux.Handle("POST /v1/expenses", s.authed(s.handleCreateExpense))
	s.mux.Handle("GET /v1/expenses/group/{groupId}", s.authed(s.handleListExpenses))
	s.mux.Handle("GET /v1/expenses/{expenseId}", s.authed(s.handleGetExpense))
	s.mux.Handle("PATCH /v1/expenses/{expenseId}", s.authed(s.handleUpdateExpense))
	s.mux.Handle("DELETE /v1/expenses/{expenseId}", s.authed(s.handleDeleteExpense))
	s.mux.Handle("DELETE /v1/expenses/{expenseId}/attachment", s.authed(s.handleDeleteAttachment))

	// Ledger
	s.mux.Handle("GET /v1/balances/{groupId}", s.authed(s.handleBalances))
	s.mux.Handle("GET /v1/refunds/{groupId}", s.authed(s.handleRefunds))

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Not found")
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(apperr.InvalidInput, "Request body is too large", err)
		}
		return apperr.Wrap(apperr.InvalidInput, "Invalid request body", err)
	}
	return nil
}
