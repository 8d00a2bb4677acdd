package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/models"
	"github.com/mmynk/wolls/internal/respond"
	"github.com/mmynk/wolls/internal/storage"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"

	requestInfoKey contextKey = "request_info"
)

const sessionExpiredMessage = "Invalid or expired session, please log in again"

// UserLookup resolves the account behind a session token.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID returns a context carrying the authenticated user ID. The ID is
// also reported to an enclosing Logging middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, UserIDKey, userID)
}

// tokenFromHeader accepts both a raw token and "Bearer <token>".
func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// RequireAuth returns a middleware that validates the token in the
// Authorization header, checks that its account still exists and adds the
// user ID to the request context.
func RequireAuth(jwtManager *auth.JWTManager, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromHeader(r.Header.Get("Authorization"))
			if token == "" {
				respond.Error(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, sessionExpiredMessage)
				return
			}

			if _, err := users.GetUserByID(r.Context(), claims.UserID()); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					slog.WarnContext(r.Context(), "Token for deleted account rejected", "user_id", claims.UserID())
					respond.Error(w, http.StatusUnauthorized, sessionExpiredMessage)
					return
				}
				slog.ErrorContext(r.Context(), "Session user lookup failed", "error", err)
				respond.Error(w, http.StatusInternalServerError, respond.GenericErrorMessage)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID())))
		})
	}
}
