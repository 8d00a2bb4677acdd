// Package respond writes JSON responses and the flat {"error": "..."} failure body.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mmynk/wolls/internal/apperr"
)

// GenericErrorMessage is shown when a failure has no user-facing message.
const GenericErrorMessage = "Something went wrong, please try again later"

// ErrorBody is the body of every non-2xx response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("respond: encode payload failed", "error", err)
	}
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a message with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// Err renders err according to its apperr kind. Unclassified errors are
// logged and replaced by a generic message.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.ErrorContext(r.Context(), "Unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, GenericErrorMessage)
		return
	}

	if appErr.Kind == apperr.Unknown {
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	message := appErr.Message
	if message == "" {
		message = GenericErrorMessage
	}
	JSON(w, appErr.Kind.HTTPStatus(), ErrorBody{Error: message, Details: appErr.Details})
}
