package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmynk/wolls/internal/apperr"
)

func TestErr(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"classified", apperr.New(apperr.NotFound, "Group not found"), http.StatusNotFound, "Group not found"},
		{"conflict", apperr.New(apperr.Conflict, "Invitation already answered"), http.StatusConflict, "Invitation already answered"},
		{"unclassified", errors.New("disk on fire"), http.StatusInternalServerError, GenericErrorMessage},
		{"empty message", apperr.New(apperr.Unknown, ""), http.StatusInternalServerError, GenericErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Err(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body ErrorBody
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.wantMessage {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMessage)
			}
		})
	}
}
