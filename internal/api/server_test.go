package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/events"
	"github.com/mmynk/wolls/internal/service"
	"github.com/mmynk/wolls/internal/storage/sqlite"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	publisher := events.Noop{}
	authenticator := auth.NewPasswordAuthenticator(store, auth.DefaultMinPasswordLength).WithCost(bcrypt.MinCost)
	jwtManager := auth.NewJWTManager("api-test-secret-0123456789", time.Hour)

	srv := NewServer(Services{
		Users:       service.NewUserService(store, authenticator, jwtManager, publisher),
		Groups:      service.NewGroupService(store, publisher),
		Memberships: service.NewMembershipService(store, publisher),
		Expenses:    service.NewExpenseService(store, publisher),
		Ledger:      service.NewLedgerService(store),
	}, jwtManager, store)

	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)
	return server
}

type client struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

// do sends a JSON request and decodes the response into out when non-nil.
// It returns the status code.
func (c *client) do(method, path string, body, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		// Raw token, the way the mobile clients send it.
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) mustDo(method, path string, body, out any, want int) {
	c.t.Helper()
	var raw json.RawMessage
	if got := c.do(method, path, body, &raw); got != want {
		c.t.Fatalf("%s %s = %d, want %d (body %s)", method, path, got, want, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

// signUp registers and logs in a user, returning an authenticated client and the user ID.
func signUp(t *testing.T, server *httptest.Server, pseudonym string) (*client, string) {
	t.Helper()
	anon := &client{t: t, server: server}
	anon.mustDo("POST", "/v1/users", map[string]string{
		"pseudonym": pseudonym,
		"email":     pseudonym + "@example.com",
		"password":  "correct horse battery",
	}, nil, http.StatusCreated)

	var login struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	anon.mustDo("POST", "/v1/users/login", map[string]string{
		"login":    pseudonym,
		"password": "correct horse battery",
	}, &login, http.StatusOK)
	if login.Token == "" || login.User.ID == "" {
		t.Fatalf("login returned %+v", login)
	}
	return &client{t: t, server: server, token: login.Token}, login.User.ID
}

type errorBody struct {
	Error   string            `json:"error"`
	Details []json.RawMessage `json:"details"`
}

func TestAuthRequired(t *testing.T) {
	server := setupTestServer(t)
	anon := &client{t: t, server: server}

	var body errorBody
	if got := anon.do("GET", "/v1/groups", nil, &body); got != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", got)
	}
	if body.Error == "" {
		t.Error("401 must carry an error message")
	}

	bad := &client{t: t, server: server, token: "Bearer not-a-token"}
	if got := bad.do("GET", "/v1/users/me", nil, &body); got != http.StatusUnauthorized {
		t.Errorf("invalid token status = %d, want 401", got)
	}

	if got := anon.do("POST", "/v1/users/login", map[string]string{"login": "nobody", "password": "whatever1"}, &body); got != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", got)
	}

	if got := anon.do("GET", "/healthz", nil, nil); got != http.StatusOK {
		t.Errorf("healthz = %d", got)
	}
	if got := anon.do("GET", "/nope", nil, &body); got != http.StatusNotFound || body.Error == "" {
		t.Errorf("unknown route = %d %+v", got, body)
	}
}

func TestExpenseScenario(t *testing.T) {
	server := setupTestServer(t)
	alice, aliceID := signUp(t, server, "alice")
	bob, bobID := signUp(t, server, "bob")

	var group struct {
		ID string `json:"id"`
	}
	alice.mustDo("POST", "/v1/groups", map[string]string{"name": "Trip"}, &group, http.StatusCreated)

	var invite struct {
		Invited []struct {
			ID string `json:"id"`
		} `json:"invited"`
		Skipped []struct {
			Reason string `json:"reason"`
		} `json:"skipped"`
	}
	alice.mustDo("POST", "/v1/groups/memberships/"+group.ID, map[string]any{"pseudonyms": []string{"bob", "ghost"}}, &invite, http.StatusOK)
	if len(invite.Invited) != 1 || invite.Invited[0].ID != bobID || len(invite.Skipped) != 1 {
		t.Fatalf("unexpected invite result: %+v", invite)
	}

	var counts struct {
		Accepted int `json:"accepted"`
		Pending  int `json:"pending"`
	}
	bob.mustDo("GET", "/v1/groups/memberships/count", nil, &counts, http.StatusOK)
	if counts.Pending != 1 || counts.Accepted != 0 {
		t.Errorf("counts = %+v", counts)
	}

	bob.mustDo("PUT", "/v1/groups/memberships/"+group.ID, map[string]bool{"accept": true}, nil, http.StatusOK)
	var conflict errorBody
	bob.mustDo("PUT", "/v1/groups/memberships/"+group.ID, map[string]bool{"accept": true}, &conflict, http.StatusConflict)
	if conflict.Error == "" {
		t.Error("conflict must carry an error message")
	}

	var members []struct {
		ID                    string `json:"id"`
		IsAdministrator       bool   `json:"is_administrator"`
		HasAcceptedInvitation bool   `json:"has_accepted_invitation"`
	}
	bob.mustDo("GET", "/v1/groups/memberships/"+group.ID, nil, &members, http.StatusOK)
	if len(members) != 2 {
		t.Fatalf("members = %+v", members)
	}

	// Amount as a JSON number.
	var expense struct {
		ID               string   `json:"id"`
		Amount           float64  `json:"amount"`
		Category         string   `json:"category"`
		RefundRecipients []string `json:"refund_recipients"`
		Date             string   `json:"date"`
	}
	alice.mustDo("POST", "/v1/expenses", map[string]any{
		"group_id":          group.ID,
		"title":             "Fuel",
		"amount":            30.00,
		"category":          "Transport",
		"refund_recipients": []string{aliceID, bobID},
	}, &expense, http.StatusCreated)
	if expense.Amount != 30 || expense.Category != "Transport" || len(expense.RefundRecipients) != 2 {
		t.Errorf("unexpected expense: %+v", expense)
	}
	if _, err := time.Parse(time.RFC3339, expense.Date); err != nil {
		t.Errorf("date %q is not RFC 3339: %v", expense.Date, err)
	}

	var invalid errorBody
	alice.mustDo("POST", "/v1/expenses", map[string]any{
		"group_id": group.ID, "title": "Bad", "amount": "-1", "refund_recipients": []string{aliceID},
	}, &invalid, http.StatusBadRequest)

	title := "Stolen"
	bob.mustDo("PATCH", "/v1/expenses/"+expense.ID, map[string]any{"title": title}, nil, http.StatusForbidden)

	var balances []struct {
		ID       string          `json:"id"`
		Balance  json.RawMessage `json:"balance"`
		IsMember bool            `json:"is_member"`
	}
	bob.mustDo("GET", "/v1/balances/"+group.ID, nil, &balances, http.StatusOK)
	got := map[string]string{}
	for _, b := range balances {
		got[b.ID] = string(b.Balance)
	}
	if got[aliceID] != "15.00" || got[bobID] != "-15.00" {
		t.Errorf("balances = %v, want alice 15.00 and bob -15.00", got)
	}

	var simplified []struct {
		Creator   struct{ ID string } `json:"creator"`
		Recipient struct{ ID string } `json:"recipient"`
		Amount    json.RawMessage     `json:"amount"`
	}
	alice.mustDo("GET", "/v1/refunds/"+group.ID+"?simplified=true", nil, &simplified, http.StatusOK)
	if len(simplified) != 1 || simplified[0].Creator.ID != aliceID || simplified[0].Recipient.ID != bobID || string(simplified[0].Amount) != "15.00" {
		t.Errorf("simplified = %+v", simplified)
	}

	var detailed []struct {
		ExpenseID  string `json:"expense_id"`
		Recipients []struct {
			ID     string          `json:"id"`
			Amount json.RawMessage `json:"amount"`
			Self   bool            `json:"self"`
		} `json:"recipients"`
	}
	alice.mustDo("GET", "/v1/refunds/"+group.ID+"?simplified=false", nil, &detailed, http.StatusOK)
	if len(detailed) != 1 || detailed[0].ExpenseID != expense.ID || len(detailed[0].Recipients) != 2 {
		t.Fatalf("detailed = %+v", detailed)
	}
	if !detailed[0].Recipients[0].Self || string(detailed[0].Recipients[1].Amount) != "15.00" {
		t.Errorf("detailed recipients = %+v", detailed[0].Recipients)
	}

	alice.mustDo("GET", "/v1/refunds/"+group.ID+"?simplified=maybe", nil, nil, http.StatusBadRequest)

	// Excluding bob keeps his obligation visible.
	alice.mustDo("DELETE", "/v1/groups/memberships/"+group.ID+"/"+bobID, nil, nil, http.StatusNoContent)
	alice.mustDo("GET", "/v1/balances/"+group.ID, nil, &balances, http.StatusOK)
	for _, b := range balances {
		if b.ID == bobID && b.IsMember {
			t.Error("excluded bob must have is_member=false")
		}
	}
	bob.mustDo("GET", "/v1/balances/"+group.ID, nil, nil, http.StatusForbidden)
}

func TestDeleteAccountSoleAdministrator(t *testing.T) {
	server := setupTestServer(t)
	alice, _ := signUp(t, server, "alice")
	bob, _ := signUp(t, server, "bob")

	var group struct {
		ID string `json:"id"`
	}
	alice.mustDo("POST", "/v1/groups", map[string]string{"name": "Flat"}, &group, http.StatusCreated)
	alice.mustDo("POST", "/v1/groups/memberships/"+group.ID, map[string]any{"pseudonyms": []string{"bob"}}, nil, http.StatusOK)
	bob.mustDo("PUT", "/v1/groups/memberships/"+group.ID, map[string]bool{"accept": true}, nil, http.StatusOK)

	var body errorBody
	alice.mustDo("DELETE", "/v1/users/me", nil, &body, http.StatusConflict)
	if len(body.Details) != 1 || !strings.Contains(string(body.Details[0]), group.ID) {
		t.Errorf("details = %s, want group %s", body.Details, group.ID)
	}

	bob.mustDo("DELETE", "/v1/users/me", nil, nil, http.StatusNoContent)
	alice.mustDo("DELETE", "/v1/users/me", nil, nil, http.StatusNoContent)

	// The deleted account's token no longer opens a session.
	alice.mustDo("GET", "/v1/users/me", nil, &body, http.StatusUnauthorized)
	alice.mustDo("POST", "/v1/groups", map[string]string{"name": "Ghost town"}, &body, http.StatusUnauthorized)
	if body.Error == "" {
		t.Error("401 must carry an error message")
	}
}
