package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/app"
	"github.com/transfa/atm-service/internal/domain"
	"github.com/transfa/atm-service/internal/ledger"
	"github.com/transfa/atm-service/internal/store"
	"github.com/transfa/atm-service/pkg/pinhash"
)

const testCard = "1234567890123456"

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryAccountStore) {
	t.Helper()
	accounts := store.NewMemoryAccountStore()
	history := ledger.NewMemoryLedger()
	service := app.NewService(accounts, history, nil, app.Config{})
	issuer := NewTokenIssuer("test-secret", 30*time.Minute)
	handlers := NewHandlers(service, issuer)

	server := httptest.NewServer(Routes(handlers, issuer))
	t.Cleanup(server.Close)
	return server, accounts
}

func seedAccount(t *testing.T, accounts *store.MemoryAccountStore, card, pin string, balance int64, admin bool) {
	t.Helper()
	salt, err := pinhash.GenerateSalt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	account := &domain.Account{
		CardNumber:    card,
		PINHash:       pinhash.Hash(pin, salt),
		PINSalt:       salt,
		HolderName:    "Test Holder",
		Balance:       decimal.NewFromInt(balance),
		WithdrawLimit: decimal.NewFromInt(200),
		Admin:         admin,
	}
	if err := accounts.Put(context.Background(), account); err != nil {
		t.Fatalf("unexpected error seeding account: %v", err)
	}
}

func login(t *testing.T, server *httptest.Server, card, pin string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"card_number": card, "pin": pin})
	resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("unexpected error decoding login response: %v", err)
	}
	if payload.Token == "" {
		t.Fatalf("login must return a session token")
	}
	return payload.Token
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func TestLoginAndWithdrawFlow(t *testing.T) {
	server, accounts := newTestServer(t)
	seedAccount(t, accounts, testCard, "1234", 500, false)

	token := login(t, server, testCard, "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/accounts/me/withdraw", token, map[string]interface{}{"amount": "150"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var tx domain.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if tx.Type != domain.TypeWithdrawal {
		t.Fatalf("expected a withdrawal record, got %s", tx.Type)
	}
	if !tx.BalanceAfter.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected balance_after 350, got %s", tx.BalanceAfter)
	}
}

func TestLoginFailureIs401(t *testing.T) {
	server, accounts := newTestServer(t)
	seedAccount(t, accounts, testCard, "1234", 500, false)

	body, _ := json.Marshal(map[string]string{"card_number": testCard, "pin": "9999"})
	resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLockoutAnswers423WithRetryAfter(t *testing.T) {
	server, accounts := newTestServer(t)
	seedAccount(t, accounts, testCard, "1234", 500, false)

	var last *http.Response
	for i := 0; i < domain.DefaultMaxFailedLoginAttempts; i++ {
		if last != nil {
			last.Body.Close()
		}
		body, _ := json.Marshal(map[string]string{"card_number": testCard, "pin": "9999"})
		resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last = resp
	}
	defer last.Body.Close()

	if last.StatusCode != http.StatusLocked {
		t.Fatalf("expected 423 once the lockout trips, got %d", last.StatusCode)
	}
	if last.Header.Get("Retry-After") == "" {
		t.Fatalf("lockout response must carry a Retry-After header")
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/accounts/me/transactions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRejectCustomerToken(t *testing.T) {
	server, accounts := newTestServer(t)
	seedAccount(t, accounts, testCard, "1234", 500, false)
	token := login(t, server, testCard, "1234")

	resp := doJSON(t, http.MethodGet, server.URL+"/admin/accounts/", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAdminCreatesAndLocksAccount(t *testing.T) {
	server, accounts := newTestServer(t)
	seedAccount(t, accounts, store.AdminCardNumber, "8888", 50000, true)
	adminToken := login(t, server, store.AdminCardNumber, "8888")

	resp := doJSON(t, http.MethodPost, server.URL+"/admin/accounts/", adminToken, map[string]interface{}{
		"card_number":    testCard,
		"pin":            "1234",
		"holder_name":    "Alice Zhang",
		"balance":        "500",
		"withdraw_limit": "200",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	lockURL := fmt.Sprintf("%s/admin/accounts/%s/lock", server.URL, testCard)
	resp = doJSON(t, http.MethodPut, lockURL, adminToken, map[string]bool{"locked": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The locked customer cannot log in.
	body, _ := json.Marshal(map[string]string{"card_number": testCard, "pin": "1234"})
	loginResp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusLocked {
		t.Fatalf("expected 423 for a locked account, got %d", loginResp.StatusCode)
	}
}

func TestInsufficientFundsIs422(t *testing.T) {
	server, accounts := newTestServer(t)
	seedAccount(t, accounts, testCard, "1234", 100, false)
	token := login(t, server, testCard, "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/accounts/me/withdraw", token, map[string]interface{}{"amount": "150"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
