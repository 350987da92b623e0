/**
 * @description
 * This file contains the HTTP handlers for the customer-facing API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/shopspring/decimal: Amount parsing.
 * - internal/app, internal/domain: Service logic and models.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/app"
	"github.com/transfa/atm-service/internal/domain"
)

// Handlers holds the application service and token issuer the handlers use.
type Handlers struct {
	service *app.Service
	tokens  *TokenIssuer
}

// NewHandlers creates the handler set for the router.
func NewHandlers(service *app.Service, tokens *TokenIssuer) *Handlers {
	return &Handlers{service: service, tokens: tokens}
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Lockout errors
// carry a Retry-After header with the remaining cool-down.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	var domErr *domain.Error
	if !errors.As(err, &domErr) {
		log.Printf("level=error component=api msg=\"internal error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch domErr.Code {
	case domain.CodeInvalidFormat:
		h.writeError(w, http.StatusBadRequest, domErr.Message)
	case domain.CodeNotFound:
		h.writeError(w, http.StatusNotFound, domErr.Message)
	case domain.CodeInsufficientFunds, domain.CodeLimitExceeded:
		h.writeError(w, http.StatusUnprocessableEntity, domErr.Message)
	case domain.CodeAccountLocked:
		h.writeError(w, http.StatusLocked, domErr.Message)
	case domain.CodeTemporarilyLocked:
		w.Header().Set("Retry-After", strconv.Itoa(int(domErr.RetryAfter/time.Second)+1))
		h.writeError(w, http.StatusLocked, domErr.Message)
	case domain.CodeDuplicateCard:
		h.writeError(w, http.StatusConflict, domErr.Message)
	case domain.CodeUnauthorized:
		h.writeError(w, http.StatusForbidden, domErr.Message)
	default:
		log.Printf("level=error component=api msg=\"persistence error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "session required")
	}
	return session, ok
}

type loginRequest struct {
	CardNumber string `json:"card_number"`
	PIN        string `json:"pin"`
}

type loginResponse struct {
	Token   string              `json:"token"`
	Profile *domain.LoginResult `json:"profile"`
}

// LoginHandler authenticates a card/PIN pair and issues a session token.
// Authentication failures answer 401 without revealing whether the card
// exists.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Login(r.Context(), req.CardNumber, req.PIN)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeDomainError(w, err)
		return
	}

	token, err := h.tokens.Issue(domain.Session{CardNumber: result.CardNumber, Admin: result.Admin})
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to issue session token\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, loginResponse{Token: token, Profile: result})
}

// BalanceHandler returns the current balance; the inquiry is recorded in the
// ledger.
func (h *Handlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	balance, err := h.service.BalanceInquiry(r.Context(), session)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"card_number": session.CardNumber,
		"balance":     balance,
	})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawHandler debits the session's account.
func (h *Handlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx, err := h.service.Withdraw(r.Context(), session, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// DepositHandler credits the session's account.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx, err := h.service.Deposit(r.Context(), session, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

type transferRequest struct {
	TargetCardNumber string          `json:"target_card_number"`
	Amount           decimal.Decimal `json:"amount"`
}

// TransferHandler moves funds to another account.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx, err := h.service.Transfer(r.Context(), session, req.TargetCardNumber, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

type changePinRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
	ConfirmPIN string `json:"confirm_pin"`
}

// ChangePinHandler replaces the session account's PIN.
func (h *Handlers) ChangePinHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req changePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ChangePin(r.Context(), session, req.CurrentPIN, req.NewPIN, req.ConfirmPIN); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "pin_changed"})
}

// TransactionsHandler returns the session account's history. With a `limit`
// query parameter, only the most recent entries are returned, newest first.
func (h *Handlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		txs []domain.Transaction
		err error
	)
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, parseErr := strconv.Atoi(limitParam)
		if parseErr != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		txs, err = h.service.Recent(r.Context(), session, limit)
	} else {
		txs, err = h.service.History(r.Context(), session)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}

// ForecastHandler projects the balance `days` ahead (default 7).
func (h *Handlers) ForecastHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	days := 7
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}
	predicted, err := h.service.PredictBalance(r.Context(), session, days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":              days,
		"predicted_balance": predicted,
	})
}

// ForecastMultiHandler runs one projection per comma-separated horizon.
func (h *Handlers) ForecastMultiHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	daysParam := r.URL.Query().Get("days")
	if daysParam == "" {
		h.writeError(w, http.StatusBadRequest, "days query parameter is required")
		return
	}
	var horizons []int
	for _, part := range strings.Split(daysParam, ",") {
		parsed, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "days must be a comma-separated list of integers")
			return
		}
		horizons = append(horizons, parsed)
	}
	predictions, err := h.service.PredictMultiDay(r.Context(), session, horizons)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": predictions})
}

// TrendHandler returns per-day inflow/outflow buckets over the last `days`
// days (default 30).
func (h *Handlers) TrendHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	days := 30
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}
	points, err := h.service.AccountTrend(r.Context(), session, days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	frequency, err := h.service.TransactionFrequency(r.Context(), session, days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":      days,
		"trend":     points,
		"frequency": frequency,
	})
}
