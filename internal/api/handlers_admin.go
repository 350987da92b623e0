/**
 * @description
 * This file contains the HTTP handlers for the administrative API endpoints:
 * account CRUD, lock management, PIN reset, and withdraw-limit changes. The
 * routes are mounted behind the admin-role middleware; the service re-checks
 * the role on every call.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - github.com/shopspring/decimal: Limit parsing.
 * - internal/app: Administrative service operations.
 */
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/app"
)

// ListAccountsHandler returns every account ordered by card number.
func (h *Handlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), session)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

// CreateAccountHandler creates a new customer account.
func (h *Handlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var input app.CreateAccountInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.service.CreateAccount(r.Context(), session, input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// UpdateAccountHandler changes profile fields of an account.
func (h *Handlers) UpdateAccountHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var input app.UpdateAccountInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.service.UpdateAccount(r.Context(), session, chi.URLParam(r, "card"), input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// DeleteAccountHandler removes a customer account and its history.
func (h *Handlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAccount(r.Context(), session, chi.URLParam(r, "card")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

// LockAccountHandler locks or unlocks an account.
func (h *Handlers) LockAccountHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.service.SetAccountLockStatus(r.Context(), session, chi.URLParam(r, "card"), req.Locked)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

type resetPinRequest struct {
	PIN string `json:"pin"`
}

// ResetPinHandler assigns a new PIN with a fresh salt.
func (h *Handlers) ResetPinHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req resetPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ResetPin(r.Context(), session, chi.URLParam(r, "card"), req.PIN); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "pin_reset"})
}

type withdrawLimitRequest struct {
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
}

// SetWithdrawLimitHandler changes the per-transaction withdraw limit.
func (h *Handlers) SetWithdrawLimitHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req withdrawLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.service.SetWithdrawLimit(r.Context(), session, chi.URLParam(r, "card"), req.WithdrawLimit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}
