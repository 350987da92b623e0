/**
 * @description
 * This file sets up the HTTP router for the ATM service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the middleware stack: logging, panic recovery, timeouts, CORS, and session
 * authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the ATM service.
func Routes(h *Handlers, issuer *TokenIssuer) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Post("/auth/login", h.LoginHandler)

	// Group routes that require a session token.
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(issuer))

		r.Route("/accounts/me", func(r chi.Router) {
			r.Get("/", h.BalanceHandler)
			r.Post("/withdraw", h.WithdrawHandler)
			r.Post("/deposit", h.DepositHandler)
			r.Post("/transfer", h.TransferHandler)
			r.Post("/pin", h.ChangePinHandler)
			r.Get("/transactions", h.TransactionsHandler)
			r.Get("/forecast", h.ForecastHandler)
			r.Get("/forecast/multi", h.ForecastMultiHandler)
			r.Get("/trend", h.TrendHandler)
		})

		// Administrative routes additionally require the admin role.
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Route("/admin/accounts", func(r chi.Router) {
				r.Get("/", h.ListAccountsHandler)
				r.Post("/", h.CreateAccountHandler)
				r.Put("/{card}", h.UpdateAccountHandler)
				r.Delete("/{card}", h.DeleteAccountHandler)
				r.Put("/{card}/lock", h.LockAccountHandler)
				r.Put("/{card}/pin", h.ResetPinHandler)
				r.Put("/{card}/withdraw-limit", h.SetWithdrawLimitHandler)
			})
		})
	})

	return r
}
