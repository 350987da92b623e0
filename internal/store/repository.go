/**
 * @description
 * This file defines the AccountStore interface, the contract for keyed account
 * persistence consumed by the service layer. Defining an interface decouples
 * the business logic from the backing persistence (JSON file, memory,
 * PostgreSQL), which stays swappable for tests.
 *
 * All methods are synchronous and return a definite outcome; the store is the
 * single source of truth and every mutation is a load-modify-persist sequence
 * against it.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: Account model.
 */
package store

import (
	"context"
	"errors"

	"github.com/transfa/atm-service/internal/domain"
)

var (
	// ErrAccountNotFound is returned by Get and Remove when no account exists
	// for the given card number.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateCard is returned when a Put would create a second account
	// under a card number reserved by another record (PostgreSQL unique
	// violation mapping; the map-backed stores overwrite by design and never
	// return it from Put).
	ErrDuplicateCard = errors.New("card number already exists")

	// ErrInvalidAccount is returned when an account failing its structural
	// invariants is handed to Put.
	ErrInvalidAccount = errors.New("account data is invalid")
)

// AccountStore is the keyed lookup/persist/delete/list contract for accounts.
type AccountStore interface {
	// Get returns a copy of the account for the card number, or
	// ErrAccountNotFound.
	Get(ctx context.Context, cardNumber string) (*domain.Account, error)

	// Put inserts or overwrites the account keyed by its card number. The
	// write is durable before Put returns; on failure the previous state is
	// preserved.
	Put(ctx context.Context, account *domain.Account) error

	// Remove deletes the account, or returns ErrAccountNotFound.
	Remove(ctx context.Context, cardNumber string) error

	// List returns copies of all accounts ordered by card number.
	List(ctx context.Context) ([]domain.Account, error)

	// Exists reports whether an account is stored under the card number.
	Exists(ctx context.Context, cardNumber string) (bool, error)
}
