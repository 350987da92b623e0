/**
 * @description
 * This file defines the Ledger interface, the append-only transaction history
 * consumed by the service and analytics layers. Entries are created exactly
 * once per completed operation and never updated; the only removal path is
 * clearing a card's history when the account itself is deleted.
 *
 * @notes
 * - Append is variadic so that operations producing multiple records (a
 *   transfer writes one per side) persist them all-or-nothing.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: Transaction model.
 */
package ledger

import (
	"context"
	"errors"

	"github.com/transfa/atm-service/internal/domain"
)

// ErrEmptyAppend is returned when Append is called with no transactions.
var ErrEmptyAppend = errors.New("no transactions to append")

// Ledger is the append-only transaction history.
type Ledger interface {
	// Append durably records the given transactions in order, all-or-nothing.
	// A failure leaves the ledger unchanged.
	Append(ctx context.Context, txs ...*domain.Transaction) error

	// ForCard returns every transaction where the card is the source or the
	// transfer target, in insertion order.
	ForCard(ctx context.Context, cardNumber string) ([]domain.Transaction, error)

	// Recent returns up to count transactions for the card, newest first.
	// A non-positive count yields an empty slice.
	Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error)

	// RemoveForCard deletes every transaction whose source is the card. It is
	// called only when the account is deleted.
	RemoveForCard(ctx context.Context, cardNumber string) error
}

// recentOf extracts the newest-first prefix from an insertion-ordered history.
func recentOf(history []domain.Transaction, count int) []domain.Transaction {
	if count <= 0 {
		return []domain.Transaction{}
	}
	if count > len(history) {
		count = len(history)
	}
	out := make([]domain.Transaction, 0, count)
	for i := len(history) - 1; i >= len(history)-count; i-- {
		out = append(out, history[i])
	}
	return out
}

// involvesCard reports whether tx belongs to the card's history, either as the
// acting account or as the target of a transfer.
func involvesCard(tx *domain.Transaction, cardNumber string) bool {
	return tx.CardNumber == cardNumber || tx.TargetCardNumber == cardNumber
}
