/**
 * @description
 * This file provides the in-memory implementation of the Ledger interface,
 * used by tests and by the memory storage driver.
 *
 * @dependencies
 * - context, sync: Standard Go libraries.
 * - internal/domain: Transaction model.
 */
package ledger

import (
	"context"
	"sync"

	"github.com/transfa/atm-service/internal/domain"
)

// MemoryLedger is a slice-backed Ledger safe for concurrent use.
type MemoryLedger struct {
	mu      sync.RWMutex
	history []domain.Transaction
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Append implements Ledger.
func (l *MemoryLedger) Append(ctx context.Context, txs ...*domain.Transaction) error {
	if len(txs) == 0 {
		return ErrEmptyAppend
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range txs {
		l.history = append(l.history, *tx)
	}
	return nil
}

// ForCard implements Ledger.
func (l *MemoryLedger) ForCard(ctx context.Context, cardNumber string) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Transaction, 0)
	for i := range l.history {
		if involvesCard(&l.history[i], cardNumber) {
			out = append(out, l.history[i])
		}
	}
	return out, nil
}

// Recent implements Ledger.
func (l *MemoryLedger) Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error) {
	history, err := l.ForCard(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	return recentOf(history, count), nil
}

// RemoveForCard implements Ledger.
func (l *MemoryLedger) RemoveForCard(ctx context.Context, cardNumber string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.history[:0]
	for i := range l.history {
		if l.history[i].CardNumber != cardNumber {
			kept = append(kept, l.history[i])
		}
	}
	l.history = kept
	return nil
}
