/**
 * @description
 * This file provides the JSON-file implementation of the Ledger interface.
 * The full history lives in memory and every append rewrites the snapshot
 * with an atomic tmp-file + rename, matching the account store's durability
 * model.
 *
 * @notes
 * - Appends are all-or-nothing: entries are staged in memory first and rolled
 *   back if the file write fails, so a transfer never leaves a single side
 *   recorded.
 *
 * @dependencies
 * - encoding/json, os, path/filepath, sync: Standard Go libraries.
 * - internal/domain: Transaction model.
 */
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/transfa/atm-service/internal/domain"
)

// JSONLedger is a file-backed Ledger.
type JSONLedger struct {
	mu      sync.Mutex
	path    string
	history []domain.Transaction
}

// NewJSONLedger loads the snapshot at path, creating the parent directory if
// needed. A missing file yields an empty ledger.
func NewJSONLedger(path string) (*JSONLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	l := &JSONLedger{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("failed to read transaction snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &l.history); err != nil {
		return nil, fmt.Errorf("transaction snapshot is malformed: %w", err)
	}
	return l, nil
}

func (l *JSONLedger) save() error {
	data, err := json.MarshalIndent(l.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transaction snapshot: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write transaction snapshot: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace transaction snapshot: %w", err)
	}
	return nil
}

// Append implements Ledger.
func (l *JSONLedger) Append(ctx context.Context, txs ...*domain.Transaction) error {
	if len(txs) == 0 {
		return ErrEmptyAppend
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	previousLen := len(l.history)
	for _, tx := range txs {
		l.history = append(l.history, *tx)
	}
	if err := l.save(); err != nil {
		l.history = l.history[:previousLen]
		return err
	}
	return nil
}

// ForCard implements Ledger.
func (l *JSONLedger) ForCard(ctx context.Context, cardNumber string) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Transaction, 0)
	for i := range l.history {
		if involvesCard(&l.history[i], cardNumber) {
			out = append(out, l.history[i])
		}
	}
	return out, nil
}

// Recent implements Ledger.
func (l *JSONLedger) Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error) {
	history, err := l.ForCard(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	return recentOf(history, count), nil
}

// RemoveForCard implements Ledger.
func (l *JSONLedger) RemoveForCard(ctx context.Context, cardNumber string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.history
	kept := make([]domain.Transaction, 0, len(l.history))
	for i := range l.history {
		if l.history[i].CardNumber != cardNumber {
			kept = append(kept, l.history[i])
		}
	}
	l.history = kept
	if err := l.save(); err != nil {
		l.history = previous
		return err
	}
	return nil
}
