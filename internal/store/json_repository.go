/**
 * @description
 * This file provides the JSON-file implementation of the AccountStore
 * interface. Accounts are held in memory and flushed to a single JSON file on
 * every mutation using an atomic tmp-file + rename write, so a crash mid-write
 * never corrupts the previous snapshot.
 *
 * @notes
 * - A persistence model separate from the domain struct is serialized, so the
 *   file format (which must include the PIN hash and salt) stays independent
 *   of the API-facing JSON tags on domain.Account.
 * - A single mutex guards the map and the file; per-card operation
 *   serialization is layered above in the service.
 *
 * @dependencies
 * - encoding/json, os, path/filepath, sort, sync: Standard Go libraries.
 * - github.com/shopspring/decimal: Money fields.
 * - internal/domain: Account model.
 */
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
)

// persistedAccount is the on-disk representation of an account.
type persistedAccount struct {
	CardNumber          string          `json:"card_number"`
	PINHash             string          `json:"pin_hash"`
	PINSalt             string          `json:"pin_salt"`
	HolderName          string          `json:"holder_name"`
	Balance             decimal.Decimal `json:"balance"`
	WithdrawLimit       decimal.Decimal `json:"withdraw_limit"`
	Locked              bool            `json:"locked"`
	Admin               bool            `json:"admin"`
	FailedLoginAttempts int             `json:"failed_login_attempts,omitempty"`
	LastFailedLoginAt   *time.Time      `json:"last_failed_login_at,omitempty"`
	TemporaryLockUntil  *time.Time      `json:"temporary_lock_until,omitempty"`
}

func toPersisted(a domain.Account) persistedAccount {
	p := persistedAccount{
		CardNumber:          a.CardNumber,
		PINHash:             a.PINHash,
		PINSalt:             a.PINSalt,
		HolderName:          a.HolderName,
		Balance:             a.Balance,
		WithdrawLimit:       a.WithdrawLimit,
		Locked:              a.Locked,
		Admin:               a.Admin,
		FailedLoginAttempts: a.FailedLoginAttempts,
	}
	if !a.LastFailedLoginAt.IsZero() {
		t := a.LastFailedLoginAt
		p.LastFailedLoginAt = &t
	}
	if !a.TemporaryLockUntil.IsZero() {
		t := a.TemporaryLockUntil
		p.TemporaryLockUntil = &t
	}
	return p
}

func fromPersisted(p persistedAccount) domain.Account {
	a := domain.Account{
		CardNumber:          p.CardNumber,
		PINHash:             p.PINHash,
		PINSalt:             p.PINSalt,
		HolderName:          p.HolderName,
		Balance:             p.Balance,
		WithdrawLimit:       p.WithdrawLimit,
		Locked:              p.Locked,
		Admin:               p.Admin,
		FailedLoginAttempts: p.FailedLoginAttempts,
	}
	if p.LastFailedLoginAt != nil {
		a.LastFailedLoginAt = *p.LastFailedLoginAt
	}
	if p.TemporaryLockUntil != nil {
		a.TemporaryLockUntil = *p.TemporaryLockUntil
	}
	return a
}

// JSONAccountStore is a file-backed AccountStore.
type JSONAccountStore struct {
	mu       sync.Mutex
	path     string
	accounts map[string]domain.Account
}

// NewJSONAccountStore loads the snapshot at path, creating the parent
// directory if needed. A missing file yields an empty store; a malformed file
// is an error.
func NewJSONAccountStore(path string) (*JSONAccountStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &JSONAccountStore{path: path, accounts: make(map[string]domain.Account)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONAccountStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read account snapshot: %w", err)
	}
	var persisted []persistedAccount
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("account snapshot is malformed: %w", err)
	}
	for _, p := range persisted {
		s.accounts[p.CardNumber] = fromPersisted(p)
	}
	return nil
}

// save writes the full snapshot atomically: encode to path+".tmp", then rename
// over the live file.
func (s *JSONAccountStore) save() error {
	persisted := make([]persistedAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		persisted = append(persisted, toPersisted(a))
	}
	sort.Slice(persisted, func(i, j int) bool { return persisted[i].CardNumber < persisted[j].CardNumber })

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write account snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace account snapshot: %w", err)
	}
	return nil
}

// Get implements AccountStore.
func (s *JSONAccountStore) Get(ctx context.Context, cardNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[cardNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := a
	return &copied, nil
}

// Put implements AccountStore. On a failed file write the in-memory state is
// rolled back so no partial mutation is observable.
func (s *JSONAccountStore) Put(ctx context.Context, account *domain.Account) error {
	if account == nil || !account.IsValid() {
		return ErrInvalidAccount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.accounts[account.CardNumber]
	s.accounts[account.CardNumber] = *account
	if err := s.save(); err != nil {
		if existed {
			s.accounts[account.CardNumber] = previous
		} else {
			delete(s.accounts, account.CardNumber)
		}
		return err
	}
	return nil
}

// Remove implements AccountStore.
func (s *JSONAccountStore) Remove(ctx context.Context, cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.accounts[cardNumber]
	if !existed {
		return ErrAccountNotFound
	}
	delete(s.accounts, cardNumber)
	if err := s.save(); err != nil {
		s.accounts[cardNumber] = previous
		return err
	}
	return nil
}

// List implements AccountStore.
func (s *JSONAccountStore) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CardNumber < accounts[j].CardNumber })
	return accounts, nil
}

// Exists implements AccountStore.
func (s *JSONAccountStore) Exists(ctx context.Context, cardNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[cardNumber]
	return ok, nil
}
