/**
 * @description
 * This file provides the in-memory implementation of the AccountStore
 * interface. It is the default for tests and for running the service without
 * any persistence; state is lost on restart.
 *
 * @dependencies
 * - context, sort, sync: Standard Go libraries.
 * - internal/domain: Account model.
 */
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/transfa/atm-service/internal/domain"
)

// MemoryAccountStore is a map-backed AccountStore safe for concurrent use.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewMemoryAccountStore returns an empty in-memory store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]domain.Account)}
}

// Get implements AccountStore.
func (s *MemoryAccountStore) Get(ctx context.Context, cardNumber string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[cardNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := a
	return &copied, nil
}

// Put implements AccountStore.
func (s *MemoryAccountStore) Put(ctx context.Context, account *domain.Account) error {
	if account == nil || !account.IsValid() {
		return ErrInvalidAccount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.CardNumber] = *account
	return nil
}

// Remove implements AccountStore.
func (s *MemoryAccountStore) Remove(ctx context.Context, cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[cardNumber]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, cardNumber)
	return nil
}

// List implements AccountStore.
func (s *MemoryAccountStore) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CardNumber < accounts[j].CardNumber })
	return accounts, nil
}

// Exists implements AccountStore.
func (s *MemoryAccountStore) Exists(ctx context.Context, cardNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[cardNumber]
	return ok, nil
}
