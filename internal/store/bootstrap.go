/**
 * @description
 * This file provides the store bootstrap routines shared by every
 * AccountStore implementation: synthesizing the well-known administrator
 * account when it is missing, and seeding a small set of demo accounts into
 * an empty store for local development.
 *
 * @dependencies
 * - context, fmt, log: Standard Go libraries.
 * - github.com/shopspring/decimal: Seed balances.
 * - internal/domain, pkg/pinhash: Account model and credential hashing.
 */
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
	"github.com/transfa/atm-service/pkg/pinhash"
)

// AdminCardNumber is the well-known administrative card that must always
// resolve to a valid admin account after store initialization.
const AdminCardNumber = "9999888877776666"

// defaultAdminPIN is the fixed PIN assigned when the admin account has to be
// synthesized at bootstrap.
const defaultAdminPIN = "8888"

// EnsureAdminAccount guarantees that the well-known admin card resolves to a
// valid admin account, synthesizing and persisting a default one when absent.
// It reports whether an account was created.
func EnsureAdminAccount(ctx context.Context, s AccountStore) (bool, error) {
	exists, err := s.Exists(ctx, AdminCardNumber)
	if err != nil {
		return false, fmt.Errorf("admin bootstrap lookup failed: %w", err)
	}
	if exists {
		return false, nil
	}

	admin, err := newSeedAccount(AdminCardNumber, defaultAdminPIN, "Administrator", "50000", "10000")
	if err != nil {
		return false, err
	}
	admin.Admin = true
	if err := s.Put(ctx, admin); err != nil {
		return false, fmt.Errorf("admin bootstrap persist failed: %w", err)
	}
	log.Printf("level=warn component=store msg=\"admin account missing; synthesized default\" card=%s", AdminCardNumber)
	return true, nil
}

// SeedDemoAccounts populates an empty store with a few development accounts.
// A non-empty store is left untouched.
func SeedDemoAccounts(ctx context.Context, s AccountStore) error {
	accounts, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(accounts) > 0 {
		return nil
	}

	seeds := []struct {
		card, pin, holder, balance, limit string
		locked                            bool
	}{
		{"1234567890123456", "1234", "Alice Zhang", "50000", "20000", false},
		{"2345678901234567", "2345", "Bob Lee", "100000", "30000", false},
		{"3456789012345678", "3456", "Carol Wang", "75000", "25000", true},
	}
	for _, seed := range seeds {
		acct, err := newSeedAccount(seed.card, seed.pin, seed.holder, seed.balance, seed.limit)
		if err != nil {
			return err
		}
		acct.Locked = seed.locked
		if err := s.Put(ctx, acct); err != nil {
			return fmt.Errorf("demo seed persist failed for %s: %w", seed.card, err)
		}
	}
	log.Printf("level=info component=store msg=\"seeded demo accounts\" count=%d", len(seeds))
	return nil
}

func newSeedAccount(card, pin, holder, balance, limit string) (*domain.Account, error) {
	salt, err := pinhash.GenerateSalt()
	if err != nil {
		return nil, err
	}
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, err
	}
	lim, err := decimal.NewFromString(limit)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		CardNumber:    card,
		PINHash:       pinhash.Hash(pin, salt),
		PINSalt:       salt,
		HolderName:    holder,
		Balance:       bal,
		WithdrawLimit: lim,
	}, nil
}
