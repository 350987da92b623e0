/**
 * @description
 * This file contains the administrative operations of the ATM service:
 * account CRUD, lock management, PIN reset, and withdraw-limit changes. Every
 * operation is gated on the caller's session carrying the admin role, which
 * is set only from a verified login.
 *
 * @notes
 * - Administrative mutations on a customer account append a ledger entry on
 *   that account so the holder's history shows the intervention.
 * - Admin accounts can neither be locked nor deleted.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/shopspring/decimal: Balance and limit fields.
 * - internal/domain, internal/store: Domain models and persistence.
 * - pkg/pinhash: Credential hashing for create and reset.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
	"github.com/transfa/atm-service/internal/store"
	"github.com/transfa/atm-service/pkg/pinhash"
)

// CreateAccountInput carries the fields of a new account.
type CreateAccountInput struct {
	CardNumber    string          `json:"card_number"`
	PIN           string          `json:"pin"`
	HolderName    string          `json:"holder_name"`
	Balance       decimal.Decimal `json:"balance"`
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
}

// UpdateAccountInput carries the fields an administrator may change on an
// existing account. Nil fields are left untouched; the credential is never
// updatable here (PIN changes go through ResetPin).
type UpdateAccountInput struct {
	HolderName    *string          `json:"holder_name,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	WithdrawLimit *decimal.Decimal `json:"withdraw_limit,omitempty"`
	Locked        *bool            `json:"locked,omitempty"`
}

func (s *Service) requireAdmin(session domain.Session) error {
	if !session.Admin {
		return domain.NewError(domain.CodeUnauthorized, "administrator role required")
	}
	return nil
}

// recordAdminAction appends an informational ledger entry on the affected
// account. A failed append is logged but does not fail the operation.
func (s *Service) recordAdminAction(ctx context.Context, account *domain.Account, description string) {
	tx := s.newTransaction(account.CardNumber, domain.TypeOther, decimal.Zero, account.Balance, description, "")
	if err := s.history.Append(ctx, tx); err != nil {
		log.Printf("level=warn component=admin msg=\"failed to record administrative action\" card=%s error=%v", account.CardNumber, err)
	}
}

// CreateAccount creates a customer account with a fresh salt and hashed PIN.
// The card number must not already be in use.
func (s *Service) CreateAccount(ctx context.Context, session domain.Session, input CreateAccountInput) (*domain.Account, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	if err := s.validate.CardNumberFormat(input.CardNumber); err != nil {
		return nil, err
	}
	if err := s.validate.PinFormat(input.PIN); err != nil {
		return nil, err
	}
	if input.HolderName == "" {
		return nil, domain.NewError(domain.CodeInvalidFormat, "holder name must not be empty")
	}
	if input.Balance.IsNegative() {
		return nil, domain.NewError(domain.CodeInvalidFormat, "initial balance must not be negative")
	}
	if !input.WithdrawLimit.IsPositive() {
		return nil, domain.NewError(domain.CodeInvalidFormat, "withdraw limit must be greater than zero")
	}

	unlock := s.locks.Lock(input.CardNumber)
	defer unlock()

	exists, err := s.accounts.Exists(ctx, input.CardNumber)
	if err != nil {
		return nil, fmt.Errorf("uniqueness check failed: %w", err)
	}
	if exists {
		return nil, domain.NewError(domain.CodeDuplicateCard, "an account with this card number already exists")
	}

	salt, err := pinhash.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	account := &domain.Account{
		CardNumber:    input.CardNumber,
		PINHash:       pinhash.Hash(input.PIN, salt),
		PINSalt:       salt,
		HolderName:    input.HolderName,
		Balance:       input.Balance,
		WithdrawLimit: input.WithdrawLimit,
	}
	if err := s.accounts.Put(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicateCard) {
			return nil, domain.NewError(domain.CodeDuplicateCard, "an account with this card number already exists")
		}
		return nil, fmt.Errorf("failed to persist account: %w", err)
	}

	log.Printf("level=info component=admin msg=\"account created\" card=%s by=%s", account.CardNumber, session.CardNumber)
	return account, nil
}

// UpdateAccount changes fields of an existing account. The credential is out
// of reach here.
func (s *Service) UpdateAccount(ctx context.Context, session domain.Session, cardNumber string, input UpdateAccountInput) (*domain.Account, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	if input.HolderName != nil {
		if *input.HolderName == "" {
			return nil, domain.NewError(domain.CodeInvalidFormat, "holder name must not be empty")
		}
		account.HolderName = *input.HolderName
	}
	if input.Balance != nil {
		if input.Balance.IsNegative() {
			return nil, domain.NewError(domain.CodeInvalidFormat, "balance must not be negative")
		}
		account.Balance = *input.Balance
	}
	if input.WithdrawLimit != nil {
		if !input.WithdrawLimit.IsPositive() {
			return nil, domain.NewError(domain.CodeInvalidFormat, "withdraw limit must be greater than zero")
		}
		account.WithdrawLimit = *input.WithdrawLimit
	}
	if input.Locked != nil {
		if account.Admin && *input.Locked {
			return nil, domain.NewError(domain.CodeUnauthorized, "admin accounts cannot be locked")
		}
		account.Locked = *input.Locked
		if !*input.Locked {
			account.ResetFailedLoginAttempts()
		}
	}
	if err := s.accounts.Put(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist account update: %w", err)
	}

	s.recordAdminAction(ctx, account, "account updated by administrator")
	return account, nil
}

// DeleteAccount removes a customer account and clears its ledger history.
// Admin accounts are refused.
func (s *Service) DeleteAccount(ctx context.Context, session domain.Session, cardNumber string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, cardNumber)
	if err != nil {
		return err
	}
	if account.Admin {
		return domain.NewError(domain.CodeUnauthorized, "admin accounts cannot be deleted")
	}

	if err := s.accounts.Remove(ctx, cardNumber); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return domain.NewError(domain.CodeNotFound, "account not found")
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if err := s.history.RemoveForCard(ctx, cardNumber); err != nil {
		log.Printf("level=warn component=admin msg=\"failed to clear ledger history\" card=%s error=%v", cardNumber, err)
	}

	log.Printf("level=info component=admin msg=\"account deleted\" card=%s by=%s", cardNumber, session.CardNumber)
	return nil
}

// SetAccountLockStatus locks or unlocks a customer account. Unlocking also
// clears any failed-login state; admin accounts cannot be locked.
func (s *Service) SetAccountLockStatus(ctx context.Context, session domain.Session, cardNumber string, locked bool) (*domain.Account, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	if account.Admin && locked {
		return nil, domain.NewError(domain.CodeUnauthorized, "admin accounts cannot be locked")
	}

	account.Locked = locked
	if !locked {
		account.ResetFailedLoginAttempts()
	}
	if err := s.accounts.Put(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist lock change: %w", err)
	}

	action := "account unlocked by administrator"
	if locked {
		action = "account locked by administrator"
	}
	s.recordAdminAction(ctx, account, action)
	log.Printf("level=info component=admin msg=\"lock status changed\" card=%s locked=%t by=%s", cardNumber, locked, session.CardNumber)
	return account, nil
}

// ResetPin assigns a new PIN with a fresh salt and clears the failed-login
// state.
func (s *Service) ResetPin(ctx context.Context, session domain.Session, cardNumber, newPin string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if err := s.validate.PinFormat(newPin); err != nil {
		return err
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, cardNumber)
	if err != nil {
		return err
	}

	salt, err := pinhash.GenerateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	account.PINSalt = salt
	account.PINHash = pinhash.Hash(newPin, salt)
	account.ResetFailedLoginAttempts()
	if err := s.accounts.Put(ctx, account); err != nil {
		return fmt.Errorf("failed to persist PIN reset: %w", err)
	}

	s.recordAdminAction(ctx, account, "PIN reset by administrator")
	log.Printf("level=info component=admin msg=\"PIN reset\" card=%s by=%s", cardNumber, session.CardNumber)
	return nil
}

// SetWithdrawLimit changes the per-transaction withdraw limit.
func (s *Service) SetWithdrawLimit(ctx context.Context, session domain.Session, cardNumber string, limit decimal.Decimal) (*domain.Account, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	if !limit.IsPositive() {
		return nil, domain.NewError(domain.CodeInvalidFormat, "withdraw limit must be greater than zero")
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	account.WithdrawLimit = limit
	if err := s.accounts.Put(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist limit change: %w", err)
	}

	s.recordAdminAction(ctx, account, fmt.Sprintf("withdraw limit set to %s by administrator", limit.String()))
	return account, nil
}

// ListAccounts returns every account ordered by card number.
func (s *Service) ListAccounts(ctx context.Context, session domain.Session) ([]domain.Account, error) {
	if err := s.requireAdmin(session); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}
