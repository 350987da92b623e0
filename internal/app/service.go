/**
 * @description
 * This file contains the core business logic of the ATM service. The `Service`
 * struct orchestrates authentication and all money movement operations,
 * coordinating between the account store, the transaction ledger, and the
 * message broker.
 *
 * Key features:
 * - Implements the main use cases: login, balance inquiry, withdraw, deposit,
 *   transfer, and PIN change.
 * - Serializes every mutation per card through keyed locks so concurrent
 *   sessions cannot produce lost updates.
 * - Treats the ledger append as part of the operation: a failed append rolls
 *   the balance change back and the operation reports failure.
 * - Publishes events to RabbitMQ for asynchronous consumers when a producer
 *   is configured.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction identifiers.
 * - github.com/shopspring/decimal: Money arithmetic.
 * - internal/domain, internal/store, internal/ledger: Domain models and
 *   persistence.
 * - pkg/pinhash, pkg/rabbitmq: Credential hashing and event publishing.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
	"github.com/transfa/atm-service/internal/ledger"
	"github.com/transfa/atm-service/internal/store"
	"github.com/transfa/atm-service/pkg/pinhash"
	"github.com/transfa/atm-service/pkg/rabbitmq"
)

// loginFailedMessage is returned for both unknown cards and wrong PINs so a
// caller cannot probe which card numbers exist.
const loginFailedMessage = "card number or PIN is incorrect"

// Config carries the tunables of the service. Zero values fall back to the
// domain defaults.
type Config struct {
	MaxFailedLoginAttempts int
	TemporaryLockDuration  time.Duration
	Now                    func() time.Time
}

// Service provides the core business logic of the ATM.
type Service struct {
	accounts      store.AccountStore
	history       ledger.Ledger
	eventProducer rabbitmq.Publisher
	locks         *cardLocker
	validate      validator

	maxFailedAttempts int
	lockDuration      time.Duration
	now               func() time.Time
}

// NewService creates a new ATM service instance. producer may be nil when no
// broker is configured.
func NewService(accounts store.AccountStore, history ledger.Ledger, producer rabbitmq.Publisher, cfg Config) *Service {
	if cfg.MaxFailedLoginAttempts <= 0 {
		cfg.MaxFailedLoginAttempts = domain.DefaultMaxFailedLoginAttempts
	}
	if cfg.TemporaryLockDuration <= 0 {
		cfg.TemporaryLockDuration = domain.DefaultTemporaryLockDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		accounts:          accounts,
		history:           history,
		eventProducer:     producer,
		locks:             newCardLocker(),
		maxFailedAttempts: cfg.MaxFailedLoginAttempts,
		lockDuration:      cfg.TemporaryLockDuration,
		now:               cfg.Now,
	}
}

// getAccount loads an account and maps store sentinels onto the domain error
// taxonomy.
func (s *Service) getAccount(ctx context.Context, cardNumber string) (*domain.Account, error) {
	account, err := s.accounts.Get(ctx, cardNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, domain.NewError(domain.CodeNotFound, "account not found")
		}
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	return account, nil
}

func (s *Service) newTransaction(cardNumber string, txType domain.TransactionType, amount, balanceAfter decimal.Decimal, description, targetCard string) *domain.Transaction {
	return &domain.Transaction{
		ID:               uuid.New(),
		CardNumber:       cardNumber,
		Timestamp:        s.now(),
		Type:             txType,
		Amount:           amount,
		BalanceAfter:     balanceAfter,
		Description:      description,
		TargetCardNumber: targetCard,
	}
}

func (s *Service) publish(ctx context.Context, txs ...*domain.Transaction) {
	if s.eventProducer == nil {
		return
	}
	for _, tx := range txs {
		if err := s.eventProducer.PublishTransactionRecorded(ctx, *tx); err != nil {
			log.Printf("level=warn component=service msg=\"failed to publish transaction event\" tx_id=%s error=%v", tx.ID, err)
		}
	}
}

// recordFailedAttempt persists a failed PIN verification against the account
// and returns the error the caller should surface: the given failure, or the
// lockout error when this attempt crossed the threshold.
func (s *Service) recordFailedAttempt(ctx context.Context, account *domain.Account, failure error) error {
	now := s.now()
	lockedNow := account.RecordFailedLogin(now, s.maxFailedAttempts, s.lockDuration)
	if err := s.accounts.Put(ctx, account); err != nil {
		return fmt.Errorf("failed to persist login attempt: %w", err)
	}
	if lockedNow {
		log.Printf("level=warn component=service msg=\"temporary lockout triggered\" card=%s attempts=%d", account.CardNumber, account.FailedLoginAttempts)
		return domain.TemporarilyLockedError(account.TemporaryLockRemaining(now))
	}
	return failure
}

// Login authenticates a card/PIN pair and returns the account profile on
// success. Failures are non-revealing: an unknown card and a wrong PIN
// produce the same error. Repeated failures trip a temporary lockout.
func (s *Service) Login(ctx context.Context, cardNumber, pin string) (*domain.LoginResult, error) {
	// 1. Validate input shape before touching the store
	if err := s.validate.CardNumberFormat(cardNumber); err != nil {
		return nil, err
	}
	if err := s.validate.PinFormat(pin); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(cardNumber)
	defer unlock()

	// 2. Resolve the account; an unknown card gets the same answer as a wrong PIN
	account, err := s.getAccount(ctx, cardNumber)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NewError(domain.CodeNotFound, loginFailedMessage)
		}
		return nil, err
	}

	// 3. Lockout checks come before PIN verification
	now := s.now()
	if account.IsTemporarilyLocked(now) {
		return nil, domain.TemporarilyLockedError(account.TemporaryLockRemaining(now))
	}
	if account.Locked {
		return nil, domain.NewError(domain.CodeAccountLocked, "account is locked; contact the administrator")
	}

	// 4. Verify the PIN; a failure is counted and persisted
	if !pinhash.Verify(pin, account.PINSalt, account.PINHash) {
		return nil, s.recordFailedAttempt(ctx, account, domain.NewError(domain.CodeNotFound, loginFailedMessage))
	}

	// 5. Success clears any accumulated failed-login state
	if account.FailedLoginAttempts > 0 || !account.TemporaryLockUntil.IsZero() {
		account.ResetFailedLoginAttempts()
		if err := s.accounts.Put(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to reset login state: %w", err)
		}
	}

	log.Printf("level=info component=service msg=\"login succeeded\" card=%s admin=%t", account.CardNumber, account.Admin)
	return &domain.LoginResult{
		CardNumber:    account.CardNumber,
		HolderName:    account.HolderName,
		Admin:         account.Admin,
		Balance:       account.Balance,
		WithdrawLimit: account.WithdrawLimit,
	}, nil
}

// BalanceInquiry returns the current balance and records the inquiry in the
// ledger.
func (s *Service) BalanceInquiry(ctx context.Context, session domain.Session) (decimal.Decimal, error) {
	unlock := s.locks.Lock(session.CardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, session.CardNumber)
	if err != nil {
		return decimal.Zero, err
	}

	tx := s.newTransaction(account.CardNumber, domain.TypeBalanceInquiry, decimal.Zero, account.Balance, "balance inquiry", "")
	if err := s.history.Append(ctx, tx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record balance inquiry: %w", err)
	}
	s.publish(ctx, tx)
	return account.Balance, nil
}

// Withdraw debits the account after the limit and balance checks pass, and
// records the withdrawal. A failed ledger append rolls the debit back.
func (s *Service) Withdraw(ctx context.Context, session domain.Session, amount decimal.Decimal) (*domain.Transaction, error) {
	unlock := s.locks.Lock(session.CardNumber)
	defer unlock()

	// 1. Load and validate
	account, err := s.getAccount(ctx, session.CardNumber)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Withdrawal(account, amount); err != nil {
		return nil, err
	}

	// 2. Debit and persist
	original := *account
	account.Balance = account.Balance.Sub(amount)
	if err := s.accounts.Put(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist withdrawal: %w", err)
	}

	// 3. Record in the ledger; roll the debit back if the append fails
	tx := s.newTransaction(account.CardNumber, domain.TypeWithdrawal, amount, account.Balance, "cash withdrawal", "")
	if err := s.history.Append(ctx, tx); err != nil {
		if revertErr := s.accounts.Put(ctx, &original); revertErr != nil {
			log.Printf("level=error component=service msg=\"failed to revert withdrawal after ledger failure\" card=%s error=%v", account.CardNumber, revertErr)
		}
		return nil, fmt.Errorf("failed to record withdrawal: %w", err)
	}

	s.publish(ctx, tx)
	log.Printf("level=info component=service msg=\"withdrawal completed\" card=%s amount=%s", account.CardNumber, amount.String())
	return tx, nil
}

// Deposit credits the account. There is no upper bound beyond amount
// validity.
func (s *Service) Deposit(ctx context.Context, session domain.Session, amount decimal.Decimal) (*domain.Transaction, error) {
	if err := s.validate.Amount(amount); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(session.CardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, session.CardNumber)
	if err != nil {
		return nil, err
	}

	original := *account
	account.Balance = account.Balance.Add(amount)
	if err := s.accounts.Put(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist deposit: %w", err)
	}

	tx := s.newTransaction(account.CardNumber, domain.TypeDeposit, amount, account.Balance, "cash deposit", "")
	if err := s.history.Append(ctx, tx); err != nil {
		if revertErr := s.accounts.Put(ctx, &original); revertErr != nil {
			log.Printf("level=error component=service msg=\"failed to revert deposit after ledger failure\" card=%s error=%v", account.CardNumber, revertErr)
		}
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	s.publish(ctx, tx)
	log.Printf("level=info component=service msg=\"deposit completed\" card=%s amount=%s", account.CardNumber, amount.String())
	return tx, nil
}

// Transfer moves funds from the session's account to the target account. The
// debit and credit are persisted separately with a compensating rollback, and
// both ledger records are appended all-or-nothing; a failure at any step
// leaves both balances and the ledger as they were.
func (s *Service) Transfer(ctx context.Context, session domain.Session, targetCard string, amount decimal.Decimal) (*domain.Transaction, error) {
	// 1. Validate the target before acquiring locks
	if err := s.validate.Transfer(session.CardNumber, targetCard); err != nil {
		return nil, err
	}

	// 2. Lock both cards in ascending order
	unlock := s.locks.Lock(session.CardNumber, targetCard)
	defer unlock()

	// 3. Load both sides; transfers do reveal whether the target exists
	source, err := s.getAccount(ctx, session.CardNumber)
	if err != nil {
		return nil, err
	}
	target, err := s.getAccount(ctx, targetCard)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NewError(domain.CodeNotFound, "target account not found")
		}
		return nil, err
	}

	// 4. The source side passes the same checks as a withdrawal
	if err := s.validate.Withdrawal(source, amount); err != nil {
		return nil, err
	}

	// 5. Debit the source
	originalSource := *source
	source.Balance = source.Balance.Sub(amount)
	if err := s.accounts.Put(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to debit source account: %w", err)
	}

	// 6. Credit the target; on failure refund the source
	originalTarget := *target
	target.Balance = target.Balance.Add(amount)
	if err := s.accounts.Put(ctx, target); err != nil {
		if revertErr := s.accounts.Put(ctx, &originalSource); revertErr != nil {
			log.Printf("level=error component=service msg=\"failed to refund source after credit failure\" card=%s error=%v", source.CardNumber, revertErr)
		}
		return nil, fmt.Errorf("failed to credit target account: %w", err)
	}

	// 7. Append both ledger records in one all-or-nothing call
	outgoing := s.newTransaction(source.CardNumber, domain.TypeTransfer, amount, source.Balance,
		fmt.Sprintf("transfer to %s", target.CardNumber), target.CardNumber)
	incoming := s.newTransaction(target.CardNumber, domain.TypeDeposit, amount, target.Balance,
		fmt.Sprintf("transfer from %s", source.CardNumber), source.CardNumber)
	if err := s.history.Append(ctx, outgoing, incoming); err != nil {
		if revertErr := s.accounts.Put(ctx, &originalTarget); revertErr != nil {
			log.Printf("level=error component=service msg=\"failed to revert target after ledger failure\" card=%s error=%v", target.CardNumber, revertErr)
		}
		if revertErr := s.accounts.Put(ctx, &originalSource); revertErr != nil {
			log.Printf("level=error component=service msg=\"failed to revert source after ledger failure\" card=%s error=%v", source.CardNumber, revertErr)
		}
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	s.publish(ctx, outgoing, incoming)
	log.Printf("level=info component=service msg=\"transfer completed\" from=%s to=%s amount=%s", source.CardNumber, target.CardNumber, amount.String())
	return outgoing, nil
}

// ChangePin replaces the account's PIN after the current one verifies. A new
// salt is generated; a wrong current PIN is counted like a failed login.
func (s *Service) ChangePin(ctx context.Context, session domain.Session, currentPin, newPin, confirmPin string) error {
	unlock := s.locks.Lock(session.CardNumber)
	defer unlock()

	account, err := s.getAccount(ctx, session.CardNumber)
	if err != nil {
		return err
	}

	now := s.now()
	if account.IsTemporarilyLocked(now) {
		return domain.TemporarilyLockedError(account.TemporaryLockRemaining(now))
	}

	if err := s.validate.PinChange(account, currentPin, newPin, confirmPin); err != nil {
		if domain.IsCode(err, domain.CodeUnauthorized) {
			return s.recordFailedAttempt(ctx, account, err)
		}
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
		return fmt.Errorf("failed to persist PIN change: %w", err)
	}

	// The new credential is already durable at this point; the history entry
	// is informational and carries no balance change, so a failed append is
	// not rolled back.
	tx := s.newTransaction(account.CardNumber, domain.TypeOther, decimal.Zero, account.Balance, "PIN changed", "")
	if err := s.history.Append(ctx, tx); err != nil {
		log.Printf("level=warn component=service msg=\"failed to record PIN change\" card=%s error=%v", account.CardNumber, err)
	}
	log.Printf("level=info component=service msg=\"PIN changed\" card=%s", account.CardNumber)
	return nil
}

// History returns the full transaction history for the session's account, in
// insertion order.
func (s *Service) History(ctx context.Context, session domain.Session) ([]domain.Transaction, error) {
	txs, err := s.history.ForCard(ctx, session.CardNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return txs, nil
}

// Recent returns up to count transactions for the session's account, newest
// first.
func (s *Service) Recent(ctx context.Context, session domain.Session, count int) ([]domain.Transaction, error) {
	txs, err := s.history.Recent(ctx, session.CardNumber, count)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent transactions: %w", err)
	}
	return txs, nil
}
