package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
	"github.com/transfa/atm-service/internal/ledger"
	"github.com/transfa/atm-service/internal/store"
	"github.com/transfa/atm-service/pkg/pinhash"
)

const (
	aliceCard = "1234567890123456"
	bobCard   = "2345678901234567"
)

// testClock is a controllable time source for lockout expiry tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	service  *Service
	accounts *store.MemoryAccountStore
	history  *ledger.MemoryLedger
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := store.NewMemoryAccountStore()
	history := ledger.NewMemoryLedger()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	service := NewService(accounts, history, nil, Config{Now: clock.Now})
	return &fixture{service: service, accounts: accounts, history: history, clock: clock}
}

func (f *fixture) seedAccount(t *testing.T, card, pin string, balance, limit int64) {
	t.Helper()
	salt, err := pinhash.GenerateSalt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	account := &domain.Account{
		CardNumber:    card,
		PINHash:       pinhash.Hash(pin, salt),
		PINSalt:       salt,
		HolderName:    "Test Holder",
		Balance:       decimal.NewFromInt(balance),
		WithdrawLimit: decimal.NewFromInt(limit),
	}
	if err := f.accounts.Put(context.Background(), account); err != nil {
		t.Fatalf("unexpected error seeding account: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, card string) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.Get(context.Background(), card)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return account.Balance
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)

	result, err := f.service.Login(context.Background(), aliceCard, "1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CardNumber != aliceCard {
		t.Fatalf("expected card %s, got %s", aliceCard, result.CardNumber)
	}
	if result.Admin {
		t.Fatalf("customer account must not carry the admin role")
	}
	if !result.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance 500, got %s", result.Balance)
	}
}

func TestLoginFailuresAreNonRevealing(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)

	_, wrongPinErr := f.service.Login(context.Background(), aliceCard, "9999")
	_, unknownCardErr := f.service.Login(context.Background(), "0000000000000000", "9999")

	if wrongPinErr == nil || unknownCardErr == nil {
		t.Fatalf("both attempts must fail")
	}
	if domain.CodeOf(wrongPinErr) != domain.CodeNotFound || domain.CodeOf(unknownCardErr) != domain.CodeNotFound {
		t.Fatalf("expected not_found for both, got %v and %v", domain.CodeOf(wrongPinErr), domain.CodeOf(unknownCardErr))
	}
	if wrongPinErr.Error() != unknownCardErr.Error() {
		t.Fatalf("error messages must not reveal whether the card exists")
	}
}

func TestLoginRejectsMalformedInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		card string
		pin  string
	}{
		{name: "short card", card: "123", pin: "1234"},
		{name: "card with letters", card: "12345678901234ab", pin: "1234"},
		{name: "short pin", card: aliceCard, pin: "12"},
		{name: "long pin", card: aliceCard, pin: "1234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Login(context.Background(), tt.card, tt.pin)
			if domain.CodeOf(err) != domain.CodeInvalidFormat {
				t.Fatalf("expected invalid_format, got %v", err)
			}
		})
	}
}

func TestLoginLockoutLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	ctx := context.Background()

	// Four wrong attempts stay below the threshold.
	for i := 0; i < domain.DefaultMaxFailedLoginAttempts-1; i++ {
		_, err := f.service.Login(ctx, aliceCard, "9999")
		if domain.CodeOf(err) != domain.CodeNotFound {
			t.Fatalf("attempt %d: expected not_found, got %v", i+1, err)
		}
	}

	// The fifth trips the lockout and says so.
	_, err := f.service.Login(ctx, aliceCard, "9999")
	if domain.CodeOf(err) != domain.CodeTemporarilyLocked {
		t.Fatalf("expected temporarily_locked, got %v", err)
	}

	// Even the correct PIN is refused during the cool-down.
	_, err = f.service.Login(ctx, aliceCard, "1234")
	if domain.CodeOf(err) != domain.CodeTemporarilyLocked {
		t.Fatalf("expected temporarily_locked with correct PIN, got %v", err)
	}

	// After the cool-down the correct PIN works and the counter resets.
	f.clock.Advance(domain.DefaultTemporaryLockDuration + time.Second)
	if _, err := f.service.Login(ctx, aliceCard, "1234"); err != nil {
		t.Fatalf("unexpected error after cool-down: %v", err)
	}
	account, err := f.accounts.Get(ctx, aliceCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.FailedLoginAttempts != 0 {
		t.Fatalf("successful login must reset the failure counter, got %d", account.FailedLoginAttempts)
	}
}

func TestLoginLockedAccount(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	ctx := context.Background()

	account, _ := f.accounts.Get(ctx, aliceCard)
	account.Locked = true
	if err := f.accounts.Put(ctx, account); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.service.Login(ctx, aliceCard, "1234")
	if domain.CodeOf(err) != domain.CodeAccountLocked {
		t.Fatalf("expected account_locked, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		wantCode    domain.ErrorCode
		wantBalance int64
	}{
		{name: "within limit and balance", amount: 150, wantCode: "", wantBalance: 350},
		{name: "exceeds withdraw limit", amount: 300, wantCode: domain.CodeLimitExceeded, wantBalance: 500},
		{name: "exact limit is allowed", amount: 200, wantCode: "", wantBalance: 300},
		{name: "zero amount", amount: 0, wantCode: domain.CodeInvalidFormat, wantBalance: 500},
		{name: "negative amount", amount: -5, wantCode: domain.CodeInvalidFormat, wantBalance: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedAccount(t, aliceCard, "1234", 500, 200)
			session := domain.Session{CardNumber: aliceCard}

			tx, err := f.service.Withdraw(context.Background(), session, decimal.NewFromInt(tt.amount))
			if tt.wantCode != "" {
				if domain.CodeOf(err) != tt.wantCode {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tx.Type != domain.TypeWithdrawal {
					t.Fatalf("expected a withdrawal record, got %s", tx.Type)
				}
				if !tx.BalanceAfter.Equal(decimal.NewFromInt(tt.wantBalance)) {
					t.Fatalf("expected balance_after %d, got %s", tt.wantBalance, tx.BalanceAfter)
				}
			}
			if got := f.balance(t, aliceCard); !got.Equal(decimal.NewFromInt(tt.wantBalance)) {
				t.Fatalf("expected balance %d, got %s", tt.wantBalance, got)
			}
		})
	}
}

func TestWithdrawInsufficientFundsUnderLimit(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 100, 200)
	session := domain.Session{CardNumber: aliceCard}

	_, err := f.service.Withdraw(context.Background(), session, decimal.NewFromInt(150))
	if domain.CodeOf(err) != domain.CodeInsufficientFunds {
		t.Fatalf("expected insufficient_funds, got %v", err)
	}
	if got := f.balance(t, aliceCard); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("failed withdrawal must not change the balance, got %s", got)
	}
}

func TestDepositHasNoUpperBound(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	session := domain.Session{CardNumber: aliceCard}

	amount, _ := decimal.NewFromString("10000000")
	tx, err := f.service.Deposit(context.Background(), session, amount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := decimal.NewFromString("10000500")
	if !tx.BalanceAfter.Equal(want) {
		t.Fatalf("expected balance %s, got %s", want, tx.BalanceAfter)
	}
}

// failingLedger rejects every append.
type failingLedger struct {
	*ledger.MemoryLedger
}

func (f *failingLedger) Append(ctx context.Context, txs ...*domain.Transaction) error {
	return errors.New("append failed")
}

func TestWithdrawRollsBackWhenLedgerFails(t *testing.T) {
	accounts := store.NewMemoryAccountStore()
	broken := &failingLedger{MemoryLedger: ledger.NewMemoryLedger()}
	service := NewService(accounts, broken, nil, Config{})

	salt, _ := pinhash.GenerateSalt()
	if err := accounts.Put(context.Background(), &domain.Account{
		CardNumber:    aliceCard,
		PINHash:       pinhash.Hash("1234", salt),
		PINSalt:       salt,
		HolderName:    "Test Holder",
		Balance:       decimal.NewFromInt(500),
		WithdrawLimit: decimal.NewFromInt(200),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := service.Withdraw(context.Background(), domain.Session{CardNumber: aliceCard}, decimal.NewFromInt(100))
	if err == nil {
		t.Fatalf("expected an error when the ledger append fails")
	}

	account, _ := accounts.Get(context.Background(), aliceCard)
	if !account.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance must be rolled back, got %s", account.Balance)
	}
}

func TestTransferMovesFundsAndRecordsBothSides(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	f.seedAccount(t, bobCard, "2345", 100, 200)
	ctx := context.Background()

	tx, err := f.service.Transfer(ctx, domain.Session{CardNumber: aliceCard}, bobCard, decimal.NewFromInt(150))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Type != domain.TypeTransfer || tx.TargetCardNumber != bobCard {
		t.Fatalf("outgoing record must be a transfer to the target")
	}

	if got := f.balance(t, aliceCard); !got.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected source balance 350, got %s", got)
	}
	if got := f.balance(t, bobCard); !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected target balance 250, got %s", got)
	}

	bobHistory, err := f.history.ForCard(ctx, bobCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var deposit *domain.Transaction
	for i := range bobHistory {
		if bobHistory[i].CardNumber == bobCard && bobHistory[i].Type == domain.TypeDeposit {
			deposit = &bobHistory[i]
		}
	}
	if deposit == nil {
		t.Fatalf("target must get its own deposit record")
	}
	if !deposit.Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected deposit amount 150, got %s", deposit.Amount)
	}
	if deposit.TargetCardNumber != aliceCard {
		t.Fatalf("incoming record must reference the source card, got %q", deposit.TargetCardNumber)
	}
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	f.seedAccount(t, bobCard, "2345", 100, 200)
	session := domain.Session{CardNumber: aliceCard}

	tests := []struct {
		name     string
		target   string
		amount   int64
		wantCode domain.ErrorCode
	}{
		{name: "self transfer", target: aliceCard, amount: 50, wantCode: domain.CodeInvalidFormat},
		{name: "malformed target", target: "123", amount: 50, wantCode: domain.CodeInvalidFormat},
		{name: "unknown target", target: "9876543210987654", amount: 50, wantCode: domain.CodeNotFound},
		{name: "exceeds limit", target: bobCard, amount: 300, wantCode: domain.CodeLimitExceeded},
		{name: "at limit succeeds", target: bobCard, amount: 200, wantCode: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Transfer(context.Background(), session, tt.target, decimal.NewFromInt(tt.amount))
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if domain.CodeOf(err) != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestTransferRollsBackWhenLedgerFails(t *testing.T) {
	accounts := store.NewMemoryAccountStore()
	broken := &failingLedger{MemoryLedger: ledger.NewMemoryLedger()}
	service := NewService(accounts, broken, nil, Config{})
	ctx := context.Background()

	for _, seed := range []struct {
		card    string
		balance int64
	}{{aliceCard, 500}, {bobCard, 100}} {
		salt, _ := pinhash.GenerateSalt()
		if err := accounts.Put(ctx, &domain.Account{
			CardNumber:    seed.card,
			PINHash:       pinhash.Hash("1234", salt),
			PINSalt:       salt,
			HolderName:    "Test Holder",
			Balance:       decimal.NewFromInt(seed.balance),
			WithdrawLimit: decimal.NewFromInt(200),
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	_, err := service.Transfer(ctx, domain.Session{CardNumber: aliceCard}, bobCard, decimal.NewFromInt(150))
	if err == nil {
		t.Fatalf("expected an error when the ledger append fails")
	}

	source, _ := accounts.Get(ctx, aliceCard)
	target, _ := accounts.Get(ctx, bobCard)
	if !source.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("source balance must be rolled back, got %s", source.Balance)
	}
	if !target.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("target balance must be rolled back, got %s", target.Balance)
	}
}

// flakyStore fails Put for one specific card, letting tests break the credit
// side of a transfer.
type flakyStore struct {
	store.AccountStore
	failCard string
}

func (f *flakyStore) Put(ctx context.Context, account *domain.Account) error {
	if account.CardNumber == f.failCard {
		return errors.New("put failed")
	}
	return f.AccountStore.Put(ctx, account)
}

func TestTransferRefundsSourceWhenCreditFails(t *testing.T) {
	backing := store.NewMemoryAccountStore()
	history := ledger.NewMemoryLedger()
	ctx := context.Background()

	for _, seed := range []struct {
		card    string
		balance int64
	}{{aliceCard, 500}, {bobCard, 100}} {
		salt, _ := pinhash.GenerateSalt()
		if err := backing.Put(ctx, &domain.Account{
			CardNumber:    seed.card,
			PINHash:       pinhash.Hash("1234", salt),
			PINSalt:       salt,
			HolderName:    "Test Holder",
			Balance:       decimal.NewFromInt(seed.balance),
			WithdrawLimit: decimal.NewFromInt(200),
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	service := NewService(&flakyStore{AccountStore: backing, failCard: bobCard}, history, nil, Config{})

	_, err := service.Transfer(ctx, domain.Session{CardNumber: aliceCard}, bobCard, decimal.NewFromInt(150))
	if err == nil {
		t.Fatalf("expected an error when the credit fails")
	}

	source, _ := backing.Get(ctx, aliceCard)
	if !source.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("source must be refunded, got %s", source.Balance)
	}
	txs, _ := history.ForCard(ctx, aliceCard)
	if len(txs) != 0 {
		t.Fatalf("a failed transfer must leave no ledger entries, got %d", len(txs))
	}
}

func TestBalanceInquiryRecordsLedgerEntry(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	ctx := context.Background()

	balance, err := f.service.BalanceInquiry(ctx, domain.Session{CardNumber: aliceCard})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance 500, got %s", balance)
	}

	history, err := f.history.ForCard(ctx, aliceCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 || history[0].Type != domain.TypeBalanceInquiry {
		t.Fatalf("expected one balance_inquiry entry, got %v", history)
	}
}

func TestChangePin(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	ctx := context.Background()
	session := domain.Session{CardNumber: aliceCard}

	if err := f.service.ChangePin(ctx, session, "1234", "5678", "5678"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Old PIN no longer authenticates; the new one does.
	if _, err := f.service.Login(ctx, aliceCard, "1234"); err == nil {
		t.Fatalf("old PIN must be rejected after the change")
	}
	if _, err := f.service.Login(ctx, aliceCard, "5678"); err != nil {
		t.Fatalf("new PIN must authenticate: %v", err)
	}
}

func TestChangePinValidation(t *testing.T) {
	tests := []struct {
		name       string
		currentPin string
		newPin     string
		confirmPin string
		wantCode   domain.ErrorCode
	}{
		{name: "wrong current pin", currentPin: "9999", newPin: "5678", confirmPin: "5678", wantCode: domain.CodeUnauthorized},
		{name: "malformed new pin", currentPin: "1234", newPin: "56", confirmPin: "56", wantCode: domain.CodeInvalidFormat},
		{name: "new equals current", currentPin: "1234", newPin: "1234", confirmPin: "1234", wantCode: domain.CodeInvalidFormat},
		{name: "confirmation mismatch", currentPin: "1234", newPin: "5678", confirmPin: "8765", wantCode: domain.CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedAccount(t, aliceCard, "1234", 500, 200)

			err := f.service.ChangePin(context.Background(), domain.Session{CardNumber: aliceCard}, tt.currentPin, tt.newPin, tt.confirmPin)
			if domain.CodeOf(err) != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestChangePinWrongCurrentCountsTowardLockout(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	ctx := context.Background()
	session := domain.Session{CardNumber: aliceCard}

	for i := 0; i < domain.DefaultMaxFailedLoginAttempts-1; i++ {
		if err := f.service.ChangePin(ctx, session, "9999", "5678", "5678"); domain.CodeOf(err) != domain.CodeUnauthorized {
			t.Fatalf("attempt %d: expected unauthorized, got %v", i+1, err)
		}
	}
	err := f.service.ChangePin(ctx, session, "9999", "5678", "5678")
	if domain.CodeOf(err) != domain.CodeTemporarilyLocked {
		t.Fatalf("expected temporarily_locked, got %v", err)
	}
}

func TestHistoryAndRecent(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, aliceCard, "1234", 500, 200)
	ctx := context.Background()
	session := domain.Session{CardNumber: aliceCard}

	for i := 0; i < 3; i++ {
		if _, err := f.service.Deposit(ctx, session, decimal.NewFromInt(10)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history, err := f.service.History(ctx, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}

	recent, err := f.service.Recent(ctx, session, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].ID != history[2].ID {
		t.Fatalf("recent must be newest first")
	}
}
