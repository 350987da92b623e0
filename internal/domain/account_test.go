package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIsValidCardNumber(t *testing.T) {
	tests := []struct {
		name string
		card string
		want bool
	}{
		{name: "sixteen digits", card: "1234567890123456", want: true},
		{name: "too short", card: "123456789012345", want: false},
		{name: "too long", card: "12345678901234567", want: false},
		{name: "contains letter", card: "123456789012345a", want: false},
		{name: "empty", card: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCardNumber(tt.card); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestIsValidPin(t *testing.T) {
	tests := []struct {
		name string
		pin  string
		want bool
	}{
		{name: "four digits", pin: "1234", want: true},
		{name: "six digits", pin: "123456", want: true},
		{name: "three digits", pin: "123", want: false},
		{name: "seven digits", pin: "1234567", want: false},
		{name: "non numeric", pin: "12a4", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPin(tt.pin); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func validAccount() Account {
	return Account{
		CardNumber:    "1234567890123456",
		PINHash:       "digest",
		PINSalt:       "salt",
		HolderName:    "Alice Zhang",
		Balance:       decimal.NewFromInt(500),
		WithdrawLimit: decimal.NewFromInt(200),
	}
}

func TestAccountIsValid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Account)
		want   bool
	}{
		{name: "valid account", mutate: func(a *Account) {}, want: true},
		{name: "bad card number", mutate: func(a *Account) { a.CardNumber = "123" }, want: false},
		{name: "missing pin hash", mutate: func(a *Account) { a.PINHash = "" }, want: false},
		{name: "missing salt", mutate: func(a *Account) { a.PINSalt = "" }, want: false},
		{name: "empty holder name", mutate: func(a *Account) { a.HolderName = "" }, want: false},
		{name: "negative balance", mutate: func(a *Account) { a.Balance = decimal.NewFromInt(-1) }, want: false},
		{name: "zero balance is fine", mutate: func(a *Account) { a.Balance = decimal.Zero }, want: true},
		{name: "zero withdraw limit", mutate: func(a *Account) { a.WithdrawLimit = decimal.Zero }, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := validAccount()
			tt.mutate(&account)
			if got := account.IsValid(); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestRecordFailedLoginTriggersLockoutAtThreshold(t *testing.T) {
	account := validAccount()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i < DefaultMaxFailedLoginAttempts; i++ {
		if locked := account.RecordFailedLogin(now, DefaultMaxFailedLoginAttempts, DefaultTemporaryLockDuration); locked {
			t.Fatalf("attempt %d should not trigger a lockout", i)
		}
	}
	if !account.RecordFailedLogin(now, DefaultMaxFailedLoginAttempts, DefaultTemporaryLockDuration) {
		t.Fatalf("attempt %d should trigger the lockout", DefaultMaxFailedLoginAttempts)
	}
	if !account.IsTemporarilyLocked(now) {
		t.Fatalf("account should be temporarily locked after the threshold")
	}
	if got := account.TemporaryLockRemaining(now); got != DefaultTemporaryLockDuration {
		t.Fatalf("expected full cool-down remaining, got %s", got)
	}
}

func TestTemporaryLockExpiresLazily(t *testing.T) {
	account := validAccount()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < DefaultMaxFailedLoginAttempts; i++ {
		account.RecordFailedLogin(now, DefaultMaxFailedLoginAttempts, DefaultTemporaryLockDuration)
	}

	later := now.Add(DefaultTemporaryLockDuration + time.Second)
	if account.IsTemporarilyLocked(later) {
		t.Fatalf("lockout should have expired")
	}
	if got := account.TemporaryLockRemaining(later); got != 0 {
		t.Fatalf("expected zero remaining after expiry, got %s", got)
	}
}

func TestFurtherFailuresDoNotExtendActiveLockout(t *testing.T) {
	account := validAccount()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < DefaultMaxFailedLoginAttempts; i++ {
		account.RecordFailedLogin(now, DefaultMaxFailedLoginAttempts, DefaultTemporaryLockDuration)
	}
	until := account.TemporaryLockUntil

	if locked := account.RecordFailedLogin(now.Add(time.Minute), DefaultMaxFailedLoginAttempts, DefaultTemporaryLockDuration); locked {
		t.Fatalf("a failure inside an active lockout should not report a fresh lockout")
	}
	if !account.TemporaryLockUntil.Equal(until) {
		t.Fatalf("active lockout window must not be extended")
	}
}

func TestResetFailedLoginAttempts(t *testing.T) {
	account := validAccount()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < DefaultMaxFailedLoginAttempts; i++ {
		account.RecordFailedLogin(now, DefaultMaxFailedLoginAttempts, DefaultTemporaryLockDuration)
	}

	account.ResetFailedLoginAttempts()
	if account.FailedLoginAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", account.FailedLoginAttempts)
	}
	if account.IsTemporarilyLocked(now) {
		t.Fatalf("reset must clear the lockout window")
	}
	if !account.LastFailedLoginAt.IsZero() {
		t.Fatalf("reset must clear the last failure timestamp")
	}
}
