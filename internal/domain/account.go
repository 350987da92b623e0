/**
 * @description
 * This file defines the Account entity, the central record of the ATM core.
 * An account is keyed by a fixed-length numeric card number and carries the
 * hashed credential, profile fields, balance state, and the failed-login /
 * temporary-lockout state machine.
 *
 * @notes
 * - Balances and limits use decimal.Decimal to avoid floating-point drift in
 *   money arithmetic.
 * - Temporary lockout uses lazy expiry: the lock-until timestamp is compared
 *   against the clock at read time and is never actively cleared by a timer.
 *
 * @dependencies
 * - time: Standard Go library.
 * - github.com/shopspring/decimal: Fixed-point money arithmetic.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CardNumberLength is the fixed length of a card number.
	CardNumberLength = 16

	// PinMinLength and PinMaxLength bound the accepted PIN length.
	PinMinLength = 4
	PinMaxLength = 6

	// DefaultMaxFailedLoginAttempts is the failed-login threshold that triggers
	// a temporary lockout.
	DefaultMaxFailedLoginAttempts = 5

	// DefaultTemporaryLockDuration is the cool-down window applied once the
	// failed-login threshold is crossed.
	DefaultTemporaryLockDuration = 30 * time.Minute
)

// Account is the persisted record for a single card.
type Account struct {
	CardNumber          string          `json:"card_number"`
	PINHash             string          `json:"-"`
	PINSalt             string          `json:"-"`
	HolderName          string          `json:"holder_name"`
	Balance             decimal.Decimal `json:"balance"`
	WithdrawLimit       decimal.Decimal `json:"withdraw_limit"`
	Locked              bool            `json:"locked"`
	Admin               bool            `json:"admin"`
	FailedLoginAttempts int             `json:"failed_login_attempts"`
	LastFailedLoginAt   time.Time       `json:"last_failed_login_at,omitempty"`
	TemporaryLockUntil  time.Time       `json:"temporary_lock_until,omitempty"`
}

// IsValidCardNumber reports whether s is a well-formed card number: exactly
// CardNumberLength decimal digits.
func IsValidCardNumber(s string) bool {
	if len(s) != CardNumberLength {
		return false
	}
	return allDigits(s)
}

// IsValidPin reports whether s is a well-formed PIN: PinMinLength to
// PinMaxLength decimal digits.
func IsValidPin(s string) bool {
	if len(s) < PinMinLength || len(s) > PinMaxLength {
		return false
	}
	return allDigits(s)
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// IsValid reports whether the account satisfies its structural invariants:
// well-formed card number, a stored PIN hash, a non-empty holder name, a
// non-negative balance and a positive withdraw limit.
func (a *Account) IsValid() bool {
	if !IsValidCardNumber(a.CardNumber) {
		return false
	}
	if a.PINHash == "" || a.PINSalt == "" {
		return false
	}
	if a.HolderName == "" {
		return false
	}
	if a.Balance.IsNegative() {
		return false
	}
	if !a.WithdrawLimit.IsPositive() {
		return false
	}
	return true
}

// RecordFailedLogin increments the failed-login counter and stamps the failure
// time. When the counter reaches the threshold and the account is not already
// in a lockout window, a temporary lockout until now+coolDown is set. The
// return value reports whether the lockout was triggered by this call.
func (a *Account) RecordFailedLogin(now time.Time, threshold int, coolDown time.Duration) bool {
	a.FailedLoginAttempts++
	a.LastFailedLoginAt = now
	if a.FailedLoginAttempts >= threshold && !a.IsTemporarilyLocked(now) {
		a.TemporaryLockUntil = now.Add(coolDown)
		return true
	}
	return false
}

// IsTemporarilyLocked reports whether the account is inside a failed-login
// cool-down window at the given instant. Expiry is lazy: a past lock-until
// timestamp simply stops counting as locked.
func (a *Account) IsTemporarilyLocked(now time.Time) bool {
	return !a.TemporaryLockUntil.IsZero() && now.Before(a.TemporaryLockUntil)
}

// TemporaryLockRemaining returns how long the current lockout window still has
// to run, or zero when the account is not temporarily locked.
func (a *Account) TemporaryLockRemaining(now time.Time) time.Duration {
	if !a.IsTemporarilyLocked(now) {
		return 0
	}
	return a.TemporaryLockUntil.Sub(now)
}

// ResetFailedLoginAttempts zeroes the failed-login counter and clears any
// lockout state. Called on successful login and by administrative unlock.
func (a *Account) ResetFailedLoginAttempts() {
	a.FailedLoginAttempts = 0
	a.LastFailedLoginAt = time.Time{}
	a.TemporaryLockUntil = time.Time{}
}
