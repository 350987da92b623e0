/**
 * @description
 * This file defines the typed error taxonomy returned by every core operation.
 * Failures are ordinary error values carrying a machine-readable code; the API
 * layer maps codes to HTTP statuses and callers branch on codes rather than
 * message text.
 *
 * @dependencies
 * - errors, fmt, time: Standard Go libraries.
 */
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode enumerates the failure kinds an operation can report.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "not_found"
	CodeInvalidFormat     ErrorCode = "invalid_format"
	CodeInsufficientFunds ErrorCode = "insufficient_funds"
	CodeLimitExceeded     ErrorCode = "limit_exceeded"
	CodeAccountLocked     ErrorCode = "account_locked"
	CodeTemporarilyLocked ErrorCode = "temporarily_locked"
	CodeDuplicateCard     ErrorCode = "duplicate_card"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodePersistence       ErrorCode = "persistence_failure"
)

// Error is a typed operation failure with a human-readable reason.
type Error struct {
	Code    ErrorCode
	Message string

	// RetryAfter is set only for CodeTemporarilyLocked and reports how long
	// the failed-login cool-down still has to run.
	RetryAfter time.Duration
}

func (e *Error) Error() string { return e.Message }

// NewError builds a typed failure.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds a typed failure with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// TemporarilyLockedError builds the lockout failure carrying the remaining
// cool-down duration.
func TemporarilyLockedError(remaining time.Duration) *Error {
	return &Error{
		Code:       CodeTemporarilyLocked,
		Message:    fmt.Sprintf("account is temporarily locked due to repeated failed logins; try again in %s", remaining.Round(time.Second)),
		RetryAfter: remaining,
	}
}

// CodeOf extracts the error code from err, or CodePersistence for errors that
// did not originate in the core taxonomy (I/O failures, driver errors).
func CodeOf(err error) ErrorCode {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return CodePersistence
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
