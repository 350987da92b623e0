/**
 * @description
 * This file defines the immutable Transaction record appended to the ledger
 * once per completed operation, together with the session and login-result
 * types shared by the service and API layers.
 *
 * @dependencies
 * - time: Standard Go library.
 * - github.com/google/uuid: Transaction identifiers.
 * - github.com/shopspring/decimal: Money amounts.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeDeposit        TransactionType = "deposit"
	TypeWithdrawal     TransactionType = "withdrawal"
	TypeBalanceInquiry TransactionType = "balance_inquiry"
	TypeTransfer       TransactionType = "transfer"
	TypeOther          TransactionType = "other"
)

// Transaction is an append-only record of a completed operation. It is created
// exactly once and never updated or deleted; ordering is insertion order,
// stable by timestamp.
type Transaction struct {
	ID               uuid.UUID       `json:"id"`
	CardNumber       string          `json:"card_number"`
	Timestamp        time.Time       `json:"timestamp"`
	Type             TransactionType `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Description      string          `json:"description"`
	TargetCardNumber string          `json:"target_card_number,omitempty"`
}

// Session identifies the authenticated caller of an operation. It is passed
// explicitly so that multiple concurrent sessions can coexist; the Admin flag
// is trusted by administrative operations and is set only from a verified
// login result.
type Session struct {
	CardNumber string
	Admin      bool
}

// LoginResult carries the account profile returned by a successful login,
// including the role flag the caller uses to build the session.
type LoginResult struct {
	CardNumber    string          `json:"card_number"`
	HolderName    string          `json:"holder_name"`
	Admin         bool            `json:"admin"`
	Balance       decimal.Decimal `json:"balance"`
	WithdrawLimit decimal.Decimal `json:"withdraw_limit"`
}
