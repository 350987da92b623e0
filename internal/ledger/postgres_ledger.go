/**
 * @description
 * This file provides the PostgreSQL implementation of the Ledger interface.
 * Multi-record appends run inside a single transaction so a transfer's two
 * entries commit or roll back together.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Money fields.
 * - internal/domain: Transaction model.
 */
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
)

// PostgresLedger is a pgxpool-backed Ledger.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger creates a new instance of PostgresLedger.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureSchema creates the transactions table if it does not exist.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id                 UUID PRIMARY KEY,
			seq                BIGSERIAL,
			card_number        VARCHAR(16) NOT NULL,
			occurred_at        TIMESTAMPTZ NOT NULL,
			type               VARCHAR(32) NOT NULL,
			amount             NUMERIC(19, 4) NOT NULL,
			balance_after      NUMERIC(19, 4) NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			target_card_number VARCHAR(16) NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_card ON transactions (card_number, seq);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure transactions schema: %w", err)
	}
	return nil
}

// Append implements Ledger. All records are inserted in one database
// transaction.
func (l *PostgresLedger) Append(ctx context.Context, txs ...*domain.Transaction) error {
	if len(txs) == 0 {
		return ErrEmptyAppend
	}
	dbTx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ledger append: %w", err)
	}
	defer dbTx.Rollback(ctx)

	const query = `
		INSERT INTO transactions (id, card_number, occurred_at, type, amount, balance_after, description, target_card_number)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)
	`
	for _, tx := range txs {
		_, err := dbTx.Exec(ctx, query,
			tx.ID,
			tx.CardNumber,
			tx.Timestamp,
			string(tx.Type),
			tx.Amount.String(),
			tx.BalanceAfter.String(),
			tx.Description,
			tx.TargetCardNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ledger append: %w", err)
	}
	return nil
}

const transactionColumns = `id, card_number, occurred_at, type, amount::text, balance_after::text, description, target_card_number`

func scanTransaction(rows pgx.Rows) (domain.Transaction, error) {
	var (
		tx          domain.Transaction
		occurredAt  time.Time
		txType      string
		amountText  string
		balanceText string
	)
	err := rows.Scan(&tx.ID, &tx.CardNumber, &occurredAt, &txType, &amountText, &balanceText, &tx.Description, &tx.TargetCardNumber)
	if err != nil {
		return tx, err
	}
	tx.Timestamp = occurredAt
	tx.Type = domain.TransactionType(txType)
	if tx.Amount, err = decimal.NewFromString(amountText); err != nil {
		return tx, fmt.Errorf("failed to parse stored amount: %w", err)
	}
	if tx.BalanceAfter, err = decimal.NewFromString(balanceText); err != nil {
		return tx, fmt.Errorf("failed to parse stored balance: %w", err)
	}
	return tx, nil
}

func (l *PostgresLedger) query(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ForCard implements Ledger.
func (l *PostgresLedger) ForCard(ctx context.Context, cardNumber string) ([]domain.Transaction, error) {
	return l.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE card_number = $1 OR target_card_number = $1 ORDER BY seq`,
		cardNumber)
}

// Recent implements Ledger.
func (l *PostgresLedger) Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error) {
	if count <= 0 {
		return []domain.Transaction{}, nil
	}
	return l.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE card_number = $1 OR target_card_number = $1 ORDER BY seq DESC LIMIT $2`,
		cardNumber, count)
}

// RemoveForCard implements Ledger.
func (l *PostgresLedger) RemoveForCard(ctx context.Context, cardNumber string) error {
	_, err := l.db.Exec(ctx, `DELETE FROM transactions WHERE card_number = $1`, cardNumber)
	if err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}
