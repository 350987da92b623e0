/**
 * @description
 * This file provides the PostgreSQL implementation of the AccountStore
 * interface. It contains the SQL to persist accounts, including the PIN
 * credential columns and the failed-login lockout state, and maps driver
 * errors onto the store sentinels.
 *
 * @notes
 * - Money columns are NUMERIC; values cross the driver boundary as text and
 *   are parsed with shopspring/decimal to avoid float rounding.
 * - EnsureSchema is idempotent and intended for local development; managed
 *   deployments run migrations out of band.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Money fields.
 * - internal/domain: Account model.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/atm-service/internal/domain"
)

// PostgresAccountStore is a pgxpool-backed AccountStore.
type PostgresAccountStore struct {
	db *pgxpool.Pool
}

// NewPostgresAccountStore creates a new instance of PostgresAccountStore.
func NewPostgresAccountStore(db *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

// EnsureSchema creates the accounts table if it does not exist.
func (r *PostgresAccountStore) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			card_number           VARCHAR(16) PRIMARY KEY,
			pin_hash              TEXT NOT NULL,
			pin_salt              TEXT NOT NULL,
			holder_name           TEXT NOT NULL,
			balance               NUMERIC(19, 4) NOT NULL DEFAULT 0,
			withdraw_limit        NUMERIC(19, 4) NOT NULL DEFAULT 0,
			locked                BOOLEAN NOT NULL DEFAULT FALSE,
			admin                 BOOLEAN NOT NULL DEFAULT FALSE,
			failed_login_attempts INT NOT NULL DEFAULT 0,
			last_failed_login_at  TIMESTAMPTZ,
			temporary_lock_until  TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure accounts schema: %w", err)
	}
	return nil
}

const accountColumns = `card_number, pin_hash, pin_salt, holder_name, balance::text, withdraw_limit::text,
	locked, admin, failed_login_attempts, last_failed_login_at, temporary_lock_until`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account           domain.Account
		balanceText       string
		limitText         string
		lastFailedLoginAt *time.Time
		lockUntil         *time.Time
	)
	err := row.Scan(
		&account.CardNumber,
		&account.PINHash,
		&account.PINSalt,
		&account.HolderName,
		&balanceText,
		&limitText,
		&account.Locked,
		&account.Admin,
		&account.FailedLoginAttempts,
		&lastFailedLoginAt,
		&lockUntil,
	)
	if err != nil {
		return nil, err
	}
	if account.Balance, err = decimal.NewFromString(balanceText); err != nil {
		return nil, fmt.Errorf("failed to parse stored balance: %w", err)
	}
	if account.WithdrawLimit, err = decimal.NewFromString(limitText); err != nil {
		return nil, fmt.Errorf("failed to parse stored withdraw limit: %w", err)
	}
	if lastFailedLoginAt != nil {
		account.LastFailedLoginAt = *lastFailedLoginAt
	}
	if lockUntil != nil {
		account.TemporaryLockUntil = *lockUntil
	}
	return &account, nil
}

// Get implements AccountStore.
func (r *PostgresAccountStore) Get(ctx context.Context, cardNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE card_number = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, query, cardNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// Put implements AccountStore as an upsert keyed by card number.
func (r *PostgresAccountStore) Put(ctx context.Context, account *domain.Account) error {
	if account == nil || !account.IsValid() {
		return ErrInvalidAccount
	}
	query := `
		INSERT INTO accounts (card_number, pin_hash, pin_salt, holder_name, balance, withdraw_limit,
			locked, admin, failed_login_attempts, last_failed_login_at, temporary_lock_until)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11)
		ON CONFLICT (card_number) DO UPDATE SET
			pin_hash = EXCLUDED.pin_hash,
			pin_salt = EXCLUDED.pin_salt,
			holder_name = EXCLUDED.holder_name,
			balance = EXCLUDED.balance,
			withdraw_limit = EXCLUDED.withdraw_limit,
			locked = EXCLUDED.locked,
			admin = EXCLUDED.admin,
			failed_login_attempts = EXCLUDED.failed_login_attempts,
			last_failed_login_at = EXCLUDED.last_failed_login_at,
			temporary_lock_until = EXCLUDED.temporary_lock_until
	`
	_, err := r.db.Exec(ctx, query,
		account.CardNumber,
		account.PINHash,
		account.PINSalt,
		account.HolderName,
		account.Balance.String(),
		account.WithdrawLimit.String(),
		account.Locked,
		account.Admin,
		account.FailedLoginAttempts,
		nullableTime(account.LastFailedLoginAt),
		nullableTime(account.TemporaryLockUntil),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCard
		}
		return fmt.Errorf("failed to persist account: %w", err)
	}
	return nil
}

// Remove implements AccountStore.
func (r *PostgresAccountStore) Remove(ctx context.Context, cardNumber string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE card_number = $1`, cardNumber)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// List implements AccountStore.
func (r *PostgresAccountStore) List(ctx context.Context) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY card_number`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// Exists implements AccountStore.
func (r *PostgresAccountStore) Exists(ctx context.Context, cardNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE card_number = $1)`, cardNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
