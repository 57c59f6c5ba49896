package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-payments/internal/fault"
	"marketplace-payments/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore persists the ledger in Postgres.
//
// Assumed tables:
// - wallet_accounts (user_id PK, currency, balance_minor, created_at, updated_at)
// - wallet_transactions (append-only; UNIQUE (user_id, source, reference_id))
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgUniqueViolation = "23505"

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (Account, bool, error) {
	const q = `
SELECT user_id, currency, balance_minor, created_at, updated_at
FROM wallet_accounts
WHERE user_id = $1
`
	var a Account
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&a.UserID,
		&a.Currency,
		&a.BalanceMinor,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	return a, true, nil
}

func (s *PostgresStore) EnsureAccount(ctx context.Context, a Account) error {
	const q = `
INSERT INTO wallet_accounts (user_id, currency, balance_minor, created_at, updated_at)
VALUES ($1,$2,0,$3,$4)
ON CONFLICT (user_id) DO NOTHING
`
	_, err := s.db.ExecContext(ctx, q, a.UserID, a.Currency, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *PostgresStore) AppendTransaction(ctx context.Context, txn Transaction) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const ins = `
INSERT INTO wallet_transactions (
  id, user_id, type, amount_minor, currency,
  balance_before_minor, balance_after_minor, source, reference_id, description, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
		if _, err := tx.ExecContext(ctx, ins,
			txn.ID,
			txn.UserID,
			txn.Type,
			txn.AmountMinor,
			txn.Currency,
			txn.BalanceBeforeMinor,
			txn.BalanceAfterMinor,
			txn.Source,
			txn.ReferenceID,
			txn.Description,
			txn.CreatedAt,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				// A concurrent retry with the same dedupe key won; the service
				// will re-read and return the existing entry.
				return fmt.Errorf("wallet: duplicate reference %s/%s: %w", txn.Source, txn.ReferenceID, fault.ErrConflict)
			}
			return err
		}

		// Conditional projection update: the write only lands if the balance
		// is still what the service read.
		const upd = `
UPDATE wallet_accounts
SET balance_minor = $1, updated_at = $2
WHERE user_id = $3 AND balance_minor = $4
`
		res, err := tx.ExecContext(ctx, upd, txn.BalanceAfterMinor, txn.CreatedAt, txn.UserID, txn.BalanceBeforeMinor)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("wallet: balance moved under %s: %w", txn.UserID, fault.ErrConflict)
		}
		return nil
	})
}

func (s *PostgresStore) FindByReference(ctx context.Context, userID string, source Source, referenceID string) (Transaction, bool, error) {
	const q = `
SELECT id, user_id, type, amount_minor, currency,
       balance_before_minor, balance_after_minor, source, reference_id, description, created_at
FROM wallet_transactions
WHERE user_id = $1 AND source = $2 AND reference_id = $3
LIMIT 1
`
	var e Transaction
	err := s.db.QueryRowContext(ctx, q, userID, source, referenceID).Scan(
		&e.ID,
		&e.UserID,
		&e.Type,
		&e.AmountMinor,
		&e.Currency,
		&e.BalanceBeforeMinor,
		&e.BalanceAfterMinor,
		&e.Source,
		&e.ReferenceID,
		&e.Description,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return e, true, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	q := `
SELECT id, user_id, type, amount_minor, currency,
       balance_before_minor, balance_after_minor, source, reference_id, description, created_at
FROM wallet_transactions
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
`
	args := []any{userID}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var e Transaction
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Type,
			&e.AmountMinor,
			&e.Currency,
			&e.BalanceBeforeMinor,
			&e.BalanceAfterMinor,
			&e.Source,
			&e.ReferenceID,
			&e.Description,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
