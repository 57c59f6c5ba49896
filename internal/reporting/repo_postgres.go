package reporting

import (
	"context"
	"database/sql"
	"time"

	"marketplace-payments/internal/payment"
	"marketplace-payments/internal/wallet"
)

// PostgresRepo reads report rows straight from the ledger and payment tables.
// Both are effectively immutable for the queried ranges, so no locking.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ListWalletTransactions(ctx context.Context, userID string, from, to time.Time) ([]wallet.Transaction, error) {
	const q = `
SELECT id, user_id, type, amount_minor, currency,
       balance_before_minor, balance_after_minor, source, reference_id, description, created_at
FROM wallet_transactions
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC, id ASC
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.Transaction
	for rows.Next() {
		var e wallet.Transaction
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

func (r *PostgresRepo) ListPayments(ctx context.Context, from, to time.Time, method string) ([]payment.Payment, error) {
	q := `
SELECT id, order_id, user_id, method, external_ref, amount_minor, currency,
       status, refunded_minor, paid_at, failure_reason, created_at, updated_at
FROM payments
WHERE created_at >= $1 AND created_at < $2
`
	args := []any{from, to}
	if method != "" {
		q += " AND method = $3"
		args = append(args, method)
	}
	q += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payment.Payment
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(
			&p.ID,
			&p.OrderID,
			&p.UserID,
			&p.Method,
			&p.ExternalRef,
			&p.AmountMinor,
			&p.Currency,
			&p.Status,
			&p.RefundedMinor,
			&p.PaidAt,
			&p.FailureReason,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
