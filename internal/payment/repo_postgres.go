package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-payments/internal/fault"
	"marketplace-payments/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo persists payments in Postgres.
//
// Assumed table: payments (id PK, UNIQUE (external_ref); partial unique index
// on order_id WHERE status = 'pending' enforces the one-active-payment rule at
// the storage layer too).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const pgUniqueViolation = "23505"

const paymentColumns = `
id, order_id, user_id, method, external_ref, amount_minor, currency,
status, refunded_minor, paid_at, failure_reason, created_at, updated_at
`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(
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
	)
	return p, err
}

func (r *PostgresRepo) Insert(ctx context.Context, p Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := r.db.ExecContext(ctx, q,
		p.ID,
		p.OrderID,
		p.UserID,
		p.Method,
		p.ExternalRef,
		p.AmountMinor,
		p.Currency,
		p.Status,
		p.RefundedMinor,
		p.PaidAt,
		p.FailureReason,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("payment for order %s: %w", p.OrderID, fault.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, fmt.Errorf("payment %s: %w", id, fault.ErrNotFound)
	}
	return p, err
}

func (r *PostgresRepo) FindByExternalRef(ctx context.Context, ref string) (Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE external_ref = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, fmt.Errorf("payment with ref %s: %w", ref, fault.ErrNotFound)
	}
	return p, err
}

func (r *PostgresRepo) FindByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindActiveByOrder(ctx context.Context, orderID string) (Payment, bool, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 AND status = $2 LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, orderID, StatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	return p, true, nil
}

// Mutate loads the row FOR UPDATE, applies fn, and writes back the mutable
// fields when fn reports a change.
func (r *PostgresRepo) Mutate(ctx context.Context, id string, fn func(p *Payment) (bool, error)) (Payment, bool, error) {
	var out Payment
	var applied bool

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
		p, err := scanPayment(tx.QueryRowContext(ctx, sel, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("payment %s: %w", id, fault.ErrNotFound)
		}
		if err != nil {
			return err
		}

		changed, err := fn(&p)
		if err != nil {
			return err
		}
		if !changed {
			out = p
			return nil
		}

		p.UpdatedAt = time.Now().UTC()
		const upd = `
UPDATE payments
SET status = $1, refunded_minor = $2, paid_at = $3, failure_reason = $4, updated_at = $5
WHERE id = $6
`
		if _, err := tx.ExecContext(ctx, upd,
			p.Status,
			p.RefundedMinor,
			p.PaidAt,
			p.FailureReason,
			p.UpdatedAt,
			p.ID,
		); err != nil {
			return err
		}
		out = p
		applied = true
		return nil
	})
	if err != nil {
		return Payment{}, false, err
	}
	return out, applied, nil
}
