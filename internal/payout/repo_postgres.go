package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-payments/internal/fault"
	"marketplace-payments/pkg/utils"
)

// PostgresRepo persists payouts in Postgres.
//
// Assumed tables:
// - payouts (id PK, seller_id, gross_minor, commission_minor, net_minor,
//   currency, method, status, transaction_ref, failure_reason, processed_at,
//   created_at, updated_at)
// - payout_orders (payout_id FK, order_id; PK (payout_id, order_id))
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, p Payout, verify func(ctx context.Context) error) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Serialize initiations per seller so the overlap check and the
		// insert are one atomic step.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.SellerID); err != nil {
			return err
		}

		const overlap = `
SELECT po.order_id
FROM payout_orders po
JOIN payouts p ON p.id = po.payout_id
WHERE p.seller_id = $1
  AND p.status IN ('pending','processing','completed')
  AND po.order_id = ANY($2)
LIMIT 1
`
		var taken string
		err := tx.QueryRowContext(ctx, overlap, p.SellerID, p.OrderIDs).Scan(&taken)
		if err == nil {
			return fmt.Errorf("payout: order %s already held by another payout: %w", taken, fault.ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// Under the seller lock: eligibility read at initiation time may have
		// changed by now, so the caller re-asserts it before the insert lands.
		if verify != nil {
			if err := verify(ctx); err != nil {
				return err
			}
		}

		const ins = `
INSERT INTO payouts (
  id, seller_id, gross_minor, commission_minor, net_minor, currency,
  method, status, transaction_ref, failure_reason, processed_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
		if _, err := tx.ExecContext(ctx, ins,
			p.ID, p.SellerID, p.GrossMinor, p.CommissionMinor, p.NetMinor, p.Currency,
			p.Method, p.Status, p.TransactionRef, p.FailureReason, p.ProcessedAt, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return err
		}

		const insOrder = `INSERT INTO payout_orders (payout_id, order_id) VALUES ($1,$2)`
		for _, orderID := range p.OrderIDs {
			if _, err := tx.ExecContext(ctx, insOrder, p.ID, orderID); err != nil {
				return err
			}
		}
		return nil
	})
}

const payoutColumns = `
id, seller_id, gross_minor, commission_minor, net_minor, currency,
method, status, transaction_ref, failure_reason, processed_at, created_at, updated_at
`

func scanPayout(row interface{ Scan(...any) error }) (Payout, error) {
	var p Payout
	err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.GrossMinor,
		&p.CommissionMinor,
		&p.NetMinor,
		&p.Currency,
		&p.Method,
		&p.Status,
		&p.TransactionRef,
		&p.FailureReason,
		&p.ProcessedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *PostgresRepo) loadOrderIDs(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, payoutID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT order_id FROM payout_orders WHERE payout_id = $1 ORDER BY order_id`, payoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Payout, error) {
	const q = `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`
	p, err := scanPayout(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Payout{}, fmt.Errorf("payout %s: %w", id, fault.ErrNotFound)
	}
	if err != nil {
		return Payout{}, err
	}
	p.OrderIDs, err = r.loadOrderIDs(ctx, r.db, id)
	return p, err
}

func (r *PostgresRepo) ListBySeller(ctx context.Context, sellerID string) ([]Payout, error) {
	const q = `SELECT ` + payoutColumns + ` FROM payouts WHERE seller_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].OrderIDs, err = r.loadOrderIDs(ctx, r.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PostgresRepo) HeldOrderIDs(ctx context.Context, sellerID string) (map[string]bool, error) {
	const q = `
SELECT po.order_id
FROM payout_orders po
JOIN payouts p ON p.id = po.payout_id
WHERE p.seller_id = $1 AND p.status IN ('pending','processing','completed')
`
	rows, err := r.db.QueryContext(ctx, q, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	held := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		held[id] = true
	}
	return held, rows.Err()
}

func (r *PostgresRepo) Mutate(ctx context.Context, id string, fn func(p *Payout) (bool, error)) (Payout, bool, error) {
	var out Payout
	var applied bool

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1 FOR UPDATE`
		p, err := scanPayout(tx.QueryRowContext(ctx, sel, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("payout %s: %w", id, fault.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if p.OrderIDs, err = r.loadOrderIDs(ctx, tx, id); err != nil {
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
UPDATE payouts
SET status = $1, transaction_ref = $2, failure_reason = $3, processed_at = $4, updated_at = $5
WHERE id = $6
`
		if _, err := tx.ExecContext(ctx, upd,
			p.Status, p.TransactionRef, p.FailureReason, p.ProcessedAt, p.UpdatedAt, p.ID,
		); err != nil {
			return err
		}
		out = p
		applied = true
		return nil
	})
	if err != nil {
		return Payout{}, false, err
	}
	return out, applied, nil
}
