package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events.
//
// Assumed table: audit_events, INSERT-only (no UPDATE/DELETE issued here; a
// trigger should reject them at the database too).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, actor_user_id, actor_role, ip_address,
  order_id, payment_id, payout_id, wallet_user_id,
  amount_minor, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.OrderID,
		e.PaymentID,
		e.PayoutID,
		e.WalletUserID,
		e.AmountMinor,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
