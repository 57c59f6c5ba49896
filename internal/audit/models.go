package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block money flows on audit
//   failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	// ActorRole may include hidden roles.
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	OrderID      string `json:"order_id,omitempty" db:"order_id"`
	PaymentID    string `json:"payment_id,omitempty" db:"payment_id"`
	PayoutID     string `json:"payout_id,omitempty" db:"payout_id"`
	WalletUserID string `json:"wallet_user_id,omitempty" db:"wallet_user_id"`

	// AmountMinor records the money involved, when the action moved any.
	AmountMinor int64 `json:"amount_minor,omitempty" db:"amount_minor"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction      EventType = "admin_action"
	EventTypeRefundAction     EventType = "refund_action"
	EventTypePayoutTransition EventType = "payout_transition"
)
