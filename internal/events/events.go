package events

import (
	"context"
	"time"
)

// Event is the integration message published to other services (notification,
// analytics, order fulfilment) after a money state change commits locally.
type Event struct {
	Type string `json:"type"`

	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	PayoutID  string `json:"payout_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	AmountMinor int64  `json:"amount_minor,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Status      string `json:"status,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

const (
	TypePaymentPaid     = "payment.paid"
	TypePaymentFailed   = "payment.failed"
	TypeRefundExecuted  = "refund.executed"
	TypePayoutCompleted = "payout.completed"
)

// Publisher emits integration events. Publishing is best-effort: callers log
// failures and continue, the ledger stays the source of truth.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop discards events; used when Kafka is not configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, ev Event) error { return nil }
func (Noop) Close() error                                { return nil }
