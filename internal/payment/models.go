package payment

import "time"

// Payment records one attempt to collect money for an order via a specific
// channel. Created on initiation; mutated only by the webhook reconciler, the
// refund router, or an explicit COD collection confirmation; never deleted.
//
// Invariants:
// - exactly one non-terminal Payment per order at a time
// - RefundedMinor is monotonically non-decreasing and never exceeds AmountMinor
// - Status "refunded" implies RefundedMinor == AmountMinor
type Payment struct {
	ID      string `json:"id" db:"id"`
	OrderID string `json:"order_id" db:"order_id"`
	UserID  string `json:"user_id" db:"user_id"`

	Method Method `json:"method" db:"method"`

	// ExternalRef is the gateway charge-intent id, or a synthetic id for
	// COD/wallet payments.
	ExternalRef string `json:"external_ref" db:"external_ref"`

	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	Status        Status `json:"status" db:"status"`
	RefundedMinor int64  `json:"refunded_minor" db:"refunded_minor"`

	PaidAt        *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	FailureReason string     `json:"failure_reason,omitempty" db:"failure_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Method string

const (
	MethodGateway        Method = "gateway"
	MethodCashOnDelivery Method = "cash_on_delivery"
	MethodWallet         Method = "wallet"
)

func ValidMethod(m Method) bool {
	switch m {
	case MethodGateway, MethodCashOnDelivery, MethodWallet:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending           Status = "pending"
	StatusPaid              Status = "paid"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Terminal reports whether no further collection can happen on this payment.
// Paid and partially_refunded payments are still live for refund purposes but
// terminal for collection.
func (s Status) Terminal() bool {
	return s != StatusPending
}
