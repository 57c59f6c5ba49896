package payout

import "time"

// Payout moves a seller's accumulated earnings out of the platform.
//
// Invariants:
// - an order id appears in at most one payout per seller across
//   pending/processing/completed; failed payouts release their orders
// - amounts are recomputed from the order breakdowns at initiation, never
//   taken from the caller
// - completion credits the seller wallet exactly once
type Payout struct {
	ID       string   `json:"id" db:"id"`
	SellerID string   `json:"seller_id" db:"seller_id"`
	OrderIDs []string `json:"order_ids"`

	// GrossMinor is the sellers' subtotal across the orders; NetMinor is what
	// actually lands in the wallet. Gross = Commission + Net.
	GrossMinor      int64  `json:"gross_minor" db:"gross_minor"`
	CommissionMinor int64  `json:"commission_minor" db:"commission_minor"`
	NetMinor        int64  `json:"net_minor" db:"net_minor"`
	Currency        string `json:"currency" db:"currency"`

	Method Method `json:"method" db:"method"`
	Status Status `json:"status" db:"status"`

	// TransactionRef is the external transfer reference recorded on
	// completion (bank UTR, processor transfer id).
	TransactionRef string `json:"transaction_ref,omitempty" db:"transaction_ref"`
	FailureReason  string `json:"failure_reason,omitempty" db:"failure_reason"`

	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodWallet       Method = "wallet"
)

func ValidMethod(m Method) bool {
	return m == MethodBankTransfer || m == MethodWallet
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Holds reports whether the payout's orders are locked against inclusion in
// another payout. Failed payouts release their orders.
func (s Status) Holds() bool {
	return s == StatusPending || s == StatusProcessing || s == StatusCompleted
}

// Pending is the read-only preview returned by CalculatePending.
type Pending struct {
	SellerID        string   `json:"seller_id"`
	OrderIDs        []string `json:"order_ids"`
	GrossMinor      int64    `json:"gross_minor"`
	CommissionMinor int64    `json:"commission_minor"`
	NetMinor        int64    `json:"net_minor"`
	Currency        string   `json:"currency"`
}
