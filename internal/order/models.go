package order

import (
	"time"

	"marketplace-payments/internal/money"
)

// Order is owned by the external order service. This core co-owns only the
// financial fields (payment status, refund status, final amount, seller
// breakdown) and transitions them alongside Payment mutations; the shipping
// lifecycle is external.
type Order struct {
	ID      string `json:"id" db:"id"`
	BuyerID string `json:"buyer_id" db:"buyer_id"`

	Status        Status        `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	RefundStatus  RefundStatus  `json:"refund_status" db:"refund_status"`

	// FinalAmountMinor is the post-discount total computed by the external
	// coupon/pricing collaborator. This core never recomputes it.
	FinalAmountMinor int64  `json:"final_amount_minor" db:"final_amount_minor"`
	Currency         string `json:"currency" db:"currency"`

	Items           []Item            `json:"items"`
	SellerBreakdown []SellerBreakdown `json:"seller_breakdown"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Item struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	SellerID  string `json:"seller_id"`
	Quantity  int    `json:"quantity"`

	// TotalMinor is the item's share of the final amount.
	TotalMinor int64 `json:"total_minor"`
}

// SellerBreakdown is the per-seller financial snapshot captured at checkout.
// Earnings + Commission == Subtotal.
type SellerBreakdown struct {
	SellerID        string `json:"seller_id"`
	SubtotalMinor   int64  `json:"subtotal_minor"`
	CommissionMinor int64  `json:"commission_minor"`
	EarningsMinor   int64  `json:"earnings_minor"`
}

// NewSellerBreakdown derives a breakdown from a subtotal and the seller's
// commission rate in basis points.
func NewSellerBreakdown(sellerID string, subtotalMinor, commissionRateBps int64) SellerBreakdown {
	commission := money.Commission(subtotalMinor, commissionRateBps)
	return SellerBreakdown{
		SellerID:        sellerID,
		SubtotalMinor:   subtotalMinor,
		CommissionMinor: commission,
		EarningsMinor:   subtotalMinor - commission,
	}
}

type Status string

const (
	StatusPending      Status = "pending"
	StatusConfirmed    Status = "confirmed"
	StatusAwaitingCash Status = "awaiting_cash"
	StatusProcessing   Status = "processing"
	StatusShipped      Status = "shipped"
	StatusDelivered    Status = "delivered"
	StatusCancelled    Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

type RefundStatus string

const (
	RefundStatusNone       RefundStatus = "none"
	RefundStatusRequested  RefundStatus = "requested"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusRejected   RefundStatus = "rejected"
)

// Payable reports whether a payment may be initiated for the order.
func (o Order) Payable() bool {
	return o.Status == StatusConfirmed && o.PaymentStatus == PaymentStatusPending
}

// RefundEligible reports whether the refund router may act on the order.
func (o Order) RefundEligible() bool {
	return o.RefundStatus == RefundStatusRequested || o.RefundStatus == RefundStatusProcessing
}

// Breakdown returns the seller's snapshot, if present.
func (o Order) Breakdown(sellerID string) (SellerBreakdown, bool) {
	for _, b := range o.SellerBreakdown {
		if b.SellerID == sellerID {
			return b, true
		}
	}
	return SellerBreakdown{}, false
}
