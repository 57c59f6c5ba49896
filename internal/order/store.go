package order

import "context"

// Store is the contract this core consumes from the external order service.
//
// The core may transition paymentStatus/refundStatus/status but does not own
// the order lifecycle; anything beyond the financial fields is out of scope.
type Store interface {
	Get(ctx context.Context, orderID string) (Order, error)

	// SetPaymentStatus mirrors a Payment transition onto the order.
	// Implementations must apply it as a plain field write (idempotent).
	SetPaymentStatus(ctx context.Context, orderID string, ps PaymentStatus) error

	// SetRefundStatus mirrors refund progress onto the order.
	SetRefundStatus(ctx context.Context, orderID string, rs RefundStatus) error

	// SetStatus transitions the order itself (confirmed-awaiting-cash,
	// cancelled). Shipping transitions are never issued by this core.
	SetStatus(ctx context.Context, orderID string, st Status) error

	// ListDeliveredBySeller returns delivered orders that carry a breakdown
	// for the seller. Used by payout eligibility.
	ListDeliveredBySeller(ctx context.Context, sellerID string) ([]Order, error)
}
