package refund

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"marketplace-payments/internal/fault"
	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/order"
	"marketplace-payments/internal/payment"
	"marketplace-payments/internal/wallet"
)

// Payments is the slice of the payment service the router drives.
type Payments interface {
	ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error)
	ApplyRefundUpdate(ctx context.Context, externalRef string, refundedMinor int64) (payment.Payment, bool, error)
	ApplyGatewayFailure(ctx context.Context, externalRef, reason string) (payment.Payment, bool, error)
}

// Ledger credits refunds back onto buyer wallets. FindByReference tells a
// fresh execution from a retry of one whose money already moved.
type Ledger interface {
	Credit(ctx context.Context, req wallet.CreditRequest) (wallet.Transaction, wallet.Account, error)
	FindByReference(ctx context.Context, userID string, source wallet.Source, referenceID string) (wallet.Transaction, bool, error)
}

// Stock is the external product service contract for restoring sold quantity.
type Stock interface {
	AdjustStock(ctx context.Context, productID, variantID string, quantity int, op StockOp) error
}

type StockOp string

const (
	StockIncrement StockOp = "increment"
	StockDecrement StockOp = "decrement"
)

type Method string

const (
	// MethodOriginal reverses money along the channel it came in on.
	MethodOriginal Method = "original"
	MethodWallet   Method = "wallet"
)

// Result describes one executed refund.
type Result struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`

	// Channel is "wallet" or "gateway".
	Channel string `json:"channel"`

	// RefundedMinor is the cumulative refunded amount after this execution.
	RefundedMinor int64 `json:"refunded_minor"`
	FullyRefunded bool  `json:"fully_refunded"`
}

// Router executes refunds and cash-on-delivery cancellations.
//
// Ordering rule: the gateway call always happens before any local write, so a
// processor timeout leaves local state untouched and the operator can simply
// re-invoke. The gateway side dedupes on the idempotency key, the wallet side
// on the ledger reference. A retry of an execution whose money already moved
// is rejected with a conflict before the refunded figure or stock can advance
// a second time.
type Router struct {
	orders   order.Store
	payments Payments
	ledger   Ledger
	gw       gateway.Client
	stock    Stock
}

func NewRouter(orders order.Store, payments Payments, ledger Ledger, gw gateway.Client, stock Stock) *Router {
	return &Router{orders: orders, payments: payments, ledger: ledger, gw: gw, stock: stock}
}

// ProcessRefund refunds everything still outstanding on the order.
func (r *Router) ProcessRefund(ctx context.Context, orderID, reason string, requested Method) (Result, error) {
	o, p, err := r.loadRefundable(ctx, orderID)
	if err != nil {
		return Result{}, err
	}

	amount := o.FinalAmountMinor - p.RefundedMinor
	if amount <= 0 {
		return Result{}, fmt.Errorf("refund: order %s already fully refunded: %w", orderID, fault.ErrConflict)
	}

	res, err := r.execute(ctx, o, p, amount, reason, requested, refundRef(orderID, nil))
	if err != nil {
		return Result{}, err
	}
	if err := r.restoreStock(ctx, o.Items); err != nil {
		return Result{}, err
	}
	return res, nil
}

// ProcessPartialRefund refunds only the named items. Repeated calls with
// different items are allowed until the order is fully refunded.
func (r *Router) ProcessPartialRefund(ctx context.Context, orderID string, itemIDs []string, reason string, requested Method) (Result, error) {
	if len(itemIDs) == 0 {
		return Result{}, fmt.Errorf("refund: no items named: %w", fault.ErrValidation)
	}
	o, p, err := r.loadRefundable(ctx, orderID)
	if err != nil {
		return Result{}, err
	}

	items, amount, err := pickItems(o, itemIDs)
	if err != nil {
		return Result{}, err
	}
	if remaining := o.FinalAmountMinor - p.RefundedMinor; amount > remaining {
		return Result{}, fmt.Errorf("refund: items total %d exceeds outstanding %d: %w", amount, remaining, fault.ErrValidation)
	}

	res, err := r.execute(ctx, o, p, amount, reason, requested, refundRef(orderID, itemIDs))
	if err != nil {
		return Result{}, err
	}
	if err := r.restoreStock(ctx, items); err != nil {
		return Result{}, err
	}
	return res, nil
}

// CancelCOD cancels an undelivered cash order. No money ever moved, so this
// only flips statuses and restores stock.
func (r *Router) CancelCOD(ctx context.Context, orderID string) error {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status == order.StatusDelivered || o.Status == order.StatusCancelled {
		return fmt.Errorf("refund: order %s is %s, cannot cancel: %w", orderID, o.Status, fault.ErrConflict)
	}

	p, ok, err := r.findByStatus(ctx, orderID, payment.StatusPending)
	if err != nil {
		return err
	}
	if !ok || p.Method != payment.MethodCashOnDelivery {
		return fmt.Errorf("refund: order %s has no pending cash payment: %w", orderID, fault.ErrConflict)
	}

	if _, _, err := r.payments.ApplyGatewayFailure(ctx, p.ExternalRef, "order_cancelled"); err != nil {
		return err
	}
	if err := r.orders.SetStatus(ctx, orderID, order.StatusCancelled); err != nil {
		return err
	}
	return r.restoreStock(ctx, o.Items)
}

// Status reports refund progress for the order.
func (r *Router) Status(ctx context.Context, orderID string) (order.RefundStatus, []payment.Payment, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return "", nil, err
	}
	ps, err := r.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return "", nil, err
	}
	return o.RefundStatus, ps, nil
}

func (r *Router) loadRefundable(ctx context.Context, orderID string) (order.Order, payment.Payment, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, payment.Payment{}, err
	}
	if !o.RefundEligible() {
		return order.Order{}, payment.Payment{}, fmt.Errorf("refund: order %s refund status is %s: %w", orderID, o.RefundStatus, fault.ErrConflict)
	}

	p, ok, err := r.findSettled(ctx, orderID)
	if err != nil {
		return order.Order{}, payment.Payment{}, err
	}
	if !ok {
		return order.Order{}, payment.Payment{}, fmt.Errorf("refund: order %s has no settled payment: %w", orderID, fault.ErrConflict)
	}
	return o, p, nil
}

// findSettled returns the order's collected payment. Paid and partially
// refunded both qualify; a prior partial refund must not block the rest.
func (r *Router) findSettled(ctx context.Context, orderID string) (payment.Payment, bool, error) {
	ps, err := r.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return payment.Payment{}, false, err
	}
	for _, p := range ps {
		if p.Status == payment.StatusPaid || p.Status == payment.StatusPartiallyRefunded {
			return p, true, nil
		}
	}
	return payment.Payment{}, false, nil
}

func (r *Router) findByStatus(ctx context.Context, orderID string, st payment.Status) (payment.Payment, bool, error) {
	ps, err := r.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return payment.Payment{}, false, err
	}
	for _, p := range ps {
		if p.Status == st {
			return p, true, nil
		}
	}
	return payment.Payment{}, false, nil
}

func (r *Router) execute(ctx context.Context, o order.Order, p payment.Payment, amount int64, reason string, requested Method, ref string) (Result, error) {
	channel := decideChannel(requested, p.Method)

	switch channel {
	case "wallet":
		// A ledger hit means a prior execution already moved this money; the
		// refunded figure and stock must not advance again.
		if _, found, err := r.ledger.FindByReference(ctx, o.BuyerID, wallet.SourceRefund, ref); err != nil {
			return Result{}, err
		} else if found {
			return Result{}, fmt.Errorf("refund: %s already executed: %w", ref, fault.ErrConflict)
		}
		if _, _, err := r.ledger.Credit(ctx, wallet.CreditRequest{
			UserID:      o.BuyerID,
			AmountMinor: amount,
			Currency:    o.Currency,
			Source:      wallet.SourceRefund,
			ReferenceID: ref,
			Description: "refund for order " + o.ID,
		}); err != nil {
			return Result{}, err
		}
	case "gateway":
		gref, err := r.gw.CreateRefund(ctx, gateway.RefundRequest{
			IntentID:       p.ExternalRef,
			AmountMinor:    amount,
			Reason:         reason,
			IdempotencyKey: ref,
		})
		if err != nil {
			return Result{}, err
		}
		if gref.Replayed {
			return Result{}, fmt.Errorf("refund: %s already executed: %w", ref, fault.ErrConflict)
		}
	}

	// Money moved (or the processor accepted the refund); now advance local
	// state. ApplyRefundUpdate mirrors payment status onto the order.
	updated, _, err := r.payments.ApplyRefundUpdate(ctx, p.ExternalRef, p.RefundedMinor+amount)
	if err != nil {
		return Result{}, err
	}

	rs := order.RefundStatusProcessing
	full := updated.Status == payment.StatusRefunded
	if full {
		rs = order.RefundStatusCompleted
	}
	if err := r.orders.SetRefundStatus(ctx, o.ID, rs); err != nil {
		return Result{}, err
	}

	return Result{
		OrderID:       o.ID,
		PaymentID:     updated.ID,
		AmountMinor:   amount,
		Currency:      o.Currency,
		Channel:       channel,
		RefundedMinor: updated.RefundedMinor,
		FullyRefunded: full,
	}, nil
}

// decideChannel picks where the money goes back. Cash and wallet payments
// have no gateway charge to reverse, so they always land on the wallet.
func decideChannel(requested Method, original payment.Method) string {
	if requested == MethodWallet {
		return "wallet"
	}
	if original == payment.MethodCashOnDelivery || original == payment.MethodWallet {
		return "wallet"
	}
	return "gateway"
}

// refundRef builds the dedupe reference shared by the ledger and the gateway
// idempotency key. Item-scoped so distinct partial refunds never collide while
// a retried one does.
func refundRef(orderID string, itemIDs []string) string {
	if len(itemIDs) == 0 {
		return orderID
	}
	ids := append([]string(nil), itemIDs...)
	sort.Strings(ids)
	return orderID + "#" + strings.Join(ids, ",")
}

func pickItems(o order.Order, itemIDs []string) ([]order.Item, int64, error) {
	byID := make(map[string]order.Item, len(o.Items))
	for _, it := range o.Items {
		byID[it.ID] = it
	}

	var items []order.Item
	var total int64
	seen := map[string]bool{}
	for _, id := range itemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		it, ok := byID[id]
		if !ok {
			return nil, 0, fmt.Errorf("refund: item %s not on order %s: %w", id, o.ID, fault.ErrValidation)
		}
		items = append(items, it)
		total += it.TotalMinor
	}
	return items, total, nil
}

func (r *Router) restoreStock(ctx context.Context, items []order.Item) error {
	for _, it := range items {
		if err := r.stock.AdjustStock(ctx, it.ProductID, it.VariantID, it.Quantity, StockIncrement); err != nil {
			return fmt.Errorf("refund: restore stock for product %s: %w", it.ProductID, err)
		}
	}
	return nil
}
