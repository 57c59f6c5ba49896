package refund

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"marketplace-payments/internal/fault"
	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/idempotency"
	"marketplace-payments/internal/order"
	"marketplace-payments/internal/payment"
	"marketplace-payments/internal/wallet"
)

type fakeGateway struct {
	gateway.Client

	refunds    []gateway.RefundRequest
	seen       map[string]gateway.Refund
	failRefund error
}

func (f *fakeGateway) CreateIntent(ctx context.Context, req gateway.CreateIntentRequest) (gateway.Intent, error) {
	return gateway.Intent{ID: "pi_1", ClientSecret: "secret", AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

// CreateRefund mimics the processor's idempotency cache: a repeated key gets
// the prior refund back, marked as a replay.
func (f *fakeGateway) CreateRefund(ctx context.Context, req gateway.RefundRequest) (gateway.Refund, error) {
	if f.failRefund != nil {
		return gateway.Refund{}, f.failRefund
	}
	if prior, ok := f.seen[req.IdempotencyKey]; ok {
		prior.Replayed = true
		return prior, nil
	}
	f.refunds = append(f.refunds, req)
	re := gateway.Refund{ID: fmt.Sprintf("re_%d", len(f.refunds)), IntentID: req.IntentID, AmountMinor: req.AmountMinor, Status: "succeeded"}
	if f.seen == nil {
		f.seen = map[string]gateway.Refund{}
	}
	f.seen[req.IdempotencyKey] = re
	return re, nil
}

type fakeStock struct {
	restored map[string]int
}

func (f *fakeStock) AdjustStock(ctx context.Context, productID, variantID string, quantity int, op StockOp) error {
	if op != StockIncrement {
		return errors.New("refunds only restore stock")
	}
	if f.restored == nil {
		f.restored = map[string]int{}
	}
	f.restored[productID] += quantity
	return nil
}

type fixture struct {
	router   *Router
	orders   *order.MemoryStore
	payments *payment.Service
	wallets  *wallet.Service
	gw       *fakeGateway
	stock    *fakeStock
}

func newFixture() *fixture {
	orders := order.NewMemoryStore()
	wallets := wallet.NewService(wallet.NewMemoryStore())
	gw := &fakeGateway{}
	payments := payment.NewService(payment.NewMemoryRepo(), orders, wallets, gw, idempotency.NewMemoryStore())
	stock := &fakeStock{}
	return &fixture{
		router:   NewRouter(orders, payments, wallets, gw, stock),
		orders:   orders,
		payments: payments,
		wallets:  wallets,
		gw:       gw,
		stock:    stock,
	}
}

// paidOrder seeds an order paid via the given method, with a refund request
// already raised.
func (f *fixture) paidOrder(t *testing.T, id string, method payment.Method, amount int64, items []order.Item) {
	t.Helper()
	ctx := context.Background()

	f.orders.Put(order.Order{
		ID:               id,
		BuyerID:          "buyer1",
		Status:           order.StatusConfirmed,
		PaymentStatus:    order.PaymentStatusPending,
		RefundStatus:     order.RefundStatusNone,
		FinalAmountMinor: amount,
		Currency:         "INR",
		Items:            items,
	})

	if method == payment.MethodWallet {
		if _, _, err := f.wallets.Credit(ctx, wallet.CreditRequest{
			UserID: "buyer1", AmountMinor: amount, Currency: "INR",
			Source: wallet.SourceTopup, ReferenceID: "seed_" + id,
		}); err != nil {
			t.Fatalf("seed wallet: %v", err)
		}
	}

	res, err := f.payments.Initiate(ctx, payment.InitiateRequest{OrderID: id, UserID: "buyer1", Method: method})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	switch method {
	case payment.MethodGateway:
		if _, _, err := f.payments.ApplyGatewaySuccess(ctx, res.Payment.ExternalRef); err != nil {
			t.Fatalf("settle: %v", err)
		}
	case payment.MethodCashOnDelivery:
		if _, err := f.payments.ConfirmCOD(ctx, id); err != nil {
			t.Fatalf("collect: %v", err)
		}
	}

	if err := f.orders.SetRefundStatus(ctx, id, order.RefundStatusRequested); err != nil {
		t.Fatalf("request refund: %v", err)
	}
}

func twoItems() []order.Item {
	return []order.Item{
		{ID: "i1", ProductID: "p1", SellerID: "s1", Quantity: 2, TotalMinor: 30000},
		{ID: "i2", ProductID: "p2", SellerID: "s1", Quantity: 1, TotalMinor: 20000},
	}
}

func TestProcessRefund_GatewayFullRefund(t *testing.T) {
	f := newFixture()
	f.paidOrder(t, "o1", payment.MethodGateway, 50000, twoItems())
	ctx := context.Background()

	res, err := f.router.ProcessRefund(ctx, "o1", "damaged", MethodOriginal)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if res.Channel != "gateway" || res.AmountMinor != 50000 || !res.FullyRefunded {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.gw.refunds) != 1 || f.gw.refunds[0].AmountMinor != 50000 || f.gw.refunds[0].IdempotencyKey == "" {
		t.Fatalf("gateway refund call wrong: %+v", f.gw.refunds)
	}

	o, _ := f.orders.Get(ctx, "o1")
	if o.RefundStatus != order.RefundStatusCompleted || o.PaymentStatus != order.PaymentStatusRefunded {
		t.Fatalf("order not mirrored: refund=%s payment=%s", o.RefundStatus, o.PaymentStatus)
	}
	if f.stock.restored["p1"] != 2 || f.stock.restored["p2"] != 1 {
		t.Fatalf("stock not restored: %v", f.stock.restored)
	}
}

func TestProcessRefund_CODGoesToWallet(t *testing.T) {
	f := newFixture()
	f.paidOrder(t, "o1", payment.MethodCashOnDelivery, 50000, twoItems())
	ctx := context.Background()

	res, err := f.router.ProcessRefund(ctx, "o1", "returned", MethodOriginal)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if res.Channel != "wallet" {
		t.Fatalf("cash refund must go to wallet, got %s", res.Channel)
	}
	if len(f.gw.refunds) != 0 {
		t.Fatalf("no gateway call expected for cash refund")
	}
	acct, _ := f.wallets.Balance(ctx, "buyer1", "INR")
	if acct.BalanceMinor != 50000 {
		t.Fatalf("buyer wallet should hold the refund, got %d", acct.BalanceMinor)
	}
}

func TestProcessPartialRefund_ThenRestIsRefundable(t *testing.T) {
	f := newFixture()
	f.paidOrder(t, "o1", payment.MethodGateway, 50000, twoItems())
	ctx := context.Background()

	res, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i2"}, "one item returned", MethodWallet)
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if res.AmountMinor != 20000 || res.FullyRefunded {
		t.Fatalf("unexpected partial result: %+v", res)
	}
	o, _ := f.orders.Get(ctx, "o1")
	if o.RefundStatus != order.RefundStatusProcessing || o.PaymentStatus != order.PaymentStatusPartiallyRefunded {
		t.Fatalf("order after partial: refund=%s payment=%s", o.RefundStatus, o.PaymentStatus)
	}
	if f.stock.restored["p2"] != 1 || f.stock.restored["p1"] != 0 {
		t.Fatalf("only the named item's stock restores: %v", f.stock.restored)
	}

	// The follow-up full refund covers only the outstanding remainder.
	res, err = f.router.ProcessRefund(ctx, "o1", "rest returned", MethodOriginal)
	if err != nil {
		t.Fatalf("remainder refund: %v", err)
	}
	if res.AmountMinor != 30000 || !res.FullyRefunded || res.RefundedMinor != 50000 {
		t.Fatalf("unexpected remainder result: %+v", res)
	}

	// Nothing left to refund.
	if _, err := f.router.ProcessRefund(ctx, "o1", "again", MethodOriginal); !errors.Is(err, fault.ErrConflict) {
		t.Fatalf("expected ErrConflict on fully refunded order, got %v", err)
	}
}

func TestProcessPartialRefund_RetrySameItemsDoesNotAdvance(t *testing.T) {
	f := newFixture()
	f.paidOrder(t, "o1", payment.MethodCashOnDelivery, 50000, twoItems())
	ctx := context.Background()

	if _, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i2"}, "returned", MethodOriginal); err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if _, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i2"}, "returned", MethodOriginal); !errors.Is(err, fault.ErrConflict) {
		t.Fatalf("expected ErrConflict on a retried item set, got %v", err)
	}

	ps, _ := f.payments.ListByOrder(ctx, "o1")
	if len(ps) != 1 || ps[0].RefundedMinor != 20000 || ps[0].Status != payment.StatusPartiallyRefunded {
		t.Fatalf("refunded figure moved on retry: %+v", ps)
	}
	acct, _ := f.wallets.Balance(ctx, "buyer1", "INR")
	if acct.BalanceMinor != 20000 {
		t.Fatalf("wallet must be credited exactly once, got %d", acct.BalanceMinor)
	}
	if f.stock.restored["p2"] != 1 {
		t.Fatalf("stock must restore exactly once, got %v", f.stock.restored)
	}

	// The other item is still refundable after the rejected retry.
	if _, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i1"}, "returned", MethodOriginal); err != nil {
		t.Fatalf("distinct item set: %v", err)
	}
}

func TestProcessPartialRefund_GatewayReplayDoesNotAdvance(t *testing.T) {
	f := newFixture()
	f.paidOrder(t, "o1", payment.MethodGateway, 50000, twoItems())
	ctx := context.Background()

	if _, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i2"}, "returned", MethodOriginal); err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if _, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i2"}, "returned", MethodOriginal); !errors.Is(err, fault.ErrConflict) {
		t.Fatalf("expected ErrConflict on a processor replay, got %v", err)
	}

	if len(f.gw.refunds) != 1 {
		t.Fatalf("processor must see one refund, got %d", len(f.gw.refunds))
	}
	ps, _ := f.payments.ListByOrder(ctx, "o1")
	if len(ps) != 1 || ps[0].RefundedMinor != 20000 || ps[0].Status != payment.StatusPartiallyRefunded {
		t.Fatalf("refunded figure moved on retry: %+v", ps)
	}
	if f.stock.restored["p2"] != 1 {
		t.Fatalf("stock must restore exactly once, got %v", f.stock.restored)
	}
}

func TestProcessPartialRefund_ItemsExceedingOutstandingRejected(t *testing.T) {
	f := newFixture()
	// Items add up to more than the discounted final amount.
	f.paidOrder(t, "o1", payment.MethodGateway, 40000, twoItems())
	ctx := context.Background()

	if _, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i1"}, "x", MethodOriginal); err != nil {
		t.Fatalf("first partial: %v", err)
	}
	_, err := f.router.ProcessPartialRefund(ctx, "o1", []string{"i2"}, "x", MethodOriginal)
	if !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("expected ErrValidation when items exceed outstanding, got %v", err)
	}
}

func TestProcessRefund_GatewayFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture()
	f.paidOrder(t, "o1", payment.MethodGateway, 50000, twoItems())
	f.gw.failRefund = fmt.Errorf("processor timeout: %w", fault.ErrGateway)
	ctx := context.Background()

	if _, err := f.router.ProcessRefund(ctx, "o1", "x", MethodOriginal); !errors.Is(err, fault.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}

	o, _ := f.orders.Get(ctx, "o1")
	if o.RefundStatus != order.RefundStatusRequested || o.PaymentStatus != order.PaymentStatusPaid {
		t.Fatalf("local state must be untouched: refund=%s payment=%s", o.RefundStatus, o.PaymentStatus)
	}
	if len(f.stock.restored) != 0 {
		t.Fatalf("stock must not restore on failure: %v", f.stock.restored)
	}

	// Operator retries the whole operation after the processor recovers.
	f.gw.failRefund = nil
	if _, err := f.router.ProcessRefund(ctx, "o1", "x", MethodOriginal); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestProcessRefund_RejectsIneligibleOrder(t *testing.T) {
	f := newFixture()
	f.orders.Put(order.Order{
		ID: "o1", BuyerID: "buyer1",
		Status: order.StatusConfirmed, PaymentStatus: order.PaymentStatusPaid,
		RefundStatus: order.RefundStatusNone, FinalAmountMinor: 1000, Currency: "INR",
	})

	if _, err := f.router.ProcessRefund(context.Background(), "o1", "x", MethodOriginal); !errors.Is(err, fault.ErrConflict) {
		t.Fatalf("expected ErrConflict without a refund request, got %v", err)
	}
}

func TestCancelCOD_FlipsStatusesWithoutMoney(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.orders.Put(order.Order{
		ID: "o1", BuyerID: "buyer1",
		Status: order.StatusConfirmed, PaymentStatus: order.PaymentStatusPending,
		RefundStatus: order.RefundStatusNone, FinalAmountMinor: 50000, Currency: "INR",
		Items: twoItems(),
	})
	if _, err := f.payments.Initiate(ctx, payment.InitiateRequest{OrderID: "o1", UserID: "buyer1", Method: payment.MethodCashOnDelivery}); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if err := f.router.CancelCOD(ctx, "o1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	o, _ := f.orders.Get(ctx, "o1")
	if o.Status != order.StatusCancelled || o.PaymentStatus != order.PaymentStatusFailed {
		t.Fatalf("order after cancel: status=%s payment=%s", o.Status, o.PaymentStatus)
	}
	if f.stock.restored["p1"] != 2 || f.stock.restored["p2"] != 1 {
		t.Fatalf("stock not restored: %v", f.stock.restored)
	}
	acct, _ := f.wallets.Balance(ctx, "buyer1", "INR")
	if acct.BalanceMinor != 0 {
		t.Fatalf("no money should move on cash cancellation, got %d", acct.BalanceMinor)
	}

	// Cancelling again finds nothing pending.
	if err := f.router.CancelCOD(ctx, "o1"); !errors.Is(err, fault.ErrConflict) {
		t.Fatalf("expected ErrConflict on second cancel, got %v", err)
	}
}

func TestCancelCOD_RejectsGatewayPaidOrders(t *testing.T) {
	f := newFixture()
	f.paidOrder(t, "o1", payment.MethodGateway, 50000, twoItems())

	if err := f.router.CancelCOD(context.Background(), "o1"); !errors.Is(err, fault.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
