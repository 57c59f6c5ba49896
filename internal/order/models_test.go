package order

import "testing"

func TestPayable(t *testing.T) {
	o := Order{Status: StatusConfirmed, PaymentStatus: PaymentStatusPending}
	if !o.Payable() {
		t.Fatalf("confirmed+pending should be payable")
	}
	o.PaymentStatus = PaymentStatusPaid
	if o.Payable() {
		t.Fatalf("paid order should not be payable")
	}
	o = Order{Status: StatusPending, PaymentStatus: PaymentStatusPending}
	if o.Payable() {
		t.Fatalf("unconfirmed order should not be payable")
	}
}

func TestRefundEligible(t *testing.T) {
	for _, rs := range []RefundStatus{RefundStatusRequested, RefundStatusProcessing} {
		if !(Order{RefundStatus: rs}).RefundEligible() {
			t.Fatalf("%s should be refund-eligible", rs)
		}
	}
	for _, rs := range []RefundStatus{RefundStatusNone, RefundStatusCompleted, RefundStatusRejected} {
		if (Order{RefundStatus: rs}).RefundEligible() {
			t.Fatalf("%s should not be refund-eligible", rs)
		}
	}
}

func TestNewSellerBreakdown(t *testing.T) {
	b := NewSellerBreakdown("s1", 100000, 1000) // 10%
	if b.CommissionMinor != 10000 || b.EarningsMinor != 90000 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if b.CommissionMinor+b.EarningsMinor != b.SubtotalMinor {
		t.Fatalf("breakdown must sum to subtotal")
	}
}

func TestBreakdownLookup(t *testing.T) {
	o := Order{SellerBreakdown: []SellerBreakdown{
		NewSellerBreakdown("s1", 60000, 1000),
		NewSellerBreakdown("s2", 40000, 500),
	}}
	b, ok := o.Breakdown("s2")
	if !ok || b.SubtotalMinor != 40000 {
		t.Fatalf("expected s2 breakdown, got %+v ok=%v", b, ok)
	}
	if _, ok := o.Breakdown("s3"); ok {
		t.Fatalf("unexpected breakdown for unknown seller")
	}
}
