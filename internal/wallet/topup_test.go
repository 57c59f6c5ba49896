package wallet

import (
	"context"
	"testing"

	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/idempotency"
)

type stubGateway struct {
	gateway.Client

	nextIntent int
}

func (s *stubGateway) CreateIntent(ctx context.Context, req gateway.CreateIntentRequest) (gateway.Intent, error) {
	s.nextIntent++
	return gateway.Intent{
		ID:           "pi_topup_1",
		ClientSecret: "pi_topup_1_secret",
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		Status:       gateway.IntentStatusRequiresPayment,
	}, nil
}

func TestTopup_CreateThenSettleCreditsOnce(t *testing.T) {
	ledger := NewService(NewMemoryStore())
	topups := NewTopupService(ledger, &stubGateway{}, idempotency.NewMemoryStore())
	ctx := context.Background()

	intent, err := topups.CreateIntent(ctx, "u1", 50000, "INR")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.ClientSecret == "" {
		t.Fatalf("intent should carry a client secret")
	}

	applied, err := topups.Settle(ctx, intent.ID, 50000, "INR")
	if err != nil || !applied {
		t.Fatalf("settle: applied=%v err=%v", applied, err)
	}

	// Redelivered webhook settles again without double-crediting.
	applied, err = topups.Settle(ctx, intent.ID, 50000, "INR")
	if err != nil || !applied {
		t.Fatalf("second settle: applied=%v err=%v", applied, err)
	}

	acct, _ := ledger.Balance(ctx, "u1", "INR")
	if acct.BalanceMinor != 50000 {
		t.Fatalf("expected one credit of 50000, got %d", acct.BalanceMinor)
	}
}

func TestTopup_SettleUnknownIntentIsIgnored(t *testing.T) {
	ledger := NewService(NewMemoryStore())
	topups := NewTopupService(ledger, &stubGateway{}, idempotency.NewMemoryStore())

	applied, err := topups.Settle(context.Background(), "pi_unknown", 1000, "INR")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if applied {
		t.Fatalf("unregistered intent must not credit anything")
	}
}

func TestWithdraw_DebitsWallet(t *testing.T) {
	ledger := NewService(NewMemoryStore())
	topups := NewTopupService(ledger, &stubGateway{}, idempotency.NewMemoryStore())
	ctx := context.Background()

	if _, _, err := ledger.Credit(ctx, CreditRequest{UserID: "s1", AmountMinor: 80000, Currency: "INR", Source: SourcePayout, ReferenceID: "po_1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	txn, acct, err := topups.Withdraw(ctx, "s1", 30000, "INR")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if txn.Source != SourceWithdrawal || txn.Type != TypeDebit {
		t.Fatalf("unexpected entry: %+v", txn)
	}
	if acct.BalanceMinor != 50000 {
		t.Fatalf("expected 50000 left, got %d", acct.BalanceMinor)
	}
}
