package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"marketplace-payments/internal/fault"
)

func TestCredit_LazilyCreatesAccount(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	txn, acct, err := svc.Credit(ctx, CreditRequest{
		UserID: "u1", AmountMinor: 50000, Currency: "INR",
		Source: SourceTopup, ReferenceID: "pi_1",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if acct.BalanceMinor != 50000 {
		t.Fatalf("expected balance 50000, got %d", acct.BalanceMinor)
	}
	if txn.BalanceBeforeMinor != 0 || txn.BalanceAfterMinor != 50000 {
		t.Fatalf("unexpected before/after: %+v", txn)
	}
}

func TestDebit_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	// balance 300.00
	if _, _, err := svc.Credit(ctx, CreditRequest{UserID: "u1", AmountMinor: 30000, Currency: "INR", Source: SourceTopup, ReferenceID: "pi_1"}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	// debit 500.00
	_, _, err := svc.Debit(ctx, DebitRequest{UserID: "u1", AmountMinor: 50000, Currency: "INR", Source: SourceOrderPayment, ReferenceID: "o1"})
	if !errors.Is(err, fault.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	acct, err := svc.Balance(ctx, "u1", "INR")
	if err != nil || acct.BalanceMinor != 30000 {
		t.Fatalf("balance should be unchanged at 30000, got %d (%v)", acct.BalanceMinor, err)
	}
	txns, _ := svc.Transactions(ctx, "u1", 0)
	if len(txns) != 1 {
		t.Fatalf("no transaction should be written for a rejected debit, got %d", len(txns))
	}
}

func TestLedger_FoldReconstructsBalance(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	ops := []struct {
		typ    Type
		amount int64
		source Source
		ref    string
	}{
		{TypeCredit, 100000, SourceTopup, "pi_1"},
		{TypeDebit, 25000, SourceOrderPayment, "o1"},
		{TypeCredit, 5000, SourceCashback, "cb_1"},
		{TypeDebit, 40000, SourceWithdrawal, "wd_1"},
		{TypeCredit, 25000, SourceRefund, "o1"},
	}
	for _, op := range ops {
		var err error
		if op.typ == TypeCredit {
			_, _, err = svc.Credit(ctx, CreditRequest{UserID: "u1", AmountMinor: op.amount, Currency: "INR", Source: op.source, ReferenceID: op.ref})
		} else {
			_, _, err = svc.Debit(ctx, DebitRequest{UserID: "u1", AmountMinor: op.amount, Currency: "INR", Source: op.source, ReferenceID: op.ref})
		}
		if err != nil {
			t.Fatalf("%s %d: %v", op.typ, op.amount, err)
		}
	}

	txns, err := svc.Transactions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// newest first; fold oldest→newest
	var folded int64
	for i := len(txns) - 1; i >= 0; i-- {
		e := txns[i]
		if e.BalanceBeforeMinor != folded {
			t.Fatalf("entry %s: balance_before %d != folded %d", e.ID, e.BalanceBeforeMinor, folded)
		}
		switch e.Type {
		case TypeCredit:
			folded += e.AmountMinor
		case TypeDebit:
			folded -= e.AmountMinor
		}
		if e.BalanceAfterMinor != folded {
			t.Fatalf("entry %s: balance_after %d != folded %d", e.ID, e.BalanceAfterMinor, folded)
		}
		if e.BalanceAfterMinor < 0 {
			t.Fatalf("entry %s: negative balance_after", e.ID)
		}
	}

	acct, _ := svc.Balance(ctx, "u1", "INR")
	if acct.BalanceMinor != folded {
		t.Fatalf("projection %d != folded %d", acct.BalanceMinor, folded)
	}
	if folded != 65000 {
		t.Fatalf("expected final balance 65000, got %d", folded)
	}
}

func TestCredit_DuplicateReferenceIsIdempotent(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	first, _, err := svc.Credit(ctx, CreditRequest{UserID: "u1", AmountMinor: 10000, Currency: "INR", Source: SourcePayout, ReferenceID: "po_1"})
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}
	second, acct, err := svc.Credit(ctx, CreditRequest{UserID: "u1", AmountMinor: 10000, Currency: "INR", Source: SourcePayout, ReferenceID: "po_1"})
	if err != nil {
		t.Fatalf("retried credit: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("retry should return the original entry")
	}
	if acct.BalanceMinor != 10000 {
		t.Fatalf("balance should be credited once, got %d", acct.BalanceMinor)
	}
}

func TestCredit_RejectsInvalidArgs(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	cases := []CreditRequest{
		{UserID: "", AmountMinor: 100, Currency: "INR", Source: SourceTopup, ReferenceID: "r"},
		{UserID: "u", AmountMinor: 0, Currency: "INR", Source: SourceTopup, ReferenceID: "r"},
		{UserID: "u", AmountMinor: -5, Currency: "INR", Source: SourceTopup, ReferenceID: "r"},
		{UserID: "u", AmountMinor: 100, Currency: "", Source: SourceTopup, ReferenceID: "r"},
		{UserID: "u", AmountMinor: 100, Currency: "INR", Source: "mystery", ReferenceID: "r"},
		{UserID: "u", AmountMinor: 100, Currency: "INR", Source: SourceTopup, ReferenceID: ""},
	}
	for i, req := range cases {
		if _, _, err := svc.Credit(ctx, req); !errors.Is(err, fault.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestDebit_CurrencyMismatchRejected(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, CreditRequest{UserID: "u1", AmountMinor: 1000, Currency: "INR", Source: SourceTopup, ReferenceID: "pi_1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := svc.Debit(ctx, DebitRequest{UserID: "u1", AmountMinor: 100, Currency: "USD", Source: SourceOrderPayment, ReferenceID: "o1"}); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("expected currency mismatch validation error, got %v", err)
	}
}

func TestConcurrentCredits_SerializePerWallet(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.Credit(ctx, CreditRequest{
				UserID: "u1", AmountMinor: 100, Currency: "INR",
				Source: SourceCashback, ReferenceID: fmt.Sprintf("cb_%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent credit: %v", err)
		}
	}

	acct, _ := svc.Balance(ctx, "u1", "INR")
	if acct.BalanceMinor != n*100 {
		t.Fatalf("expected %d, got %d", n*100, acct.BalanceMinor)
	}
}
