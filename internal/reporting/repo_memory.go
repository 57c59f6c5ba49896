package reporting

import (
	"context"
	"sync"
	"time"

	"marketplace-payments/internal/payment"
	"marketplace-payments/internal/wallet"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development.

type MemoryRepo struct {
	mu sync.Mutex

	Transactions []wallet.Transaction
	Payments     []payment.Payment
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListWalletTransactions(ctx context.Context, userID string, from, to time.Time) ([]wallet.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wallet.Transaction, 0)
	for _, e := range r.Transactions {
		if e.UserID != userID {
			continue
		}
		if !e.CreatedAt.IsZero() {
			if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MemoryRepo) ListPayments(ctx context.Context, from, to time.Time, method string) ([]payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]payment.Payment, 0)
	for _, p := range r.Payments {
		if method != "" && string(p.Method) != method {
			continue
		}
		if !p.CreatedAt.IsZero() {
			if p.CreatedAt.Before(from) || !p.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}
