package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketplace-payments/internal/fault"
)

// MemoryRepo is an in-memory Repository for tests and early development.
type MemoryRepo struct {
	mu       sync.Mutex
	payments map[string]Payment

	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{payments: map[string]Payment{}, clock: time.Now}
}

func (r *MemoryRepo) Insert(ctx context.Context, p Payment) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID]; ok {
		return fmt.Errorf("payment %s exists: %w", p.ID, fault.ErrConflict)
	}
	r.payments[p.ID] = p
	return nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (Payment, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, fmt.Errorf("payment %s: %w", id, fault.ErrNotFound)
	}
	return p, nil
}

func (r *MemoryRepo) FindByExternalRef(ctx context.Context, ref string) (Payment, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ExternalRef == ref {
			return p, nil
		}
	}
	return Payment{}, fmt.Errorf("payment with ref %s: %w", ref, fault.ErrNotFound)
}

func (r *MemoryRepo) FindByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) FindActiveByOrder(ctx context.Context, orderID string) (Payment, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderID == orderID && !p.Status.Terminal() {
			return p, true, nil
		}
	}
	return Payment{}, false, nil
}

func (r *MemoryRepo) Mutate(ctx context.Context, id string, fn func(p *Payment) (bool, error)) (Payment, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return Payment{}, false, fmt.Errorf("payment %s: %w", id, fault.ErrNotFound)
	}
	changed, err := fn(&p)
	if err != nil {
		return Payment{}, false, err
	}
	if !changed {
		return p, false, nil
	}
	p.UpdatedAt = r.clock().UTC()
	r.payments[id] = p
	return p, true, nil
}
