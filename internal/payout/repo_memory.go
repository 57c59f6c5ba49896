package payout

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
	mu      sync.Mutex
	payouts map[string]Payout

	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{payouts: map[string]Payout{}, clock: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, p Payout, verify func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	held := r.heldLocked(p.SellerID)
	for _, id := range p.OrderIDs {
		if held[id] {
			return fmt.Errorf("payout: order %s already held by another payout: %w", id, fault.ErrConflict)
		}
	}
	if verify != nil {
		if err := verify(ctx); err != nil {
			return err
		}
	}
	r.payouts[p.ID] = p
	return nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (Payout, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok {
		return Payout{}, fmt.Errorf("payout %s: %w", id, fault.ErrNotFound)
	}
	return p, nil
}

func (r *MemoryRepo) ListBySeller(ctx context.Context, sellerID string) ([]Payout, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Payout
	for _, p := range r.payouts {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) HeldOrderIDs(ctx context.Context, sellerID string) (map[string]bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heldLocked(sellerID), nil
}

func (r *MemoryRepo) heldLocked(sellerID string) map[string]bool {
	held := map[string]bool{}
	for _, p := range r.payouts {
		if p.SellerID != sellerID || !p.Status.Holds() {
			continue
		}
		for _, id := range p.OrderIDs {
			held[id] = true
		}
	}
	return held
}

func (r *MemoryRepo) Mutate(ctx context.Context, id string, fn func(p *Payout) (bool, error)) (Payout, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payouts[id]
	if !ok {
		return Payout{}, false, fmt.Errorf("payout %s: %w", id, fault.ErrNotFound)
	}
	changed, err := fn(&p)
	if err != nil {
		return Payout{}, false, err
	}
	if !changed {
		return p, false, nil
	}
	p.UpdatedAt = r.clock().UTC()
	r.payouts[id] = p
	return p, true, nil
}
