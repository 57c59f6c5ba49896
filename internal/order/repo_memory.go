package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace-payments/internal/fault"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order

	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]Order{}, clock: time.Now}
}

// Put seeds or replaces an order; test helper.
func (s *MemoryStore) Put(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *MemoryStore) Get(ctx context.Context, orderID string) (Order, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("order %s: %w", orderID, fault.ErrNotFound)
	}
	return o, nil
}

func (s *MemoryStore) SetPaymentStatus(ctx context.Context, orderID string, ps PaymentStatus) error {
	return s.update(ctx, orderID, func(o *Order) { o.PaymentStatus = ps })
}

func (s *MemoryStore) SetRefundStatus(ctx context.Context, orderID string, rs RefundStatus) error {
	return s.update(ctx, orderID, func(o *Order) { o.RefundStatus = rs })
}

func (s *MemoryStore) SetStatus(ctx context.Context, orderID string, st Status) error {
	return s.update(ctx, orderID, func(o *Order) { o.Status = st })
}

func (s *MemoryStore) ListDeliveredBySeller(ctx context.Context, sellerID string) ([]Order, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Order
	for _, o := range s.orders {
		if o.Status != StatusDelivered {
			continue
		}
		if _, ok := o.Breakdown(sellerID); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemoryStore) update(ctx context.Context, orderID string, fn func(*Order)) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, fault.ErrNotFound)
	}
	fn(&o)
	o.UpdatedAt = s.clock().UTC()
	s.orders[orderID] = o
	return nil
}
