package payout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketplace-payments/internal/fault"
	"marketplace-payments/internal/order"
	"marketplace-payments/internal/wallet"

	"github.com/google/uuid"
)

// Ledger credits completed payouts onto seller wallets.
type Ledger interface {
	Credit(ctx context.Context, req wallet.CreditRequest) (wallet.Transaction, wallet.Account, error)
}

// Service owns the payout lifecycle for seller earnings.
type Service struct {
	repo   Repository
	orders order.Store
	ledger Ledger

	clock func() time.Time
}

func NewService(repo Repository, orders order.Store, ledger Ledger) *Service {
	return &Service{repo: repo, orders: orders, ledger: ledger, clock: time.Now}
}

// SetClock overrides the service clock; test helper.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// CalculatePending previews what the seller could be paid right now:
// delivered, collected orders not held by any pending/processing/completed
// payout. Failed payouts release their orders back into this set.
func (s *Service) CalculatePending(ctx context.Context, sellerID string) (Pending, error) {
	if sellerID == "" {
		return Pending{}, fmt.Errorf("payout: seller id required: %w", fault.ErrValidation)
	}

	delivered, err := s.orders.ListDeliveredBySeller(ctx, sellerID)
	if err != nil {
		return Pending{}, err
	}
	held, err := s.repo.HeldOrderIDs(ctx, sellerID)
	if err != nil {
		return Pending{}, err
	}

	p := Pending{SellerID: sellerID}
	for _, o := range delivered {
		if held[o.ID] || o.PaymentStatus != order.PaymentStatusPaid {
			continue
		}
		b, ok := o.Breakdown(sellerID)
		if !ok {
			continue
		}
		p.OrderIDs = append(p.OrderIDs, o.ID)
		p.GrossMinor += b.SubtotalMinor
		p.CommissionMinor += b.CommissionMinor
		p.NetMinor += b.EarningsMinor
		p.Currency = o.Currency
	}
	sort.Strings(p.OrderIDs)
	return p, nil
}

// Initiate creates a pending payout over the given orders. Every order is
// re-verified and the amounts recomputed from the stored breakdowns; client
// figures are never trusted. Disjointness against existing payouts is
// enforced inside the repository's critical section.
func (s *Service) Initiate(ctx context.Context, sellerID string, orderIDs []string, method Method) (Payout, error) {
	if sellerID == "" {
		return Payout{}, fmt.Errorf("payout: seller id required: %w", fault.ErrValidation)
	}
	if len(orderIDs) == 0 {
		return Payout{}, fmt.Errorf("payout: no orders named: %w", fault.ErrValidation)
	}
	if !ValidMethod(method) {
		return Payout{}, fmt.Errorf("payout: unknown method %q: %w", method, fault.ErrValidation)
	}

	now := s.clock().UTC()
	p := Payout{
		ID:        uuid.NewString(),
		SellerID:  sellerID,
		Method:    method,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	seen := map[string]bool{}
	for _, orderID := range orderIDs {
		if seen[orderID] {
			return Payout{}, fmt.Errorf("payout: order %s named twice: %w", orderID, fault.ErrValidation)
		}
		seen[orderID] = true

		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return Payout{}, err
		}
		if o.Status != order.StatusDelivered {
			return Payout{}, fmt.Errorf("payout: order %s is %s, not delivered: %w", orderID, o.Status, fault.ErrConflict)
		}
		if o.PaymentStatus != order.PaymentStatusPaid {
			return Payout{}, fmt.Errorf("payout: order %s payment is %s: %w", orderID, o.PaymentStatus, fault.ErrConflict)
		}
		b, ok := o.Breakdown(sellerID)
		if !ok {
			return Payout{}, fmt.Errorf("payout: order %s has no breakdown for seller %s: %w", orderID, sellerID, fault.ErrValidation)
		}
		if p.Currency != "" && p.Currency != o.Currency {
			return Payout{}, fmt.Errorf("payout: mixed currencies %s and %s: %w", p.Currency, o.Currency, fault.ErrValidation)
		}
		p.Currency = o.Currency
		p.OrderIDs = append(p.OrderIDs, orderID)
		p.GrossMinor += b.SubtotalMinor
		p.CommissionMinor += b.CommissionMinor
		p.NetMinor += b.EarningsMinor
	}

	// A refund can land between the reads above and the insert. Create runs
	// this re-check inside the same critical section as the insert, so a
	// just-refunded order can never end up held by a pending payout.
	eligible := func(ctx context.Context) error {
		for _, orderID := range p.OrderIDs {
			o, err := s.orders.Get(ctx, orderID)
			if err != nil {
				return err
			}
			if o.Status != order.StatusDelivered || o.PaymentStatus != order.PaymentStatusPaid {
				return fmt.Errorf("payout: order %s no longer eligible: %w", orderID, fault.ErrConflict)
			}
		}
		return nil
	}

	if err := s.repo.Create(ctx, p, eligible); err != nil {
		return Payout{}, err
	}
	return p, nil
}

// Process moves a pending payout into processing; the ops action that starts
// the actual transfer.
func (s *Service) Process(ctx context.Context, id string) (Payout, error) {
	p, _, err := s.repo.Mutate(ctx, id, func(p *Payout) (bool, error) {
		if p.Status != StatusPending {
			return false, fmt.Errorf("payout %s is %s, not pending: %w", p.ID, p.Status, fault.ErrConflict)
		}
		p.Status = StatusProcessing
		return true, nil
	})
	return p, err
}

// Complete finishes a processing payout and credits the seller's wallet with
// the net amount. The ledger dedupes on (seller, payout, reference), so a
// retried completion can never credit twice.
func (s *Service) Complete(ctx context.Context, id, transactionRef string) (Payout, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Payout{}, err
	}
	if p.Status != StatusProcessing {
		return Payout{}, fmt.Errorf("payout %s is %s, not processing: %w", p.ID, p.Status, fault.ErrConflict)
	}

	// Credit before the status flip: if the flip fails, the retry re-credits
	// idempotently and then lands the transition.
	if _, _, err := s.ledger.Credit(ctx, wallet.CreditRequest{
		UserID:      p.SellerID,
		AmountMinor: p.NetMinor,
		Currency:    p.Currency,
		Source:      wallet.SourcePayout,
		ReferenceID: p.ID,
		Description: "payout " + p.ID,
	}); err != nil {
		return Payout{}, err
	}

	now := s.clock().UTC()
	p, _, err = s.repo.Mutate(ctx, id, func(p *Payout) (bool, error) {
		if p.Status != StatusProcessing {
			return false, fmt.Errorf("payout %s is %s, not processing: %w", p.ID, p.Status, fault.ErrConflict)
		}
		p.Status = StatusCompleted
		p.TransactionRef = transactionRef
		p.ProcessedAt = &now
		return true, nil
	})
	return p, err
}

// Fail terminates a pending or processing payout. No wallet effect; the
// payout's orders become eligible for a future payout.
func (s *Service) Fail(ctx context.Context, id, reason string) (Payout, error) {
	p, _, err := s.repo.Mutate(ctx, id, func(p *Payout) (bool, error) {
		if p.Status != StatusPending && p.Status != StatusProcessing {
			return false, fmt.Errorf("payout %s is %s, cannot fail: %w", p.ID, p.Status, fault.ErrConflict)
		}
		p.Status = StatusFailed
		p.FailureReason = reason
		return true, nil
	})
	return p, err
}

// Get returns the payout by id.
func (s *Service) Get(ctx context.Context, id string) (Payout, error) {
	return s.repo.FindByID(ctx, id)
}

// ListBySeller returns the seller's payouts, oldest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]Payout, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("payout: seller id required: %w", fault.ErrValidation)
	}
	return s.repo.ListBySeller(ctx, sellerID)
}
