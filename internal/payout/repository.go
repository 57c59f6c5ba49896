package payout

import "context"

// Repository persists payouts.
//
// Create must enforce order disjointness inside its own critical section:
// the overlap check against the seller's holding payouts, the verify
// callback, and the insert are one atomic step, so two concurrent
// initiations over the same order cannot both land. A non-nil verify
// re-checks caller preconditions that may have changed since they were
// read; its error aborts the create.
type Repository interface {
	Create(ctx context.Context, p Payout, verify func(ctx context.Context) error) error

	FindByID(ctx context.Context, id string) (Payout, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Payout, error)

	// HeldOrderIDs returns the order ids referenced by the seller's payouts
	// in pending/processing/completed, from committed records.
	HeldOrderIDs(ctx context.Context, sellerID string) (map[string]bool, error)

	// Mutate applies fn to the payout under exclusion; same contract as the
	// payment repository.
	Mutate(ctx context.Context, id string, fn func(p *Payout) (bool, error)) (Payout, bool, error)
}
