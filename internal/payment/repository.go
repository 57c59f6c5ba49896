package payment

import "context"

// Repository abstracts Payment persistence.
//
// Mutate is the only write path after Insert: it atomically loads the row,
// applies fn under the row lock, and persists the result when fn reports a
// change. This is what makes every transition a state-check-then-transition
// rather than a blind overwrite, so duplicate webhook deliveries on multiple
// workers stay safe.
type Repository interface {
	Insert(ctx context.Context, p Payment) error

	FindByID(ctx context.Context, id string) (Payment, error)
	FindByExternalRef(ctx context.Context, ref string) (Payment, error)
	FindByOrder(ctx context.Context, orderID string) ([]Payment, error)

	// FindActiveByOrder returns the single non-terminal payment for the
	// order, if one exists.
	FindActiveByOrder(ctx context.Context, orderID string) (Payment, bool, error)

	// Mutate applies fn to the payment under exclusion. fn returns
	// (false, nil) to record a no-op; the returned bool mirrors that.
	Mutate(ctx context.Context, id string, fn func(p *Payment) (bool, error)) (Payment, bool, error)
}
