package idempotency

import (
	"context"
	"time"
)

// Store is a shared key→value store with TTL used to de-duplicate concurrent
// or retried operations.
//
// It is constructed once per process and passed explicitly to every component
// that needs it; no ambient/global handle.
//
// Usage in this core:
// - payment initiation guard: key "payment:{order_id}:{user_id}"
// - wallet top-up registration: key "topup:intent:{intent_id}" → user id
type Store interface {
	// SetNX stores value under key with a TTL iff the key does not exist.
	// Returns false when the key is already present and unexpired.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the stored value, or ok=false when absent/expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
