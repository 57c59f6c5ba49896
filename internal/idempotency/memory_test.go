package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_SetNXRejectsDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "payment:o1:u1", "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx: ok=%v err=%v", ok, err)
	}
	ok, err = s.SetNX(ctx, "payment:o1:u1", "2", time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx should be rejected: ok=%v err=%v", ok, err)
	}

	v, found, err := s.Get(ctx, "payment:o1:u1")
	if err != nil || !found || v != "1" {
		t.Fatalf("expected original value, got %q found=%v err=%v", v, found, err)
	}
}

func TestMemoryStore_ExpiredKeyCanBeReset(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if ok, _ := s.SetNX(ctx, "k", "v1", time.Minute); !ok {
		t.Fatalf("first setnx should succeed")
	}
	now = now.Add(2 * time.Minute)

	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatalf("expired key should not be readable")
	}
	if ok, _ := s.SetNX(ctx, "k", "v2", time.Minute); !ok {
		t.Fatalf("setnx after expiry should succeed")
	}
	if v, found, _ := s.Get(ctx, "k"); !found || v != "v2" {
		t.Fatalf("expected v2, got %q found=%v", v, found)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.SetNX(ctx, "topup:intent:pi_1", "u1", time.Minute)
	if err := s.Delete(ctx, "topup:intent:pi_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, "topup:intent:pi_1"); found {
		t.Fatalf("deleted key should be gone")
	}
	// deleting an absent key is not an error
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMemoryStore_ConcurrentSetNXSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.SetNX(ctx, "payment:o9:u9", "x", time.Minute); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}
