package wallet

import (
	"context"
	"fmt"
	"sync"

	"marketplace-payments/internal/fault"
)

// MemoryStore is an in-memory Store for tests and early development.
// The single mutex gives it the same serialization guarantees the Postgres
// implementation gets from its conditional update.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	ledger   []Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: map[string]Account{}}
}

func (s *MemoryStore) GetAccount(ctx context.Context, userID string) (Account, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	return a, ok, nil
}

func (s *MemoryStore) EnsureAccount(ctx context.Context, a Account) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.UserID]; ok {
		return nil
	}
	a.BalanceMinor = 0
	s.accounts[a.UserID] = a
	return nil
}

func (s *MemoryStore) AppendTransaction(ctx context.Context, txn Transaction) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[txn.UserID]
	if !ok {
		return fmt.Errorf("wallet: no account for %s: %w", txn.UserID, fault.ErrNotFound)
	}
	if a.BalanceMinor != txn.BalanceBeforeMinor {
		return fmt.Errorf("wallet: balance moved (%d != %d): %w", a.BalanceMinor, txn.BalanceBeforeMinor, fault.ErrConflict)
	}
	for _, e := range s.ledger {
		if e.UserID == txn.UserID && e.Source == txn.Source && e.ReferenceID == txn.ReferenceID {
			return fmt.Errorf("wallet: duplicate reference %s/%s: %w", txn.Source, txn.ReferenceID, fault.ErrConflict)
		}
	}

	s.ledger = append(s.ledger, txn)
	a.BalanceMinor = txn.BalanceAfterMinor
	a.UpdatedAt = txn.CreatedAt
	s.accounts[txn.UserID] = a
	return nil
}

func (s *MemoryStore) FindByReference(ctx context.Context, userID string, source Source, referenceID string) (Transaction, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.ledger {
		if e.UserID == userID && e.Source == source && e.ReferenceID == referenceID {
			return e, true, nil
		}
	}
	return Transaction{}, false, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Transaction
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID != userID {
			continue
		}
		out = append(out, s.ledger[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
