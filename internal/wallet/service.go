package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-payments/internal/fault"

	"github.com/google/uuid"
)

// Service provides wallet operations.
//
// Money invariants:
// - No balance updates without a ledger entry
// - Ledger is append-only (immutable)
// - BalanceAfter >= 0 always; a debit that would go negative is rejected
//
// Concurrency:
// - Per-wallet serialization via the store's compare-and-set append; the
//   service retries a bounded number of times on balance conflicts.
type Service struct {
	store Store
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// SetClock overrides the service clock; test helper.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// casRetries bounds the retry loop on concurrent balance movement.
const casRetries = 10

type CreditRequest struct {
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Source      Source `json:"source"`
	ReferenceID string `json:"reference_id"`
	Description string `json:"description,omitempty"`
}

type DebitRequest struct {
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Source      Source `json:"source"`
	ReferenceID string `json:"reference_id"`
	Description string `json:"description,omitempty"`
}

func (s *Service) Credit(ctx context.Context, req CreditRequest) (Transaction, Account, error) {
	if err := validateMoneyReq(req.UserID, req.AmountMinor, req.Currency, req.Source, req.ReferenceID); err != nil {
		return Transaction{}, Account{}, err
	}
	return s.post(ctx, TypeCredit, req.UserID, req.AmountMinor, req.Currency, req.Source, req.ReferenceID, req.Description)
}

func (s *Service) Debit(ctx context.Context, req DebitRequest) (Transaction, Account, error) {
	if err := validateMoneyReq(req.UserID, req.AmountMinor, req.Currency, req.Source, req.ReferenceID); err != nil {
		return Transaction{}, Account{}, err
	}
	return s.post(ctx, TypeDebit, req.UserID, req.AmountMinor, req.Currency, req.Source, req.ReferenceID, req.Description)
}

// Balance returns the account, materializing a zero-balance view for users
// who have no wallet yet.
func (s *Service) Balance(ctx context.Context, userID, currency string) (Account, error) {
	if userID == "" {
		return Account{}, fmt.Errorf("wallet: user id: %w", fault.ErrValidation)
	}
	a, ok, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{UserID: userID, Currency: currency}, nil
	}
	return a, nil
}

// FindByReference looks up the ledger entry posted under the given dedupe
// key. Money-moving callers use it to tell a fresh post from a retry of one
// that already landed.
func (s *Service) FindByReference(ctx context.Context, userID string, source Source, referenceID string) (Transaction, bool, error) {
	if userID == "" || referenceID == "" {
		return Transaction{}, false, fmt.Errorf("wallet: user id and reference id required: %w", fault.ErrValidation)
	}
	return s.store.FindByReference(ctx, userID, source, referenceID)
}

func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("wallet: user id: %w", fault.ErrValidation)
	}
	return s.store.ListTransactions(ctx, userID, limit)
}

func (s *Service) post(ctx context.Context, typ Type, userID string, amount int64, currency string, source Source, referenceID, description string) (Transaction, Account, error) {
	now := s.clock().UTC()

	if err := s.store.EnsureAccount(ctx, Account{
		UserID:    userID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return Transaction{}, Account{}, err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		a, ok, err := s.store.GetAccount(ctx, userID)
		if err != nil {
			return Transaction{}, Account{}, err
		}
		if !ok {
			return Transaction{}, Account{}, fmt.Errorf("wallet: account vanished for %s: %w", userID, fault.ErrIntegrity)
		}
		if a.Currency != currency {
			return Transaction{}, Account{}, fmt.Errorf("wallet: currency mismatch %s vs %s: %w", a.Currency, currency, fault.ErrValidation)
		}

		// Idempotency: an entry with the same dedupe key means a retry of an
		// already-applied operation.
		if existing, found, err := s.store.FindByReference(ctx, userID, source, referenceID); err != nil {
			return Transaction{}, Account{}, err
		} else if found {
			return existing, a, nil
		}

		after := a.BalanceMinor + amount
		if typ == TypeDebit {
			after = a.BalanceMinor - amount
			if after < 0 {
				return Transaction{}, Account{}, fmt.Errorf("wallet: debit %d exceeds balance %d: %w", amount, a.BalanceMinor, fault.ErrInsufficientFunds)
			}
		}

		txn := Transaction{
			ID:                 uuid.NewString(),
			UserID:             userID,
			Type:               typ,
			AmountMinor:        amount,
			Currency:           currency,
			BalanceBeforeMinor: a.BalanceMinor,
			BalanceAfterMinor:  after,
			Source:             source,
			ReferenceID:        referenceID,
			Description:        description,
			CreatedAt:          now,
		}

		err = s.store.AppendTransaction(ctx, txn)
		if err == nil {
			a.BalanceMinor = after
			a.UpdatedAt = now
			return txn, a, nil
		}
		if errors.Is(err, fault.ErrConflict) {
			// balance moved; re-read and retry
			continue
		}
		return Transaction{}, Account{}, err
	}
	return Transaction{}, Account{}, fmt.Errorf("wallet: gave up after %d conflicting writes on %s: %w", casRetries, userID, fault.ErrConflict)
}

func validateMoneyReq(userID string, amount int64, currency string, source Source, referenceID string) error {
	if userID == "" {
		return fmt.Errorf("wallet: user id required: %w", fault.ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("wallet: amount must be > 0: %w", fault.ErrValidation)
	}
	if currency == "" {
		return fmt.Errorf("wallet: currency required: %w", fault.ErrValidation)
	}
	if !validSource(source) {
		return fmt.Errorf("wallet: unknown source %q: %w", source, fault.ErrValidation)
	}
	if referenceID == "" {
		return fmt.Errorf("wallet: reference id required: %w", fault.ErrValidation)
	}
	return nil
}
