package wallet

import "context"

// Store abstracts ledger persistence.
//
// Serialization contract: AppendTransaction must atomically insert the entry
// and advance the account balance to txn.BalanceAfterMinor if and only if the
// stored balance still equals txn.BalanceBeforeMinor. When the balance moved
// underneath the caller it returns fault.ErrConflict and writes nothing; the
// service retries with a fresh read. Two operations on different wallets must
// never block each other.
type Store interface {
	GetAccount(ctx context.Context, userID string) (Account, bool, error)

	// EnsureAccount creates the account with a zero balance when absent.
	// Creating an existing account is a no-op.
	EnsureAccount(ctx context.Context, a Account) error

	AppendTransaction(ctx context.Context, txn Transaction) error

	// FindByReference returns an existing entry with the same dedupe key,
	// making retried money-posting operations idempotent.
	FindByReference(ctx context.Context, userID string, source Source, referenceID string) (Transaction, bool, error)

	// ListTransactions returns entries for a wallet, newest first.
	// limit <= 0 means no limit.
	ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error)
}
