package wallet

import "time"

// Account is a per-user wallet.
//
// Invariant: BalanceMinor is a projection of the transaction ledger. It is
// never mutated without a corresponding Transaction row, and it never goes
// negative. Accounts are created lazily on first credit/debit.
type Account struct {
	UserID       string `json:"user_id" db:"user_id"`
	Currency     string `json:"currency" db:"currency"`
	BalanceMinor int64  `json:"balance_minor" db:"balance_minor"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is an immutable append-only ledger entry.
//
// Money invariant: BalanceAfterMinor = BalanceBeforeMinor ± AmountMinor
// depending on Type, and BalanceAfterMinor >= 0 always. The ledger is the
// source of truth for the balance; Account.BalanceMinor caches the latest
// BalanceAfterMinor.
type Transaction struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Type Type `json:"type" db:"type"`

	// AmountMinor is always positive; Type carries the direction.
	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	BalanceBeforeMinor int64 `json:"balance_before_minor" db:"balance_before_minor"`
	BalanceAfterMinor  int64 `json:"balance_after_minor" db:"balance_after_minor"`

	Source Source `json:"source" db:"source"`

	// ReferenceID ties the entry to the record that caused it (order id,
	// payout id, gateway intent id). (UserID, Source, ReferenceID) is the
	// dedupe key for safe retries of money-posting operations.
	ReferenceID string `json:"reference_id" db:"reference_id"`

	Description string `json:"description,omitempty" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Type string

const (
	TypeCredit Type = "credit"
	TypeDebit  Type = "debit"
)

type Source string

const (
	SourceRefund       Source = "refund"
	SourceCashback     Source = "cashback"
	SourceTopup        Source = "topup"
	SourceOrderPayment Source = "order_payment"
	SourceWithdrawal   Source = "withdrawal"
	SourcePayout       Source = "payout"
	SourceAdminCredit  Source = "admin_credit"
)

func validSource(s Source) bool {
	switch s {
	case SourceRefund, SourceCashback, SourceTopup, SourceOrderPayment,
		SourceWithdrawal, SourcePayout, SourceAdminCredit:
		return true
	default:
		return false
	}
}
