package reporting

import (
	"time"

	"marketplace-payments/internal/wallet"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// WalletStatementRequest requests a per-source breakdown of one user's ledger.
// Derived from immutable wallet transactions only.

type WalletStatementRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

type WalletStatement struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`

	TotalCreditMinor int64 `json:"total_credit_minor"`
	TotalDebitMinor  int64 `json:"total_debit_minor"`
	NetDeltaMinor    int64 `json:"net_delta_minor"`

	// BySource holds the signed net amount contributed by each ledger source
	// (credits positive, debits negative).
	BySource map[wallet.Source]int64 `json:"by_source"`

	Entries int `json:"entries"`
}

// PaymentsSummaryRequest requests aggregated payment metrics.

type PaymentsSummaryRequest struct {
	Range  TimeRange `json:"range"`
	Method string    `json:"method,omitempty"`
}

type PaymentsSummary struct {
	TotalPayments int `json:"total_payments"`

	PendingPayments           int `json:"pending_payments"`
	PaidPayments              int `json:"paid_payments"`
	FailedPayments            int `json:"failed_payments"`
	RefundedPayments          int `json:"refunded_payments"`
	PartiallyRefundedPayments int `json:"partially_refunded_payments"`

	CollectedMinor int64 `json:"collected_minor"`
	RefundedMinor  int64 `json:"refunded_minor"`

	ByMethod map[string]int `json:"by_method"`
}
