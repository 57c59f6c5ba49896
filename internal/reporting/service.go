package reporting

import (
	"context"
	"errors"
	"time"

	"marketplace-payments/internal/payment"
	"marketplace-payments/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations should query immutable sources when possible (wallet
// transactions, payment rows).

type Repository interface {
	ListWalletTransactions(ctx context.Context, userID string, from, to time.Time) ([]wallet.Transaction, error)
	ListPayments(ctx context.Context, from, to time.Time, method string) ([]payment.Payment, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) WalletStatement(ctx context.Context, req WalletStatementRequest) (WalletStatement, error) {
	if req.UserID == "" {
		return WalletStatement{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return WalletStatement{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return WalletStatement{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListWalletTransactions(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return WalletStatement{}, err
	}

	out := WalletStatement{UserID: req.UserID, BySource: map[wallet.Source]int64{}}
	for _, e := range rows {
		if out.Currency == "" {
			out.Currency = e.Currency
		}
		out.Entries++
		switch e.Type {
		case wallet.TypeCredit:
			out.TotalCreditMinor += e.AmountMinor
			out.BySource[e.Source] += e.AmountMinor
		case wallet.TypeDebit:
			out.TotalDebitMinor += e.AmountMinor
			out.BySource[e.Source] -= e.AmountMinor
		}
	}
	out.NetDeltaMinor = out.TotalCreditMinor - out.TotalDebitMinor
	return out, nil
}

func (s *Service) PaymentsSummary(ctx context.Context, req PaymentsSummaryRequest) (PaymentsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return PaymentsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return PaymentsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListPayments(ctx, req.Range.From, req.Range.To, req.Method)
	if err != nil {
		return PaymentsSummary{}, err
	}

	out := PaymentsSummary{ByMethod: map[string]int{}}
	for _, p := range rows {
		out.TotalPayments++
		out.ByMethod[string(p.Method)]++
		out.RefundedMinor += p.RefundedMinor
		switch p.Status {
		case payment.StatusPending:
			out.PendingPayments++
		case payment.StatusPaid:
			out.PaidPayments++
			out.CollectedMinor += p.AmountMinor
		case payment.StatusFailed:
			out.FailedPayments++
		case payment.StatusRefunded:
			out.RefundedPayments++
			out.CollectedMinor += p.AmountMinor
		case payment.StatusPartiallyRefunded:
			out.PartiallyRefundedPayments++
			out.CollectedMinor += p.AmountMinor
		}
	}
	return out, nil
}
