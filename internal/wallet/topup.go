package wallet

import (
	"context"
	"fmt"
	"time"

	"marketplace-payments/internal/fault"
	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/idempotency"

	"github.com/google/uuid"
)

// topupKeyPrefix maps a gateway charge intent back to the wallet owner. The
// webhook reconciler resolves it when the intent succeeds.
const topupKeyPrefix = "topup:intent:"

// topupTTL outlives any reasonable webhook delivery delay.
const topupTTL = 24 * time.Hour

// TopupService adds money onto wallets through the card gateway and takes it
// out via withdrawals. It sits on top of the ledger; every settled top-up and
// every withdrawal is a regular ledger entry.
type TopupService struct {
	ledger *Service
	gw     gateway.Client
	idem   idempotency.Store
}

func NewTopupService(ledger *Service, gw gateway.Client, idem idempotency.Store) *TopupService {
	return &TopupService{ledger: ledger, gw: gw, idem: idem}
}

// CreateIntent opens a gateway charge intent for a wallet top-up and records
// the intent→user mapping so the success webhook can settle it.
func (t *TopupService) CreateIntent(ctx context.Context, userID string, amountMinor int64, currency string) (gateway.Intent, error) {
	if userID == "" {
		return gateway.Intent{}, fmt.Errorf("wallet: user id required: %w", fault.ErrValidation)
	}
	if amountMinor <= 0 {
		return gateway.Intent{}, fmt.Errorf("wallet: top-up amount must be > 0: %w", fault.ErrValidation)
	}
	if currency == "" {
		return gateway.Intent{}, fmt.Errorf("wallet: currency required: %w", fault.ErrValidation)
	}

	intent, err := t.gw.CreateIntent(ctx, gateway.CreateIntentRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Metadata: map[string]string{
			"user_id": userID,
			"purpose": "wallet_topup",
		},
	})
	if err != nil {
		return gateway.Intent{}, err
	}

	if _, err := t.idem.SetNX(ctx, topupKeyPrefix+intent.ID, userID, topupTTL); err != nil {
		// The intent exists on the gateway but can never settle locally;
		// cancel it rather than strand the buyer's charge.
		if _, cancelErr := t.gw.CancelIntent(ctx, intent.ID); cancelErr != nil {
			return gateway.Intent{}, fmt.Errorf("wallet: register top-up %s: %v (cancel failed: %w)", intent.ID, err, cancelErr)
		}
		return gateway.Intent{}, err
	}
	return intent, nil
}

// Settle credits the wallet for a succeeded top-up intent. Returns applied
// false when the intent is not a registered top-up; duplicate deliveries fall
// through to the ledger's reference dedupe and credit exactly once.
func (t *TopupService) Settle(ctx context.Context, intentID string, amountMinor int64, currency string) (bool, error) {
	userID, ok, err := t.idem.Get(ctx, topupKeyPrefix+intentID)
	if err != nil {
		return false, err
	}
	if !ok || userID == "" {
		return false, nil
	}

	if _, _, err := t.ledger.Credit(ctx, CreditRequest{
		UserID:      userID,
		AmountMinor: amountMinor,
		Currency:    currency,
		Source:      SourceTopup,
		ReferenceID: intentID,
		Description: "wallet top-up",
	}); err != nil {
		return false, err
	}
	return true, nil
}

// Withdraw debits the wallet for a cash-out request and returns the ledger
// entry recorded for it.
func (t *TopupService) Withdraw(ctx context.Context, userID string, amountMinor int64, currency string) (Transaction, Account, error) {
	return t.ledger.Debit(ctx, DebitRequest{
		UserID:      userID,
		AmountMinor: amountMinor,
		Currency:    currency,
		Source:      SourceWithdrawal,
		ReferenceID: "wd_" + uuid.NewString(),
		Description: "wallet withdrawal",
	})
}
