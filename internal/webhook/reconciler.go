package webhook

import (
	"context"
	"errors"
	"fmt"

	"marketplace-payments/internal/fault"
	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/payment"
)

// Payments is the slice of the payment service the reconciler drives.
type Payments interface {
	ApplyGatewaySuccess(ctx context.Context, externalRef string) (payment.Payment, bool, error)
	ApplyGatewayFailure(ctx context.Context, externalRef, reason string) (payment.Payment, bool, error)
	ApplyRefundUpdate(ctx context.Context, externalRef string, refundedMinor int64) (payment.Payment, bool, error)
}

// Topups settles wallet top-up intents.
type Topups interface {
	Settle(ctx context.Context, intentID string, amountMinor int64, currency string) (bool, error)
}

// Outcome classifies what applying an event did. Duplicates and unknown
// references are expected traffic, not errors.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeError     Outcome = "error"
)

// Reconciler folds verified gateway events into local state. Every transition
// it requests is a state-check-then-transition, so redelivered and reordered
// events converge on the same state regardless of arrival order.
type Reconciler struct {
	payments Payments
	topups   Topups
}

func NewReconciler(payments Payments, topups Topups) *Reconciler {
	return &Reconciler{payments: payments, topups: topups}
}

// Apply dispatches one verified event. Unknown event types and references are
// reported as ignored; the caller has already acked the delivery either way.
func (r *Reconciler) Apply(ctx context.Context, ev gateway.Event) (Outcome, error) {
	switch ev.Type {
	case gateway.EventIntentSucceeded:
		return r.applySucceeded(ctx, ev)
	case gateway.EventIntentFailed:
		return r.applyFailed(ctx, ev, ev.FailureReason)
	case gateway.EventIntentCanceled:
		return r.applyFailed(ctx, ev, "canceled")
	case gateway.EventRefundUpdated:
		return r.applyRefund(ctx, ev)
	default:
		return OutcomeIgnored, nil
	}
}

func (r *Reconciler) applySucceeded(ctx context.Context, ev gateway.Event) (Outcome, error) {
	// A top-up intent has no Payment row; resolve it first.
	settled, err := r.topups.Settle(ctx, ev.IntentID, ev.AmountMinor, ev.Currency)
	if err != nil {
		return OutcomeError, fmt.Errorf("settle top-up %s: %w", ev.IntentID, err)
	}
	if settled {
		return OutcomeApplied, nil
	}

	_, applied, err := r.payments.ApplyGatewaySuccess(ctx, ev.IntentID)
	return classify(applied, err)
}

func (r *Reconciler) applyFailed(ctx context.Context, ev gateway.Event, reason string) (Outcome, error) {
	_, applied, err := r.payments.ApplyGatewayFailure(ctx, ev.IntentID, reason)
	return classify(applied, err)
}

func (r *Reconciler) applyRefund(ctx context.Context, ev gateway.Event) (Outcome, error) {
	_, applied, err := r.payments.ApplyRefundUpdate(ctx, ev.IntentID, ev.RefundedMinor)
	return classify(applied, err)
}

func classify(applied bool, err error) (Outcome, error) {
	if err != nil {
		// An intent this core never issued is noise from another system
		// sharing the gateway account, not a failure.
		if errors.Is(err, fault.ErrNotFound) {
			return OutcomeIgnored, nil
		}
		return OutcomeError, err
	}
	if !applied {
		return OutcomeDuplicate, nil
	}
	return OutcomeApplied, nil
}
