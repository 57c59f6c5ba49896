package gateway

import (
	"context"
	"time"
)

// Client is the provider-agnostic boundary to the external card processor.
//
// Rules:
// - No processor HTTP calls outside this package.
// - Amounts cross this boundary in minor units only.
// - Raw provider payloads may be kept for audit but never drive business
//   logic directly; handlers consume the typed Event.
type Client interface {
	Name() string

	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) (Intent, error)

	CreateRefund(ctx context.Context, req RefundRequest) (Refund, error)

	// VerifyWebhook checks the signature header against the raw payload and
	// returns the parsed event. A bad signature is the only webhook error a
	// caller may surface to the processor.
	VerifyWebhook(payload []byte, signatureHeader string) (Event, error)
}

type CreateIntentRequest struct {
	AmountMinor int64             `json:"amount_minor"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Intent mirrors the processor's charge intent.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret,omitempty"`
	AmountMinor  int64             `json:"amount_minor"`
	Currency     string            `json:"currency"`
	Status       IntentStatus      `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type IntentStatus string

const (
	IntentStatusRequiresPayment IntentStatus = "requires_payment_method"
	IntentStatusProcessing      IntentStatus = "processing"
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusCanceled        IntentStatus = "canceled"
)

type RefundRequest struct {
	IntentID    string `json:"intent_id"`
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason,omitempty"`

	// IdempotencyKey is forwarded to the processor so a retried refund
	// request is not applied twice on the gateway side.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type Refund struct {
	ID          string `json:"id"`
	IntentID    string `json:"intent_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`

	// Replayed is set when the processor answered from its idempotency cache
	// instead of creating a new refund.
	Replayed bool `json:"replayed,omitempty"`
}

// Event is a verified, typed webhook notification.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`

	// IntentID is the processor's charge-intent id; it is the
	// external reference every internal record is keyed on.
	IntentID string `json:"intent_id"`

	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`

	// RefundedMinor is the processor's authoritative cumulative refunded
	// amount; only meaningful for EventRefundUpdated.
	RefundedMinor int64 `json:"refunded_minor,omitempty"`

	// FailureReason is set for EventIntentFailed where the processor
	// supplied one.
	FailureReason string `json:"failure_reason,omitempty"`
}

type EventType string

const (
	EventIntentSucceeded EventType = "intent.succeeded"
	EventIntentFailed    EventType = "intent.payment_failed"
	EventIntentCanceled  EventType = "intent.canceled"
	EventRefundUpdated   EventType = "charge.refund.updated"
)
