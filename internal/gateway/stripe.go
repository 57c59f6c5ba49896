package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketplace-payments/internal/fault"
)

// StripeClient talks to the Stripe-shaped processor over its REST API.
//
// Requests are form-encoded per the Stripe wire format; responses are JSON.
// Webhook payloads are verified with the t=...,v1=... HMAC-SHA256 scheme
// before any field is trusted.
type StripeClient struct {
	baseURL       string
	secretKey     string
	webhookSecret string

	httpClient *http.Client
	// clock is injectable for deterministic signature-tolerance tests.
	clock func() time.Time
	// tolerance bounds webhook timestamp skew.
	tolerance time.Duration
}

type StripeConfig struct {
	// BaseURL defaults to the live API host; override in tests.
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

func NewStripeClient(cfg StripeConfig) (*StripeClient, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("gateway: stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("gateway: stripe webhook secret is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.stripe.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeClient{
		baseURL:       strings.TrimRight(base, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: timeout},
		clock:         time.Now,
		tolerance:     5 * time.Minute,
	}, nil
}

func (c *StripeClient) Name() string { return "stripe" }

func (c *StripeClient) CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error) {
	if req.AmountMinor <= 0 || req.Currency == "" {
		return Intent{}, fmt.Errorf("gateway: intent amount/currency: %w", fault.ErrValidation)
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountMinor, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	var out stripeIntent
	if _, err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, "", &out); err != nil {
		return Intent{}, err
	}
	return out.toIntent(), nil
}

func (c *StripeClient) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	if intentID == "" {
		return Intent{}, fmt.Errorf("gateway: intent id: %w", fault.ErrValidation)
	}
	var out stripeIntent
	if _, err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil, "", &out); err != nil {
		return Intent{}, err
	}
	return out.toIntent(), nil
}

func (c *StripeClient) CancelIntent(ctx context.Context, intentID string) (Intent, error) {
	if intentID == "" {
		return Intent{}, fmt.Errorf("gateway: intent id: %w", fault.ErrValidation)
	}
	var out stripeIntent
	if _, err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(intentID)+"/cancel", url.Values{}, "", &out); err != nil {
		return Intent{}, err
	}
	return out.toIntent(), nil
}

func (c *StripeClient) CreateRefund(ctx context.Context, req RefundRequest) (Refund, error) {
	if req.IntentID == "" || req.AmountMinor <= 0 {
		return Refund{}, fmt.Errorf("gateway: refund intent/amount: %w", fault.ErrValidation)
	}
	form := url.Values{}
	form.Set("payment_intent", req.IntentID)
	form.Set("amount", strconv.FormatInt(req.AmountMinor, 10))
	if req.Reason != "" {
		form.Set("metadata[reason]", req.Reason)
	}
	var out stripeRefund
	hdr, err := c.do(ctx, http.MethodPost, "/v1/refunds", form, req.IdempotencyKey, &out)
	if err != nil {
		return Refund{}, err
	}
	return Refund{
		ID:          out.ID,
		IntentID:    out.PaymentIntent,
		AmountMinor: out.Amount,
		Currency:    strings.ToUpper(out.Currency),
		Status:      out.Status,
		// Stripe marks responses served from the idempotency cache.
		Replayed: strings.EqualFold(hdr.Get("Idempotent-Replayed"), "true"),
	}, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) (http.Header, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s %s: %v: %w", method, path, err, fault.ErrGateway)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %v: %w", err, fault.ErrGateway)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway: %s %s: status %d: %w", method, path, resp.StatusCode, fault.ErrGateway)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("gateway: decode response: %v: %w", err, fault.ErrGateway)
	}
	return resp.Header, nil
}

/* ===================== WEBHOOK VERIFICATION ===================== */

const signatureHeaderScheme = "v1"

// VerifyWebhook validates the signature header and parses the payload into a
// typed Event. The signed message is "{timestamp}.{payload}" keyed with the
// endpoint's webhook secret.
func (c *StripeClient) VerifyWebhook(payload []byte, signatureHeader string) (Event, error) {
	return verifyAndParse(payload, signatureHeader, c.webhookSecret, c.clock(), c.tolerance)
}

func verifyAndParse(payload []byte, header, secret string, now time.Time, tolerance time.Duration) (Event, error) {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return Event{}, err
	}
	if tolerance > 0 {
		at := time.Unix(ts, 0)
		if at.Before(now.Add(-tolerance)) || at.After(now.Add(tolerance)) {
			return Event{}, fmt.Errorf("gateway: webhook timestamp outside tolerance: %w", fault.ErrValidation)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	matched := false
	for _, s := range sigs {
		if subtle.ConstantTimeCompare([]byte(s), []byte(expected)) == 1 {
			matched = true
		}
	}
	if !matched {
		return Event{}, fmt.Errorf("gateway: webhook signature mismatch: %w", fault.ErrValidation)
	}
	return parseEvent(payload)
}

func parseSignatureHeader(header string) (ts int64, sigs []string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err = strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("gateway: bad signature timestamp: %w", fault.ErrValidation)
			}
		case signatureHeaderScheme:
			sigs = append(sigs, kv[1])
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("gateway: malformed signature header: %w", fault.ErrValidation)
	}
	return ts, sigs, nil
}

/* ===================== WIRE TYPES ===================== */

type stripeIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

func (si stripeIntent) toIntent() Intent {
	return Intent{
		ID:           si.ID,
		ClientSecret: si.ClientSecret,
		AmountMinor:  si.Amount,
		Currency:     strings.ToUpper(si.Currency),
		Status:       IntentStatus(si.Status),
		Metadata:     si.Metadata,
	}
}

type stripeRefund struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID             string `json:"id"`
			PaymentIntent  string `json:"payment_intent"`
			Amount         int64  `json:"amount"`
			AmountRefunded int64  `json:"amount_refunded"`
			Currency       string `json:"currency"`
			LastError      struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

func parseEvent(payload []byte) (Event, error) {
	var we stripeEvent
	if err := json.Unmarshal(payload, &we); err != nil {
		return Event{}, fmt.Errorf("gateway: webhook payload: %w", fault.ErrValidation)
	}
	if we.ID == "" || we.Type == "" {
		return Event{}, fmt.Errorf("gateway: webhook event id/type missing: %w", fault.ErrValidation)
	}

	ev := Event{
		ID:            we.ID,
		Type:          EventType(we.Type),
		CreatedAt:     time.Unix(we.Created, 0).UTC(),
		AmountMinor:   we.Data.Object.Amount,
		Currency:      strings.ToUpper(we.Data.Object.Currency),
		RefundedMinor: we.Data.Object.AmountRefunded,
		FailureReason: we.Data.Object.LastError.Message,
	}
	// Refund events reference the intent indirectly through the charge.
	ev.IntentID = we.Data.Object.ID
	if we.Data.Object.PaymentIntent != "" {
		ev.IntentID = we.Data.Object.PaymentIntent
	}
	if ev.IntentID == "" {
		return Event{}, fmt.Errorf("gateway: webhook missing intent reference: %w", fault.ErrValidation)
	}
	return ev, nil
}
