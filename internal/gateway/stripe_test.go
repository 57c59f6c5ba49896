package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func signPayload(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhook_AcceptsValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"id":"evt_1","type":"intent.succeeded","created":1700000000,` +
		`"data":{"object":{"id":"pi_1","amount":100000,"currency":"inr"}}}`)

	ev, err := verifyAndParse(payload, signPayload(t, payload, "whsec_test", now), "whsec_test", now, 5*time.Minute)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.Type != EventIntentSucceeded {
		t.Fatalf("expected intent.succeeded, got %q", ev.Type)
	}
	if ev.IntentID != "pi_1" || ev.AmountMinor != 100000 || ev.Currency != "INR" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestVerifyWebhook_RejectsBadSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"id":"evt_1","type":"intent.succeeded","created":1700000000,` +
		`"data":{"object":{"id":"pi_1"}}}`)

	header := signPayload(t, payload, "whsec_other", now)
	if _, err := verifyAndParse(payload, header, "whsec_test", now, 5*time.Minute); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := verifyAndParse(payload, "garbage", "whsec_test", now, 5*time.Minute); err == nil {
		t.Fatalf("expected malformed header error")
	}
}

func TestVerifyWebhook_RejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"id":"evt_1","type":"intent.succeeded","created":1699990000,` +
		`"data":{"object":{"id":"pi_1"}}}`)

	header := signPayload(t, payload, "whsec_test", now.Add(-time.Hour))
	if _, err := verifyAndParse(payload, header, "whsec_test", now, 5*time.Minute); err == nil {
		t.Fatalf("expected tolerance error")
	}
}

func TestParseEvent_RefundUpdatedUsesPaymentIntentRef(t *testing.T) {
	payload := []byte(`{"id":"evt_2","type":"charge.refund.updated","created":1700000000,` +
		`"data":{"object":{"id":"ch_1","payment_intent":"pi_9","amount":100000,"amount_refunded":40000,"currency":"inr"}}}`)

	ev, err := parseEvent(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Type != EventRefundUpdated || ev.IntentID != "pi_9" || ev.RefundedMinor != 40000 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseEvent_RejectsMissingFields(t *testing.T) {
	if _, err := parseEvent([]byte(`{"type":"intent.succeeded"}`)); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if _, err := parseEvent([]byte(`{"id":"evt_1","type":"intent.succeeded","data":{"object":{}}}`)); err == nil {
		t.Fatalf("expected error for missing intent reference")
	}
	if _, err := parseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for bad json")
	}
}

func TestStripeClient_CreateIntentAndRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v1/payment_intents":
			_ = r.ParseForm()
			if r.PostFormValue("amount") != "100000" || r.PostFormValue("currency") != "inr" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, `{"id":"pi_1","client_secret":"pi_1_secret","amount":100000,"currency":"inr","status":"requires_payment_method"}`)
		case "/v1/refunds":
			if r.Header.Get("Idempotency-Key") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, `{"id":"re_1","payment_intent":"pi_1","amount":100000,"currency":"inr","status":"succeeded"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewStripeClient(StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	in, err := c.CreateIntent(context.Background(), CreateIntentRequest{AmountMinor: 100000, Currency: "INR"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if in.ID != "pi_1" || in.ClientSecret == "" || in.Status != IntentStatusRequiresPayment {
		t.Fatalf("unexpected intent: %+v", in)
	}

	rf, err := c.CreateRefund(context.Background(), RefundRequest{IntentID: "pi_1", AmountMinor: 100000, IdempotencyKey: "refund:o1:1"})
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	if rf.ID != "re_1" || rf.IntentID != "pi_1" || rf.Replayed {
		t.Fatalf("unexpected refund: %+v", rf)
	}
}

func TestStripeClient_RefundReplayHeaderSurfaces(t *testing.T) {
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if seen[key] {
			w.Header().Set("Idempotent-Replayed", "true")
		}
		seen[key] = true
		fmt.Fprint(w, `{"id":"re_1","payment_intent":"pi_1","amount":100000,"currency":"inr","status":"succeeded"}`)
	}))
	defer srv.Close()

	c, _ := NewStripeClient(StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	req := RefundRequest{IntentID: "pi_1", AmountMinor: 100000, IdempotencyKey: "refund:o1:1"}

	rf, err := c.CreateRefund(context.Background(), req)
	if err != nil || rf.Replayed {
		t.Fatalf("first refund must be fresh: %+v err=%v", rf, err)
	}
	rf, err = c.CreateRefund(context.Background(), req)
	if err != nil {
		t.Fatalf("replayed refund: %v", err)
	}
	if !rf.Replayed {
		t.Fatalf("second call with the same key must report the replay: %+v", rf)
	}
}

func TestStripeClient_GatewayErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewStripeClient(StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	if _, err := c.RetrieveIntent(context.Background(), "pi_1"); err == nil {
		t.Fatalf("expected gateway error")
	}
}
