package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/metrics"
	"marketplace-payments/pkg/logger"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "Stripe-Signature"

// processTimeout bounds the detached reconciliation of a single event.
const processTimeout = 30 * time.Second

// Handler is the public webhook endpoint. Contract with the processor: verify
// the signature, ack with 200 immediately, and reconcile asynchronously. A
// processing failure must never surface as a non-2xx, or the processor would
// retry an event we may have partially applied.
type Handler struct {
	gw         gateway.Client
	reconciler *Reconciler
	metrics    *metrics.Metrics
}

func NewHandler(gw gateway.Client, reconciler *Reconciler, m *metrics.Metrics) *Handler {
	return &Handler{gw: gw, reconciler: reconciler, metrics: m}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/webhook/stripe", h.handle)
}

func (h *Handler) handle(c *gin.Context) {
	log := logger.FromGin(c)

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ev, err := h.gw.VerifyWebhook(payload, c.GetHeader(signatureHeader))
	if err != nil {
		log.Warn("webhook signature rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})

	go h.process(context.WithoutCancel(c.Request.Context()), log, ev)
}

func (h *Handler) process(ctx context.Context, log *slog.Logger, ev gateway.Event) {
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	outcome, err := h.reconciler.Apply(ctx, ev)
	h.metrics.WebhookEventsTotal.WithLabelValues(string(ev.Type), string(outcome)).Inc()

	attrs := []any{
		"event_id", ev.ID,
		"event_type", string(ev.Type),
		"intent_id", ev.IntentID,
		"outcome", string(outcome),
	}
	if err != nil {
		log.Error("webhook event failed", append(attrs, "error", err)...)
		return
	}
	log.Info("webhook event processed", attrs...)
}
