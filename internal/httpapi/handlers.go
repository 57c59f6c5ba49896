package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketplace-payments/internal/audit"
	"marketplace-payments/internal/auth"
	"marketplace-payments/internal/events"
	"marketplace-payments/internal/fault"
	"marketplace-payments/internal/metrics"
	"marketplace-payments/internal/order"
	"marketplace-payments/internal/payment"
	"marketplace-payments/internal/payout"
	"marketplace-payments/internal/rbac"
	"marketplace-payments/internal/refund"
	"marketplace-payments/internal/reporting"
	"marketplace-payments/internal/wallet"
	"marketplace-payments/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
// Metrics are incremented here so the services stay metrics-free; event
// publishing and audit logging are best-effort and never fail the request.
type Handlers struct {
	Auth     *auth.Manager
	Orders   order.Store
	Payments *payment.Service
	Refunds  *refund.Router
	Payouts  *payout.Service
	Wallet   *wallet.Service
	Topups   *wallet.TopupService
	Reports  *reporting.Service
	Audit    *audit.Service
	Events   events.Publisher
	Metrics  *metrics.Metrics
}

func (h Handlers) abortErr(c *gin.Context, err error) {
	status := fault.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "error", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// identity pulls the authenticated caller out of the request context.
// Routes behind RequireAccessToken always have one; a missing identity is a
// wiring bug surfaced as 401.
func identity(c *gin.Context) (userID, role string, ok bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", "", false
	}
	role, _ = auth.Role(c.Request.Context())
	return userID, role, true
}

func (h Handlers) publish(c *gin.Context, ev events.Event) {
	if h.Events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := h.Events.Publish(c.Request.Context(), ev); err != nil {
		logger.FromGin(c).Warn("event publish failed", "type", ev.Type, "error", err)
	}
}

func (h Handlers) audit(c *gin.Context, fn func() error) {
	if h.Audit == nil {
		return
	}
	if err := fn(); err != nil {
		logger.FromGin(c).Warn("audit append failed", "error", err)
	}
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Payments ---

type initiatePaymentRequest struct {
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
}

func (h Handlers) InitiatePayment(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Payments.Initiate(c.Request.Context(), payment.InitiateRequest{
		OrderID: req.OrderID,
		UserID:  userID,
		Method:  payment.Method(req.Method),
	})
	if err != nil {
		h.abortErr(c, err)
		return
	}

	h.Metrics.PaymentsTotal.WithLabelValues(string(res.Payment.Status), string(res.Payment.Method)).Inc()
	if res.Payment.Status == payment.StatusPaid {
		h.publish(c, events.Event{
			Type:        events.TypePaymentPaid,
			OrderID:     res.Payment.OrderID,
			PaymentID:   res.Payment.ID,
			UserID:      res.Payment.UserID,
			AmountMinor: res.Payment.AmountMinor,
			Currency:    res.Payment.Currency,
			Status:      string(res.Payment.Status),
		})
	}
	c.JSON(http.StatusCreated, res)
}

type confirmStripeRequest struct {
	IntentID string `json:"intent_id"`
}

func (h Handlers) ConfirmStripePayment(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	var req confirmStripeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	p, err := h.Payments.ConfirmGateway(c.Request.Context(), userID, req.IntentID)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	if p.Status == payment.StatusPaid {
		h.Metrics.PaymentsTotal.WithLabelValues(string(p.Status), string(p.Method)).Inc()
		h.publish(c, events.Event{
			Type:        events.TypePaymentPaid,
			OrderID:     p.OrderID,
			PaymentID:   p.ID,
			UserID:      p.UserID,
			AmountMinor: p.AmountMinor,
			Currency:    p.Currency,
			Status:      string(p.Status),
		})
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) ListOrderPayments(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	orderID := c.Param("order_id")
	if !h.ownsOrder(c, orderID, userID, role) {
		return
	}
	ps, err := h.Payments.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": ps})
}

// ownsOrder gates buyer access to order-scoped reads. A foreign order answers
// not-found, whether or not it carries payments yet.
func (h Handlers) ownsOrder(c *gin.Context, orderID, userID, role string) bool {
	if role != rbac.RoleBuyer {
		return true
	}
	o, err := h.Orders.Get(c.Request.Context(), orderID)
	if err != nil {
		h.abortErr(c, err)
		return false
	}
	if o.BuyerID != userID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return false
	}
	return true
}

// ConfirmCODPayment marks the order's pending cash payment as collected.
// Admin-only; called when delivery confirms the cash was handed over.
func (h Handlers) ConfirmCODPayment(c *gin.Context) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	orderID := c.Param("order_id")

	p, err := h.Payments.ConfirmCOD(c.Request.Context(), orderID)
	if err != nil {
		h.abortErr(c, err)
		return
	}

	h.Metrics.PaymentsTotal.WithLabelValues(string(p.Status), string(p.Method)).Inc()
	h.audit(c, func() error {
		return h.Audit.LogAdminAction(c.Request.Context(), actorID, actorRole, c.ClientIP(),
			"cod collection confirmed for order "+orderID, p.UserID, p.AmountMinor, "")
	})
	h.publish(c, events.Event{
		Type:        events.TypePaymentPaid,
		OrderID:     p.OrderID,
		PaymentID:   p.ID,
		UserID:      p.UserID,
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		Status:      string(p.Status),
	})
	c.JSON(http.StatusOK, p)
}

// --- Refunds ---

type refundRequest struct {
	Reason string `json:"reason"`
	// Method "wallet" forces the wallet channel; empty or "original" reverses
	// along the original payment channel.
	Method  string   `json:"method,omitempty"`
	ItemIDs []string `json:"item_ids,omitempty"`
}

func refundMethod(raw string) (refund.Method, error) {
	switch raw {
	case "", string(refund.MethodOriginal):
		return refund.MethodOriginal, nil
	case string(refund.MethodWallet):
		return refund.MethodWallet, nil
	default:
		return "", errors.New("method must be original or wallet")
	}
}

func (h Handlers) ProcessRefund(c *gin.Context) {
	h.processRefund(c, false)
}

func (h Handlers) ProcessPartialRefund(c *gin.Context) {
	h.processRefund(c, true)
}

func (h Handlers) processRefund(c *gin.Context, partial bool) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	orderID := c.Param("order_id")
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	method, err := refundMethod(req.Method)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var res refund.Result
	if partial {
		res, err = h.Refunds.ProcessPartialRefund(c.Request.Context(), orderID, req.ItemIDs, req.Reason, method)
	} else {
		res, err = h.Refunds.ProcessRefund(c.Request.Context(), orderID, req.Reason, method)
	}
	if err != nil {
		h.Metrics.RefundsTotal.WithLabelValues("unknown", "error").Inc()
		h.abortErr(c, err)
		return
	}

	h.Metrics.RefundsTotal.WithLabelValues(res.Channel, "applied").Inc()
	h.audit(c, func() error {
		return h.Audit.LogRefund(c.Request.Context(), actorID, actorRole, c.ClientIP(),
			res.OrderID, res.PaymentID, res.AmountMinor, "refund via "+res.Channel+": "+req.Reason)
	})
	h.publish(c, events.Event{
		Type:        events.TypeRefundExecuted,
		OrderID:     res.OrderID,
		PaymentID:   res.PaymentID,
		AmountMinor: res.AmountMinor,
		Currency:    res.Currency,
		Status:      res.Channel,
	})
	c.JSON(http.StatusOK, res)
}

// CancelCODOrder cancels an undelivered cash order. No money moved, so only
// statuses flip and stock is restored.
func (h Handlers) CancelCODOrder(c *gin.Context) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	orderID := c.Param("order_id")

	if err := h.Refunds.CancelCOD(c.Request.Context(), orderID); err != nil {
		h.abortErr(c, err)
		return
	}
	h.audit(c, func() error {
		return h.Audit.LogRefund(c.Request.Context(), actorID, actorRole, c.ClientIP(),
			orderID, "", 0, "cod order cancelled")
	})
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": "cancelled"})
}

func (h Handlers) RefundStatus(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	orderID := c.Param("order_id")
	if !h.ownsOrder(c, orderID, userID, role) {
		return
	}
	rs, ps, err := h.Refunds.Status(c.Request.Context(), orderID)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund_status": rs, "payments": ps})
}

// --- Wallet ---

func (h Handlers) WalletBalance(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	a, err := h.Wallet.Balance(c.Request.Context(), userID, c.Query("currency"))
	if err != nil {
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) WalletTransactions(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	txns, err := h.Wallet.Transactions(c.Request.Context(), userID, limit)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// parseRange reads a half-open [from, to) time range from query params.
func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return reporting.TimeRange{}, false
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return reporting.TimeRange{}, false
	}
	return reporting.TimeRange{From: from, To: to}, true
}

func (h Handlers) WalletStatement(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	st, err := h.Reports.WalletStatement(c.Request.Context(), reporting.WalletStatementRequest{
		UserID: userID,
		Range:  rng,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type walletAmountRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

func (h Handlers) WalletTopup(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	var req walletAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	intent, err := h.Topups.CreateIntent(c.Request.Context(), userID, req.AmountMinor, req.Currency)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"intent_id": intent.ID, "client_secret": intent.ClientSecret})
}

func (h Handlers) WalletWithdraw(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	var req walletAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	txn, acct, err := h.Topups.Withdraw(c.Request.Context(), userID, req.AmountMinor, req.Currency)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	h.Metrics.WalletTransactionsTotal.WithLabelValues(string(txn.Type), string(txn.Source)).Inc()
	c.JSON(http.StatusOK, gin.H{"transaction": txn, "balance_minor": acct.BalanceMinor})
}

// --- Payouts ---

// payoutSeller resolves which seller a payout request targets. Sellers always
// act on themselves; finance_ops and admins may name another seller.
func payoutSeller(userID, role, requested string) string {
	if requested == "" || role == rbac.RoleSeller {
		return userID
	}
	return requested
}

func (h Handlers) PendingPayout(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	sellerID := payoutSeller(userID, role, c.Query("seller_id"))
	p, err := h.Payouts.CalculatePending(c.Request.Context(), sellerID)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) ListPayouts(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	sellerID := payoutSeller(userID, role, c.Query("seller_id"))
	ps, err := h.Payouts.ListBySeller(c.Request.Context(), sellerID)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": ps})
}

type initiatePayoutRequest struct {
	OrderIDs []string `json:"order_ids"`
	Method   string   `json:"method"`
	SellerID string   `json:"seller_id,omitempty"`
}

func (h Handlers) InitiatePayout(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	var req initiatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sellerID := payoutSeller(userID, role, req.SellerID)

	p, err := h.Payouts.Initiate(c.Request.Context(), sellerID, req.OrderIDs, payout.Method(req.Method))
	if err != nil {
		h.abortErr(c, err)
		return
	}
	h.Metrics.PayoutsTotal.WithLabelValues(string(p.Status)).Inc()
	c.JSON(http.StatusCreated, p)
}

func (h Handlers) ProcessPayout(c *gin.Context) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.Payouts.Process(c.Request.Context(), c.Param("payout_id"))
	if err != nil {
		h.abortErr(c, err)
		return
	}
	h.Metrics.PayoutsTotal.WithLabelValues(string(p.Status)).Inc()
	h.audit(c, func() error {
		return h.Audit.LogPayoutTransition(c.Request.Context(), actorID, actorRole, c.ClientIP(), p.ID, "processing", p.NetMinor)
	})
	c.JSON(http.StatusOK, p)
}

type completePayoutRequest struct {
	TransactionRef string `json:"transaction_ref"`
}

func (h Handlers) CompletePayout(c *gin.Context) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	var req completePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	p, err := h.Payouts.Complete(c.Request.Context(), c.Param("payout_id"), req.TransactionRef)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	h.Metrics.PayoutsTotal.WithLabelValues(string(p.Status)).Inc()
	h.Metrics.WalletTransactionsTotal.WithLabelValues(string(wallet.TypeCredit), string(wallet.SourcePayout)).Inc()
	h.audit(c, func() error {
		return h.Audit.LogPayoutTransition(c.Request.Context(), actorID, actorRole, c.ClientIP(), p.ID, "completed", p.NetMinor)
	})
	h.publish(c, events.Event{
		Type:        events.TypePayoutCompleted,
		PayoutID:    p.ID,
		UserID:      p.SellerID,
		AmountMinor: p.NetMinor,
		Currency:    p.Currency,
		Status:      string(p.Status),
	})
	c.JSON(http.StatusOK, p)
}

type failPayoutRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) FailPayout(c *gin.Context) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	var req failPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	p, err := h.Payouts.Fail(c.Request.Context(), c.Param("payout_id"), req.Reason)
	if err != nil {
		h.abortErr(c, err)
		return
	}
	h.Metrics.PayoutsTotal.WithLabelValues(string(p.Status)).Inc()
	h.audit(c, func() error {
		return h.Audit.LogPayoutTransition(c.Request.Context(), actorID, actorRole, c.ClientIP(), p.ID, "failed", p.NetMinor)
	})
	c.JSON(http.StatusOK, p)
}

// --- Admin ---

type adminManualCreditRequest struct {
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason"`

	// IdempotencyKey dedupes retried submissions; one is generated when absent.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// AdminManualCredit performs an admin-only wallet credit (compensation,
// goodwill, support adjustments). Every credit leaves an audit row.
func (h Handlers) AdminManualCredit(c *gin.Context) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	var req adminManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Reason == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reason required"})
		return
	}
	ref := req.IdempotencyKey
	if ref == "" {
		ref = "admin_" + uuid.NewString()
	}

	txn, acct, err := h.Wallet.Credit(c.Request.Context(), wallet.CreditRequest{
		UserID:      req.UserID,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Source:      wallet.SourceAdminCredit,
		ReferenceID: ref,
		Description: req.Reason,
	})
	if err != nil {
		h.abortErr(c, err)
		return
	}

	h.Metrics.WalletTransactionsTotal.WithLabelValues(string(txn.Type), string(txn.Source)).Inc()
	h.audit(c, func() error {
		return h.Audit.LogAdminAction(c.Request.Context(), actorID, actorRole, c.ClientIP(),
			"manual credit: "+req.Reason, req.UserID, req.AmountMinor, "")
	})
	c.JSON(http.StatusOK, gin.H{"transaction": txn, "balance_minor": acct.BalanceMinor})
}

func (h Handlers) AdminPaymentsReport(c *gin.Context) {
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	sum, err := h.Reports.PaymentsSummary(c.Request.Context(), reporting.PaymentsSummaryRequest{
		Range:  rng,
		Method: c.Query("method"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
