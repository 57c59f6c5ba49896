package payment

import (
	"context"
	"fmt"
	"time"

	"marketplace-payments/internal/fault"
	"marketplace-payments/internal/gateway"
	"marketplace-payments/internal/idempotency"
	"marketplace-payments/internal/order"
	"marketplace-payments/internal/wallet"

	"github.com/google/uuid"
)

// Ledger is the slice of the wallet service this package consumes.
type Ledger interface {
	Debit(ctx context.Context, req wallet.DebitRequest) (wallet.Transaction, wallet.Account, error)
}

// Service owns the payment lifecycle: initiation across the three methods,
// COD collection, and the transitions applied on behalf of the webhook
// reconciler.
type Service struct {
	repo   Repository
	orders order.Store
	ledger Ledger
	gw     gateway.Client
	idem   idempotency.Store

	clock func() time.Time
}

func NewService(repo Repository, orders order.Store, ledger Ledger, gw gateway.Client, idem idempotency.Store) *Service {
	return &Service{
		repo:   repo,
		orders: orders,
		ledger: ledger,
		gw:     gw,
		idem:   idem,
		clock:  time.Now,
	}
}

// SetClock overrides the service clock; test helper.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// initiationTTL bounds how long an initiation guard key blocks a retry whose
// first attempt died without releasing it.
const initiationTTL = 15 * time.Minute

type InitiateRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Method  Method `json:"method"`
}

type InitiateResult struct {
	Payment Payment `json:"payment"`

	// ClientSecret is set only for gateway payments; the caller completes the
	// charge on the client with it.
	ClientSecret string `json:"client_secret,omitempty"`
}

// Initiate starts a payment for the order using the requested method. At most
// one initiation can be in flight per (order, user); a concurrent duplicate
// gets ErrConflict.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (res InitiateResult, retErr error) {
	if req.OrderID == "" || req.UserID == "" {
		return InitiateResult{}, fmt.Errorf("payment: order id and user id required: %w", fault.ErrValidation)
	}
	if !ValidMethod(req.Method) {
		return InitiateResult{}, fmt.Errorf("payment: unknown method %q: %w", req.Method, fault.ErrValidation)
	}

	guard := "payment:" + req.OrderID + ":" + req.UserID
	ok, err := s.idem.SetNX(ctx, guard, "1", initiationTTL)
	if err != nil {
		return InitiateResult{}, err
	}
	if !ok {
		return InitiateResult{}, fmt.Errorf("payment: initiation already in progress for order %s: %w", req.OrderID, fault.ErrConflict)
	}
	// Release the guard when initiation fails so the buyer can retry
	// immediately instead of waiting out the TTL.
	defer func() {
		if retErr != nil {
			_ = s.idem.Delete(ctx, guard)
		}
	}()

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return InitiateResult{}, err
	}
	if o.BuyerID != req.UserID {
		return InitiateResult{}, fmt.Errorf("payment: order %s does not belong to user: %w", req.OrderID, fault.ErrValidation)
	}
	if !o.Payable() {
		return InitiateResult{}, fmt.Errorf("payment: order %s not payable (status=%s payment_status=%s): %w",
			o.ID, o.Status, o.PaymentStatus, fault.ErrConflict)
	}
	if _, active, err := s.repo.FindActiveByOrder(ctx, req.OrderID); err != nil {
		return InitiateResult{}, err
	} else if active {
		return InitiateResult{}, fmt.Errorf("payment: order %s already has a pending payment: %w", req.OrderID, fault.ErrConflict)
	}

	switch req.Method {
	case MethodGateway:
		return s.initiateGateway(ctx, o, req.UserID)
	case MethodCashOnDelivery:
		return s.initiateCOD(ctx, o, req.UserID)
	case MethodWallet:
		return s.initiateWallet(ctx, o, req.UserID)
	default:
		return InitiateResult{}, fmt.Errorf("payment: unknown method %q: %w", req.Method, fault.ErrValidation)
	}
}

func (s *Service) initiateGateway(ctx context.Context, o order.Order, userID string) (InitiateResult, error) {
	intent, err := s.gw.CreateIntent(ctx, gateway.CreateIntentRequest{
		AmountMinor: o.FinalAmountMinor,
		Currency:    o.Currency,
		Metadata: map[string]string{
			"order_id": o.ID,
			"user_id":  userID,
		},
	})
	if err != nil {
		return InitiateResult{}, err
	}

	p := s.newPayment(o, userID, MethodGateway, intent.ID, StatusPending)
	if err := s.repo.Insert(ctx, p); err != nil {
		return InitiateResult{}, err
	}
	return InitiateResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

func (s *Service) initiateCOD(ctx context.Context, o order.Order, userID string) (InitiateResult, error) {
	p := s.newPayment(o, userID, MethodCashOnDelivery, "cod_"+uuid.NewString(), StatusPending)
	if err := s.repo.Insert(ctx, p); err != nil {
		return InitiateResult{}, err
	}
	// The order proceeds to fulfilment with the cash still outstanding.
	if err := s.orders.SetStatus(ctx, o.ID, order.StatusAwaitingCash); err != nil {
		return InitiateResult{}, err
	}
	return InitiateResult{Payment: p}, nil
}

func (s *Service) initiateWallet(ctx context.Context, o order.Order, userID string) (InitiateResult, error) {
	// The ledger debit is the actual collection: it either lands atomically
	// or rejects with insufficient funds, leaving nothing behind.
	if _, _, err := s.ledger.Debit(ctx, wallet.DebitRequest{
		UserID:      userID,
		AmountMinor: o.FinalAmountMinor,
		Currency:    o.Currency,
		Source:      wallet.SourceOrderPayment,
		ReferenceID: o.ID,
		Description: "payment for order " + o.ID,
	}); err != nil {
		return InitiateResult{}, err
	}

	now := s.clock().UTC()
	p := s.newPayment(o, userID, MethodWallet, "wallet_"+uuid.NewString(), StatusPaid)
	p.PaidAt = &now
	if err := s.repo.Insert(ctx, p); err != nil {
		return InitiateResult{}, err
	}
	if err := s.orders.SetPaymentStatus(ctx, o.ID, order.PaymentStatusPaid); err != nil {
		return InitiateResult{}, err
	}
	return InitiateResult{Payment: p}, nil
}

func (s *Service) newPayment(o order.Order, userID string, method Method, externalRef string, status Status) Payment {
	now := s.clock().UTC()
	return Payment{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		UserID:      userID,
		Method:      method,
		ExternalRef: externalRef,
		AmountMinor: o.FinalAmountMinor,
		Currency:    o.Currency,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ConfirmGateway re-checks a charge intent with the processor and applies the
// success transition when it already succeeded. Client-driven fallback for the
// window before the webhook lands; safe to race with it.
func (s *Service) ConfirmGateway(ctx context.Context, userID, intentID string) (Payment, error) {
	if intentID == "" {
		return Payment{}, fmt.Errorf("payment: intent id required: %w", fault.ErrValidation)
	}
	p, err := s.repo.FindByExternalRef(ctx, intentID)
	if err != nil {
		return Payment{}, err
	}
	if p.UserID != userID {
		return Payment{}, fmt.Errorf("payment %s: %w", p.ID, fault.ErrNotFound)
	}

	intent, err := s.gw.RetrieveIntent(ctx, intentID)
	if err != nil {
		return Payment{}, err
	}
	if intent.Status != gateway.IntentStatusSucceeded {
		return p, nil
	}
	p, _, err = s.ApplyGatewaySuccess(ctx, intentID)
	return p, err
}

// ConfirmCOD marks the order's pending cash payment as collected. Called on
// delivery confirmation.
func (s *Service) ConfirmCOD(ctx context.Context, orderID string) (Payment, error) {
	p, active, err := s.repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if !active {
		return Payment{}, fmt.Errorf("payment: no pending payment on order %s: %w", orderID, fault.ErrNotFound)
	}
	if p.Method != MethodCashOnDelivery {
		return Payment{}, fmt.Errorf("payment %s is %s, not cash on delivery: %w", p.ID, p.Method, fault.ErrConflict)
	}

	now := s.clock().UTC()
	p, _, err = s.repo.Mutate(ctx, p.ID, func(p *Payment) (bool, error) {
		if p.Status != StatusPending {
			return false, nil
		}
		p.Status = StatusPaid
		p.PaidAt = &now
		return true, nil
	})
	if err != nil {
		return Payment{}, err
	}
	if err := s.orders.SetPaymentStatus(ctx, orderID, order.PaymentStatusPaid); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// ApplyGatewaySuccess transitions the payment with this external ref from
// pending to paid. A payment already out of pending is left untouched and
// applied=false is returned; duplicate deliveries are no-ops.
func (s *Service) ApplyGatewaySuccess(ctx context.Context, externalRef string) (Payment, bool, error) {
	p, err := s.repo.FindByExternalRef(ctx, externalRef)
	if err != nil {
		return Payment{}, false, err
	}

	now := s.clock().UTC()
	p, applied, err := s.repo.Mutate(ctx, p.ID, func(p *Payment) (bool, error) {
		if p.Status != StatusPending {
			return false, nil
		}
		p.Status = StatusPaid
		p.PaidAt = &now
		p.FailureReason = ""
		return true, nil
	})
	if err != nil {
		return Payment{}, false, err
	}
	if applied {
		if err := s.orders.SetPaymentStatus(ctx, p.OrderID, order.PaymentStatusPaid); err != nil {
			return Payment{}, false, err
		}
	}
	return p, applied, nil
}

// ApplyGatewayFailure transitions pending to failed and mirrors the failure
// onto the order.
func (s *Service) ApplyGatewayFailure(ctx context.Context, externalRef, reason string) (Payment, bool, error) {
	p, err := s.repo.FindByExternalRef(ctx, externalRef)
	if err != nil {
		return Payment{}, false, err
	}

	p, applied, err := s.repo.Mutate(ctx, p.ID, func(p *Payment) (bool, error) {
		if p.Status != StatusPending {
			return false, nil
		}
		p.Status = StatusFailed
		p.FailureReason = reason
		return true, nil
	})
	if err != nil {
		return Payment{}, false, err
	}
	if applied {
		if err := s.orders.SetPaymentStatus(ctx, p.OrderID, order.PaymentStatusFailed); err != nil {
			return Payment{}, false, err
		}
	}
	return p, applied, nil
}

// ApplyRefundUpdate sets the cumulative refunded amount from the processor's
// authoritative figure. The amount only moves forward; a stale or duplicate
// delivery is a no-op, and a figure above the charge amount is an integrity
// failure.
func (s *Service) ApplyRefundUpdate(ctx context.Context, externalRef string, refundedMinor int64) (Payment, bool, error) {
	if refundedMinor < 0 {
		return Payment{}, false, fmt.Errorf("payment: negative refunded amount: %w", fault.ErrValidation)
	}
	p, err := s.repo.FindByExternalRef(ctx, externalRef)
	if err != nil {
		return Payment{}, false, err
	}

	p, applied, err := s.repo.Mutate(ctx, p.ID, func(p *Payment) (bool, error) {
		if refundedMinor <= p.RefundedMinor {
			return false, nil
		}
		if refundedMinor > p.AmountMinor {
			return false, fmt.Errorf("payment %s: refunded %d exceeds amount %d: %w",
				p.ID, refundedMinor, p.AmountMinor, fault.ErrIntegrity)
		}
		p.RefundedMinor = refundedMinor
		if refundedMinor == p.AmountMinor {
			p.Status = StatusRefunded
		} else {
			p.Status = StatusPartiallyRefunded
		}
		return true, nil
	})
	if err != nil {
		return Payment{}, false, err
	}
	if applied {
		ps := order.PaymentStatusPartiallyRefunded
		if p.Status == StatusRefunded {
			ps = order.PaymentStatusRefunded
		}
		if err := s.orders.SetPaymentStatus(ctx, p.OrderID, ps); err != nil {
			return Payment{}, false, err
		}
	}
	return p, applied, nil
}

// Get returns the payment by id, scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, id string) (Payment, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if userID != "" && p.UserID != userID {
		return Payment{}, fmt.Errorf("payment %s: %w", id, fault.ErrNotFound)
	}
	return p, nil
}

// ListByOrder returns every payment attempt recorded for the order.
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	if orderID == "" {
		return nil, fmt.Errorf("payment: order id required: %w", fault.ErrValidation)
	}
	return s.repo.FindByOrder(ctx, orderID)
}
