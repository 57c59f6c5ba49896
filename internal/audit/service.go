package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to buyers/sellers by
//   default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin money action (manual credit, COD collection
// confirmation).
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, message, walletUserID string, amountMinor int64, metadata string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeAdminAction,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		WalletUserID: walletUserID,
		AmountMinor:  amountMinor,
		Message:      message,
		Metadata:     metadata,
	})
}

// LogRefund records a refund execution or a cash cancellation.
func (s *Service) LogRefund(ctx context.Context, actorUserID, actorRole, ip, orderID, paymentID string, amountMinor int64, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeRefundAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		OrderID:     orderID,
		PaymentID:   paymentID,
		AmountMinor: amountMinor,
		Message:     message,
	})
}

// LogPayoutTransition records an operator-driven payout state change.
func (s *Service) LogPayoutTransition(ctx context.Context, actorUserID, actorRole, ip, payoutID, transition string, amountMinor int64) error {
	return s.Append(ctx, Event{
		Type:        EventTypePayoutTransition,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		PayoutID:    payoutID,
		AmountMinor: amountMinor,
		Message:     "payout " + transition,
	})
}
