package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// Applier grants what a payment bought.
type Applier interface {
	OnPaymentSucceeded(ctx context.Context, userID int64, kind billing.PaymentKind, itemID string) error
}

// Service applies payment events exactly once.
type Service struct {
	repo    Repository
	applier Applier
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a payment service.
func NewService(repo Repository, applier Applier, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		applier: applier,
		logger:  logger.Named("payment"),
		metrics: m,
	}
}

// HandleSucceeded applies the purchase encoded in payload for a confirmed
// payment. Repeated deliveries of the same eventID are no-ops once applied.
// A failed application may be retried by delivering the event again.
func (s *Service) HandleSucceeded(ctx context.Context, eventID, provider, payload string) (*Purchase, error) {
	log := s.logger.With(zap.String("event_id", eventID), zap.String("provider", provider))

	decoded, decodeErr := billing.DecodePayload(payload)
	purchase := &Purchase{
		ID:       uuid.New(),
		EventID:  eventID,
		Provider: provider,
		UserID:   decoded.UserID,
		Kind:     string(decoded.Kind),
		ItemID:   decoded.ItemID,
		Payload:  payload,
		Status:   PurchaseStatusPending,
	}
	if decodeErr != nil {
		purchase.Status = PurchaseStatusRejected
		purchase.Error = decodeErr.Error()
	}

	err := s.repo.Create(ctx, purchase)
	switch {
	case errors.Is(err, ErrDuplicateEvent):
		existing, reapply, claimErr := s.claimExisting(ctx, eventID)
		if !reapply {
			s.metrics.RecordPaymentEvent(provider, "duplicate")
			return existing, claimErr
		}
		purchase = existing
	case err != nil:
		s.metrics.RecordPaymentEvent(provider, "error")
		return nil, err
	}

	if purchase.Status == PurchaseStatusRejected {
		s.metrics.RecordPaymentEvent(provider, "rejected")
		log.Error("payment with unreadable payload", zap.String("payload", payload), zap.Error(decodeErr))
		return purchase, fmt.Errorf("%w: %w", ErrPurchaseRejected, decodeErr)
	}

	applyErr := s.applier.OnPaymentSucceeded(ctx, purchase.UserID, billing.PaymentKind(purchase.Kind), purchase.ItemID)
	now := time.Now()
	switch {
	case applyErr == nil:
		purchase.Status = PurchaseStatusApplied
		purchase.Error = ""
		purchase.AppliedAt = &now
	case errors.Is(applyErr, billing.ErrStorageUnavailable):
		purchase.Status = PurchaseStatusFailed
		purchase.Error = applyErr.Error()
	default:
		purchase.Status = PurchaseStatusRejected
		purchase.Error = applyErr.Error()
	}

	if err := s.repo.Update(context.WithoutCancel(ctx), purchase); err != nil {
		log.Error("failed to record purchase outcome", zap.String("status", string(purchase.Status)), zap.Error(err))
	}
	s.metrics.RecordPaymentEvent(provider, string(purchase.Status))

	if applyErr != nil {
		log.Error("purchase not applied",
			zap.Int64("user_id", purchase.UserID),
			zap.String("kind", purchase.Kind),
			zap.String("item_id", purchase.ItemID),
			zap.Error(applyErr))
		if purchase.Status == PurchaseStatusRejected {
			return purchase, fmt.Errorf("%w: %w", ErrPurchaseRejected, applyErr)
		}
		return purchase, applyErr
	}

	log.Info("purchase applied",
		zap.Int64("user_id", purchase.UserID),
		zap.String("kind", purchase.Kind),
		zap.String("item_id", purchase.ItemID))
	return purchase, nil
}

// HandleTelegramPayment applies a Telegram successful_payment update.
func (s *Service) HandleTelegramPayment(ctx context.Context, chargeID, invoicePayload string) (*Purchase, error) {
	return s.HandleSucceeded(ctx, chargeID, ProviderTelegram, invoicePayload)
}

// History lists the latest purchases of a user.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*Purchase, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// claimExisting decides what to do with a redelivered event. reapply is
// true when the caller now owns a previously failed purchase.
func (s *Service) claimExisting(ctx context.Context, eventID string) (existing *Purchase, reapply bool, err error) {
	existing, err = s.repo.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, false, fmt.Errorf("load purchase: %w", err)
	}

	switch existing.Status {
	case PurchaseStatusApplied:
		s.logger.Info("payment event already applied", zap.String("event_id", eventID))
		return existing, false, nil
	case PurchaseStatusRejected:
		return existing, false, fmt.Errorf("%w: %s", ErrPurchaseRejected, existing.Error)
	case PurchaseStatusFailed:
		claimed, err := s.repo.Transition(ctx, eventID, PurchaseStatusFailed, PurchaseStatusPending)
		if err != nil {
			return existing, false, err
		}
		if !claimed {
			return existing, false, ErrEventInProgress
		}
		existing.Status = PurchaseStatusPending
		return existing, true, nil
	default:
		return existing, false, ErrEventInProgress
	}
}
