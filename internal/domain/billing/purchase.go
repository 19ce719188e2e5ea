package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// PaymentKind identifies what a payment bought.
type PaymentKind string

const (
	PaymentKindPass  PaymentKind = "pass"
	PaymentKindTopup PaymentKind = "topup"
)

// Payload is the opaque purchase reference round-tripped through the
// payment platform.
type Payload struct {
	Kind   PaymentKind
	ItemID string
	UserID int64
}

// EncodePayload formats a purchase reference as kind:item:user.
func EncodePayload(kind PaymentKind, itemID string, userID int64) string {
	return fmt.Sprintf("%s:%s:%d", kind, itemID, userID)
}

// DecodePayload parses a reference produced by EncodePayload.
func DecodePayload(s string) (Payload, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, s)
	}

	kind := PaymentKind(parts[0])
	if kind != PaymentKindPass && kind != PaymentKindTopup {
		return Payload{}, fmt.Errorf("%w: %w: %q", ErrInvalidPayload, ErrInvalidPaymentKind, parts[0])
	}
	if parts[1] == "" {
		return Payload{}, fmt.Errorf("%w: empty item id", ErrInvalidPayload)
	}
	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || userID <= 0 {
		return Payload{}, fmt.Errorf("%w: bad user id %q", ErrInvalidPayload, parts[2])
	}
	return Payload{Kind: kind, ItemID: parts[1], UserID: userID}, nil
}

// Purchases applies successful payments to the ledger.
type Purchases struct {
	ledger  *Ledger
	passes  *PassManager
	catalog *Catalog
	logger  *zap.Logger
	opts    options
}

// NewPurchases creates a purchase dispatcher.
func NewPurchases(ledger *Ledger, passes *PassManager, catalog *Catalog, logger *zap.Logger, opts ...Option) *Purchases {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Purchases{
		ledger:  ledger,
		passes:  passes,
		catalog: catalog,
		logger:  logger.Named("purchases"),
		opts:    buildOptions(opts),
	}
}

// OnPaymentSucceeded dispatches a paid item to pass activation or top-up.
// Unknown identifiers are rejected before any storage mutation.
func (p *Purchases) OnPaymentSucceeded(ctx context.Context, userID int64, kind PaymentKind, itemID string) error {
	switch kind {
	case PaymentKindPass:
		_, err := p.passes.Activate(ctx, userID, PassType(itemID))
		return err
	case PaymentKindTopup:
		return p.AddTopup(ctx, userID, TopupType(itemID))
	default:
		p.logger.Error("unknown payment kind", zap.Int64("user_id", userID), zap.String("kind", string(kind)))
		return fmt.Errorf("%w: %q", ErrInvalidPaymentKind, kind)
	}
}

// AddTopup credits a top-up pack.
func (p *Purchases) AddTopup(ctx context.Context, userID int64, topup TopupType) error {
	offer, err := p.catalog.Topup(topup)
	if err != nil {
		p.opts.metrics.RecordTopup(string(topup), "invalid")
		p.logger.Error("unknown topup type", zap.Int64("user_id", userID), zap.String("topup", string(topup)))
		return err
	}

	if !p.ledger.AddTopupQuota(ctx, userID, offer.Service, offer.QuotaAmount) {
		p.opts.metrics.RecordTopup(string(topup), "error")
		return fmt.Errorf("%w: topup %s for user %d", ErrStorageUnavailable, topup, userID)
	}

	p.opts.metrics.RecordTopup(string(topup), "ok")
	p.logger.Info("topup applied",
		zap.Int64("user_id", userID),
		zap.String("topup", string(topup)),
		zap.String("service", offer.Service.String()),
		zap.Int64("amount", offer.QuotaAmount))
	return nil
}
