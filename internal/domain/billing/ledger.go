package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stylebot/server/internal/port/outbound"
	"go.uber.org/zap"
)

// Ledger is the single source of truth for per-user, per-service quota.
//
// Every mutation goes through the counter store's atomic primitives; the
// ledger keeps no quota state in memory. Methods never return errors to the
// chat layer: storage failures are logged and degrade to "no quota".
type Ledger struct {
	store     outbound.CounterStore
	catalog   *Catalog
	allowlist *Allowlist
	logger    *zap.Logger
	opts      options
}

// NewLedger creates a quota ledger.
func NewLedger(store outbound.CounterStore, catalog *Catalog, allowlist *Allowlist, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:     store,
		catalog:   catalog,
		allowlist: allowlist,
		logger:    logger.Named("ledger"),
		opts:      buildOptions(opts),
	}
}

// IsUnlimited reports whether identity bypasses quota checks.
func (l *Ledger) IsUnlimited(identity string) bool {
	return l.allowlist.IsUnlimited(identity)
}

// EnsureInitialized grants the free daily allowance if the user has no
// counter for service. The grant happens at most once per expiry window.
// It reports whether this call created the counter.
func (l *Ledger) EnsureInitialized(ctx context.Context, userID int64, service Service) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.opTimeout)
	defer cancel()

	key := quotaKey(userID, service)
	free := l.catalog.FreeTier
	granted, err := l.store.SetNX(ctx, key, free.Daily(service), free.Expiration)
	if err != nil {
		return false, fmt.Errorf("%w: setnx %s: %w", ErrStorageUnavailable, key, err)
	}
	if granted {
		l.logger.Debug("free quota granted",
			zap.Int64("user_id", userID),
			zap.String("service", service.String()),
			zap.Int64("amount", free.Daily(service)))
	}
	return granted, nil
}

// GetQuota returns the remaining quota, granting the free allowance on first
// touch. It returns 0 on any storage error.
func (l *Ledger) GetQuota(ctx context.Context, userID int64, service Service) int64 {
	if _, err := l.EnsureInitialized(ctx, userID, service); err != nil {
		l.logFailure("get_quota", userID, service, err)
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.opTimeout)
	defer cancel()

	key := quotaKey(userID, service)
	val, err := l.store.Get(ctx, key)
	if errors.Is(err, outbound.ErrCacheMiss) {
		// Expired between the grant check and the read.
		return 0
	}
	if err != nil {
		l.logFailure("get_quota", userID, service, fmt.Errorf("%w: get %s: %w", ErrStorageUnavailable, key, err))
		return 0
	}
	return max(val, 0)
}

// HasQuota reports whether the user can spend amount units of service now.
func (l *Ledger) HasQuota(ctx context.Context, userID int64, service Service, amount int64, identity string) bool {
	if l.IsUnlimited(identity) {
		return true
	}
	return l.GetQuota(ctx, userID, service) >= amount
}

// Consume atomically spends amount units. It returns false when the user
// does not have enough quota or the store is unavailable. Unlimited
// identities succeed without touching storage.
func (l *Ledger) Consume(ctx context.Context, userID int64, service Service, amount int64, identity string) bool {
	if l.IsUnlimited(identity) {
		l.opts.metrics.RecordQuotaOp("consume", service.String(), "unlimited")
		return true
	}
	if amount <= 0 {
		l.logger.Warn("consume called with non-positive amount",
			zap.Int64("user_id", userID), zap.Int64("amount", amount))
		return false
	}

	if _, err := l.EnsureInitialized(ctx, userID, service); err != nil {
		l.logFailure("consume", userID, service, err)
		return false
	}

	key := quotaKey(userID, service)
	err := l.transact(ctx, "consume", key, func(ctx context.Context, tx outbound.CounterTx) error {
		current, err := tx.Get(ctx, key)
		if errors.Is(err, outbound.ErrCacheMiss) {
			current = 0
		} else if err != nil {
			return err
		}
		if current < amount {
			return ErrInsufficientQuota
		}
		return tx.Exec(ctx, outbound.DecrByOp(key, amount))
	})

	switch {
	case err == nil:
		l.opts.metrics.RecordQuotaOp("consume", service.String(), "ok")
		return true
	case errors.Is(err, ErrInsufficientQuota):
		l.opts.metrics.RecordQuotaOp("consume", service.String(), "denied")
		return false
	default:
		l.logFailure("consume", userID, service, err)
		return false
	}
}

// Refund atomically returns amount units. If the counter expired since it
// was consumed, a fresh window is opened with the free allowance plus the
// refunded amount so the credit is not lost.
func (l *Ledger) Refund(ctx context.Context, userID int64, service Service, amount int64) bool {
	if amount <= 0 {
		return true
	}

	key := quotaKey(userID, service)
	free := l.catalog.FreeTier
	err := l.transact(ctx, "refund", key, func(ctx context.Context, tx outbound.CounterTx) error {
		exists, err := tx.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return tx.Exec(ctx, outbound.IncrByOp(key, amount))
		}
		return tx.Exec(ctx, outbound.SetOp(key, free.Daily(service)+amount, free.Expiration))
	})
	if err != nil {
		l.logFailure("refund", userID, service, err)
		return false
	}

	l.opts.metrics.RecordQuotaOp("refund", service.String(), "ok")
	l.logger.Info("quota refunded",
		zap.Int64("user_id", userID),
		zap.String("service", service.String()),
		zap.Int64("amount", amount))
	return true
}

// AddTopupQuota adds purchased credit. An existing counter keeps its expiry;
// a missing one is created with the top-up shelf life.
func (l *Ledger) AddTopupQuota(ctx context.Context, userID int64, service Service, amount int64) bool {
	if amount <= 0 {
		l.logger.Warn("topup called with non-positive amount",
			zap.Int64("user_id", userID), zap.Int64("amount", amount))
		return false
	}

	key := quotaKey(userID, service)
	err := l.transact(ctx, "topup", key, func(ctx context.Context, tx outbound.CounterTx) error {
		exists, err := tx.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return tx.Exec(ctx, outbound.IncrByOp(key, amount))
		}
		return tx.Exec(ctx, outbound.SetOp(key, amount, l.catalog.TopupExpiration))
	})
	if err != nil {
		l.logFailure("topup", userID, service, err)
		return false
	}

	l.opts.metrics.RecordQuotaOp("topup", service.String(), "ok")
	return true
}

type txFunc func(ctx context.Context, tx outbound.CounterTx) error

// transact runs fn as an optimistic transaction on key, retrying on
// concurrent modification up to maxRetries times.
func (l *Ledger) transact(ctx context.Context, op, key string, fn txFunc) error {
	for attempt := 1; attempt <= l.opts.maxRetries; attempt++ {
		err := l.watch(ctx, key, fn)
		if !errors.Is(err, outbound.ErrWatchConflict) {
			return err
		}
		l.opts.metrics.RecordQuotaRetry(op)
		l.logger.Debug("optimistic transaction conflict, retrying",
			zap.String("op", op),
			zap.String("key", key),
			zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: %s %s after %d attempts: %w", ErrStorageUnavailable, op, key, l.opts.maxRetries, ErrOptimisticConflict)
}

func (l *Ledger) watch(ctx context.Context, key string, fn txFunc) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.opTimeout)
	defer cancel()

	err := l.store.Watch(ctx, func(tx outbound.CounterTx) error {
		return fn(ctx, tx)
	}, key)
	switch {
	case err == nil, errors.Is(err, outbound.ErrWatchConflict), errors.Is(err, ErrInsufficientQuota):
		return err
	}
	return fmt.Errorf("%w: watch %s: %w", ErrStorageUnavailable, key, err)
}

func (l *Ledger) logFailure(op string, userID int64, service Service, err error) {
	l.opts.metrics.RecordQuotaOp(op, service.String(), "error")
	l.logger.Error("quota operation failed",
		zap.String("op", op),
		zap.String("key", quotaKey(userID, service)),
		zap.Int64("user_id", userID),
		zap.String("service", service.String()),
		zap.Error(err))
}
