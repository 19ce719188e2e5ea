package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/stylebot/server/internal/port/outbound"
	"go.uber.org/zap"
)

const (
	fieldPassType    = "pass_type"
	fieldPurchasedAt = "purchased_at"
	fieldExpiresAt   = "expires_at"
	fieldImageQuota  = "image_quota"
	fieldVideoQuota  = "video_quota"
)

// PassManager activates and reads time-limited passes.
type PassManager struct {
	store   outbound.CounterStore
	catalog *Catalog
	logger  *zap.Logger
	opts    options
}

// NewPassManager creates a pass manager.
func NewPassManager(store outbound.CounterStore, catalog *Catalog, logger *zap.Logger, opts ...Option) *PassManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PassManager{
		store:   store,
		catalog: catalog,
		logger:  logger.Named("pass"),
		opts:    buildOptions(opts),
	}
}

// Activate writes the pass record and sets both quota counters to the pass
// amounts, all expiring together with the pass. Existing counters are
// replaced, not added to. The writes go out as one batch.
func (m *PassManager) Activate(ctx context.Context, userID int64, passType PassType) (*Pass, error) {
	offer, err := m.catalog.Pass(passType)
	if err != nil {
		m.opts.metrics.RecordPassActivation(string(passType), "invalid")
		m.logger.Error("unknown pass type", zap.Int64("user_id", userID), zap.String("pass_type", string(passType)))
		return nil, err
	}

	now := m.opts.now().UTC().Truncate(time.Second)
	pass := &Pass{
		UserID:      userID,
		Type:        passType,
		PurchasedAt: now,
		ExpiresAt:   now.Add(offer.Duration),
		ImageQuota:  offer.ImageQuota,
		VideoQuota:  offer.VideoQuota,
	}

	key := passKey(userID)
	ttl := offer.Duration
	ops := []outbound.Op{
		outbound.DelOp(key),
		outbound.HSetOp(key, encodePass(pass)),
		outbound.ExpireOp(key, ttl),
		outbound.SetOp(quotaKey(userID, ServiceImage), offer.ImageQuota, ttl),
		outbound.SetOp(quotaKey(userID, ServiceVideo), offer.VideoQuota, ttl),
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.opTimeout)
	defer cancel()

	if err := m.store.Batch(ctx, ops...); err != nil {
		m.opts.metrics.RecordPassActivation(string(passType), "error")
		m.logger.Error("pass activation failed",
			zap.Int64("user_id", userID),
			zap.String("pass_type", string(passType)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: activate %s: %w", ErrStorageUnavailable, key, err)
	}

	m.opts.metrics.RecordPassActivation(string(passType), "ok")
	m.logger.Info("pass activated",
		zap.Int64("user_id", userID),
		zap.String("pass_type", string(passType)),
		zap.Time("expires_at", pass.ExpiresAt))
	return pass, nil
}

// GetActivePass returns the user's pass, or nil if there is none. Expired
// or unreadable records are deleted on read. The quota counters are left
// alone: they carry the same expiry as the pass.
func (m *PassManager) GetActivePass(ctx context.Context, userID int64) (*Pass, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.opTimeout)
	defer cancel()

	key := passKey(userID)
	fields, err := m.store.HGetAll(ctx, key)
	if err != nil {
		m.logger.Error("failed to read pass", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: hgetall %s: %w", ErrStorageUnavailable, key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	pass, err := decodePass(userID, fields)
	if err != nil {
		m.logger.Warn("discarding malformed pass record", zap.Int64("user_id", userID), zap.Error(err))
		m.evict(ctx, userID, key)
		return nil, nil
	}

	if pass.ExpiredAt(m.opts.now()) {
		m.logger.Info("pass expired", zap.Int64("user_id", userID), zap.String("pass_type", string(pass.Type)))
		m.evict(ctx, userID, key)
		return nil, nil
	}
	return pass, nil
}

func (m *PassManager) evict(ctx context.Context, userID int64, key string) {
	if err := m.store.Del(ctx, key); err != nil {
		m.logger.Warn("failed to delete pass record", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func encodePass(p *Pass) map[string]string {
	return map[string]string{
		fieldPassType:    string(p.Type),
		fieldPurchasedAt: strconv.FormatInt(p.PurchasedAt.Unix(), 10),
		fieldExpiresAt:   strconv.FormatInt(p.ExpiresAt.Unix(), 10),
		fieldImageQuota:  strconv.FormatInt(p.ImageQuota, 10),
		fieldVideoQuota:  strconv.FormatInt(p.VideoQuota, 10),
	}
}

func decodePass(userID int64, fields map[string]string) (*Pass, error) {
	passType := PassType(fields[fieldPassType])
	if !passType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPassType, passType)
	}

	ints := make(map[string]int64, 4)
	for _, name := range []string{fieldPurchasedAt, fieldExpiresAt, fieldImageQuota, fieldVideoQuota} {
		v, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		ints[name] = v
	}

	return &Pass{
		UserID:      userID,
		Type:        passType,
		PurchasedAt: time.Unix(ints[fieldPurchasedAt], 0).UTC(),
		ExpiresAt:   time.Unix(ints[fieldExpiresAt], 0).UTC(),
		ImageQuota:  ints[fieldImageQuota],
		VideoQuota:  ints[fieldVideoQuota],
	}, nil
}
