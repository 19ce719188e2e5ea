package app

import (
	"fmt"
	"time"

	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/infra/config"
)

// NewCatalog converts the billing config into a validated catalog.
func NewCatalog(cfg config.BillingConfig) (*billing.Catalog, error) {
	passes := make(map[billing.PassType]billing.PassOffer, len(cfg.Passes))
	for id, p := range cfg.Passes {
		passes[billing.PassType(id)] = billing.PassOffer{
			Price:      p.Price,
			ImageQuota: p.ImageQuota,
			VideoQuota: p.VideoQuota,
			Duration:   time.Duration(p.DurationHours) * time.Hour,
		}
	}

	topups := make(map[billing.TopupType]billing.TopupOffer, len(cfg.Topups))
	for id, t := range cfg.Topups {
		service, err := billing.ParseService(t.Service)
		if err != nil {
			return nil, fmt.Errorf("topup %s: %w", id, err)
		}
		topups[billing.TopupType(id)] = billing.TopupOffer{
			Price:       t.Price,
			Service:     service,
			QuotaAmount: t.QuotaAmount,
		}
	}

	return billing.NewCatalog(
		billing.FreeTier{
			ImageDaily: cfg.FreeTier.ImageDaily,
			VideoDaily: cfg.FreeTier.VideoDaily,
			Expiration: time.Duration(cfg.FreeTier.ExpirationHours) * time.Hour,
		},
		time.Duration(cfg.TopupExpirationHours)*time.Hour,
		passes,
		topups,
	)
}

// NewWarningPolicy converts the thresholds config.
func NewWarningPolicy(cfg config.BillingConfig) (billing.WarningPolicy, error) {
	p := billing.WarningPolicy{
		GentleWarning: cfg.Thresholds.GentleWarning,
		HardBlock:     cfg.Thresholds.HardBlock,
	}
	if err := p.Validate(); err != nil {
		return billing.WarningPolicy{}, fmt.Errorf("billing thresholds: %w", err)
	}
	return p, nil
}
