package billing

import (
	"fmt"
	"time"
)

// PassType identifies a pass tier. The set is closed.
type PassType string

const (
	PassDay   PassType = "pass_1d"
	PassWeek  PassType = "pass_7d"
	PassMonth PassType = "pass_30d"
)

// PassTypes lists every pass tier.
var PassTypes = []PassType{PassDay, PassWeek, PassMonth}

// Valid reports whether t is a known pass tier.
func (t PassType) Valid() bool {
	switch t {
	case PassDay, PassWeek, PassMonth:
		return true
	}
	return false
}

// TopupType identifies a pay-as-you-go pack. The set is closed.
type TopupType string

const (
	TopupImage10 TopupType = "image_10"
	TopupImage50 TopupType = "image_50"
	TopupVideo3  TopupType = "video_3"
	TopupVideo10 TopupType = "video_10"
)

// TopupTypes lists every top-up pack.
var TopupTypes = []TopupType{TopupImage10, TopupImage50, TopupVideo3, TopupVideo10}

// Valid reports whether t is a known top-up pack.
func (t TopupType) Valid() bool {
	switch t {
	case TopupImage10, TopupImage50, TopupVideo3, TopupVideo10:
		return true
	}
	return false
}

// PassOffer describes a pass tier.
type PassOffer struct {
	Price      int64
	ImageQuota int64
	VideoQuota int64
	Duration   time.Duration
}

// TopupOffer describes a top-up pack.
type TopupOffer struct {
	Price       int64
	Service     Service
	QuotaAmount int64
}

// FreeTier is the daily free allowance.
type FreeTier struct {
	ImageDaily int64
	VideoDaily int64
	Expiration time.Duration
}

// Daily returns the free allowance for a service.
func (f FreeTier) Daily(service Service) int64 {
	if service == ServiceVideo {
		return f.VideoDaily
	}
	return f.ImageDaily
}

// Catalog is the validated, read-only price list.
type Catalog struct {
	FreeTier        FreeTier
	TopupExpiration time.Duration
	Passes          map[PassType]PassOffer
	Topups          map[TopupType]TopupOffer
}

// NewCatalog validates the offers and returns an immutable catalog. Every
// known pass and top-up identifier must be configured, and nothing else.
func NewCatalog(free FreeTier, topupExpiration time.Duration, passes map[PassType]PassOffer, topups map[TopupType]TopupOffer) (*Catalog, error) {
	if free.ImageDaily < 0 || free.VideoDaily < 0 {
		return nil, fmt.Errorf("%w: free tier amounts must not be negative", ErrInvalidCatalog)
	}
	if free.Expiration <= 0 {
		return nil, fmt.Errorf("%w: free tier expiration must be positive", ErrInvalidCatalog)
	}
	if topupExpiration <= 0 {
		return nil, fmt.Errorf("%w: topup expiration must be positive", ErrInvalidCatalog)
	}

	c := &Catalog{
		FreeTier:        free,
		TopupExpiration: topupExpiration,
		Passes:          make(map[PassType]PassOffer, len(passes)),
		Topups:          make(map[TopupType]TopupOffer, len(topups)),
	}

	for t, offer := range passes {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidCatalog, ErrInvalidPassType, t)
		}
		if offer.Duration <= 0 {
			return nil, fmt.Errorf("%w: pass %s: duration must be positive", ErrInvalidCatalog, t)
		}
		if offer.ImageQuota < 0 || offer.VideoQuota < 0 || offer.Price < 0 {
			return nil, fmt.Errorf("%w: pass %s: negative amount", ErrInvalidCatalog, t)
		}
		c.Passes[t] = offer
	}
	for _, t := range PassTypes {
		if _, ok := c.Passes[t]; !ok {
			return nil, fmt.Errorf("%w: pass %s is not configured", ErrInvalidCatalog, t)
		}
	}

	for t, offer := range topups {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidCatalog, ErrInvalidTopupType, t)
		}
		if !offer.Service.Valid() {
			return nil, fmt.Errorf("%w: topup %s: %w %q", ErrInvalidCatalog, t, ErrInvalidService, offer.Service)
		}
		if offer.QuotaAmount <= 0 || offer.Price < 0 {
			return nil, fmt.Errorf("%w: topup %s: quota amount must be positive", ErrInvalidCatalog, t)
		}
		c.Topups[t] = offer
	}
	for _, t := range TopupTypes {
		if _, ok := c.Topups[t]; !ok {
			return nil, fmt.Errorf("%w: topup %s is not configured", ErrInvalidCatalog, t)
		}
	}

	return c, nil
}

// DefaultCatalog returns the shipped price list (prices in Telegram Stars).
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		FreeTier{ImageDaily: 5, VideoDaily: 1, Expiration: 24 * time.Hour},
		30*24*time.Hour,
		map[PassType]PassOffer{
			PassDay:   {Price: 99, ImageQuota: 50, VideoQuota: 5, Duration: 24 * time.Hour},
			PassWeek:  {Price: 399, ImageQuota: 300, VideoQuota: 30, Duration: 7 * 24 * time.Hour},
			PassMonth: {Price: 999, ImageQuota: 1500, VideoQuota: 120, Duration: 30 * 24 * time.Hour},
		},
		map[TopupType]TopupOffer{
			TopupImage10: {Price: 49, Service: ServiceImage, QuotaAmount: 10},
			TopupImage50: {Price: 199, Service: ServiceImage, QuotaAmount: 50},
			TopupVideo3:  {Price: 99, Service: ServiceVideo, QuotaAmount: 3},
			TopupVideo10: {Price: 279, Service: ServiceVideo, QuotaAmount: 10},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Pass returns the offer for a pass tier.
func (c *Catalog) Pass(t PassType) (PassOffer, error) {
	offer, ok := c.Passes[t]
	if !ok {
		return PassOffer{}, fmt.Errorf("%w: %q", ErrInvalidPassType, t)
	}
	return offer, nil
}

// Topup returns the offer for a top-up pack.
func (c *Catalog) Topup(t TopupType) (TopupOffer, error) {
	offer, ok := c.Topups[t]
	if !ok {
		return TopupOffer{}, fmt.Errorf("%w: %q", ErrInvalidTopupType, t)
	}
	return offer, nil
}
