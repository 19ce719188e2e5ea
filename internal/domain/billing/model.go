package billing

import (
	"fmt"
	"strings"
	"time"
)

// Service is a billable generation service. The set is closed.
type Service string

const (
	ServiceImage Service = "image"
	ServiceVideo Service = "video"
)

// Services lists every service in a stable order.
var Services = []Service{ServiceImage, ServiceVideo}

// ParseService converts a string into a Service.
func ParseService(s string) (Service, error) {
	switch Service(strings.ToLower(strings.TrimSpace(s))) {
	case ServiceImage:
		return ServiceImage, nil
	case ServiceVideo:
		return ServiceVideo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidService, s)
	}
}

// Valid reports whether s is a known service.
func (s Service) Valid() bool {
	return s == ServiceImage || s == ServiceVideo
}

func (s Service) String() string {
	return string(s)
}

// Pass is an activated time-limited bundle.
type Pass struct {
	UserID      int64     `json:"user_id"`
	Type        PassType  `json:"pass_type"`
	PurchasedAt time.Time `json:"purchased_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ImageQuota  int64     `json:"image_quota"`
	VideoQuota  int64     `json:"video_quota"`
}

// ExpiredAt reports whether the pass is no longer active at now.
func (p *Pass) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Remaining returns the time left before the pass expires.
func (p *Pass) Remaining(now time.Time) time.Duration {
	if p.ExpiredAt(now) {
		return 0
	}
	return p.ExpiresAt.Sub(now)
}

// QuotaFor returns the pass quota granted for a service.
func (p *Pass) QuotaFor(service Service) int64 {
	if service == ServiceVideo {
		return p.VideoQuota
	}
	return p.ImageQuota
}
