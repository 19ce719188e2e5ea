package memory

import (
	"context"
	"sync"
	"time"

	"github.com/stylebot/server/internal/port/outbound"
	"golang.org/x/time/rate"
)

type keyedLimiter struct {
	limiter *rate.Limiter
	limit   int
	window  time.Duration
}

// RateLimiter is a token-bucket outbound.RateLimiterPort kept in process memory.
// The bucket refills limit tokens per window.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
}

var _ outbound.RateLimiterPort = (*RateLimiter)(nil)

// NewRateLimiter creates an empty limiter set.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*keyedLimiter)}
}

func (r *RateLimiter) get(key string, limit int, window time.Duration) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	kl, ok := r.limiters[key]
	if !ok || kl.limit != limit || kl.window != window {
		every := window / time.Duration(max(limit, 1))
		kl = &keyedLimiter{
			limiter: rate.NewLimiter(rate.Every(every), limit),
			limit:   limit,
			window:  window,
		}
		r.limiters[key] = kl
	}
	return kl.limiter
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return r.AllowN(ctx, key, 1, limit, window)
}

func (r *RateLimiter) AllowN(_ context.Context, key string, n int, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	return r.get(key, limit, window).AllowN(time.Now(), n), nil
}

func (r *RateLimiter) GetRemaining(_ context.Context, key string, limit int, window time.Duration) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	tokens := int(r.get(key, limit, window).Tokens())
	if tokens < 0 {
		tokens = 0
	}
	return tokens, nil
}
