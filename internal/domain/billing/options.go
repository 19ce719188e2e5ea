package billing

import (
	"time"

	"github.com/stylebot/server/internal/utils/metrics"
)

const (
	defaultMaxRetries = 5
	defaultOpTimeout  = 2 * time.Second
)

type options struct {
	metrics    *metrics.Metrics
	maxRetries int
	opTimeout  time.Duration
	now        func() time.Time
}

// Option configures a Ledger, PassManager or Purchases.
type Option func(*options)

// WithMetrics records operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMaxRetries bounds optimistic transaction retries.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithOpTimeout bounds each counter store round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.opTimeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		maxRetries: defaultMaxRetries,
		opTimeout:  defaultOpTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
