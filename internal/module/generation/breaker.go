package generation

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures BreakerBackend.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
}

// BreakerBackend stops calling a failing backend for a while. Calls made
// while the circuit is open fail immediately.
type BreakerBackend struct {
	inner   Backend
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerBackend wraps inner in a circuit breaker.
func NewBreakerBackend(inner Backend, cfg BreakerConfig, logger *zap.Logger) *BreakerBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("generation backend circuit changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerBackend{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
	}
}

func (b *BreakerBackend) Generate(ctx context.Context, req *Request) (string, error) {
	return b.breaker.Execute(func() (string, error) {
		return b.inner.Generate(ctx, req)
	})
}

// State returns the current circuit state.
func (b *BreakerBackend) State() gobreaker.State {
	return b.breaker.State()
}
