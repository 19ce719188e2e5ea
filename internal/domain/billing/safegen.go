package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stylebot/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// GenerateFunc produces a result reference (URL or file id).
type GenerateFunc func(ctx context.Context) (string, error)

// Refunder returns consumed credit.
type Refunder interface {
	Refund(ctx context.Context, userID int64, service Service, amount int64) bool
}

// SafeGenerator runs a generation for credit that has already been consumed
// and refunds exactly one unit if it does not produce a result.
type SafeGenerator struct {
	refunder Refunder
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewSafeGenerator creates a SafeGenerator.
func NewSafeGenerator(refunder Refunder, logger *zap.Logger, m *metrics.Metrics) *SafeGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafeGenerator{refunder: refunder, logger: logger.Named("safegen"), metrics: m}
}

// Run calls fn. An error, a panic or an empty result count as failure and
// trigger a refund that outlives cancellation of ctx.
func (g *SafeGenerator) Run(ctx context.Context, userID int64, service Service, fn GenerateFunc) (string, bool) {
	start := time.Now()
	result, status, err := g.invoke(ctx, fn)
	g.metrics.RecordGeneration(service.String(), status, time.Since(start))

	if err == nil {
		return result, true
	}

	g.logger.Warn("generation failed, refunding",
		zap.Int64("user_id", userID),
		zap.String("service", service.String()),
		zap.String("status", status),
		zap.Error(err))

	if !g.refunder.Refund(context.WithoutCancel(ctx), userID, service, 1) {
		g.logger.Error("refund failed, credit lost",
			zap.Int64("user_id", userID),
			zap.String("service", service.String()))
	}
	return "", false
}

func (g *SafeGenerator) invoke(ctx context.Context, fn GenerateFunc) (result, status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, status = "", "panic"
			err = fmt.Errorf("%w: panic: %v", ErrGenerationFailed, r)
		}
	}()

	result, err = fn(ctx)
	switch {
	case err != nil:
		return "", "error", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	case strings.TrimSpace(result) == "":
		return "", "empty", fmt.Errorf("%w: empty result", ErrGenerationFailed)
	}
	return result, "success", nil
}
