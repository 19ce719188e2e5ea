// Package gin exposes the billing core over HTTP: payment webhooks, an
// operator quota endpoint, health and metrics.
package gin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/module/payment"
	"github.com/stylebot/server/internal/port/outbound"
	"github.com/stylebot/server/internal/shared/middleware"
	"github.com/stylebot/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// PaymentHandler applies confirmed payments.
type PaymentHandler interface {
	HandleSucceeded(ctx context.Context, eventID, provider, payload string) (*payment.Purchase, error)
	History(ctx context.Context, userID int64, limit int) ([]*payment.Purchase, error)
}

// StripeParser verifies and decodes Stripe webhook deliveries.
type StripeParser interface {
	Parse(payload []byte, signature string) (*payment.StripePayment, error)
}

// StatusProvider reads account quota snapshots.
type StatusProvider interface {
	Status(ctx context.Context, userID int64, identity string) *billing.AccountStatus
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterDeps holds everything the HTTP surface needs.
type RouterDeps struct {
	Payments   PaymentHandler
	Stripe     StripeParser
	Status     StatusProvider
	Checks     map[string]HealthCheck
	Gatherer   prometheus.Gatherer
	Metrics    *metrics.Metrics
	AdminToken string
	Logger     *zap.Logger

	// Limiter throttles the operator routes per client IP.
	Limiter     outbound.RateLimiterPort
	AdminLimit  int
	AdminWindow time.Duration
}

// NewRouter builds the gin engine.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(deps.Metrics))

	health := &healthHandler{checks: deps.Checks}
	r.GET("/healthz", health.Check)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Payments != nil && deps.Stripe != nil {
		webhooks := &webhookHandler{payments: deps.Payments, stripe: deps.Stripe, logger: logger}
		r.POST("/webhooks/stripe", webhooks.HandleStripe)
	}

	v1 := r.Group("/v1",
		middleware.RateLimitByIP(deps.Limiter, deps.AdminLimit, deps.AdminWindow, logger),
		adminAuth(deps.AdminToken),
	)
	if deps.Status != nil {
		accounts := &accountHandler{status: deps.Status, payments: deps.Payments}
		v1.GET("/users/:id/quota", accounts.GetQuota)
		if deps.Payments != nil {
			v1.GET("/users/:id/purchases", accounts.ListPurchases)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})
	return r
}
