package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ginadapter "github.com/stylebot/server/internal/adapter/inbound/gin"
	"github.com/stylebot/server/internal/adapter/outbound/memory"
	redisadapter "github.com/stylebot/server/internal/adapter/outbound/redis"
	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/infra/config"
	"github.com/stylebot/server/internal/infra/httpclient"
	"github.com/stylebot/server/internal/infra/persistence"
	"github.com/stylebot/server/internal/infra/task"
	"github.com/stylebot/server/internal/module/generation"
	"github.com/stylebot/server/internal/module/payment"
	"github.com/stylebot/server/internal/port/outbound"
	"github.com/stylebot/server/internal/shared/database"
	"github.com/stylebot/server/internal/shared/logger"
	"github.com/stylebot/server/internal/utils/metrics"
)

// Store drivers.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideRedisClient,
	ProvideCounterStore,
	ProvideRateLimiter,
	ProvideDatabase,
	ProvideHTTPClient,
)

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func()) {
	l := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return l, func() { _ = l.Sync() }
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the application metrics.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New("stylebot", reg)
}

// ProvideRedisClient connects to Redis unless the memory store is selected.
func ProvideRedisClient(cfg *config.Config, log *zap.Logger) (goredis.UniversalClient, func(), error) {
	if strings.EqualFold(cfg.Store.Driver, StoreMemory) {
		log.Warn("using in-memory quota store, balances are lost on restart")
		return nil, func() {}, nil
	}
	client, err := redisadapter.NewClient(&cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCounterStore selects the quota store.
func ProvideCounterStore(client goredis.UniversalClient) outbound.CounterStore {
	if client == nil {
		return memory.NewCounterStore()
	}
	return redisadapter.NewCounterStore(client)
}

// ProvideRateLimiter selects the generation rate limiter.
func ProvideRateLimiter(client goredis.UniversalClient) outbound.RateLimiterPort {
	if client == nil {
		return memory.NewRateLimiter()
	}
	return redisadapter.NewRateLimiter(client)
}

// ProvideDatabase opens and migrates the history database. It returns nil
// when no database is configured.
func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	if !cfg.Database.Enabled() {
		log.Info("database not configured, keeping purchase and task history in memory")
		return nil, func() {}, nil
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := persistence.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return db, func() { _ = database.Close(db) }, nil
}

// ProvideHTTPClient creates the shared HTTP client for generation backends.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ===== Billing Providers =====

// BillingSet provides the quota core.
var BillingSet = wire.NewSet(
	ProvideCatalog,
	ProvideWarningPolicy,
	ProvideAllowlist,
	ProvideBillingOptions,
	ProvideLedger,
	ProvidePassManager,
	ProvidePurchases,
	ProvideSafeGenerator,
	ProvideStatusReader,
)

// ProvideCatalog builds the catalog from config.
func ProvideCatalog(cfg *config.Config) (*billing.Catalog, error) {
	return NewCatalog(cfg.Billing)
}

// ProvideWarningPolicy builds the warning policy from config.
func ProvideWarningPolicy(cfg *config.Config) (billing.WarningPolicy, error) {
	return NewWarningPolicy(cfg.Billing)
}

// ProvideAllowlist builds the unlimited allowlist.
func ProvideAllowlist(cfg *config.Config, log *zap.Logger) *billing.Allowlist {
	a := billing.NewAllowlist(cfg.Billing.UnlimitedUsers)
	if a.Len() > 0 {
		log.Info("unlimited allowlist loaded", zap.Int("handles", a.Len()))
	}
	return a
}

// ProvideBillingOptions collects ledger tuning.
func ProvideBillingOptions(cfg *config.Config, m *metrics.Metrics) []billing.Option {
	opts := []billing.Option{billing.WithMetrics(m)}
	if cfg.Billing.MaxRetries > 0 {
		opts = append(opts, billing.WithMaxRetries(cfg.Billing.MaxRetries))
	}
	if cfg.Billing.OpTimeout > 0 {
		opts = append(opts, billing.WithOpTimeout(cfg.Billing.OpTimeout))
	}
	return opts
}

// ProvideLedger creates the quota ledger.
func ProvideLedger(store outbound.CounterStore, catalog *billing.Catalog, allowlist *billing.Allowlist, log *zap.Logger, opts []billing.Option) *billing.Ledger {
	return billing.NewLedger(store, catalog, allowlist, log, opts...)
}

// ProvidePassManager creates the pass manager.
func ProvidePassManager(store outbound.CounterStore, catalog *billing.Catalog, log *zap.Logger, opts []billing.Option) *billing.PassManager {
	return billing.NewPassManager(store, catalog, log, opts...)
}

// ProvidePurchases creates the payment dispatcher.
func ProvidePurchases(ledger *billing.Ledger, passes *billing.PassManager, catalog *billing.Catalog, log *zap.Logger, opts []billing.Option) *billing.Purchases {
	return billing.NewPurchases(ledger, passes, catalog, log, opts...)
}

// ProvideSafeGenerator creates the refund-on-failure wrapper.
func ProvideSafeGenerator(ledger *billing.Ledger, log *zap.Logger, m *metrics.Metrics) *billing.SafeGenerator {
	return billing.NewSafeGenerator(ledger, log, m)
}

// ProvideStatusReader creates the account status reader.
func ProvideStatusReader(ledger *billing.Ledger, passes *billing.PassManager, policy billing.WarningPolicy, log *zap.Logger) *billing.StatusReader {
	return billing.NewStatusReader(ledger, passes, policy, log)
}

// ===== Payment Providers =====

// PaymentSet provides payment processing.
var PaymentSet = wire.NewSet(
	ProvidePurchaseRepository,
	ProvidePaymentService,
	ProvideStripeVerifier,
)

// ProvidePurchaseRepository selects gorm or in-memory purchase storage.
func ProvidePurchaseRepository(db *gorm.DB) payment.Repository {
	if db == nil {
		return payment.NewMemoryRepository()
	}
	return payment.NewRepository(db)
}

// ProvidePaymentService creates the payment service.
func ProvidePaymentService(repo payment.Repository, purchases *billing.Purchases, log *zap.Logger, m *metrics.Metrics) *payment.Service {
	return payment.NewService(repo, purchases, log, m)
}

// ProvideStripeVerifier creates the Stripe webhook verifier, or nil when no
// signing secret is configured.
func ProvideStripeVerifier(cfg *config.Config, log *zap.Logger) *payment.StripeVerifier {
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn("stripe webhook secret not set, /webhooks/stripe disabled")
		return nil
	}
	return payment.NewStripeVerifier(cfg.Stripe.WebhookSecret)
}

// ===== Generation Providers =====

// GenerationSet provides backends, the task manager and the flow.
var GenerationSet = wire.NewSet(
	ProvideTaskRepository,
	ProvideTaskManager,
	ProvideBackends,
	ProvideNotifier,
	ProvideFlow,
)

// ProvideTaskRepository selects gorm or in-memory task storage.
func ProvideTaskRepository(db *gorm.DB) task.Repository {
	if db == nil {
		return task.NewMemoryRepository()
	}
	return task.NewRepository(db)
}

// ProvideTaskManager creates the background task manager.
func ProvideTaskManager(repo task.Repository, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *task.Manager {
	return task.NewManager(repo, log, &task.Config{MaxConcurrent: cfg.Generation.MaxConcurrentTasks}, m)
}

// ProvideBackends creates one breaker-guarded backend per configured service.
func ProvideBackends(cfg *config.Config, client *http.Client, log *zap.Logger) map[billing.Service]generation.Backend {
	backends := make(map[billing.Service]generation.Backend, len(billing.Services))
	for service, bc := range map[billing.Service]config.BackendConfig{
		billing.ServiceImage: cfg.Generation.Image,
		billing.ServiceVideo: cfg.Generation.Video,
	} {
		if bc.Endpoint == "" {
			log.Warn("generation backend not configured", zap.String("service", service.String()))
			continue
		}
		backends[service] = generation.NewBreakerBackend(
			generation.NewHTTPBackend(client, bc),
			generation.BreakerConfig{
				Name:             fmt.Sprintf("%s-backend", service),
				FailureThreshold: cfg.Generation.FailureThreshold,
				Timeout:          cfg.Generation.CircuitTimeout,
			},
			log,
		)
	}
	return backends
}

// ProvideNotifier returns the outcome sink. Without a chat transport,
// outcomes are logged.
func ProvideNotifier(log *zap.Logger) generation.Notifier {
	return generation.LogNotifier{Logger: log.Named("outcome")}
}

// ProvideFlow creates the generation flow.
func ProvideFlow(
	cfg *config.Config,
	ledger *billing.Ledger,
	policy billing.WarningPolicy,
	safe *billing.SafeGenerator,
	tasks *task.Manager,
	backends map[billing.Service]generation.Backend,
	limiter outbound.RateLimiterPort,
	notifier generation.Notifier,
	log *zap.Logger,
) *generation.Flow {
	return generation.NewFlow(generation.FlowDeps{
		Ledger:   ledger,
		Policy:   policy,
		Safe:     safe,
		Tasks:    tasks,
		Backends: backends,
		Limiter:  limiter,
		Rate:     generation.RateLimit{Limit: cfg.Generation.RateLimit, Window: cfg.Generation.RateWindow},
		Notifier: notifier,
		Logger:   log,
	})
}

// ===== HTTP Providers =====

// HTTPSet provides the gin router.
var HTTPSet = wire.NewSet(
	ProvideHealthChecks,
	ProvideRouter,
)

// ProvideHealthChecks builds the dependency checks behind /healthz.
func ProvideHealthChecks(client goredis.UniversalClient, db *gorm.DB) map[string]ginadapter.HealthCheck {
	checks := make(map[string]ginadapter.HealthCheck)
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	if db != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	return checks
}

// ProvideRouter builds the HTTP surface.
func ProvideRouter(
	cfg *config.Config,
	payments *payment.Service,
	stripe *payment.StripeVerifier,
	status *billing.StatusReader,
	checks map[string]ginadapter.HealthCheck,
	limiter outbound.RateLimiterPort,
	reg *prometheus.Registry,
	m *metrics.Metrics,
	log *zap.Logger,
) *gin.Engine {
	deps := ginadapter.RouterDeps{
		Payments:    payments,
		Status:      status,
		Checks:      checks,
		Gatherer:    reg,
		Metrics:     m,
		AdminToken:  cfg.Server.AdminToken,
		Logger:      log,
		Limiter:     limiter,
		AdminLimit:  cfg.Server.AdminRateLimit,
		AdminWindow: cfg.Server.AdminRateWindow,
	}
	if stripe != nil {
		deps.Stripe = stripe
	}
	return ginadapter.NewRouter(deps)
}
