package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/infra/task"
	"github.com/stylebot/server/internal/port/outbound"
	"go.uber.org/zap"
)

// Outcome is delivered to the Notifier when a generation finishes.
type Outcome struct {
	TaskID    string
	UserID    int64
	Service   billing.Service
	ResultURL string
	Err       error
}

// Notifier delivers finished generations to the user.
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, outcome Outcome)

func (f NotifierFunc) Notify(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}

// LogNotifier logs outcomes. Used when no chat transport is attached.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, o Outcome) {
	if o.Err != nil {
		n.Logger.Info("generation failed", zap.String("task_id", o.TaskID), zap.Int64("user_id", o.UserID), zap.Error(o.Err))
		return
	}
	n.Logger.Info("generation ready", zap.String("task_id", o.TaskID), zap.Int64("user_id", o.UserID), zap.String("url", o.ResultURL))
}

// RateLimit bounds how often one user may start generations.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// StartRequest is what the chat layer asks for.
type StartRequest struct {
	UserID    int64
	Identity  string
	Service   billing.Service
	Prompt    string
	Style     string
	SourceURL string
}

const (
	inputPrompt    = "prompt"
	inputStyle     = "style"
	inputSourceURL = "source_url"
	inputCharged   = "charged"
)

// Flow is the chat-layer entry point: it checks and spends quota, then runs
// the generation in the background with a refund guarantee.
type Flow struct {
	ledger   *billing.Ledger
	policy   billing.WarningPolicy
	safe     *billing.SafeGenerator
	tasks    *task.Manager
	backends map[billing.Service]Backend
	limiter  outbound.RateLimiterPort
	rate     RateLimit
	notifier Notifier
	logger   *zap.Logger
}

// FlowDeps groups the collaborators of a Flow.
type FlowDeps struct {
	Ledger   *billing.Ledger
	Policy   billing.WarningPolicy
	Safe     *billing.SafeGenerator
	Tasks    *task.Manager
	Backends map[billing.Service]Backend
	Limiter  outbound.RateLimiterPort
	Rate     RateLimit
	Notifier Notifier
	Logger   *zap.Logger
}

// NewFlow creates a Flow and registers one task executor per service.
func NewFlow(deps FlowDeps) *Flow {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	f := &Flow{
		ledger:   deps.Ledger,
		policy:   deps.Policy,
		safe:     deps.Safe,
		tasks:    deps.Tasks,
		backends: deps.Backends,
		limiter:  deps.Limiter,
		rate:     deps.Rate,
		notifier: notifier,
		logger:   logger.Named("generation"),
	}
	for _, service := range billing.Services {
		f.tasks.RegisterExecutor(service.String(), f.execute)
	}
	return f
}

// Check returns the remaining quota and what to show the user.
func (f *Flow) Check(ctx context.Context, userID int64, service billing.Service, identity string) (int64, billing.Verdict) {
	remaining := f.ledger.GetQuota(ctx, userID, service)
	return remaining, f.policy.Classify(remaining, f.ledger.IsUnlimited(identity))
}

// Start spends one unit of quota and queues the generation. It returns a
// *QuotaExhaustedError when the user cannot pay.
func (f *Flow) Start(ctx context.Context, req StartRequest) (*task.Task, error) {
	if !req.Service.Valid() {
		return nil, fmt.Errorf("%w: %q", billing.ErrInvalidService, req.Service)
	}
	if _, ok := f.backends[req.Service]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, req.Service)
	}

	if err := f.checkRate(ctx, req.UserID); err != nil {
		return nil, err
	}

	if !f.ledger.HasQuota(ctx, req.UserID, req.Service, 1, req.Identity) {
		return nil, f.exhausted(ctx, req)
	}
	if !f.ledger.Consume(ctx, req.UserID, req.Service, 1, req.Identity) {
		return nil, f.exhausted(ctx, req)
	}
	charged := !f.ledger.IsUnlimited(req.Identity)

	t, err := f.tasks.Submit(ctx, req.UserID, &task.SubmitRequest{
		Kind: req.Service.String(),
		Input: map[string]any{
			inputPrompt:    req.Prompt,
			inputStyle:     req.Style,
			inputSourceURL: req.SourceURL,
			inputCharged:   charged,
		},
	})
	if err != nil {
		if charged {
			f.ledger.Refund(context.WithoutCancel(ctx), req.UserID, req.Service, 1)
		}
		return nil, fmt.Errorf("submit generation: %w", err)
	}

	f.logger.Info("generation started",
		zap.String("task_id", t.ID.String()),
		zap.Int64("user_id", req.UserID),
		zap.String("service", req.Service.String()))
	return t, nil
}

func (f *Flow) checkRate(ctx context.Context, userID int64) error {
	if f.limiter == nil || f.rate.Limit <= 0 {
		return nil
	}
	key := fmt.Sprintf("generation:%d", userID)
	allowed, err := f.limiter.Allow(ctx, key, f.rate.Limit, f.rate.Window)
	if err != nil {
		// The ledger still guards spending.
		f.logger.Warn("rate limiter unavailable", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

func (f *Flow) exhausted(ctx context.Context, req StartRequest) error {
	remaining, verdict := f.Check(ctx, req.UserID, req.Service, req.Identity)
	return &QuotaExhaustedError{Service: req.Service, Remaining: remaining, Verdict: verdict}
}

// execute runs inside the task manager.
func (f *Flow) execute(ctx context.Context, t *task.Task) (string, error) {
	service, err := billing.ParseService(t.Kind)
	if err != nil {
		return "", err
	}
	req := &Request{
		UserID:    t.UserID,
		Service:   service,
		Prompt:    inputString(t.Input, inputPrompt),
		Style:     inputString(t.Input, inputStyle),
		SourceURL: inputString(t.Input, inputSourceURL),
	}
	generate := func(ctx context.Context) (string, error) {
		backend, ok := f.backends[service]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrNoBackend, service)
		}
		return backend.Generate(ctx, req)
	}

	var url string
	if charged, _ := t.Input[inputCharged].(bool); charged {
		var delivered bool
		if url, delivered = f.safe.Run(ctx, t.UserID, service, generate); !delivered {
			err = billing.ErrGenerationFailed
		}
	} else if url, err = generate(ctx); err == nil && url == "" {
		err = ErrEmptyResult
	}
	if err != nil && !errors.Is(err, billing.ErrGenerationFailed) {
		err = fmt.Errorf("%w: %w", billing.ErrGenerationFailed, err)
	}

	f.notifier.Notify(context.WithoutCancel(ctx), Outcome{
		TaskID:    t.ID.String(),
		UserID:    t.UserID,
		Service:   service,
		ResultURL: url,
		Err:       err,
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func inputString(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}
