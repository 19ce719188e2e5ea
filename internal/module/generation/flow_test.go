package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stylebot/server/internal/adapter/outbound/memory"
	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/infra/task"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (n *recordingNotifier) Notify(_ context.Context, o Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
}

func (n *recordingNotifier) all() []Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Outcome(nil), n.outcomes...)
}

type flowEnv struct {
	store    *memory.CounterStore
	ledger   *billing.Ledger
	tasks    *task.Manager
	notifier *recordingNotifier
	flow     *Flow
}

func newFlowEnv(t *testing.T, backend Backend, rate RateLimit) *flowEnv {
	t.Helper()
	env := &flowEnv{
		store:    memory.NewCounterStore(),
		notifier: &recordingNotifier{},
	}
	catalog := billing.DefaultCatalog()
	env.ledger = billing.NewLedger(env.store, catalog, billing.NewAllowlist([]string{"owner"}), zap.NewNop())
	env.tasks = task.NewManager(task.NewMemoryRepository(), zap.NewNop(), &task.Config{MaxConcurrent: 2}, nil)
	env.flow = NewFlow(FlowDeps{
		Ledger:   env.ledger,
		Policy:   billing.DefaultWarningPolicy(),
		Safe:     billing.NewSafeGenerator(env.ledger, zap.NewNop(), nil),
		Tasks:    env.tasks,
		Backends: map[billing.Service]Backend{billing.ServiceImage: backend},
		Limiter:  memory.NewRateLimiter(),
		Rate:     rate,
		Notifier: env.notifier,
	})
	return env
}

func (e *flowEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.tasks.Stop(ctx))
}

func TestFlow_Start_Success(t *testing.T) {
	ctx := context.Background()
	backend := BackendFunc(func(_ context.Context, req *Request) (string, error) {
		return "https://cdn/" + req.Prompt + ".png", nil
	})
	env := newFlowEnv(t, backend, RateLimit{})

	started, err := env.flow.Start(ctx, StartRequest{UserID: 1, Service: billing.ServiceImage, Prompt: "anime"})
	require.NoError(t, err)
	env.drain(t)

	assert.Equal(t, int64(4), env.ledger.GetQuota(ctx, 1, billing.ServiceImage))

	outcomes := env.notifier.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, started.ID.String(), outcomes[0].TaskID)
	assert.Equal(t, "https://cdn/anime.png", outcomes[0].ResultURL)
	assert.NoError(t, outcomes[0].Err)

	got, err := env.tasks.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, "https://cdn/anime.png", got.Result)
}

func TestFlow_Start_FailureRefunds(t *testing.T) {
	ctx := context.Background()
	backend := BackendFunc(func(context.Context, *Request) (string, error) {
		return "", errors.New("gpu out of memory")
	})
	env := newFlowEnv(t, backend, RateLimit{})

	started, err := env.flow.Start(ctx, StartRequest{UserID: 1, Service: billing.ServiceImage})
	require.NoError(t, err)
	env.drain(t)

	assert.Equal(t, int64(5), env.ledger.GetQuota(ctx, 1, billing.ServiceImage))

	outcomes := env.notifier.all()
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, billing.ErrGenerationFailed)

	got, err := env.tasks.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
}

func TestFlow_Start_QuotaExhausted(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, BackendFunc(func(context.Context, *Request) (string, error) { return "u", nil }), RateLimit{})
	require.NoError(t, env.store.Set(ctx, "quota:image:9", 0, time.Hour))

	_, err := env.flow.Start(ctx, StartRequest{UserID: 9, Service: billing.ServiceImage})
	require.ErrorIs(t, err, ErrQuotaExhausted)

	var exhausted *QuotaExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, billing.VerdictHardBlock, exhausted.Verdict)
	assert.Equal(t, int64(0), exhausted.Remaining)
	env.drain(t)
	assert.Empty(t, env.notifier.all())
}

func TestFlow_Start_UnlimitedIsNeverCharged(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, BackendFunc(func(context.Context, *Request) (string, error) {
		return "", errors.New("down")
	}), RateLimit{})

	_, err := env.flow.Start(ctx, StartRequest{UserID: 1, Identity: "@Owner", Service: billing.ServiceImage})
	require.NoError(t, err)
	env.drain(t)

	assert.Equal(t, 0, env.store.Len())
	require.Len(t, env.notifier.all(), 1)
}

func TestFlow_Start_RateLimited(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, BackendFunc(func(context.Context, *Request) (string, error) { return "u", nil }), RateLimit{Limit: 1, Window: time.Hour})

	_, err := env.flow.Start(ctx, StartRequest{UserID: 1, Service: billing.ServiceImage})
	require.NoError(t, err)
	_, err = env.flow.Start(ctx, StartRequest{UserID: 1, Service: billing.ServiceImage})
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = env.flow.Start(ctx, StartRequest{UserID: 2, Service: billing.ServiceImage})
	assert.NoError(t, err)
	env.drain(t)

	assert.Equal(t, int64(4), env.ledger.GetQuota(ctx, 1, billing.ServiceImage))
}

func TestFlow_Start_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, BackendFunc(func(context.Context, *Request) (string, error) { return "u", nil }), RateLimit{})

	_, err := env.flow.Start(ctx, StartRequest{UserID: 1, Service: "audio"})
	assert.ErrorIs(t, err, billing.ErrInvalidService)

	_, err = env.flow.Start(ctx, StartRequest{UserID: 1, Service: billing.ServiceVideo})
	assert.ErrorIs(t, err, ErrNoBackend)

	env.drain(t)
	assert.Equal(t, 0, env.store.Len())
}

func TestFlow_Check(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t, BackendFunc(func(context.Context, *Request) (string, error) { return "u", nil }), RateLimit{})

	remaining, verdict := env.flow.Check(ctx, 3, billing.ServiceVideo, "")
	assert.Equal(t, int64(1), remaining)
	assert.Equal(t, billing.VerdictGentleWarning, verdict)

	_, verdict = env.flow.Check(ctx, 3, billing.ServiceVideo, "owner")
	assert.Equal(t, billing.VerdictOK, verdict)
}
