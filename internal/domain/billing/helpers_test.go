package billing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stylebot/server/internal/adapter/outbound/memory"
	"github.com/stylebot/server/internal/port/outbound"
	"go.uber.org/zap"
)

type testEnv struct {
	store   *memory.CounterStore
	catalog *Catalog
	ledger  *Ledger
	passes  *PassManager
	now     time.Time
}

func newTestEnv(t *testing.T, unlimited ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   memory.NewCounterStore(),
		catalog: DefaultCatalog(),
		now:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := WithClock(func() time.Time { return env.now })
	env.ledger = NewLedger(env.store, env.catalog, NewAllowlist(unlimited), zap.NewNop(), WithMaxRetries(100))
	env.passes = NewPassManager(env.store, env.catalog, zap.NewNop(), clock)
	return env
}

func (e *testEnv) stored(t *testing.T, userID int64, service Service) int64 {
	t.Helper()
	v, err := e.store.Get(context.Background(), quotaKey(userID, service))
	require.NoError(t, err)
	return v
}

func (e *testEnv) setQuota(t *testing.T, userID int64, service Service, value int64) {
	t.Helper()
	require.NoError(t, e.store.Set(context.Background(), quotaKey(userID, service), value, time.Hour))
}

var errStoreDown = errors.New("connection refused")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (int64, error) { return 0, errStoreDown }
func (brokenStore) SetNX(context.Context, string, int64, time.Duration) (bool, error) {
	return false, errStoreDown
}
func (brokenStore) Set(context.Context, string, int64, time.Duration) error { return errStoreDown }
func (brokenStore) IncrBy(context.Context, string, int64) (int64, error)   { return 0, errStoreDown }
func (brokenStore) DecrBy(context.Context, string, int64) (int64, error)   { return 0, errStoreDown }
func (brokenStore) TTL(context.Context, string) (time.Duration, error)     { return 0, errStoreDown }
func (brokenStore) HSet(context.Context, string, map[string]string) error  { return errStoreDown }
func (brokenStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, errStoreDown
}
func (brokenStore) Expire(context.Context, string, time.Duration) error { return errStoreDown }
func (brokenStore) Del(context.Context, ...string) error                { return errStoreDown }
func (brokenStore) Batch(context.Context, ...outbound.Op) error          { return errStoreDown }
func (brokenStore) Watch(context.Context, func(outbound.CounterTx) error, ...string) error {
	return errStoreDown
}

// contendedStore reports a conflict on every transaction.
type contendedStore struct {
	*memory.CounterStore
	watches atomic.Int32
}

func (s *contendedStore) Watch(context.Context, func(outbound.CounterTx) error, ...string) error {
	s.watches.Add(1)
	return outbound.ErrWatchConflict
}
