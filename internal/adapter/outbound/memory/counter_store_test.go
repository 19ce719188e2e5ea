package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stylebot/server/internal/port/outbound"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCounterStore_Counters(t *testing.T) {
	ctx := context.Background()

	t.Run("Get on missing key returns ErrCacheMiss", func(t *testing.T) {
		s := NewCounterStore()
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, outbound.ErrCacheMiss)
	})

	t.Run("SetNX only sets once", func(t *testing.T) {
		s := NewCounterStore()
		ok, err := s.SetNX(ctx, "k", 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetNX(ctx, "k", 9, time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, int64(5), v)
	})

	t.Run("IncrBy and DecrBy preserve TTL", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s := NewCounterStore()
		s.SetClock(clock.Now)

		require.NoError(t, s.Set(ctx, "k", 10, time.Hour))
		clock.Advance(10 * time.Minute)

		v, err := s.IncrBy(ctx, "k", 3)
		require.NoError(t, err)
		assert.Equal(t, int64(13), v)

		v, err = s.DecrBy(ctx, "k", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(9), v)

		ttl, err := s.TTL(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 50*time.Minute, ttl)
	})

	t.Run("keys expire", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s := NewCounterStore()
		s.SetClock(clock.Now)

		require.NoError(t, s.Set(ctx, "k", 1, time.Minute))
		clock.Advance(time.Minute)

		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, outbound.ErrCacheMiss)
		assert.Equal(t, 0, s.Len())
	})
}

func TestCounterStore_Hashes(t *testing.T) {
	ctx := context.Background()
	s := NewCounterStore()

	fields, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, fields)

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1"}))
	require.NoError(t, s.HSet(ctx, "h", map[string]string{"b": "2"}))

	fields, err = s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, fields)

	require.NoError(t, s.Del(ctx, "h"))
	fields, err = s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestCounterStore_Batch(t *testing.T) {
	ctx := context.Background()
	s := NewCounterStore()

	err := s.Batch(ctx,
		outbound.HSetOp("pass:1", map[string]string{"pass_type": "pass_1d"}),
		outbound.ExpireOp("pass:1", time.Hour),
		outbound.SetOp("quota:image:1", 50, time.Hour),
	)
	require.NoError(t, err)

	v, err := s.Get(ctx, "quota:image:1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)

	t.Run("invalid op leaves nothing applied", func(t *testing.T) {
		err := s.Batch(ctx,
			outbound.SetOp("quota:video:1", 7, time.Hour),
			outbound.IncrByOp("pass:1", 1),
		)
		assert.Error(t, err)
		_, err = s.Get(ctx, "quota:video:1")
		assert.ErrorIs(t, err, outbound.ErrCacheMiss)
	})
}

func TestCounterStore_Watch(t *testing.T) {
	ctx := context.Background()

	t.Run("commit succeeds without interference", func(t *testing.T) {
		s := NewCounterStore()
		require.NoError(t, s.Set(ctx, "k", 2, time.Hour))

		err := s.Watch(ctx, func(tx outbound.CounterTx) error {
			v, err := tx.Get(ctx, "k")
			if err != nil {
				return err
			}
			return tx.Exec(ctx, outbound.SetOp("k", v*10, time.Hour))
		}, "k")
		require.NoError(t, err)

		v, _ := s.Get(ctx, "k")
		assert.Equal(t, int64(20), v)
	})

	t.Run("concurrent write causes conflict", func(t *testing.T) {
		s := NewCounterStore()
		require.NoError(t, s.Set(ctx, "k", 1, time.Hour))

		err := s.Watch(ctx, func(tx outbound.CounterTx) error {
			_, err := tx.Get(ctx, "k")
			require.NoError(t, err)
			_, _ = s.DecrBy(ctx, "k", 1)
			return tx.Exec(ctx, outbound.DecrByOp("k", 1))
		}, "k")
		assert.ErrorIs(t, err, outbound.ErrWatchConflict)

		v, _ := s.Get(ctx, "k")
		assert.Equal(t, int64(0), v)
	})

	t.Run("retry loop never overspends", func(t *testing.T) {
		s := NewCounterStore()
		require.NoError(t, s.Set(ctx, "k", 10, time.Hour))

		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					err := s.Watch(ctx, func(tx outbound.CounterTx) error {
						v, err := tx.Get(ctx, "k")
						if err != nil {
							return err
						}
						if v < 1 {
							return errInsufficient
						}
						return tx.Exec(ctx, outbound.DecrByOp("k", 1))
					}, "k")
					if errors.Is(err, outbound.ErrWatchConflict) {
						continue
					}
					if err == nil {
						wins.Add(1)
					}
					return
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(10), wins.Load())
		v, _ := s.Get(ctx, "k")
		assert.Equal(t, int64(0), v)
	})
}

var errInsufficient = errors.New("insufficient")
