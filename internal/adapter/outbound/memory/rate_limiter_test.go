package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the burst", func(t *testing.T) {
		r := NewRateLimiter()
		for i := 0; i < 3; i++ {
			ok, err := r.Allow(ctx, "user:1", 3, time.Hour)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		ok, err := r.Allow(ctx, "user:1", 3, time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		remaining, err := r.GetRemaining(ctx, "user:1", 3, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		r := NewRateLimiter()
		ok, _ := r.Allow(ctx, "user:1", 1, time.Hour)
		assert.True(t, ok)
		ok, _ = r.Allow(ctx, "user:2", 1, time.Hour)
		assert.True(t, ok)
	})

	t.Run("zero limit denies", func(t *testing.T) {
		r := NewRateLimiter()
		ok, err := r.Allow(ctx, "user:1", 0, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
