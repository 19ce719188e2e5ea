package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPassManager_Activate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pass, err := env.passes.Activate(ctx, 9, PassWeek)
	require.NoError(t, err)

	assert.Equal(t, int64(9), pass.UserID)
	assert.Equal(t, PassWeek, pass.Type)
	assert.Equal(t, env.now, pass.PurchasedAt)
	assert.Equal(t, env.now.Add(7*24*time.Hour), pass.ExpiresAt)
	assert.Equal(t, int64(300), env.stored(t, 9, ServiceImage))
	assert.Equal(t, int64(30), env.stored(t, 9, ServiceVideo))

	ttl, err := env.store.TTL(ctx, passKey(9))
	require.NoError(t, err)
	assert.Greater(t, ttl, 6*24*time.Hour)

	got, err := env.passes.GetActivePass(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, pass, got)
}

func TestPassManager_Activate_Overwrites(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.True(t, env.ledger.AddTopupQuota(ctx, 1, ServiceImage, 5))

	_, err := env.passes.Activate(ctx, 1, PassDay)
	require.NoError(t, err)

	assert.Equal(t, int64(50), env.stored(t, 1, ServiceImage))
	assert.Equal(t, int64(50), env.ledger.GetQuota(ctx, 1, ServiceImage))
}

func TestPassManager_Activate_ReplacesPreviousPass(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.passes.Activate(ctx, 1, PassMonth)
	require.NoError(t, err)
	_, err = env.passes.Activate(ctx, 1, PassDay)
	require.NoError(t, err)

	got, err := env.passes.GetActivePass(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, PassDay, got.Type)
	assert.Equal(t, int64(5), env.stored(t, 1, ServiceVideo))
}

func TestPassManager_Activate_InvalidType(t *testing.T) {
	env := newTestEnv(t)

	pass, err := env.passes.Activate(context.Background(), 1, PassType("pass_forever"))
	assert.ErrorIs(t, err, ErrInvalidPassType)
	assert.Nil(t, pass)
	assert.Equal(t, 0, env.store.Len())
}

func TestPassManager_Activate_StorageUnavailable(t *testing.T) {
	passes := NewPassManager(brokenStore{}, DefaultCatalog(), zap.NewNop())

	pass, err := passes.Activate(context.Background(), 1, PassDay)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Nil(t, pass)

	_, err = passes.GetActivePass(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestPassManager_GetActivePass(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		env := newTestEnv(t)
		got, err := env.passes.GetActivePass(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("expired pass is evicted", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.passes.Activate(ctx, 1, PassDay)
		require.NoError(t, err)

		env.now = env.now.Add(25 * time.Hour)

		got, err := env.passes.GetActivePass(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, got)

		fields, err := env.store.HGetAll(ctx, passKey(1))
		require.NoError(t, err)
		assert.Empty(t, fields)
	})

	t.Run("still active just before expiry", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.passes.Activate(ctx, 1, PassDay)
		require.NoError(t, err)

		env.now = env.now.Add(24*time.Hour - time.Second)

		got, err := env.passes.GetActivePass(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, time.Second, got.Remaining(env.now))
	})

	t.Run("malformed record is evicted", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.store.HSet(ctx, passKey(1), map[string]string{
			fieldPassType:  "pass_1d",
			fieldExpiresAt: "soon",
		}))

		got, err := env.passes.GetActivePass(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 0, env.store.Len())
	})
}
