package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPayload(t *testing.T) {
	encoded := EncodePayload(PaymentKindTopup, string(TopupVideo10), 123456789)
	assert.Equal(t, "topup:video_10:123456789", encoded)

	p, err := DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, Payload{Kind: PaymentKindTopup, ItemID: "video_10", UserID: 123456789}, p)

	for _, bad := range []string{
		"",
		"pass:pass_1d",
		"gift:pass_1d:1",
		"pass::1",
		"pass:pass_1d:abc",
		"pass:pass_1d:-4",
		"pass:pass_1d:1:extra",
	} {
		_, err := DecodePayload(bad)
		assert.ErrorIs(t, err, ErrInvalidPayload, bad)
	}
}

func TestPurchases_OnPaymentSucceeded(t *testing.T) {
	ctx := context.Background()

	newPurchases := func(env *testEnv) *Purchases {
		return NewPurchases(env.ledger, env.passes, env.catalog, zap.NewNop())
	}

	t.Run("pass", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, newPurchases(env).OnPaymentSucceeded(ctx, 1, PaymentKindPass, "pass_30d"))

		pass, err := env.passes.GetActivePass(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, pass)
		assert.Equal(t, PassMonth, pass.Type)
		assert.Equal(t, int64(1500), env.stored(t, 1, ServiceImage))
	})

	t.Run("topup on top of free tier", func(t *testing.T) {
		env := newTestEnv(t)
		assert.Equal(t, int64(5), env.ledger.GetQuota(ctx, 1, ServiceImage))

		require.NoError(t, newPurchases(env).OnPaymentSucceeded(ctx, 1, PaymentKindTopup, "image_50"))
		assert.Equal(t, int64(55), env.stored(t, 1, ServiceImage))
	})

	t.Run("unknown identifiers leave storage untouched", func(t *testing.T) {
		env := newTestEnv(t)
		p := newPurchases(env)

		assert.ErrorIs(t, p.OnPaymentSucceeded(ctx, 1, PaymentKindPass, "pass_0d"), ErrInvalidPassType)
		assert.ErrorIs(t, p.OnPaymentSucceeded(ctx, 1, PaymentKindTopup, "image_7"), ErrInvalidTopupType)
		assert.ErrorIs(t, p.OnPaymentSucceeded(ctx, 1, "refund", "image_10"), ErrInvalidPaymentKind)
		assert.Equal(t, 0, env.store.Len())
	})

	t.Run("storage failure", func(t *testing.T) {
		catalog := DefaultCatalog()
		ledger := NewLedger(brokenStore{}, catalog, nil, zap.NewNop())
		passes := NewPassManager(brokenStore{}, catalog, zap.NewNop())
		p := NewPurchases(ledger, passes, catalog, zap.NewNop())

		assert.ErrorIs(t, p.OnPaymentSucceeded(ctx, 1, PaymentKindTopup, "video_3"), ErrStorageUnavailable)
		assert.ErrorIs(t, p.OnPaymentSucceeded(ctx, 1, PaymentKindPass, "pass_1d"), ErrStorageUnavailable)
	})
}
