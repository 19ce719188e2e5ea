package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusReader_Status(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "boss")
	reader := NewStatusReader(env.ledger, env.passes, DefaultWarningPolicy(), zap.NewNop())

	t.Run("new user", func(t *testing.T) {
		st := reader.Status(ctx, 1, "newbie")
		assert.False(t, st.Unlimited)
		assert.Nil(t, st.Pass)
		require.Len(t, st.Services, 2)
		assert.Equal(t, ServiceStatus{Service: ServiceImage, Remaining: 5, Verdict: VerdictOK}, st.Services[0])
		assert.Equal(t, ServiceStatus{Service: ServiceVideo, Remaining: 1, Verdict: VerdictGentleWarning}, st.Services[1])
	})

	t.Run("with pass", func(t *testing.T) {
		_, err := env.passes.Activate(ctx, 2, PassDay)
		require.NoError(t, err)

		st := reader.Status(ctx, 2, "")
		require.NotNil(t, st.Pass)
		assert.Equal(t, PassDay, st.Pass.Type)
		assert.Equal(t, int64(50), st.Remaining(ServiceImage))
		assert.Equal(t, int64(5), st.Remaining(ServiceVideo))
	})

	t.Run("unlimited", func(t *testing.T) {
		env.setQuota(t, 3, ServiceVideo, 0)
		remaining, verdict := reader.Classify(ctx, 3, ServiceVideo, "@boss")
		assert.Equal(t, int64(0), remaining)
		assert.Equal(t, VerdictOK, verdict)
		assert.True(t, reader.Status(ctx, 3, "boss").Unlimited)
	})
}
