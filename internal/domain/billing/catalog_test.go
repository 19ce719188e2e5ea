package billing

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	for _, pt := range PassTypes {
		offer, err := c.Pass(pt)
		require.NoError(t, err, pt)
		assert.Positive(t, offer.Duration)
	}
	for _, tt := range TopupTypes {
		offer, err := c.Topup(tt)
		require.NoError(t, err, tt)
		assert.True(t, offer.Service.Valid())
	}

	day, _ := c.Pass(PassDay)
	assert.Equal(t, int64(50), day.ImageQuota)
	assert.Equal(t, int64(5), c.FreeTier.Daily(ServiceImage))
	assert.Equal(t, int64(1), c.FreeTier.Daily(ServiceVideo))

	_, err := c.Pass("pass_365d")
	assert.ErrorIs(t, err, ErrInvalidPassType)
	_, err = c.Topup("image_1000")
	assert.ErrorIs(t, err, ErrInvalidTopupType)
}

func TestNewCatalog_Validation(t *testing.T) {
	base := DefaultCatalog()
	free := base.FreeTier

	withPass := func(edit func(map[PassType]PassOffer)) map[PassType]PassOffer {
		m := maps.Clone(base.Passes)
		edit(m)
		return m
	}
	withTopup := func(edit func(map[TopupType]TopupOffer)) map[TopupType]TopupOffer {
		m := maps.Clone(base.Topups)
		edit(m)
		return m
	}

	tests := []struct {
		name   string
		free   FreeTier
		topExp time.Duration
		passes map[PassType]PassOffer
		topups map[TopupType]TopupOffer
	}{
		{
			name: "missing pass", free: free, topExp: time.Hour, topups: base.Topups,
			passes: withPass(func(m map[PassType]PassOffer) { delete(m, PassWeek) }),
		},
		{
			name: "unknown pass", free: free, topExp: time.Hour, topups: base.Topups,
			passes: withPass(func(m map[PassType]PassOffer) { m["pass_2d"] = PassOffer{Duration: time.Hour} }),
		},
		{
			name: "zero duration", free: free, topExp: time.Hour, topups: base.Topups,
			passes: withPass(func(m map[PassType]PassOffer) { m[PassDay] = PassOffer{ImageQuota: 1} }),
		},
		{
			name: "unknown topup service", free: free, topExp: time.Hour, passes: base.Passes,
			topups: withTopup(func(m map[TopupType]TopupOffer) { m[TopupImage10] = TopupOffer{Service: "audio", QuotaAmount: 1} }),
		},
		{
			name: "zero topup amount", free: free, topExp: time.Hour, passes: base.Passes,
			topups: withTopup(func(m map[TopupType]TopupOffer) { m[TopupVideo3] = TopupOffer{Service: ServiceVideo} }),
		},
		{
			name: "negative free tier", free: FreeTier{ImageDaily: -1, Expiration: time.Hour}, topExp: time.Hour,
			passes: base.Passes, topups: base.Topups,
		},
		{
			name: "zero topup expiration", free: free, passes: base.Passes, topups: base.Topups,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCatalog(tt.free, tt.topExp, tt.passes, tt.topups)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
			assert.Nil(t, c)
		})
	}
}

func TestNewCatalog_CopiesInput(t *testing.T) {
	base := DefaultCatalog()
	passes := maps.Clone(base.Passes)

	c, err := NewCatalog(base.FreeTier, base.TopupExpiration, passes, base.Topups)
	require.NoError(t, err)

	passes[PassDay] = PassOffer{ImageQuota: 1, Duration: time.Minute}
	day, err := c.Pass(PassDay)
	require.NoError(t, err)
	assert.Equal(t, int64(50), day.ImageQuota)
}
