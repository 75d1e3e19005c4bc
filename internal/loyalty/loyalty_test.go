package loyalty_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimalsupps/storefront/internal/loyalty"
)

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		points int64
		want   loyalty.Tier
	}{
		{0, loyalty.TierBronze},
		{499, loyalty.TierBronze},
		{500, loyalty.TierSilver},
		{1499, loyalty.TierSilver},
		{1500, loyalty.TierGold},
		{4999, loyalty.TierGold},
		{5000, loyalty.TierPlatinum},
		{100000, loyalty.TierPlatinum},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, loyalty.TierFor(tt.points), "points=%d", tt.points)
	}
}

func TestTierMonotonic(t *testing.T) {
	rank := map[loyalty.Tier]int{
		loyalty.TierBronze:   0,
		loyalty.TierSilver:   1,
		loyalty.TierGold:     2,
		loyalty.TierPlatinum: 3,
	}
	prev := loyalty.TierBronze
	for p := int64(0); p <= 6000; p++ {
		cur := loyalty.TierFor(p)
		require.GreaterOrEqual(t, rank[cur], rank[prev], "tier regressed at %d points", p)
		prev = cur
	}
}

func TestPointsForOrder(t *testing.T) {
	tests := []struct {
		name       string
		totalCents int64
		tier       loyalty.Tier
		want       int64
	}{
		{"bronze whole dollars", 10000, loyalty.TierBronze, 100},
		{"gold hundred dollars", 10000, loyalty.TierGold, 150},
		{"platinum doubles", 10000, loyalty.TierPlatinum, 200},
		{"silver floors after multiplier", 500, loyalty.TierSilver, 6},   // floor(5*1.25)
		{"cents floored before multiplier", 199, loyalty.TierPlatinum, 2}, // floor(1.99)=1, 1*2
		{"sub-dollar order", 99, loyalty.TierGold, 0},
		{"zero total", 0, loyalty.TierGold, 0},
		{"negative total", -500, loyalty.TierGold, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, loyalty.PointsForOrder(tt.totalCents, tt.tier))
		})
	}
}

func TestProgress(t *testing.T) {
	p := loyalty.ProgressFor(250)
	require.NotNil(t, p.NextTier)
	assert.Equal(t, loyalty.TierBronze, p.Tier)
	assert.Equal(t, loyalty.TierSilver, *p.NextTier)
	assert.Equal(t, 50, p.Percent)
	assert.Equal(t, int64(250), p.PointsToNext)

	p = loyalty.ProgressFor(1500)
	require.NotNil(t, p.NextTier)
	assert.Equal(t, loyalty.TierGold, p.Tier)
	assert.Equal(t, 0, p.Percent)
	assert.Equal(t, int64(3500), p.PointsToNext)

	p = loyalty.ProgressFor(7500)
	assert.Equal(t, loyalty.TierPlatinum, p.Tier)
	assert.Nil(t, p.NextTier)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, int64(0), p.PointsToNext)
}

func TestMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, loyalty.Multiplier(loyalty.TierBronze))
	assert.Equal(t, 1.25, loyalty.Multiplier(loyalty.TierSilver))
	assert.Equal(t, 1.5, loyalty.Multiplier(loyalty.TierGold))
	assert.Equal(t, 2.0, loyalty.Multiplier(loyalty.TierPlatinum))
}
