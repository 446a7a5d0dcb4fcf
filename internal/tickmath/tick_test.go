package tickmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSqrtRatioAtTickKnownValues(t *testing.T) {
	// Tick zero is exactly 2^96.
	ratio, err := GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	require.Equal(t, 0, ratio.Cmp(Q96))

	minRatio, err := GetSqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	require.Equal(t, 0, minRatio.Cmp(MinSqrtRatio))

	maxRatio, err := GetSqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	require.Equal(t, 0, maxRatio.Cmp(MaxSqrtRatio))
}

func TestGetSqrtRatioAtTickBounds(t *testing.T) {
	_, err := GetSqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTickOutOfBounds)
	_, err = GetSqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTickOutOfBounds)
}

func TestGetSqrtRatioAtTickMonotonic(t *testing.T) {
	ticks := []int64{-887272, -100000, -82763, -60, -1, 0, 1, 60, 82763, 100000, 887272}
	var prev *big.Int
	for _, tick := range ticks {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		if prev != nil {
			require.Equal(t, 1, ratio.Cmp(prev), "ratio must strictly increase with tick (tick=%d)", tick)
		}
		prev = ratio
	}
}

func TestTickSqrtRatioRoundTrip(t *testing.T) {
	for _, tick := range []int64{-887272, -82763, -82800, -1, 0, 1, 193380, 887271} {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		back, err := GetTickAtSqrtRatio(ratio)
		require.NoError(t, err)
		require.Equal(t, tick, back)
	}
}

func TestGetTickAtSqrtRatioBounds(t *testing.T) {
	_, err := GetTickAtSqrtRatio(new(big.Int).Sub(MinSqrtRatio, big.NewInt(1)))
	require.ErrorIs(t, err, ErrSqrtPriceOutOfBounds)
	// The max ratio itself is excluded.
	_, err = GetTickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrSqrtPriceOutOfBounds)
}

func TestRoundToSpacingFloors(t *testing.T) {
	require.Equal(t, int64(-82800), RoundToSpacing(-82763, 60))
	require.Equal(t, int64(120), RoundToSpacing(121, 60))
	require.Equal(t, int64(-180), RoundToSpacing(-121, 60))
	require.Equal(t, int64(0), RoundToSpacing(59, 60))
	require.Equal(t, int64(-60), RoundToSpacing(-1, 60))
	require.Equal(t, int64(60), RoundToSpacing(60, 60))
}

func TestRoundToSpacingProperty(t *testing.T) {
	for _, tick := range []int64{-887272, -82763, -61, -60, -59, -1, 0, 1, 59, 60, 61, 82763} {
		for _, spacing := range []int64{1, 10, 60, 200} {
			rounded := RoundToSpacing(tick, spacing)
			require.LessOrEqual(t, rounded, tick)
			require.Greater(t, rounded+spacing, tick)
			require.Zero(t, rounded%spacing)
		}
	}
}

func TestIsRangeValid(t *testing.T) {
	for _, width := range []int64{120, 180, 240, 300, 360} {
		require.True(t, IsRangeValid(width, 60), "width %d", width)
	}
	for _, width := range []int64{0, 30, 60, 121, 160} {
		require.False(t, IsRangeValid(width, 60), "width %d", width)
	}
	require.False(t, IsRangeValid(120, 0))
	require.False(t, IsRangeValid(-120, 60))
}

func TestComputeDesiredRange(t *testing.T) {
	lower, upper, err := ComputeDesiredRange(-82763, 60, 600)
	require.NoError(t, err)
	require.Equal(t, int64(-83100), lower)
	require.Equal(t, int64(-82500), upper)

	lower, upper, err = ComputeDesiredRange(-82763, 60, 1200)
	require.NoError(t, err)
	require.Equal(t, int64(-83400), lower)
	require.Equal(t, int64(-82200), upper)
}

func TestComputeDesiredRangeOddWidth(t *testing.T) {
	// Odd width truncates the half-width, narrowing the span by one tick.
	lower, upper, err := ComputeDesiredRange(100, 1, 5)
	require.NoError(t, err)
	require.Equal(t, int64(98), lower)
	require.Equal(t, int64(102), upper)
	require.Equal(t, int64(4), upper-lower)
}

func TestComputeDesiredRangeOutOfBounds(t *testing.T) {
	_, _, err := ComputeDesiredRange(MaxTick-10, 1, 600)
	require.ErrorIs(t, err, ErrRangeOutOfBounds)
	_, _, err = ComputeDesiredRange(MinTick+10, 1, 600)
	require.ErrorIs(t, err, ErrRangeOutOfBounds)
}
