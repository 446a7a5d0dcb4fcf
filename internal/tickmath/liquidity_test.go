package tickmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestAmountsForLiquiditySides(t *testing.T) {
	sqrtA, err := GetSqrtRatioAtTick(-600)
	require.NoError(t, err)
	sqrtB, err := GetSqrtRatioAtTick(600)
	require.NoError(t, err)
	liquidity := sdkmath.NewInt(1_000_000_000)

	// Price below the range: position is entirely asset0.
	below, _ := GetSqrtRatioAtTick(-1200)
	a0, a1 := AmountsForLiquidity(below, sqrtA, sqrtB, liquidity)
	require.True(t, a0.IsPositive())
	require.True(t, a1.IsZero())

	// Price above the range: entirely asset1.
	above, _ := GetSqrtRatioAtTick(1200)
	a0, a1 = AmountsForLiquidity(above, sqrtA, sqrtB, liquidity)
	require.True(t, a0.IsZero())
	require.True(t, a1.IsPositive())

	// Price at the exact center of a symmetric range: both sides populated
	// and near-equal in value (price is 1 at tick zero).
	mid, _ := GetSqrtRatioAtTick(0)
	a0, a1 = AmountsForLiquidity(mid, sqrtA, sqrtB, liquidity)
	require.True(t, a0.IsPositive())
	require.True(t, a1.IsPositive())
	diff := a0.Sub(a1).Abs()
	require.True(t, diff.MulRaw(100).LT(a0), "amounts should differ by well under 1%%: %s vs %s", a0, a1)
}

func TestLiquidityAmountsRoundTrip(t *testing.T) {
	sqrtA, _ := GetSqrtRatioAtTick(-600)
	sqrtB, _ := GetSqrtRatioAtTick(600)
	sqrtP, _ := GetSqrtRatioAtTick(0)

	amount0 := sdkmath.NewInt(5_000_000)
	amount1 := sdkmath.NewInt(5_000_000)

	liquidity := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1)
	require.True(t, liquidity.IsPositive())

	back0, back1 := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	// Floor rounding means the round trip never exceeds the inputs.
	require.True(t, back0.LTE(amount0))
	require.True(t, back1.LTE(amount1))
	// And never loses more than a dust margin.
	require.True(t, amount0.Sub(back0).LTE(sdkmath.NewInt(10)))
	require.True(t, amount1.Sub(back1).LTE(sdkmath.NewInt(10)))
}

func TestLiquidityForAmountsBindingSide(t *testing.T) {
	sqrtA, _ := GetSqrtRatioAtTick(-600)
	sqrtB, _ := GetSqrtRatioAtTick(600)
	sqrtP, _ := GetSqrtRatioAtTick(0)

	balanced := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, sdkmath.NewInt(1_000_000), sdkmath.NewInt(1_000_000))
	starved := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, sdkmath.NewInt(1_000_000), sdkmath.NewInt(10))
	require.True(t, starved.LT(balanced), "the scarce side must bind")
}
