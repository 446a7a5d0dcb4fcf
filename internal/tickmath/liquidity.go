/*

This file contains the liquidity <-> token-amount conversions for a range
position at a given sqrt price. All divisions floor, so computed amounts
never exceed what a position actually holds and computed liquidity never
exceeds what a pair of balances can fund.

*/

package tickmath

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Q96 is the 2^96 fixed-point scale of venue sqrt prices.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// Amount0ForLiquidity returns the asset0 amount held by `liquidity` between
// two sqrt prices: L * 2^96 * (sqrtB - sqrtA) / (sqrtB * sqrtA), floored.
func Amount0ForLiquidity(sqrtA, sqrtB *big.Int, liquidity sdkmath.Int) sdkmath.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	numerator := new(big.Int).Lsh(liquidity.BigInt(), 96)
	numerator.Mul(numerator, new(big.Int).Sub(sqrtB, sqrtA))
	numerator.Quo(numerator, sqrtB)
	numerator.Quo(numerator, sqrtA)
	return sdkmath.NewIntFromBigInt(numerator)
}

// Amount1ForLiquidity returns the asset1 amount held by `liquidity` between
// two sqrt prices: L * (sqrtB - sqrtA) / 2^96, floored.
func Amount1ForLiquidity(sqrtA, sqrtB *big.Int, liquidity sdkmath.Int) sdkmath.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	out := new(big.Int).Mul(liquidity.BigInt(), new(big.Int).Sub(sqrtB, sqrtA))
	out.Quo(out, Q96)
	return sdkmath.NewIntFromBigInt(out)
}

// AmountsForLiquidity returns the two token amounts a position of the given
// liquidity over [sqrtA, sqrtB] would release if fully withdrawn at the
// current sqrt price.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB *big.Int, liquidity sdkmath.Int) (sdkmath.Int, sdkmath.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return Amount0ForLiquidity(sqrtA, sqrtB, liquidity), sdkmath.ZeroInt()
	case sqrtP.Cmp(sqrtB) >= 0:
		return sdkmath.ZeroInt(), Amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	default:
		return Amount0ForLiquidity(sqrtP, sqrtB, liquidity), Amount1ForLiquidity(sqrtA, sqrtP, liquidity)
	}
}

// liquidityForAmount0 computes amount0 * (sqrtA * sqrtB / 2^96) / (sqrtB - sqrtA).
func liquidityForAmount0(sqrtA, sqrtB *big.Int, amount0 sdkmath.Int) sdkmath.Int {
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Quo(intermediate, Q96)
	out := new(big.Int).Mul(amount0.BigInt(), intermediate)
	out.Quo(out, new(big.Int).Sub(sqrtB, sqrtA))
	return sdkmath.NewIntFromBigInt(out)
}

// liquidityForAmount1 computes amount1 * 2^96 / (sqrtB - sqrtA).
func liquidityForAmount1(sqrtA, sqrtB *big.Int, amount1 sdkmath.Int) sdkmath.Int {
	out := new(big.Int).Mul(amount1.BigInt(), Q96)
	out.Quo(out, new(big.Int).Sub(sqrtB, sqrtA))
	return sdkmath.NewIntFromBigInt(out)
}

// LiquidityForAmounts returns the maximum liquidity over [sqrtA, sqrtB] that
// the given balances can fund at the current sqrt price. When the price is
// inside the range the binding side wins (minimum of the two).
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB *big.Int, amount0, amount1 sdkmath.Int) sdkmath.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Cmp(sqrtB) >= 0:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	default:
		l0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
		if l0.LT(l1) {
			return l0
		}
		return l1
	}
}
