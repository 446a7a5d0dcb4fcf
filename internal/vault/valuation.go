/*

This file contains the pricing layer: a per-call market snapshot plus pure
helpers that convert between the pair assets, value the position and
reserves, and derive the claim price.

Every externally triggered flow reads the venue price exactly once and
threads the snapshot through; the price is held fixed for the duration of
the call so deposit, withdraw and rebalance each reason about one market.

*/

package vault

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/tbwebb22/gandalf-protocol/internal/fixedpoint"
	"github.com/tbwebb22/gandalf-protocol/internal/tickmath"
)

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// mulDiv and applyNumerator fold math-layer failures into the vault's
// error taxonomy.
func (v *Vault) mulDiv(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	out, err := fixedpoint.MulDiv(a, b, c)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return out, nil
}

func (v *Vault) applyNumerator(amount sdkmath.Int, numerator, denominator uint64) (sdkmath.Int, error) {
	out, err := fixedpoint.ApplyNumerator(amount, numerator, denominator)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return out, nil
}

// marketSnapshot is one venue price read, cached for the length of a call.
type marketSnapshot struct {
	sqrtPriceX96 *big.Int
	// priceX192 = sqrtPriceX96^2, the asset1-per-asset0 price in Q64.192.
	priceX192 *big.Int
	tick      int64
	feePips   uint64
}

// snapshotMarket reads the venue spot price and fee once. Caller holds the
// lock.
func (v *Vault) snapshotMarket() (*marketSnapshot, error) {
	sqrtPrice, err := v.positions.CurrentSqrtPrice()
	if err != nil {
		return nil, fmt.Errorf("%w: current sqrt price: %v", ErrVenueFailure, err)
	}
	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	feePips, err := v.positions.FeePips()
	if err != nil {
		return nil, fmt.Errorf("%w: fee pips: %v", ErrVenueFailure, err)
	}
	return &marketSnapshot{
		sqrtPriceX96: sqrtPrice,
		priceX192:    new(big.Int).Mul(sqrtPrice, sqrtPrice),
		tick:         tick,
		feePips:      feePips,
	}, nil
}

// convert0to1 values an asset0 amount in asset1 at the snapshot spot price,
// with no fee applied.
func (v *Vault) convert0to1(snap *marketSnapshot, amount sdkmath.Int) (sdkmath.Int, error) {
	out, err := fixedpoint.MulDivBig(amount.BigInt(), snap.priceX192, q192)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return sdkmath.NewIntFromBigInt(out), nil
}

// convert1to0 values an asset1 amount in asset0 at the snapshot spot price.
func (v *Vault) convert1to0(snap *marketSnapshot, amount sdkmath.Int) (sdkmath.Int, error) {
	out, err := fixedpoint.MulDivBig(amount.BigInt(), q192, snap.priceX192)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return sdkmath.NewIntFromBigInt(out), nil
}

// convertValue prices an amount of one pair asset in the other, or returns
// it unchanged when denoms match.
func (v *Vault) convertValue(snap *marketSnapshot, fromDenom, toDenom string, amount sdkmath.Int) (sdkmath.Int, error) {
	switch {
	case fromDenom == toDenom:
		return amount, nil
	case fromDenom == v.asset0 && toDenom == v.asset1:
		return v.convert0to1(snap, amount)
	case fromDenom == v.asset1 && toDenom == v.asset0:
		return v.convert1to0(snap, amount)
	default:
		return sdkmath.Int{}, fmt.Errorf("%w: denom %s is not part of the pair", ErrInvalidInput, fromDenom)
	}
}

// estimateSwapOutput predicts the venue's spot-execution output for a swap,
// net of the venue fee.
func (v *Vault) estimateSwapOutput(snap *marketSnapshot, tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error) {
	out, err := v.convertValue(snap, tokenIn, tokenOut, amountIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	net, err := fixedpoint.ApplyNumerator(out, v.feePipsComplement(snap), FeeDenominator)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return net, nil
}

func (v *Vault) feePipsComplement(snap *marketSnapshot) uint64 {
	if snap.feePips >= FeeDenominator {
		return 0
	}
	return FeeDenominator - snap.feePips
}

// minAcceptableOutput is the swap floor: the fee-adjusted estimate reduced
// by the configured slippage tolerance.
func (v *Vault) minAcceptableOutput(snap *marketSnapshot, tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error) {
	est, err := v.estimateSwapOutput(snap, tokenIn, tokenOut, amountIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	floor, err := fixedpoint.ApplyNumerator(est, SlippageDenominator-v.cfg.SlippageNumerator, SlippageDenominator)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return floor, nil
}

// valueIn prices an amount in denom the way a spot swap would settle it:
// same-denom amounts pass through, cross-asset amounts are net of the
// venue fee. Used by the valuation functions so every reported value is
// realizable, not a raw spot conversion.
func (v *Vault) valueIn(snap *marketSnapshot, fromDenom, toDenom string, amount sdkmath.Int) (sdkmath.Int, error) {
	if fromDenom == toDenom {
		return amount, nil
	}
	return v.estimateSwapOutput(snap, fromDenom, toDenom, amount)
}

// reserveValue prices the idle reserves in denom.
func (v *Vault) reserveValue(snap *marketSnapshot, denom string) (sdkmath.Int, error) {
	v0, err := v.valueIn(snap, v.asset0, denom, v.reserve0)
	if err != nil {
		return sdkmath.Int{}, err
	}
	v1, err := v.valueIn(snap, v.asset1, denom, v.reserve1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return v0.Add(v1), nil
}

// positionValue prices the live position in denom: the amounts a full
// withdrawal would release at the snapshot price, over the desired bounds.
// Zero when no position exists.
func (v *Vault) positionValue(snap *marketSnapshot, denom string) (sdkmath.Int, error) {
	if v.positionID == 0 {
		return sdkmath.ZeroInt(), nil
	}
	info, err := v.livePosition()
	if err != nil {
		return sdkmath.Int{}, err
	}
	sqrtA, sqrtB, err := v.desiredSqrtBounds()
	if err != nil {
		return sdkmath.Int{}, err
	}
	amount0, amount1 := tickmath.AmountsForLiquidity(snap.sqrtPriceX96, sqrtA, sqrtB, info.Liquidity)
	v0, err := v.valueIn(snap, v.asset0, denom, amount0)
	if err != nil {
		return sdkmath.Int{}, err
	}
	v1, err := v.valueIn(snap, v.asset1, denom, amount1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return v0.Add(v1), nil
}

// totalValue prices everything the vault holds in denom.
func (v *Vault) totalValue(snap *marketSnapshot, denom string) (sdkmath.Int, error) {
	rv, err := v.reserveValue(snap, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	pv, err := v.positionValue(snap, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return rv.Add(pv), nil
}

// claimPrice is totalValue * 1e18 / claimSupply in denom.
func (v *Vault) claimPrice(snap *marketSnapshot, denom string) (sdkmath.Int, error) {
	supply, err := v.ledger.TotalSupply()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: total supply: %v", ErrVenueFailure, err)
	}
	if !supply.IsPositive() {
		return sdkmath.Int{}, ErrEmptySupply
	}
	tv, err := v.totalValue(snap, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	price, err := fixedpoint.MulDiv(tv, PriceScale, supply)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return price, nil
}
