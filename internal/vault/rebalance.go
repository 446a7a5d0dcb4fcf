/*

This file contains the rebalance engine: the state transition that runs at
the end of every deposit and withdraw and on each keeper cycle. One pass
does, in order: collect accrued fees, close and retarget a stale position,
swap the reserves toward the in-range ratio, and redeploy everything into
the desired range.

*/

package vault

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/tbwebb22/gandalf-protocol/internal/fixedpoint"
	"github.com/tbwebb22/gandalf-protocol/internal/tickmath"
	"github.com/tbwebb22/gandalf-protocol/internal/venue"
)

// Rebalance runs one engine transition against a fresh market snapshot.
// Callable by anyone; it moves no value out of the vault. Returns whether
// the venue position was re-minted.
func (v *Vault) Rebalance() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return false, err
	}
	return v.transition(snap)
}

// priceInRange reports tick membership in [lower, upper], bounds inclusive.
func priceInRange(tick, lower, upper int64) bool {
	return tick >= lower && tick <= upper
}

// needsUpdateAt reports whether the live position is stale: its bounds
// drifted from the desired range, or the price left its bounds. Caller
// holds the lock.
func (v *Vault) needsUpdateAt(snap *marketSnapshot) (bool, error) {
	if v.positionID == 0 {
		return false, nil
	}
	info, err := v.livePosition()
	if err != nil {
		return false, err
	}
	if info.TickLower != v.cfg.DesiredTickLower || info.TickUpper != v.cfg.DesiredTickUpper {
		return true, nil
	}
	return !priceInRange(snap.tick, info.TickLower, info.TickUpper), nil
}

// transition is the engine body. Caller holds the lock and supplies the
// snapshot of the triggering call.
func (v *Vault) transition(snap *marketSnapshot) (repositioned bool, err error) {
	if v.positionID != 0 {
		if err := v.collect(); err != nil {
			return false, err
		}
		stale, err := v.needsUpdateAt(snap)
		if err != nil {
			return false, err
		}
		if stale {
			if err := v.closePosition(); err != nil {
				return false, err
			}
			if err := v.recenterDesiredRange(snap.tick); err != nil {
				return false, err
			}
			repositioned = true
			v.logger.Info().
				Int64("current_tick", snap.tick).
				Int64("desired_tick_lower", v.cfg.DesiredTickLower).
				Int64("desired_tick_upper", v.cfg.DesiredTickUpper).
				Msg("Stale position closed, range retargeted")
		}
	} else if !priceInRange(snap.tick, v.cfg.DesiredTickLower, v.cfg.DesiredTickUpper) {
		if err := v.recenterDesiredRange(snap.tick); err != nil {
			return false, err
		}
	}

	if v.reserve0.IsPositive() || v.reserve1.IsPositive() {
		if err := v.swapToBalance(snap); err != nil {
			return repositioned, err
		}
		minted, err := v.deploy(snap)
		if err != nil {
			return repositioned, err
		}
		repositioned = repositioned || minted
	}
	return repositioned, nil
}

// collect harvests whatever the venue owes the position into the reserves.
// Caller holds the lock; positionID must be nonzero.
func (v *Vault) collect() error {
	out0, out1, err := v.positions.Collect(v.positionID)
	if err != nil {
		return fmt.Errorf("%w: collect: %v", ErrVenueFailure, err)
	}
	if out0.IsPositive() || out1.IsPositive() {
		v.reserve0 = v.reserve0.Add(out0)
		v.reserve1 = v.reserve1.Add(out1)
		v.logger.Debug().
			Str("collected0", out0.String()).
			Str("collected1", out1.String()).
			Msg("Fees collected")
	}
	return nil
}

// closePosition removes all liquidity, collects the release, and forgets
// the position ID. Caller holds the lock.
func (v *Vault) closePosition() error {
	info, err := v.livePosition()
	if err != nil {
		return err
	}
	if info.Liquidity.IsPositive() {
		if _, err := v.positions.DecreaseLiquidity(v.positionID, info.Liquidity); err != nil {
			return fmt.Errorf("%w: decrease liquidity: %v", ErrVenueFailure, err)
		}
	}
	if err := v.collect(); err != nil {
		return err
	}
	v.positionID = 0
	return nil
}

// swapToBalance trades the reserves toward the ratio the desired range
// absorbs at the snapshot price. Out of range it converges on the single
// asset the range would hold. Caller holds the lock.
func (v *Vault) swapToBalance(snap *marketSnapshot) error {
	sqrtA, sqrtB, err := v.desiredSqrtBounds()
	if err != nil {
		return err
	}

	switch {
	case snap.sqrtPriceX96.Cmp(sqrtA) <= 0:
		// Price at or below the range: the position is all asset0.
		return v.executeSwap(snap, v.asset1, v.asset0, v.reserve1)
	case snap.sqrtPriceX96.Cmp(sqrtB) >= 0:
		return v.executeSwap(snap, v.asset0, v.asset1, v.reserve0)
	}

	// In range: per unit of liquidity the range holds
	//   amount0 = (sqrtB - sqrtP) / (sqrtP * sqrtB)  and  amount1 = sqrtP - sqrtA,
	// so the asset1-value weights are w0 = (sqrtB-sqrtP)*sqrtP/sqrtB and
	// w1 = sqrtP - sqrtA.
	w0, err := fixedpoint.MulDivBig(
		new(big.Int).Sub(sqrtB, snap.sqrtPriceX96), snap.sqrtPriceX96, sqrtB)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	w1 := new(big.Int).Sub(snap.sqrtPriceX96, sqrtA)

	// Size against the raw spot value of the reserves. Netting the venue
	// fee here would skew the target by the fee and trigger a swap on
	// already-balanced reserves.
	r0in1, err := v.convert0to1(snap, v.reserve0)
	if err != nil {
		return err
	}
	total1 := v.reserve1.Add(r0in1)
	target1Big, err := fixedpoint.MulDivBig(total1.BigInt(), w1, new(big.Int).Add(w0, w1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	target1 := sdkmath.NewIntFromBigInt(target1Big)

	if v.reserve1.GT(target1) {
		return v.executeSwap(snap, v.asset1, v.asset0, v.reserve1.Sub(target1))
	}
	deficit1 := target1.Sub(v.reserve1)
	amountIn0, err := v.convert1to0(snap, deficit1)
	if err != nil {
		return err
	}
	if amountIn0.GT(v.reserve0) {
		amountIn0 = v.reserve0
	}
	return v.executeSwap(snap, v.asset0, v.asset1, amountIn0)
}

// executeSwap runs one reserve swap with the policy slippage floor. A
// non-positive input is a no-op. Caller holds the lock.
func (v *Vault) executeSwap(snap *marketSnapshot, tokenIn, tokenOut string, amountIn sdkmath.Int) error {
	if !amountIn.IsPositive() {
		return nil
	}
	minOut, err := v.minAcceptableOutput(snap, tokenIn, tokenOut, amountIn)
	if err != nil {
		return err
	}
	out, err := v.swapper.SwapExactIn(tokenIn, tokenOut, amountIn, minOut)
	if err != nil {
		if errors.Is(err, venue.ErrMinAmountOut) {
			return fmt.Errorf("%w: swap %s->%s: %v", ErrSlippageExceeded, tokenIn, tokenOut, err)
		}
		return fmt.Errorf("%w: swap %s->%s: %v", ErrVenueFailure, tokenIn, tokenOut, err)
	}

	if tokenIn == v.asset0 {
		v.reserve0 = v.reserve0.Sub(amountIn)
		v.reserve1 = v.reserve1.Add(out)
	} else {
		v.reserve1 = v.reserve1.Sub(amountIn)
		v.reserve0 = v.reserve0.Add(out)
	}
	v.logger.Debug().
		Str("token_in", tokenIn).
		Str("amount_in", amountIn.String()).
		Str("amount_out", out.String()).
		Msg("Reserve swap executed")
	return nil
}

// deploy pushes the reserves into the desired range, minting a position if
// none exists. Amounts too small to fund any liquidity stay idle. Returns
// whether a new position was minted. Caller holds the lock.
func (v *Vault) deploy(snap *marketSnapshot) (bool, error) {
	sqrtA, sqrtB, err := v.desiredSqrtBounds()
	if err != nil {
		return false, err
	}
	liquidity := tickmath.LiquidityForAmounts(snap.sqrtPriceX96, sqrtA, sqrtB, v.reserve0, v.reserve1)
	if !liquidity.IsPositive() {
		return false, nil
	}

	if v.positionID == 0 {
		res, err := v.positions.Mint(venue.MintParams{
			Asset0:    v.asset0,
			Asset1:    v.asset1,
			FeePips:   snap.feePips,
			TickLower: v.cfg.DesiredTickLower,
			TickUpper: v.cfg.DesiredTickUpper,
			Amount0:   v.reserve0,
			Amount1:   v.reserve1,
		})
		if err != nil {
			return false, fmt.Errorf("%w: mint: %v", ErrVenueFailure, err)
		}
		v.positionID = res.PositionID
		v.reserve0 = v.reserve0.Sub(res.Amount0)
		v.reserve1 = v.reserve1.Sub(res.Amount1)
		v.logger.Info().
			Uint64("position_id", res.PositionID).
			Str("liquidity", res.Liquidity.String()).
			Str("amount0", res.Amount0.String()).
			Str("amount1", res.Amount1.String()).
			Msg("Position minted")
		return true, nil
	}

	change, err := v.positions.IncreaseLiquidity(v.positionID, v.reserve0, v.reserve1)
	if err != nil {
		return false, fmt.Errorf("%w: increase liquidity: %v", ErrVenueFailure, err)
	}
	v.reserve0 = v.reserve0.Sub(change.Amount0)
	v.reserve1 = v.reserve1.Sub(change.Amount1)
	v.logger.Debug().
		Uint64("position_id", v.positionID).
		Str("liquidity_added", change.Liquidity.String()).
		Msg("Liquidity added to position")
	return false, nil
}
