/*

This file contains the depositor-facing flows. Deposits mint claim tokens
against the value they add; withdrawals burn claims and pay out in a single
asset of the caller's choice. Both run the rebalance engine before
returning, so the vault is fully deployed after every external touch.

The host environment is assumed to execute each call atomically: transfers,
ledger updates and venue calls in one flow either all land or none do.

*/

package vault

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Deposit adds funds and mints claims to caller. The mint is proportional
// to the value added: supply * (after-before) / before, reduced by the
// protocol fee. The first deposit (or a deposit into a valueless vault)
// mints BootstrapClaims. Fails with ErrSlippageExceeded when the mint
// lands below minClaims.
func (v *Vault) Deposit(caller string, amount0, amount1, minClaims sdkmath.Int, deadline time.Time) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller == "" {
		return sdkmath.Int{}, fmt.Errorf("%w: caller address is required", ErrInvalidInput)
	}
	if amount0.IsNil() || amount1.IsNil() {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit amounts must be set", ErrInvalidInput)
	}
	if amount0.IsNegative() || amount1.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit amounts must be non-negative", ErrInvalidInput)
	}
	if !amount0.Add(amount1).IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit must include at least one asset", ErrInvalidInput)
	}
	if minClaims.IsNil() || minClaims.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: minClaims must be non-negative", ErrInvalidInput)
	}
	if v.now().After(deadline) {
		return sdkmath.Int{}, fmt.Errorf("%w: deadline expired", ErrInvalidInput)
	}

	snap, err := v.snapshotMarket()
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply, err := v.ledger.TotalSupply()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: total supply: %v", ErrVenueFailure, err)
	}

	// Harvest pending position yield first so the value snapshot credits it
	// to the existing holders, not to this deposit.
	if v.positionID != 0 {
		if err := v.collect(); err != nil {
			return sdkmath.Int{}, err
		}
	}
	valueBefore, err := v.totalValue(snap, v.asset0)
	if err != nil {
		return sdkmath.Int{}, err
	}

	v.reserve0 = v.reserve0.Add(amount0)
	v.reserve1 = v.reserve1.Add(amount1)

	var minted sdkmath.Int
	if supply.IsZero() || valueBefore.IsZero() {
		minted = BootstrapClaims
	} else {
		valueAfter, err := v.totalValue(snap, v.asset0)
		if err != nil {
			return sdkmath.Int{}, err
		}
		minted, err = v.proportionalMint(supply, valueBefore, valueAfter)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}
	if !minted.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit too small to mint any claims", ErrInvalidInput)
	}
	if minted.LT(minClaims) {
		return sdkmath.Int{}, fmt.Errorf("%w: minted %s claims, minimum %s",
			ErrSlippageExceeded, minted, minClaims)
	}

	if err := v.ledger.Mint(caller, minted); err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: mint claims: %v", ErrVenueFailure, err)
	}
	if _, err := v.transition(snap); err != nil {
		return sdkmath.Int{}, err
	}

	v.logger.Info().
		Str("caller", caller).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String()).
		Str("claims_minted", minted.String()).
		Msg("Deposit processed")
	return minted, nil
}

// proportionalMint is supply * (after-before) / before with the protocol
// fee taken out of the minted claims.
func (v *Vault) proportionalMint(supply, before, after sdkmath.Int) (sdkmath.Int, error) {
	minted, err := v.mulDiv(supply, after.Sub(before), before)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return v.applyProtocolFee(minted)
}

// Withdraw burns claims from caller and pays out the proportional share of
// vault value as a single asset. The non-requested asset held after the
// proportional position close is swapped into the payout asset; the
// protocol fee comes out of the payout. Fails with ErrSlippageExceeded when
// the net payout lands below minAmount.
func (v *Vault) Withdraw(caller string, claims sdkmath.Int, payoutDenom string, minAmount sdkmath.Int, deadline time.Time) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller == "" {
		return sdkmath.Int{}, fmt.Errorf("%w: caller address is required", ErrInvalidInput)
	}
	if claims.IsNil() || !claims.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: claim amount must be positive", ErrInvalidInput)
	}
	if payoutDenom != v.asset0 && payoutDenom != v.asset1 {
		return sdkmath.Int{}, fmt.Errorf("%w: payout denom %s is not part of the pair", ErrInvalidInput, payoutDenom)
	}
	if minAmount.IsNil() || minAmount.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: minAmount must be non-negative", ErrInvalidInput)
	}
	if v.now().After(deadline) {
		return sdkmath.Int{}, fmt.Errorf("%w: deadline expired", ErrInvalidInput)
	}

	supply, err := v.ledger.TotalSupply()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: total supply: %v", ErrVenueFailure, err)
	}
	if !supply.IsPositive() {
		return sdkmath.Int{}, ErrEmptySupply
	}
	balance, err := v.ledger.BalanceOf(caller)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: balance: %v", ErrVenueFailure, err)
	}
	if claims.GT(balance) {
		return sdkmath.Int{}, fmt.Errorf("%w: claim amount %s exceeds balance %s", ErrInvalidInput, claims, balance)
	}

	snap, err := v.snapshotMarket()
	if err != nil {
		return sdkmath.Int{}, err
	}

	// Harvest pending position yield first so the entitlement includes the
	// caller's share of it, then price the entitlement before any protocol
	// fee or swap is applied.
	if v.positionID != 0 {
		if err := v.collect(); err != nil {
			return sdkmath.Int{}, err
		}
	}
	tv, err := v.totalValue(snap, payoutDenom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	gross, err := v.mulDiv(tv, claims, supply)
	if err != nil {
		return sdkmath.Int{}, err
	}

	// Release the proportional share of the position and harvest the fees
	// that came with it.
	if v.positionID != 0 {
		info, err := v.livePosition()
		if err != nil {
			return sdkmath.Int{}, err
		}
		liquidityOut, err := v.mulDiv(info.Liquidity, claims, supply)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if liquidityOut.IsPositive() {
			if _, err := v.positions.DecreaseLiquidity(v.positionID, liquidityOut); err != nil {
				return sdkmath.Int{}, fmt.Errorf("%w: decrease liquidity: %v", ErrVenueFailure, err)
			}
		}
		if err := v.collect(); err != nil {
			return sdkmath.Int{}, err
		}
	}

	// Convert everything that is not the payout asset.
	if payoutDenom == v.asset0 {
		err = v.executeSwap(snap, v.asset1, v.asset0, v.reserve1)
	} else {
		err = v.executeSwap(snap, v.asset0, v.asset1, v.reserve0)
	}
	if err != nil {
		return sdkmath.Int{}, err
	}

	available := v.reserve0
	if payoutDenom == v.asset1 {
		available = v.reserve1
	}
	payout := sdkmath.MinInt(gross, available)
	net, err := v.applyProtocolFee(payout)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if net.LT(minAmount) {
		return sdkmath.Int{}, fmt.Errorf("%w: payout %s %s, minimum %s",
			ErrSlippageExceeded, net, payoutDenom, minAmount)
	}

	if payoutDenom == v.asset0 {
		v.reserve0 = v.reserve0.Sub(net)
	} else {
		v.reserve1 = v.reserve1.Sub(net)
	}
	if err := v.ledger.Burn(caller, claims); err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: burn claims: %v", ErrVenueFailure, err)
	}
	if _, err := v.transition(snap); err != nil {
		return sdkmath.Int{}, err
	}

	v.logger.Info().
		Str("caller", caller).
		Str("claims_burned", claims.String()).
		Str("payout", net.String()).
		Str("denom", payoutDenom).
		Msg("Withdrawal processed")
	return net, nil
}

func (v *Vault) applyProtocolFee(amount sdkmath.Int) (sdkmath.Int, error) {
	return v.applyNumerator(amount, FeeDenominator-v.cfg.ProtocolFeeNumerator, FeeDenominator)
}
