/*

This file contains the in-memory venue used by tests and by sim mode. It
executes swaps at spot (with the pool fee and an optional output haircut for
slippage testing), and does Uniswap-style decrease->owed->collect
bookkeeping for positions. Prices only move when a test moves them.

*/

package venue

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/tbwebb22/gandalf-protocol/internal/fixedpoint"
	"github.com/tbwebb22/gandalf-protocol/internal/tickmath"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownPosition = errors.New("position does not exist")
	ErrInvalidTicks    = errors.New("tick bounds are invalid")
	ErrZeroLiquidity   = errors.New("amounts fund zero liquidity")
	ErrInsufficientLiq = errors.New("insufficient position liquidity")
	ErrMinAmountOut    = errors.New("output below minimum")
	ErrUnknownDenom    = errors.New("denom not traded on this venue")
	ErrInvalidFunding  = errors.New("funding amounts are invalid")
)

const pipsDenominator = 1_000_000

type simPosition struct {
	tickLower int64
	tickUpper int64
	liquidity sdkmath.Int
	owed0     sdkmath.Int
	owed1     sdkmath.Int
}

// SimVenue implements PositionVenue and SwapVenue against in-memory state.
type SimVenue struct {
	asset0 string
	asset1 string

	sqrtPriceX96 *big.Int
	tick         int64
	tickSpacing  int64
	feePips      uint64

	// swapHaircutBps shaves the swap output by N basis points on top of the
	// fee, simulating execution slippage.
	swapHaircutBps uint64

	nextPositionID uint64
	positions      map[uint64]*simPosition
}

// NewSimVenue creates a simulated venue priced at the given tick.
func NewSimVenue(asset0, asset1 string, genesisTick, tickSpacing int64, feePips uint64) (*SimVenue, error) {
	if asset0 == "" || asset1 == "" || asset0 == asset1 {
		return nil, ErrUnknownDenom
	}
	if tickSpacing <= 0 {
		return nil, ErrInvalidTicks
	}
	sqrtPrice, err := tickmath.GetSqrtRatioAtTick(genesisTick)
	if err != nil {
		return nil, fmt.Errorf("genesis tick: %w", err)
	}
	return &SimVenue{
		asset0:         asset0,
		asset1:         asset1,
		sqrtPriceX96:   sqrtPrice,
		tick:           genesisTick,
		tickSpacing:    tickSpacing,
		feePips:        feePips,
		nextPositionID: 1,
		positions:      make(map[uint64]*simPosition),
	}, nil
}

// SetPriceTick moves the venue's spot price to the given tick.
func (s *SimVenue) SetPriceTick(tick int64) error {
	sqrtPrice, err := tickmath.GetSqrtRatioAtTick(tick)
	if err != nil {
		return err
	}
	s.sqrtPriceX96 = sqrtPrice
	s.tick = tick
	return nil
}

// SetSwapHaircutBps configures extra output shaving on swaps, in basis
// points, to exercise slippage floors.
func (s *SimVenue) SetSwapHaircutBps(bps uint64) {
	s.swapHaircutBps = bps
}

// AccrueFees credits uncollected swap fees to a position.
func (s *SimVenue) AccrueFees(positionID uint64, amount0, amount1 sdkmath.Int) error {
	pos, ok := s.positions[positionID]
	if !ok {
		return ErrUnknownPosition
	}
	pos.owed0 = pos.owed0.Add(amount0)
	pos.owed1 = pos.owed1.Add(amount1)
	return nil
}

func (s *SimVenue) CurrentSqrtPrice() (*big.Int, error) {
	return new(big.Int).Set(s.sqrtPriceX96), nil
}

func (s *SimVenue) TickSpacing() (int64, error) {
	return s.tickSpacing, nil
}

func (s *SimVenue) FeePips() (uint64, error) {
	return s.feePips, nil
}

func (s *SimVenue) validateTicks(lower, upper int64) error {
	if lower >= upper || lower < tickmath.MinTick || upper > tickmath.MaxTick {
		return ErrInvalidTicks
	}
	return nil
}

func (s *SimVenue) Mint(params MintParams) (MintResult, error) {
	if params.Asset0 != s.asset0 || params.Asset1 != s.asset1 {
		return MintResult{}, ErrUnknownDenom
	}
	if err := s.validateTicks(params.TickLower, params.TickUpper); err != nil {
		return MintResult{}, err
	}
	if params.Amount0.IsNegative() || params.Amount1.IsNegative() {
		return MintResult{}, ErrInvalidFunding
	}

	sqrtA, err := tickmath.GetSqrtRatioAtTick(params.TickLower)
	if err != nil {
		return MintResult{}, err
	}
	sqrtB, err := tickmath.GetSqrtRatioAtTick(params.TickUpper)
	if err != nil {
		return MintResult{}, err
	}

	liquidity := tickmath.LiquidityForAmounts(s.sqrtPriceX96, sqrtA, sqrtB, params.Amount0, params.Amount1)
	if !liquidity.IsPositive() {
		return MintResult{}, ErrZeroLiquidity
	}
	used0, used1 := tickmath.AmountsForLiquidity(s.sqrtPriceX96, sqrtA, sqrtB, liquidity)

	id := s.nextPositionID
	s.nextPositionID++
	s.positions[id] = &simPosition{
		tickLower: params.TickLower,
		tickUpper: params.TickUpper,
		liquidity: liquidity,
		owed0:     sdkmath.ZeroInt(),
		owed1:     sdkmath.ZeroInt(),
	}

	return MintResult{PositionID: id, Liquidity: liquidity, Amount0: used0, Amount1: used1}, nil
}

func (s *SimVenue) IncreaseLiquidity(positionID uint64, amount0, amount1 sdkmath.Int) (LiquidityChange, error) {
	pos, ok := s.positions[positionID]
	if !ok {
		return LiquidityChange{}, ErrUnknownPosition
	}
	if amount0.IsNegative() || amount1.IsNegative() {
		return LiquidityChange{}, ErrInvalidFunding
	}

	sqrtA, err := tickmath.GetSqrtRatioAtTick(pos.tickLower)
	if err != nil {
		return LiquidityChange{}, err
	}
	sqrtB, err := tickmath.GetSqrtRatioAtTick(pos.tickUpper)
	if err != nil {
		return LiquidityChange{}, err
	}

	delta := tickmath.LiquidityForAmounts(s.sqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
	if !delta.IsPositive() {
		return LiquidityChange{}, ErrZeroLiquidity
	}
	used0, used1 := tickmath.AmountsForLiquidity(s.sqrtPriceX96, sqrtA, sqrtB, delta)
	pos.liquidity = pos.liquidity.Add(delta)

	return LiquidityChange{Liquidity: delta, Amount0: used0, Amount1: used1}, nil
}

func (s *SimVenue) DecreaseLiquidity(positionID uint64, liquidity sdkmath.Int) (LiquidityChange, error) {
	pos, ok := s.positions[positionID]
	if !ok {
		return LiquidityChange{}, ErrUnknownPosition
	}
	if !liquidity.IsPositive() || liquidity.GT(pos.liquidity) {
		return LiquidityChange{}, ErrInsufficientLiq
	}

	sqrtA, err := tickmath.GetSqrtRatioAtTick(pos.tickLower)
	if err != nil {
		return LiquidityChange{}, err
	}
	sqrtB, err := tickmath.GetSqrtRatioAtTick(pos.tickUpper)
	if err != nil {
		return LiquidityChange{}, err
	}

	out0, out1 := tickmath.AmountsForLiquidity(s.sqrtPriceX96, sqrtA, sqrtB, liquidity)
	pos.liquidity = pos.liquidity.Sub(liquidity)
	pos.owed0 = pos.owed0.Add(out0)
	pos.owed1 = pos.owed1.Add(out1)

	return LiquidityChange{Liquidity: liquidity, Amount0: out0, Amount1: out1}, nil
}

func (s *SimVenue) Collect(positionID uint64) (sdkmath.Int, sdkmath.Int, error) {
	pos, ok := s.positions[positionID]
	if !ok {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrUnknownPosition
	}
	out0, out1 := pos.owed0, pos.owed1
	pos.owed0 = sdkmath.ZeroInt()
	pos.owed1 = sdkmath.ZeroInt()
	return out0, out1, nil
}

func (s *SimVenue) PositionInfo(positionID uint64) (PositionInfo, error) {
	pos, ok := s.positions[positionID]
	if !ok {
		return PositionInfo{}, ErrUnknownPosition
	}
	return PositionInfo{TickLower: pos.tickLower, TickUpper: pos.tickUpper, Liquidity: pos.liquidity}, nil
}

// SwapExactIn executes at spot with the pool fee and the configured haircut.
func (s *SimVenue) SwapExactIn(tokenIn, tokenOut string, amountIn, minAmountOut sdkmath.Int) (sdkmath.Int, error) {
	if amountIn.IsNegative() {
		return sdkmath.ZeroInt(), ErrInvalidFunding
	}

	priceX192 := new(big.Int).Mul(s.sqrtPriceX96, s.sqrtPriceX96)
	q192 := new(big.Int).Mul(tickmath.Q96, tickmath.Q96)

	var gross *big.Int
	var err error
	switch {
	case tokenIn == s.asset0 && tokenOut == s.asset1:
		gross, err = fixedpoint.MulDivBig(amountIn.BigInt(), priceX192, q192)
	case tokenIn == s.asset1 && tokenOut == s.asset0:
		gross, err = fixedpoint.MulDivBig(amountIn.BigInt(), q192, priceX192)
	default:
		return sdkmath.ZeroInt(), ErrUnknownDenom
	}
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	out, err := fixedpoint.ApplyNumerator(sdkmath.NewIntFromBigInt(gross), pipsDenominator-s.feePips, pipsDenominator)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if s.swapHaircutBps > 0 {
		out, err = fixedpoint.ApplyNumerator(out, 10_000-s.swapHaircutBps, 10_000)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	if out.LT(minAmountOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: got %s, need %s", ErrMinAmountOut, out, minAmountOut)
	}
	return out, nil
}
