package venue

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// PositionInfo is the live state of a range position, always re-read from
// the venue rather than cached: fee accrual and concurrent venue activity
// can change it between calls.
type PositionInfo struct {
	TickLower int64
	TickUpper int64
	Liquidity sdkmath.Int
}

// MintParams describes a new range position to open.
type MintParams struct {
	Asset0    string
	Asset1    string
	FeePips   uint64
	TickLower int64
	TickUpper int64
	Amount0   sdkmath.Int
	Amount1   sdkmath.Int
}

// MintResult reports the opened position and the token amounts the venue
// actually consumed (floor-rounded, so at most the offered amounts).
type MintResult struct {
	PositionID uint64
	Liquidity  sdkmath.Int
	Amount0    sdkmath.Int
	Amount1    sdkmath.Int
}

// LiquidityChange reports a liquidity delta and the token amounts consumed
// (increase) or released to the owed balance (decrease).
type LiquidityChange struct {
	Liquidity sdkmath.Int
	Amount0   sdkmath.Int
	Amount1   sdkmath.Int
}

// PositionVenue defines the interface to the concentrated-liquidity venue
// hosting the vault's position. This abstracts away the specific venue
// implementation, allowing different backends (live, simulation, etc.).
// All calls fail loudly rather than partially apply.
type PositionVenue interface {
	// CurrentSqrtPrice returns the venue's spot sqrt price in Q64.96.
	CurrentSqrtPrice() (*big.Int, error)

	// TickSpacing returns the minimum granularity of range boundaries.
	TickSpacing() (int64, error)

	// FeePips returns the venue's swap fee over the 1e6 denominator.
	FeePips() (uint64, error)

	// Mint opens a new range position funded from the given amounts.
	Mint(params MintParams) (MintResult, error)

	// IncreaseLiquidity adds funds to an existing position.
	IncreaseLiquidity(positionID uint64, amount0, amount1 sdkmath.Int) (LiquidityChange, error)

	// DecreaseLiquidity removes liquidity; the released amounts become
	// collectable via Collect.
	DecreaseLiquidity(positionID uint64, liquidity sdkmath.Int) (LiquidityChange, error)

	// Collect transfers out everything owed on a position: accrued swap
	// fees plus any previously decreased principal.
	Collect(positionID uint64) (sdkmath.Int, sdkmath.Int, error)

	// PositionInfo returns the live bounds and liquidity of a position.
	PositionInfo(positionID uint64) (PositionInfo, error)
}

// SwapVenue executes market orders with a minimum-output guard.
type SwapVenue interface {
	// SwapExactIn swaps amountIn of tokenIn for tokenOut, failing when the
	// output would fall below minAmountOut.
	SwapExactIn(tokenIn, tokenOut string, amountIn, minAmountOut sdkmath.Int) (sdkmath.Int, error)
}

// ShareLedger tracks outstanding claim tokens with standard fungible-token
// semantics.
type ShareLedger interface {
	Mint(to string, amount sdkmath.Int) error
	Burn(from string, amount sdkmath.Int) error
	TotalSupply() (sdkmath.Int, error)
	BalanceOf(account string) (sdkmath.Int, error)
}
