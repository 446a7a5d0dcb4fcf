/*

This file contains the fixed-point arithmetic primitives used by every other
component: exact multiply-then-divide over 256-bit intermediates with floor
division throughout. Nothing in here ever rounds up; callers rely on the
conservative bias.

*/

package fixedpoint

import (
	"errors"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrNegativeInput  = errors.New("input is negative")
)

// MulDiv computes a * b / c exactly, with the intermediate product held in a
// big.Int so amounts up to ~2^128 cannot overflow. Division is truncating
// (floor, since all inputs are non-negative).
func MulDiv(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if a.IsNegative() || b.IsNegative() || c.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeInput
	}
	if c.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}

	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	product.Quo(product, c.BigInt())
	return sdkmath.NewIntFromBigInt(product), nil
}

// MulDivBig is the big.Int flavour of MulDiv for callers already working in
// raw 256-bit sqrt-price space. The result is freshly allocated.
func MulDivBig(a, b, c *big.Int) (*big.Int, error) {
	if c.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, c), nil
}

// ApplyNumerator scales amount by numerator/denominator with floor division.
// This is the shared helper for protocol-fee and slippage haircuts.
func ApplyNumerator(amount sdkmath.Int, numerator, denominator uint64) (sdkmath.Int, error) {
	return MulDiv(amount, sdkmath.NewIntFromUint64(numerator), sdkmath.NewIntFromUint64(denominator))
}
