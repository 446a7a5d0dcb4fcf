package vault

import "errors"

// Every failure the vault surfaces maps onto one of these categories.
// Callers branch with errors.Is; the wrapped detail is for logs only.
var (
	// ErrInvalidInput covers malformed parameters: zero deposits, expired
	// deadlines, unknown denoms, claim amounts above the caller's balance.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSlippageExceeded means a computed output landed below the
	// caller-supplied or policy-derived minimum.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrUnauthorized means the caller is not the vault owner.
	ErrUnauthorized = errors.New("caller is not the vault owner")

	// ErrEmptySupply means an operation needed a nonzero claim supply.
	ErrEmptySupply = errors.New("claim supply is zero")

	// ErrNoPosition means a query needed an active venue position.
	ErrNoPosition = errors.New("no active position")

	// ErrArithmetic wraps overflow and division-by-zero from the math layer.
	ErrArithmetic = errors.New("arithmetic failure")

	// ErrVenueFailure wraps any error returned by an injected venue.
	ErrVenueFailure = errors.New("venue call failed")
)
