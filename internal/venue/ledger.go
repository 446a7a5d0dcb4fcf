package venue

import (
	"errors"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInsufficientBalance = errors.New("insufficient claim balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// SimLedger is an in-memory ShareLedger with standard fungible semantics.
type SimLedger struct {
	balances map[string]sdkmath.Int
	supply   sdkmath.Int
}

// NewSimLedger creates an empty claim-token ledger.
func NewSimLedger() *SimLedger {
	return &SimLedger{
		balances: make(map[string]sdkmath.Int),
		supply:   sdkmath.ZeroInt(),
	}
}

func (l *SimLedger) Mint(to string, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	bal, ok := l.balances[to]
	if !ok {
		bal = sdkmath.ZeroInt()
	}
	l.balances[to] = bal.Add(amount)
	l.supply = l.supply.Add(amount)
	return nil
}

func (l *SimLedger) Burn(from string, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	bal, ok := l.balances[from]
	if !ok || bal.LT(amount) {
		return ErrInsufficientBalance
	}
	l.balances[from] = bal.Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *SimLedger) TotalSupply() (sdkmath.Int, error) {
	return l.supply, nil
}

func (l *SimLedger) BalanceOf(account string) (sdkmath.Int, error) {
	bal, ok := l.balances[account]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	return bal, nil
}
