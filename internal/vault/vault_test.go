package vault_test

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbwebb22/gandalf-protocol/internal/logger"
	"github.com/tbwebb22/gandalf-protocol/internal/vault"
	"github.com/tbwebb22/gandalf-protocol/internal/venue"
)

const (
	testOwner = "gandalf1owner"
	alice     = "gandalf1alice"
	bob       = "gandalf1bob"

	asset0 = "uatom"
	asset1 = "uusdc"
)

func init() {
	logger.Initialize("error")
}

type fixture struct {
	vault  *vault.Vault
	venue  *venue.SimVenue
	ledger *venue.SimLedger
	now    time.Time
}

func newFixture(t *testing.T, genesisTick int64, mutate ...func(*vault.Config)) *fixture {
	t.Helper()

	sim, err := venue.NewSimVenue(asset0, asset1, genesisTick, 60, 3000)
	require.NoError(t, err)
	ledger := venue.NewSimLedger()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cfg := vault.Config{
		Owner:                testOwner,
		Asset0Denom:          asset0,
		Asset1Denom:          asset1,
		ProtocolFeeNumerator: 0,
		SlippageNumerator:    5_000, // 0.5%
		DesiredTickRange:     600,
		Positions:            sim,
		Swapper:              sim,
		Ledger:               ledger,
		Now:                  func() time.Time { return now },
	}
	for _, m := range mutate {
		m(&cfg)
	}

	v, err := vault.New(cfg)
	require.NoError(t, err)
	return &fixture{vault: v, venue: sim, ledger: ledger, now: now}
}

func (f *fixture) deadline() time.Time {
	return f.now.Add(time.Minute)
}

func (f *fixture) deposit(t *testing.T, caller string, amount0, amount1 int64) sdkmath.Int {
	t.Helper()
	minted, err := f.vault.Deposit(caller,
		sdkmath.NewInt(amount0), sdkmath.NewInt(amount1), sdkmath.ZeroInt(), f.deadline())
	require.NoError(t, err)
	return minted
}

func TestNewCentersDesiredRange(t *testing.T) {
	tests := []struct {
		name        string
		genesisTick int64
		width       int64
		wantLower   int64
		wantUpper   int64
	}{
		{"at zero", 0, 600, -300, 300},
		{"negative spot, width 600", -82763, 600, -83100, -82500},
		{"negative spot, width 1200", -82763, 1200, -83400, -82200},
		{"positive spot", 400, 600, 60, 660},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.genesisTick, func(c *vault.Config) {
				c.DesiredTickRange = tt.width
			})
			lower, upper := f.vault.DesiredRange()
			assert.Equal(t, tt.wantLower, lower)
			assert.Equal(t, tt.wantUpper, upper)
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	sim, err := venue.NewSimVenue(asset0, asset1, 0, 60, 3000)
	require.NoError(t, err)
	base := vault.Config{
		Owner:            testOwner,
		Asset0Denom:      asset0,
		Asset1Denom:      asset1,
		DesiredTickRange: 600,
		Positions:        sim,
		Swapper:          sim,
		Ledger:           venue.NewSimLedger(),
	}

	tests := []struct {
		name   string
		mutate func(*vault.Config)
	}{
		{"missing owner", func(c *vault.Config) { c.Owner = "" }},
		{"same denoms", func(c *vault.Config) { c.Asset1Denom = asset0 }},
		{"fee numerator too large", func(c *vault.Config) { c.ProtocolFeeNumerator = 1_000_000 }},
		{"slippage numerator too large", func(c *vault.Config) { c.SlippageNumerator = 1_000_000 }},
		{"width not spacing multiple", func(c *vault.Config) { c.DesiredTickRange = 90 }},
		{"width below two spacings", func(c *vault.Config) { c.DesiredTickRange = 60 }},
		{"nil ledger", func(c *vault.Config) { c.Ledger = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := vault.New(cfg)
			assert.ErrorIs(t, err, vault.ErrInvalidInput)
		})
	}
}

func TestBootstrapDeposit(t *testing.T) {
	f := newFixture(t, 0)

	minted := f.deposit(t, alice, 1_000_000, 1_000_000)
	assert.True(t, minted.Equal(vault.BootstrapClaims), "first deposit mints the bootstrap amount")

	// The deposit was deployed into a fresh position on the desired range.
	require.NotZero(t, f.vault.PositionID())
	dl, du := f.vault.DesiredRange()
	al, au, err := f.vault.ActualRange()
	require.NoError(t, err)
	assert.Equal(t, dl, al)
	assert.Equal(t, du, au)

	// Only rounding dust stays idle.
	r0, r1 := f.vault.Reserves()
	assert.True(t, r0.LT(sdkmath.NewInt(1_000)), "reserve0 dust: %s", r0)
	assert.True(t, r1.LT(sdkmath.NewInt(1_000)), "reserve1 dust: %s", r1)

	tv, err := f.vault.TotalValue(asset1)
	require.NoError(t, err)
	assert.True(t, tv.GTE(sdkmath.NewInt(1_990_000)), "total value kept: %s", tv)
	assert.True(t, tv.LTE(sdkmath.NewInt(2_000_000)))
}

func TestSingleSidedDeposit(t *testing.T) {
	f := newFixture(t, 0)

	minted := f.deposit(t, alice, 2_000_000, 0)
	assert.True(t, minted.Equal(vault.BootstrapClaims))

	// Roughly half was swapped so the position straddles the price.
	require.NotZero(t, f.vault.PositionID())
	tv, err := f.vault.TotalValue(asset1)
	require.NoError(t, err)
	assert.True(t, tv.GTE(sdkmath.NewInt(1_970_000)), "swap fee only: %s", tv)
	r0, r1 := f.vault.Reserves()
	assert.True(t, r0.LT(sdkmath.NewInt(10_000)), "reserve0 dust: %s", r0)
	assert.True(t, r1.LT(sdkmath.NewInt(10_000)), "reserve1 dust: %s", r1)
}

func TestSecondDepositMintsProportionally(t *testing.T) {
	f := newFixture(t, 0)

	f.deposit(t, alice, 1_000_000, 1_000_000)
	minted := f.deposit(t, bob, 1_000_000, 1_000_000)

	// Bob doubled the vault value, so he gets one supply's worth of claims
	// up to swap-fee drift.
	lo := vault.BootstrapClaims.MulRaw(99).QuoRaw(100)
	hi := vault.BootstrapClaims.MulRaw(101).QuoRaw(100)
	assert.True(t, minted.GTE(lo), "minted %s below %s", minted, lo)
	assert.True(t, minted.LTE(hi), "minted %s above %s", minted, hi)

	balance, err := f.ledger.BalanceOf(bob)
	require.NoError(t, err)
	assert.True(t, balance.Equal(minted))
}

func TestDepositFeeReducesMint(t *testing.T) {
	f := newFixture(t, 0, func(c *vault.Config) {
		c.ProtocolFeeNumerator = 100_000 // 10%
	})

	f.deposit(t, alice, 1_000_000, 1_000_000)
	minted := f.deposit(t, bob, 1_000_000, 1_000_000)

	lo := vault.BootstrapClaims.MulRaw(88).QuoRaw(100)
	hi := vault.BootstrapClaims.MulRaw(92).QuoRaw(100)
	assert.True(t, minted.GTE(lo) && minted.LTE(hi), "fee-reduced mint: %s", minted)
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.vault.Deposit(alice, sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), f.deadline())
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = f.vault.Deposit(alice, sdkmath.NewInt(-5), sdkmath.NewInt(10), sdkmath.ZeroInt(), f.deadline())
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = f.vault.Deposit(alice, sdkmath.NewInt(1_000), sdkmath.NewInt(1_000), sdkmath.ZeroInt(),
		f.now.Add(-time.Second))
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = f.vault.Deposit(alice, sdkmath.NewInt(1_000), sdkmath.NewInt(1_000),
		vault.BootstrapClaims.AddRaw(1), f.deadline())
	assert.ErrorIs(t, err, vault.ErrSlippageExceeded)
}

func TestWithdrawAllDrainsVault(t *testing.T) {
	f := newFixture(t, 0)
	claims := f.deposit(t, alice, 1_000_000, 1_000_000)

	net, err := f.vault.Withdraw(alice, claims, asset1, sdkmath.ZeroInt(), f.deadline())
	require.NoError(t, err)

	// Everything comes back minus venue swap fees and rounding dust.
	assert.True(t, net.GTE(sdkmath.NewInt(1_990_000)), "payout %s", net)
	assert.True(t, net.LTE(sdkmath.NewInt(2_000_000)))

	supply, err := f.ledger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, supply.IsZero())

	_, err = f.vault.ClaimPrice(asset1)
	assert.ErrorIs(t, err, vault.ErrEmptySupply)

	tv, err := f.vault.TotalValue(asset1)
	require.NoError(t, err)
	assert.True(t, tv.LT(sdkmath.NewInt(20_000)), "residual dust only: %s", tv)
}

func TestWithdrawProportionalShare(t *testing.T) {
	f := newFixture(t, 0)
	aliceClaims := f.deposit(t, alice, 1_000_000, 1_000_000)
	f.deposit(t, bob, 1_000_000, 1_000_000)

	half := aliceClaims.QuoRaw(2)
	net, err := f.vault.Withdraw(alice, half, asset0, sdkmath.ZeroInt(), f.deadline())
	require.NoError(t, err)

	// A quarter of the vault, paid in asset0 at price one.
	assert.True(t, net.GTE(sdkmath.NewInt(980_000)), "payout %s", net)
	assert.True(t, net.LTE(sdkmath.NewInt(1_010_000)), "payout %s", net)

	balance, err := f.ledger.BalanceOf(alice)
	require.NoError(t, err)
	assert.True(t, balance.Equal(aliceClaims.Sub(half)))
}

func TestWithdrawValidation(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.vault.Withdraw(alice, sdkmath.NewInt(1), asset1, sdkmath.ZeroInt(), f.deadline())
	assert.ErrorIs(t, err, vault.ErrEmptySupply)

	claims := f.deposit(t, alice, 1_000_000, 1_000_000)

	_, err = f.vault.Withdraw(alice, sdkmath.ZeroInt(), asset1, sdkmath.ZeroInt(), f.deadline())
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = f.vault.Withdraw(alice, claims.AddRaw(1), asset1, sdkmath.ZeroInt(), f.deadline())
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = f.vault.Withdraw(alice, claims, "uosmo", sdkmath.ZeroInt(), f.deadline())
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = f.vault.Withdraw(alice, claims, asset1, sdkmath.ZeroInt(), f.now.Add(-time.Second))
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = f.vault.Withdraw(alice, claims, asset1, sdkmath.NewInt(3_000_000), f.deadline())
	assert.ErrorIs(t, err, vault.ErrSlippageExceeded)
}

func TestRebalanceRecentersStalePosition(t *testing.T) {
	f := newFixture(t, 0)
	f.deposit(t, alice, 1_000_000, 1_000_000)

	needs, err := f.vault.NeedsUpdate()
	require.NoError(t, err)
	assert.False(t, needs)

	require.NoError(t, f.venue.SetPriceTick(400))
	needs, err = f.vault.NeedsUpdate()
	require.NoError(t, err)
	assert.True(t, needs, "price left the actual range")

	in, err := f.vault.PriceInActualRange()
	require.NoError(t, err)
	assert.False(t, in)

	repositioned, err := f.vault.Rebalance()
	require.NoError(t, err)
	assert.True(t, repositioned)

	lower, upper := f.vault.DesiredRange()
	assert.Equal(t, int64(60), lower)
	assert.Equal(t, int64(660), upper)
	al, au, err := f.vault.ActualRange()
	require.NoError(t, err)
	assert.Equal(t, lower, al)
	assert.Equal(t, upper, au)

	needs, err = f.vault.NeedsUpdate()
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestRebalanceIdempotentWhenHealthy(t *testing.T) {
	f := newFixture(t, 0)
	f.deposit(t, alice, 1_000_000, 1_000_000)

	positionID := f.vault.PositionID()
	liquidityBefore, err := f.vault.PositionLiquidity()
	require.NoError(t, err)

	repositioned, err := f.vault.Rebalance()
	require.NoError(t, err)
	assert.False(t, repositioned)

	// Same position; at most rounding dust gets compounded in.
	assert.Equal(t, positionID, f.vault.PositionID())
	liquidityAfter, err := f.vault.PositionLiquidity()
	require.NoError(t, err)
	drift := liquidityAfter.Sub(liquidityBefore)
	assert.False(t, drift.IsNegative(), "liquidity %s -> %s", liquidityBefore, liquidityAfter)
	assert.True(t, drift.LT(sdkmath.NewInt(10_000)), "dust drift only: %s", drift)
}

func TestRebalanceCompoundsCollectedFees(t *testing.T) {
	f := newFixture(t, 0)
	f.deposit(t, alice, 1_000_000, 1_000_000)

	priceBefore, err := f.vault.ClaimPrice(asset1)
	require.NoError(t, err)

	require.NoError(t, f.venue.AccrueFees(f.vault.PositionID(),
		sdkmath.NewInt(10_000), sdkmath.NewInt(10_000)))

	_, err = f.vault.Rebalance()
	require.NoError(t, err)

	priceAfter, err := f.vault.ClaimPrice(asset1)
	require.NoError(t, err)
	assert.True(t, priceAfter.GT(priceBefore), "claim price %s -> %s", priceBefore, priceAfter)
}

func TestDepositWithPendingYieldCreditsHolders(t *testing.T) {
	f := newFixture(t, 0)
	f.deposit(t, alice, 1_000_000, 1_000_000)

	// Yield accrues on alice's position before bob shows up. His mint must
	// be priced against a value snapshot that already includes it.
	require.NoError(t, f.venue.AccrueFees(f.vault.PositionID(),
		sdkmath.NewInt(200_000), sdkmath.NewInt(200_000)))
	f.deposit(t, bob, 1_000_000, 1_000_000)

	tv, err := f.vault.TotalValue(asset1)
	require.NoError(t, err)
	supply, err := f.ledger.TotalSupply()
	require.NoError(t, err)
	aliceClaims, err := f.ledger.BalanceOf(alice)
	require.NoError(t, err)
	bobClaims, err := f.ledger.BalanceOf(bob)
	require.NoError(t, err)

	bobValue := tv.Mul(bobClaims).Quo(supply)
	assert.True(t, bobValue.LTE(sdkmath.NewInt(2_010_000)),
		"bob redeems only what he contributed: %s", bobValue)
	assert.True(t, bobValue.GTE(sdkmath.NewInt(1_950_000)))

	aliceValue := tv.Mul(aliceClaims).Quo(supply)
	assert.True(t, aliceValue.GTE(sdkmath.NewInt(2_330_000)),
		"alice keeps her accrued yield: %s", aliceValue)
}

func TestWithdrawIncludesPendingYield(t *testing.T) {
	f := newFixture(t, 0)
	claims := f.deposit(t, alice, 1_000_000, 1_000_000)

	require.NoError(t, f.venue.AccrueFees(f.vault.PositionID(),
		sdkmath.NewInt(200_000), sdkmath.NewInt(200_000)))

	// Half the claims redeem half the deposit plus half the pending yield.
	half := claims.QuoRaw(2)
	net, err := f.vault.Withdraw(alice, half, asset1, sdkmath.ZeroInt(), f.deadline())
	require.NoError(t, err)
	assert.True(t, net.GTE(sdkmath.NewInt(1_150_000)), "payout includes yield: %s", net)
	assert.True(t, net.LTE(sdkmath.NewInt(1_210_000)))
}

func TestSwapSlippageExceeded(t *testing.T) {
	f := newFixture(t, 0)
	claims := f.deposit(t, alice, 1_000_000, 1_000_000)

	// Shave 2% off swap output, well past the 0.5% tolerance.
	f.venue.SetSwapHaircutBps(200)

	_, err := f.vault.Withdraw(alice, claims, asset1, sdkmath.ZeroInt(), f.deadline())
	assert.ErrorIs(t, err, vault.ErrSlippageExceeded)
}

func TestOwnerGatedSetters(t *testing.T) {
	f := newFixture(t, 0)

	assert.ErrorIs(t, f.vault.SetFeeNumerator(alice, 1_000), vault.ErrUnauthorized)
	assert.ErrorIs(t, f.vault.SetSlippageNumerator(alice, 1_000), vault.ErrUnauthorized)
	assert.ErrorIs(t, f.vault.SetDesiredTickRange(alice, 1_200), vault.ErrUnauthorized)

	assert.ErrorIs(t, f.vault.SetFeeNumerator(testOwner, 1_000_000), vault.ErrInvalidInput)
	assert.ErrorIs(t, f.vault.SetFeeNumerator(testOwner, 0), vault.ErrInvalidInput, "unchanged value")
	assert.ErrorIs(t, f.vault.SetDesiredTickRange(testOwner, 90), vault.ErrInvalidInput)
	assert.ErrorIs(t, f.vault.SetDesiredTickRange(testOwner, 600), vault.ErrInvalidInput, "unchanged value")

	require.NoError(t, f.vault.SetFeeNumerator(testOwner, 10_000))
	require.NoError(t, f.vault.SetSlippageNumerator(testOwner, 20_000))
	cfg := f.vault.Config()
	assert.Equal(t, uint64(10_000), cfg.ProtocolFeeNumerator)
	assert.Equal(t, uint64(20_000), cfg.SlippageNumerator)
}

func TestSetDesiredTickRangeRecenters(t *testing.T) {
	f := newFixture(t, 0)
	f.deposit(t, alice, 1_000_000, 1_000_000)

	require.NoError(t, f.vault.SetDesiredTickRange(testOwner, 1_200))
	lower, upper := f.vault.DesiredRange()
	assert.Equal(t, int64(-600), lower)
	assert.Equal(t, int64(600), upper)

	// The live position still has the old bounds until the next rebalance.
	needs, err := f.vault.NeedsUpdate()
	require.NoError(t, err)
	assert.True(t, needs)

	repositioned, err := f.vault.Rebalance()
	require.NoError(t, err)
	assert.True(t, repositioned)
	al, au, err := f.vault.ActualRange()
	require.NoError(t, err)
	assert.Equal(t, lower, al)
	assert.Equal(t, upper, au)
}

func TestQueriesWithoutPosition(t *testing.T) {
	f := newFixture(t, 0)

	_, _, err := f.vault.ActualRange()
	assert.ErrorIs(t, err, vault.ErrNoPosition)

	_, err = f.vault.PositionLiquidity()
	assert.ErrorIs(t, err, vault.ErrNoPosition)

	_, err = f.vault.PriceInActualRange()
	assert.ErrorIs(t, err, vault.ErrNoPosition)

	needs, err := f.vault.NeedsUpdate()
	require.NoError(t, err)
	assert.False(t, needs, "no position cannot be stale")

	in, err := f.vault.PriceInDesiredRange()
	require.NoError(t, err)
	assert.True(t, in, "desired range centers on the current tick")
}

func TestSummary(t *testing.T) {
	f := newFixture(t, 0)
	f.deposit(t, alice, 1_000_000, 1_000_000)

	s, err := f.vault.Summary()
	require.NoError(t, err)

	assert.Equal(t, int64(0), s.CurrentTick)
	assert.Equal(t, f.vault.PositionID(), s.PositionID)
	assert.Equal(t, int64(-300), s.DesiredTickLower)
	assert.Equal(t, int64(300), s.DesiredTickUpper)
	assert.Equal(t, s.DesiredTickLower, s.ActualTickLower)
	assert.Equal(t, s.DesiredTickUpper, s.ActualTickUpper)
	assert.Equal(t, vault.BootstrapClaims.String(), s.ClaimSupply)
	assert.NotEmpty(t, s.ClaimPrice0)
	assert.NotEmpty(t, s.ClaimPrice1)
	assert.False(t, s.NeedsUpdate)
}
