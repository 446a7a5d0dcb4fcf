/*

This file contains the core vault: construction, owner-gated configuration,
and the read surface consumed by the keeper and the web dashboard. The
state-changing flows live in accounting.go (deposit/withdraw) and
rebalance.go (the position engine); pricing helpers live in valuation.go.

The vault never talks to a live chain directly. Everything external comes in
through the three injected interfaces in internal/venue: the position venue
(concentrated-liquidity pool), the swap venue, and the claim-token ledger.

*/

package vault

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/tbwebb22/gandalf-protocol/internal/logger"
	"github.com/tbwebb22/gandalf-protocol/internal/tickmath"
	"github.com/tbwebb22/gandalf-protocol/internal/types"
	"github.com/tbwebb22/gandalf-protocol/internal/venue"
)

const (
	// FeeDenominator scales ProtocolFeeNumerator: fee = amount * num / 1e6.
	FeeDenominator = uint64(1_000_000)
	// SlippageDenominator scales SlippageNumerator the same way.
	SlippageDenominator = uint64(1_000_000)
)

// BootstrapClaims is minted to the first depositor (1e18 base units), fixing
// the initial claim price at totalValue / 1e18.
var BootstrapClaims = sdkmath.NewIntWithDecimal(1, 18)

// PriceScale is the 1e18 fixed-point scale of reported claim prices.
var PriceScale = sdkmath.NewIntWithDecimal(1, 18)

// PoolConfig is the owner-tunable policy plus the desired range derived
// from it. DesiredTickLower/Upper are recomputed, never set directly.
type PoolConfig struct {
	ProtocolFeeNumerator uint64 `json:"protocol_fee_numerator"`
	SlippageNumerator    uint64 `json:"slippage_numerator"`
	DesiredTickRange     int64  `json:"desired_tick_range"`
	DesiredTickLower     int64  `json:"desired_tick_lower"`
	DesiredTickUpper     int64  `json:"desired_tick_upper"`
}

// Config carries everything New needs to assemble a vault.
type Config struct {
	Owner       string
	Asset0Denom string
	Asset1Denom string

	ProtocolFeeNumerator uint64
	SlippageNumerator    uint64
	DesiredTickRange     int64

	Positions venue.PositionVenue
	Swapper   venue.SwapVenue
	Ledger    venue.ShareLedger

	// Now is the clock used for deadline checks. Defaults to time.Now.
	Now func() time.Time
}

// Vault manages a single concentrated-liquidity position plus idle reserves
// on behalf of claim-token holders. All exported methods are safe for
// concurrent use.
type Vault struct {
	mu     sync.Mutex
	logger zerolog.Logger

	owner  string
	asset0 string
	asset1 string

	positions venue.PositionVenue
	swapper   venue.SwapVenue
	ledger    venue.ShareLedger

	cfg PoolConfig

	tickSpacing int64

	reserve0 sdkmath.Int
	reserve1 sdkmath.Int

	// positionID is the venue position the vault owns, 0 when none.
	positionID uint64

	now func() time.Time
}

// New validates the configuration, reads the venue's tick spacing and
// current price, and centers the initial desired range on the spot tick.
func New(cfg Config) (*Vault, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("%w: owner address is required", ErrInvalidInput)
	}
	if cfg.Asset0Denom == "" || cfg.Asset1Denom == "" || cfg.Asset0Denom == cfg.Asset1Denom {
		return nil, fmt.Errorf("%w: asset denoms must be set and distinct", ErrInvalidInput)
	}
	if cfg.ProtocolFeeNumerator >= FeeDenominator {
		return nil, fmt.Errorf("%w: protocol fee numerator %d out of range", ErrInvalidInput, cfg.ProtocolFeeNumerator)
	}
	if cfg.SlippageNumerator >= SlippageDenominator {
		return nil, fmt.Errorf("%w: slippage numerator %d out of range", ErrInvalidInput, cfg.SlippageNumerator)
	}
	if cfg.Positions == nil || cfg.Swapper == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: position venue, swap venue and ledger are required", ErrInvalidInput)
	}

	spacing, err := cfg.Positions.TickSpacing()
	if err != nil {
		return nil, fmt.Errorf("%w: tick spacing: %v", ErrVenueFailure, err)
	}
	if !tickmath.IsRangeValid(cfg.DesiredTickRange, spacing) {
		return nil, fmt.Errorf("%w: desired tick range %d is not valid for spacing %d",
			ErrInvalidInput, cfg.DesiredTickRange, spacing)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	v := &Vault{
		logger:    logger.GetForComponent("vault"),
		owner:     cfg.Owner,
		asset0:    cfg.Asset0Denom,
		asset1:    cfg.Asset1Denom,
		positions: cfg.Positions,
		swapper:   cfg.Swapper,
		ledger:    cfg.Ledger,
		cfg: PoolConfig{
			ProtocolFeeNumerator: cfg.ProtocolFeeNumerator,
			SlippageNumerator:    cfg.SlippageNumerator,
			DesiredTickRange:     cfg.DesiredTickRange,
		},
		tickSpacing: spacing,
		reserve0:    sdkmath.ZeroInt(),
		reserve1:    sdkmath.ZeroInt(),
		now:         now,
	}

	snap, err := v.snapshotMarket()
	if err != nil {
		return nil, err
	}
	if err := v.recenterDesiredRange(snap.tick); err != nil {
		return nil, err
	}

	v.logger.Info().
		Str("asset0", v.asset0).
		Str("asset1", v.asset1).
		Int64("tick_spacing", spacing).
		Int64("desired_tick_lower", v.cfg.DesiredTickLower).
		Int64("desired_tick_upper", v.cfg.DesiredTickUpper).
		Msg("Vault initialized")
	return v, nil
}

// recenterDesiredRange recomputes the desired bounds around currentTick.
// Caller holds the lock (or is the constructor).
func (v *Vault) recenterDesiredRange(currentTick int64) error {
	lower, upper, err := tickmath.ComputeDesiredRange(currentTick, v.tickSpacing, v.cfg.DesiredTickRange)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	v.cfg.DesiredTickLower = lower
	v.cfg.DesiredTickUpper = upper
	return nil
}

func (v *Vault) requireOwner(caller string) error {
	if caller != v.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	return nil
}

// SetFeeNumerator updates the protocol fee. Owner only; the new value must
// differ from the current one and stay below the denominator.
func (v *Vault) SetFeeNumerator(caller string, numerator uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if numerator >= FeeDenominator {
		return fmt.Errorf("%w: fee numerator %d out of range", ErrInvalidInput, numerator)
	}
	if numerator == v.cfg.ProtocolFeeNumerator {
		return fmt.Errorf("%w: fee numerator unchanged", ErrInvalidInput)
	}
	v.logger.Info().Uint64("old", v.cfg.ProtocolFeeNumerator).Uint64("new", numerator).Msg("Protocol fee updated")
	v.cfg.ProtocolFeeNumerator = numerator
	return nil
}

// SetSlippageNumerator updates the swap slippage tolerance. Owner only.
func (v *Vault) SetSlippageNumerator(caller string, numerator uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if numerator >= SlippageDenominator {
		return fmt.Errorf("%w: slippage numerator %d out of range", ErrInvalidInput, numerator)
	}
	if numerator == v.cfg.SlippageNumerator {
		return fmt.Errorf("%w: slippage numerator unchanged", ErrInvalidInput)
	}
	v.logger.Info().Uint64("old", v.cfg.SlippageNumerator).Uint64("new", numerator).Msg("Slippage tolerance updated")
	v.cfg.SlippageNumerator = numerator
	return nil
}

// SetDesiredTickRange updates the target range width and immediately
// recenters the desired bounds on the current spot tick. The live position
// is not touched here; the next rebalance migrates it.
func (v *Vault) SetDesiredTickRange(caller string, width int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if !tickmath.IsRangeValid(width, v.tickSpacing) {
		return fmt.Errorf("%w: tick range %d is not valid for spacing %d", ErrInvalidInput, width, v.tickSpacing)
	}
	if width == v.cfg.DesiredTickRange {
		return fmt.Errorf("%w: desired tick range unchanged", ErrInvalidInput)
	}

	snap, err := v.snapshotMarket()
	if err != nil {
		return err
	}
	old := v.cfg.DesiredTickRange
	v.cfg.DesiredTickRange = width
	if err := v.recenterDesiredRange(snap.tick); err != nil {
		v.cfg.DesiredTickRange = old
		return err
	}
	v.logger.Info().
		Int64("old", old).
		Int64("new", width).
		Int64("desired_tick_lower", v.cfg.DesiredTickLower).
		Int64("desired_tick_upper", v.cfg.DesiredTickUpper).
		Msg("Desired tick range updated")
	return nil
}

// Owner returns the vault owner address.
func (v *Vault) Owner() string { return v.owner }

// Assets returns the pair denoms in venue order.
func (v *Vault) Assets() (string, string) { return v.asset0, v.asset1 }

// Config returns a copy of the current pool configuration.
func (v *Vault) Config() PoolConfig {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cfg
}

// Reserves returns the idle (undeployed) asset balances.
func (v *Vault) Reserves() (sdkmath.Int, sdkmath.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reserve0, v.reserve1
}

// PositionID returns the live venue position ID, 0 when none exists.
func (v *Vault) PositionID() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.positionID
}

// CurrentTick returns the venue's spot tick.
func (v *Vault) CurrentTick() (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return 0, err
	}
	return snap.tick, nil
}

// DesiredRange returns the policy target bounds.
func (v *Vault) DesiredRange() (int64, int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cfg.DesiredTickLower, v.cfg.DesiredTickUpper
}

// ActualRange returns the live position's bounds, or ErrNoPosition.
func (v *Vault) ActualRange() (int64, int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	info, err := v.livePosition()
	if err != nil {
		return 0, 0, err
	}
	return info.TickLower, info.TickUpper, nil
}

// PositionLiquidity returns the live position's liquidity, or ErrNoPosition.
func (v *Vault) PositionLiquidity() (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	info, err := v.livePosition()
	if err != nil {
		return sdkmath.Int{}, err
	}
	return info.Liquidity, nil
}

// livePosition fetches the venue position. Caller holds the lock.
func (v *Vault) livePosition() (venue.PositionInfo, error) {
	if v.positionID == 0 {
		return venue.PositionInfo{}, ErrNoPosition
	}
	info, err := v.positions.PositionInfo(v.positionID)
	if err != nil {
		return venue.PositionInfo{}, fmt.Errorf("%w: position info: %v", ErrVenueFailure, err)
	}
	return info, nil
}

// TotalValue prices all vault holdings (reserves plus position) in denom.
func (v *Vault) TotalValue(denom string) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return sdkmath.Int{}, err
	}
	return v.totalValue(snap, denom)
}

// ClaimPrice reports the value of one claim token (scaled by 1e18) in denom.
func (v *Vault) ClaimPrice(denom string) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return sdkmath.Int{}, err
	}
	return v.claimPrice(snap, denom)
}

// NeedsUpdate reports whether the live position's bounds have drifted from
// the desired range or the price left the actual range. False when no
// position exists.
func (v *Vault) NeedsUpdate() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return false, err
	}
	return v.needsUpdateAt(snap)
}

// PriceInDesiredRange reports whether the current tick sits inside the
// desired range, bounds inclusive.
func (v *Vault) PriceInDesiredRange() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return false, err
	}
	return priceInRange(snap.tick, v.cfg.DesiredTickLower, v.cfg.DesiredTickUpper), nil
}

// PriceInActualRange reports whether the current tick sits inside the live
// position's bounds. Fails with ErrNoPosition when no position exists.
func (v *Vault) PriceInActualRange() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return false, err
	}
	info, err := v.livePosition()
	if err != nil {
		return false, err
	}
	return priceInRange(snap.tick, info.TickLower, info.TickUpper), nil
}

// Summary assembles the full dashboard view in one locked pass.
func (v *Vault) Summary() (types.VaultSummary, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap, err := v.snapshotMarket()
	if err != nil {
		return types.VaultSummary{}, err
	}

	s := types.VaultSummary{
		Timestamp:            v.now().UTC(),
		CurrentTick:          snap.tick,
		SqrtPriceX96:         snap.sqrtPriceX96.String(),
		DesiredTickLower:     v.cfg.DesiredTickLower,
		DesiredTickUpper:     v.cfg.DesiredTickUpper,
		PositionID:           v.positionID,
		PositionLiquidity:    "0",
		Reserve0:             v.reserve0.String(),
		Reserve1:             v.reserve1.String(),
		ProtocolFeeNumerator: v.cfg.ProtocolFeeNumerator,
		SlippageNumerator:    v.cfg.SlippageNumerator,
		DesiredTickRange:     v.cfg.DesiredTickRange,
	}

	if v.positionID != 0 {
		info, err := v.livePosition()
		if err != nil {
			return types.VaultSummary{}, err
		}
		s.ActualTickLower = info.TickLower
		s.ActualTickUpper = info.TickUpper
		s.PositionLiquidity = info.Liquidity.String()
	}

	tv0, err := v.totalValue(snap, v.asset0)
	if err != nil {
		return types.VaultSummary{}, err
	}
	tv1, err := v.totalValue(snap, v.asset1)
	if err != nil {
		return types.VaultSummary{}, err
	}
	s.TotalValue0 = tv0.String()
	s.TotalValue1 = tv1.String()

	supply, err := v.ledger.TotalSupply()
	if err != nil {
		return types.VaultSummary{}, fmt.Errorf("%w: total supply: %v", ErrVenueFailure, err)
	}
	s.ClaimSupply = supply.String()
	if supply.IsPositive() {
		p0, err := v.claimPrice(snap, v.asset0)
		if err != nil {
			return types.VaultSummary{}, err
		}
		p1, err := v.claimPrice(snap, v.asset1)
		if err != nil {
			return types.VaultSummary{}, err
		}
		s.ClaimPrice0 = p0.String()
		s.ClaimPrice1 = p1.String()
	}

	needsUpdate, err := v.needsUpdateAt(snap)
	if err != nil {
		return types.VaultSummary{}, err
	}
	s.NeedsUpdate = needsUpdate
	return s, nil
}

// desiredSqrtBounds returns the sqrt prices at the desired bounds.
// Caller holds the lock.
func (v *Vault) desiredSqrtBounds() (*big.Int, *big.Int, error) {
	sqrtA, err := tickmath.GetSqrtRatioAtTick(v.cfg.DesiredTickLower)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	sqrtB, err := tickmath.GetSqrtRatioAtTick(v.cfg.DesiredTickUpper)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return sqrtA, sqrtB, nil
}
