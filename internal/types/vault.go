/*

This file contains the shared data types for vault observability: the summary
served by the web dashboard and the per-cycle snapshot persisted by the
keeper. Core vault state lives in internal/vault; these are read models.

*/

package types

import (
	"time"
)

// VaultSummary is a point-in-time view of every externally observable vault
// quantity. All amounts are decimal strings of base units.
type VaultSummary struct {
	Timestamp        time.Time `json:"timestamp"`
	CurrentTick      int64     `json:"current_tick"`
	SqrtPriceX96     string    `json:"sqrt_price_x96"`
	DesiredTickLower int64     `json:"desired_tick_lower"`
	DesiredTickUpper int64     `json:"desired_tick_upper"`
	ActualTickLower  int64     `json:"actual_tick_lower"`
	ActualTickUpper  int64     `json:"actual_tick_upper"`
	PositionID       uint64    `json:"position_id"`
	PositionLiquidity string   `json:"position_liquidity"`
	Reserve0         string    `json:"reserve0"`
	Reserve1         string    `json:"reserve1"`
	TotalValue0      string    `json:"total_value0"`
	TotalValue1      string    `json:"total_value1"`
	ClaimSupply      string    `json:"claim_supply"`
	ClaimPrice0      string    `json:"claim_price0,omitempty"`
	ClaimPrice1      string    `json:"claim_price1,omitempty"`
	NeedsUpdate      bool      `json:"needs_update"`

	ProtocolFeeNumerator uint64 `json:"protocol_fee_numerator"`
	SlippageNumerator    uint64 `json:"slippage_numerator"`
	DesiredTickRange     int64  `json:"desired_tick_range"`
}

// RebalanceSnapshot records one keeper cycle: the vault state before and
// after the rebalance trigger, and whether the position was re-minted.
type RebalanceSnapshot struct {
	SnapshotID   int64        `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	CycleNumber  int          `json:"cycle_number"`
	CycleID      string       `json:"cycle_id"`
	Timestamp    time.Time    `json:"timestamp"`
	TriggeredBy  string       `json:"triggered_by"` // "keeper", "deposit", "withdraw"
	Before       VaultSummary `json:"before"`
	After        VaultSummary `json:"after"`
	Repositioned bool         `json:"repositioned"`
	Success      bool         `json:"success"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// ConfigChange records one owner mutation of the pool configuration.
type ConfigChange struct {
	ChangeID  int64     `json:"change_id,omitempty"` // Auto-incremented by DB
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedBy string    `json:"changed_by"`
}
