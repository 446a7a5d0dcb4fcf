/*

This file contains the keeper: the scheduled driver that runs a rebalance
cycle against the vault on a fixed interval and records a before/after
snapshot of every cycle to the database.

The keeper holds no vault state of its own. Each cycle is: read the vault
summary, trigger the rebalance engine, read the summary again, persist the
pair. A failed cycle is recorded with its error and the loop carries on.

*/

package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbwebb22/gandalf-protocol/internal/logger"
	"github.com/tbwebb22/gandalf-protocol/internal/state"
	"github.com/tbwebb22/gandalf-protocol/internal/types"
	"github.com/tbwebb22/gandalf-protocol/internal/vault"
)

// Keeper drives periodic rebalance cycles against a single vault.
type Keeper struct {
	logger zerolog.Logger
	vault  *vault.Vault

	// persist toggles database snapshot writes; disabled when no DB is up.
	persist bool
}

// Config holds the configuration for creating a new Keeper instance
type Config struct {
	Vault *vault.Vault

	// Persist enables writing cycle snapshots to the database.
	Persist bool
}

// New creates a Keeper with dependency injection.
func New(cfg Config) (*Keeper, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("vault cannot be nil")
	}
	k := &Keeper{
		logger:  logger.GetForComponent("keeper"),
		vault:   cfg.Vault,
		persist: cfg.Persist,
	}
	k.logger.Info().Bool("persist", cfg.Persist).Msg("Keeper instance created")
	return k, nil
}

// RunLoop starts the main keeper loop with the specified interval
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().
		Dur("interval", interval).
		Msg("Starting keeper main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	k.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.RunCycle(ctx)
		}
	}
}

// RunCycle executes one complete rebalance cycle.
func (k *Keeper) RunCycle(ctx context.Context) {
	cycleStartTime := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := k.logger.With().Str("cycle_id", cycleID).Logger()

	cycleLogger.Info().Msg("--- Starting keeper cycle ---")

	snapshot := types.RebalanceSnapshot{
		CycleNumber: k.nextCycleNumber(cycleLogger),
		CycleID:     cycleID,
		Timestamp:   cycleStartTime,
		TriggeredBy: "keeper",
	}

	before, err := k.vault.Summary()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to read vault summary")
		snapshot.ErrorMessage = err.Error()
		k.saveSnapshot(cycleLogger, snapshot)
		return
	}
	snapshot.Before = before

	cycleLogger.Info().
		Int64("current_tick", before.CurrentTick).
		Bool("needs_update", before.NeedsUpdate).
		Str("total_value1", before.TotalValue1).
		Msg("Vault state assessed")

	repositioned, err := k.vault.Rebalance()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Rebalance failed")
		snapshot.ErrorMessage = err.Error()
		k.saveSnapshot(cycleLogger, snapshot)
		return
	}
	snapshot.Repositioned = repositioned

	after, err := k.vault.Summary()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to read vault summary after rebalance")
		snapshot.ErrorMessage = err.Error()
		k.saveSnapshot(cycleLogger, snapshot)
		return
	}
	snapshot.After = after
	snapshot.Success = true
	k.saveSnapshot(cycleLogger, snapshot)

	cycleLogger.Info().
		Bool("repositioned", repositioned).
		Dur("elapsed", time.Since(cycleStartTime)).
		Msg("--- Keeper cycle completed ---")
}

// nextCycleNumber advances the persistent counter, falling back to zero
// when persistence is off or the database is unreachable.
func (k *Keeper) nextCycleNumber(cycleLogger zerolog.Logger) int {
	if !k.persist {
		return 0
	}
	n, err := state.IncrementCycleNumber()
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to increment cycle counter, using 0")
		return 0
	}
	return n
}

func (k *Keeper) saveSnapshot(cycleLogger zerolog.Logger, snapshot types.RebalanceSnapshot) {
	if !k.persist {
		return
	}
	if _, err := state.SaveRebalanceSnapshot(snapshot); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist cycle snapshot")
	}
}
