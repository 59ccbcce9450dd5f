/*

Engine is the permissionless epoch keeper. Batch execution on the pools is
lazily gated on wall-clock periods, so something has to come along and tick;
the engine does that on an interval, pumps the in-process bridge queues, and
journals a snapshot of pool state after every tick.

Anyone could run this loop (or call the pool entrypoints directly); the engine
holds no privileged capability.

*/

package engine

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumefi/bridgepool/internal/logger"
	"github.com/lumefi/bridgepool/internal/pool"
	"github.com/lumefi/bridgepool/internal/state"
	"github.com/lumefi/bridgepool/internal/types"
)

// Relay is the message pump surface the engine needs from the bridge.
type Relay interface {
	DeliverAll() (int, error)
	Pending() int
}

// Engine drives epoch ticks across the pool pair.
type Engine struct {
	log   zerolog.Logger
	near  *pool.NearPool
	far   *pool.FarPool
	relay Relay

	// journal toggles persistence; disabled in tests and sim runs without a
	// database.
	journal bool

	tickCount int
}

// Config holds the configuration for creating a new Engine instance.
type Config struct {
	Near    *pool.NearPool
	Far     *pool.FarPool
	Relay   Relay
	Journal bool
}

// New creates an engine with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	return &Engine{
		log:     logger.GetForComponent("engine"),
		near:    cfg.Near,
		far:     cfg.Far,
		relay:   cfg.Relay,
		journal: cfg.Journal,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Near == nil {
		return fmt.Errorf("near pool cannot be nil")
	}
	if cfg.Far == nil {
		return fmt.Errorf("far pool cannot be nil")
	}
	if cfg.Relay == nil {
		return fmt.Errorf("relay cannot be nil")
	}
	return nil
}

// RunLoop starts the keeper loop with the specified interval.
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.log.Info().Dur("interval", interval).Msg("Starting keeper loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Tick()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick executes one keeper pass: relay, due batch executions, relay again,
// snapshot.
func (e *Engine) Tick() types.EpochSnapshot {
	e.tickCount++
	tickID := uuid.New().String()
	tickLogger := e.log.With().Str("tick_id", tickID).Logger()
	tickStart := time.Now()

	tickLogger.Info().Int("tick", e.tickCount).Msg("--- Starting keeper tick ---")

	snapshot := types.EpochSnapshot{
		TickNumber:  e.tickNumber(),
		Timestamp:   tickStart,
		SweptAmount: math.ZeroInt(),
	}

	// Step 1: drain anything the relay left queued since the last tick.
	relayed := e.pump(tickLogger)

	// Step 2: sweep pending deposits if the batch period elapsed.
	if e.near.BatchDepositDue() {
		swept, err := e.near.ExecuteBatchDeposit()
		if err != nil {
			tickLogger.Error().Err(err).Msg("Batch deposit execution failed")
		} else {
			snapshot.SweptAmount = swept
			tickLogger.Info().Str("amount", swept.String()).Msg("Step 2: Batch deposit executed")
		}
	}

	// Step 3: push the open withdrawal batch in transit if due.
	if e.near.BatchWithdrawalDue() {
		batchID, err := e.near.ExecuteBatchWithdrawal()
		if err != nil {
			tickLogger.Error().Err(err).Msg("Batch withdrawal execution failed")
		} else {
			snapshot.ExecutedBatch = batchID
			tickLogger.Info().Uint64("batch_id", uint64(batchID)).Msg("Step 3: Batch withdrawal executed")
		}
	}

	// Step 4: deliver the messages just produced, including the settlement
	// round trip back from the far pool.
	relayed += e.pump(tickLogger)
	snapshot.MessagesRelayed = relayed

	snapshot.PendingDeposits = e.near.ToDeposit()
	snapshot.NearTotalShares = e.near.TotalShares()
	snapshot.FarTotalShares = e.far.TotalShares()
	snapshot.FarTotalValue = e.far.TotalValue()
	snapshot.PoolTokenValue = e.far.PoolTokenValue().String()
	snapshot.Vaults = e.near.Vaults()

	e.persist(snapshot, tickLogger)

	tickLogger.Info().
		Str("tick_duration", time.Since(tickStart).String()).
		Int("messages_relayed", relayed).
		Str("pending_deposits", snapshot.PendingDeposits.String()).
		Msg("--- Keeper tick completed ---")
	return snapshot
}

func (e *Engine) pump(tickLogger zerolog.Logger) int {
	if e.relay.Pending() == 0 {
		return 0
	}
	delivered, err := e.relay.DeliverAll()
	if err != nil {
		tickLogger.Error().Err(err).Msg("Bridge delivery failed")
	}
	return delivered
}

// tickNumber returns the persistent tick counter, falling back to the
// in-process count without a database.
func (e *Engine) tickNumber() int {
	if !e.journal {
		return e.tickCount
	}
	tick, err := state.IncrementTickNumber()
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to increment tick number, using fallback")
		return e.tickCount
	}
	return tick
}

func (e *Engine) persist(snapshot types.EpochSnapshot, tickLogger zerolog.Logger) {
	if !e.journal {
		return
	}

	if _, err := state.SaveEpochSnapshot(snapshot); err != nil {
		tickLogger.Error().Err(err).Msg("Failed to save epoch snapshot to database")
	}
	for _, vault := range snapshot.Vaults {
		if err := state.UpsertWithdrawalVault(vault); err != nil {
			tickLogger.Error().Err(err).Uint64("batch_id", uint64(vault.ID)).Msg("Failed to persist withdrawal vault")
		}
		if vault.Status == types.TransferCompleted {
			if err := state.RecordSettlement(vault.ID, vault.TokenBalance, snapshot.Timestamp); err != nil {
				tickLogger.Error().Err(err).Uint64("batch_id", uint64(vault.ID)).Msg("Failed to record settlement")
			}
		}
	}
}
