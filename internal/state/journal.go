// ./internal/state/journal.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/lumefi/bridgepool/internal/types"
)

// SaveEpochSnapshot saves an engine tick snapshot to the database.
func SaveEpochSnapshot(snapshot types.EpochSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	vaultsJSON, err := json.Marshal(snapshot.Vaults)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal vaults: %w", err)
	}

	query := `
		INSERT INTO epoch_snapshots (
			tick_number, snapshot_timestamp,
			pending_deposits, near_total_shares, far_total_shares, far_total_value,
			pool_token_value, swept_amount, executed_batch, messages_relayed, vaults
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING snapshot_id;
	`

	var executedBatch sql.NullInt64
	if snapshot.ExecutedBatch != 0 {
		executedBatch = sql.NullInt64{Int64: int64(snapshot.ExecutedBatch), Valid: true}
	}

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.TickNumber, snapshot.Timestamp,
		snapshot.PendingDeposits.String(), snapshot.NearTotalShares.String(),
		snapshot.FarTotalShares.String(), snapshot.FarTotalValue.String(),
		snapshot.PoolTokenValue, snapshot.SweptAmount.String(),
		executedBatch, snapshot.MessagesRelayed, vaultsJSON,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save epoch snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("tick_number", snapshot.TickNumber).
		Msg("Epoch snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns the latest limit snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.EpochSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT tick_number, snapshot_timestamp,
			pending_deposits, near_total_shares, far_total_shares, far_total_value,
			pool_token_value, swept_amount, executed_batch, messages_relayed, vaults
		FROM epoch_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query epoch snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.EpochSnapshot
	for rows.Next() {
		var (
			snapshot      types.EpochSnapshot
			pending       string
			nearShares    string
			farShares     string
			farValue      string
			swept         string
			executedBatch sql.NullInt64
			vaultsJSON    []byte
		)
		if err := rows.Scan(
			&snapshot.TickNumber, &snapshot.Timestamp,
			&pending, &nearShares, &farShares, &farValue,
			&snapshot.PoolTokenValue, &swept, &executedBatch,
			&snapshot.MessagesRelayed, &vaultsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan epoch snapshot: %w", err)
		}

		if snapshot.PendingDeposits, err = parseAmount(pending); err != nil {
			return nil, err
		}
		if snapshot.NearTotalShares, err = parseAmount(nearShares); err != nil {
			return nil, err
		}
		if snapshot.FarTotalShares, err = parseAmount(farShares); err != nil {
			return nil, err
		}
		if snapshot.FarTotalValue, err = parseAmount(farValue); err != nil {
			return nil, err
		}
		if snapshot.SweptAmount, err = parseAmount(swept); err != nil {
			return nil, err
		}
		if executedBatch.Valid {
			snapshot.ExecutedBatch = types.BatchID(executedBatch.Int64)
		}
		if len(vaultsJSON) > 0 {
			if err := json.Unmarshal(vaultsJSON, &snapshot.Vaults); err != nil {
				return nil, fmt.Errorf("failed to unmarshal vaults: %w", err)
			}
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// UpsertWithdrawalVault persists the current state of one withdrawal vault.
func UpsertWithdrawalVault(vault types.WithdrawalVault) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO withdrawal_vaults (batch_id, unclaimed_shares, original_shares, token_balance, transfer_status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (batch_id) DO UPDATE SET
			unclaimed_shares = EXCLUDED.unclaimed_shares,
			original_shares = EXCLUDED.original_shares,
			token_balance = EXCLUDED.token_balance,
			transfer_status = EXCLUDED.transfer_status,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := DB.Exec(query,
		int64(vault.ID), vault.UnclaimedShares.String(), vault.OriginalShares.String(),
		vault.TokenBalance.String(), vault.Status.String(), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert withdrawal vault %d: %w", vault.ID, err)
	}
	return nil
}

// RecordSettlement appends a batch settlement to the journal. The unique
// constraint on batch_id makes redelivered settlements harmless here too.
func RecordSettlement(batchID types.BatchID, realized math.Int, settledAt time.Time) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO settlement_journal (batch_id, realized_amount, settled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_id) DO NOTHING;
	`
	_, err := DB.Exec(query, int64(batchID), realized.String(), settledAt)
	if err != nil {
		return fmt.Errorf("failed to record settlement for batch %d: %w", batchID, err)
	}
	return nil
}

// IncrementTickNumber increments and returns the persistent engine tick
// counter.
func IncrementTickNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		UPDATE tick_counter
		SET current_tick = current_tick + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_tick;
	`
	var tick int
	if err := DB.QueryRow(query).Scan(&tick); err != nil {
		return 0, fmt.Errorf("failed to increment tick counter: %w", err)
	}
	return tick, nil
}

func parseAmount(value string) (math.Int, error) {
	amount, ok := math.NewIntFromString(value)
	if !ok {
		return math.ZeroInt(), fmt.Errorf("invalid amount in database: %q", value)
	}
	return amount, nil
}
