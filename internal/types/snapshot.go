package types

import (
	"time"

	"cosmossdk.io/math"
)

// EpochSnapshot is the engine's per-tick record of pool state, persisted to
// the journal and served by the web API.
type EpochSnapshot struct {
	TickNumber      int               `json:"tick_number"`
	Timestamp       time.Time         `json:"timestamp"`
	PendingDeposits math.Int          `json:"pending_deposits"`
	NearTotalShares math.Int          `json:"near_total_shares"`
	FarTotalShares  math.Int          `json:"far_total_shares"`
	FarTotalValue   math.Int          `json:"far_total_value"`
	PoolTokenValue  string            `json:"pool_token_value"`
	SweptAmount     math.Int          `json:"swept_amount"`
	ExecutedBatch   BatchID           `json:"executed_batch,omitempty"`
	MessagesRelayed int               `json:"messages_relayed"`
	Vaults          []WithdrawalVault `json:"vaults"`
}
