/*

Read-model over the near pool's withdrawal vault ledger. Joins a holder's
per-batch stake with the vault state to produce claimability summaries for the
web API. No side effects.

*/

package query

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/lumefi/bridgepool/internal/types"
)

// WithdrawalReader is the projection surface the summary query needs from the
// near pool.
type WithdrawalReader interface {
	WithdrawalsForAddress(holder types.Address) []types.BatchID
	WithdrawableBalance(holder types.Address, batchID types.BatchID) math.Int
	HasClaimableWithdrawal(holder types.Address, batchID types.BatchID) bool
	WithdrawalVault(batchID types.BatchID) (types.WithdrawalVault, error)
}

// WithdrawalSummaryQuery aggregates a holder's withdrawals into rows.
type WithdrawalSummaryQuery struct {
	pool WithdrawalReader
}

// NewWithdrawalSummaryQuery wires the query to its pool projection.
func NewWithdrawalSummaryQuery(pool WithdrawalReader) *WithdrawalSummaryQuery {
	return &WithdrawalSummaryQuery{pool: pool}
}

// Summaries returns one AddressWithdrawal per batch the holder participated
// in, in enrollment order.
func (q *WithdrawalSummaryQuery) Summaries(holder types.Address) ([]types.AddressWithdrawal, error) {
	batchIDs := q.pool.WithdrawalsForAddress(holder)

	summaries := make([]types.AddressWithdrawal, 0, len(batchIDs))
	for _, batchID := range batchIDs {
		vault, err := q.pool.WithdrawalVault(batchID)
		if err != nil {
			return nil, fmt.Errorf("vault lookup for batch %d failed: %w", batchID, err)
		}

		stake := q.pool.WithdrawableBalance(holder, batchID)
		summaries = append(summaries, types.AddressWithdrawal{
			BatchID:         batchID,
			UnclaimedShares: stake,
			Claimable:       q.pool.HasClaimableWithdrawal(holder, batchID),
			Claimed:         stake.IsZero(),
			TokensToReceive: tokensToReceive(vault, stake),
			TransferStatus:  vault.Status,
		})
	}
	return summaries, nil
}

// tokensToReceive computes the holder's proportional entitlement. Zero while
// the transfer has not completed, and zero (not a fault) when the vault's
// original share denominator is zero.
func tokensToReceive(vault types.WithdrawalVault, stake math.Int) math.Int {
	if vault.Status != types.TransferCompleted {
		return math.ZeroInt()
	}
	if !vault.OriginalShares.IsPositive() {
		return math.ZeroInt()
	}
	return stake.Mul(vault.TokenBalance).Quo(vault.OriginalShares)
}
