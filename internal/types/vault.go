/*

Domain types for the batched withdrawal ledger. A WithdrawalVault aggregates
one epoch's worth of burned shares and tracks the batch through the
cross-domain round trip until holders have claimed their payouts.

*/

package types

import (
	"cosmossdk.io/math"
)

// Address identifies a holder or a component (pool, gateway, messenger) on
// either domain. Plain opaque string; no checksumming is done here.
type Address string

func (a Address) String() string { return string(a) }

// BatchID identifies one withdrawal batch. Assigned monotonically by the near
// pool, never reused.
type BatchID uint64

// TransferStatus is the lifecycle of a withdrawal batch.
type TransferStatus uint8

const (
	// TransferPending: the vault is open and accepting withdrawal requests.
	TransferPending TransferStatus = iota
	// TransferInTransit: the aggregate redemption message has been sent to the
	// far pool; realized funds have not arrived yet.
	TransferInTransit
	// TransferCompleted: the settlement message arrived and the vault's token
	// balance is fixed. Holders may claim.
	TransferCompleted
)

func (s TransferStatus) String() string {
	switch s {
	case TransferPending:
		return "Pending"
	case TransferInTransit:
		return "InTransit"
	case TransferCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// WithdrawalVault is the ledger entry for one withdrawal batch.
type WithdrawalVault struct {
	ID BatchID `json:"batch_id"`

	// UnclaimedShares is the live total of shares burned into this batch that
	// have not yet been claimed out. Decremented per claim.
	UnclaimedShares math.Int `json:"unclaimed_shares"`

	// OriginalShares is the unclaimed-share total captured when the vault
	// completed. It is the immutable denominator for every claim computation;
	// using the live value would compound rounding drift as holders claim.
	OriginalShares math.Int `json:"original_shares"`

	// TokenBalance is the realized underlying amount this batch settled for.
	// Zero until the vault is Completed, immutable afterwards.
	TokenBalance math.Int `json:"token_balance"`

	Status TransferStatus `json:"transfer_status"`
}

// AddressWithdrawal is the read-model row joining a holder's per-batch stake
// with the vault state. Purely derived, never persisted independently.
type AddressWithdrawal struct {
	BatchID         BatchID        `json:"batch_id"`
	UnclaimedShares math.Int       `json:"unclaimed_shares"`
	Claimable       bool           `json:"claimable"`
	Claimed         bool           `json:"claimed"`
	TokensToReceive math.Int       `json:"tokens_to_receive"`
	TransferStatus  TransferStatus `json:"transfer_status"`
}
