package types

import (
	"time"

	"cosmossdk.io/math"
)

// Pool events. Pools append these to an in-memory recorder as economic actions
// complete; the engine logs them and tests assert on them.

// DepositEvent is emitted when a holder deposits into a pool.
type DepositEvent struct {
	Holder       Address
	Amount       math.Int
	SharesIssued math.Int
	Timestamp    time.Time
}

// WithdrawalEvent is emitted when the far pool realizes a redemption.
type WithdrawalEvent struct {
	Recipient Address
	Amount    math.Int
	Timestamp time.Time
}

// BatchDepositExecutedEvent is emitted when the near pool sweeps its pending
// deposit accumulator across the bridge.
type BatchDepositExecutedEvent struct {
	Amount    math.Int
	Timestamp time.Time
}

// BatchWithdrawalExecutedEvent is emitted when a withdrawal batch goes
// in transit.
type BatchWithdrawalExecutedEvent struct {
	BatchID   BatchID
	Shares    math.Int
	Timestamp time.Time
}

// BatchSettledEvent is emitted when the settlement callback completes a batch.
type BatchSettledEvent struct {
	BatchID   BatchID
	Realized  math.Int
	Timestamp time.Time
}

// ClaimEvent is emitted when a holder claims their portion of a settled batch.
type ClaimEvent struct {
	Holder    Address
	BatchID   BatchID
	Payout    math.Int
	Timestamp time.Time
}
