/*

Cross-domain messaging boundary. The real relay/watcher service is an external
collaborator; the pools only depend on the Sender capability and on receiving
authenticated (origin, payload) callbacks. Delivery is ordered per direction
and at-least-once, so receivers are expected to handle redelivery
idempotently.

*/

package bridge

import (
	"cosmossdk.io/math"

	"github.com/lumefi/bridgepool/internal/types"
)

// Payload is one cross-domain message body. Closed set of implementations.
type Payload interface {
	Kind() string
}

// DepositPayload announces a batched deposit sweep. The swept tokens travel
// through the token gateway; this message triggers the far-pool investment.
type DepositPayload struct {
	Amount math.Int
}

func (DepositPayload) Kind() string { return "deposit" }

// WithdrawPayload requests redemption of an aggregate withdrawal batch.
// TotalShares is the sending pool's share supply counting the batch's burned
// shares as still outstanding; the receiver sizes the redemption as the
// Shares/TotalShares slice of the sender's stake, since the two pools issue
// independent share supplies.
type WithdrawPayload struct {
	BatchID     types.BatchID
	Shares      math.Int
	TotalShares math.Int
	Recipient   types.Address
}

func (WithdrawPayload) Kind() string { return "withdraw" }

// SettlePayload reports the realized token amount for a withdrawal batch.
type SettlePayload struct {
	BatchID types.BatchID
	Amount  math.Int
}

func (SettlePayload) Kind() string { return "settle" }

// Sender is the outbound half of the messenger, bound to the sending
// component's own address so receivers can authenticate the origin.
type Sender interface {
	Send(target types.Address, payload Payload, gasLimit uint64) error
}

// MessageHandler is the inbound half. Origin is the authenticated sender
// address on the other domain, verified by the messenger, never spoofable by
// ordinary callers.
type MessageHandler interface {
	HandleMessage(origin types.Address, payload Payload) error
}
