package bridge_test

import (
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumefi/bridgepool/internal/bridge"
	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/types"
)

const (
	sender   = types.Address("sender")
	receiver = types.Address("receiver")
)

// recorder captures delivered messages, optionally sending a reply on first
// delivery.
type recorder struct {
	messenger *bridge.MemoryMessenger
	origins   []types.Address
	payloads  []bridge.Payload
	reply     bridge.Payload
}

func (r *recorder) HandleMessage(origin types.Address, payload bridge.Payload) error {
	r.origins = append(r.origins, origin)
	r.payloads = append(r.payloads, payload)

	if r.reply != nil && len(r.payloads) == 1 {
		return r.messenger.Endpoint(receiver).Send(origin, r.reply, 0)
	}
	return nil
}

func TestSendQueuesWithoutDelivering(t *testing.T) {
	m := bridge.NewMemoryMessenger()
	rec := &recorder{}
	m.Register(receiver, rec)

	err := m.Endpoint(sender).Send(receiver, bridge.DepositPayload{Amount: math.NewInt(1)}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Pending())
	assert.Empty(t, rec.payloads)
}

func TestDeliverAllPreservesPerDirectionOrder(t *testing.T) {
	m := bridge.NewMemoryMessenger()
	rec := &recorder{}
	m.Register(receiver, rec)
	out := m.Endpoint(sender)

	require.NoError(t, out.Send(receiver, bridge.SettlePayload{BatchID: 1, Amount: math.NewInt(10)}, 0))
	require.NoError(t, out.Send(receiver, bridge.SettlePayload{BatchID: 2, Amount: math.NewInt(20)}, 0))

	delivered, err := m.DeliverAll()
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Zero(t, m.Pending())

	require.Len(t, rec.payloads, 2)
	assert.Equal(t, types.BatchID(1), rec.payloads[0].(bridge.SettlePayload).BatchID)
	assert.Equal(t, types.BatchID(2), rec.payloads[1].(bridge.SettlePayload).BatchID)
	assert.Equal(t, []types.Address{sender, sender}, rec.origins)
}

func TestDeliverAllDrainsRepliesEnqueuedDuringDelivery(t *testing.T) {
	m := bridge.NewMemoryMessenger()
	echo := &recorder{messenger: m, reply: bridge.SettlePayload{BatchID: 9, Amount: math.NewInt(9)}}
	back := &recorder{}
	m.Register(receiver, echo)
	m.Register(sender, back)

	require.NoError(t, m.Endpoint(sender).Send(receiver, bridge.DepositPayload{Amount: math.NewInt(5)}, 0))

	delivered, err := m.DeliverAll()
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	require.Len(t, back.payloads, 1)
	assert.Equal(t, types.BatchID(9), back.payloads[0].(bridge.SettlePayload).BatchID)
}

func TestDeliverToUnregisteredTargetFails(t *testing.T) {
	m := bridge.NewMemoryMessenger()
	require.NoError(t, m.Endpoint(sender).Send(receiver, bridge.DepositPayload{Amount: math.NewInt(1)}, 0))

	_, err := m.DeliverAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestRedeliverReplaysHistoryInOrder(t *testing.T) {
	m := bridge.NewMemoryMessenger()
	rec := &recorder{}
	m.Register(receiver, rec)
	out := m.Endpoint(sender)

	require.NoError(t, out.Send(receiver, bridge.SettlePayload{BatchID: 1, Amount: math.NewInt(1)}, 0))
	require.NoError(t, out.Send(receiver, bridge.SettlePayload{BatchID: 2, Amount: math.NewInt(2)}, 0))
	_, err := m.DeliverAll()
	require.NoError(t, err)

	require.NoError(t, m.Redeliver(sender, receiver))

	require.Len(t, rec.payloads, 4)
	assert.Equal(t, types.BatchID(1), rec.payloads[2].(bridge.SettlePayload).BatchID)
	assert.Equal(t, types.BatchID(2), rec.payloads[3].(bridge.SettlePayload).BatchID)
}

// flakyHandler rejects the first n deliveries, then accepts.
type flakyHandler struct {
	failures int
	payloads []bridge.Payload
}

func (f *flakyHandler) HandleMessage(origin types.Address, payload bridge.Payload) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("transient rejection")
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestRejectedDeliveryStaysQueuedForRetry(t *testing.T) {
	m := bridge.NewMemoryMessenger()
	h := &flakyHandler{failures: 1}
	m.Register(receiver, h)
	require.NoError(t, m.Endpoint(sender).Send(receiver, bridge.SettlePayload{BatchID: 1, Amount: math.NewInt(1)}, 0))

	delivered, err := m.DeliverAll()
	require.Error(t, err)
	assert.Zero(t, delivered)

	// The rejected message is still queued, not lost, and is not part of
	// the redeliverable history.
	assert.Equal(t, 1, m.Pending())
	require.NoError(t, m.Redeliver(sender, receiver))
	assert.Empty(t, h.payloads)

	delivered, err = m.DeliverAll()
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Zero(t, m.Pending())
	require.Len(t, h.payloads, 1)
}

func TestGatewayEscrowMovesValueAcrossLedgers(t *testing.T) {
	nearToken := ledger.New("near token")
	farToken := ledger.New("far token")
	g := bridge.NewMemoryGateway(nearToken, farToken)
	require.NoError(t, nearToken.Mint(sender, math.NewInt(100)))

	err := g.EscrowToFar(sender, receiver, math.NewInt(60))
	require.NoError(t, err)

	assert.Equal(t, math.NewInt(40), nearToken.BalanceOf(sender))
	assert.Equal(t, math.NewInt(60), farToken.BalanceOf(receiver))

	err = g.ReleaseToNear(sender, math.NewInt(25))
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(65), nearToken.BalanceOf(sender))
}

func TestGatewayEscrowWithoutBalanceFails(t *testing.T) {
	g := bridge.NewMemoryGateway(ledger.New("near token"), ledger.New("far token"))

	err := g.EscrowToFar(sender, receiver, math.NewInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}
