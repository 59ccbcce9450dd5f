package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumefi/bridgepool/internal/bridge"
	"github.com/lumefi/bridgepool/internal/engine"
	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/pool"
	"github.com/lumefi/bridgepool/internal/types"
	"github.com/lumefi/bridgepool/internal/yieldsource"
)

const (
	nearAddr = types.Address("pool_near")
	farAddr  = types.Address("pool_far")
	alice    = types.Address("alice")

	period = time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	clock     *fakeClock
	nearToken *ledger.Ledger
	near      *pool.NearPool
	far       *pool.FarPool
	keeper    *engine.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	nearToken := ledger.New("near token")
	farToken := ledger.New("far token")
	messenger := bridge.NewMemoryMessenger()
	gateway := bridge.NewMemoryGateway(nearToken, farToken)

	near, err := pool.NewNearPool(pool.NearPoolConfig{
		Self:                nearAddr,
		FarPool:             farAddr,
		Token:               nearToken,
		Messenger:           messenger.Endpoint(nearAddr),
		Gateway:             gateway,
		BatchTransferPeriod: period,
		WithdrawalPeriod:    period,
		GasLimit:            200_000,
		Clock:               clock.Now,
	})
	require.NoError(t, err)

	far, err := pool.NewFarPool(pool.FarPoolConfig{
		Self:      farAddr,
		NearPool:  nearAddr,
		Token:     farToken,
		Source:    yieldsource.NewMemoryVault(),
		Gateway:   gateway,
		Messenger: messenger.Endpoint(farAddr),
		GasLimit:  200_000,
	})
	require.NoError(t, err)

	messenger.Register(nearAddr, near)
	messenger.Register(farAddr, far)

	keeper, err := engine.New(engine.Config{
		Near:  near,
		Far:   far,
		Relay: messenger,
	})
	require.NoError(t, err)

	return &harness{clock: clock, nearToken: nearToken, near: near, far: far, keeper: keeper}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := engine.New(engine.Config{})
	require.Error(t, err)
}

func TestTickBeforePeriodsIsQuiet(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.nearToken.Mint(alice, types.Units(1000)))
	require.NoError(t, h.near.Deposit(alice, types.Units(1000)))

	snapshot := h.keeper.Tick()

	assert.True(t, snapshot.SweptAmount.IsZero())
	assert.Zero(t, snapshot.MessagesRelayed)
	assert.Equal(t, types.Units(1000), snapshot.PendingDeposits)
}

func TestTickSweepsDueDeposits(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.nearToken.Mint(alice, types.Units(1000)))
	require.NoError(t, h.near.Deposit(alice, types.Units(1000)))
	h.clock.Advance(period)

	snapshot := h.keeper.Tick()

	assert.Equal(t, types.Units(1000), snapshot.SweptAmount)
	assert.True(t, snapshot.PendingDeposits.IsZero())
	assert.Equal(t, 1, snapshot.MessagesRelayed)
	assert.Equal(t, types.Units(1000), h.far.SharesOf(nearAddr))
}

func TestTickCompletesWithdrawalRoundTrip(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.nearToken.Mint(alice, types.Units(20000)))
	require.NoError(t, h.near.Deposit(alice, types.Units(20000)))
	h.clock.Advance(period)
	h.keeper.Tick()

	batchID, err := h.near.RequestWithdrawal(alice, types.Units(10000))
	require.NoError(t, err)
	h.clock.Advance(period)

	snapshot := h.keeper.Tick()

	// One tick executes the batch, relays the redemption and relays the
	// settlement back.
	assert.Equal(t, batchID, snapshot.ExecutedBatch)
	assert.Equal(t, 2, snapshot.MessagesRelayed)
	require.Len(t, snapshot.Vaults, 1)
	assert.Equal(t, types.TransferCompleted, snapshot.Vaults[0].Status)
	assert.Equal(t, types.Units(9990), snapshot.Vaults[0].TokenBalance)
	assert.True(t, h.near.HasClaimableWithdrawal(alice, batchID))
}

func TestTickNumberAdvancesWithoutJournal(t *testing.T) {
	h := newHarness(t)

	first := h.keeper.Tick()
	second := h.keeper.Tick()

	assert.Equal(t, first.TickNumber+1, second.TickNumber)
}
