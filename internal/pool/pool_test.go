package pool_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumefi/bridgepool/internal/bridge"
	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/pool"
	"github.com/lumefi/bridgepool/internal/types"
	"github.com/lumefi/bridgepool/internal/yieldsource"
)

const (
	nearPoolAddr = types.Address("pool_near")
	farPoolAddr  = types.Address("pool_far")

	alice  = types.Address("alice")
	bob    = types.Address("bob")
	carol  = types.Address("carol")
	mallet = types.Address("mallet")

	testGasLimit = uint64(200_000)
	epochPeriod  = time.Hour
)

// fakeClock drives the pools' lazy epoch checks without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

// fixture wires a full pool pair through the in-memory bridge.
type fixture struct {
	clock     *fakeClock
	nearToken *ledger.Ledger
	farToken  *ledger.Ledger
	messenger *bridge.MemoryMessenger
	source    *yieldsource.MemoryVault
	near      *pool.NearPool
	far       *pool.FarPool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:     newFakeClock(),
		nearToken: ledger.New("near token"),
		farToken:  ledger.New("far token"),
		messenger: bridge.NewMemoryMessenger(),
		source:    yieldsource.NewMemoryVault(),
	}
	gateway := bridge.NewMemoryGateway(f.nearToken, f.farToken)

	near, err := pool.NewNearPool(pool.NearPoolConfig{
		Self:                nearPoolAddr,
		FarPool:             farPoolAddr,
		Token:               f.nearToken,
		Messenger:           f.messenger.Endpoint(nearPoolAddr),
		Gateway:             gateway,
		BatchTransferPeriod: epochPeriod,
		WithdrawalPeriod:    epochPeriod,
		GasLimit:            testGasLimit,
		Clock:               f.clock.Now,
	})
	require.NoError(t, err)

	far, err := pool.NewFarPool(pool.FarPoolConfig{
		Self:      farPoolAddr,
		NearPool:  nearPoolAddr,
		Token:     f.farToken,
		Source:    f.source,
		Gateway:   gateway,
		Messenger: f.messenger.Endpoint(farPoolAddr),
		GasLimit:  testGasLimit,
	})
	require.NoError(t, err)

	f.near = near
	f.far = far
	f.messenger.Register(nearPoolAddr, near)
	f.messenger.Register(farPoolAddr, far)
	return f
}

// fund mints holder a near-domain token balance.
func (f *fixture) fund(t *testing.T, holder types.Address, amount int64) {
	t.Helper()
	require.NoError(t, f.nearToken.Mint(holder, types.Units(amount)))
}

// relay drains the bridge queues in both directions.
func (f *fixture) relay(t *testing.T) int {
	t.Helper()
	delivered, err := f.messenger.DeliverAll()
	require.NoError(t, err)
	return delivered
}
