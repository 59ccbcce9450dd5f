package pool_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumefi/bridgepool/internal/bridge"
	"github.com/lumefi/bridgepool/internal/types"
)

func TestDirectDepositAppliesConversionHaircutToValue(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.farToken.Mint(alice, types.Units(3700)))

	err := f.far.DepositFrom(alice, types.Units(3700))
	require.NoError(t, err)

	// First deposit mints 1:1; valuation carries the 0.1% haircut once.
	assert.Equal(t, types.Units(3700), f.far.SharesOf(alice))
	assert.Equal(t, math.NewIntWithDecimal(36963, 17), f.far.TotalValue()) // 3696.3
}

func TestPoolTokenValueBeforeFirstDeposit(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, math.LegacyNewDecWithPrec(999, 3), f.far.PoolTokenValue())
}

func TestPoolTokenValueAfterDeposit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.farToken.Mint(alice, types.Units(10000)))
	require.NoError(t, f.far.DepositFrom(alice, types.Units(10000)))

	assert.Equal(t, math.LegacyNewDecWithPrec(999, 3), f.far.PoolTokenValue())
}

func TestPoolTokenValueTracksYield(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.farToken.Mint(alice, types.Units(10000)))
	require.NoError(t, f.far.DepositFrom(alice, types.Units(10000)))

	// Yield source doubles without minting shares.
	f.source.SetTotalAssets(types.Units(20000))

	assert.Equal(t, math.LegacyNewDecWithPrec(1998, 3), f.far.PoolTokenValue())
	assert.Equal(t, math.NewIntWithDecimal(1998, 15), f.far.ValueFor(types.Units(1))) // 1.998
}

func TestShareIssuanceDividesByRawValue(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.farToken.Mint(alice, types.Units(3000)))
	require.NoError(t, f.farToken.Mint(bob, types.Units(7000)))
	require.NoError(t, f.farToken.Mint(carol, types.Units(22000)))

	require.NoError(t, f.far.DepositFrom(alice, types.Units(3000)))
	require.NoError(t, f.far.DepositFrom(bob, types.Units(7000)))

	assert.Equal(t, types.Units(3000), f.far.SharesOf(alice))
	assert.Equal(t, types.Units(7000), f.far.SharesOf(bob))

	// Pool value doubles, so the late depositor gets half the shares per
	// token. The denominator is the raw (pre-haircut) value; the haircut
	// models exit conversion loss, not entry dilution.
	f.source.SetTotalAssets(types.Units(20000))
	require.NoError(t, f.far.DepositFrom(carol, types.Units(22000)))

	assert.Equal(t, types.Units(11000), f.far.SharesOf(carol))
	assert.Equal(t, types.Units(21000), f.far.TotalShares())
}

func TestSweepWithoutHeldBalanceFails(t *testing.T) {
	f := newFixture(t)

	err := f.far.Deposit()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "not enough balance")
}

func TestSweepInvestsHeldBalanceForNearPool(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.farToken.Mint(farPoolAddr, types.Units(500)))

	require.NoError(t, f.far.Deposit())

	assert.Equal(t, types.Units(500), f.far.SharesOf(nearPoolAddr))
	assert.True(t, f.farToken.BalanceOf(farPoolAddr).IsZero())
	assert.Equal(t, types.Units(500), f.far.YieldShareBalance())
}

func TestHandleMessageRejectsUnknownOrigin(t *testing.T) {
	f := newFixture(t)

	err := f.far.HandleMessage(mallet, bridge.DepositPayload{Amount: types.Units(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnauthenticated)

	err = f.far.HandleMessage(mallet, bridge.WithdrawPayload{
		BatchID:     1,
		Shares:      types.Units(1),
		TotalShares: types.Units(1),
		Recipient:   nearPoolAddr,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}

func TestHandleMessageRejectsUnexpectedPayload(t *testing.T) {
	f := newFixture(t)

	err := f.far.HandleMessage(nearPoolAddr, bridge.SettlePayload{BatchID: 1, Amount: types.Units(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected payload kind")
}

func TestWithdrawExceedingOutstandingSharesFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.farToken.Mint(farPoolAddr, types.Units(100)))
	require.NoError(t, f.far.Deposit())

	err := f.far.HandleMessage(nearPoolAddr, bridge.WithdrawPayload{
		BatchID:     1,
		Shares:      types.Units(101),
		TotalShares: types.Units(100),
		Recipient:   nearPoolAddr,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}

func TestWithdrawAgainstEmptyStakeFails(t *testing.T) {
	f := newFixture(t)

	err := f.far.HandleMessage(nearPoolAddr, bridge.WithdrawPayload{
		BatchID:     1,
		Shares:      types.Units(1),
		TotalShares: types.Units(1),
		Recipient:   nearPoolAddr,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
}
