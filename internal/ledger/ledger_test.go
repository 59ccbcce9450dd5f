package ledger_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/types"
)

const (
	alice = types.Address("alice")
	bob   = types.Address("bob")
)

func TestMintCreditsBalanceAndTotal(t *testing.T) {
	l := ledger.New("token")

	err := l.Mint(alice, math.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, math.NewInt(100), l.BalanceOf(alice))
	assert.Equal(t, math.NewInt(100), l.TotalShares())
}

func TestBurnDebitsBalanceAndTotal(t *testing.T) {
	l := ledger.New("token")
	require.NoError(t, l.Mint(alice, math.NewInt(100)))

	err := l.Burn(alice, math.NewInt(40))
	require.NoError(t, err)

	assert.Equal(t, math.NewInt(60), l.BalanceOf(alice))
	assert.Equal(t, math.NewInt(60), l.TotalShares())
}

func TestBurnExceedingBalanceFails(t *testing.T) {
	l := ledger.New("token")
	require.NoError(t, l.Mint(alice, math.NewInt(10)))

	err := l.Burn(alice, math.NewInt(11))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	// Failed burn leaves state untouched.
	assert.Equal(t, math.NewInt(10), l.BalanceOf(alice))
	assert.Equal(t, math.NewInt(10), l.TotalShares())
}

func TestTransferPreservesTotal(t *testing.T) {
	l := ledger.New("token")
	require.NoError(t, l.Mint(alice, math.NewInt(100)))

	err := l.Transfer(alice, bob, math.NewInt(30))
	require.NoError(t, err)

	assert.Equal(t, math.NewInt(70), l.BalanceOf(alice))
	assert.Equal(t, math.NewInt(30), l.BalanceOf(bob))
	assert.Equal(t, math.NewInt(100), l.TotalShares())
}

func TestTransferExceedingBalanceFails(t *testing.T) {
	l := ledger.New("token")
	require.NoError(t, l.Mint(alice, math.NewInt(5)))

	err := l.Transfer(alice, bob, math.NewInt(6))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.Equal(t, math.NewInt(5), l.BalanceOf(alice))
	assert.True(t, l.BalanceOf(bob).IsZero())
}

func TestUnknownHolderHasZeroBalance(t *testing.T) {
	l := ledger.New("token")
	assert.True(t, l.BalanceOf(alice).IsZero())
}

func TestNegativeAmountRejected(t *testing.T) {
	l := ledger.New("token")

	assert.ErrorIs(t, l.Mint(alice, math.NewInt(-1)), types.ErrAmountNegative)
	assert.ErrorIs(t, l.Burn(alice, math.NewInt(-1)), types.ErrAmountNegative)
	assert.ErrorIs(t, l.Transfer(alice, bob, math.NewInt(-1)), types.ErrAmountNegative)
}

func TestNilAmountRejected(t *testing.T) {
	l := ledger.New("token")
	assert.ErrorIs(t, l.Mint(alice, math.Int{}), types.ErrAmountNil)
}
