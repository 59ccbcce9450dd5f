package yieldsource

import (
	"fmt"
	"sync"

	"cosmossdk.io/math"

	"github.com/lumefi/bridgepool/internal/types"
)

// MemoryVault is an in-process YieldSource used in tests and sim mode. It
// mirrors the behavior of a share-based yield vault: investing mints shares at
// the current price, yield accrual is modeled by raising total assets without
// minting shares.
type MemoryVault struct {
	mu          sync.RWMutex
	totalAssets math.Int
	totalShares math.Int
}

// NewMemoryVault creates an empty vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		totalAssets: math.ZeroInt(),
		totalShares: math.ZeroInt(),
	}
}

// Invest converts amount of base asset into newly minted yield shares.
func (v *MemoryVault) Invest(amount math.Int) (math.Int, error) {
	if amount.IsNil() || amount.IsNegative() {
		return math.ZeroInt(), fmt.Errorf("%w: invest amount %s", types.ErrAmountNegative, amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var shares math.Int
	if v.totalShares.IsZero() || v.totalAssets.IsZero() {
		shares = amount
	} else {
		shares = amount.Mul(v.totalShares).Quo(v.totalAssets)
	}

	v.totalAssets = v.totalAssets.Add(amount)
	v.totalShares = v.totalShares.Add(shares)
	return shares, nil
}

// Redeem burns yieldShares and pays out their current base-asset value.
func (v *MemoryVault) Redeem(yieldShares math.Int) (math.Int, error) {
	if yieldShares.IsNil() || yieldShares.IsNegative() {
		return math.ZeroInt(), fmt.Errorf("%w: redeem shares %s", types.ErrAmountNegative, yieldShares)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if yieldShares.GT(v.totalShares) {
		return math.ZeroInt(), fmt.Errorf("%w: redeem of %s exceeds vault shares %s",
			types.ErrInsufficientBalance, yieldShares, v.totalShares)
	}
	if v.totalShares.IsZero() {
		return math.ZeroInt(), nil
	}

	amount := yieldShares.Mul(v.totalAssets).Quo(v.totalShares)
	v.totalAssets = v.totalAssets.Sub(amount)
	v.totalShares = v.totalShares.Sub(yieldShares)
	return amount, nil
}

// TotalAssets returns the managed base-asset total.
func (v *MemoryVault) TotalAssets() math.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalAssets
}

// PricePerShare returns the base-asset value of one yield share. Unit value
// while the vault is empty.
func (v *MemoryVault) PricePerShare() math.LegacyDec {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.totalShares.IsZero() {
		return math.LegacyOneDec()
	}
	return math.LegacyNewDecFromInt(v.totalAssets).QuoInt(v.totalShares)
}

// SetTotalAssets overrides the managed total to model yield accrual (or loss)
// without share movement.
func (v *MemoryVault) SetTotalAssets(amount math.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.totalAssets = amount
}
