package yieldsource

import (
	"cosmossdk.io/math"
)

// YieldSource is the external yield-bearing vault the far pool invests
// through. The adapter's figures are authoritative; the pool only applies its
// own slippage haircut on top where the protocol specifies one.
type YieldSource interface {
	// Invest converts amount of the base asset into yield shares.
	Invest(amount math.Int) (math.Int, error)

	// Redeem converts yieldShares back into the base asset.
	Redeem(yieldShares math.Int) (math.Int, error)

	// TotalAssets is the total base-asset value currently managed.
	TotalAssets() math.Int

	// PricePerShare is the base-asset value of one yield share.
	PricePerShare() math.LegacyDec
}
