/*
Helpers for converting between base-unit integer amounts and display values.
Pool accounting is done entirely in 18-decimal base units (math.Int); these
conversions exist only at the edges (web API, database journal).
*/

package types

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// BaseUnitDecimals is the fixed precision of every token and share amount.
const BaseUnitDecimals = 18

var (
	ErrAmountNil      = errors.New("amount is nil")
	ErrAmountNegative = errors.New("amount is negative")
	ErrNotFinite      = errors.New("value is not finite")
)

// AmountToDisplay converts a base-unit amount to a float64 for reporting.
// Never used in accounting paths.
func AmountToDisplay(amount sdkmath.Int) (float64, error) {
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	dec := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(10).Power(BaseUnitDecimals)

	result, err := dec.Quo(factor).Float64()
	if err != nil {
		return 0, fmt.Errorf("display conversion failed: %w", err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// DisplayToAmount converts a display value into base units, truncating any
// precision beyond 18 decimals. Used when seeding local/sim balances.
func DisplayToAmount(value float64) (sdkmath.Int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, value)
	}
	if value < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if value == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// String round trip avoids binary floating point artifacts.
	dec, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.18f", value))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("base unit conversion failed: %w", err)
	}

	factor := sdkmath.LegacyNewDec(10).Power(BaseUnitDecimals)
	return dec.Mul(factor).TruncateInt(), nil
}

// Units returns n whole tokens in base units. Test and seeding convenience.
func Units(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(sdkmath.NewIntWithDecimal(1, BaseUnitDecimals))
}
