package fees

import (
	"github.com/shopspring/decimal"
)

var (
	percentageRate = decimal.NewFromFloat(0.029)
	fixedFee       = decimal.NewFromFloat(0.30)
)

// Calculate returns the processing fee for an amount: 2.9% plus a fixed
// 0.30, rounded half-up to two decimal places. Pure; the fee is computed
// once at payment creation and never recomputed.
func Calculate(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(percentageRate).Add(fixedFee).Round(2)
}
