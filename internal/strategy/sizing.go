package strategy

import "github.com/shopspring/decimal"

// SizeOrder returns the whole-unit quantity bought by allocating
// allocationPct percent of cash at the given price, floored. Returns 0
// for non-positive prices so generators can skip the signal entirely.
func SizeOrder(cash decimal.Decimal, allocationPct float64, price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	notional := cash.Mul(decimal.NewFromFloat(allocationPct)).Div(decimal.NewFromInt(100))
	return notional.Div(price).IntPart()
}
