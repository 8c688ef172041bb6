// Package finmath holds the decimal helpers shared by the simulation engine.
package finmath

import (
	"github.com/shopspring/decimal"
)

var (
	Hundred = decimal.NewFromInt(100)
	One     = decimal.NewFromInt(1)
)

// Pct returns value × percent/100. The shift keeps the result exact.
func Pct(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent).Shift(-2)
}

// SafeDiv divides a by b, reporting ok=false instead of panicking when b is zero.
func SafeDiv(a, b decimal.Decimal) (decimal.Decimal, bool) {
	if b.IsZero() {
		return decimal.Zero, false
	}
	return a.Div(b), true
}

// DivOrZero divides a by b and returns zero when b is zero.
func DivOrZero(a, b decimal.Decimal) decimal.Decimal {
	q, _ := SafeDiv(a, b)
	return q
}

// NullDiv divides a by b and returns an invalid NullDecimal when b is zero.
func NullDiv(a, b decimal.Decimal) decimal.NullDecimal {
	q, ok := SafeDiv(a, b)
	return decimal.NullDecimal{Decimal: q, Valid: ok}
}

// Annualized returns principal × rate/100 × years, the simple (non-compounded)
// yield of a position over the horizon.
func Annualized(principal, ratePercent, years decimal.Decimal) decimal.Decimal {
	return Pct(principal, ratePercent).Mul(years)
}

// Sum adds up a list of decimals.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
