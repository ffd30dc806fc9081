package gateway

import "github.com/shopspring/decimal"

// Amounts are decimal in the domain and integer minor units on the wire.
// These two functions are the single point where that precision boundary is
// crossed; nothing outside the adapters may call them.

// MinorUnits converts a decimal major-unit amount to integer minor units
// (multiply by 100, truncate).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Truncate(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a decimal major-unit
// amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
