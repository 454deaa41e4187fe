package services

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// MinorUnits converts a major-unit amount to the gateway's integer minor units
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// Present rounds to two decimals for display
func Present(amount decimal.Decimal) float64 {
	return amount.Round(2).InexactFloat64()
}
