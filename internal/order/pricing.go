package order

import "github.com/shopspring/decimal"

// DiscountMultiplier converts a promo discount fraction into the factor
// applied to each item price.
func DiscountMultiplier(percent float64) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(percent))
}

// FinalPrice applies the multiplier to a ticket price, rounded to cents.
func FinalPrice(initial float64, multiplier decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(initial).Mul(multiplier).Round(2)
}

// MinorUnits converts a decimal amount into the smallest currency unit, which
// is what the payment gateway speaks.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
