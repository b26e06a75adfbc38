// Package util provides common utility functions for price calculations.
package util

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OutputPlaces is the number of decimals reported metrics are rounded to.
const OutputPlaces int32 = 2

// RoundToTick rounds x to the nearest tick increment, ties away from zero.
// For example, with tick=0.05, 1.27 becomes 1.25.
func RoundToTick(x, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return x
	}
	return x.Div(tick).Round(0).Mul(tick)
}

// Round2 rounds to the reporting precision.
func Round2(x decimal.Decimal) decimal.Decimal {
	return x.Round(OutputPlaces)
}

// FromFloat converts a quoted float price to a decimal at cent precision.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(OutputPlaces)
}

// PriceString renders a price without trailing zeros but with at least one decimal,
// so 195 prints as "195.0" and 5.70 as "5.7".
func PriceString(x decimal.Decimal) string {
	s := x.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
