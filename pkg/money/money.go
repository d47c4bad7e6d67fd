// Package money converts between integer cents and decimal amounts at the API edge.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToDecimal renders cents as a two-place decimal.
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents as a fixed two-place string, e.g. 1250 -> "12.50".
func Format(cents int64) string {
	return ToDecimal(cents).StringFixed(2)
}

// ParseCents parses a decimal amount into cents. Amounts with more than two fractional
// digits or negative values are rejected.
func ParseCents(value string) (int64, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(amount)
}

// FromDecimal converts a decimal amount into cents.
func FromDecimal(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must be non-negative")
	}
	cents := amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-cent precision", amount.String())
	}
	return cents.IntPart(), nil
}
