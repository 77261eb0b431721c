// Package money centralizes fixed-point monetary arithmetic. All amounts in
// the system are single-currency decimals with exactly two fractional digits;
// every value must pass through Round before it is persisted so that derived
// balances never drift from unrounded running sums.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round quantizes d to two fractional digits (half away from zero).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Parse converts a client-supplied string into a decimal amount.
func Parse(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// MustParse parses a literal amount. Only for use in tests and constants;
// panics on malformed input.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}
