// Package money holds the cent-precision helpers shared by every ledger
// computation. All amounts are single-currency decimal values with two
// fractional digits once they leave a calculation.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by a stored amount.
const Scale int32 = 2

// Hundred is 100 as a decimal, used to express rates as percentages.
var Hundred = decimal.NewFromInt(100)

// Round rounds d to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Sum adds all amounts without intermediate rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// EqualCents reports whether a and b are the same amount once both are
// rounded to cents.
func EqualCents(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}

// Parse converts a user-supplied amount string into a decimal. Thousands
// separators are accepted; more than two fractional digits are rejected so
// that callers never store sub-cent values.
func Parse(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -Scale && !d.Equal(Round(d)) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: more than %d decimal places", s, Scale)
	}
	return d, nil
}

// Format renders d as a fixed two-decimal string with thousands separators,
// e.g. "12,825.00".
func Format(d decimal.Decimal) string {
	fixed := Round(d).StringFixed(Scale)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
