package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the fixed fractional precision for all balances and
// transfer amounts (2 decimal digits, i.e. cents).
const MoneyScale = 2

// ParseAmount normalizes an external string representation into a monetary
// amount. It rejects values that are not valid decimals or that carry more
// than MoneyScale fractional digits. Amounts are never routed through
// binary floating point.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a valid amount", ErrInvalidAmount, s)
	}
	if d.Exponent() < -MoneyScale {
		return decimal.Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, MoneyScale)
	}
	return d, nil
}

// ValidateAmount ensures an amount is usable for a balance mutation:
// strictly positive and within the fixed scale.
func ValidateAmount(d decimal.Decimal) error {
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, d.String())
	}
	if d.Exponent() < -MoneyScale {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d.String(), MoneyScale)
	}
	return nil
}

// FormatAmount renders an amount with the fixed two-digit scale, the
// canonical representation used at every external boundary.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}
