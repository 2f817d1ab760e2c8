package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every amount shown to the customer.
const CurrencySymbol = "R$"

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount reads a price typed or attached to a product button. Both "25.50"
// and "25,50" are accepted; negative values are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %q", ErrInvalidAmount, raw)
	}
	return d, nil
}

// FormatAmount renders d with exactly two fraction digits and a comma as the
// decimal separator, e.g. 50 -> "50,00".
func FormatAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatCurrency is FormatAmount with the currency symbol, e.g. "R$ 50,00".
func FormatCurrency(d decimal.Decimal) string {
	return CurrencySymbol + " " + FormatAmount(d)
}
