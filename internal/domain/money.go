package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders a decimal amount as a display string ("$1,234.50").
// Amounts are rounded to the currency's minor unit for display only; stored
// values keep full precision.
func FormatUSD(d decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), money.USD).Display()
}
