package models

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatMoney renders d as dollars with two decimals and grouped thousands,
// rounding half away from zero. It never goes through float64.
func FormatMoney(d decimal.Decimal) string {
	r := d.Abs().Round(2)
	_, frac, _ := strings.Cut(r.StringFixed(2), ".")
	out := "$" + humanize.BigComma(r.Truncate(0).BigInt()) + "." + frac
	if d.Round(2).IsNegative() {
		return "-" + out
	}
	return out
}
