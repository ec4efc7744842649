package domain

import "github.com/shopspring/decimal"

// Tolerance is the largest absolute difference that still counts as "equal"
// when settlement figures are compared against recorded amounts (0.01).
var Tolerance = decimal.New(1, -2)

// WithinTolerance reports whether |delta| is strictly below Tolerance
func WithinTolerance(delta decimal.Decimal) bool {
	return delta.Abs().LessThan(Tolerance)
}

// FormatAmount renders an amount with two decimals for reports and labels
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
