// Package fixtures provides test data builders and helpers.
package fixtures

import (
	"time"

	"github.com/shopspring/decimal"
)

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// TimePtr returns a pointer to the given time.Time.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
