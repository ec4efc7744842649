package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO date layout used on settlement worksheets and in the API
const DateLayout = "2006-01-02"

// worksheetDateLayouts are tried in order when reading a settlement worksheet date
var worksheetDateLayouts = []string{
	DateLayout,
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// ParseDate parses a date string and returns a UTC time
func ParseDate(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseWorksheetDate accepts the date spellings banks put in settlement files
func ParseWorksheetDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range worksheetDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return StartOfDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// StartOfDay returns the start of the day (midnight) in UTC
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC
func EndOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 23, 59, 59, 999999999, time.UTC)
}

// StartOfMonth returns midnight UTC of the first day of t's month
func StartOfMonth(t time.Time) time.Time {
	year, month, _ := t.UTC().Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}
