package timeutil

import (
	"testing"
	"time"
)

func TestNow_AlwaysUTC(t *testing.T) {
	now := Now()

	if now.Location() != time.UTC {
		t.Errorf("Now() returned non-UTC timezone: %v", now.Location())
	}
}

func TestStartOfDay(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "midnight UTC",
			input:    time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
			expected: "2025-11-20 00:00:00 +0000 UTC",
		},
		{
			name:     "late evening UTC",
			input:    time.Date(2025, 11, 20, 23, 59, 59, 0, time.UTC),
			expected: "2025-11-20 00:00:00 +0000 UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StartOfDay(tt.input)
			if result.String() != tt.expected {
				t.Errorf("StartOfDay() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestEndOfDay(t *testing.T) {
	result := EndOfDay(time.Date(2025, 11, 20, 12, 30, 45, 0, time.UTC))
	if result.String() != "2025-11-20 23:59:59.999999999 +0000 UTC" {
		t.Errorf("EndOfDay() = %v", result)
	}
}

func TestStartOfMonth(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "mid month",
			input:    time.Date(2026, 3, 17, 15, 4, 5, 0, time.UTC),
			expected: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "first of month",
			input:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "last day of leap february",
			input:    time.Date(2028, 2, 29, 23, 0, 0, 0, time.UTC),
			expected: time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StartOfMonth(tt.input); !got.Equal(tt.expected) {
				t.Errorf("StartOfMonth() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseWorksheetDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "iso", input: "2026-03-05", want: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{name: "day first with slashes", input: "05/03/2026", want: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{name: "surrounding spaces", input: "  2026/03/05 ", want: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{name: "timestamp keeps the day", input: "2026-03-05 18:22:00", want: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{name: "free text", input: "5th of March", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWorksheetDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseWorksheetDate(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWorksheetDate(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseWorksheetDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
