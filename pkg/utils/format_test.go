package utils

import (
	"math"
	"testing"
	"time"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0"},
		{30, "30"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{1234567.5, "1,234,567.50"},
		{2847.456, "2,847.46"},
		{-1234.56, "-1,234.56"},
		{-0.001, "0"},
		{100000, "100,000"},
		{math.Inf(1), "+Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatNumber(tt.input)
			if result != tt.expected {
				t.Errorf("FormatNumber(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{500, "500"},
		{12.5, "12.5"},
		{1500, "1.5K"},
		{2500000, "2.5M"},
		{3e9, "3B"},
		{1.25e12, "1.25T"},
		{-4200, "-4.2K"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatCompact(tt.input)
			if result != tt.expected {
				t.Errorf("FormatCompact(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0, "+0.00%"},
		{100, "+100.00%"},
	}

	for _, tt := range tests {
		result := FormatPct(tt.input)
		if result != tt.expected {
			t.Errorf("FormatPct(%f) = %s, want %s", tt.input, result, tt.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{850 * time.Microsecond, "850µs"},
		{12400 * time.Microsecond, "12.4ms"},
		{time.Millisecond, "1ms"},
		{1200 * time.Millisecond, "1.2s"},
	}

	for _, tt := range tests {
		result := FormatDuration(tt.input)
		if result != tt.expected {
			t.Errorf("FormatDuration(%v) = %s, want %s", tt.input, result, tt.expected)
		}
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2026, 3, 15, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	if got := FormatDate(ts); got != "2026-03-16" {
		t.Errorf("FormatDate() = %s, want 2026-03-16", got)
	}
	if got := FormatDateTime(ts); got != "2026-03-16 01:30:00 UTC" {
		t.Errorf("FormatDateTime() = %s", got)
	}
}
