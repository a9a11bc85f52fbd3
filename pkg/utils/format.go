// Package utils provides formatting helpers for calcthis output.
package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatNumber formats a number with thousands separators and up to
// two decimals, e.g. 1234567.5 → "1,234,567.50", 30 → "30".
func FormatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Sprintf("%v", n)
	}
	negative := n < 0
	n = math.Round(math.Abs(n)*100) / 100

	intPart := int64(n)
	frac := n - float64(intPart)

	out := groupThousands(intPart)
	if frac > 0 {
		out += fmt.Sprintf("%.2f", frac)[1:]
	}
	if negative && out != "0" {
		return "-" + out
	}
	return out
}

// FormatCompact formats a number in short scale notation.
// e.g., 1500 → "1.5K", 2500000 → "2.5M", 3e9 → "3B"
func FormatCompact(n float64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = math.Abs(n)
	}

	switch {
	case n >= 1e12:
		return sign + trimDecimals(n/1e12) + "T"
	case n >= 1e9:
		return sign + trimDecimals(n/1e9) + "B"
	case n >= 1e6:
		return sign + trimDecimals(n/1e6) + "M"
	case n >= 1e3:
		return sign + trimDecimals(n/1e3) + "K"
	default:
		return sign + trimDecimals(n)
	}
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatDuration renders short durations for reports: "850µs", "12.4ms", "1.2s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return trimDecimals(float64(d)/float64(time.Millisecond)) + "ms"
	default:
		return trimDecimals(d.Seconds()) + "s"
	}
}

// FormatDate formats t as "2006-01-02" in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// FormatDateTime formats t as "2006-01-02 15:04:05 UTC".
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// groupThousands formats an integer with comma groups of three.
func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// trimDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func trimDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
