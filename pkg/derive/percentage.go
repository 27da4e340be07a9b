// Package derive holds pure computations of values the wizard fills in on
// the user's behalf.
package derive

import (
	"math"
	"strconv"
	"strings"
)

// Percentage returns marks/total*100 rounded to two decimals and formatted
// with exactly two fractional digits. ok is false when either input is
// missing, not a non-negative number, or total is zero.
func Percentage(marks, total string) (string, bool) {
	m, ok := ParseNonNegative(marks)
	if !ok {
		return "", false
	}
	t, ok := ParseNonNegative(total)
	if !ok || t == 0 {
		return "", false
	}
	p := math.Round(m/t*100*100) / 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "", false
	}
	return strconv.FormatFloat(p, 'f', 2, 64), true
}

// ParseNonNegative parses a finite, non-negative decimal number.
func ParseNonNegative(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
