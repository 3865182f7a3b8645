package niagara

import (
	"strconv"
	"strings"
)

// kbPerMB is the divisor for kilobyte → megabyte conversion.
const kbPerMB = 1024

// ToMegabytes converts a vendor size/quantity value to whole megabytes.
//
// Numeric inputs are interpreted as kilobytes. String inputs have every
// non-digit character stripped first — this removes thousands separators
// and unit suffixes ("33,163,900 KB") in one step — and the remaining digit
// run is parsed as kilobytes. The result is rounded to the nearest integer.
//
// nil, unparseable, or negative input normalises to 0, never an error, so
// downstream rendering stays total. Both input paths agree for equivalent
// magnitudes: ToMegabytes("1,048,576 KB") == ToMegabytes(1048576) == 1024.
func ToMegabytes(v any) int {
	var kb float64

	switch val := v.(type) {
	case nil:
		return 0
	case int:
		kb = float64(val)
	case int64:
		kb = float64(val)
	case float64:
		kb = val
	case string:
		digits := stripNonDigits(val)
		if digits == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return 0
		}
		kb = parsed
	default:
		return 0
	}

	if kb <= 0 {
		return 0
	}
	return int((kb + kbPerMB/2) / kbPerMB)
}

// stripNonDigits removes every non-digit rune from s.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parsePort parses a non-negative integer field, normalising unparseable
// or negative input to 0 per the data-model invariants.
func parsePort(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
