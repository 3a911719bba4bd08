package domain

import (
	"strconv"
	"strings"
)

// StringToFixed parses a decimal string into an integer scaled by
// 10^decimals. Exchange feeds deliver prices and quantities as decimal text;
// keeping them as scaled integers makes comparisons and arithmetic exact.
//
// The parser is deliberately lenient: digits are accumulated left to right,
// the first '.' marks the fractional boundary and every other byte is
// skipped. Fractional digits beyond decimals are truncated, never rounded;
// missing fractional digits are padded with zeros. Input is assumed
// non-negative.
//
// "30000.50" with decimals=2 -> 3000050.
func StringToFixed(s string, decimals int) int64 {
	var result int64
	foundDot := false
	decimalCount := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			foundDot = true
		} else if c >= '0' && c <= '9' {
			if foundDot && decimalCount >= decimals {
				break
			}
			result = result*10 + int64(c-'0')
			if foundDot {
				decimalCount++
			}
		}
	}

	for decimalCount < decimals {
		result *= 10
		decimalCount++
	}

	return result
}

// FixedToString renders a scaled integer back to decimal text. Negative
// values keep their sign; derived quantities like the spread of a crossed
// book go below zero even though feed levels never do.
//
// 3000050 with decimals=2 -> "30000.50".
func FixedToString(value int64, decimals int) string {
	if value == 0 {
		return "0." + strings.Repeat("0", decimals)
	}

	negative := value < 0
	if negative {
		value = -value
	}

	s := strconv.FormatInt(value, 10)
	for len(s) <= decimals {
		s = "0" + s
	}

	s = s[:len(s)-decimals] + "." + s[len(s)-decimals:]
	if negative {
		s = "-" + s
	}
	return s
}
