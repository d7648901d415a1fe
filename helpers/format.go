package helpers

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPriceIDR renders a numeric rupiah amount the way listings display
// it, with dots as thousands separators: 1234567 becomes "Rp1.234.567".
func FormatPriceIDR(v int64) string {
	digits := strconv.FormatInt(v, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}

	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(r)
	}

	if negative {
		return "-Rp" + sb.String()
	}
	return "Rp" + sb.String()
}

// FormatCompactCount renders counts with the local thousands shorthand:
// 12000 becomes "12RB", 1500 becomes "1,5RB", smaller values print as is.
func FormatCompactCount(v int64) string {
	if v < 1000 {
		return strconv.FormatInt(v, 10)
	}
	whole := v / 1000
	tenth := (v % 1000) / 100
	if tenth == 0 {
		return fmt.Sprintf("%dRB", whole)
	}
	return fmt.Sprintf("%d,%dRB", whole, tenth)
}
