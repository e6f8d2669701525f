package commands

import (
	"fmt"
	"strings"
)

// formatMoney renders an amount with thousands separators and two
// decimal places, e.g. 1234567.5 -> "1,234,567.50".
func formatMoney(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := b.String() + "." + frac
	if negative {
		out = "-" + out
	}
	return out
}
