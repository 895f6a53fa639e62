package money

import (
	"fmt"
	"math"
	"strings"
)

// Amount is a count of agorot (1/100 shekel). All monetary state is kept
// as integers; floats appear only transiently during percentage math.
type Amount int64

// Round converts a float result of percentage math back to agorot,
// rounding half away from zero.
func Round(f float64) Amount {
	return Amount(math.Round(f))
}

// FormatPrice renders an agorot amount as a shekel display string,
// e.g. 1234567 -> "₪12,345.67". Whole amounts omit the fraction.
func FormatPrice(a Amount) string {
	neg := a < 0
	if neg {
		a = -a
	}

	shekels := int64(a / 100)
	agorot := int64(a % 100)

	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	b.WriteString("₪")
	b.WriteString(groupThousands(shekels))

	if agorot != 0 {
		frac := fmt.Sprintf("%02d", agorot)
		// Display rules drop trailing zeros: 100.50 -> 100.5
		frac = strings.TrimRight(frac, "0")
		b.WriteString(".")
		b.WriteString(frac)
	}

	return b.String()
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	return strings.Join(groups, ",")
}
