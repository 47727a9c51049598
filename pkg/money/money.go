package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

// USD renders integer cents as a dollar string, e.g. 999 -> "$9.99".
func USD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// ToCents converts a float dollar amount to integer cents. Fractional cents
// are dropped, never rounded up, so a settled amount can only credit what was
// actually received. Non-positive input maps to zero.
func ToCents(dollars float64) int64 {
	if dollars <= 0 {
		return 0
	}
	return int64(math.Floor(dollars * 100))
}

// ParseUSD converts user input like "9.99", "$10" or "1,000" to cents.
func ParseUSD(input string) (int64, error) {
	s := strings.TrimSpace(input)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, ErrInvalidAmount
	}
	return int64(v*100 + 0.5), nil
}
