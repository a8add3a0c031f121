package http

import (
	"fmt"
	"strconv"
	"strings"

	"flashsale/internal/domain"
)

// formatPrice renders integer cents as a two-decimal string, e.g. 10050 ->
// "100.50".
func formatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// parsePrice converts a decimal string with at most two fraction digits
// into cents.
func parsePrice(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, domain.ErrInvalidPrice
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidPrice
	}
	cents := units * 100

	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, domain.ErrInvalidPrice
		}
		if len(frac) == 1 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, domain.ErrInvalidPrice
		}
		if units < 0 || strings.HasPrefix(whole, "-") {
			cents -= f
		} else {
			cents += f
		}
	}
	return cents, nil
}
