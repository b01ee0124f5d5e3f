package domain

import (
	"errors"
	"strconv"
	"strings"
)

// MaxPriceCents bounds accepted sale prices so commission arithmetic in
// basis points cannot overflow int64.
const MaxPriceCents int64 = 100_000_000_000_000

var ErrInvalidAmount = errors.New("amount must be a decimal with at most two fractional digits")

// ParseCents converts a decimal string such as "500000" or "1234.5" into
// integer cents. Negative values, exponents and more than two fractional
// digits are rejected.
func ParseCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}

	whole, frac, hasFrac := strings.Cut(raw, ".")
	if whole == "" || !allDigits(whole) || (hasFrac && (frac == "" || len(frac) > 2 || !allDigits(frac))) {
		return 0, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > MaxPriceCents/100 {
		return 0, ErrInvalidAmount
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)

	total := units*100 + cents
	if total > MaxPriceCents {
		return 0, ErrInvalidAmount
	}
	return total, nil
}

// FormatCents renders cents as a decimal string with two fractional digits.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := strconv.FormatInt(cents%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + frac
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
