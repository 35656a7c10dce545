package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatAmount renders minor units as the two-decimal string classic
// gateway form protocols expect (PayPal, Skrill).
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseAmount converts a two-decimal gateway amount string into minor
// units without going through floats.
func ParseAmount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrInvalidAmount
	}
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole := value
	frac := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole = value[:idx]
		frac = value[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		frac = frac[:2]
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor := units*100 + cents
	if negative {
		minor = -minor
	}
	return minor, nil
}
