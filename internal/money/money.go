package money

import (
	"fmt"
	"strconv"
	"strings"

	"marketplace-payments/internal/fault"
)

// Pure conversions between major and minor currency units.
//
// All money in this repository is carried as int64 minor units (paise, cents).
// Major-unit values only exist at the API boundary and are parsed/formatted
// here; no floats are used for arithmetic.

// exponents lists currencies whose minor-unit exponent differs from 2.
var exponents = map[string]int{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

// Exponent returns the number of minor-unit digits for a currency code.
func Exponent(currency string) int {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

// ParseMajor converts a decimal major-unit string (e.g. "1000", "99.50")
// into minor units. More fractional digits than the currency supports is an
// error rather than a silent rounding.
func ParseMajor(s, currency string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("money: empty amount: %w", fault.ErrValidation)
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}

	exp := Exponent(currency)
	if len(frac) > exp {
		return 0, fmt.Errorf("money: %q has more precision than %s allows: %w", s, currency, fault.ErrValidation)
	}
	// Right-pad the fraction to the full exponent.
	frac += strings.Repeat("0", exp-len(frac))

	n, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q: %w", s, fault.ErrValidation)
	}
	if neg {
		n = -n
	}
	return n, nil
}

// FormatMinor renders minor units as a major-unit decimal string.
func FormatMinor(minor int64, currency string) string {
	exp := Exponent(currency)
	if exp == 0 {
		return strconv.FormatInt(minor, 10)
	}

	neg := minor < 0
	if neg {
		minor = -minor
	}
	pow := int64(1)
	for i := 0; i < exp; i++ {
		pow *= 10
	}
	out := fmt.Sprintf("%d.%0*d", minor/pow, exp, minor%pow)
	if neg {
		out = "-" + out
	}
	return out
}

// Commission computes a commission in minor units from a basis-point rate,
// rounding half up. 250 bps == 2.5%.
func Commission(amountMinor int64, rateBasisPoints int64) int64 {
	if amountMinor <= 0 || rateBasisPoints <= 0 {
		return 0
	}
	return (amountMinor*rateBasisPoints + 5000) / 10000
}
