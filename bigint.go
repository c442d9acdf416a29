package model

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits converts a decimal string into an integer amount scaled to
// the asset's precision, so "1.5" at 6 decimals becomes 1500000. Amounts
// in this protocol are unsigned; negative input is rejected, as is a
// fraction finer than the declared precision.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	if value == "" {
		return nil, errors.New("input cannot be nil or empty")
	}
	if strings.HasPrefix(value, "-") {
		return nil, errors.New("amount cannot be a negative amount")
	}

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("fraction %q exceeds %d decimals", frac, decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal value %q", value)
	}
	return amount, nil
}

// FormatUnits renders a scaled integer amount back into its decimal
// string form, trimming trailing zeros from the fraction.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(amount), scale, new(big.Int))

	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}

	fracDigits := strings.TrimRight(fmt.Sprintf("%0*s", int(decimals), frac.Text(10)), "0")
	if fracDigits == "" {
		return sign + whole.Text(10)
	}
	return fmt.Sprintf("%s%s.%s", sign, whole.Text(10), fracDigits)
}
