package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/agentkit/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a decimal string like "1.25" into integer base units.
func ToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	decimal = strings.TrimSpace(decimal)
	if decimal == "" {
		return nil, clierr.Validation("amount is required")
	}
	if decimals < 0 {
		return nil, clierr.Validation("decimals must be >= 0")
	}
	if !decimalPattern.MatchString(decimal) {
		return nil, clierr.Validation(fmt.Sprintf("amount %q must be in decimal form like 1.23", decimal))
	}
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > decimals {
		return nil, clierr.Validation(fmt.Sprintf("amount precision exceeds %d decimals", decimals))
	}
	combined := strings.TrimLeft(intPart+fracPart+strings.Repeat("0", decimals-len(fracPart)), "0")
	if combined == "" {
		return new(big.Int), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.Validation("invalid decimal amount")
	}
	return out, nil
}

// PositiveBaseUnits is ToBaseUnits that also rejects zero.
func PositiveBaseUnits(decimal string, decimals int) (*big.Int, error) {
	out, err := ToBaseUnits(decimal, decimals)
	if err != nil {
		return nil, err
	}
	if out.Sign() <= 0 {
		return nil, clierr.Validation("amount must be greater than zero")
	}
	return out, nil
}

// FormatUnits renders base units as a decimal string with trailing zeros removed.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	s := new(big.Int).Abs(v).String()
	if decimals > 0 {
		if len(s) <= decimals {
			s = strings.Repeat("0", decimals-len(s)+1) + s
		}
		intPart := s[:len(s)-decimals]
		fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
		s = intPart
		if fracPart != "" {
			s += "." + fracPart
		}
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatBaseUnits is FormatUnits for base-unit integer strings; invalid input yields "0".
func FormatBaseUnits(baseUnits string, decimals int) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(baseUnits), 10)
	if !ok {
		return "0"
	}
	return FormatUnits(n, decimals)
}
