package debridge

import (
	"fmt"
	"math/big"
	"strings"
)

// ScaleAmount converts a user-entered decimal amount into an integer base-unit
// string: floor(amount * 10^decimals). The conversion is exact big.Int
// arithmetic; floating point is never involved, since a drifting last digit on
// an 18-decimal token is a wrong on-chain transfer amount. Fractional digits
// beyond the token's precision are truncated toward zero.
func ScaleAmount(amount string, decimals int) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", fmt.Errorf("amount is empty")
	}
	if decimals < 0 {
		return "", fmt.Errorf("negative decimals %d", decimals)
	}

	intPart, fracPart, hasFrac := strings.Cut(amount, ".")
	if intPart == "" && fracPart == "" {
		return "", fmt.Errorf("invalid amount %q", amount)
	}
	if hasFrac && strings.Contains(fracPart, ".") {
		return "", fmt.Errorf("invalid amount %q", amount)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return "", fmt.Errorf("invalid amount %q", amount)
	}

	// Truncate excess fractional digits, pad missing ones.
	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return "", fmt.Errorf("amount %q is zero at %d decimals", amount, decimals)
	}

	scaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount %q", amount)
	}
	return scaled.String(), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
