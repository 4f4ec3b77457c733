package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount units: one ZEC is 10^8 zatoshi.
const (
	Decimals = 8
	Coin     = 100_000_000
)

// FormatAmount renders zatoshi as a decimal ZEC string.
func FormatAmount(zats uint64) string {
	return fmt.Sprintf("%d.%0*d", zats/Coin, Decimals, zats%Coin)
}

// ParseAmount parses a decimal ZEC string into zatoshi.
func ParseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount")
	}

	parts := strings.SplitN(s, ".", 2)

	whole, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid whole part: %w", err)
	}

	var frac uint64
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > Decimals {
			return 0, fmt.Errorf("too many decimal places (max %d)", Decimals)
		}
		fracStr += strings.Repeat("0", Decimals-len(fracStr))
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fractional part: %w", err)
		}
	}

	if whole > math.MaxUint64/Coin {
		return 0, fmt.Errorf("amount too large")
	}
	result := whole * Coin
	if result > math.MaxUint64-frac {
		return 0, fmt.Errorf("amount too large")
	}
	return result + frac, nil
}
