package rpc

import (
	"math/big"
	"strings"
)

// FormatUnits renders value scaled down by 10^decimals, without trailing zeros
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}

	neg := value.Sign() < 0
	abs := new(big.Int).Abs(value)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, unit, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		digits := frac.String()
		digits = strings.Repeat("0", int(decimals)-len(digits)) + digits
		out += "." + strings.TrimRight(digits, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
