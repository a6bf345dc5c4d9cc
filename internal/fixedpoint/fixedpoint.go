// Package fixedpoint converts between user-facing decimal strings and
// integer token base units. Everything is big.Int; no float enters the
// math that feeds an on-chain amount.
package fixedpoint

import (
	"math/big"
	"strings"
)

// PriceScaleDigits is the fixed-point scale used when multiplying an amount
// by a decimal price ratio: the ratio is scaled by 10^12, multiplied as
// integers, then divided back down.
const PriceScaleDigits = 12

var priceScale = Pow10(PriceScaleDigits)

// Pow10 returns 10^n as a big.Int. n < 0 yields 1.
func Pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// normalize strips spaces and thousands separators and settles on '.' as
// the decimal separator. "1.234,56" and "1,234.56" both come out as
// "1234.56"; a lone comma acts as the decimal point.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case hasComma:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}

// ParseUnits converts a decimal string to base units at the given decimals.
// Excess fractional digits are truncated, never rounded. Empty or malformed
// input yields 0.
func ParseUnits(s string, decimals int) *big.Int {
	s = normalize(s)
	if s == "" || decimals < 0 {
		return new(big.Int)
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return new(big.Int)
	}
	if neg {
		v.Neg(v)
	}
	return v
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// FormatUnits renders base units as a decimal string, keeping at most
// maxFrac fractional digits (truncated) and stripping trailing zeros.
// maxFrac < 0 keeps all fractional digits.
func FormatUnits(v *big.Int, decimals, maxFrac int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	base := Pow10(decimals)
	ip, fp := new(big.Int).QuoRem(abs, base, new(big.Int))
	frac := fp.String()
	if len(frac) < decimals {
		frac = strings.Repeat("0", decimals-len(frac)) + frac
	}
	if maxFrac >= 0 && len(frac) > maxFrac {
		frac = frac[:maxFrac]
	}
	frac = strings.TrimRight(frac, "0")
	out := ip.String()
	if frac != "" {
		out += "." + frac
	}
	if neg && (ip.Sign() != 0 || frac != "") {
		out = "-" + out
	}
	return out
}

// Rescale converts v between decimal scales. Widening multiplies; narrowing
// integer-divides, truncating toward zero.
func Rescale(v *big.Int, from, to int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	switch {
	case to > from:
		return new(big.Int).Mul(v, Pow10(to-from))
	case to < from:
		return new(big.Int).Quo(v, Pow10(from-to))
	default:
		return new(big.Int).Set(v)
	}
}

// ParsePrice converts a decimal price string to a 1e12-scaled integer,
// truncating excess precision. Malformed input yields 0.
func ParsePrice(s string) *big.Int {
	return ParseUnits(s, PriceScaleDigits)
}

// PriceFromFloat converts a float price to the 1e12 fixed scale, flooring.
// Use ParsePrice whenever the price originated as a string.
func PriceFromFloat(f float64) *big.Int {
	if f <= 0 {
		return new(big.Int)
	}
	scaled, _ := new(big.Float).Mul(big.NewFloat(f), new(big.Float).SetInt(priceScale)).Int(nil)
	return scaled
}

// MulPrice multiplies an amount by a 1e12-scaled price and divides the
// scale back out, truncating.
func MulPrice(amount, price *big.Int) *big.Int {
	if amount == nil || price == nil {
		return new(big.Int)
	}
	return new(big.Int).Quo(new(big.Int).Mul(amount, price), priceScale)
}

// ToFloat converts base units to a float for display and ratio estimates
// only; never feed the result back into amount math.
func ToFloat(v *big.Int, decimals int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	f.Quo(f, new(big.Float).SetInt(Pow10(decimals)))
	out, _ := f.Float64()
	return out
}
