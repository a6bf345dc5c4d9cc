package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.5", 18, "500000000000000000"},
		{"1.5", 6, "1500000"},
		{"1,5", 6, "1500000"},
		{"1,234.56", 6, "1234560000"},
		{"1.234,56", 6, "1234560000"},
		{"0.1234567", 6, "123456"}, // truncation, not rounding
		{"100", 0, "100"},
		{"0", 18, "0"},
		{"", 18, "0"},
		{"abc", 18, "0"},
		{"1.2.3", 18, "0"},
		{"-2.5", 6, "-2500000"},
	}
	for _, c := range cases {
		got := ParseUnits(c.in, c.decimals)
		assert.Equal(t, c.want, got.String(), "ParseUnits(%q, %d)", c.in, c.decimals)
	}
}

func TestFormatUnits(t *testing.T) {
	v, ok := new(big.Int).SetString("1500000", 10)
	require.True(t, ok)
	assert.Equal(t, "1.5", FormatUnits(v, 6, 6))
	assert.Equal(t, "1.5", FormatUnits(v, 6, 1))
	assert.Equal(t, "1", FormatUnits(v, 6, 0))

	neg := big.NewInt(-2500000)
	assert.Equal(t, "-2.5", FormatUnits(neg, 6, 6))

	small := big.NewInt(1)
	assert.Equal(t, "0.000001", FormatUnits(small, 6, 6))
	assert.Equal(t, "0", FormatUnits(small, 6, 3))

	assert.Equal(t, "0", FormatUnits(new(big.Int), 18, 18))
	assert.Equal(t, "0", FormatUnits(nil, 18, 18))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0.000001", "123456.789", "1", "0.5", "999999.999999"} {
		v := ParseUnits(s, 6)
		assert.Equal(t, s, FormatUnits(v, 6, 6), "round-trip %q", s)
	}
}

func TestRescale(t *testing.T) {
	v := big.NewInt(1_000_000) // 1.0 at 6 decimals

	wide := Rescale(v, 6, 18)
	assert.Equal(t, "1000000000000000000", wide.String())
	assert.Equal(t, v.String(), Rescale(wide, 18, 6).String(), "lossless widening round-trip")

	// narrowing truncates
	odd := big.NewInt(1_999_999)
	assert.Equal(t, "1", Rescale(odd, 6, 0).String())
	assert.Equal(t, odd.String(), Rescale(odd, 6, 6).String())
}

func TestParsePriceAndMulPrice(t *testing.T) {
	// amountIn = 1.0 of a 6-decimal token, price 2.5 buy per sell
	amountIn := ParseUnits("1", 6)
	price := ParsePrice("2.5")
	assert.Equal(t, "2500000000000", price.String())

	out := MulPrice(amountIn, price)
	assert.Equal(t, "2500000", out.String()) // 2.5 in 6-decimal terms

	// floor semantics of PriceFromFloat
	assert.Equal(t, "1000000000", PriceFromFloat(0.001).String())
	assert.Equal(t, "0", PriceFromFloat(0).String())
}

func TestLimitSizingScenario(t *testing.T) {
	// Sell 6 decimals, buy 18 decimals, amountIn "100", target 0.001:
	// raw 100e6 * 1e9 / 1e12 = 1e5, widened 6->18 gives 1e17.
	amountIn := ParseUnits("100", 6)
	price := ParsePrice("0.001")
	minOut := Rescale(MulPrice(amountIn, price), 6, 18)
	assert.Equal(t, "100000000000000000", minOut.String())
}

func TestToFloat(t *testing.T) {
	assert.InDelta(t, 1.5, ToFloat(big.NewInt(1_500_000), 6), 1e-12)
	assert.Zero(t, ToFloat(nil, 18))
}
