package sizer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrevorDev1978/bullscopeswap/internal/fixedpoint"
)

type stubPathQuoter struct {
	out   *big.Int
	calls int
}

func (s *stubPathQuoter) AmountsOut(_ context.Context, _ []common.Address, _ *big.Int) (*big.Int, common.Address) {
	s.calls++
	if s.out == nil {
		return new(big.Int), common.Address{}
	}
	return s.out, common.Address{}
}

func TestMinOut(t *testing.T) {
	s := New(nil, 0) // default hidden buffer

	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	t.Run("default slippage plus hidden buffer", func(t *testing.T) {
		// 50 bps user + 70 bps hidden = 120 bps off the top
		got := s.MinOut(oneEth, 50)
		want, _ := new(big.Int).SetString("988000000000000000", 10)
		assert.Equal(t, want, got)
	})

	t.Run("combined cut caps at 9999", func(t *testing.T) {
		got := s.MinOut(big.NewInt(1_000_000), 99_990)
		assert.Equal(t, big.NewInt(100), got)
	})

	t.Run("zero and nil amounts", func(t *testing.T) {
		assert.Zero(t, s.MinOut(nil, 50).Sign())
		assert.Zero(t, s.MinOut(big.NewInt(0), 50).Sign())
	})

	t.Run("truncates toward zero", func(t *testing.T) {
		// 999 * 9880 / 10000 = 987.012 -> 987
		got := s.MinOut(big.NewInt(999), 50)
		assert.Equal(t, big.NewInt(987), got)
	})
}

func TestPriceImpact(t *testing.T) {
	path := []common.Address{{1}, {2}}

	t.Run("requested rate below probe rate", func(t *testing.T) {
		// probe = 1e18/10000 = 1e14; probe pays 2x, request pays 1.9x
		pq := &stubPathQuoter{out: big.NewInt(2e14)}
		s := New(pq, 0)

		in := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		out := new(big.Int).Mul(big.NewInt(19), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))
		impact, ok := s.PriceImpact(context.Background(), path, in, out, 18)
		require.True(t, ok)
		assert.InDelta(t, 5.0, impact, 1e-9)
	})

	t.Run("better-than-probe rate clamps to zero", func(t *testing.T) {
		pq := &stubPathQuoter{out: big.NewInt(1e14)}
		s := New(pq, 0)

		in := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		out := new(big.Int).Mul(big.NewInt(2), in)
		impact, ok := s.PriceImpact(context.Background(), path, in, out, 18)
		require.True(t, ok)
		assert.Zero(t, impact)
	})

	t.Run("probe failure reports unavailable", func(t *testing.T) {
		s := New(&stubPathQuoter{}, 0)
		_, ok := s.PriceImpact(context.Background(), path, big.NewInt(100), big.NewInt(90), 18)
		assert.False(t, ok)
	})

	t.Run("zero-decimal token probes one base unit", func(t *testing.T) {
		pq := &stubPathQuoter{out: big.NewInt(5)}
		s := New(pq, 0)
		_, ok := s.PriceImpact(context.Background(), path, big.NewInt(10), big.NewInt(50), 0)
		assert.True(t, ok)
		assert.Equal(t, 1, pq.calls)
	})
}

func TestLimitMinOut(t *testing.T) {
	t.Run("six to eighteen decimal rescale", func(t *testing.T) {
		// sell "100" at 6 decimals, target price 0.001 buy per sell
		amountIn := fixedpoint.ParseUnits("100", 6)
		price := fixedpoint.ParsePrice("0.001")
		got := LimitMinOut(amountIn, price, 6, 18)
		want, _ := new(big.Int).SetString("100000000000000000", 10)
		assert.Equal(t, want, got)
	})

	t.Run("same decimals", func(t *testing.T) {
		amountIn := fixedpoint.ParseUnits("1", 6)
		got := LimitMinOut(amountIn, fixedpoint.ParsePrice("2.5"), 6, 6)
		assert.Equal(t, big.NewInt(2_500_000), got)
	})

	t.Run("zero inputs", func(t *testing.T) {
		assert.Zero(t, LimitMinOut(nil, fixedpoint.ParsePrice("1"), 6, 6).Sign())
		assert.Zero(t, LimitMinOut(big.NewInt(1), nil, 6, 6).Sign())
	})
}

func TestLimitDisplay(t *testing.T) {
	amountIn := fixedpoint.ParseUnits("100", 6)
	got := LimitDisplay(amountIn, fixedpoint.ParsePrice("0.001"), 6, 18, 6)
	assert.Equal(t, "0.1", got)
}
