// Package sizer turns quotes and target prices into the amounts a trade
// actually commits to on chain: minimum output for immediate swaps and
// fixed-point minOut for resting limit orders.
package sizer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/TrevorDev1978/bullscopeswap/internal/fixedpoint"
)

// HiddenBufferBps is stacked on top of the user's slippage tolerance so a
// fill that lands exactly on the displayed minimum still clears the router.
// It is never surfaced in the UI numbers.
const HiddenBufferBps = 70

const maxTotalBps = 9999

// PathQuoter is the slice of the route quoter the sizer needs for its
// small-trade impact probe.
type PathQuoter interface {
	AmountsOut(ctx context.Context, path []common.Address, amountIn *big.Int) (*big.Int, common.Address)
}

type Sizer struct {
	quoter    PathQuoter
	hiddenBps int64
}

func New(quoter PathQuoter, hiddenBps int) *Sizer {
	if hiddenBps <= 0 {
		hiddenBps = HiddenBufferBps
	}
	return &Sizer{quoter: quoter, hiddenBps: int64(hiddenBps)}
}

// MinOut applies the user's slippage tolerance plus the hidden buffer to a
// quoted output. The combined cut is capped at 99.99% so the result never
// goes negative, and the division truncates.
func (s *Sizer) MinOut(amountOut *big.Int, userSlippageBps int) *big.Int {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return new(big.Int)
	}
	total := int64(userSlippageBps) + s.hiddenBps
	if total > maxTotalBps {
		total = maxTotalBps
	}
	if total < 0 {
		total = 0
	}
	out := new(big.Int).Mul(amountOut, big.NewInt(10_000-total))
	return out.Div(out, big.NewInt(10_000))
}

// PriceImpact compares the effective rate of the requested trade against a
// tiny probe trade (1/10000 of one whole input unit, floor 1 base unit)
// along the same path. Returns (impact%, true), or (0, false) when the
// probe cannot be quoted; callers render that as unavailable.
func (s *Sizer) PriceImpact(ctx context.Context, path []common.Address, amountIn, amountOut *big.Int, inDecimals int) (float64, bool) {
	if amountIn == nil || amountIn.Sign() <= 0 || amountOut == nil || amountOut.Sign() <= 0 {
		return 0, false
	}
	probe := new(big.Int).Div(fixedpoint.Pow10(inDecimals), big.NewInt(10_000))
	if probe.Sign() <= 0 {
		probe = big.NewInt(1)
	}
	probeOut, _ := s.quoter.AmountsOut(ctx, path, probe)
	if probeOut == nil || probeOut.Sign() <= 0 {
		return 0, false
	}

	reqRate := new(big.Float).Quo(new(big.Float).SetInt(amountOut), new(big.Float).SetInt(amountIn))
	smallRate := new(big.Float).Quo(new(big.Float).SetInt(probeOut), new(big.Float).SetInt(probe))
	ratio, _ := new(big.Float).Quo(reqRate, smallRate).Float64()
	impact := (1 - ratio) * 100
	if impact < 0 {
		impact = 0
	}
	return impact, true
}

// LimitMinOut sizes a resting order's on-chain minimum output:
// amountIn * price at the 1e12 fixed-point scale, then rescaled from
// sell-token to buy-token decimals. All steps truncate.
func LimitMinOut(amountInRaw, price1e12 *big.Int, inDecimals, outDecimals int) *big.Int {
	if amountInRaw == nil || amountInRaw.Sign() <= 0 || price1e12 == nil || price1e12.Sign() <= 0 {
		return new(big.Int)
	}
	out := fixedpoint.MulPrice(amountInRaw, price1e12)
	return fixedpoint.Rescale(out, inDecimals, outDecimals)
}

// LimitDisplay renders the expected output of a limit order for the UI,
// in buy-token units.
func LimitDisplay(amountInRaw, price1e12 *big.Int, inDecimals, outDecimals, maxFrac int) string {
	return fixedpoint.FormatUnits(LimitMinOut(amountInRaw, price1e12, inDecimals, outDecimals), outDecimals, maxFrac)
}
