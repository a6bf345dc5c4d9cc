// Package quoter prices swaps against UniswapV2-style routers. Every quote
// tries each candidate path on the primary router first and only falls back
// to the secondary when the primary reverts or returns a zero amount.
package quoter

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TrevorDev1978/bullscopeswap/internal/chain"
	"github.com/TrevorDev1978/bullscopeswap/internal/metrics"
	"github.com/TrevorDev1978/bullscopeswap/internal/multicall"
	"github.com/TrevorDev1978/bullscopeswap/internal/token"
)

const routerABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsIn","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

// Quote is the winning result of a routed amount search.
type Quote struct {
	Amount *big.Int         // forward: output amount; reverse: required input
	Path   []common.Address // wrapped-address hop list, nil when nothing routed
	Router common.Address
}

// Quoter fans quote calls out across routers and candidate paths.
type Quoter struct {
	caller  chain.Caller
	routers []common.Address // tried in order: primary first
	wpls    common.Address
	rabi    abi.ABI
	mc      multicall.IClient // optional batcher, nil disables
	log     *zap.Logger
}

func New(caller chain.Caller, routers []common.Address, wpls common.Address, mc multicall.IClient, log *zap.Logger) (*Quoter, error) {
	if len(routers) == 0 {
		return nil, errors.New("quoter: no routers configured")
	}
	rABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Quoter{caller: caller, routers: routers, wpls: wpls, rabi: rABI, mc: mc, log: log}, nil
}

// CandidatePaths lists the hop lists to try for a sell/buy pair, in
// preference order: direct first, then one hop through wrapped native.
// The WPLS hop is skipped when either endpoint already is WPLS, and a
// same-token pair routes nowhere.
func (q *Quoter) CandidatePaths(sell, buy string) [][]common.Address {
	a := token.Wrap(sell, q.wpls)
	b := token.Wrap(buy, q.wpls)
	if a == b {
		return nil
	}
	paths := [][]common.Address{{a, b}}
	if a != q.wpls && b != q.wpls {
		paths = append(paths, []common.Address{a, q.wpls, b})
	}
	return paths
}

func (q *Quoter) amountsVia(ctx context.Context, router common.Address, method string, amount *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := q.rabi.Pack(method, amount, path)
	if err != nil {
		return nil, err
	}
	raw, err := q.caller.Call(ctx, router, data)
	if err != nil {
		return nil, err
	}
	return q.decodeAmounts(method, raw, len(path))
}

func (q *Quoter) decodeAmounts(method string, raw []byte, hops int) ([]*big.Int, error) {
	outs, err := q.rabi.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, errors.New("decode " + method)
	}
	amounts, ok := outs[0].([]*big.Int)
	if !ok || len(amounts) != hops {
		return nil, errors.New("bad amounts length")
	}
	return amounts, nil
}

// AmountsOut returns the final output for swapping amountIn along path,
// trying routers in order. A revert or zero on one router moves on to the
// next; exhausting them all yields 0.
func (q *Quoter) AmountsOut(ctx context.Context, path []common.Address, amountIn *big.Int) (*big.Int, common.Address) {
	for _, r := range q.routers {
		amounts, err := q.amountsVia(ctx, r, "getAmountsOut", amountIn, path)
		if err != nil {
			q.log.Debug("getAmountsOut failed",
				zap.String("router", r.Hex()), zap.Error(err))
			continue
		}
		out := amounts[len(amounts)-1]
		if out.Sign() > 0 {
			return out, r
		}
	}
	return new(big.Int), common.Address{}
}

// AmountsIn returns the input required to receive amountOut along path,
// with the same router-order fallback as AmountsOut.
func (q *Quoter) AmountsIn(ctx context.Context, path []common.Address, amountOut *big.Int) (*big.Int, common.Address) {
	for _, r := range q.routers {
		amounts, err := q.amountsVia(ctx, r, "getAmountsIn", amountOut, path)
		if err != nil {
			q.log.Debug("getAmountsIn failed",
				zap.String("router", r.Hex()), zap.Error(err))
			continue
		}
		in := amounts[0]
		if in.Sign() > 0 {
			return in, r
		}
	}
	return new(big.Int), common.Address{}
}

// BestForward quotes amountIn of sell across all candidate paths and keeps
// the strictly largest output. Ties keep the earlier candidate, so the
// direct path wins over the WPLS hop when they pay the same.
func (q *Quoter) BestForward(ctx context.Context, sell, buy string, amountIn *big.Int) Quote {
	start := time.Now()
	defer func() { metrics.QuoteLatency.Observe(time.Since(start).Seconds()) }()

	paths := q.CandidatePaths(sell, buy)
	if len(paths) == 0 || amountIn == nil || amountIn.Sign() <= 0 {
		return Quote{Amount: new(big.Int)}
	}

	results := q.quoteAll(ctx, paths, amountIn, "getAmountsOut")
	best := Quote{Amount: new(big.Int)}
	for i, p := range paths {
		if results[i].amount.Cmp(best.Amount) > 0 {
			best = Quote{Amount: results[i].amount, Path: p, Router: results[i].router}
		}
	}
	if best.Path == nil {
		metrics.QuoteErrors.Inc()
	} else {
		gauge, _ := new(big.Float).SetInt(best.Amount).Float64()
		metrics.BestAmountOut.WithLabelValues(pairLabel(sell, buy)).Set(gauge)
	}
	return best
}

// BestReverse finds the cheapest input that yields amountOut of buy. The
// strictly smallest positive requirement wins; ties keep the earlier path.
func (q *Quoter) BestReverse(ctx context.Context, sell, buy string, amountOut *big.Int) Quote {
	start := time.Now()
	defer func() { metrics.QuoteLatency.Observe(time.Since(start).Seconds()) }()

	paths := q.CandidatePaths(sell, buy)
	if len(paths) == 0 || amountOut == nil || amountOut.Sign() <= 0 {
		return Quote{Amount: new(big.Int)}
	}

	results := q.quoteAll(ctx, paths, amountOut, "getAmountsIn")
	best := Quote{Amount: new(big.Int)}
	for i, p := range paths {
		a := results[i].amount
		if a.Sign() <= 0 {
			continue
		}
		if best.Path == nil || a.Cmp(best.Amount) < 0 {
			best = Quote{Amount: a, Path: p, Router: results[i].router}
		}
	}
	if best.Path == nil {
		metrics.QuoteErrors.Inc()
	}
	return best
}

type pathResult struct {
	amount *big.Int
	router common.Address
}

// quoteAll evaluates every candidate path, batching through multicall when
// available and degrading to concurrent per-path calls otherwise. Results
// come back indexed by candidate so callers can tie-break on path order.
func (q *Quoter) quoteAll(ctx context.Context, paths [][]common.Address, amount *big.Int, method string) []pathResult {
	if q.mc != nil {
		if res, ok := q.batched(ctx, paths, amount, method); ok {
			return res
		}
	}

	results := make([]pathResult, len(paths))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			var r pathResult
			if method == "getAmountsOut" {
				r.amount, r.router = q.AmountsOut(gctx, p, amount)
			} else {
				r.amount, r.router = q.AmountsIn(gctx, p, amount)
			}
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// batched issues one aggregate over every router/path combination. Any
// aggregate-level failure reports not-ok so the caller retries call-by-call.
func (q *Quoter) batched(ctx context.Context, paths [][]common.Address, amount *big.Int, method string) ([]pathResult, bool) {
	calls := make([]multicall.Call, 0, len(paths)*len(q.routers))
	for _, p := range paths {
		data, err := q.rabi.Pack(method, amount, p)
		if err != nil {
			return nil, false
		}
		for _, r := range q.routers {
			calls = append(calls, multicall.Call{Target: r, CallData: data})
		}
	}
	aggr, err := q.mc.Aggregate(ctx, calls)
	if err != nil || len(aggr) != len(calls) {
		q.log.Debug("multicall aggregate failed, degrading to direct calls", zap.Error(err))
		return nil, false
	}

	results := make([]pathResult, len(paths))
	idx := 0
	for i, p := range paths {
		results[i] = pathResult{amount: new(big.Int)}
		for _, r := range q.routers {
			res := aggr[idx]
			idx++
			if results[i].amount.Sign() > 0 || !res.Success || len(res.Data) == 0 {
				continue
			}
			amounts, err := q.decodeAmounts(method, res.Data, len(p))
			if err != nil {
				continue
			}
			v := amounts[len(amounts)-1]
			if method == "getAmountsIn" {
				v = amounts[0]
			}
			if v.Sign() > 0 {
				results[i] = pathResult{amount: v, router: r}
			}
		}
	}
	return results, true
}

func pairLabel(sell, buy string) string {
	return strings.ToLower(sell) + "->" + strings.ToLower(buy)
}
