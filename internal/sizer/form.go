package sizer

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TrevorDev1978/bullscopeswap/internal/fixedpoint"
	"github.com/TrevorDev1978/bullscopeswap/internal/metrics"
	"github.com/TrevorDev1978/bullscopeswap/internal/quoter"
	"github.com/TrevorDev1978/bullscopeswap/internal/token"
)

// Mode selects between an immediate market swap and a resting limit order.
type Mode int

const (
	ModeSwap Mode = iota
	ModeLimit
)

func (m Mode) String() string {
	if m == ModeLimit {
		return "limit"
	}
	return "swap"
}

// State is the trade form's quoting lifecycle.
type State int

const (
	StateIdle State = iota
	StateQuoting
	StateQuoted
	StateError
)

func (s State) String() string {
	switch s {
	case StateQuoting:
		return "quoting"
	case StateQuoted:
		return "quoted"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// RouteQuoter is what the form needs from the route engine.
type RouteQuoter interface {
	BestForward(ctx context.Context, sell, buy string, amountIn *big.Int) quoter.Quote
}

// Referencer supplies the off-chain reference ratio used for target-price
// seeding. 0 means no reference available.
type Referencer interface {
	Ratio(ctx context.Context, sellAddr, buyAddr string) float64
}

// DecimalsReader resolves token decimals (18 on any failure).
type DecimalsReader interface {
	Decimals(ctx context.Context, addr string) int
}

// Snapshot is one committed quoting result. Everything the UI shows comes
// from the latest snapshot; in-flight work never mutates it directly.
type Snapshot struct {
	State       State
	Mode        Mode
	Sell, Buy   string
	AmountIn    *big.Int
	AmountOut   *big.Int
	MinOut      *big.Int
	Path        []string
	Router      string
	ImpactPct   float64
	ImpactKnown bool
	TargetPrice *big.Int // 1e12 scale, nil when unset
	RefRatio    float64
	Err         string
}

// Form is the debounced, generation-guarded state machine behind one trade
// form. Every input change invalidates in-flight work by bumping a
// generation counter; a result only commits if its generation is still
// current when it resolves, so a slow quote can never overwrite a newer one.
type Form struct {
	sizer   *Sizer
	routes  RouteQuoter
	ref     Referencer
	reader  DecimalsReader
	wpls    common.Address
	log     *zap.Logger
	baseCtx context.Context

	debounce    time.Duration
	slippageBps int

	mu           sync.Mutex
	sell, buy    string
	amount       string
	mode         Mode
	balance      *big.Int // nil = unknown, skip the check
	target       *big.Int
	targetPinned bool
	gen          uint64
	timer        *time.Timer
	snap         Snapshot
	onUpdate     func(Snapshot)
}

func NewForm(ctx context.Context, s *Sizer, routes RouteQuoter, ref Referencer, reader DecimalsReader, wpls common.Address, debounce time.Duration, slippageBps int, log *zap.Logger) *Form {
	if log == nil {
		log = zap.NewNop()
	}
	return &Form{
		sizer:       s,
		routes:      routes,
		ref:         ref,
		reader:      reader,
		wpls:        wpls,
		log:         log,
		baseCtx:     ctx,
		debounce:    debounce,
		slippageBps: slippageBps,
		snap:        Snapshot{State: StateIdle},
	}
}

// OnUpdate registers the snapshot callback. Called outside the form lock.
func (f *Form) OnUpdate(fn func(Snapshot)) {
	f.mu.Lock()
	f.onUpdate = fn
	f.mu.Unlock()
}

func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *Form) SetTokens(sell, buy string) {
	f.mu.Lock()
	f.sell, f.buy = sell, buy
	f.target, f.targetPinned = nil, false
	f.triggerLocked()
	f.mu.Unlock()
}

// Flip swaps the trade direction. A pinned target is meaningless in the
// opposite direction, so it resets and the autofill re-arms.
func (f *Form) Flip() {
	f.mu.Lock()
	f.sell, f.buy = f.buy, f.sell
	f.target, f.targetPinned = nil, false
	f.triggerLocked()
	f.mu.Unlock()
}

func (f *Form) SetAmount(amount string) {
	f.mu.Lock()
	f.amount = amount
	f.triggerLocked()
	f.mu.Unlock()
}

func (f *Form) SetMode(m Mode) {
	f.mu.Lock()
	if f.mode != m {
		f.mode = m
		f.triggerLocked()
	}
	f.mu.Unlock()
}

func (f *Form) SetSlippageBps(bps int) {
	f.mu.Lock()
	f.slippageBps = bps
	f.triggerLocked()
	f.mu.Unlock()
}

// SetBalance records the sell-token balance used for pre-quote validation.
// nil disables the check.
func (f *Form) SetBalance(bal *big.Int) {
	f.mu.Lock()
	f.balance = bal
	f.mu.Unlock()
}

// SetTargetPrice pins a user-entered limit price. Once pinned, reference
// movements never overwrite it.
func (f *Form) SetTargetPrice(price string) {
	f.mu.Lock()
	f.target = fixedpoint.ParsePrice(price)
	f.targetPinned = true
	f.triggerLocked()
	f.mu.Unlock()
}

// SetFromReference pins the target at reference * multiplier, for the
// ±20% quick-adjust presets.
func (f *Form) SetFromReference(multiplier float64) {
	f.mu.Lock()
	sell, buy := f.sell, f.buy
	f.mu.Unlock()

	r := f.ref.Ratio(f.baseCtx, sell, buy)
	if r <= 0 {
		return
	}
	f.mu.Lock()
	f.target = fixedpoint.PriceFromFloat(r * multiplier)
	f.targetPinned = true
	f.triggerLocked()
	f.mu.Unlock()
}

// Stop cancels any pending debounce timer.
func (f *Form) Stop() {
	f.mu.Lock()
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()
}

// triggerLocked arms the debounce. Must hold f.mu. Each call supersedes
// the previous: the old timer is stopped and any quote already running
// will fail its generation check at commit time.
func (f *Form) triggerLocked() {
	f.gen++
	gen := f.gen
	f.snap.State = StateQuoting
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.debounce, func() {
		f.runQuote(gen)
	})
}

func (f *Form) commit(gen uint64, snap Snapshot) {
	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		metrics.StaleQuotesDropped.Inc()
		return
	}
	f.snap = snap
	fn := f.onUpdate
	f.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (f *Form) runQuote(gen uint64) {
	f.mu.Lock()
	sell, buy := f.sell, f.buy
	amount, mode := f.amount, f.mode
	slippage := f.slippageBps
	balance := f.balance
	tgt, pinned := f.target, f.targetPinned
	f.mu.Unlock()

	base := Snapshot{State: StateQuoted, Mode: mode, Sell: sell, Buy: buy, TargetPrice: tgt}

	fail := func(msg string) {
		base.State = StateError
		base.Err = msg
		f.commit(gen, base)
	}

	if sell == "" || buy == "" {
		base.State = StateIdle
		f.commit(gen, base)
		return
	}
	if f.sameToken(sell, buy) {
		fail("select two different tokens")
		return
	}

	// Decimals for both sides, fetched together.
	var inDec, outDec int
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); inDec = f.reader.Decimals(f.baseCtx, sell) }()
	go func() { defer wg.Done(); outDec = f.reader.Decimals(f.baseCtx, buy) }()
	wg.Wait()

	amountIn := fixedpoint.ParseUnits(amount, inDec)
	base.AmountIn = amountIn
	if amountIn.Sign() <= 0 {
		base.State = StateIdle
		f.commit(gen, base)
		return
	}
	if balance != nil && amountIn.Cmp(balance) > 0 {
		fail("insufficient balance")
		return
	}

	switch mode {
	case ModeLimit:
		if tgt == nil && !pinned {
			if r := f.ref.Ratio(f.baseCtx, sell, buy); r > 0 {
				tgt = fixedpoint.PriceFromFloat(r)
				base.RefRatio = r
				// One-shot autofill: stash it, but only while still current.
				f.mu.Lock()
				if gen == f.gen && f.target == nil && !f.targetPinned {
					f.target = tgt
				}
				f.mu.Unlock()
			}
		}
		base.TargetPrice = tgt
		if tgt == nil || tgt.Sign() <= 0 {
			fail("no target price available")
			return
		}
		minOut := LimitMinOut(amountIn, tgt, inDec, outDec)
		base.AmountOut = minOut
		base.MinOut = minOut
		f.commit(gen, base)

	default:
		q := f.routes.BestForward(f.baseCtx, sell, buy, amountIn)
		if q.Path == nil || q.Amount.Sign() <= 0 {
			fail("no route")
			return
		}
		base.AmountOut = q.Amount
		base.MinOut = f.sizer.MinOut(q.Amount, slippage)
		base.Router = q.Router.Hex()
		base.Path = make([]string, len(q.Path))
		for i, hop := range q.Path {
			base.Path[i] = hop.Hex()
		}
		base.ImpactPct, base.ImpactKnown = f.sizer.PriceImpact(f.baseCtx, q.Path, amountIn, q.Amount, inDec)
		f.commit(gen, base)
	}
}

// sameToken compares de-sentineled addresses: the native sentinel and the
// wrapped-native contract are one endpoint, so selling one against the
// other is a validation error, not a missing route.
func (f *Form) sameToken(a, b string) bool {
	return token.Wrap(a, f.wpls) == token.Wrap(b, f.wpls)
}
