// Package app wires the quoting engine together and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TrevorDev1978/bullscopeswap/internal/chain"
	"github.com/TrevorDev1978/bullscopeswap/internal/config"
	"github.com/TrevorDev1978/bullscopeswap/internal/feed"
	"github.com/TrevorDev1978/bullscopeswap/internal/fixedpoint"
	"github.com/TrevorDev1978/bullscopeswap/internal/metrics"
	"github.com/TrevorDev1978/bullscopeswap/internal/multicall"
	"github.com/TrevorDev1978/bullscopeswap/internal/oracle"
	"github.com/TrevorDev1978/bullscopeswap/internal/orders"
	"github.com/TrevorDev1978/bullscopeswap/internal/quoter"
	"github.com/TrevorDev1978/bullscopeswap/internal/server"
	"github.com/TrevorDev1978/bullscopeswap/internal/sizer"
	"github.com/TrevorDev1978/bullscopeswap/internal/token"
)

// App owns every long-lived component.
type App struct {
	cfg    *config.Config
	log    *zap.Logger
	reader *chain.Client
	prices *oracle.Client
	routes *quoter.Quoter
	sizer  *sizer.Sizer
	orders *orders.Manager
	pub    *feed.Publisher
	srv    *server.Server
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	reader, err := chain.Dial(cfg.Chain.RPCHTTP, cfg.Chain.ID, cfg.CallTimeout(), log)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	httpCli := &http.Client{Timeout: cfg.CallTimeout()}
	sources := []oracle.Source{oracle.NewDexscreener(httpCli, cfg.Pricing.DexscreenerChain)}
	if !cfg.Pricing.DisableGeckoTerminal {
		sources = append(sources, oracle.NewGeckoTerminal(httpCli, cfg.Pricing.GeckoTerminalChain))
	}
	prices := oracle.NewClient(sources, cfg.PriceTTL(), log)

	var mc multicall.IClient
	if cfg.Routers.Multicall != "" {
		mc, err = multicall.New(reader, common.HexToAddress(cfg.Routers.Multicall))
		if err != nil {
			return nil, fmt.Errorf("multicall: %w", err)
		}
	}

	routers := []common.Address{
		common.HexToAddress(cfg.Routers.Quote),
		common.HexToAddress(cfg.Routers.Fallback),
	}
	routes, err := quoter.New(reader, routers, common.HexToAddress(cfg.Chain.WrappedNative), mc, log)
	if err != nil {
		return nil, fmt.Errorf("quoter: %w", err)
	}

	sz := sizer.New(routes, cfg.Trade.HiddenBufferBps)

	// Read-only order views; signing stays with the caller's wallet.
	om, err := orders.New(reader, reader, nil, common.HexToAddress(cfg.Limit.Contract), cfg.LimitExpiry(), log)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		reader: reader,
		prices: prices,
		routes: routes,
		sizer:  sz,
		orders: om,
	}
	if cfg.Redis.Addr != "" {
		a.pub = feed.NewPublisher(cfg)
	}
	a.srv = server.New(a, a.newForm, log)
	return a, nil
}

// newForm builds one interactive trade form per websocket session. Each
// form debounces its own edits and quotes through the shared quoter.
func (a *App) newForm() *sizer.Form {
	return sizer.NewForm(context.Background(), a.sizer, a.routes, a.prices, a.reader,
		common.HexToAddress(a.cfg.Chain.WrappedNative),
		a.cfg.QuoteDebounce(), a.cfg.SlippageBps(), a.log)
}

// Orders exposes the limit-order views.
func (a *App) Orders() *orders.Manager { return a.orders }

// Quote answers one API request end to end: decimals, best route, minOut,
// impact, USD references. Implements server.Engine.
func (a *App) Quote(ctx context.Context, req server.QuoteRequest) (server.QuoteResponse, error) {
	sell, buy := strings.TrimSpace(req.Sell), strings.TrimSpace(req.Buy)
	if !token.Valid(sell) {
		return server.QuoteResponse{}, fmt.Errorf("bad sell token address %q", sell)
	}
	if !token.Valid(buy) {
		return server.QuoteResponse{}, fmt.Errorf("bad buy token address %q", buy)
	}

	var inDec, outDec int
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); inDec = a.reader.Decimals(ctx, sell) }()
	go func() { defer wg.Done(); outDec = a.reader.Decimals(ctx, buy) }()
	wg.Wait()

	resp := server.QuoteResponse{Sell: sell, Buy: buy}
	slippage := a.cfg.SlippageBps()

	var q quoter.Quote
	var amountIn, amountOut *big.Int
	switch req.Side {
	case "buy":
		amountOut = fixedpoint.ParseUnits(req.Amount, outDec)
		if amountOut.Sign() <= 0 {
			return resp, errors.New("amount must be positive")
		}
		q = a.routes.BestReverse(ctx, sell, buy, amountOut)
		if q.Path == nil {
			return resp, errors.New("no route")
		}
		amountIn = q.Amount
	default:
		amountIn = fixedpoint.ParseUnits(req.Amount, inDec)
		if amountIn.Sign() <= 0 {
			return resp, errors.New("amount must be positive")
		}
		q = a.routes.BestForward(ctx, sell, buy, amountIn)
		if q.Path == nil {
			return resp, errors.New("no route")
		}
		amountOut = q.Amount
	}

	resp.AmountIn = amountIn.String()
	resp.AmountOut = amountOut.String()
	resp.MinOut = a.sizer.MinOut(amountOut, slippage).String()
	resp.Router = q.Router.Hex()
	resp.Path = make([]string, len(q.Path))
	for i, hop := range q.Path {
		resp.Path[i] = hop.Hex()
	}
	if impact, ok := a.sizer.PriceImpact(ctx, q.Path, amountIn, amountOut, inDec); ok {
		resp.ImpactPct = &impact
	}
	resp.SellUSD = a.prices.USDPrice(ctx, sell)
	resp.BuyUSD = a.prices.USDPrice(ctx, buy)

	a.publish(ctx, resp)
	return resp, nil
}

func (a *App) publish(ctx context.Context, resp server.QuoteResponse) {
	snap := feed.Snapshot{
		Sell:      resp.Sell,
		Buy:       resp.Buy,
		AmountIn:  resp.AmountIn,
		AmountOut: resp.AmountOut,
		MinOut:    resp.MinOut,
		Path:      strings.Join(resp.Path, ","),
		Router:    resp.Router,
		TsMs:      time.Now().UnixMilli(),
	}
	if resp.ImpactPct != nil {
		snap.ImpactPct = *resp.ImpactPct
	}
	a.srv.Broadcast(resp)
	if a.pub == nil {
		return
	}
	if err := a.pub.PublishQuote(ctx, snap); err != nil {
		a.log.Warn("quote publish failed", zap.Error(err))
	}
}

// Run blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Server.MetricsAddr != "" {
		metrics.Serve(ctx, a.cfg.Server.MetricsAddr, nil, a.log)
	}
	defer func() {
		if a.pub != nil {
			_ = a.pub.Close()
		}
	}()
	a.log.Info("engine ready",
		zap.Uint64("chain_id", a.cfg.Chain.ID),
		zap.String("rpc", a.cfg.Chain.RPCHTTP),
		zap.String("addr", a.cfg.Server.Addr))
	return a.srv.Run(ctx, a.cfg.Server.Addr)
}
