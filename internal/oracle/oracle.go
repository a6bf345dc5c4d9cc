// Package oracle fetches off-chain USD reference prices. Reference prices
// feed display values and target-price seeding only; they never back an
// on-chain minimum-output guarantee.
package oracle

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TrevorDev1978/bullscopeswap/internal/metrics"
)

// Source produces a USD price for a token address. 0 means "unknown".
type Source interface {
	Name() string
	USDPrice(ctx context.Context, tokenAddr string) (float64, error)
}

type cacheEntry struct {
	price float64
	ts    time.Time
}

// Client wraps ordered price sources with a short-TTL per-source cache.
// The first source that reports a usable price wins; a secondary source
// only serves when the primary has nothing, so one API being down or
// key-gated does not blank the UI.
type Client struct {
	sources []Source
	ttl     time.Duration
	log     *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry // key: source|address
	now   func() time.Time
}

func NewClient(sources []Source, ttl time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		sources: sources,
		ttl:     ttl,
		log:     log,
		cache:   make(map[string]cacheEntry, 32),
		now:     time.Now,
	}
}

func (c *Client) cached(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok || c.now().Sub(e.ts) >= c.ttl {
		return 0, false
	}
	return e.price, true
}

func (c *Client) store(key string, price float64) {
	c.mu.Lock()
	c.cache[key] = cacheEntry{price: price, ts: c.now()}
	c.mu.Unlock()
}

func (c *Client) priceFrom(ctx context.Context, s Source, addr string) float64 {
	key := s.Name() + "|" + strings.ToLower(addr)
	if v, ok := c.cached(key); ok {
		return v
	}
	v, err := s.USDPrice(ctx, addr)
	if err != nil {
		metrics.OracleErrors.Inc()
		c.log.Debug("price source failed",
			zap.String("source", s.Name()), zap.String("token", addr), zap.Error(err))
		return 0
	}
	c.store(key, v)
	return v
}

// USDPrice returns the first usable (>0) price across sources, or 0.
func (c *Client) USDPrice(ctx context.Context, tokenAddr string) float64 {
	for _, s := range c.sources {
		if v := c.priceFrom(ctx, s, tokenAddr); v > 0 {
			metrics.RefPriceUSD.WithLabelValues(strings.ToLower(tokenAddr)).Set(v)
			return v
		}
	}
	return 0
}

// Ratio returns buy-units per one sell-unit: usd(sell)/usd(buy). A source
// only qualifies when it prices BOTH sides; otherwise the next source is
// tried. 0 means "no reference available" and must be treated as absence.
func (c *Client) Ratio(ctx context.Context, sellAddr, buyAddr string) float64 {
	for _, s := range c.sources {
		sellUSD := c.priceFrom(ctx, s, sellAddr)
		buyUSD := c.priceFrom(ctx, s, buyAddr)
		if sellUSD > 0 && buyUSD > 0 {
			return sellUSD / buyUSD
		}
	}
	return 0
}
