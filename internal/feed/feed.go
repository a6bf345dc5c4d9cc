// Package feed publishes quote snapshots to redis so downstream consumers
// (dashboards, alerting) can follow live pricing without hitting the chain.
package feed

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/TrevorDev1978/bullscopeswap/internal/config"
)

// Snapshot is the wire form of one committed quote.
type Snapshot struct {
	Sell      string
	Buy       string
	AmountIn  string
	AmountOut string
	MinOut    string
	Path      string // comma-joined hop addresses
	Router    string
	ImpactPct float64
	TsMs      int64
}

type Publisher struct {
	rdb    *redis.Client
	stream string
	lastNS string
}

func NewPublisher(cfg *config.Config) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Publisher{
		rdb:    rdb,
		stream: cfg.Redis.Stream,
		lastNS: cfg.Redis.LastNS,
	}
}

// NewPublisherWithClient exists for tests and callers that share a client.
func NewPublisherWithClient(rdb *redis.Client, stream, lastNS string) *Publisher {
	return &Publisher{rdb: rdb, stream: stream, lastNS: lastNS}
}

func pairKey(sell, buy string) string {
	return strings.ToLower(sell) + "/" + strings.ToLower(buy)
}

// PublishQuote appends the snapshot to the stream and refreshes the
// last-quote hash for the pair.
func (p *Publisher) PublishQuote(ctx context.Context, s Snapshot) error {
	fields := map[string]interface{}{
		"sell":       s.Sell,
		"buy":        s.Buy,
		"amount_in":  s.AmountIn,
		"amount_out": s.AmountOut,
		"min_out":    s.MinOut,
		"path":       s.Path,
		"router":     s.Router,
		"impact_pct": s.ImpactPct,
		"ts_ms":      s.TsMs,
	}
	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10_000,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		return err
	}
	return p.rdb.HSet(ctx, p.lastNS+pairKey(s.Sell, s.Buy), fields).Err()
}

// LastQuote reads back the most recent snapshot hash for a pair. Missing
// pairs return an empty map.
func (p *Publisher) LastQuote(ctx context.Context, sell, buy string) (map[string]string, error) {
	return p.rdb.HGetAll(ctx, p.lastNS+pairKey(sell, buy)).Result()
}

func (p *Publisher) Close() error { return p.rdb.Close() }
