package feed

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) *Publisher {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPublisherWithClient(rdb, "quote:stream", "quote:last:")
}

func TestPublishQuoteWritesStreamAndLastHash(t *testing.T) {
	p := newTestPublisher(t)
	ctx := context.Background()

	snap := Snapshot{
		Sell:      "0xAAA",
		Buy:       "0xBBB",
		AmountIn:  "1000000",
		AmountOut: "2000000",
		MinOut:    "1976000",
		Path:      "0xAAA,0xBBB",
		Router:    "0xDA9aBA4eACF54E0273f56dfFee6B8F1e20B23Bba",
		ImpactPct: 0.3,
		TsMs:      1_700_000_000_000,
	}
	require.NoError(t, p.PublishQuote(ctx, snap))

	entries, err := p.rdb.XRange(ctx, "quote:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1000000", entries[0].Values["amount_in"])

	last, err := p.LastQuote(ctx, "0xaaa", "0xBBB")
	require.NoError(t, err)
	assert.Equal(t, "1976000", last["min_out"], "lookup folds address casing")
}

func TestPublishQuoteOverwritesLast(t *testing.T) {
	p := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, p.PublishQuote(ctx, Snapshot{Sell: "0xA", Buy: "0xB", MinOut: "1"}))
	require.NoError(t, p.PublishQuote(ctx, Snapshot{Sell: "0xA", Buy: "0xB", MinOut: "2"}))

	last, err := p.LastQuote(ctx, "0xA", "0xB")
	require.NoError(t, err)
	assert.Equal(t, "2", last["min_out"])

	entries, err := p.rdb.XRange(ctx, "quote:stream", "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, entries, 2, "stream keeps history while the hash is latest-only")
}

func TestLastQuoteMissingPair(t *testing.T) {
	p := newTestPublisher(t)
	last, err := p.LastQuote(context.Background(), "0xA", "0xB")
	require.NoError(t, err)
	assert.Empty(t, last)
}
