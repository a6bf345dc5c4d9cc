package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGathersQuotingCollectors(t *testing.T) {
	QuoteErrors.Inc()
	StaleQuotesDropped.Inc()
	BestAmountOut.WithLabelValues("PLS/DAI").Set(2.5)

	families, err := Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"bls_best_amount_out",
		"bls_quote_errors_total",
		"bls_stale_quotes_dropped_total",
		"go_goroutines",
	} {
		assert.True(t, names[want], "missing family %s", want)
	}
}
