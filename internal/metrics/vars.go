package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	BestAmountOut = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bls_best_amount_out",
		Help: "Best quoted output (whole units) for the last forward quote",
	}, []string{"pair"})

	RefPriceUSD = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bls_ref_price_usd",
		Help: "Off-chain USD reference price per token",
	}, []string{"token"})

	QuoteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bls_quote_errors_total",
		Help: "Number of router quote failures",
	})

	OracleErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bls_oracle_errors_total",
		Help: "Number of price API failures",
	})

	StaleQuotesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bls_stale_quotes_dropped_total",
		Help: "Quote results discarded because a newer request superseded them",
	})

	QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bls_quote_latency_seconds",
		Help:    "Time to obtain the best route quote",
		Buckets: prometheus.DefBuckets,
	})
)

// Registry builds a registry carrying the quoting collectors plus the Go
// runtime and process collectors. The package stays off the global default
// registry so tests can gather in isolation.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		BestAmountOut,
		RefPriceUSD,
		QuoteErrors,
		OracleErrors,
		StaleQuotesDropped,
		QuoteLatency,
	)
	return reg
}
