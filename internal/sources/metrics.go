package sources

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for adapterQueriesTotal
const (
	outcomeOK          = "ok"
	outcomeDisabled    = "disabled"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
	outcomePanic       = "panic"
	outcomeTimeout     = "timeout"
	outcomeCancelled   = "cancelled"
)

// Path labels for consolidationsTotal
const (
	pathBest      = "best"
	pathAll       = "all"
	pathNoSources = "no_sources"
)

var (
	// adapterQueriesTotal counts adapter calls by outcome
	adapterQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_adapter_queries_total",
		Help: "Total adapter queries by adapter and outcome",
	}, []string{"adapter", "outcome"})

	// adapterQuerySeconds tracks successful adapter query latency
	adapterQuerySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veritas_adapter_query_seconds",
		Help:    "Adapter query duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"adapter"})

	// consolidationsTotal counts consolidated results by path
	consolidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_consolidations_total",
		Help: "Total consolidated results by path",
	}, []string{"path"})
)
