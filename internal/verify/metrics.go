package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verdict labels for claimsTotal
const (
	verdictVerified     = "verified"
	verdictUnsupported  = "unsupported"
	verdictContradicted = "contradicted"
)

var (
	// checksTotal counts document checks by outcome
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_checks_total",
		Help: "Total document checks by outcome",
	}, []string{"outcome"})

	// claimsTotal counts checked claims by verdict
	claimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_claims_total",
		Help: "Total checked claims by verdict",
	}, []string{"verdict"})

	// checkSeconds tracks document check latency
	checkSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veritas_check_seconds",
		Help:    "Document check duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
	})
)
