package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Query Engine metrics.
var (
	MatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_requests_total",
			Help:      "Total match queries by mode and outcome",
		},
		[]string{"mode", "status"}, // status: ok / error
	)

	MatchOversampleRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_oversample_rounds",
			Help:      "KNN rounds needed to fill top_k after post-filtering",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	MatchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_candidates",
			Help:      "Eligible candidates seen in the final round",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		},
	)

	MatchResultsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_results_returned",
			Help:      "Results returned per match query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)
)

var matchOnce sync.Once

// RegisterMatchMetrics registers Query Engine metrics. Safe to call more than once.
func RegisterMatchMetrics() {
	matchOnce.Do(func() {
		prometheus.MustRegister(MatchRequestsTotal, MatchOversampleRounds, MatchCandidates, MatchResultsReturned)
	})
}
