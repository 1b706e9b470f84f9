package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Indexer metrics.
var (
	IndexerItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexer_items_total",
			Help:      "Profiles processed by the indexer, by outcome",
		},
		[]string{"outcome"}, // embedded / skipped_empty / skipped_unchanged / failed
	)

	IndexerBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexer_batches_total",
			Help:      "Indexer batches completed",
		},
	)

	IndexerBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indexer_batch_duration_seconds",
			Help:      "Indexer batch duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

var indexerOnce sync.Once

// RegisterIndexerMetrics registers indexer metrics. Safe to call more than once.
func RegisterIndexerMetrics() {
	indexerOnce.Do(func() {
		prometheus.MustRegister(IndexerItemsTotal, IndexerBatchesTotal, IndexerBatchDuration)
	})
}
