// Package metrics exposes Prometheus collectors for query classification and retrieval.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailrag"

// Collector holds the retrieval collectors. A nil *Collector is valid and records nothing.
type Collector struct {
	intentDetections   *prometheus.CounterVec
	strategySelections *prometheus.CounterVec
	retrievedChunks    *prometheus.HistogramVec
	retrievalDuration  *prometheus.HistogramVec
	retrievalErrors    *prometheus.CounterVec
	contextTokens      prometheus.Histogram
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		intentDetections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intent_detections_total",
				Help:      "Classified queries by intent and detection method",
			},
			[]string{"intent", "method"},
		),
		strategySelections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_selections_total",
				Help:      "Selected retrieval strategies by reason",
			},
			[]string{"strategy", "reason"},
		),
		retrievedChunks: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieved_chunks",
				Help:      "Chunks returned per query by strategy",
				Buckets:   []float64{0, 1, 2, 5, 10, 15, 20, 50, 100},
			},
			[]string{"strategy"},
		),
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_duration_seconds",
				Help:      "End-to-end retrieval duration by strategy",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		retrievalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_errors_total",
				Help:      "Failed retrievals by strategy",
			},
			[]string{"strategy"},
		),
		contextTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "context_tokens",
				Help:      "Estimated tokens of the assembled context",
				Buckets:   prometheus.ExponentialBuckets(50, 2, 8),
			},
		),
	}
}

// RecordIntent counts one classified query.
func (c *Collector) RecordIntent(intent, method string) {
	if c == nil {
		return
	}
	c.intentDetections.WithLabelValues(intent, method).Inc()
}

// RecordStrategy counts one strategy selection.
func (c *Collector) RecordStrategy(strategy, reason string) {
	if c == nil {
		return
	}
	c.strategySelections.WithLabelValues(strategy, reason).Inc()
}

// RecordRetrieval observes a finished retrieval.
func (c *Collector) RecordRetrieval(strategy string, chunks int, duration time.Duration) {
	if c == nil {
		return
	}
	c.retrievedChunks.WithLabelValues(strategy).Observe(float64(chunks))
	c.retrievalDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordRetrievalError counts a failed retrieval.
func (c *Collector) RecordRetrievalError(strategy string) {
	if c == nil {
		return
	}
	c.retrievalErrors.WithLabelValues(strategy).Inc()
}

// RecordContextTokens observes the size of an assembled context.
func (c *Collector) RecordContextTokens(tokens int) {
	if c == nil {
		return
	}
	c.contextTokens.Observe(float64(tokens))
}
