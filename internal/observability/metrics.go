// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Article outcomes counted by ArticlesProcessed.
const (
	OutcomeSkipped    = "skipped"
	OutcomeDownloaded = "downloaded"
	OutcomeFiltered   = "filtered"
	OutcomeFailed     = "failed"
)

// Metrics holds the counters of one harvest run. They live in a private
// registry and are written as Prometheus text at the end of the run. All
// methods accept a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// SearchRecords counts records returned per source, before merging.
	SearchRecords *prometheus.CounterVec

	// SearchFailures counts adapters that failed or returned nothing usable.
	SearchFailures *prometheus.CounterVec

	// ArticlesProcessed counts articles by pipeline outcome.
	ArticlesProcessed *prometheus.CounterVec

	// StrategyOutcomes counts download strategy attempts by name and status.
	StrategyOutcomes *prometheus.CounterVec

	// MirrorRateLimited counts rate-limit signals seen from the mirror.
	MirrorRateLimited prometheus.Counter

	// MirrorBackoff observes the backoff delays slept after a rate-limit signal.
	MirrorBackoff prometheus.Histogram
}

// NewMetrics registers every metric under namespace in a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SearchRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_records_total",
			Help:      "Records returned by each search source",
		}, []string{"source"}),
		SearchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      "Search adapter failures by source",
		}, []string{"source"}),
		ArticlesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_processed_total",
			Help:      "Articles handled by the pipeline by outcome",
		}, []string{"outcome"}),
		StrategyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_attempts_total",
			Help:      "Download strategy attempts by strategy and status",
		}, []string{"strategy", "status"}),
		MirrorRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_rate_limited_total",
			Help:      "Rate-limit signals received from the mirror",
		}),
		MirrorBackoff: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mirror_backoff_seconds",
			Help:      "Backoff delays slept after mirror rate limiting",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SearchReturned(source string, n int) {
	if m == nil {
		return
	}
	m.SearchRecords.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) SearchFailed(source string) {
	if m == nil {
		return
	}
	m.SearchFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) Article(outcome string) {
	if m == nil {
		return
	}
	m.ArticlesProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Strategy(name, status string) {
	if m == nil {
		return
	}
	m.StrategyOutcomes.WithLabelValues(name, status).Inc()
}

// RateLimited records one mirror rate-limit signal.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.MirrorRateLimited.Inc()
}

// BackedOff records a backoff delay slept before retrying the mirror.
func (m *Metrics) BackedOff(delay time.Duration) {
	if m == nil {
		return
	}
	m.MirrorBackoff.Observe(delay.Seconds())
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
