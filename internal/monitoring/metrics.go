// Package monitoring provides Prometheus instrumentation for schema fetching,
// request de-duplication and query compilation.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adxql"

// Metrics holds the collectors shared by the schema, aggregator and compiler
// components.
type Metrics struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	AggregatorRequests     prometheus.Counter
	AggregatorDeduplicated prometheus.Counter
	AggregatorRetries      prometheus.Counter
	AggregatorFailures     prometheus.Counter
	AggregatorInFlight     prometheus.Gauge

	SchemaResolutions *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total count of cache lookups that found a live entry.",
		}, []string{"cache"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total count of cache lookups that found nothing.",
		}, []string{"cache"}),
		AggregatorRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregator_requests_total",
			Help:      "Total count of outbound requests attempted, retries included.",
		}),
		AggregatorDeduplicated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregator_deduplicated_total",
			Help:      "Total count of callers served by another caller's in-flight request.",
		}),
		AggregatorRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregator_retries_total",
			Help:      "Total count of retried outbound requests.",
		}),
		AggregatorFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregator_failures_total",
			Help:      "Total count of outbound requests that failed after retrying.",
		}),
		AggregatorInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregator_inflight_keys",
			Help:      "Number of distinct request keys currently in flight.",
		}),
		SchemaResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_resolutions_total",
			Help:      "Total count of schema resolutions by outcome.",
		}, []string{"status"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent in compile, interpolate and schema operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"operation", "status"}),
	}
}

// RecordOperation executes fn and observes its duration under operation.
func (m *Metrics) RecordOperation(operation string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	return err
}

// ObserveCache counts a lookup against the named cache.
func (m *Metrics) ObserveCache(name string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(name).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(name).Inc()
}
