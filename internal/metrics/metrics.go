// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/killfeed/internal/delivery"
)

const namespace = "killfeed"

// Metrics owns a private registry with the poll, storage and runtime
// collectors.
type Metrics struct {
	registry *prometheus.Registry

	polls        *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	pollErrors   *prometheus.CounterVec
	rateLimited  prometheus.Counter

	storageReads       prometheus.Histogram
	storageReadBytes   prometheus.Counter
	storageCommits     prometheus.Histogram
	storageCommitOps   prometheus.Counter
	storageCommitBytes prometheus.Counter

	cursorsSwept prometheus.Counter
	lastRecordID prometheus.Gauge
}

// New builds and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "requests_total",
			Help:      "Long-poll requests by feed and outcome (delivered, empty, error).",
		}, []string{"feed", "outcome"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Time spent serving a long-poll request.",
			Buckets:   []float64{0.005, 0.05, 0.25, 0.5, 1, 2, 5, 10, 12},
		}, []string{"feed", "outcome"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "errors_total",
			Help:      "Poll errors swallowed into empty responses, by stage.",
		}, []string{"feed", "stage"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		storageReads: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "read_seconds",
			Help:      "Pebble point read latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		storageReadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "read_bytes_total",
			Help:      "Bytes returned by Pebble point reads.",
		}),
		storageCommits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "commit_seconds",
			Help:      "Pebble batch commit latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		storageCommitOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "commit_ops_total",
			Help:      "Operations committed in Pebble batches.",
		}),
		storageCommitBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "commit_bytes_total",
			Help:      "Bytes committed in Pebble batches.",
		}),
		cursorsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cursor",
			Name:      "swept_total",
			Help:      "Expired cursor keys removed by the sweeper.",
		}),
		lastRecordID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "last_record_id",
			Help:      "Highest record id seen in the record source.",
		}),
	}
	m.registry.MustRegister(
		m.polls, m.pollDuration, m.pollErrors, m.rateLimited,
		m.storageReads, m.storageReadBytes,
		m.storageCommits, m.storageCommitOps, m.storageCommitBytes,
		m.cursorsSwept, m.lastRecordID,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePoll implements delivery.Observer.
func (m *Metrics) ObservePoll(feed string, outcome delivery.Outcome, elapsed time.Duration, stage delivery.Stage) {
	m.polls.WithLabelValues(feed, string(outcome)).Inc()
	m.pollDuration.WithLabelValues(feed, string(outcome)).Observe(elapsed.Seconds())
	if stage != "" {
		m.pollErrors.WithLabelValues(feed, string(stage)).Inc()
	}
}

// ObserveRead implements the Pebble metrics hook.
func (m *Metrics) ObserveRead(d time.Duration, bytes int) {
	m.storageReads.Observe(d.Seconds())
	m.storageReadBytes.Add(float64(bytes))
}

// ObserveBatchCommit implements the Pebble metrics hook.
func (m *Metrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.storageCommits.Observe(d.Seconds())
	m.storageCommitOps.Add(float64(numOps))
	m.storageCommitBytes.Add(float64(bytes))
}

// RateLimited counts one rejected request.
func (m *Metrics) RateLimited() { m.rateLimited.Inc() }

// CursorsSwept adds n removed cursor keys.
func (m *Metrics) CursorsSwept(n int) { m.cursorsSwept.Add(float64(n)) }

// SetLastRecordID records the newest record id.
func (m *Metrics) SetLastRecordID(id uint64) { m.lastRecordID.Set(float64(id)) }
