// Package observability exposes the poller's Prometheus collectors.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "announcement_radar"

// Metrics groups the collectors touched by a poll cycle. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Cycle metrics
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	LastSuccessfulCycle prometheus.Gauge

	// Fetch metrics
	AnnouncementsFetched *prometheus.CounterVec
	FetchErrors          *prometheus.CounterVec
	SkippedSeen          prometheus.Counter

	// Classification metrics
	ClassificationsTotal  *prometheus.CounterVec
	ClassificationLatency *prometheus.HistogramVec

	// Persistence metrics
	AnnouncementsInserted *prometheus.CounterVec
	DuplicatesTotal       prometheus.Counter
	TokensLinked          prometheus.Counter
	PersistenceErrors     *prometheus.CounterVec

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastSuccessfulCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful poll cycle",
		}),

		AnnouncementsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "announcements_total",
			Help:      "Total number of raw announcements fetched by exchange",
		}, []string{"exchange"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "errors_total",
			Help:      "Total number of failed fetches by exchange",
		}, []string{"exchange"}),
		SkippedSeen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "skipped_seen_total",
			Help:      "Total number of raw announcements skipped before classification",
		}),

		ClassificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Total number of classifications by exchange and status",
		}, []string{"exchange", "status"}),
		ClassificationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "latency_seconds",
			Help:      "Classification latency in seconds, retries included",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"exchange"}),

		AnnouncementsInserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "announcements_inserted_total",
			Help:      "Total number of announcement rows inserted by category",
		}, []string{"category"}),
		DuplicatesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "duplicates_total",
			Help:      "Total number of announcement inserts ignored as duplicates",
		}),
		TokensLinked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "tokens_linked_total",
			Help:      "Total number of announcement-token links written",
		}),
		PersistenceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of persistence errors by operation",
		}, []string{"operation"}),

		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of notification outcomes by status",
		}, []string{"status"}),
	}
}

// Handler serves the default gatherer in text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCycle records a finished poll cycle.
func (m *Metrics) RecordCycle(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(d.Seconds())
	if status == "success" {
		m.LastSuccessfulCycle.SetToCurrentTime()
	}
}

// RecordFetch records one exchange fetch.
func (m *Metrics) RecordFetch(exchange string, n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FetchErrors.WithLabelValues(exchange).Inc()
		return
	}
	m.AnnouncementsFetched.WithLabelValues(exchange).Add(float64(n))
}

// RecordSkippedSeen records raws dropped by the seen set.
func (m *Metrics) RecordSkippedSeen(n int) {
	if m == nil {
		return
	}
	m.SkippedSeen.Add(float64(n))
}

// RecordClassification records one classification outcome.
func (m *Metrics) RecordClassification(exchange, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(exchange, status).Inc()
	m.ClassificationLatency.WithLabelValues(exchange).Observe(d.Seconds())
}

// RecordInsert records an admitted record.
func (m *Metrics) RecordInsert(category string, inserted bool) {
	if m == nil {
		return
	}
	if inserted {
		m.AnnouncementsInserted.WithLabelValues(category).Inc()
		return
	}
	m.DuplicatesTotal.Inc()
}

// RecordTokensLinked records written token links.
func (m *Metrics) RecordTokensLinked(n int) {
	if m == nil {
		return
	}
	m.TokensLinked.Add(float64(n))
}

// RecordPersistenceError records a failed storage operation.
func (m *Metrics) RecordPersistenceError(operation string) {
	if m == nil {
		return
	}
	m.PersistenceErrors.WithLabelValues(operation).Inc()
}

// RecordNotifications records dispatch outcomes.
func (m *Metrics) RecordNotifications(sent, skipped, failed int) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues("sent").Add(float64(sent))
	m.NotificationsTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.NotificationsTotal.WithLabelValues("failed").Add(float64(failed))
}
