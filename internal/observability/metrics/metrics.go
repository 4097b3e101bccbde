// Package metrics exposes Prometheus metrics for the scheduler daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus collectors. All daemon code records through
// the package-level helpers, which use a private registry so the handler
// serves only our metrics (no default Go collectors).
type Manager struct {
	namespace      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	runsGenerated  prometheus.Counter
	weeksAnnounced prometheus.Counter

	announceSent    prometheus.Counter
	announceFailed  prometheus.Counter
	announceDeduped prometheus.Counter
	announceDropped prometheus.Counter

	announceLatency prometheus.Histogram
	queueDepth      prometheus.Gauge

	configReloads prometheus.Counter
	busDropped    prometheus.Gauge
}

var customRegistry = prometheus.NewRegistry()

var globalManager *Manager

func init() {
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without options it registers on the
// process-wide default registry; the daemon's global instance uses the
// private registry served by Registry().
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "rondo",
		// Send latency is dominated by queueing and the Telegram rate
		// limiter, so the buckets reach well past one second.
		latencyBuckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runsGenerated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "runs_generated_total",
		Help:      "Total number of scheduling runs generated",
	})

	m.weeksAnnounced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "weeks_announced_total",
		Help:      "Total number of schedule weeks announced",
	})

	m.announceSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "announcements_sent_total",
		Help:      "Total number of announcements delivered",
	})

	m.announceFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "announcements_failed_total",
		Help:      "Total number of announcements that exhausted their retries",
	})

	m.announceDeduped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "announcements_deduped_total",
		Help:      "Total number of announcements suppressed as duplicates",
	})

	m.announceDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "announcements_dropped_total",
		Help:      "Total number of announcements dropped on a full queue or shutdown",
	})

	m.announceLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "announce_latency_seconds",
		Help:      "Time from enqueue to delivery of an announcement",
		Buckets:   m.latencyBuckets,
	})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "notify_queue_depth",
		Help:      "Current number of announcements waiting in the notifier queue",
	})

	m.configReloads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "config_reloads_total",
		Help:      "Total number of applied configuration reloads",
	})

	m.busDropped = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "bus_events_dropped",
		Help:      "Cumulative count of events dropped by slow bus subscribers",
	})
}

// RecordRunGenerated increments the generated-runs counter.
func RecordRunGenerated() { globalManager.runsGenerated.Inc() }

// RecordWeekAnnounced increments the announced-weeks counter.
func RecordWeekAnnounced() { globalManager.weeksAnnounced.Inc() }

// RecordAnnouncementSent increments the delivered announcements counter.
func RecordAnnouncementSent() { globalManager.announceSent.Inc() }

// RecordAnnouncementFailed increments the failed announcements counter.
func RecordAnnouncementFailed() { globalManager.announceFailed.Inc() }

// RecordAnnouncementDeduped increments the suppressed duplicates counter.
func RecordAnnouncementDeduped() { globalManager.announceDeduped.Inc() }

// RecordAnnouncementDropped increments the dropped announcements counter.
func RecordAnnouncementDropped() { globalManager.announceDropped.Inc() }

// ObserveAnnounceLatency records one enqueue-to-delivery duration in seconds.
func ObserveAnnounceLatency(seconds float64) { globalManager.announceLatency.Observe(seconds) }

// SetQueueDepth sets the notifier queue depth gauge.
func SetQueueDepth(n int) { globalManager.queueDepth.Set(float64(n)) }

// RecordConfigReload increments the config reloads counter.
func RecordConfigReload() { globalManager.configReloads.Inc() }

// SetBusDropped sets the cumulative bus drop gauge.
func SetBusDropped(n uint64) { globalManager.busDropped.Set(float64(n)) }

// Registry returns the private registry backing the package-level helpers,
// for serving via promhttp.
func Registry() *prometheus.Registry {
	return customRegistry
}
