// Package metrics exposes service counters through a dedicated prometheus
// registry so tests and multiple instances in one process never collide.
package metrics

import (
	"net/http"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "conversation_core"

type Metrics struct {
	registry *prometheus.Registry

	ops           *prometheus.CounterVec
	opLatency     *prometheus.HistogramVec
	fanout        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	sessions      prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by name and result kind.",
		}, []string{"op", "result"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		fanout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_events_total",
			Help:      "Realtime events by outcome (published, dropped, failed).",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification dispatch outcomes.",
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Currently connected realtime sessions.",
		}),
	}
	reg.MustRegister(
		m.ops, m.opLatency, m.fanout, m.notifications, m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TrackOperation is deferred at the top of an operation:
//
//	defer m.TrackOperation("message.send", &err)()
func (m *Metrics) TrackOperation(op string, errRef *error) func() {
	if m == nil {
		return func() {}
	}
	started := time.Now()
	return func() {
		m.opLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
		result := "ok"
		if errRef != nil && *errRef != nil {
			result = contracts.KindOf(*errRef)
		}
		m.ops.WithLabelValues(op, result).Inc()
	}
}

func (m *Metrics) FanoutPublished() { m.incFanout("published") }
func (m *Metrics) FanoutDropped()   { m.incFanout("dropped") }
func (m *Metrics) FanoutFailed()    { m.incFanout("failed") }

func (m *Metrics) incFanout(outcome string) {
	if m != nil {
		m.fanout.WithLabelValues(outcome).Inc()
	}
}

// NotificationOutcome records stored, suppressed, dropped or failed.
func (m *Metrics) NotificationOutcome(outcome string) {
	if m != nil {
		m.notifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
