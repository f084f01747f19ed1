package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sagalens"

// Metrics groups the collectors exported by one monitor.
type Metrics struct {
	effects        *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	messages       *prometheus.CounterVec
	ignored        *prometheus.CounterVec
	buffered       prometheus.Gauge
	dropped        prometheus.Counter
	errorsReported prometheus.Counter
	actions        prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil registerer leaves them unregistered (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		effects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "effects_total",
				Help:      "Total number of effects reaching a terminal state",
			},
			[]string{"kind", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "effect_duration_seconds",
				Help:      "Duration of effects from trigger to terminal state",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"kind"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Telemetry messages delivered to the inspection client",
			},
			[]string{"type"},
		),
		ignored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_ignored_total",
				Help:      "Lifecycle events referencing unknown or already settled effects",
			},
			[]string{"event"},
		),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshots_buffered",
			Help:      "Snapshots waiting for the inspection client",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_dropped_total",
			Help:      "Snapshots evicted from the pre-connection buffer",
		}),
		errorsReported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_errors_reported_total",
			Help:      "Distinct task errors handed to the error handler",
		}),
		actions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Actions observed through the dispatch hook",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.effects,
			m.duration,
			m.messages,
			m.ignored,
			m.buffered,
			m.dropped,
			m.errorsReported,
			m.actions,
		)
	}
	return m
}

// ObserveEffect records a terminal transition.
func (m *Metrics) ObserveEffect(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.effects.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// MessageSent counts a delivered message.
func (m *Metrics) MessageSent(msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType).Inc()
}

// EventIgnored counts an event dropped by the monitor.
func (m *Metrics) EventIgnored(event string) {
	if m == nil {
		return
	}
	m.ignored.WithLabelValues(event).Inc()
}

// SetBuffered sets the current buffer size.
func (m *Metrics) SetBuffered(n int) {
	if m == nil {
		return
	}
	m.buffered.Set(float64(n))
}

// SnapshotDropped counts an evicted snapshot.
func (m *Metrics) SnapshotDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// ErrorReported counts an error handed to the error handler.
func (m *Metrics) ErrorReported() {
	if m == nil {
		return
	}
	m.errorsReported.Inc()
}

// ActionDispatched counts a dispatched action.
func (m *Metrics) ActionDispatched() {
	if m == nil {
		return
	}
	m.actions.Inc()
}
