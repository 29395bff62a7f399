package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PunishmentsCreated   *prometheus.CounterVec
	PunishmentsRemoved   *prometheus.CounterVec
	PunishmentsExpired   *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
	SweepFailures        prometheus.Counter
	TrackedIdentities    prometheus.Gauge
	Notifications        *prometheus.CounterVec
	ListenerPanics       prometheus.Counter
	ConnectionsDenied    *prometheus.CounterVec
	ConnectionsThrottled prometheus.Counter
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PunishmentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_punishments_created_total",
			Help: "Total number of punishments created through this process",
		}, []string{"type"}),
		PunishmentsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_punishments_removed_total",
			Help: "Total number of punishments removed, by removal action",
		}, []string{"type", "action"}),
		PunishmentsExpired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_punishments_expired_total",
			Help: "Total number of punishments lazily expired on read",
		}, []string{"type"}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_sweep_duration_seconds",
			Help:    "Time taken by one reconciliation pass over tracked identities",
			Buckets: prometheus.DefBuckets,
		}),
		SweepFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_sweep_failures_total",
			Help: "Total number of per-identity refresh failures during sweeps",
		}),
		TrackedIdentities: f.NewGauge(prometheus.GaugeOpts{
			Name: "warden_tracked_identities",
			Help: "Current number of identities polled by the sweep",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_notifications_total",
			Help: "Total number of lifecycle notifications fanned out, by kind and origin",
		}, []string{"kind", "origin"}),
		ListenerPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_listener_panics_total",
			Help: "Total number of recovered listener panics",
		}),
		ConnectionsDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_connections_denied_total",
			Help: "Total number of connections denied by an active punishment",
		}, []string{"type"}),
		ConnectionsThrottled: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_connections_throttled_total",
			Help: "Total number of connections rejected by the per-address throttle",
		}),
	}
}

func (m *Metrics) IncrementCreated(punishmentType string) {
	if m == nil {
		return
	}
	m.PunishmentsCreated.WithLabelValues(punishmentType).Inc()
}

func (m *Metrics) IncrementRemoved(punishmentType, action string) {
	if m == nil {
		return
	}
	m.PunishmentsRemoved.WithLabelValues(punishmentType, action).Inc()
}

func (m *Metrics) IncrementExpired(punishmentType string) {
	if m == nil {
		return
	}
	m.PunishmentsExpired.WithLabelValues(punishmentType).Inc()
}

func (m *Metrics) ObserveSweepDuration(seconds float64) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(seconds)
}

func (m *Metrics) IncrementSweepFailures() {
	if m == nil {
		return
	}
	m.SweepFailures.Inc()
}

func (m *Metrics) SetTracked(count int) {
	if m == nil {
		return
	}
	m.TrackedIdentities.Set(float64(count))
}

// IncrementNotifications counts one fan-out. origin is "direct" or "sweep".
func (m *Metrics) IncrementNotifications(kind, origin string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, origin).Inc()
}

func (m *Metrics) IncrementListenerPanics() {
	if m == nil {
		return
	}
	m.ListenerPanics.Inc()
}

func (m *Metrics) IncrementDenied(punishmentType string) {
	if m == nil {
		return
	}
	m.ConnectionsDenied.WithLabelValues(punishmentType).Inc()
}

func (m *Metrics) IncrementThrottled() {
	if m == nil {
		return
	}
	m.ConnectionsThrottled.Inc()
}
