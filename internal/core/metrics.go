package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the relay's prometheus collectors. Each hub owns its own
// registry so several hubs (tests) can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	ActiveSessions   prometheus.Gauge
	AdmissionInUse   prometheus.Gauge
	LinesTotal       *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	SessionDuration  prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Number of sessions that completed the nickname handshake",
		}),
		AdmissionInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_admission_in_use",
			Help: "Admission tickets currently held; includes the ticket an accept loop reserves before it accepts",
		}),
		LinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_lines_total",
			Help: "Inbound lines processed by kind",
		}, []string{"kind"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Outbound writes abandoned for a single recipient",
		}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_session_duration_seconds",
			Help:    "Lifetime of sessions from accept to teardown",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	m.Registry.MustRegister(
		m.ActiveSessions,
		m.AdmissionInUse,
		m.LinesTotal,
		m.DeliveryFailures,
		m.SessionDuration,
	)
	return m
}

func (m *Metrics) setActive(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}

func (m *Metrics) setAdmissionInUse(n int) {
	if m != nil {
		m.AdmissionInUse.Set(float64(n))
	}
}

func (m *Metrics) line(kind string) {
	if m != nil {
		m.LinesTotal.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) deliveryFailed() {
	if m != nil {
		m.DeliveryFailures.Inc()
	}
}

func (m *Metrics) sessionClosed(d time.Duration) {
	if m != nil {
		m.SessionDuration.Observe(d.Seconds())
	}
}
