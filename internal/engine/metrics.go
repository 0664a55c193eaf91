package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts backend fetches and console actions. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	actions       *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "numa",
			Subsystem: "console",
			Name:      "backend_fetches_total",
			Help:      "Backend reads issued by screen loaders, by resource and outcome.",
		}, []string{"resource", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "numa",
			Subsystem: "console",
			Name:      "screen_load_seconds",
			Help:      "Time to assemble a screen, including all concurrent fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"screen"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "numa",
			Subsystem: "console",
			Name:      "actions_total",
			Help:      "Console actions by type and outcome (ok, rejected, failed).",
		}, []string{"type", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.fetchDuration, m.actions)
	}
	return m
}

func (m *Metrics) observeFetch(resource string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.fetches.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) observeScreen(screen string, started time.Time) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(screen).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeAction(typ, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(typ, outcome).Inc()
}
