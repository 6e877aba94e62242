package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetrics tracks the scan ingestion queues across all sessions.
type ScanMetrics struct {
	submitted      prometheus.Counter
	dropped        prometheus.Counter
	rejected       *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	sessions       prometheus.Gauge
}

// NewScanMetrics registers the scan metrics on the provided registerer.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	if reg == nil {
		return &ScanMetrics{}
	}
	m := &ScanMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scan_codes_submitted_total",
			Help: "Scan codes accepted into a session buffer.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scan_codes_dropped_total",
			Help: "Repeat scans discarded while the same code was pending.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scan_codes_rejected_total",
			Help: "Scan codes refused before entering the buffer.",
		}, []string{"reason"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scan_lookups_total",
			Help: "Product lookups issued by the drain worker, by outcome.",
		}, []string{"outcome"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scan_lookup_duration_seconds",
			Help:    "Latency of product lookups issued by the drain worker.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scan_sessions_active",
			Help: "Open scan sessions.",
		}),
	}
	reg.MustRegister(m.submitted, m.dropped, m.rejected, m.lookups, m.lookupDuration, m.sessions)
	return m
}

func (m *ScanMetrics) IncSubmitted() {
	if m == nil || m.submitted == nil {
		return
	}
	m.submitted.Inc()
}

func (m *ScanMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}

func (m *ScanMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveLookup counts a lookup and records its latency under outcome.
func (m *ScanMetrics) ObserveLookup(outcome string, duration time.Duration) {
	if m == nil || m.lookups == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.lookups.WithLabelValues(label).Inc()
	m.lookupDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (m *ScanMetrics) SetActiveSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}
