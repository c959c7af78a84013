package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IntakeMetrics holds all Prometheus metrics for the intake service.
type IntakeMetrics struct {
	SubmissionsTotal         *prometheus.CounterVec
	BytesTotal               prometheus.Counter
	WALActive                prometheus.Gauge
	StreamMirrorFailures     prometheus.Counter
	RecordsSunkTotal         prometheus.Counter
	RecordsDeadLetteredTotal prometheus.Counter
}

// NewIntakeMetrics initializes and registers the metrics on the default registry.
func NewIntakeMetrics() *IntakeMetrics {
	return NewIntakeMetricsWith(prometheus.DefaultRegisterer)
}

// NewIntakeMetricsWith registers the metrics on reg. Tests pass a fresh registry
// so repeated construction does not panic on duplicate registration.
func NewIntakeMetricsWith(reg prometheus.Registerer) *IntakeMetrics {
	factory := promauto.With(reg)
	return &IntakeMetrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edotstudio",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Total number of intake submissions by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}), // outcome: received, failed
		BytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "edotstudio",
			Subsystem: "intake",
			Name:      "bytes_total",
			Help:      "Total number of request body bytes read.",
		}),
		WALActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "edotstudio",
			Subsystem: "intake",
			Name:      "wal_active_gauge",
			Help:      "1 while diagnostic records are spilling to the local WAL, 0 otherwise.",
		}),
		StreamMirrorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "edotstudio",
			Subsystem: "intake",
			Name:      "stream_mirror_failures_total",
			Help:      "Diagnostic records that could not be mirrored to the stream or the WAL.",
		}),
		RecordsSunkTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "edotstudio",
			Subsystem: "consumer",
			Name:      "records_sunk_total",
			Help:      "Diagnostic records written to PostgreSQL.",
		}),
		RecordsDeadLetteredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "edotstudio",
			Subsystem: "consumer",
			Name:      "records_dead_lettered_total",
			Help:      "Diagnostic records moved to the dead-letter stream.",
		}),
	}
}

// ObserveSubmission counts one handled submission.
func (m *IntakeMetrics) ObserveSubmission(endpoint string, failed bool, bytes int) {
	if m == nil {
		return
	}
	outcome := "received"
	if failed {
		outcome = "failed"
	}
	m.SubmissionsTotal.WithLabelValues(endpoint, outcome).Inc()
	if bytes > 0 {
		m.BytesTotal.Add(float64(bytes))
	}
}
