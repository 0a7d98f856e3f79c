package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reasons recorded by the skipped files counter.
const (
	SkipReasonIgnored     = "ignored"
	SkipReasonUnsupported = "unsupported"
	SkipReasonUnreadable  = "unreadable"

	metricsNamespace = "unveil"
	metricsSubsystem = "ingest"
	reasonLabel      = "reason"
)

// Metrics holds the Prometheus collectors of the tree builder. A nil *Metrics
// records nothing.
type Metrics struct {
	filesRead     prometheus.Counter
	filesSkipped  *prometheus.CounterVec
	bytesRead     prometheus.Counter
	buildDuration prometheus.Histogram
}

// NewMetrics creates the builder collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		filesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "files_read_total",
			Help:      "Files whose content was read into the tree",
		}),
		filesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "files_skipped_total",
			Help:      "Paths left out of the tree, by reason",
		}, []string{reasonLabel}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "bytes_read_total",
			Help:      "Bytes of file content read into the tree",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "build_duration_seconds",
			Help:      "Duration of tree builds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	if registerer != nil {
		registerer.MustRegister(metrics.filesRead, metrics.filesSkipped, metrics.bytesRead, metrics.buildDuration)
	}
	return metrics
}

func (metrics *Metrics) recordRead(byteCount int) {
	if metrics == nil {
		return
	}
	metrics.filesRead.Inc()
	metrics.bytesRead.Add(float64(byteCount))
}

func (metrics *Metrics) recordSkip(reason string) {
	if metrics == nil {
		return
	}
	metrics.filesSkipped.WithLabelValues(reason).Inc()
}

func (metrics *Metrics) observeDuration(startedAt time.Time) {
	if metrics == nil {
		return
	}
	metrics.buildDuration.Observe(time.Since(startedAt).Seconds())
}
