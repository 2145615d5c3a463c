package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	featuresSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastAnchor   *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder registered on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the recorder's collectors on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		featuresSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "featpipe_features_sent_total",
				Help: "Total number of feature records written to a backend",
			},
			[]string{"backend", "inst_id"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "featpipe_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastAnchor: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "featpipe_last_anchor_timestamp_ms",
				Help: "Anchor timestamp of the last feature record produced for an instrument",
			},
			[]string{"inst_id"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "featpipe_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFeatureSent records a feature record written to a backend.
func (r *Recorder) RecordFeatureSent(backend, instID string) {
	r.featuresSent.WithLabelValues(backend, instID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastAnchor records the newest anchor produced for an instrument.
func (r *Recorder) RecordLastAnchor(instID string, ts int64) {
	r.lastAnchor.WithLabelValues(instID).Set(float64(ts))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordFeatureSent(string, string) {}
func (Nop) RecordError(string)               {}
func (Nop) RecordLastAnchor(string, int64)   {}
func (Nop) RecordLatency(string, float64)    {}
